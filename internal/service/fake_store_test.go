package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"distribution-engine/internal/models"

	"github.com/shopspring/decimal"
)

type fakeTxKey struct{}

type fakeState struct {
	users        map[int64]models.User
	products     map[int64]models.Product
	units        map[int64]models.InventoryUnit
	reservations map[int64]models.Reservation
	orders       map[int64]models.Order
	sales        map[int64]models.SalesRecord
	wallets      map[int64]decimal.Decimal
	rates        []models.CommissionRate
	processed    map[string]string
	nextID       int64
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (s fakeState) clone() fakeState {
	return fakeState{
		users:        cloneMap(s.users),
		products:     cloneMap(s.products),
		units:        cloneMap(s.units),
		reservations: cloneMap(s.reservations),
		orders:       cloneMap(s.orders),
		sales:        cloneMap(s.sales),
		wallets:      cloneMap(s.wallets),
		rates:        append([]models.CommissionRate(nil), s.rates...),
		processed:    cloneMap(s.processed),
		nextID:       s.nextID,
	}
}

// fakeStore is an in-memory Repository. Transactions are serialized by a
// mutex and roll back by restoring a snapshot, savepoints likewise.
type fakeStore struct {
	mu    sync.Mutex
	state fakeState

	creditErr map[int64]error
	credits   []int64
	txCount   int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		state: fakeState{
			users:        map[int64]models.User{},
			products:     map[int64]models.Product{},
			units:        map[int64]models.InventoryUnit{},
			reservations: map[int64]models.Reservation{},
			orders:       map[int64]models.Order{},
			sales:        map[int64]models.SalesRecord{},
			wallets:      map[int64]decimal.Decimal{},
			processed:    map[string]string{},
			nextID:       1000,
		},
		creditErr: map[int64]error{},
	}
}

func (f *fakeStore) id() int64 {
	f.state.nextID++
	return f.state.nextID
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) != nil {
		return fn(ctx)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.txCount++

	snapshot := f.state.clone()
	creditMark := len(f.credits)
	if err := fn(context.WithValue(ctx, fakeTxKey{}, true)); err != nil {
		f.state = snapshot
		f.credits = f.credits[:creditMark]
		return err
	}
	return nil
}

func (f *fakeStore) WithSavepoint(ctx context.Context, fn func(ctx context.Context) error) error {
	if ctx.Value(fakeTxKey{}) == nil {
		return f.WithTx(ctx, fn)
	}
	snapshot := f.state.clone()
	creditMark := len(f.credits)
	if err := fn(ctx); err != nil {
		f.state = snapshot
		f.credits = f.credits[:creditMark]
		return err
	}
	return nil
}

// seeding helpers, called outside transactions

func (f *fakeStore) addUser(u models.User) {
	f.state.users[u.ID] = u
}

func (f *fakeStore) addProduct(p models.Product) {
	f.state.products[p.ID] = p
}

func (f *fakeStore) addUnits(productID int64, n int) []int64 {
	ids := make([]int64, 0, n)
	for i := 0; i < n; i++ {
		id := f.id()
		f.state.units[id] = models.InventoryUnit{
			ID:         id,
			ProductID:  productID,
			SerialCode: fmt.Sprintf("%015d", id),
			Status:     models.UnitStatusAvailable,
		}
		ids = append(ids, id)
	}
	return ids
}

func (f *fakeStore) addOrder(o models.Order) int64 {
	if o.ID == 0 {
		o.ID = f.id()
	}
	if o.Status == "" {
		o.Status = models.OrderStatusPending
	}
	f.state.orders[o.ID] = o
	return o.ID
}

func (f *fakeStore) order(id int64) models.Order {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.orders[id]
}

func (f *fakeStore) reservation(id int64) models.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.reservations[id]
}

func (f *fakeStore) balance(userID int64) decimal.Decimal {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.wallets[userID]
}

func (f *fakeStore) unitsOf(reservationID int64) []models.InventoryUnit {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.InventoryUnit
	for _, u := range f.state.units {
		if u.ReservationID != nil && *u.ReservationID == reservationID {
			out = append(out, u)
		}
	}
	return out
}

func (f *fakeStore) countUnits(productID int64, status models.UnitStatus) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, u := range f.state.units {
		if u.ProductID == productID && u.Status == status {
			n++
		}
	}
	return n
}

// UserRepository / Directory

func (f *fakeStore) GetUser(_ context.Context, id int64) (*models.User, error) {
	u, ok := f.state.users[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrUserNotFound, id)
	}
	return &u, nil
}

func (f *fakeStore) LockUser(ctx context.Context, id int64) (*models.User, error) {
	return f.GetUser(ctx, id)
}

func (f *fakeStore) Hierarchy(_ context.Context, userID int64) (models.Hierarchy, error) {
	u, ok := f.state.users[userID]
	if !ok {
		return models.Hierarchy{}, fmt.Errorf("%w: %d", models.ErrUserNotFound, userID)
	}
	h := models.Hierarchy{UserID: u.ID, Role: u.Role, AdminID: u.AdminID}
	if u.AdminID != nil {
		if admin, ok := f.state.users[*u.AdminID]; ok {
			h.SuperAdminID = admin.SuperAdminID
		}
	}
	return h, nil
}

// InventoryRepository

func (f *fakeStore) GetProductByID(_ context.Context, id int64) (*models.Product, error) {
	p, ok := f.state.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrProductNotFound, id)
	}
	return &p, nil
}

func (f *fakeStore) InsertUnits(_ context.Context, productID int64, serials []string) ([]models.InventoryUnit, error) {
	if _, ok := f.state.products[productID]; !ok {
		return nil, fmt.Errorf("failed to insert unit: %w", models.ErrProductNotFound)
	}
	out := make([]models.InventoryUnit, 0, len(serials))
	for _, serial := range serials {
		for _, u := range f.state.units {
			if u.SerialCode == serial {
				return nil, fmt.Errorf("failed to insert unit %s: %w", serial, models.ErrDuplicateSerial)
			}
		}
		u := models.InventoryUnit{ID: f.id(), ProductID: productID, SerialCode: serial, Status: models.UnitStatusAvailable}
		f.state.units[u.ID] = u
		out = append(out, u)
	}
	return out, nil
}

func (f *fakeStore) ClaimUnits(_ context.Context, productID, reservationID int64, quantity int) ([]int64, error) {
	var candidates []int64
	for id, u := range f.state.units {
		if u.ProductID == productID && u.Status == models.UnitStatusAvailable {
			candidates = append(candidates, id)
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i] < candidates[j] })
	if len(candidates) > quantity {
		candidates = candidates[:quantity]
	}
	for _, id := range candidates {
		u := f.state.units[id]
		rid := reservationID
		u.Status = models.UnitStatusReserved
		u.ReservationID = &rid
		f.state.units[id] = u
	}
	if len(candidates) < quantity {
		return candidates, fmt.Errorf("%w: available=%d, requested=%d", models.ErrInsufficientInventory, len(candidates), quantity)
	}
	return candidates, nil
}

func (f *fakeStore) ReleaseUnits(_ context.Context, reservationID int64) (int64, error) {
	var n int64
	for id, u := range f.state.units {
		if u.ReservationID != nil && *u.ReservationID == reservationID && u.Status == models.UnitStatusReserved {
			u.Status = models.UnitStatusAvailable
			u.ReservationID = nil
			f.state.units[id] = u
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) MarkUnitsSold(_ context.Context, reservationID int64) (int64, error) {
	var n int64
	for id, u := range f.state.units {
		if u.ReservationID != nil && *u.ReservationID == reservationID && u.Status == models.UnitStatusReserved {
			u.Status = models.UnitStatusSold
			f.state.units[id] = u
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Availability(_ context.Context, productID int64) (*models.UnitAvailability, error) {
	a := &models.UnitAvailability{ProductID: productID}
	for _, u := range f.state.units {
		if u.ProductID != productID {
			continue
		}
		switch u.Status {
		case models.UnitStatusAvailable:
			a.Available++
		case models.UnitStatusReserved:
			a.Reserved++
		case models.UnitStatusSold:
			a.Sold++
		}
	}
	return a, nil
}

// ReservationRepository

func (f *fakeStore) CreateReservation(_ context.Context, r *models.Reservation) error {
	r.ID = f.id()
	r.CreatedAt = time.Now()
	r.UpdatedAt = r.CreatedAt
	f.state.reservations[r.ID] = *r
	return nil
}

func (f *fakeStore) GetReservationByID(_ context.Context, id int64) (*models.Reservation, error) {
	r, ok := f.state.reservations[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrReservationNotFound, id)
	}
	return &r, nil
}

func (f *fakeStore) LockReservation(ctx context.Context, id int64) (*models.Reservation, error) {
	return f.GetReservationByID(ctx, id)
}

func (f *fakeStore) UpdateReservationStatus(_ context.Context, id int64, from, to models.ReservationStatus) error {
	r, ok := f.state.reservations[id]
	if !ok || r.Status != from {
		return fmt.Errorf("%w: reservation %d is not %s", models.ErrInvalidState, id, from)
	}
	r.Status = to
	f.state.reservations[id] = r
	return nil
}

func (f *fakeStore) CountActiveReservations(_ context.Context, marketerID int64) (int, error) {
	n := 0
	for _, r := range f.state.reservations {
		if r.MarketerID != marketerID || r.Status != models.ReservationStatusPending {
			continue
		}
		for _, u := range f.state.units {
			if u.ReservationID != nil && *u.ReservationID == r.ID {
				n++
				break
			}
		}
	}
	return n, nil
}

// OrderRepository

func (f *fakeStore) GetOrderByID(_ context.Context, id int64) (*models.Order, error) {
	o, ok := f.state.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", models.ErrOrderNotFound, id)
	}
	return &o, nil
}

func (f *fakeStore) LockOrder(ctx context.Context, id int64) (*models.Order, error) {
	return f.GetOrderByID(ctx, id)
}

func (f *fakeStore) LockPendingOrder(_ context.Context, id int64) (*models.Order, error) {
	o, ok := f.state.orders[id]
	if !ok || o.Status != models.OrderStatusPending {
		return nil, fmt.Errorf("%w: %d", models.ErrOrderNotFound, id)
	}
	return &o, nil
}

func (f *fakeStore) SetOrderProduct(_ context.Context, orderID, productID int64) error {
	o := f.state.orders[orderID]
	if o.ProductID == nil {
		o.ProductID = &productID
		f.state.orders[orderID] = o
	}
	return nil
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, orderID int64, from, to models.OrderStatus, confirmedAt *time.Time) error {
	o, ok := f.state.orders[orderID]
	if !ok || o.Status != from {
		return fmt.Errorf("%w: order %d is not %s", models.ErrInvalidState, orderID, from)
	}
	o.Status = to
	if confirmedAt != nil {
		o.ConfirmedAt = confirmedAt
	}
	f.state.orders[orderID] = o
	return nil
}

func (f *fakeStore) MarkCommissionPaid(_ context.Context, orderID int64) error {
	o := f.state.orders[orderID]
	o.CommissionPaid = true
	f.state.orders[orderID] = o
	return nil
}

// SalesLedger / Wallet

func (f *fakeStore) InsertSalesRecord(_ context.Context, rec *models.SalesRecord) (bool, error) {
	if _, exists := f.state.sales[rec.OrderID]; exists {
		return false, nil
	}
	rec.ID = f.id()
	rec.CreatedAt = time.Now()
	f.state.sales[rec.OrderID] = *rec
	return true, nil
}

func (f *fakeStore) Credit(_ context.Context, payeeID int64, amount decimal.Decimal) error {
	if err := f.creditErr[payeeID]; err != nil {
		return err
	}
	f.state.wallets[payeeID] = f.state.wallets[payeeID].Add(amount)
	f.credits = append(f.credits, payeeID)
	return nil
}

// RateRepository

func (f *fakeStore) GetCommissionRates(_ context.Context) ([]models.CommissionRate, error) {
	latest := map[string]models.CommissionRate{}
	for _, r := range f.state.rates {
		if cur, ok := latest[r.DeviceType]; !ok || r.Version > cur.Version {
			latest[r.DeviceType] = r
		}
	}
	out := make([]models.CommissionRate, 0, len(latest))
	for _, r := range latest {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DeviceType < out[j].DeviceType })
	return out, nil
}

func (f *fakeStore) InsertRateVersion(_ context.Context, rates []models.CommissionRate) (int64, error) {
	var version int64
	for _, r := range f.state.rates {
		if r.Version > version {
			version = r.Version
		}
	}
	version++
	for _, r := range rates {
		r.Version = version
		f.state.rates = append(f.state.rates, r)
	}
	return version, nil
}

func (f *fakeStore) IsEventProcessed(_ context.Context, eventID string) (bool, error) {
	_, ok := f.state.processed[eventID]
	return ok, nil
}

func (f *fakeStore) MarkEventProcessed(_ context.Context, eventID, eventType string) error {
	f.state.processed[eventID] = eventType
	return nil
}

var _ Repository = (*fakeStore)(nil)

// fakePublisher records events
type fakePublisher struct {
	mu        sync.Mutex
	pickups   []*models.PickupCreatedEvent
	confirmed []*models.OrderConfirmedEvent
	changed   []*models.OrderStatusChangedEvent
}

func (p *fakePublisher) PublishPickupCreated(_ context.Context, e *models.PickupCreatedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pickups = append(p.pickups, e)
	return nil
}

func (p *fakePublisher) PublishOrderConfirmed(_ context.Context, e *models.OrderConfirmedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.confirmed = append(p.confirmed, e)
	return nil
}

func (p *fakePublisher) PublishOrderStatusChanged(_ context.Context, e *models.OrderStatusChangedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changed = append(p.changed, e)
	return nil
}

// fakeCache implements RateCache and IdempotencyCache
type fakeCache struct {
	version int64
	rates   map[string]models.CommissionRate
	err     error
	writes  int
	idem    map[string][]byte
}

func newFakeCache() *fakeCache {
	return &fakeCache{idem: map[string][]byte{}}
}

func (c *fakeCache) GetRateTable(context.Context) (int64, map[string]models.CommissionRate, bool, error) {
	if c.err != nil {
		return 0, nil, false, c.err
	}
	if c.rates == nil {
		return 0, nil, false, nil
	}
	return c.version, c.rates, true, nil
}

func (c *fakeCache) PublishRateTable(_ context.Context, version int64, rates []models.CommissionRate, _ time.Duration) (bool, error) {
	if c.err != nil {
		return false, c.err
	}
	if c.rates != nil && version < c.version {
		return false, nil
	}
	c.writes++
	c.version = version
	c.rates = make(map[string]models.CommissionRate, len(rates))
	for _, r := range rates {
		c.rates[r.DeviceType] = r
	}
	return true, nil
}

func (c *fakeCache) GetIdempotent(_ context.Context, key string) ([]byte, bool, error) {
	b, ok := c.idem[key]
	return b, ok, nil
}

func (c *fakeCache) SetIdempotent(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.idem[key] = value
	return nil
}
