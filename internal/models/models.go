package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role is a user's position in the distribution hierarchy
type Role string

const (
	RoleMarketer   Role = "marketer"
	RoleAdmin      Role = "admin"
	RoleSuperAdmin Role = "superadmin"
	RoleDealer     Role = "dealer"
)

// User is a read-only view of the role/hierarchy directory
type User struct {
	ID           int64  `db:"id" json:"id"`
	Name         string `db:"name" json:"name"`
	Role         Role   `db:"role" json:"role"`
	Location     string `db:"location" json:"location"`
	Locked       bool   `db:"locked" json:"locked"`
	AdminID      *int64 `db:"admin_id" json:"admin_id,omitempty"`
	SuperAdminID *int64 `db:"super_admin_id" json:"super_admin_id,omitempty"`
}

// Hierarchy is the resolved payout chain for a seller
type Hierarchy struct {
	UserID       int64
	Role         Role
	AdminID      *int64
	SuperAdminID *int64
}

// Product is a dealer's listed device model
type Product struct {
	ID           int64           `db:"id" json:"id"`
	DealerID     int64           `db:"dealer_id" json:"dealer_id"`
	Name         string          `db:"name" json:"name"`
	DeviceType   string          `db:"device_type" json:"device_type"`
	CostPrice    decimal.Decimal `db:"cost_price" json:"cost_price"`
	SellingPrice decimal.Decimal `db:"selling_price" json:"selling_price"`
	CreatedAt    time.Time       `db:"created_at" json:"created_at"`
}

// UnitProfit returns selling price minus cost price
func (p *Product) UnitProfit() decimal.Decimal {
	return p.SellingPrice.Sub(p.CostPrice)
}

// InventoryUnit is one serialized physical device
type InventoryUnit struct {
	ID            int64      `db:"id" json:"id"`
	ProductID     int64      `db:"product_id" json:"product_id"`
	SerialCode    string     `db:"serial_code" json:"serial_code"`
	Status        UnitStatus `db:"status" json:"status"`
	ReservationID *int64     `db:"reservation_id" json:"reservation_id,omitempty"`
	CreatedAt     time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at" json:"updated_at"`
}

// Reservation is a marketer's time-boxed claim on a dealer's units
type Reservation struct {
	ID         int64             `db:"id" json:"id"`
	MarketerID int64             `db:"marketer_id" json:"marketer_id"`
	DealerID   int64             `db:"dealer_id" json:"dealer_id"`
	ProductID  int64             `db:"product_id" json:"product_id"`
	Quantity   int               `db:"quantity" json:"quantity"`
	Status     ReservationStatus `db:"status" json:"status"`
	Deadline   time.Time         `db:"deadline" json:"deadline"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// Order is a sale in progress
type Order struct {
	ID              int64           `db:"id" json:"id"`
	MarketerID      int64           `db:"marketer_id" json:"marketer_id"`
	ReservationID   *int64          `db:"reservation_id" json:"reservation_id,omitempty"`
	ProductID       *int64          `db:"product_id" json:"product_id,omitempty"`
	DeviceCount     int             `db:"device_count" json:"device_count"`
	TotalSoldAmount decimal.Decimal `db:"total_sold_amount" json:"total_sold_amount"`
	ProfitPerDevice decimal.Decimal `db:"profit_per_device" json:"profit_per_device"`
	CustomerName    string          `db:"customer_name" json:"customer_name"`
	CustomerPhone   string          `db:"customer_phone" json:"customer_phone"`
	CustomerAddress string          `db:"customer_address" json:"customer_address"`
	PaymentPlatform string          `db:"payment_platform" json:"payment_platform"`
	Status          OrderStatus     `db:"status" json:"status"`
	CommissionPaid  bool            `db:"commission_paid" json:"commission_paid"`
	ConfirmedAt     *time.Time      `db:"confirmed_at" json:"confirmed_at,omitempty"`
	CreatedAt       time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updated_at"`
}

// IsReservationBacked reports whether the order was placed against a pickup
func (o *Order) IsReservationBacked() bool {
	return o.ReservationID != nil
}

// SalesRecord is the append-only ledger row written once per confirmed order
type SalesRecord struct {
	ID          int64           `db:"id" json:"id"`
	OrderID     int64           `db:"order_id" json:"order_id"`
	ProductID   int64           `db:"product_id" json:"product_id"`
	Quantity    int             `db:"quantity" json:"quantity"`
	GrossProfit decimal.Decimal `db:"gross_profit" json:"gross_profit"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// CommissionRate holds per-unit payouts for one device type
type CommissionRate struct {
	DeviceType     string          `db:"device_type" json:"device_type"`
	Version        int64           `db:"version" json:"version"`
	MarketerRate   decimal.Decimal `db:"marketer_rate" json:"marketer_rate"`
	AdminRate      decimal.Decimal `db:"admin_rate" json:"admin_rate"`
	SuperAdminRate decimal.Decimal `db:"superadmin_rate" json:"superadmin_rate"`
}

// CommissionCredit is one wallet credit made during settlement
type CommissionCredit struct {
	PayeeID  int64           `json:"payee_id"`
	Tier     Role            `json:"tier"`
	Rate     decimal.Decimal `json:"rate"`
	Quantity int             `json:"quantity"`
	Amount   decimal.Decimal `json:"amount"`
}

// UnitAvailability counts a product's units by status
type UnitAvailability struct {
	ProductID int64 `db:"product_id" json:"product_id"`
	Available int   `db:"available" json:"available"`
	Reserved  int   `db:"reserved" json:"reserved"`
	Sold      int   `db:"sold" json:"sold"`
}

// ProcessedEvent for idempotency
type ProcessedEvent struct {
	EventID     string    `db:"event_id"`
	EventType   string    `db:"event_type"`
	ProcessedAt time.Time `db:"processed_at"`
}
