package service

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"time"

	"distribution-engine/internal/models"
	"distribution-engine/internal/util"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// BulkAction is the transition applied to every order of a batch
type BulkAction string

const (
	BulkConfirm BulkAction = "confirm"
	BulkCancel  BulkAction = "cancel"
	BulkReject  BulkAction = "reject"
)

// Valid reports whether a is a known bulk action
func (a BulkAction) Valid() bool {
	switch a {
	case BulkConfirm, BulkCancel, BulkReject:
		return true
	}
	return false
}

type BulkRequest struct {
	OrderIDs       []int64    `json:"order_ids" binding:"required"`
	Action         BulkAction `json:"action" binding:"required"`
	IdempotencyKey string     `json:"-"`
}

type BulkItemResult struct {
	OrderID int64              `json:"order_id"`
	Status  models.OrderStatus `json:"status"`
}

type BulkItemError struct {
	OrderID int64  `json:"order_id"`
	Code    string `json:"code"`
	Reason  string `json:"reason"`
}

// BulkResult reports per-item outcomes of a committed batch
type BulkResult struct {
	Action    BulkAction       `json:"action"`
	Results   []BulkItemResult `json:"results"`
	Errors    []BulkItemError  `json:"errors"`
	Succeeded int              `json:"succeeded"`
	Failed    int              `json:"failed"`
	Replayed  bool             `json:"replayed,omitempty"`
}

// BulkService applies one action to many orders in a single transaction.
// Each item runs in its own savepoint: business failures are recorded and
// skipped, anything else aborts the whole batch.
type BulkService struct {
	tx       Transactor
	orders   *OrderService
	cache    IdempotencyCache
	maxItems int
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewBulkService creates a bulk coordinator; cache may be nil
func NewBulkService(tx Transactor, orders *OrderService, cache IdempotencyCache, maxItems int, cacheTTL time.Duration) *BulkService {
	return &BulkService{
		tx:       tx,
		orders:   orders,
		cache:    cache,
		maxItems: maxItems,
		cacheTTL: cacheTTL,
		logger:   util.GetLogger(),
	}
}

func (s *BulkService) validate(req *BulkRequest) error {
	if !req.Action.Valid() {
		return fmt.Errorf("%w: %q", models.ErrInvalidAction, req.Action)
	}
	if len(req.OrderIDs) == 0 {
		return models.ErrEmptyBatch
	}
	if s.maxItems > 0 && len(req.OrderIDs) > s.maxItems {
		return fmt.Errorf("%w: %d > %d", models.ErrBatchTooLarge, len(req.OrderIDs), s.maxItems)
	}
	for _, id := range req.OrderIDs {
		if id <= 0 {
			return fmt.Errorf("%w: %d", models.ErrInvalidID, id)
		}
	}
	return nil
}

// BulkApply runs req.Action over req.OrderIDs in caller order
func (s *BulkService) BulkApply(ctx context.Context, req BulkRequest) (result *BulkResult, err error) {
	ctx, span := util.StartSpan(ctx, "BulkService.BulkApply",
		attribute.String("action", string(req.Action)),
		attribute.Int("items", len(req.OrderIDs)))
	defer func() { util.EndSpan(span, err) }()

	if err := s.validate(&req); err != nil {
		return nil, err
	}

	cached, err := s.replay(ctx, req)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	var committed []*outcome
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		result = &BulkResult{
			Action:  req.Action,
			Results: make([]BulkItemResult, 0, len(req.OrderIDs)),
			Errors:  make([]BulkItemError, 0),
		}
		committed = committed[:0]

		for _, id := range req.OrderIDs {
			var out *outcome
			itemErr := s.tx.WithSavepoint(ctx, func(ctx context.Context) error {
				var err error
				out, err = s.apply(ctx, req.Action, id)
				return err
			})

			if itemErr != nil {
				if !models.IsBusinessError(itemErr) {
					return fmt.Errorf("bulk %s aborted at order %d: %w", req.Action, id, itemErr)
				}
				util.BulkItemsTotal.WithLabelValues(string(req.Action), "failed").Inc()
				result.Errors = append(result.Errors, BulkItemError{
					OrderID: id,
					Code:    models.CodeOf(itemErr),
					Reason:  itemErr.Error(),
				})
				continue
			}

			util.BulkItemsTotal.WithLabelValues(string(req.Action), "succeeded").Inc()
			result.Results = append(result.Results, BulkItemResult{OrderID: id, Status: out.order.Status})
			committed = append(committed, out)
		}
		return nil
	})
	if err != nil {
		util.BulkItemsTotal.WithLabelValues(string(req.Action), "aborted").Add(float64(len(req.OrderIDs)))
		s.logger.Error("Bulk operation aborted",
			zap.String("action", string(req.Action)),
			zap.Int("items", len(req.OrderIDs)),
			zap.Error(err))
		return nil, err
	}

	result.Succeeded = len(result.Results)
	result.Failed = len(result.Errors)

	for _, out := range committed {
		s.orders.committed(ctx, out)
	}

	s.logger.Info("Bulk operation applied",
		zap.String("action", string(req.Action)),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))

	s.remember(ctx, req, result)
	return result, nil
}

func (s *BulkService) apply(ctx context.Context, action BulkAction, orderID int64) (*outcome, error) {
	switch action {
	case BulkConfirm:
		return s.orders.confirmTx(ctx, orderID)
	case BulkCancel:
		return s.orders.cancelTx(ctx, orderID)
	case BulkReject:
		return s.orders.rejectTx(ctx, orderID)
	}
	return nil, fmt.Errorf("%w: %q", models.ErrInvalidAction, action)
}

// storedBulk binds a cached response to the request that produced it
type storedBulk struct {
	Action   BulkAction  `json:"action"`
	OrderIDs []int64     `json:"order_ids"`
	Result   *BulkResult `json:"result"`
}

func (s *BulkService) replay(ctx context.Context, req BulkRequest) (*BulkResult, error) {
	key := req.IdempotencyKey
	if key == "" || s.cache == nil {
		return nil, nil
	}
	b, found, err := s.cache.GetIdempotent(ctx, key)
	if err != nil {
		s.logger.Warn("Idempotency lookup failed", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	if !found {
		return nil, nil
	}
	var stored storedBulk
	if err := json.Unmarshal(b, &stored); err != nil || stored.Result == nil {
		s.logger.Warn("Discarding unreadable idempotent response", zap.String("key", key), zap.Error(err))
		return nil, nil
	}
	if stored.Action != req.Action || !slices.Equal(stored.OrderIDs, req.OrderIDs) {
		return nil, fmt.Errorf("%w: %q", models.ErrIdempotencyReused, key)
	}

	result := stored.Result
	result.Replayed = true
	s.logger.Info("Replaying bulk response", zap.String("key", key))
	return result, nil
}

func (s *BulkService) remember(ctx context.Context, req BulkRequest, result *BulkResult) {
	key := req.IdempotencyKey
	if key == "" || s.cache == nil {
		return
	}
	b, err := json.Marshal(storedBulk{Action: req.Action, OrderIDs: req.OrderIDs, Result: result})
	if err != nil {
		s.logger.Error("Failed to encode bulk response", zap.String("key", key), zap.Error(err))
		return
	}
	if err := s.cache.SetIdempotent(ctx, key, b, s.cacheTTL); err != nil {
		s.logger.Warn("Failed to store idempotent response", zap.String("key", key), zap.Error(err))
	}
}
