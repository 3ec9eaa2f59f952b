package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"distribution-engine/internal/models"
	"distribution-engine/internal/util"

	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// Skip reasons reported in Settlement.Skipped
const (
	SkipAlreadyPaid  = "already_paid"
	SkipNoCommission = "no_commission_platform"
)

// Settlement summarizes what one Settle call wrote
type Settlement struct {
	Credits     []models.CommissionCredit
	SalesRecord *models.SalesRecord
	GrossProfit decimal.Decimal
	Skipped     string
}

// SettlementRepository is what the settler reads and writes
type SettlementRepository interface {
	GetProductByID(ctx context.Context, id int64) (*models.Product, error)
	MarkCommissionPaid(ctx context.Context, orderID int64) error
	SalesLedger
	Wallet
	Directory
}

// Settler credits tiered commissions and writes the sales ledger row.
// It must run inside the caller's confirmation transaction.
type Settler struct {
	repo                 SettlementRepository
	rates                RateProvider
	noCommissionPlatform string
	logger               *zap.Logger
}

// NewSettler creates a settler; orders tagged noCommissionPlatform earn no credits
func NewSettler(repo SettlementRepository, rates RateProvider, noCommissionPlatform string) *Settler {
	return &Settler{
		repo:                 repo,
		rates:                rates,
		noCommissionPlatform: strings.TrimSpace(noCommissionPlatform),
		logger:               util.GetLogger(),
	}
}

// Settle pays out an order exactly once. order.ProductID must already be resolved.
func (s *Settler) Settle(ctx context.Context, order *models.Order) (settlement *Settlement, err error) {
	ctx, span := util.StartSpan(ctx, "Settler.Settle", attribute.Int64("order_id", order.ID))
	defer func() { util.EndSpan(span, err) }()

	start := time.Now()
	defer func() {
		util.SettlementLatency.Observe(time.Since(start).Seconds())
	}()

	if order.CommissionPaid {
		util.SettlementsSkippedTotal.WithLabelValues(SkipAlreadyPaid).Inc()
		s.logger.Info("Commission already paid, skipping settlement", zap.Int64("order_id", order.ID))
		return &Settlement{Skipped: SkipAlreadyPaid}, nil
	}

	if order.ProductID == nil {
		return nil, fmt.Errorf("%w: order %d", models.ErrUnresolvableProduct, order.ID)
	}
	product, err := s.repo.GetProductByID(ctx, *order.ProductID)
	if err != nil {
		return nil, err
	}

	settlement = &Settlement{}
	if s.isNoCommission(order.PaymentPlatform) {
		settlement.Skipped = SkipNoCommission
		util.SettlementsSkippedTotal.WithLabelValues(SkipNoCommission).Inc()
	} else {
		credits, err := s.planCredits(ctx, order, product)
		if err != nil {
			return nil, err
		}
		for _, c := range credits {
			if err := s.repo.Credit(ctx, c.PayeeID, c.Amount); err != nil {
				return nil, fmt.Errorf("failed to credit %s %d for order %d: %w", c.Tier, c.PayeeID, order.ID, err)
			}
		}
		settlement.Credits = credits
	}

	settlement.GrossProfit = product.UnitProfit().Mul(decimal.NewFromInt(int64(order.DeviceCount)))
	rec := &models.SalesRecord{
		OrderID:     order.ID,
		ProductID:   product.ID,
		Quantity:    order.DeviceCount,
		GrossProfit: settlement.GrossProfit,
	}
	inserted, err := s.repo.InsertSalesRecord(ctx, rec)
	if err != nil {
		return nil, err
	}
	if inserted {
		settlement.SalesRecord = rec
	} else {
		s.logger.Warn("Sales record already present", zap.Int64("order_id", order.ID))
	}

	if err := s.repo.MarkCommissionPaid(ctx, order.ID); err != nil {
		return nil, err
	}
	order.CommissionPaid = true

	for _, c := range settlement.Credits {
		util.CommissionCreditsTotal.WithLabelValues(string(c.Tier)).Inc()
	}
	s.logger.Info("Order settled",
		zap.Int64("order_id", order.ID),
		zap.Int("credits", len(settlement.Credits)),
		zap.String("gross_profit", settlement.GrossProfit.String()))
	return settlement, nil
}

func (s *Settler) isNoCommission(platform string) bool {
	return s.noCommissionPlatform != "" && strings.EqualFold(strings.TrimSpace(platform), s.noCommissionPlatform)
}

func (s *Settler) planCredits(ctx context.Context, order *models.Order, product *models.Product) ([]models.CommissionCredit, error) {
	h, err := s.repo.Hierarchy(ctx, order.MarketerID)
	if err != nil {
		return nil, err
	}
	rate, err := s.rates.Rate(ctx, product.DeviceType)
	if err != nil {
		return nil, err
	}
	return PlanCredits(h, rate, order.DeviceCount)
}

// PlanCredits derives the wallet credits for a sale of quantity devices.
// A marketer earns for three tiers; an admin or superadmin selling directly
// earns only the marketer-tier amount. Missing managers are skipped.
func PlanCredits(h models.Hierarchy, rate models.CommissionRate, quantity int) ([]models.CommissionCredit, error) {
	qty := decimal.NewFromInt(int64(quantity))
	credit := func(payee int64, tier models.Role, r decimal.Decimal) models.CommissionCredit {
		return models.CommissionCredit{
			PayeeID:  payee,
			Tier:     tier,
			Rate:     r,
			Quantity: quantity,
			Amount:   r.Mul(qty),
		}
	}

	switch h.Role {
	case models.RoleMarketer:
		credits := []models.CommissionCredit{credit(h.UserID, models.RoleMarketer, rate.MarketerRate)}
		if h.AdminID != nil {
			credits = append(credits, credit(*h.AdminID, models.RoleAdmin, rate.AdminRate))
		}
		if h.SuperAdminID != nil {
			credits = append(credits, credit(*h.SuperAdminID, models.RoleSuperAdmin, rate.SuperAdminRate))
		}
		return credits, nil
	case models.RoleAdmin, models.RoleSuperAdmin:
		return []models.CommissionCredit{credit(h.UserID, models.RoleMarketer, rate.MarketerRate)}, nil
	default:
		return nil, fmt.Errorf("%w: role %q earns no commission", models.ErrInvalidState, h.Role)
	}
}
