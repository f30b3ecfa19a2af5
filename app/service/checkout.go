package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/events"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-checkout/app/gateway"
	"github.com/vibast-solutions/ms-go-checkout/app/metrics"
	"github.com/vibast-solutions/ms-go-checkout/app/money"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
	"github.com/vibast-solutions/ms-go-checkout/config"
)

const (
	defaultHistoryLimit  = int32(50)
	checkoutSessionParam = "session_id={CHECKOUT_SESSION_ID}"
)

type createCheckoutRequest interface {
	GetItems() []*types.CheckoutItem
	GetOriginUrl() string
}

type productFinder interface {
	FindByID(ctx context.Context, id string) (*entity.Product, error)
}

type cartStore interface {
	Get(ctx context.Context, userID string) (*entity.Cart, error)
	ClearItems(ctx context.Context, userID string) error
}

type transactionRepository interface {
	Create(ctx context.Context, tx *entity.PaymentTransaction) error
	FindBySessionID(ctx context.Context, sessionID string) (*entity.PaymentTransaction, error)
	ListByUser(ctx context.Context, userID string, limit int32) ([]*entity.PaymentTransaction, error)
	CompareAndSwapStatus(ctx context.Context, sessionID string, expected, next entity.StatusPair, updatedAt time.Time) (bool, error)
}

type transactionEventRepository interface {
	Create(ctx context.Context, event *entity.TransactionEvent) error
	ListByTransaction(ctx context.Context, transactionID string) ([]*entity.TransactionEvent, error)
}

type transitionPublisher interface {
	PublishTransition(ctx context.Context, msg *events.TransitionMessage) error
}

// Dependencies are the collaborators of CheckoutService. Publisher and
// Metrics are optional.
type Dependencies struct {
	Products     productFinder
	Carts        cartStore
	Transactions transactionRepository
	Events       transactionEventRepository
	Gateway      gateway.Gateway
	Publisher    transitionPublisher
	Metrics      *metrics.CheckoutMetrics
}

type CheckoutService struct {
	products     productFinder
	carts        cartStore
	transactions transactionRepository
	events       transactionEventRepository
	gateway      gateway.Gateway
	publisher    transitionPublisher
	metrics      *metrics.CheckoutMetrics
	cfg          config.CheckoutConfig
	logger       logrus.FieldLogger
	now          func() time.Time
}

// CheckoutSession is the outcome of a successful checkout creation.
type CheckoutSession struct {
	Transaction *entity.PaymentTransaction
	RedirectURL string
}

func NewCheckoutService(deps Dependencies, cfg config.CheckoutConfig) *CheckoutService {
	if strings.TrimSpace(cfg.Currency) == "" {
		cfg.Currency = "usd"
	}
	cfg.Currency = strings.ToLower(strings.TrimSpace(cfg.Currency))
	if cfg.HistoryLimit <= 0 || cfg.HistoryLimit > defaultHistoryLimit {
		cfg.HistoryLimit = defaultHistoryLimit
	}

	return &CheckoutService{
		products:     deps.Products,
		carts:        deps.Carts,
		transactions: deps.Transactions,
		events:       deps.Events,
		gateway:      deps.Gateway,
		publisher:    deps.Publisher,
		metrics:      deps.Metrics,
		cfg:          cfg,
		logger:       factory.NewModuleLogger("checkout-service"),
		now:          func() time.Time { return time.Now().UTC() },
	}
}

func (s *CheckoutService) CreateCheckout(ctx context.Context, customer entity.Customer, req createCheckoutRequest) (*CheckoutSession, error) {
	userID := strings.TrimSpace(customer.ID)
	origin := strings.TrimRight(strings.TrimSpace(req.GetOriginUrl()), "/")
	if userID == "" || origin == "" || len(req.GetItems()) == 0 {
		return nil, ErrInvalidRequest
	}

	total := decimal.Zero
	snapshots := make([]entity.LineItemSnapshot, 0, len(req.GetItems()))
	lineItems := make([]gateway.LineItem, 0, len(req.GetItems()))
	for _, item := range req.GetItems() {
		productID := strings.TrimSpace(item.GetProductId())
		if productID == "" || item.GetQuantity() <= 0 {
			return nil, ErrInvalidRequest
		}

		product, err := s.products.FindByID(ctx, productID)
		if err != nil {
			return nil, upstreamError(err)
		}
		if product == nil {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, productID)
		}

		unitPrice := money.Normalize(product.Price)
		subtotal := money.LineTotal(unitPrice, item.GetQuantity())
		total = total.Add(subtotal)

		snapshots = append(snapshots, entity.LineItemSnapshot{
			ProductID: product.ID,
			Name:      product.Name,
			UnitPrice: unitPrice,
			Quantity:  item.GetQuantity(),
			Subtotal:  subtotal,
		})
		lineItems = append(lineItems, gateway.LineItem{
			Name:            product.Name,
			UnitAmountMinor: money.ToMinorUnits(unitPrice),
			Quantity:        item.GetQuantity(),
		})
	}

	total = money.Normalize(total)
	if !total.IsPositive() {
		return nil, fmt.Errorf("%w: cart total must be > 0", ErrInvalidRequest)
	}

	metadata := entity.CheckoutMetadata{
		UserID:    userID,
		UserEmail: strings.TrimSpace(customer.Email),
		ItemCount: len(snapshots),
		Source:    s.cfg.Source,
		LineItems: snapshots,
	}

	started := time.Now()
	session, err := s.gateway.CreateSession(ctx, &gateway.CreateSessionInput{
		AmountMinor:     money.ToMinorUnits(total),
		Currency:        s.cfg.Currency,
		SuccessURL:      origin + s.cfg.SuccessPath + "?" + checkoutSessionParam,
		CancelURL:       origin + s.cfg.CancelPath,
		ClientReference: userID,
		LineItems:       lineItems,
		Metadata:        gatewayMetadata(metadata),
	})
	s.metrics.ObserveGateway("create_session", started)
	if err != nil {
		s.metrics.SessionCreated(false)
		s.logger.WithError(err).WithField("user_id", userID).Error("Create checkout session failed")
		return nil, upstreamError(err)
	}

	now := s.now()
	owner := userID
	tx := &entity.PaymentTransaction{
		ID:            uuid.NewString(),
		UserID:        &owner,
		SessionID:     session.SessionID,
		Amount:        total,
		Currency:      s.cfg.Currency,
		Status:        entity.SessionStatusPending,
		PaymentStatus: entity.PaymentStatusUnpaid,
		Metadata:      metadata,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.transactions.Create(ctx, tx); err != nil {
		s.metrics.SessionCreated(false)
		s.logger.WithError(err).WithField("session_id", session.SessionID).Error("Persist payment transaction failed, gateway session left to expire")
		return nil, upstreamError(err)
	}
	s.metrics.SessionCreated(true)

	s.recordEvent(ctx, tx, entity.EventTransactionCreated, nil, tx.Pair(), nil)
	s.publish(ctx, tx, entity.EventTransactionCreated, nil, tx.Pair())

	return &CheckoutSession{Transaction: tx, RedirectURL: session.RedirectURL}, nil
}

func (s *CheckoutService) ListTransactions(ctx context.Context, userID string, limit int32) ([]*entity.PaymentTransaction, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, ErrInvalidRequest
	}
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}

	items, err := s.transactions.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, upstreamError(err)
	}
	return items, nil
}

// TransactionEvents returns the audit trail of the caller's transaction
// identified by sessionID, oldest first.
func (s *CheckoutService) TransactionEvents(ctx context.Context, userID, sessionID string) ([]*entity.TransactionEvent, error) {
	userID = strings.TrimSpace(userID)
	sessionID = strings.TrimSpace(sessionID)
	if userID == "" || sessionID == "" {
		return nil, ErrInvalidRequest
	}

	tx, err := s.transactions.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, upstreamError(err)
	}
	if tx == nil {
		return nil, ErrTransactionNotFound
	}
	if !tx.OwnedBy(userID) {
		return nil, ErrForbidden
	}

	items, err := s.events.ListByTransaction(ctx, tx.ID)
	if err != nil {
		return nil, upstreamError(err)
	}
	return items, nil
}

func (s *CheckoutService) recordEvent(ctx context.Context, tx *entity.PaymentTransaction, eventType string, old *entity.StatusPair, next entity.StatusPair, detail *string) {
	event := &entity.TransactionEvent{
		TransactionID:    tx.ID,
		SessionID:        tx.SessionID,
		EventType:        eventType,
		NewStatus:        next.Status,
		NewPaymentStatus: next.PaymentStatus,
		Detail:           detail,
		CreatedAt:        s.now(),
	}
	if old != nil {
		oldStatus, oldPaymentStatus := old.Status, old.PaymentStatus
		event.OldStatus = &oldStatus
		event.OldPaymentStatus = &oldPaymentStatus
	}

	if err := s.events.Create(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"session_id": tx.SessionID,
			"event_type": eventType,
		}).Warn("Record transaction event failed")
	}
}

func (s *CheckoutService) publish(ctx context.Context, tx *entity.PaymentTransaction, eventType string, old *entity.StatusPair, next entity.StatusPair) {
	if s.publisher == nil {
		return
	}

	msg := &events.TransitionMessage{
		TransactionID:    tx.ID,
		SessionID:        tx.SessionID,
		EventType:        eventType,
		NewStatus:        next.Status,
		NewPaymentStatus: next.PaymentStatus,
		Amount:           tx.Amount.StringFixed(2),
		Currency:         tx.Currency,
		OccurredAt:       s.now(),
	}
	if tx.UserID != nil {
		msg.UserID = *tx.UserID
	}
	if old != nil {
		msg.OldStatus = old.Status
		msg.OldPaymentStatus = old.PaymentStatus
	}

	if err := s.publisher.PublishTransition(ctx, msg); err != nil {
		s.logger.WithError(err).WithField("session_id", tx.SessionID).Warn("Publish transaction transition failed")
	}
}

// Stripe rejects metadata values longer than this.
const maxGatewayMetadataValue = 500

// gatewayMetadata flattens the typed snapshot into the string pairs the
// processor accepts.
func gatewayMetadata(m entity.CheckoutMetadata) map[string]string {
	out := map[string]string{
		"user_id":    m.UserID,
		"user_email": m.UserEmail,
		"item_count": strconv.Itoa(m.ItemCount),
		"source":     m.Source,
	}
	if raw, err := json.Marshal(m.LineItems); err == nil && len(raw) <= maxGatewayMetadataValue {
		out["line_items"] = string(raw)
	}
	return out
}
