package service

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/events"
	"github.com/vibast-solutions/ms-go-checkout/app/gateway"
	"github.com/vibast-solutions/ms-go-checkout/app/metrics"
	"github.com/vibast-solutions/ms-go-checkout/config"
)

type serviceProducts struct {
	items map[string]*entity.Product
	err   error
}

func newServiceProducts() *serviceProducts {
	return &serviceProducts{items: map[string]*entity.Product{
		"prod-headphones": {ID: "prod-headphones", Name: "Wireless Headphones", Price: decimal.RequireFromString("199.99")},
		"prod-cable":      {ID: "prod-cable", Name: "USB-C Cable", Price: decimal.RequireFromString("9.99")},
		"prod-free":       {ID: "prod-free", Name: "Sticker", Price: decimal.Zero},
	}}
}

func (p *serviceProducts) FindByID(_ context.Context, id string) (*entity.Product, error) {
	if p.err != nil {
		return nil, p.err
	}
	item, ok := p.items[id]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

type serviceCarts struct {
	mu      sync.Mutex
	items   map[string][]entity.CartItem
	cleared map[string]int
	err     error
	getErr  error
}

func newServiceCarts() *serviceCarts {
	return &serviceCarts{items: map[string][]entity.CartItem{}, cleared: map[string]int{}}
}

func (c *serviceCarts) Get(_ context.Context, userID string) (*entity.Cart, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	items, ok := c.items[userID]
	if !ok {
		return nil, nil
	}
	return &entity.Cart{UserID: userID, Items: append([]entity.CartItem(nil), items...)}, nil
}

func (c *serviceCarts) ClearItems(_ context.Context, userID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.cleared[userID]++
	if _, ok := c.items[userID]; ok {
		c.items[userID] = []entity.CartItem{}
	}
	return nil
}

func (c *serviceCarts) clears(userID string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cleared[userID]
}

type serviceLedger struct {
	mu        sync.Mutex
	items     map[string]*entity.PaymentTransaction
	writes    int
	createErr error
	findErr   error
	// beforeSwap runs with the lock held, ahead of the compare.
	beforeSwap func(tx *entity.PaymentTransaction)
}

func newServiceLedger() *serviceLedger {
	return &serviceLedger{items: map[string]*entity.PaymentTransaction{}}
}

func (l *serviceLedger) Create(_ context.Context, tx *entity.PaymentTransaction) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.createErr != nil {
		return l.createErr
	}
	copyItem := *tx
	l.items[tx.SessionID] = &copyItem
	return nil
}

func (l *serviceLedger) FindBySessionID(_ context.Context, sessionID string) (*entity.PaymentTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.findErr != nil {
		return nil, l.findErr
	}
	item, ok := l.items[sessionID]
	if !ok {
		return nil, nil
	}
	copyItem := *item
	return &copyItem, nil
}

func (l *serviceLedger) ListByUser(_ context.Context, userID string, limit int32) ([]*entity.PaymentTransaction, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	items := make([]*entity.PaymentTransaction, 0)
	for _, item := range l.items {
		if item.OwnedBy(userID) {
			copyItem := *item
			items = append(items, &copyItem)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].CreatedAt.After(items[j].CreatedAt) })
	if int(limit) < len(items) {
		items = items[:limit]
	}
	return items, nil
}

func (l *serviceLedger) CompareAndSwapStatus(_ context.Context, sessionID string, expected, next entity.StatusPair, updatedAt time.Time) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	item, ok := l.items[sessionID]
	if !ok {
		return false, nil
	}
	if l.beforeSwap != nil {
		l.beforeSwap(item)
	}
	if item.Pair() != expected {
		return false, nil
	}
	item.Status = next.Status
	item.PaymentStatus = next.PaymentStatus
	item.UpdatedAt = updatedAt
	l.writes++
	return true, nil
}

func (l *serviceLedger) get(sessionID string) *entity.PaymentTransaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	copyItem := *l.items[sessionID]
	return &copyItem
}

func (l *serviceLedger) writeCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.writes
}

type serviceEvents struct {
	mu      sync.Mutex
	items   []*entity.TransactionEvent
	listErr error
}

func (e *serviceEvents) ListByTransaction(_ context.Context, transactionID string) ([]*entity.TransactionEvent, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.listErr != nil {
		return nil, e.listErr
	}
	out := make([]*entity.TransactionEvent, 0)
	for _, item := range e.items {
		if item.TransactionID == transactionID {
			out = append(out, item)
		}
	}
	return out, nil
}

func (e *serviceEvents) last(eventType string) *entity.TransactionEvent {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := len(e.items) - 1; i >= 0; i-- {
		if e.items[i].EventType == eventType {
			return e.items[i]
		}
	}
	return nil
}

func (e *serviceEvents) Create(_ context.Context, event *entity.TransactionEvent) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.items = append(e.items, event)
	return nil
}

func (e *serviceEvents) count(eventType string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	n := 0
	for _, item := range e.items {
		if item.EventType == eventType {
			n++
		}
	}
	return n
}

type serviceGateway struct {
	mu          sync.Mutex
	nextID      int
	createErr   error
	statusErr   error
	created     []*gateway.CreateSessionInput
	statuses    map[string]*gateway.SessionStatus
	statusCalls int
}

func newServiceGateway() *serviceGateway {
	return &serviceGateway{statuses: map[string]*gateway.SessionStatus{}}
}

func (g *serviceGateway) CreateSession(_ context.Context, input *gateway.CreateSessionInput) (*gateway.Session, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.createErr != nil {
		return nil, g.createErr
	}
	g.created = append(g.created, input)
	g.nextID++
	id := "cs_test_" + strconv.Itoa(g.nextID)
	return &gateway.Session{SessionID: id, RedirectURL: "https://checkout.stripe.test/pay/" + id}, nil
}

func (g *serviceGateway) GetSessionStatus(_ context.Context, sessionID string) (*gateway.SessionStatus, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statusCalls++
	if g.statusErr != nil {
		return nil, g.statusErr
	}
	status, ok := g.statuses[sessionID]
	if !ok {
		return nil, gateway.ErrSessionNotFound
	}
	copyItem := *status
	return &copyItem, nil
}

func (g *serviceGateway) setStatus(sessionID string, status entity.SessionStatus, paymentStatus entity.PaymentStatus, amountMinor int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.statuses[sessionID] = &gateway.SessionStatus{
		SessionID:     sessionID,
		Status:        status,
		PaymentStatus: paymentStatus,
		AmountMinor:   amountMinor,
		Currency:      "usd",
	}
}

type servicePublisher struct {
	mu       sync.Mutex
	messages []*events.TransitionMessage
	err      error
}

func (p *servicePublisher) PublishTransition(_ context.Context, msg *events.TransitionMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, msg)
	return p.err
}

type serviceFixture struct {
	svc       *CheckoutService
	products  *serviceProducts
	carts     *serviceCarts
	ledger    *serviceLedger
	events    *serviceEvents
	gateway   *serviceGateway
	publisher *servicePublisher
	metrics   *metrics.CheckoutMetrics
}

var errBoom = errors.New("boom")

func newServiceFixture() *serviceFixture {
	f := &serviceFixture{
		products:  newServiceProducts(),
		carts:     newServiceCarts(),
		ledger:    newServiceLedger(),
		events:    &serviceEvents{},
		gateway:   newServiceGateway(),
		publisher: &servicePublisher{},
	}
	f.svc = NewCheckoutService(Dependencies{
		Products:     f.products,
		Carts:        f.carts,
		Transactions: f.ledger,
		Events:       f.events,
		Gateway:      f.gateway,
		Publisher:    f.publisher,
	}, config.CheckoutConfig{
		Currency:     "USD",
		Source:       "ecommerce_cart",
		SuccessPath:  "/payment/success",
		CancelPath:   "/payment/cancel",
		HistoryLimit: 50,
	})
	return f
}

// seed stores a transaction owned by userID directly in the ledger.
func (f *serviceFixture) seed(sessionID, userID string, amount string, pair entity.StatusPair, createdAt time.Time) *entity.PaymentTransaction {
	owner := userID
	tx := &entity.PaymentTransaction{
		ID:            "tx-" + sessionID,
		UserID:        &owner,
		SessionID:     sessionID,
		Amount:        decimal.RequireFromString(amount),
		Currency:      "usd",
		Status:        pair.Status,
		PaymentStatus: pair.PaymentStatus,
		CreatedAt:     createdAt,
		UpdatedAt:     createdAt,
	}
	_ = f.ledger.Create(context.Background(), tx)
	return tx
}
