package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/metrics"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

var (
	pendingUnpaid = entity.StatusPair{Status: entity.SessionStatusPending, PaymentStatus: entity.PaymentStatusUnpaid}
	completePaid  = entity.StatusPair{Status: entity.SessionStatusComplete, PaymentStatus: entity.PaymentStatusPaid}
	seededAt      = time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
)

func TestReconcilePaidScenario(t *testing.T) {
	f := newServiceFixture()
	f.svc.metrics = metrics.NewCheckoutMetrics(prometheus.NewRegistry())

	session, err := f.svc.CreateCheckout(context.Background(), testCustomer, checkoutRequest(&types.CheckoutItem{ProductId: "prod-headphones", Quantity: 1}))
	if err != nil {
		t.Fatalf("create checkout failed: %v", err)
	}
	sessionID := session.Transaction.SessionID
	f.gateway.setStatus(sessionID, entity.SessionStatusComplete, entity.PaymentStatusPaid, 19999)

	result, err := f.svc.ReconcileStatus(context.Background(), "user-1", sessionID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if result.Status != entity.SessionStatusComplete || result.PaymentStatus != entity.PaymentStatusPaid {
		t.Fatalf("unexpected reconciled pair: %s/%s", result.Status, result.PaymentStatus)
	}
	if result.Message() != "Payment is paid" {
		t.Fatalf("unexpected message %q", result.Message())
	}
	if !result.AmountTotal.Equal(session.Transaction.Amount) || !result.AmountTotal.Equal(decimal.RequireFromString("199.99")) {
		t.Fatalf("expected round-tripped amount 199.99, got %s", result.AmountTotal)
	}
	if result.Currency != "usd" || result.TransactionID != session.Transaction.ID {
		t.Fatalf("unexpected result: %+v", result)
	}
	if !result.Updated || !result.CartCleared {
		t.Fatalf("expected an applied transition with cart clear, got %+v", result)
	}

	stored := f.ledger.get(sessionID)
	if stored.Pair() != completePaid || !stored.Amount.Equal(decimal.RequireFromString("199.99")) {
		t.Fatalf("unexpected stored row: %+v", stored)
	}
	if f.carts.clears("user-1") != 1 {
		t.Fatalf("expected one cart clear, got %d", f.carts.clears("user-1"))
	}
	updatedAt := stored.UpdatedAt

	second, err := f.svc.ReconcileStatus(context.Background(), "user-1", sessionID)
	if err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if second.Updated || second.CartCleared || second.Message() != "Payment is paid" {
		t.Fatalf("expected unchanged second poll, got %+v", second)
	}
	if f.carts.clears("user-1") != 1 {
		t.Fatalf("expected cart to be cleared once, got %d", f.carts.clears("user-1"))
	}
	if f.ledger.writeCount() != 1 || !f.ledger.get(sessionID).UpdatedAt.Equal(updatedAt) {
		t.Fatal("expected no ledger write on the second poll")
	}

	if got := testutil.ToFloat64(f.svc.metrics.Reconciliations.WithLabelValues(metrics.ReconcileUpdated)); got != 1 {
		t.Fatalf("expected 1 updated reconciliation, got %v", got)
	}
	if got := testutil.ToFloat64(f.svc.metrics.Reconciliations.WithLabelValues(metrics.ReconcileUnchanged)); got != 1 {
		t.Fatalf("expected 1 unchanged reconciliation, got %v", got)
	}
	if f.events.count(entity.EventTransactionReconciled) != 1 || f.events.count(entity.EventCartCleared) != 1 {
		t.Fatal("expected one reconciled and one cart_cleared event")
	}
	if len(f.publisher.messages) != 2 || f.publisher.messages[1].OldPaymentStatus != entity.PaymentStatusUnpaid {
		t.Fatalf("expected the transition to be published, got %+v", f.publisher.messages)
	}
}

func TestReconcileAmountMismatchKeepsSnapshot(t *testing.T) {
	hook := test.NewGlobal()
	defer hook.Reset()

	f := newServiceFixture()
	session, err := f.svc.CreateCheckout(context.Background(), testCustomer, checkoutRequest(&types.CheckoutItem{ProductId: "prod-headphones", Quantity: 1}))
	if err != nil {
		t.Fatalf("create checkout failed: %v", err)
	}
	sessionID := session.Transaction.SessionID
	f.gateway.setStatus(sessionID, entity.SessionStatusComplete, entity.PaymentStatusPaid, 18000)

	result, err := f.svc.ReconcileStatus(context.Background(), "user-1", sessionID)
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !result.AmountTotal.Equal(decimal.RequireFromString("180.00")) {
		t.Fatalf("expected gateway amount 180.00 in the response, got %s", result.AmountTotal)
	}
	if !f.ledger.get(sessionID).Amount.Equal(decimal.RequireFromString("199.99")) {
		t.Fatalf("expected stored amount to stay 199.99, got %s", f.ledger.get(sessionID).Amount)
	}
	if !result.Updated || !result.CartCleared || result.PaymentStatus != entity.PaymentStatusPaid {
		t.Fatalf("expected the paid transition to apply normally, got %+v", result)
	}
	if f.ledger.get(sessionID).Pair() != completePaid || f.carts.clears("user-1") != 1 {
		t.Fatal("expected the stored pair to move to paid with one cart clear")
	}

	var mismatch *logrus.Entry
	for _, entry := range hook.AllEntries() {
		if entry.Message == "amount_mismatch" {
			mismatch = entry
		}
	}
	if mismatch == nil || mismatch.Level != logrus.WarnLevel {
		t.Fatal("expected an amount_mismatch warning")
	}
	if mismatch.Data["stored_amount"] != "199.99" || mismatch.Data["remote_amount"] != "180.00" {
		t.Fatalf("unexpected mismatch fields: %+v", mismatch.Data)
	}

	hook.Reset()
	if _, err := f.svc.ReconcileStatus(context.Background(), "user-1", sessionID); err != nil {
		t.Fatalf("second reconcile failed: %v", err)
	}
	if f.carts.clears("user-1") != 1 {
		t.Fatal("expected no second cart clear")
	}
}

func TestReconcileUnchangedIsReadOnly(t *testing.T) {
	f := newServiceFixture()
	f.seed("cs_open", "user-1", "10.00", pendingUnpaid, seededAt)
	f.gateway.setStatus("cs_open", entity.SessionStatusPending, entity.PaymentStatusUnpaid, 1000)

	for i := 0; i < 5; i++ {
		result, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_open")
		if err != nil {
			t.Fatalf("reconcile failed: %v", err)
		}
		if result.Updated || result.Message() != "Payment is unpaid" {
			t.Fatalf("unexpected result: %+v", result)
		}
	}
	if f.ledger.writeCount() != 0 || f.carts.clears("user-1") != 0 || len(f.events.items) != 0 {
		t.Fatal("expected no writes, clears or events")
	}
}

func TestReconcileNonPaidTransitionDoesNotClearCart(t *testing.T) {
	f := newServiceFixture()
	f.seed("cs_exp", "user-1", "10.00", pendingUnpaid, seededAt)
	f.gateway.setStatus("cs_exp", entity.SessionStatusExpired, entity.PaymentStatusExpired, 1000)

	result, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_exp")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !result.Updated || result.CartCleared || result.PaymentStatus != entity.PaymentStatusExpired {
		t.Fatalf("unexpected result: %+v", result)
	}
	if f.carts.clears("user-1") != 0 {
		t.Fatal("expected cart to stay intact")
	}
}

func TestReconcilePaidStatusChangeDoesNotClearAgain(t *testing.T) {
	f := newServiceFixture()
	f.seed("cs_paid_open", "user-1", "10.00", entity.StatusPair{Status: entity.SessionStatusOpen, PaymentStatus: entity.PaymentStatusPaid}, seededAt)
	f.gateway.setStatus("cs_paid_open", entity.SessionStatusComplete, entity.PaymentStatusPaid, 1000)

	result, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_paid_open")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !result.Updated || result.CartCleared {
		t.Fatalf("expected a session status update without cart clear, got %+v", result)
	}
	if f.carts.clears("user-1") != 0 {
		t.Fatal("expected no cart clear when paid was already recorded")
	}
}

func TestReconcileRejectsRegressionFromTerminal(t *testing.T) {
	f := newServiceFixture()
	f.seed("cs_paid", "user-1", "10.00", completePaid, seededAt)
	f.gateway.setStatus("cs_paid", entity.SessionStatusOpen, entity.PaymentStatusUnpaid, 1000)

	result, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_paid")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !result.Rejected || result.Updated {
		t.Fatalf("expected a rejected observation, got %+v", result)
	}
	if result.PaymentStatus != entity.PaymentStatusPaid || result.Message() != "Payment is paid" {
		t.Fatalf("expected stored state to be reported, got %+v", result)
	}
	if f.ledger.get("cs_paid").Pair() != completePaid || f.ledger.writeCount() != 0 {
		t.Fatal("expected stored pair to be untouched")
	}
	if f.carts.clears("user-1") != 0 {
		t.Fatal("expected no cart clear")
	}
	if f.events.count(entity.EventReconcileRejected) != 1 {
		t.Fatal("expected a reconcile_rejected event")
	}
}

func TestReconcileForbiddenForOtherUser(t *testing.T) {
	f := newServiceFixture()
	f.seed("cs_theirs", "user-2", "10.00", pendingUnpaid, seededAt)
	f.gateway.setStatus("cs_theirs", entity.SessionStatusComplete, entity.PaymentStatusPaid, 1000)

	_, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_theirs")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if f.ledger.writeCount() != 0 || f.carts.clears("user-1") != 0 || f.carts.clears("user-2") != 0 {
		t.Fatal("expected no write and no cart clear")
	}
}

func TestReconcileLegacyRowWithoutOwnerIsForbidden(t *testing.T) {
	f := newServiceFixture()
	_ = f.ledger.Create(context.Background(), &entity.PaymentTransaction{ID: "tx-legacy", SessionID: "cs_legacy", Status: entity.SessionStatusPending, PaymentStatus: entity.PaymentStatusUnpaid})
	f.gateway.setStatus("cs_legacy", entity.SessionStatusComplete, entity.PaymentStatusPaid, 1000)

	if _, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_legacy"); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestReconcileNotFound(t *testing.T) {
	f := newServiceFixture()
	f.gateway.setStatus("cs_unknown_locally", entity.SessionStatusOpen, entity.PaymentStatusUnpaid, 1000)

	if _, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_unknown_locally"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound, got %v", err)
	}
	if _, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_unknown_remotely"); !errors.Is(err, ErrTransactionNotFound) {
		t.Fatalf("expected ErrTransactionNotFound for unknown gateway session, got %v", err)
	}
}

func TestReconcileGatewayFailureIsUpstream(t *testing.T) {
	f := newServiceFixture()
	f.svc.metrics = metrics.NewCheckoutMetrics(prometheus.NewRegistry())
	f.seed("cs_1", "user-1", "10.00", pendingUnpaid, seededAt)
	f.gateway.statusErr = errBoom

	_, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_1")
	if !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if f.ledger.writeCount() != 0 {
		t.Fatal("expected no ledger write")
	}
	if got := testutil.ToFloat64(f.svc.metrics.Reconciliations.WithLabelValues(metrics.ReconcileError)); got != 1 {
		t.Fatalf("expected 1 errored reconciliation, got %v", got)
	}
}

func TestReconcileLedgerFailureIsUpstream(t *testing.T) {
	f := newServiceFixture()
	f.seed("cs_1", "user-1", "10.00", pendingUnpaid, seededAt)
	f.gateway.setStatus("cs_1", entity.SessionStatusComplete, entity.PaymentStatusPaid, 1000)
	f.ledger.findErr = errBoom

	if _, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_1"); !errors.Is(err, ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
}

func TestReconcileCartClearFailureStillSucceeds(t *testing.T) {
	f := newServiceFixture()
	f.svc.metrics = metrics.NewCheckoutMetrics(prometheus.NewRegistry())
	f.seed("cs_1", "user-1", "10.00", pendingUnpaid, seededAt)
	f.gateway.setStatus("cs_1", entity.SessionStatusComplete, entity.PaymentStatusPaid, 1000)
	f.carts.err = errBoom

	result, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_1")
	if err != nil {
		t.Fatalf("expected reconcile to succeed, got %v", err)
	}
	if !result.Updated || result.CartCleared {
		t.Fatalf("unexpected result: %+v", result)
	}
	if f.ledger.get("cs_1").Pair() != completePaid {
		t.Fatal("expected transition to be stored")
	}
	if f.events.count(entity.EventCartClearFailed) != 1 {
		t.Fatal("expected a cart_clear_failed event")
	}
	if got := testutil.ToFloat64(f.svc.metrics.CartClears.WithLabelValues(metrics.OutcomeFailure)); got != 1 {
		t.Fatalf("expected 1 failed cart clear, got %v", got)
	}
}

func TestReconcileLosingTheRaceDoesNotClearCart(t *testing.T) {
	f := newServiceFixture()
	f.seed("cs_race", "user-1", "10.00", pendingUnpaid, seededAt)
	f.gateway.setStatus("cs_race", entity.SessionStatusComplete, entity.PaymentStatusPaid, 1000)

	// Another poller lands the same transition between our read and our write.
	f.ledger.beforeSwap = func(tx *entity.PaymentTransaction) {
		tx.Status = entity.SessionStatusComplete
		tx.PaymentStatus = entity.PaymentStatusPaid
		f.ledger.beforeSwap = nil
	}

	result, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_race")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if result.Updated || result.CartCleared || result.PaymentStatus != entity.PaymentStatusPaid {
		t.Fatalf("expected the losing caller to converge without side effects, got %+v", result)
	}
	if f.carts.clears("user-1") != 0 {
		t.Fatal("expected the losing caller not to clear the cart")
	}
}

func TestReconcileGivesUpUnderContention(t *testing.T) {
	f := newServiceFixture()
	f.seed("cs_busy", "user-1", "10.00", pendingUnpaid, seededAt)
	f.gateway.setStatus("cs_busy", entity.SessionStatusComplete, entity.PaymentStatusPaid, 1000)

	f.ledger.beforeSwap = func(tx *entity.PaymentTransaction) {
		if tx.Status == entity.SessionStatusPending {
			tx.Status = entity.SessionStatusOpen
		} else {
			tx.Status = entity.SessionStatusPending
		}
	}

	_, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_busy")
	if !errors.Is(err, ErrUpstream) || !errors.Is(err, errReconcileContention) {
		t.Fatalf("expected contention error, got %v", err)
	}
	if f.carts.clears("user-1") != 0 {
		t.Fatal("expected no cart clear")
	}
}

func TestConcurrentReconcileClearsCartExactlyOnce(t *testing.T) {
	f := newServiceFixture()
	f.seed("cs_concurrent", "user-1", "199.99", pendingUnpaid, seededAt)
	f.gateway.setStatus("cs_concurrent", entity.SessionStatusComplete, entity.PaymentStatusPaid, 19999)

	const pollers = 16
	var wg sync.WaitGroup
	var mu sync.Mutex
	updated := 0
	for i := 0; i < pollers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_concurrent")
			if err != nil {
				t.Errorf("reconcile failed: %v", err)
				return
			}
			if result.PaymentStatus != entity.PaymentStatusPaid {
				t.Errorf("expected paid, got %s", result.PaymentStatus)
			}
			if result.Updated {
				mu.Lock()
				updated++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if updated != 1 {
		t.Fatalf("expected exactly one applied transition, got %d", updated)
	}
	if f.carts.clears("user-1") != 1 {
		t.Fatalf("expected exactly one cart clear, got %d", f.carts.clears("user-1"))
	}
	if f.ledger.writeCount() != 1 {
		t.Fatalf("expected exactly one ledger write, got %d", f.ledger.writeCount())
	}
}

func TestReconcileRequiresIdentifiers(t *testing.T) {
	f := newServiceFixture()
	if _, err := f.svc.ReconcileStatus(context.Background(), "", "cs_1"); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if _, err := f.svc.ReconcileStatus(context.Background(), "user-1", " "); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
	if f.gateway.statusCalls != 0 {
		t.Fatal("expected no gateway call for invalid input")
	}
}

func TestReconcileRecordsClearedCartSize(t *testing.T) {
	f := newServiceFixture()
	f.seed("cs_1", "user-1", "10.00", pendingUnpaid, seededAt)
	f.carts.items["user-1"] = []entity.CartItem{{ProductID: "prod-cable", Quantity: 2}, {ProductID: "prod-headphones", Quantity: 1}}
	f.gateway.setStatus("cs_1", entity.SessionStatusComplete, entity.PaymentStatusPaid, 1000)

	result, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_1")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !result.CartCleared {
		t.Fatalf("expected cart clear, got %+v", result)
	}
	event := f.events.last(entity.EventCartCleared)
	if event == nil || event.Detail == nil || *event.Detail != "cleared 2 items" {
		t.Fatalf("expected cleared item count in the event, got %+v", event)
	}
	if len(f.carts.items["user-1"]) != 0 {
		t.Fatalf("expected an empty cart, got %+v", f.carts.items["user-1"])
	}
}

func TestReconcileCartReadFailureStillClears(t *testing.T) {
	f := newServiceFixture()
	f.seed("cs_1", "user-1", "10.00", pendingUnpaid, seededAt)
	f.carts.getErr = errBoom
	f.gateway.setStatus("cs_1", entity.SessionStatusComplete, entity.PaymentStatusPaid, 1000)

	result, err := f.svc.ReconcileStatus(context.Background(), "user-1", "cs_1")
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if !result.CartCleared || f.carts.clears("user-1") != 1 {
		t.Fatalf("expected the clear to proceed, got %+v", result)
	}
	if event := f.events.last(entity.EventCartCleared); event == nil || event.Detail != nil {
		t.Fatalf("expected a cart_cleared event without item count, got %+v", event)
	}
}
