package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
	"github.com/vibast-solutions/ms-go-checkout/app/gateway"
	"github.com/vibast-solutions/ms-go-checkout/app/metrics"
	"github.com/vibast-solutions/ms-go-checkout/app/money"
)

// maxReconcileAttempts bounds the read-compare-swap loop when concurrent
// pollers keep moving the stored pair underneath us.
const maxReconcileAttempts = 3

var errReconcileContention = errors.New("transaction kept changing during reconciliation")

type ReconcileResult struct {
	TransactionID string
	Status        entity.SessionStatus
	PaymentStatus entity.PaymentStatus
	AmountTotal   decimal.Decimal
	Currency      string
	Updated       bool
	Rejected      bool
	CartCleared   bool
}

func (r *ReconcileResult) Message() string {
	return "Payment is " + string(r.PaymentStatus)
}

// ReconcileStatus pulls the processor's view of sessionID and folds it into
// the ledger. Only the caller whose conditional write moves the payment into
// paid clears the owner's cart.
func (s *CheckoutService) ReconcileStatus(ctx context.Context, userID, sessionID string) (*ReconcileResult, error) {
	result, err := s.reconcile(ctx, strings.TrimSpace(userID), strings.TrimSpace(sessionID))
	if err != nil {
		s.metrics.Reconciled(metrics.ReconcileError)
		return nil, err
	}

	switch {
	case result.Rejected:
		s.metrics.Reconciled(metrics.ReconcileRejected)
	case result.Updated:
		s.metrics.Reconciled(metrics.ReconcileUpdated)
	default:
		s.metrics.Reconciled(metrics.ReconcileUnchanged)
	}
	return result, nil
}

func (s *CheckoutService) reconcile(ctx context.Context, userID, sessionID string) (*ReconcileResult, error) {
	if userID == "" || sessionID == "" {
		return nil, ErrInvalidRequest
	}

	started := time.Now()
	remote, err := s.gateway.GetSessionStatus(ctx, sessionID)
	s.metrics.ObserveGateway("get_session_status", started)
	if err != nil {
		if errors.Is(err, gateway.ErrSessionNotFound) {
			return nil, ErrTransactionNotFound
		}
		s.logger.WithError(err).WithField("session_id", sessionID).Error("Fetch checkout session status failed")
		return nil, upstreamError(err)
	}
	remotePair := remote.Pair()
	remoteAmount := money.FromMinorUnits(remote.AmountMinor)

	for attempt := 0; attempt < maxReconcileAttempts; attempt++ {
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
		if attempt == 0 {
			s.checkAmount(tx, remoteAmount, remote.Currency)
		}

		stored := tx.Pair()
		result := &ReconcileResult{
			TransactionID: tx.ID,
			Status:        stored.Status,
			PaymentStatus: stored.PaymentStatus,
			AmountTotal:   remoteAmount,
			Currency:      remote.Currency,
		}

		switch evaluateTransition(stored, remotePair) {
		case transitionUnchanged:
			return result, nil

		case transitionReject:
			s.logger.WithFields(logrus.Fields{
				"session_id":            sessionID,
				"stored_status":         stored.Status,
				"stored_payment_status": stored.PaymentStatus,
				"remote_status":         remotePair.Status,
				"remote_payment_status": remotePair.PaymentStatus,
			}).Warn("reconcile_rejected")
			detail := "remote " + string(remotePair.Status) + "/" + string(remotePair.PaymentStatus) + " regresses stored state"
			s.recordEvent(ctx, tx, entity.EventReconcileRejected, &stored, remotePair, &detail)
			result.Rejected = true
			return result, nil
		}

		applied, err := s.transactions.CompareAndSwapStatus(ctx, sessionID, stored, remotePair, s.now())
		if err != nil {
			return nil, upstreamError(err)
		}
		if !applied {
			continue
		}

		s.recordEvent(ctx, tx, entity.EventTransactionReconciled, &stored, remotePair, nil)
		s.publish(ctx, tx, entity.EventTransactionReconciled, &stored, remotePair)

		result.Status = remotePair.Status
		result.PaymentStatus = remotePair.PaymentStatus
		result.Updated = true
		if firstPaid(stored, remotePair) {
			result.CartCleared = s.clearCart(ctx, tx, remotePair)
		}
		return result, nil
	}

	s.logger.WithField("session_id", sessionID).Warn("Reconciliation gave up after repeated concurrent updates")
	return nil, upstreamError(errReconcileContention)
}

func (s *CheckoutService) clearCart(ctx context.Context, tx *entity.PaymentTransaction, next entity.StatusPair) bool {
	userID := *tx.UserID
	itemCount := -1
	if cart, err := s.carts.Get(ctx, userID); err != nil {
		s.logger.WithError(err).WithField("user_id", userID).Warn("Read cart before clear failed")
	} else if cart != nil {
		itemCount = len(cart.Items)
	}

	err := s.carts.ClearItems(ctx, userID)
	s.metrics.CartCleared(err == nil)
	if err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"session_id": tx.SessionID,
			"user_id":    userID,
		}).Error("cart_clear_failed")
		detail := err.Error()
		s.recordEvent(ctx, tx, entity.EventCartClearFailed, nil, next, &detail)
		return false
	}

	var detail *string
	if itemCount >= 0 {
		cleared := "cleared " + strconv.Itoa(itemCount) + " items"
		detail = &cleared
	}
	s.recordEvent(ctx, tx, entity.EventCartCleared, nil, next, detail)
	return true
}

// checkAmount compares the stored snapshot with the processor total. Both
// sides are in major units here.
func (s *CheckoutService) checkAmount(tx *entity.PaymentTransaction, remoteAmount decimal.Decimal, remoteCurrency string) {
	if money.Normalize(tx.Amount).Equal(remoteAmount) && strings.EqualFold(tx.Currency, remoteCurrency) {
		return
	}
	s.logger.WithFields(logrus.Fields{
		"session_id":      tx.SessionID,
		"stored_amount":   tx.Amount.StringFixed(2),
		"stored_currency": tx.Currency,
		"remote_amount":   remoteAmount.StringFixed(2),
		"remote_currency": remoteCurrency,
	}).Warn("amount_mismatch")
}
