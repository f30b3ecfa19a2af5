package service

import "github.com/vibast-solutions/ms-go-checkout/app/entity"

type transition int

const (
	transitionUnchanged transition = iota
	transitionApply
	transitionReject
)

func (t transition) String() string {
	switch t {
	case transitionUnchanged:
		return "unchanged"
	case transitionApply:
		return "apply"
	default:
		return "reject"
	}
}

// evaluateTransition decides what to do with a remote pair observed for a
// stored one. Terminal values on either axis can only be re-observed.
func evaluateTransition(stored, remote entity.StatusPair) transition {
	if stored == remote {
		return transitionUnchanged
	}
	if !remote.Status.Valid() || !remote.PaymentStatus.Valid() {
		return transitionReject
	}
	if stored.PaymentStatus.IsTerminal() && remote.PaymentStatus != stored.PaymentStatus {
		return transitionReject
	}
	if stored.Status.IsTerminal() && remote.Status != stored.Status {
		return transitionReject
	}
	return transitionApply
}

// firstPaid reports whether moving from stored to next is the first
// observation of a successful payment.
func firstPaid(stored, next entity.StatusPair) bool {
	return stored.PaymentStatus != entity.PaymentStatusPaid && next.PaymentStatus == entity.PaymentStatusPaid
}
