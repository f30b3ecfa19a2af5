package grpc

import (
	"context"
	"errors"

	"github.com/vibast-solutions/ms-go-checkout/app/identity"
	"github.com/vibast-solutions/ms-go-checkout/app/mapper"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type Server struct {
	checkoutService *service.CheckoutService
}

func NewServer(checkoutService *service.CheckoutService) *Server {
	return &Server{checkoutService: checkoutService}
}

func (s *Server) Health(_ context.Context, _ *types.HealthRequest) (*types.HealthResponse, error) {
	return &types.HealthResponse{Status: "ok"}, nil
}

func (s *Server) CreateCheckout(ctx context.Context, req *types.CreateCheckoutRequest) (*types.CreateCheckoutResponse, error) {
	customer, ok := identity.CustomerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}

	l := loggerWithContext(ctx)
	req.Normalize()
	if err := req.Validate(); err != nil {
		l.WithError(err).Debug("Create checkout validation failed")
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	session, err := s.checkoutService.CreateCheckout(ctx, customer, req)
	if err != nil {
		return nil, s.statusError(ctx, err, "Create checkout failed")
	}

	return mapper.CheckoutSessionToProto(session), nil
}

func (s *Server) GetCheckoutStatus(ctx context.Context, req *types.GetCheckoutStatusRequest) (*types.CheckoutStatusResponse, error) {
	customer, ok := identity.CustomerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	result, err := s.checkoutService.ReconcileStatus(ctx, customer.ID, req.GetSessionId())
	if err != nil {
		return nil, s.statusError(ctx, err, "Get checkout status failed")
	}

	return mapper.ReconcileResultToProto(result), nil
}

func (s *Server) ListTransactions(ctx context.Context, req *types.ListTransactionsRequest) (*types.ListTransactionsResponse, error) {
	customer, ok := identity.CustomerFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "authentication required")
	}
	if err := req.Validate(); err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	items, err := s.checkoutService.ListTransactions(ctx, customer.ID, req.GetLimit())
	if err != nil {
		return nil, s.statusError(ctx, err, "List transactions failed")
	}

	return &types.ListTransactionsResponse{Transactions: mapper.TransactionsToProto(items)}, nil
}

func (s *Server) statusError(ctx context.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, service.ErrProductNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, service.ErrTransactionNotFound):
		return status.Error(codes.NotFound, "payment transaction not found")
	case errors.Is(err, service.ErrForbidden):
		return status.Error(codes.PermissionDenied, "access denied")
	case errors.Is(err, service.ErrUpstream):
		loggerWithContext(ctx).WithError(err).Error(logMessage)
		return status.Error(codes.Unavailable, "payment service unavailable")
	default:
		loggerWithContext(ctx).WithError(err).Error(logMessage)
		return status.Error(codes.Internal, "internal server error")
	}
}
