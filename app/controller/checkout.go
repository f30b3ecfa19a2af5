package controller

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"
	"github.com/vibast-solutions/ms-go-checkout/app/factory"
	"github.com/vibast-solutions/ms-go-checkout/app/identity"
	"github.com/vibast-solutions/ms-go-checkout/app/mapper"
	"github.com/vibast-solutions/ms-go-checkout/app/service"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
)

type CheckoutController struct {
	checkoutService *service.CheckoutService
	logger          logrus.FieldLogger
}

func NewCheckoutController(checkoutService *service.CheckoutService) *CheckoutController {
	return &CheckoutController{
		checkoutService: checkoutService,
		logger:          factory.NewModuleLogger("checkout-controller"),
	}
}

func (c *CheckoutController) Health(ctx echo.Context) error {
	return ctx.JSON(http.StatusOK, &types.HealthResponse{Status: "ok"})
}

func (c *CheckoutController) CreateCheckout(ctx echo.Context) error {
	customer, ok := identity.CustomerFromContext(ctx.Request().Context())
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	req, err := types.NewCreateCheckoutRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request body")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	session, err := c.checkoutService.CreateCheckout(ctx.Request().Context(), customer, req)
	if err != nil {
		return c.handleServiceError(ctx, err, "Create checkout failed")
	}

	return ctx.JSON(http.StatusOK, mapper.CheckoutSessionToProto(session))
}

func (c *CheckoutController) GetCheckoutStatus(ctx echo.Context) error {
	customer, ok := identity.CustomerFromContext(ctx.Request().Context())
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	req, err := types.NewGetCheckoutStatusRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	result, err := c.checkoutService.ReconcileStatus(ctx.Request().Context(), customer.ID, req.GetSessionId())
	if err != nil {
		return c.handleServiceError(ctx, err, "Get checkout status failed")
	}

	return ctx.JSON(http.StatusOK, mapper.ReconcileResultToProto(result))
}

func (c *CheckoutController) ListTransactions(ctx echo.Context) error {
	customer, ok := identity.CustomerFromContext(ctx.Request().Context())
	if !ok {
		return c.writeError(ctx, http.StatusUnauthorized, "authentication required")
	}

	req, err := types.NewListTransactionsRequestFromContext(ctx)
	if err != nil {
		return c.writeError(ctx, http.StatusBadRequest, "invalid request")
	}
	if err := req.Validate(); err != nil {
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	}

	items, err := c.checkoutService.ListTransactions(ctx.Request().Context(), customer.ID, req.GetLimit())
	if err != nil {
		return c.handleServiceError(ctx, err, "List transactions failed")
	}

	return ctx.JSON(http.StatusOK, &types.ListTransactionsResponse{Transactions: mapper.TransactionsToProto(items)})
}

func (c *CheckoutController) handleServiceError(ctx echo.Context, err error, logMessage string) error {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		return c.writeError(ctx, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrProductNotFound):
		return c.writeError(ctx, http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrTransactionNotFound):
		return c.writeError(ctx, http.StatusNotFound, "payment transaction not found")
	case errors.Is(err, service.ErrForbidden):
		return c.writeError(ctx, http.StatusForbidden, "access denied")
	case errors.Is(err, service.ErrUpstream):
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusBadGateway, "payment service unavailable")
	default:
		factory.LoggerWithContext(c.logger, ctx).WithError(err).Error(logMessage)
		return c.writeError(ctx, http.StatusInternalServerError, "internal server error")
	}
}

func (c *CheckoutController) writeError(ctx echo.Context, statusCode int, message string) error {
	return ctx.JSON(statusCode, &types.ErrorResponse{Error: message})
}
