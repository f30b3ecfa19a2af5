package identity

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/vibast-solutions/ms-go-checkout/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

// RequireCustomer rejects requests without a valid bearer token and stores
// the resolved customer on the request context.
func (v *Verifier) RequireCustomer() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			customer, err := v.Verify(BearerToken(ctx.Request().Header.Get(echo.HeaderAuthorization)))
			if err != nil {
				return ctx.JSON(http.StatusUnauthorized, &types.ErrorResponse{Error: err.Error()})
			}

			req := ctx.Request()
			ctx.SetRequest(req.WithContext(WithCustomer(req.Context(), customer)))
			return next(ctx)
		}
	}
}

// UnaryRequireCustomer is the gRPC counterpart of RequireCustomer. Methods
// listed in public skip the check.
func (v *Verifier) UnaryRequireCustomer(public ...string) grpc.UnaryServerInterceptor {
	skip := make(map[string]struct{}, len(public))
	for _, method := range public {
		skip[method] = struct{}{}
	}

	return func(ctx context.Context, req interface{}, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (interface{}, error) {
		if _, ok := skip[info.FullMethod]; ok {
			return handler(ctx, req)
		}

		var header string
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if values := md.Get("authorization"); len(values) > 0 {
				header = values[0]
			}
		}

		customer, err := v.Verify(BearerToken(header))
		if err != nil {
			return nil, status.Error(codes.Unauthenticated, err.Error())
		}

		return handler(WithCustomer(ctx, customer), req)
	}
}
