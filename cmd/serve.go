package cmd

import (
	"context"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	authclient "github.com/vibast-solutions/lib-go-auth/client"
	authmiddleware "github.com/vibast-solutions/lib-go-auth/middleware"
	authlibservice "github.com/vibast-solutions/lib-go-auth/service"
	"github.com/vibast-solutions/ms-go-checkout/app/controller"
	checkoutgrpc "github.com/vibast-solutions/ms-go-checkout/app/grpc"
	"github.com/vibast-solutions/ms-go-checkout/app/identity"
	"github.com/vibast-solutions/ms-go-checkout/app/metrics"
	"github.com/vibast-solutions/ms-go-checkout/config"
	"google.golang.org/grpc"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP and gRPC servers",
	Long:  "Start both HTTP (Echo) and gRPC servers for the checkout service.",
	Run:   runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// internalAccess holds the optional service-to-service guards. Both are nil
// when no auth service address is configured.
type internalAccess struct {
	echo *authmiddleware.EchoInternalAuthMiddleware
	grpc *authmiddleware.GRPCInternalAuthMiddleware
}

func runServe(_ *cobra.Command, _ []string) {
	app := mustCreateApplication(true)
	defer app.cleanup()
	cfg := app.cfg

	checkoutController := controller.NewCheckoutController(app.service)
	grpcCheckoutServer := checkoutgrpc.NewServer(app.service)
	verifier := identity.NewVerifier(cfg.Auth.JWTSecret, cfg.Auth.Issuer)

	var access internalAccess
	if cfg.InternalEndpoints.AuthGRPCAddr != "" {
		authGRPCClient, err := authclient.NewGRPCClientFromAddr(context.Background(), cfg.InternalEndpoints.AuthGRPCAddr)
		if err != nil {
			logrus.WithError(err).Fatal("Failed to initialize auth gRPC client")
		}
		defer authGRPCClient.Close()

		internalAuthService := authlibservice.NewInternalAuthService(authGRPCClient)
		access.echo = authmiddleware.NewEchoInternalAuthMiddleware(internalAuthService)
		access.grpc = authmiddleware.NewGRPCInternalAuthMiddleware(internalAuthService)
	}

	e := setupHTTPServer(checkoutController, verifier, access, app.metrics, app.registry, cfg.App.ServiceName)
	grpcSrv, lis := setupGRPCServer(cfg, grpcCheckoutServer, verifier, access)

	go func() {
		httpAddr := net.JoinHostPort(cfg.HTTP.Host, cfg.HTTP.Port)
		logrus.WithField("addr", httpAddr).Info("Starting HTTP server")
		if err := e.Start(httpAddr); err != nil && err != http.ErrServerClosed {
			logrus.WithError(err).Fatal("HTTP server error")
		}
	}()

	go func() {
		logrus.WithField("addr", lis.Addr().String()).Info("Starting gRPC server")
		if err := grpcSrv.Serve(lis); err != nil {
			logrus.WithError(err).Fatal("gRPC server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logrus.Info("Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		logrus.WithError(err).Warn("HTTP shutdown error")
	}
	grpcSrv.GracefulStop()

	logrus.Info("Server stopped")
}

func setupHTTPServer(
	checkoutController *controller.CheckoutController,
	verifier *identity.Verifier,
	access internalAccess,
	checkoutMetrics *metrics.CheckoutMetrics,
	gatherer prometheus.Gatherer,
	appServiceName string,
) *echo.Echo {
	e := echo.New()
	e.HideBanner = true

	e.Use(echomiddleware.RequestLoggerWithConfig(echomiddleware.RequestLoggerConfig{
		LogURI:       true,
		LogStatus:    true,
		LogMethod:    true,
		LogRemoteIP:  true,
		LogLatency:   true,
		LogUserAgent: true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(_ echo.Context, v echomiddleware.RequestLoggerValues) error {
			fields := logrus.Fields{
				"remote_ip":  v.RemoteIP,
				"host":       v.Host,
				"method":     v.Method,
				"uri":        v.URI,
				"status":     v.Status,
				"latency":    v.Latency.String(),
				"latency_ns": v.Latency.Nanoseconds(),
				"user_agent": v.UserAgent,
				"request_id": v.RequestID,
			}
			entry := logrus.WithFields(fields)
			if v.Error != nil {
				entry = entry.WithError(v.Error)
			}
			entry.Info("http_request")
			return nil
		},
	}))
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(assignRequestID())
	e.Use(checkoutMetrics.EchoMiddleware())
	if access.echo != nil {
		e.Use(access.echo.RequireInternalAccess(appServiceName))
	}

	e.GET("/health", checkoutController.Health)
	if gatherer != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(gatherer)))
	}

	checkout := e.Group("/checkout", verifier.RequireCustomer())
	checkout.POST("", checkoutController.CreateCheckout)
	checkout.GET("/status/:session_id", checkoutController.GetCheckoutStatus)
	checkout.GET("/transactions", checkoutController.ListTransactions)

	return e
}

// assignRequestID keeps a caller supplied X-Request-ID and mints one for
// browser traffic that arrives without it.
func assignRequestID() echo.MiddlewareFunc {
	return echomiddleware.RequestIDWithConfig(echomiddleware.RequestIDConfig{
		Generator: uuid.NewString,
	})
}

func setupGRPCServer(
	cfg *config.Config,
	checkoutServer *checkoutgrpc.Server,
	verifier *identity.Verifier,
	access internalAccess,
) (*grpc.Server, net.Listener) {
	grpcAddr := net.JoinHostPort(cfg.GRPC.Host, cfg.GRPC.Port)
	lis, err := net.Listen("tcp", grpcAddr)
	if err != nil {
		logrus.WithError(err).Fatal("Failed to listen on gRPC port")
	}

	grpcSrv := grpc.NewServer(grpc.ChainUnaryInterceptor(unaryInterceptors(verifier, access, cfg.App.ServiceName)...))
	checkoutgrpc.RegisterCheckoutServiceServer(grpcSrv, checkoutServer)

	return grpcSrv, lis
}

func unaryInterceptors(verifier *identity.Verifier, access internalAccess, appServiceName string) []grpc.UnaryServerInterceptor {
	interceptors := []grpc.UnaryServerInterceptor{
		checkoutgrpc.RecoveryInterceptor(),
		checkoutgrpc.RequestIDInterceptor(),
		checkoutgrpc.LoggingInterceptor(),
	}
	if access.grpc != nil {
		interceptors = append(interceptors, access.grpc.UnaryRequireInternalAccess(appServiceName))
	}

	return append(interceptors, verifier.UnaryRequireCustomer(checkoutgrpc.FullMethod("Health")))
}
