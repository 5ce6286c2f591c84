package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	appcart "github.com/Zhima-Mochi/minishop-storefront/internal/application/cart"
	appcheckout "github.com/Zhima-Mochi/minishop-storefront/internal/application/checkout"
	apporder "github.com/Zhima-Mochi/minishop-storefront/internal/application/order"
	"github.com/Zhima-Mochi/minishop-storefront/internal/application/session"
	"github.com/Zhima-Mochi/minishop-storefront/internal/config"
	domcart "github.com/Zhima-Mochi/minishop-storefront/internal/domain/cart"
	domcatalog "github.com/Zhima-Mochi/minishop-storefront/internal/domain/catalog"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/discount"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/minishop-storefront/internal/domain/pricing"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/auth"
	catalogclient "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/catalog"
	httpclient "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/http"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/id"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/memory"
	obsprovider "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/observability/oteltrace"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/observability/prometrics"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/observability/telemetry"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/observability/zaplogger"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/outbox"
	paymentgateway "github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/payment"
	"github.com/Zhima-Mochi/minishop-storefront/internal/infrastructure/redisstore"
	"github.com/Zhima-Mochi/minishop-storefront/internal/observability"
	"github.com/Zhima-Mochi/minishop-storefront/internal/pkg/logging"
	httppresentation "github.com/Zhima-Mochi/minishop-storefront/internal/presentation/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const simulatedPaymentLatency = 1500 * time.Millisecond

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string
	root := &cobra.Command{
		Use:           "storefront",
		Short:         "Cart pricing and checkout service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "", "path to a YAML config file")
	root.AddCommand(serveCmd(&configPath))
	return root
}

func serveCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config) error {
	baseLogger, err := logging.NewLogger(cfg.ServiceName, cfg.Env)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = baseLogger.Sync() }()
	zap.ReplaceGlobals(baseLogger)
	systemLog := zaplogger.Wrap(logging.WithTrace(baseLogger, logging.SystemTraceID, logging.SystemSpanID))

	shutdownTracing, err := telemetry.Setup(cfg.ServiceName, cfg.Env, cfg.Tracing.JaegerEndpoint)
	if err != nil {
		return err
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := shutdownTracing(flushCtx); err != nil {
			systemLog.Warn("tracer_shutdown_failed", observability.F("error", err.Error()))
		}
	}()

	counters, histograms := prometrics.Instruments(prometrics.New("", ""))
	tel := obsprovider.New(oteltrace.New(cfg.ServiceName), zaplogger.Wrap(baseLogger), counters, histograms)

	threshold, fee, err := cfg.Pricing.Amounts()
	if err != nil {
		return err
	}
	multiplier, err := cfg.Catalog.Multiplier()
	if err != nil {
		return err
	}
	codes, err := discount.ParseTable(cfg.Discount.Codes)
	if err != nil {
		return err
	}
	verifier, err := auth.NewStaticVerifier(cfg.Auth.Tokens)
	if err != nil {
		return err
	}
	if cfg.Auth.DevToken {
		systemLog.Warn("auth_dev_token_enabled", observability.F("token", config.DevToken))
	}
	policy := pricing.Policy{FreeShippingThreshold: threshold, DeliveryFee: fee}

	carts, discounts, closeStore, err := buildStores(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	products, err := buildCatalog(cfg, tel)
	if err != nil {
		return err
	}
	gateway, err := buildGateway(cfg, tel)
	if err != nil {
		return err
	}

	locks := session.NewLocks()
	bus := outbox.NewBus(tel)
	orders := memory.NewOrderRepository()
	recordOrder := apporder.NewRecordOrderUseCase(orders, id.NewUUIDGenerator("ord_"), tel)
	apporder.NewWorker(bus, recordOrder, tel).Start()
	bus.Start(ctx)

	cartService := appcart.NewService(appcart.Config{
		Carts:           carts,
		Discounts:       discounts,
		Catalog:         products,
		Codes:           codes,
		Policy:          policy,
		PriceMultiplier: multiplier,
		Locks:           locks,
	}, tel)
	checkout := appcheckout.NewCheckoutUseCase(appcheckout.Config{
		Carts:           carts,
		Discounts:       discounts,
		Gateway:         gateway,
		Policy:          policy,
		Publisher:       bus,
		DefaultCurrency: cfg.Pricing.Currency,
		GatewayTimeout:  cfg.Payment.Timeout,
		Locks:           locks,
	}, tel)

	handler := httppresentation.NewHandler(httppresentation.Deps{
		Cart:     cartService,
		Checkout: checkout,
		Orders:   apporder.NewListOrdersUseCase(orders, tel),
		Verifier: verifier,
		Metrics:  promhttp.Handler(),
	}, tel)

	server := &http.Server{
		Addr:              cfg.HTTP.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		systemLog.Info("http_server_start",
			observability.F("addr", server.Addr),
			observability.F("store_backend", cfg.Store.Backend),
			observability.F("payment_mode", cfg.Payment.Mode),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.HTTP.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			systemLog.Error("http_server_shutdown_error", observability.F("error", err.Error()))
		} else {
			systemLog.Info("http_server_stopped")
		}
		if err := bus.Stop(shutdownCtx); err != nil {
			systemLog.Warn("event_bus_drain_incomplete", observability.F("error", err.Error()))
		}
		return nil
	})
	return g.Wait()
}

func buildStores(ctx context.Context, cfg *config.Config) (domcart.Store, discount.Store, func(), error) {
	switch cfg.Store.Backend {
	case "redis":
		client, err := redisstore.NewClient(ctx, redisstore.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			return nil, nil, nil, err
		}
		ttl := cfg.Store.SessionTTL
		if ttl <= 0 {
			ttl = redisstore.DefaultSessionTTL
		}
		return redisstore.NewCartStore(client, ttl), redisstore.NewDiscountStore(client, ttl),
			func() { _ = client.Close() }, nil
	default:
		return memory.NewCartStore(), memory.NewDiscountStore(), func() {}, nil
	}
}

func buildCatalog(cfg *config.Config, tel observability.Observability) (domcatalog.Catalog, error) {
	if cfg.Catalog.BaseURL == "" {
		return memory.NewSeededCatalog(), nil
	}
	client, err := httpclient.New(cfg.Catalog.BaseURL, "catalog", cfg.Catalog.Timeout, tel)
	if err != nil {
		return nil, err
	}
	return catalogclient.NewHTTPCatalog(client), nil
}

func buildGateway(cfg *config.Config, tel observability.Observability) (payment.Gateway, error) {
	if cfg.Payment.Mode == "http" {
		client, err := httpclient.New(cfg.Payment.BaseURL, "payment", cfg.Payment.Timeout, tel)
		if err != nil {
			return nil, err
		}
		return paymentgateway.NewHTTPGateway(client), nil
	}
	return paymentgateway.NewSimulatedGateway(cfg.Payment.SuccessRate, simulatedPaymentLatency), nil
}
