package main

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/Sakin08/Doctors-Appointment/libs/config"
	"github.com/Sakin08/Doctors-Appointment/libs/grpcx"
	"github.com/Sakin08/Doctors-Appointment/libs/httpx"
	"github.com/Sakin08/Doctors-Appointment/libs/kafkax"
	otelx "github.com/Sakin08/Doctors-Appointment/libs/otel"
	"github.com/Sakin08/Doctors-Appointment/libs/runtime"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/api"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/directory"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/handlers"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/model"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/notify"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/payment"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/slots"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "portal-service")
	port, err := config.Port("PORT", "8090")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	backendURL := config.String("BACKEND_URL", "http://localhost:4000")
	client := api.NewClient(backendURL,
		api.WithLogger(logger),
		api.WithHTTPClient(&http.Client{
			Timeout:   config.Duration("BACKEND_TIMEOUT", 10*time.Second),
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		}),
	)

	notifier := notify.Multi{notify.NewLogNotifier(logger)}
	var checks []runtime.ReadyCheck
	if brokers := strings.TrimSpace(config.String("KAFKA_BROKERS", "")); brokers != "" {
		writer := kafkax.NewWriter(brokers)
		defer func() { _ = writer.Close() }()
		notifier = append(notifier, notify.NewKafkaNotifier(writer, config.String("NOTIFY_TOPIC", notify.DefaultTopic), logger))
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
		logger.Info("notification publishing enabled", "brokers", brokers)
	}

	dir := directory.New(client, notifier, logger)
	checks = append([]runtime.ReadyCheck{{Name: "directory", Check: dir.Ready}}, checks...)

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: "portal",
			Name:      "directory_doctors",
			Help:      "Doctors held by the in-memory directory.",
		}, func() float64 { return float64(dir.Len()) }),
	)

	loc, err := loadLocation(config.String("TIMEZONE", ""))
	if err != nil {
		logger.Error("invalid TIMEZONE, using local time", "err", err)
		loc = time.Local
	}
	anchor, err := slots.ParseAnchor(config.String("SLOT_CLOSE_ANCHOR", "tomorrow"))
	if err != nil {
		logger.Error("invalid SLOT_CLOSE_ANCHOR, using tomorrow", "err", err)
	}

	currency := model.ParseCurrency(config.String("FEE_CURRENCY", "bdt"))
	var payments handlers.Payments
	if key := strings.TrimSpace(config.String("STRIPE_SECRET_KEY", "")); key != "" {
		checkout, err := payment.New(payment.Config{
			SecretKey:  key,
			SuccessURL: config.String("CHECKOUT_SUCCESS_URL", ""),
			CancelURL:  config.String("CHECKOUT_CANCEL_URL", ""),
			Currency:   currency,
			APIURL:     config.String("STRIPE_API_URL", ""),
			HTTPClient: &http.Client{Timeout: 20 * time.Second, Transport: otelhttp.NewTransport(http.DefaultTransport)},
		})
		if err != nil {
			logger.Error("online payment disabled", "err", err)
		} else {
			payments = checkout
			logger.Info("online payment enabled", "currency", string(currency))
		}
	}

	h := handlers.New(client, dir, notifier, logger, handlers.Config{
		Location: loc,
		SlotOptions: []slots.Option{
			slots.WithDays(config.Int("SLOT_DAYS", slots.DefaultDays)),
			slots.WithAnchor(anchor),
		},
		Currency:       currency,
		MaxUploadBytes: int64(config.Int("PROFILE_UPLOAD_LIMIT_BYTES", 5<<20)),
		Payments:       payments,
	})

	var rateLimitMW httpx.Middleware
	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "portal:rl"))
		rateLimitMW = rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
		checks = append(checks, runtime.ReadyCheck{Name: "redis", Check: func(ctx context.Context) error {
			return rdb.Ping(ctx).Err()
		}})
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rateLimitMW = httpx.NewRateLimiter(limitPerMinute, time.Minute).Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := buildHandler(serverDeps{
		logger:    logger,
		routes:    h,
		checks:    checks,
		registry:  reg,
		rateLimit: rateLimitMW,
		bodyLimit: int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 6<<20)),
		timeout:   config.Duration("REQUEST_TIMEOUT", 15*time.Second),
		cors: httpx.CORSPolicy{
			AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS", ""),
			AllowedMethods:   config.List("CORS_ALLOWED_METHODS", "GET,POST,OPTIONS"),
			AllowedHeaders:   config.List("CORS_ALLOWED_HEADERS", "Content-Type,X-Request-Id,token"),
			ExposedHeaders:   []string{httpx.RequestIDHeader},
			AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
			MaxAge:           config.Duration("CORS_MAX_AGE", 10*time.Minute),
		},
	})

	go func() {
		refreshUntilLoaded(ctx, dir, logger, config.Duration("DIRECTORY_RETRY_INTERVAL", 5*time.Second))
		dir.Run(ctx, config.Duration("DIRECTORY_REFRESH_INTERVAL", 5*time.Minute))
	}()

	if grpcPort := config.String("GRPC_PORT", ""); grpcPort != "" {
		lis, err := net.Listen("tcp", ":"+grpcPort)
		if err != nil {
			logger.Error("grpc listen failed", "err", err)
			os.Exit(1)
		}
		hs := grpcx.NewHealthServer(logger)
		go func() {
			if err := dir.WaitLoaded(ctx); err == nil {
				hs.SetServing(true)
			}
		}()
		go func() {
			if err := hs.Serve(ctx, lis); err != nil {
				logger.Error("grpc health server error", "err", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := runtime.Serve(ctx, srv, logger, 10*time.Second); err != nil {
		os.Exit(1)
	}
}

type serverDeps struct {
	logger    *slog.Logger
	routes    *handlers.Handler
	checks    []runtime.ReadyCheck
	registry  *prometheus.Registry
	rateLimit httpx.Middleware
	bodyLimit int64
	timeout   time.Duration
	cors      httpx.CORSPolicy
}

// buildHandler assembles the middleware stack. Nothing between the access log and the mux
// may replace the request, or the matched route pattern is lost.
func buildHandler(d serverDeps) http.Handler {
	mux := runtime.NewBaseMuxWithReady(d.checks...)
	d.routes.Routes(mux)
	mux.Handle("GET /metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))

	metrics := httpx.NewMetrics(d.registry, "portal")
	handler := httpx.Chain(mux,
		httpx.WithCORS(d.cors),
		httpx.WithRequestID,
		httpx.WithTimeout(d.timeout),
		httpx.WithAccessLog(d.logger),
		metrics.Middleware(),
		httpx.WithRecover,
		httpx.WithBodyLimit(d.bodyLimit),
		d.rateLimit,
	)
	return otelhttp.NewHandler(handler, "portal")
}

// refreshUntilLoaded retries the first directory load until it succeeds or ctx ends.
func refreshUntilLoaded(ctx context.Context, dir *directory.Directory, logger *slog.Logger, retry time.Duration) {
	if retry <= 0 {
		retry = 5 * time.Second
	}
	for {
		if _, err := dir.Refresh(ctx); err == nil {
			logger.Info("doctor directory loaded", "doctors", dir.Len())
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(retry):
		}
	}
}

func loadLocation(name string) (*time.Location, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return time.Local, nil
	}
	return time.LoadLocation(name)
}
