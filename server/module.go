package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"

	"github.com/xraph/botrelay"
	"github.com/xraph/botrelay/api"
	"github.com/xraph/botrelay/id"
	"github.com/xraph/botrelay/inbound"
	"github.com/xraph/botrelay/notify"
	"github.com/xraph/botrelay/observability"
	"github.com/xraph/botrelay/ratelimit"
	"github.com/xraph/botrelay/store"
	"github.com/xraph/botrelay/webhook"
	"github.com/xraph/botrelay/webhook/telegram"
)

// closeMargin is the stop budget left for closing the bus and the store
// after the deregistration sweep.
const closeMargin = 5 * time.Second

// Module wires a complete botrelay process. OnStart runs the relay
// (subscribe, then register every enabled bot) before the listener opens;
// OnStop runs in reverse, so the HTTP server drains before webhooks are
// deregistered and the store is closed last.
func Module(cfg Config, logger *slog.Logger) fx.Option {
	if cfg.InstanceID == "" {
		cfg.InstanceID = id.NewInstanceID().String()
	}
	return fx.Options(
		fx.StartTimeout(StartTimeout(cfg)),
		fx.StopTimeout(StopTimeout(cfg)),
		fx.Supply(cfg, logger),
		fx.WithLogger(func(l *slog.Logger) fxevent.Logger {
			return &fxevent.SlogLogger{Logger: l.With("component", "fx")}
		}),

		fx.Provide(
			provideRegistry,
			provideMetrics,
			provideStore,
			provideBus,
			provideClient,
			provideRelay,
			provideHandler,
		),

		fx.Invoke(registerServer),
	)
}

// StartTimeout is the startup budget Module gives fx.
func StartTimeout(cfg Config) time.Duration {
	if cfg.StartTimeout <= 0 {
		return fx.DefaultTimeout
	}
	return cfg.StartTimeout
}

// StopTimeout is the shutdown budget Module gives fx: the HTTP drain, then
// the full deregistration sweep, then closing the bus and the store.
func StopTimeout(cfg Config) time.Duration {
	d := cfg.HTTP.ShutdownTimeout + cfg.ShutdownTimeout + closeMargin
	if cfg.HTTP.ShutdownTimeout <= 0 || cfg.ShutdownTimeout <= 0 {
		d = max(d, fx.DefaultTimeout)
	}
	return d
}

// provideRegistry returns a fresh registry with the Go and process
// collectors attached.
func provideRegistry() (*prometheus.Registry, prometheus.Registerer, prometheus.Gatherer) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg, reg, reg
}

func provideMetrics(reg prometheus.Registerer) *observability.Metrics {
	return observability.NewMetrics(reg)
}

func provideStore(lc fx.Lifecycle, cfg Config, logger *slog.Logger) (store.Store, error) {
	s, err := OpenStore(context.Background(), cfg.Store)
	if err != nil {
		return nil, err
	}
	logger.Info("store ready", "driver", cfg.Store.Driver)
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return s.Close()
		},
	})
	return s, nil
}

// provideBus does not register a close hook: the Relay closes its bus on Stop.
func provideBus(cfg Config, logger *slog.Logger) (notify.Bus, error) {
	return OpenBus(cfg.Bus, cfg.InstanceID, logger)
}

func provideClient(cfg Config) webhook.Client {
	return telegram.New(telegram.Config{
		APIServer:          cfg.Telegram.APIServer,
		Timeout:            cfg.Telegram.Timeout,
		DropPendingUpdates: cfg.Telegram.DropPendingUpdates,
	})
}

type relayDeps struct {
	fx.In

	Config  Config
	Store   store.Store
	Bus     notify.Bus
	Client  webhook.Client
	Metrics *observability.Metrics
	Logger  *slog.Logger
}

func provideRelay(lc fx.Lifecycle, d relayDeps) (*botrelay.Relay, error) {
	r, err := botrelay.New(
		botrelay.WithConfig(d.Config.Config),
		botrelay.WithStore(d.Store),
		botrelay.WithBus(d.Bus),
		botrelay.WithClient(d.Client),
		botrelay.WithMetrics(d.Metrics),
		botrelay.WithLogger(d.Logger),
	)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStart: r.Start,
		OnStop:  r.Stop,
	})
	return r, nil
}

type handlerDeps struct {
	fx.In

	Config   Config
	Relay    *botrelay.Relay
	Metrics  *observability.Metrics
	Gatherer prometheus.Gatherer
	Logger   *slog.Logger
}

func provideHandler(d handlerDeps) http.Handler {
	return api.NewHandler(
		d.Relay.Bots(),
		d.Relay.Coordinator(),
		d.Relay.Notifier(),
		d.Relay.Store(),
		api.Config{
			RegisterPath: d.Config.RegisterPath,
			SecretKey:    d.Config.SecretKey,
			JWTSecret:    d.Config.Auth.JWTSecret,
			JWTIssuer:    d.Config.Auth.JWTIssuer,
			InstanceID:   d.Relay.InstanceID(),
			Inbound:      inbound.NewEcho(d.Config.Inbound.Greeting, d.Logger),
			Limiter:      ratelimit.New(d.Config.Inbound.RatePerSecond, d.Config.Inbound.Burst),
			Metrics:      d.Metrics,
			Gatherer:     d.Gatherer,
		},
		d.Logger,
	)
}

func registerServer(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg Config, h http.Handler, logger *slog.Logger) {
	srv := &http.Server{
		Addr:         cfg.HTTP.Addr,
		Handler:      h,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ln, err := net.Listen("tcp", srv.Addr)
			if err != nil {
				return fmt.Errorf("botrelay/server: listen %s: %w", srv.Addr, err)
			}
			logger.Info("http server starting", "addr", ln.Addr().String())
			go func() {
				if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Error("http server failed", "error", err)
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("http server stopping")
			if d := cfg.HTTP.ShutdownTimeout; d > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, d)
				defer cancel()
			}
			return srv.Shutdown(ctx)
		},
	})
}
