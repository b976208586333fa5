package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/Sakin08/Doctors-Appointment/libs/db"
	"github.com/Sakin08/Doctors-Appointment/libs/runtime"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/api"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/directory"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/model"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/notify"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/profile"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/session"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/slots"
	"github.com/redis/go-redis/v9"
)

// app is everything one command invocation needs.
type app struct {
	out      io.Writer
	logger   *slog.Logger
	client   *api.Client
	session  *session.Session
	dir      *directory.Directory
	profile  *profile.Store
	notifier notify.Notifier
	loc      *time.Location
	currency model.Currency
	anchor   slots.Anchor
	now      func() time.Time
	closers  []func()
}

func newApp(ctx context.Context, cfg cliConfig, out, errOut io.Writer) (*app, error) {
	logger := runtime.NewTextLogger(errOut, runtime.ParseLevel(cfg.LogLevel, slog.LevelWarn))
	a := &app{
		out:      out,
		logger:   logger,
		notifier: notify.NewWriterNotifier(errOut),
		currency: model.ParseCurrency(cfg.Currency),
		now:      time.Now,
		loc:      time.Local,
	}
	if tz := strings.TrimSpace(cfg.Timezone); tz != "" {
		loc, err := time.LoadLocation(tz)
		if err != nil {
			return nil, fmt.Errorf("timezone: %w", err)
		}
		a.loc = loc
	}
	anchor, err := slots.ParseAnchor(cfg.SlotAnchor)
	if err != nil {
		return nil, err
	}
	a.anchor = anchor

	store, err := a.openTokenStore(ctx, cfg)
	if err != nil {
		a.close()
		return nil, err
	}
	a.session = session.New(store)
	if err := a.session.Restore(ctx); err != nil {
		logger.Warn("stored session unreadable, continuing signed out", "err", err)
	}

	a.client = api.NewClient(cfg.Backend, api.WithLogger(logger))
	a.dir = directory.New(a.client, a.notifier, logger)
	a.profile = profile.New(a.client, a.session, profile.WithNotifier(a.notifier), profile.WithLogger(logger))
	a.closers = append(a.closers, a.profile.Attach(a.session))
	return a, nil
}

func (a *app) openTokenStore(ctx context.Context, cfg cliConfig) (session.TokenStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.TokenStore)) {
	case "memory":
		return session.NewMemoryStore(), nil
	case "", "file":
		return session.NewFileStore(cfg.TokenFile, cfg.Passphrase), nil
	case "redis":
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("token store redis needs --redis-addr")
		}
		rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		a.closers = append(a.closers, func() { _ = rdb.Close() })
		return session.NewRedisStore(rdb, "patientctl:"+cfg.Owner), nil
	case "postgres":
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("token store postgres needs --database-url")
		}
		pool, err := db.Open(ctx, cfg.DatabaseURL, db.Options{})
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		store := session.NewPostgresStore(pool, cfg.Owner)
		if err := store.EnsureSchema(ctx); err != nil {
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown token store %q", cfg.TokenStore)
	}
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

func (a *app) generate(at time.Time) []slots.DaySlotGroup {
	return slots.Generate(at.In(a.loc), slots.WithAnchor(a.anchor))
}

// requireSession fails fast when there is no usable token.
func (a *app) requireSession(op string) (string, error) {
	token := a.session.UsableToken()
	if token == "" {
		err := api.MissingSession(op)
		notify.Error(context.Background(), a.notifier, op, err.UserMessage())
		return "", err
	}
	return token, nil
}

// reject reports a locally refused request the same way a backend refusal is reported.
func (a *app) reject(ctx context.Context, op, message string) error {
	notify.Error(ctx, a.notifier, op, message)
	return api.NewError(op, api.ErrValidation, 0, message, nil)
}
