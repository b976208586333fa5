// Package directory caches the doctor list fetched from the backend.
package directory

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	otelx "github.com/Sakin08/Doctors-Appointment/libs/otel"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/api"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/model"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/notify"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrNotFound  = errors.New("doctor not found")
	ErrNotLoaded = errors.New("doctor directory not loaded")
)

type Lister interface {
	ListDoctors(ctx context.Context) ([]model.Doctor, error)
}

type snapshot struct {
	doctors []model.Doctor
	byID    map[string]int
	at      time.Time
}

// Directory is safe for concurrent use. Each refresh swaps in a whole new snapshot.
type Directory struct {
	source   Lister
	notifier notify.Notifier
	logger   *slog.Logger

	current  atomic.Pointer[snapshot]
	loaded   chan struct{}
	markOnce sync.Once
}

func New(source Lister, notifier notify.Notifier, logger *slog.Logger) *Directory {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Directory{
		source:   source,
		notifier: notifier,
		logger:   logger,
		loaded:   make(chan struct{}),
	}
}

// Refresh fetches the list and replaces the snapshot. On failure the previous
// snapshot is kept and the user is notified.
func (d *Directory) Refresh(ctx context.Context) ([]model.Doctor, error) {
	ctx, span := otelx.Tracer("portal/directory").Start(ctx, "directory.refresh")
	defer span.End()

	doctors, err := d.source.ListDoctors(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "refresh failed")
		d.logger.Warn("doctor directory refresh failed", "err", err, "kept", d.Len())
		notify.Error(ctx, d.notifier, "list doctors", api.Message(err))
		return nil, err
	}

	snap := &snapshot{
		doctors: make([]model.Doctor, len(doctors)),
		byID:    make(map[string]int, len(doctors)),
		at:      time.Now().UTC(),
	}
	copy(snap.doctors, doctors)
	for i, doc := range snap.doctors {
		snap.byID[doc.ID] = i
	}
	d.current.Store(snap)
	d.markOnce.Do(func() { close(d.loaded) })

	span.SetAttributes(attribute.Int("doctors.count", len(doctors)))
	d.logger.Debug("doctor directory refreshed", "count", len(doctors))
	return d.All(), nil
}

// All returns a copy of the current list in backend order.
func (d *Directory) All() []model.Doctor {
	snap := d.current.Load()
	if snap == nil {
		return []model.Doctor{}
	}
	out := make([]model.Doctor, len(snap.doctors))
	copy(out, snap.doctors)
	return out
}

// List filters by speciality, case-insensitively. An empty filter returns everything.
func (d *Directory) List(speciality string) []model.Doctor {
	speciality = strings.TrimSpace(speciality)
	all := d.All()
	if speciality == "" {
		return all
	}
	out := make([]model.Doctor, 0, len(all))
	for _, doc := range all {
		if strings.EqualFold(doc.Speciality, speciality) {
			out = append(out, doc)
		}
	}
	return out
}

func (d *Directory) FindByID(id string) (model.Doctor, error) {
	snap := d.current.Load()
	if snap == nil {
		return model.Doctor{}, ErrNotLoaded
	}
	i, ok := snap.byID[id]
	if !ok {
		return model.Doctor{}, ErrNotFound
	}
	return snap.doctors[i], nil
}

func (d *Directory) Len() int {
	snap := d.current.Load()
	if snap == nil {
		return 0
	}
	return len(snap.doctors)
}

func (d *Directory) Loaded() bool {
	return d.current.Load() != nil
}

// RefreshedAt is the time of the last successful refresh.
func (d *Directory) RefreshedAt() (time.Time, bool) {
	snap := d.current.Load()
	if snap == nil {
		return time.Time{}, false
	}
	return snap.at, true
}

// WaitLoaded blocks until the first successful refresh or ctx is done.
func (d *Directory) WaitLoaded(ctx context.Context) error {
	select {
	case <-d.loaded:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (d *Directory) Ready(context.Context) error {
	if !d.Loaded() {
		return ErrNotLoaded
	}
	return nil
}

// Run refreshes every interval until ctx is done. It does not refresh immediately.
func (d *Directory) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_, _ = d.Refresh(ctx)
		}
	}
}
