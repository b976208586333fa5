// Package profile keeps the signed-in patient's profile and an edit buffer
// that is only committed by an explicit save.
package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	otelx "github.com/Sakin08/Doctors-Appointment/libs/otel"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/api"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/model"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/notify"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/session"
	"go.opentelemetry.io/otel/codes"
)

var (
	ErrNotLoaded     = errors.New("profile not loaded")
	ErrSaveInFlight  = errors.New("profile save already in progress")
	ErrReadOnlyField = errors.New("field cannot be edited")
	ErrUnknownField  = errors.New("unknown profile field")
	ErrInvalidValue  = errors.New("invalid field value")

	// ErrReloadFailed means the backend accepted the save but the fresh copy could not be fetched.
	ErrReloadFailed = errors.New("profile saved but reload failed")
)

type Backend interface {
	GetProfile(ctx context.Context, token string) (model.UserProfile, error)
	UpdateProfile(ctx context.Context, token string, in api.UpdateProfileRequest) (string, error)
}

type TokenSource interface {
	UsableToken() string
}

// StaticToken serves a fixed token, for request-scoped stores.
type StaticToken string

func (t StaticToken) UsableToken() string { return string(t) }

type Store struct {
	backend  Backend
	tokens   TokenSource
	notifier notify.Notifier
	logger   *slog.Logger
	guard    *Guard
	guardKey string

	mu        sync.Mutex
	canonical *model.UserProfile
	draft     model.UserProfile
	image     *api.Image
	editing   bool
}

type Option func(*Store)

func WithNotifier(n notify.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithGuard shares g with other stores; saves are serialised per key.
func WithGuard(g *Guard, key string) Option {
	return func(s *Store) {
		if g != nil {
			s.guard, s.guardKey = g, key
		}
	}
}

func New(backend Backend, tokens TokenSource, opts ...Option) *Store {
	s := &Store{
		backend:  backend,
		tokens:   tokens,
		logger:   slog.New(slog.DiscardHandler),
		guard:    NewGuard(),
		guardKey: "self",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Attach loads the profile whenever sess gets a new token and drops it on logout.
func (s *Store) Attach(sess *session.Session) func() {
	return sess.Subscribe(func(ctx context.Context, token string) {
		if token == "" {
			s.reset()
			return
		}
		_, _ = s.Load(ctx)
	})
}

func (s *Store) reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.canonical = nil
	s.draft = model.UserProfile{}
	s.image = nil
	s.editing = false
}

func (s *Store) Load(ctx context.Context) (model.UserProfile, error) {
	const op = "get profile"
	token := s.tokens.UsableToken()
	if token == "" {
		err := api.MissingSession(op)
		notify.Error(ctx, s.notifier, op, err.UserMessage())
		return model.UserProfile{}, err
	}
	p, err := s.backend.GetProfile(ctx, token)
	if err != nil {
		s.logger.Warn("profile load failed", "err", err)
		notify.Error(ctx, s.notifier, op, api.Message(err))
		return model.UserProfile{}, err
	}
	s.mu.Lock()
	s.canonical = &p
	if !s.editing {
		s.draft = p
	}
	s.mu.Unlock()
	return p, nil
}

func (s *Store) Profile() (model.UserProfile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canonical == nil {
		return model.UserProfile{}, false
	}
	return *s.canonical, true
}

func (s *Store) BeginEdit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canonical == nil {
		return ErrNotLoaded
	}
	if !s.editing {
		s.draft = *s.canonical
		s.image = nil
		s.editing = true
	}
	return nil
}

func (s *Store) Editing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.editing
}

func (s *Store) Draft() model.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.draft
}

// SetField stages one field by name. Address lines are "address.line1" and "address.line2".
func (s *Store) SetField(name, value string) error {
	if err := s.BeginEdit(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return applyField(&s.draft, name, value)
}

func applyField(p *model.UserProfile, name, value string) error {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "name":
		p.Name = value
	case "phone":
		p.Phone = value
	case "gender":
		g := model.Gender(value)
		if !g.Valid() {
			return fmt.Errorf("%w: gender must be %s or %s", ErrInvalidValue, model.GenderMale, model.GenderFemale)
		}
		p.Gender = g
	case "dob":
		if _, err := time.Parse(model.DateLayout, value); err != nil {
			return fmt.Errorf("%w: dob must look like %s", ErrInvalidValue, model.DateLayout)
		}
		p.DOB = value
	case "address.line1":
		p.Address.Line1 = value
	case "address.line2":
		p.Address.Line2 = value
	case "email", "_id", "id", "image":
		return fmt.Errorf("%w: %s", ErrReadOnlyField, name)
	default:
		return fmt.Errorf("%w: %s", ErrUnknownField, name)
	}
	return nil
}

func (s *Store) SetImage(img *api.Image) error {
	if err := s.BeginEdit(); err != nil {
		return err
	}
	s.mu.Lock()
	s.image = img
	s.mu.Unlock()
	return nil
}

// Discard drops staged edits.
func (s *Store) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canonical != nil {
		s.draft = *s.canonical
	}
	s.image = nil
	s.editing = false
}

func (s *Store) Saving() bool {
	return s.guard.Busy(s.guardKey)
}

// Save commits the staged draft.
func (s *Store) Save(ctx context.Context) error {
	s.mu.Lock()
	if !s.editing {
		s.mu.Unlock()
		return nil
	}
	draft, image := s.draft, s.image
	s.mu.Unlock()
	return s.SaveProfile(ctx, draft, image)
}

// SaveProfile sends edited to the backend and reloads the canonical profile on success.
// A failed save never changes the canonical profile. Validation failures also reset the draft.
func (s *Store) SaveProfile(ctx context.Context, edited model.UserProfile, image *api.Image) error {
	const op = "update profile"
	release, ok := s.guard.Acquire(s.guardKey)
	if !ok {
		return ErrSaveInFlight
	}
	defer release()

	ctx, span := otelx.Tracer("portal/profile").Start(ctx, "profile.save")
	defer span.End()

	token := s.tokens.UsableToken()
	if token == "" {
		err := api.MissingSession(op)
		s.keepDraft(edited, image)
		notify.Error(ctx, s.notifier, op, err.UserMessage())
		return err
	}

	msg, err := s.backend.UpdateProfile(ctx, token, api.UpdateProfileRequest{
		Name:    edited.Name,
		Phone:   edited.Phone,
		Address: edited.Address,
		Gender:  edited.Gender,
		DOB:     edited.DOB,
		Image:   image,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		if errors.Is(err, api.ErrValidation) {
			s.Discard()
		} else {
			s.keepDraft(edited, image)
		}
		s.logger.Warn("profile save failed", "err", err)
		notify.Error(ctx, s.notifier, op, api.Message(err))
		return err
	}

	s.mu.Lock()
	s.editing = false
	s.image = nil
	s.mu.Unlock()
	if msg == "" {
		msg = "Profile Updated"
	}
	notify.Success(ctx, s.notifier, op, msg)

	if _, err := s.Load(ctx); err != nil {
		s.assumeSaved(edited)
		return fmt.Errorf("%w: %w", ErrReloadFailed, err)
	}
	return nil
}

// assumeSaved installs the submitted values as the canonical profile when the
// backend committed them but could not be re-read. The avatar URL stays stale
// until the next successful load.
func (s *Store) assumeSaved(edited model.UserProfile) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.canonical != nil {
		edited.Image = s.canonical.Image
	}
	s.canonical = &edited
	s.draft = edited
}

func (s *Store) keepDraft(edited model.UserProfile, image *api.Image) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.draft = edited
	s.image = image
	s.editing = true
}
