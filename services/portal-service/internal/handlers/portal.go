package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/Sakin08/Doctors-Appointment/libs/auth"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/api"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/directory"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/model"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/notify"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/payment"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/profile"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/slots"
)

// Backend is the part of the booking backend the portal proxies to.
type Backend interface {
	profile.Backend
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, name, email, password string) (string, error)
	BookAppointment(ctx context.Context, token string, in api.BookRequest) (string, error)
	ListAppointments(ctx context.Context, token string) ([]model.Appointment, error)
	CancelAppointment(ctx context.Context, token, appointmentID string) (string, error)
}

// Payments starts an online payment for a booked appointment.
type Payments interface {
	Start(ctx context.Context, appt model.Appointment, email string) (payment.Session, error)
}

type Config struct {
	Location    *time.Location
	SlotOptions []slots.Option
	Currency    model.Currency
	// MaxUploadBytes bounds the multipart profile form.
	MaxUploadBytes int64
	Now            func() time.Time
	// Payments is nil when online payment is not configured.
	Payments Payments
}

type Handler struct {
	backend  Backend
	dir      *directory.Directory
	guard    *profile.Guard
	notifier notify.Notifier
	logger   *slog.Logger
	cfg      Config
}

func New(backend Backend, dir *directory.Directory, notifier notify.Notifier, logger *slog.Logger, cfg Config) *Handler {
	if cfg.Location == nil {
		cfg.Location = time.Local
	}
	if cfg.Currency == "" {
		cfg.Currency = model.DefaultCurrency
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = 5 << 20
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{
		backend:  backend,
		dir:      dir,
		guard:    profile.NewGuard(),
		notifier: notifier,
		logger:   logger,
		cfg:      cfg,
	}
}

func (h *Handler) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/v1/doctors", h.ListDoctors)
	mux.HandleFunc("GET /api/v1/doctors/{id}", h.GetDoctor)
	mux.HandleFunc("GET /api/v1/doctors/{id}/slots", h.DoctorSlots)
	mux.HandleFunc("POST /api/v1/auth/login", h.Login)
	mux.HandleFunc("POST /api/v1/auth/register", h.SignUp)
	mux.HandleFunc("GET /api/v1/profile", h.GetProfile)
	mux.HandleFunc("POST /api/v1/profile", h.UpdateProfile)
	mux.HandleFunc("GET /api/v1/appointments", h.ListAppointments)
	mux.HandleFunc("POST /api/v1/appointments", h.Book)
	mux.HandleFunc("POST /api/v1/appointments/{id}/cancel", h.Cancel)
	mux.HandleFunc("POST /api/v1/appointments/{id}/checkout", h.Checkout)
}

type doctorItem struct {
	model.Doctor
	FeeDisplay        string `json:"fee_display"`
	ExperienceDisplay string `json:"experience_display"`
}

func (h *Handler) doctorView(d model.Doctor) doctorItem {
	return doctorItem{
		Doctor:            d,
		FeeDisplay:        model.FormatFee(d.Fees, h.cfg.Currency),
		ExperienceDisplay: d.Experience.String(),
	}
}

func (h *Handler) ListDoctors(w http.ResponseWriter, r *http.Request) {
	if !h.dir.Loaded() {
		writeError(w, directory.ErrNotLoaded)
		return
	}
	docs := h.dir.List(r.URL.Query().Get("speciality"))
	items := make([]doctorItem, 0, len(docs))
	for _, d := range docs {
		items = append(items, h.doctorView(d))
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "doctors": items})
}

func (h *Handler) GetDoctor(w http.ResponseWriter, r *http.Request) {
	doc, err := h.dir.FindByID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "doctor": h.doctorView(doc)})
}

type slotItem struct {
	StartTime string `json:"start_time"`
	Label     string `json:"label"`
	SlotDate  string `json:"slot_date"`
}

type dayItem struct {
	Date  string     `json:"date"`
	Slots []slotItem `json:"slots"`
}

func (h *Handler) referenceNow(r *http.Request) (time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get("at"))
	if raw == "" {
		return h.cfg.Now().In(h.cfg.Location), nil
	}
	at, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, err
	}
	return at.In(h.cfg.Location), nil
}

func (h *Handler) DoctorSlots(w http.ResponseWriter, r *http.Request) {
	doc, err := h.dir.FindByID(r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	now, err := h.referenceNow(r)
	if err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid at, expected RFC3339")
		return
	}

	groups := slots.Generate(now, h.cfg.SlotOptions...)
	days := make([]dayItem, 0, len(groups))
	for _, g := range groups {
		items := make([]slotItem, 0, len(g.Slots))
		for _, s := range g.Slots {
			items = append(items, slotItem{
				StartTime: s.Start.Format(time.RFC3339),
				Label:     s.Label,
				SlotDate:  s.DateKey(),
			})
		}
		days = append(days, dayItem{Date: g.Date.Format(model.DateLayout), Slots: items})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"doctor_id": doc.ID,
		"available": doc.Available,
		"days":      days,
	})
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	token, err := h.backend.Login(r.Context(), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		h.fail(r.Context(), w, "login", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

func (h *Handler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req credentials
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	token, err := h.backend.Register(r.Context(), strings.TrimSpace(req.Name), strings.TrimSpace(req.Email), req.Password)
	if err != nil {
		h.fail(r.Context(), w, "register", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": token})
}

// sessionToken returns the caller's token, or writes 401 and returns "".
func (h *Handler) sessionToken(w http.ResponseWriter, r *http.Request) string {
	token := strings.TrimSpace(r.Header.Get(api.TokenHeader))
	if !auth.Usable(token, h.cfg.Now()) {
		writeError(w, api.MissingSession("session"))
		return ""
	}
	return token
}

func (h *Handler) profileStore(token string) *profile.Store {
	return profile.New(h.backend, profile.StaticToken(token),
		profile.WithNotifier(h.notifier),
		profile.WithLogger(h.logger),
		profile.WithGuard(h.guard, auth.Fingerprint(token)),
	)
}

func (h *Handler) GetProfile(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(w, r)
	if token == "" {
		return
	}
	p, err := h.profileStore(token).Load(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "userData": p})
}

func (h *Handler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(w, r)
	if token == "" {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, h.cfg.MaxUploadBytes)
	if err := r.ParseMultipartForm(h.cfg.MaxUploadBytes); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid multipart form")
		return
	}

	edited := model.UserProfile{
		Name:   r.FormValue("name"),
		Phone:  r.FormValue("phone"),
		Gender: model.Gender(r.FormValue("gender")),
		DOB:    r.FormValue("dob"),
	}
	if raw := r.FormValue("address"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &edited.Address); err != nil {
			writeMessage(w, http.StatusBadRequest, "address must be a JSON object")
			return
		}
	}

	var image *api.Image
	if file, header, err := r.FormFile("image"); err == nil {
		data, err := io.ReadAll(file)
		_ = file.Close()
		if err != nil {
			writeMessage(w, http.StatusBadRequest, "cannot read image")
			return
		}
		image = &api.Image{Name: header.Filename, ContentType: header.Header.Get("Content-Type"), Data: data}
	}

	store := h.profileStore(token)
	err := store.SaveProfile(r.Context(), edited, image)
	switch {
	case errors.Is(err, profile.ErrReloadFailed):
		p, _ := store.Profile()
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Profile Updated", "warning": api.Message(err), "userData": p})
		return
	case err != nil:
		writeError(w, err)
		return
	}
	p, _ := store.Profile()
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Profile Updated", "userData": p})
}

type appointmentItem struct {
	model.Appointment
	Status string `json:"status"`
}

func (h *Handler) ListAppointments(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(w, r)
	if token == "" {
		return
	}
	appts, err := h.backend.ListAppointments(r.Context(), token)
	if err != nil {
		h.fail(r.Context(), w, "list appointments", err)
		return
	}
	items := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		items = append(items, appointmentItem{Appointment: a, Status: a.Status()})
	}
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "appointments": items})
}

type bookRequest struct {
	DoctorID  string `json:"doctor_id"`
	StartTime string `json:"start_time"`
}

// Book accepts only start times the slot generator offers for the doctor right now.
func (h *Handler) Book(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(w, r)
	if token == "" {
		return
	}
	var req bookRequest
	if err := decodeJSON(r, &req); err != nil {
		writeMessage(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.DoctorID = strings.TrimSpace(req.DoctorID)
	if req.DoctorID == "" {
		writeMessage(w, http.StatusUnprocessableEntity, "doctor_id is required")
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeMessage(w, http.StatusUnprocessableEntity, "invalid start_time")
		return
	}

	doc, err := h.dir.FindByID(req.DoctorID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !doc.Available {
		writeMessage(w, http.StatusUnprocessableEntity, "Doctor Not Available")
		return
	}
	groups := slots.Generate(h.cfg.Now().In(h.cfg.Location), h.cfg.SlotOptions...)
	slot, ok := slots.Find(groups, start)
	if !ok {
		writeMessage(w, http.StatusUnprocessableEntity, "start_time is not an offered slot")
		return
	}

	msg, err := h.backend.BookAppointment(r.Context(), token, api.BookRequest{
		DoctorID: doc.ID,
		SlotDate: slot.DateKey(),
		SlotTime: slot.Label,
	})
	if err != nil {
		h.fail(r.Context(), w, "book appointment", err)
		return
	}
	notify.Success(r.Context(), h.notifier, "book appointment", msg)
	writeJSON(w, http.StatusCreated, map[string]any{
		"success":   true,
		"message":   msg,
		"doctor_id": doc.ID,
		"slot_date": slot.DateKey(),
		"slot_time": slot.Label,
	})
}

func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	token := h.sessionToken(w, r)
	if token == "" {
		return
	}
	msg, err := h.backend.CancelAppointment(r.Context(), token, r.PathValue("id"))
	if err != nil {
		h.fail(r.Context(), w, "cancel appointment", err)
		return
	}
	notify.Success(r.Context(), h.notifier, "cancel appointment", msg)
	writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": msg})
}

// Checkout opens a hosted payment page for one of the caller's booked appointments.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Payments == nil {
		writeMessage(w, http.StatusNotImplemented, "Online payment is not enabled")
		return
	}
	token := h.sessionToken(w, r)
	if token == "" {
		return
	}
	appts, err := h.backend.ListAppointments(r.Context(), token)
	if err != nil {
		h.fail(r.Context(), w, "checkout", err)
		return
	}
	id := r.PathValue("id")
	var appt *model.Appointment
	for i := range appts {
		if appts[i].ID == id {
			appt = &appts[i]
			break
		}
	}
	if appt == nil {
		writeMessage(w, http.StatusNotFound, "Appointment not found")
		return
	}

	email := ""
	if p, err := h.backend.GetProfile(r.Context(), token); err == nil {
		email = p.Email
	} else {
		h.logger.Debug("checkout without customer email", "err", err)
	}
	sess, err := h.cfg.Payments.Start(r.Context(), *appt, email)
	if err != nil {
		h.fail(r.Context(), w, "checkout", err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"success": true, "session_id": sess.ID, "url": sess.URL})
}

func (h *Handler) fail(ctx context.Context, w http.ResponseWriter, op string, err error) {
	h.logger.Warn("backend call failed", "op", op, "err", err)
	notify.Error(ctx, h.notifier, op, api.Message(err))
	writeError(w, err)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, directory.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, directory.ErrNotLoaded):
		return http.StatusServiceUnavailable
	case errors.Is(err, profile.ErrSaveInFlight):
		return http.StatusConflict
	case errors.Is(err, api.ErrAuth):
		return http.StatusUnauthorized
	case errors.Is(err, api.ErrValidation):
		return http.StatusUnprocessableEntity
	case errors.Is(err, api.ErrNetwork):
		return http.StatusServiceUnavailable
	case errors.Is(err, api.ErrAPI):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := statusFor(err)
	msg := api.Message(err)
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeMessage(w, status, msg)
}

func writeMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"success": false, "message": msg})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
