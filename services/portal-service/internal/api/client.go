package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"strings"
	"time"

	"github.com/Sakin08/Doctors-Appointment/libs/httpx"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/model"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// TokenHeader is the header the backend reads the session token from.
const TokenHeader = "token"

const maxResponseBytes = 4 << 20

// Client talks to the booking backend's REST API.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout:   10 * time.Second,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) BaseURL() string { return c.baseURL }

// envelope is the reply shape shared by every backend endpoint.
type envelope struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message"`
	Token        string              `json:"token"`
	Doctors      []model.Doctor      `json:"doctors"`
	UserData     *model.UserProfile  `json:"userData"`
	Appointments []model.Appointment `json:"appointments"`
}

type call struct {
	op          string
	method      string
	path        string
	token       string
	body        io.Reader
	contentType string
	refusal     error
}

func (c *Client) do(ctx context.Context, cl call) (*envelope, error) {
	req, err := http.NewRequestWithContext(ctx, cl.method, c.baseURL+cl.path, cl.body)
	if err != nil {
		return nil, NewError(cl.op, ErrNetwork, 0, "", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set(httpx.RequestIDHeader, httpx.EnsureRequestID(ctx))
	if cl.contentType != "" {
		req.Header.Set("Content-Type", cl.contentType)
	}
	if cl.token != "" {
		req.Header.Set(TokenHeader, cl.token)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("backend request failed", "op", cl.op, "err", err)
		return nil, NewError(cl.op, ErrNetwork, 0, "", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, NewError(cl.op, ErrNetwork, resp.StatusCode, "", err)
	}
	c.logger.Debug("backend request",
		"op", cl.op,
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return nil, NewError(cl.op, ErrNetwork, resp.StatusCode, "", fmt.Errorf("decode reply: %w", err))
		}
		msg := strings.TrimSpace(string(raw))
		if len(msg) > 200 {
			msg = msg[:200]
		}
		return nil, NewError(cl.op, failureKind(resp.StatusCode, msg, cl.refusal), resp.StatusCode, msg, nil)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !env.Success {
		return nil, NewError(cl.op, failureKind(resp.StatusCode, env.Message, cl.refusal), resp.StatusCode, env.Message, nil)
	}
	return &env, nil
}

func jsonBody(v any) (io.Reader, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return bytes.NewReader(raw), nil
}

func (c *Client) ListDoctors(ctx context.Context) ([]model.Doctor, error) {
	env, err := c.do(ctx, call{op: "list doctors", method: http.MethodGet, path: "/api/doctor/list"})
	if err != nil {
		return nil, err
	}
	if env.Doctors == nil {
		return []model.Doctor{}, nil
	}
	return env.Doctors, nil
}

func (c *Client) GetProfile(ctx context.Context, token string) (model.UserProfile, error) {
	const op = "get profile"
	if token == "" {
		return model.UserProfile{}, MissingSession(op)
	}
	env, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/api/user/get-profile", token: token})
	if err != nil {
		return model.UserProfile{}, err
	}
	if env.UserData == nil {
		return model.UserProfile{}, NewError(op, ErrAPI, http.StatusOK, "profile missing from reply", nil)
	}
	return *env.UserData, nil
}

// Image is an avatar upload. Name is the original file name; ContentType may be empty.
type Image struct {
	Name        string
	ContentType string
	Data        []byte
}

type UpdateProfileRequest struct {
	Name    string
	Phone   string
	Address model.Address
	Gender  model.Gender
	DOB     string
	Image   *Image
}

// UpdateProfile posts the multipart form the backend expects and returns its message.
func (c *Client) UpdateProfile(ctx context.Context, token string, in UpdateProfileRequest) (string, error) {
	const op = "update profile"
	if token == "" {
		return "", MissingSession(op)
	}
	body, contentType, err := encodeProfileForm(in)
	if err != nil {
		return "", NewError(op, ErrValidation, 0, "", err)
	}
	env, err := c.do(ctx, call{
		op:          op,
		method:      http.MethodPost,
		path:        "/api/user/update-profile",
		token:       token,
		body:        body,
		contentType: contentType,
		refusal:     ErrValidation,
	})
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func encodeProfileForm(in UpdateProfileRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	address, err := json.Marshal(in.Address)
	if err != nil {
		return nil, "", err
	}
	fields := [][2]string{
		{"name", in.Name},
		{"phone", in.Phone},
		{"address", string(address)},
		{"gender", string(in.Gender)},
		{"dob", in.DOB},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", err
		}
	}

	if in.Image != nil && len(in.Image.Data) > 0 {
		name := filepath.Base(in.Image.Name)
		if name == "." || name == "/" || name == "" {
			name = "avatar"
		}
		contentType := in.Image.ContentType
		if contentType == "" || contentType == "application/octet-stream" {
			contentType = http.DetectContentType(in.Image.Data)
		}
		if !strings.HasPrefix(contentType, "image/") {
			return nil, "", fmt.Errorf("image %q is %s, not an image", name, contentType)
		}
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, name))
		h.Set("Content-Type", contentType)
		part, err := w.CreatePart(h)
		if err != nil {
			return nil, "", err
		}
		if _, err := part.Write(in.Image.Data); err != nil {
			return nil, "", err
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	body, err := jsonBody(map[string]string{"email": email, "password": password})
	if err != nil {
		return "", err
	}
	env, err := c.do(ctx, call{op: "login", method: http.MethodPost, path: "/api/user/login", body: body, contentType: "application/json", refusal: ErrAuth})
	if err != nil {
		return "", err
	}
	if env.Token == "" {
		return "", NewError("login", ErrAPI, http.StatusOK, "token missing from reply", nil)
	}
	return env.Token, nil
}

func (c *Client) Register(ctx context.Context, name, email, password string) (string, error) {
	body, err := jsonBody(map[string]string{"name": name, "email": email, "password": password})
	if err != nil {
		return "", err
	}
	env, err := c.do(ctx, call{op: "register", method: http.MethodPost, path: "/api/user/register", body: body, contentType: "application/json", refusal: ErrValidation})
	if err != nil {
		return "", err
	}
	if env.Token == "" {
		return "", NewError("register", ErrAPI, http.StatusOK, "token missing from reply", nil)
	}
	return env.Token, nil
}

type BookRequest struct {
	DoctorID string `json:"docId"`
	SlotDate string `json:"slotDate"`
	SlotTime string `json:"slotTime"`
}

func (c *Client) BookAppointment(ctx context.Context, token string, in BookRequest) (string, error) {
	const op = "book appointment"
	if token == "" {
		return "", MissingSession(op)
	}
	body, err := jsonBody(in)
	if err != nil {
		return "", err
	}
	env, err := c.do(ctx, call{op: op, method: http.MethodPost, path: "/api/user/book-appointment", token: token, body: body, contentType: "application/json", refusal: ErrValidation})
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

func (c *Client) ListAppointments(ctx context.Context, token string) ([]model.Appointment, error) {
	const op = "list appointments"
	if token == "" {
		return nil, MissingSession(op)
	}
	env, err := c.do(ctx, call{op: op, method: http.MethodGet, path: "/api/user/appointments", token: token})
	if err != nil {
		return nil, err
	}
	if env.Appointments == nil {
		return []model.Appointment{}, nil
	}
	return env.Appointments, nil
}

func (c *Client) CancelAppointment(ctx context.Context, token, appointmentID string) (string, error) {
	const op = "cancel appointment"
	if token == "" {
		return "", MissingSession(op)
	}
	if strings.TrimSpace(appointmentID) == "" {
		return "", NewError(op, ErrValidation, 0, "appointment id is required", nil)
	}
	body, err := jsonBody(map[string]string{"appointmentId": appointmentID})
	if err != nil {
		return "", err
	}
	env, err := c.do(ctx, call{op: op, method: http.MethodPost, path: "/api/user/cancel-appointment", token: token, body: body, contentType: "application/json", refusal: ErrValidation})
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// IsKind reports whether err carries kind; shorthand for errors.Is.
func IsKind(err, kind error) bool {
	return errors.Is(err, kind)
}
