package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/model"
)

func newBackend(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL+"/", WithHTTPClient(srv.Client()))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestListDoctors(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/api/doctor/list" {
			t.Fatalf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Request-Id") == "" {
			t.Fatal("expected request id header")
		}
		_, _ = io.WriteString(w, `{"success":true,"doctors":[{"_id":"d1","name":"Dr. A","experience":"4 Years","fees":500,"available":true}]}`)
	})

	docs, err := c.ListDoctors(context.Background())
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(docs) != 1 || docs[0].ID != "d1" || docs[0].Experience != 4 || docs[0].Fees != 500 {
		t.Fatalf("unexpected doctors %+v", docs)
	}
}

func TestListDoctorsBackendFailure(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "db down"})
	})
	_, err := c.ListDoctors(context.Background())
	if !errors.Is(err, ErrAPI) {
		t.Fatalf("expected api error, got %v", err)
	}
	if Message(err) != "db down" {
		t.Fatalf("unexpected message %q", Message(err))
	}
}

func TestListDoctorsUndecodableReplyIsNetwork(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "<html>proxy</html>")
	})
	_, err := c.ListDoctors(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestTransportFailureIsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).ListDoctors(context.Background())
	if !errors.Is(err, ErrNetwork) {
		t.Fatalf("expected network error, got %v", err)
	}
	var apiErr *Error
	if !errors.As(err, &apiErr) || apiErr.Op != "list doctors" {
		t.Fatalf("expected *Error with op, got %#v", err)
	}
}

func TestGetProfileSendsToken(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get(TokenHeader) != "tok" {
			writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Not Authorized Login Again"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"success":  true,
			"userData": model.UserProfile{ID: "u1", Name: "Rahim", Email: "r@example.com", Gender: model.GenderMale},
		})
	})

	p, err := c.GetProfile(context.Background(), "tok")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.ID != "u1" || p.Name != "Rahim" {
		t.Fatalf("unexpected profile %+v", p)
	}

	_, err = c.GetProfile(context.Background(), "other")
	if !errors.Is(err, ErrAuth) {
		t.Fatalf("expected auth error from not-authorized message, got %v", err)
	}
}

func TestMissingTokenFailsWithoutRequest(t *testing.T) {
	called := false
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) { called = true })

	if _, err := c.GetProfile(context.Background(), ""); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if _, err := c.UpdateProfile(context.Background(), "", UpdateProfileRequest{}); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if _, err := c.BookAppointment(context.Background(), "", BookRequest{}); !errors.Is(err, ErrAuth) {
		t.Fatalf("expected auth error, got %v", err)
	}
	if called {
		t.Fatal("backend must not be called without a token")
	}
}

func TestStatusClassification(t *testing.T) {
	cases := []struct {
		status int
		want   error
	}{
		{http.StatusUnauthorized, ErrAuth},
		{http.StatusForbidden, ErrAuth},
		{http.StatusBadRequest, ErrValidation},
		{http.StatusUnprocessableEntity, ErrValidation},
		{http.StatusInternalServerError, ErrAPI},
	}
	for _, tc := range cases {
		c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tc.status, map[string]any{"success": false, "message": "nope"})
		})
		_, err := c.ListAppointments(context.Background(), "tok")
		if !errors.Is(err, tc.want) {
			t.Fatalf("status %d: expected %v, got %v", tc.status, tc.want, err)
		}
		var apiErr *Error
		if !errors.As(err, &apiErr) || apiErr.Status != tc.status {
			t.Fatalf("status %d: expected status on error, got %#v", tc.status, err)
		}
	}
}

func TestUpdateProfileMultipart(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/user/update-profile" {
			t.Fatalf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Fatalf("parse multipart: %v", err)
		}
		if r.FormValue("name") != "Karim" || r.FormValue("phone") != "017" || r.FormValue("gender") != "Male" || r.FormValue("dob") != "1990-01-02" {
			t.Fatalf("unexpected fields %v", r.MultipartForm.Value)
		}
		var addr model.Address
		if err := json.Unmarshal([]byte(r.FormValue("address")), &addr); err != nil || addr.Line1 != "Road 1" {
			t.Fatalf("unexpected address %q", r.FormValue("address"))
		}
		files := r.MultipartForm.File["image"]
		if len(files) != 1 || files[0].Filename != "me.png" {
			t.Fatalf("expected image part, got %v", files)
		}
		writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Profile Updated"})
	})

	png := append([]byte("\x89PNG\r\n\x1a\n"), make([]byte, 16)...)
	msg, err := c.UpdateProfile(context.Background(), "tok", UpdateProfileRequest{
		Name:    "Karim",
		Phone:   "017",
		Address: model.Address{Line1: "Road 1"},
		Gender:  model.GenderMale,
		DOB:     "1990-01-02",
		Image:   &Image{Name: "/tmp/me.png", Data: png},
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if msg != "Profile Updated" {
		t.Fatalf("unexpected message %q", msg)
	}
}

func TestUpdateProfileRejectedIsValidation(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Data Missing"})
	})
	_, err := c.UpdateProfile(context.Background(), "tok", UpdateProfileRequest{Name: "x"})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if Message(err) != "Data Missing" {
		t.Fatalf("unexpected message %q", Message(err))
	}
}

func TestUpdateProfileRejectsNonImage(t *testing.T) {
	c := NewClient("http://127.0.0.1:1")
	_, err := c.UpdateProfile(context.Background(), "tok", UpdateProfileRequest{
		Image: &Image{Name: "notes.txt", Data: []byte("plain text")},
	})
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestLoginAndBook(t *testing.T) {
	c := newBackend(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/user/login":
			var in map[string]string
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in["password"] != "secret" {
				writeJSON(w, http.StatusOK, map[string]any{"success": false, "message": "Invalid credentials"})
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "token": "tok"})
		case "/api/user/book-appointment":
			var in BookRequest
			_ = json.NewDecoder(r.Body).Decode(&in)
			if in.DoctorID != "d1" || in.SlotDate != "20_10_2026" || in.SlotTime != "10:30 AM" {
				t.Fatalf("unexpected booking %+v", in)
			}
			writeJSON(w, http.StatusOK, map[string]any{"success": true, "message": "Appointment Booked"})
		default:
			http.NotFound(w, r)
		}
	})

	_, err := c.Login(context.Background(), "a@b.c", "wrong")
	if !errors.Is(err, ErrAuth) || errors.Is(err, ErrValidation) || Message(err) != "Invalid credentials" {
		t.Fatalf("expected auth error for bad credentials, got %v", err)
	}
	tok, err := c.Login(context.Background(), "a@b.c", "secret")
	if err != nil || tok != "tok" {
		t.Fatalf("login: %q %v", tok, err)
	}
	msg, err := c.BookAppointment(context.Background(), tok, BookRequest{DoctorID: "d1", SlotDate: "20_10_2026", SlotTime: "10:30 AM"})
	if err != nil || msg != "Appointment Booked" {
		t.Fatalf("book: %q %v", msg, err)
	}
}

func TestErrorString(t *testing.T) {
	err := NewError("get profile", ErrAuth, 401, "expired", nil)
	if !strings.Contains(err.Error(), "get profile") || !strings.Contains(err.Error(), "401") {
		t.Fatalf("unexpected error string %q", err.Error())
	}
	if err.Kind() != ErrAuth {
		t.Fatal("unexpected kind")
	}
}
