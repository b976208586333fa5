package main

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Sakin08/Doctors-Appointment/libs/auth"
)

type reply struct {
	Success      bool          `json:"success"`
	Message      string        `json:"message"`
	Token        string        `json:"token"`
	Doctors      []doctor      `json:"doctors"`
	UserData     userProfile   `json:"userData"`
	Appointments []appointment `json:"appointments"`
}

func newSim(t *testing.T) *httptest.Server {
	t.Helper()
	sim, err := newSimulator("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("newSimulator: %v", err)
	}
	if _, err := sim.addUser("Demo Patient", "demo@example.com", "demo1234"); err != nil {
		t.Fatalf("addUser: %v", err)
	}
	srv := httptest.NewServer(sim.routes())
	t.Cleanup(srv.Close)
	return srv
}

func call(t *testing.T, srv *httptest.Server, method, path, token, contentType string, body []byte) reply {
	t.Helper()
	req, _ := http.NewRequest(method, srv.URL+path, bytes.NewReader(body))
	if token != "" {
		req.Header.Set("token", token)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := srv.Client().Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var out reply
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode %s: %v", path, err)
	}
	return out
}

func login(t *testing.T, srv *httptest.Server) string {
	t.Helper()
	out := call(t, srv, http.MethodPost, "/api/user/login", "", "application/json", []byte(`{"email":"demo@example.com","password":"demo1234"}`))
	if !out.Success || out.Token == "" {
		t.Fatalf("login failed: %+v", out)
	}
	return out.Token
}

func TestLoginIssuesExpiringToken(t *testing.T) {
	srv := newSim(t)
	token := login(t, srv)
	exp, ok := auth.ExpiresAt(token)
	if !ok || time.Until(exp) <= 0 || time.Until(exp) > time.Hour {
		t.Fatalf("unexpected exp %v %v", exp, ok)
	}
	bad := call(t, srv, http.MethodPost, "/api/user/login", "", "application/json", []byte(`{"email":"demo@example.com","password":"nope"}`))
	if bad.Success || bad.Message != "Invalid credentials" {
		t.Fatalf("unexpected reply %+v", bad)
	}
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	srv := newSim(t)
	out := call(t, srv, http.MethodGet, "/api/user/get-profile", "forged", "", nil)
	if out.Success || out.Message != "Not Authorized Login Again" {
		t.Fatalf("unexpected reply %+v", out)
	}
}

func TestExpiredTokenRejected(t *testing.T) {
	sim, err := newSimulator("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("newSimulator: %v", err)
	}
	id, err := sim.addUser("Demo Patient", "demo@example.com", "demo1234")
	if err != nil {
		t.Fatalf("addUser: %v", err)
	}
	sim.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, err := sim.issue(id)
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	sim.now = time.Now

	srv := httptest.NewServer(sim.routes())
	defer srv.Close()
	if out := call(t, srv, http.MethodGet, "/api/user/get-profile", token, "", nil); out.Success {
		t.Fatal("expired token must be rejected")
	}
}

func TestUpdateProfileRequiresFields(t *testing.T) {
	srv := newSim(t)
	token := login(t, srv)

	form := func(fields map[string]string) ([]byte, string) {
		var buf bytes.Buffer
		w := multipart.NewWriter(&buf)
		for k, v := range fields {
			_ = w.WriteField(k, v)
		}
		_ = w.Close()
		return buf.Bytes(), w.FormDataContentType()
	}

	body, ct := form(map[string]string{"name": "Karim"})
	if out := call(t, srv, http.MethodPost, "/api/user/update-profile", token, ct, body); out.Success || out.Message != "Data Missing" {
		t.Fatalf("unexpected reply %+v", out)
	}

	body, ct = form(map[string]string{"name": "Karim", "phone": "017", "dob": "1990-01-02", "gender": "Male", "address": `{"line1":"Road 9"}`})
	if out := call(t, srv, http.MethodPost, "/api/user/update-profile", token, ct, body); !out.Success {
		t.Fatalf("update failed: %+v", out)
	}
	p := call(t, srv, http.MethodGet, "/api/user/get-profile", token, "", nil).UserData
	if p.Name != "Karim" || p.Address.Line1 != "Road 9" || p.Email != "demo@example.com" {
		t.Fatalf("unexpected profile %+v", p)
	}
}

func TestBookAndCancel(t *testing.T) {
	srv := newSim(t)
	token := login(t, srv)
	booking := []byte(`{"docId":"doc1","slotDate":"20_10_2026","slotTime":"10:30 AM"}`)

	if out := call(t, srv, http.MethodPost, "/api/user/book-appointment", token, "application/json", booking); !out.Success {
		t.Fatalf("book failed: %+v", out)
	}
	if out := call(t, srv, http.MethodPost, "/api/user/book-appointment", token, "application/json", booking); out.Success || out.Message != "Slot Not Available" {
		t.Fatalf("double booking should fail: %+v", out)
	}
	unavailable := []byte(`{"docId":"doc3","slotDate":"20_10_2026","slotTime":"10:30 AM"}`)
	if out := call(t, srv, http.MethodPost, "/api/user/book-appointment", token, "application/json", unavailable); out.Success {
		t.Fatal("unavailable doctor should refuse")
	}

	appts := call(t, srv, http.MethodGet, "/api/user/appointments", token, "", nil).Appointments
	if len(appts) != 1 || appts[0].Amount != 500 || appts[0].Doctor.Name != "Dr. Richard James" {
		t.Fatalf("unexpected appointments %+v", appts)
	}

	cancel := []byte(`{"appointmentId":"` + appts[0].ID + `"}`)
	if out := call(t, srv, http.MethodPost, "/api/user/cancel-appointment", token, "application/json", cancel); !out.Success {
		t.Fatalf("cancel failed: %+v", out)
	}
	if out := call(t, srv, http.MethodPost, "/api/user/book-appointment", token, "application/json", booking); !out.Success {
		t.Fatalf("slot should be free after cancel: %+v", out)
	}
}

func TestRegister(t *testing.T) {
	srv := newSim(t)
	dup := call(t, srv, http.MethodPost, "/api/user/register", "", "application/json", []byte(`{"name":"X","email":"DEMO@example.com","password":"longenough"}`))
	if dup.Success || !strings.Contains(dup.Message, "exists") {
		t.Fatalf("expected duplicate rejection, got %+v", dup)
	}
	out := call(t, srv, http.MethodPost, "/api/user/register", "", "application/json", []byte(`{"name":"New","email":"new@example.com","password":"longenough"}`))
	if !out.Success || out.Token == "" {
		t.Fatalf("register failed: %+v", out)
	}
	docs := call(t, srv, http.MethodGet, "/api/doctor/list", "", "", nil).Doctors
	if len(docs) != 6 || docs[0].Email != "" || docs[0].Experience != "4 Years" {
		t.Fatalf("unexpected doctors %+v", docs[0])
	}
}
