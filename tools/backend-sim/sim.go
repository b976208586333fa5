package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/Sakin08/Doctors-Appointment/libs/auth"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

type address struct {
	Line1 string `json:"line1"`
	Line2 string `json:"line2"`
}

type doctor struct {
	ID         string  `json:"_id"`
	Name       string  `json:"name"`
	Email      string  `json:"email,omitempty"`
	Image      string  `json:"image"`
	Speciality string  `json:"speciality"`
	Degree     string  `json:"degree"`
	Experience string  `json:"experience"`
	About      string  `json:"about"`
	Available  bool    `json:"available"`
	Verified   bool    `json:"verified"`
	Fees       float64 `json:"fees"`
	Address    address `json:"address"`
}

type userProfile struct {
	ID      string  `json:"_id"`
	Name    string  `json:"name"`
	Email   string  `json:"email"`
	Phone   string  `json:"phone"`
	Address address `json:"address"`
	Gender  string  `json:"gender"`
	DOB     string  `json:"dob"`
	Image   string  `json:"image"`
}

type appointment struct {
	ID          string  `json:"_id"`
	UserID      string  `json:"userId"`
	DoctorID    string  `json:"docId"`
	SlotDate    string  `json:"slotDate"`
	SlotTime    string  `json:"slotTime"`
	Amount      float64 `json:"amount"`
	Cancelled   bool    `json:"cancelled"`
	Payment     bool    `json:"payment"`
	IsCompleted bool    `json:"isCompleted"`
	Doctor      doctor  `json:"docData"`
}

type simUser struct {
	profile userProfile
	hash    []byte
}

// simulator is an in-memory stand-in for the booking backend's REST API.
type simulator struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time

	mu           sync.Mutex
	doctors      []doctor
	users        map[string]*simUser
	emails       map[string]string
	appointments []appointment
	taken        map[string]bool
}

func newSimulator(secret string, ttl time.Duration) (*simulator, error) {
	if secret == "" {
		return nil, errors.New("secret is required")
	}
	return &simulator{
		secret:  []byte(secret),
		ttl:     ttl,
		now:     time.Now,
		doctors: seedDoctors(),
		users:   make(map[string]*simUser),
		emails:  make(map[string]string),
		taken:   make(map[string]bool),
	}, nil
}

func seedDoctors() []doctor {
	return []doctor{
		{ID: "doc1", Name: "Dr. Richard James", Email: "richard@example.com", Speciality: "General physician", Degree: "MBBS", Experience: "4 Years", About: "Focuses on preventive care and early diagnosis.", Available: true, Verified: true, Fees: 500, Address: address{Line1: "17th Cross, Richmond", Line2: "Circle, Ring Road"}},
		{ID: "doc2", Name: "Dr. Emily Larson", Email: "emily@example.com", Speciality: "Gynecologist", Degree: "MBBS", Experience: "3 Years", About: "Women's health across every stage of life.", Available: true, Verified: true, Fees: 600, Address: address{Line1: "27th Cross, Richmond", Line2: "Circle, Ring Road"}},
		{ID: "doc3", Name: "Dr. Sarah Patel", Email: "sarah@example.com", Speciality: "Dermatologist", Degree: "MBBS", Experience: "1 Year", About: "Skin, hair and nail conditions.", Available: false, Verified: true, Fees: 300, Address: address{Line1: "37th Cross, Richmond", Line2: "Circle, Ring Road"}},
		{ID: "doc4", Name: "Dr. Christopher Lee", Email: "chris@example.com", Speciality: "Pediatricians", Degree: "MBBS", Experience: "2 Years", About: "Care for infants, children and teens.", Available: true, Verified: false, Fees: 400, Address: address{Line1: "47th Cross, Richmond", Line2: "Circle, Ring Road"}},
		{ID: "doc5", Name: "Dr. Jennifer Garcia", Email: "jennifer@example.com", Speciality: "Neurologist", Degree: "MBBS", Experience: "4 Years", About: "Headache, epilepsy and movement disorders.", Available: true, Verified: true, Fees: 800, Address: address{Line1: "57th Cross, Richmond", Line2: "Circle, Ring Road"}},
		{ID: "doc6", Name: "Dr. Andrew Williams", Email: "andrew@example.com", Speciality: "Gastroenterologist", Degree: "MBBS", Experience: "4 Years", About: "Digestive tract and liver care.", Available: true, Verified: true, Fees: 700, Address: address{Line1: "67th Cross, Richmond", Line2: "Circle, Ring Road"}},
	}
}

func (s *simulator) addUser(name, email, password string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if name == "" || email == "" || password == "" {
		return "", errors.New("Missing Details")
	}
	if len(password) < 8 {
		return "", errors.New("Please enter a strong password")
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.emails[email]; exists {
		return "", errors.New("User already exists")
	}
	id := uuid.NewString()
	s.users[id] = &simUser{
		profile: userProfile{ID: id, Name: name, Email: email, Gender: "Not Selected", DOB: "Not Selected"},
		hash:    hash,
	}
	s.emails[email] = id
	return id, nil
}

func (s *simulator) issue(userID string) (string, error) {
	claims := auth.Claims{UserID: userID}
	if s.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(s.now().Add(s.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// authenticate verifies the token header and returns the user id.
func (s *simulator) authenticate(r *http.Request) (string, bool) {
	raw := strings.TrimSpace(r.Header.Get("token"))
	if raw == "" {
		return "", false
	}
	var claims auth.Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) { return s.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil || claims.UserID == "" {
		return "", false
	}
	s.mu.Lock()
	_, ok := s.users[claims.UserID]
	s.mu.Unlock()
	return claims.UserID, ok
}

func (s *simulator) routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/doctor/list", s.listDoctors)
	mux.HandleFunc("POST /api/user/register", s.register)
	mux.HandleFunc("POST /api/user/login", s.login)
	mux.HandleFunc("GET /api/user/get-profile", s.requireUser(s.getProfile))
	mux.HandleFunc("POST /api/user/update-profile", s.requireUser(s.updateProfile))
	mux.HandleFunc("POST /api/user/book-appointment", s.requireUser(s.book))
	mux.HandleFunc("GET /api/user/appointments", s.requireUser(s.listAppointments))
	mux.HandleFunc("POST /api/user/cancel-appointment", s.requireUser(s.cancel))
	return mux
}

type userHandler func(w http.ResponseWriter, r *http.Request, userID string)

func (s *simulator) requireUser(next userHandler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := s.authenticate(r)
		if !ok {
			fail(w, "Not Authorized Login Again")
			return
		}
		next(w, r, userID)
	}
}

func (s *simulator) listDoctors(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	docs := make([]doctor, len(s.doctors))
	copy(docs, s.doctors)
	s.mu.Unlock()
	for i := range docs {
		docs[i].Email = ""
	}
	succeed(w, map[string]any{"doctors": docs})
}

type credentials struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *simulator) register(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, "Missing Details")
		return
	}
	id, err := s.addUser(in.Name, in.Email, in.Password)
	if err != nil {
		fail(w, err.Error())
		return
	}
	s.respondToken(w, id)
}

func (s *simulator) login(w http.ResponseWriter, r *http.Request) {
	var in credentials
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		fail(w, "Invalid credentials")
		return
	}
	s.mu.Lock()
	user, exists := s.users[s.emails[strings.ToLower(strings.TrimSpace(in.Email))]]
	s.mu.Unlock()
	if !exists {
		fail(w, "User does not exist")
		return
	}
	if bcrypt.CompareHashAndPassword(user.hash, []byte(in.Password)) != nil {
		fail(w, "Invalid credentials")
		return
	}
	s.respondToken(w, user.profile.ID)
}

func (s *simulator) respondToken(w http.ResponseWriter, userID string) {
	token, err := s.issue(userID)
	if err != nil {
		http.Error(w, "token error", http.StatusInternalServerError)
		return
	}
	succeed(w, map[string]any{"token": token})
}

func (s *simulator) getProfile(w http.ResponseWriter, _ *http.Request, userID string) {
	s.mu.Lock()
	p := s.users[userID].profile
	s.mu.Unlock()
	succeed(w, map[string]any{"userData": p})
}

func (s *simulator) updateProfile(w http.ResponseWriter, r *http.Request, userID string) {
	if err := r.ParseMultipartForm(5 << 20); err != nil {
		fail(w, "Data Missing")
		return
	}
	name, phone, dob, gender := r.FormValue("name"), r.FormValue("phone"), r.FormValue("dob"), r.FormValue("gender")
	if name == "" || phone == "" || dob == "" || gender == "" {
		fail(w, "Data Missing")
		return
	}
	var addr address
	if raw := r.FormValue("address"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &addr); err != nil {
			fail(w, "Invalid address")
			return
		}
	}

	image := ""
	if _, header, err := r.FormFile("image"); err == nil {
		image = fmt.Sprintf("/uploads/%s%s", uuid.NewString(), strings.ToLower(filepath.Ext(header.Filename)))
	}

	s.mu.Lock()
	p := &s.users[userID].profile
	p.Name, p.Phone, p.DOB, p.Gender, p.Address = name, phone, dob, gender, addr
	if image != "" {
		p.Image = image
	}
	s.mu.Unlock()
	succeed(w, map[string]any{"message": "Profile Updated"})
}

type bookBody struct {
	DocID    string `json:"docId"`
	SlotDate string `json:"slotDate"`
	SlotTime string `json:"slotTime"`
}

func (s *simulator) book(w http.ResponseWriter, r *http.Request, userID string) {
	var in bookBody
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil || in.DocID == "" || in.SlotDate == "" || in.SlotTime == "" {
		fail(w, "Missing Details")
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	var doc *doctor
	for i := range s.doctors {
		if s.doctors[i].ID == in.DocID {
			doc = &s.doctors[i]
			break
		}
	}
	if doc == nil || !doc.Available {
		fail(w, "Doctor Not Available")
		return
	}
	key := in.DocID + "|" + in.SlotDate + "|" + in.SlotTime
	if s.taken[key] {
		fail(w, "Slot Not Available")
		return
	}
	s.taken[key] = true
	s.appointments = append(s.appointments, appointment{
		ID:       uuid.NewString(),
		UserID:   userID,
		DoctorID: doc.ID,
		SlotDate: in.SlotDate,
		SlotTime: in.SlotTime,
		Amount:   doc.Fees,
		Doctor:   *doc,
	})
	succeed(w, map[string]any{"message": "Appointment Booked"})
}

func (s *simulator) listAppointments(w http.ResponseWriter, _ *http.Request, userID string) {
	s.mu.Lock()
	out := make([]appointment, 0)
	for _, a := range s.appointments {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	s.mu.Unlock()
	succeed(w, map[string]any{"appointments": out})
}

func (s *simulator) cancel(w http.ResponseWriter, r *http.Request, userID string) {
	var in struct {
		AppointmentID string `json:"appointmentId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&in)
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.appointments {
		a := &s.appointments[i]
		if a.ID != in.AppointmentID {
			continue
		}
		if a.UserID != userID {
			fail(w, "Unauthorized action")
			return
		}
		a.Cancelled = true
		delete(s.taken, a.DoctorID+"|"+a.SlotDate+"|"+a.SlotTime)
		succeed(w, map[string]any{"message": "Appointment Cancelled"})
		return
	}
	fail(w, "Appointment not found")
}

func succeed(w http.ResponseWriter, body map[string]any) {
	body["success"] = true
	writeJSON(w, body)
}

// fail mirrors the backend: failures are HTTP 200 with success false.
func fail(w http.ResponseWriter, message string) {
	writeJSON(w, map[string]any{"success": false, "message": message})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
