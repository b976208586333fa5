package directory

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/api"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/model"
	"github.com/Sakin08/Doctors-Appointment/services/portal-service/internal/notify"
)

type stubLister struct {
	mu      sync.Mutex
	doctors []model.Doctor
	err     error
	calls   int
}

func (s *stubLister) ListDoctors(context.Context) ([]model.Doctor, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.doctors, nil
}

func (s *stubLister) set(doctors []model.Doctor, err error) {
	s.mu.Lock()
	s.doctors, s.err = doctors, err
	s.mu.Unlock()
}

func sample() []model.Doctor {
	return []model.Doctor{
		{ID: "d1", Name: "Dr. Richard James", Speciality: "General physician", Fees: 500},
		{ID: "d2", Name: "Dr. Emily Larson", Speciality: "Gynecologist", Fees: 600},
		{ID: "d3", Name: "Dr. Sarah Patel", Speciality: "general physician", Fees: 400},
	}
}

func TestRefreshAndFind(t *testing.T) {
	src := &stubLister{doctors: sample()}
	d := New(src, nil, nil)

	if _, err := d.FindByID("d1"); !errors.Is(err, ErrNotLoaded) {
		t.Fatalf("expected not loaded, got %v", err)
	}
	if err := d.Ready(context.Background()); err == nil {
		t.Fatal("expected not ready before first refresh")
	}

	got, err := d.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if len(got) != 3 || d.Len() != 3 {
		t.Fatalf("unexpected doctors %d/%d", len(got), d.Len())
	}
	doc, err := d.FindByID("d2")
	if err != nil || doc.Name != "Dr. Emily Larson" {
		t.Fatalf("find: %+v %v", doc, err)
	}
	if _, err := d.FindByID("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := d.Ready(context.Background()); err != nil {
		t.Fatalf("expected ready, got %v", err)
	}
}

func TestRefreshFailureKeepsPreviousAndNotifies(t *testing.T) {
	src := &stubLister{doctors: sample()}
	rec := &notify.Recorder{}
	d := New(src, rec, nil)
	if _, err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	src.set(nil, api.NewError("list doctors", api.ErrAPI, 200, "db down", nil))
	if _, err := d.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
	if d.Len() != 3 {
		t.Fatalf("previous snapshot must be kept, got %d", d.Len())
	}
	last, ok := rec.Last()
	if !ok || last.Level != notify.LevelError || last.Message != "db down" {
		t.Fatalf("unexpected toast %+v", last)
	}
}

func TestRefreshReplacesWholesale(t *testing.T) {
	src := &stubLister{doctors: sample()}
	d := New(src, nil, nil)
	_, _ = d.Refresh(context.Background())
	before := d.All()

	src.set([]model.Doctor{{ID: "d9", Name: "Dr. New"}}, nil)
	_, _ = d.Refresh(context.Background())

	if _, err := d.FindByID("d1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("old doctors must be gone, got %v", err)
	}
	if len(before) != 3 || before[0].ID != "d1" {
		t.Fatal("earlier copies must not change")
	}
}

func TestAllReturnsCopy(t *testing.T) {
	d := New(&stubLister{doctors: sample()}, nil, nil)
	_, _ = d.Refresh(context.Background())
	list := d.All()
	list[0].Name = "mutated"
	if doc, _ := d.FindByID("d1"); doc.Name == "mutated" {
		t.Fatal("callers must not be able to mutate the snapshot")
	}
}

func TestListFiltersBySpeciality(t *testing.T) {
	d := New(&stubLister{doctors: sample()}, nil, nil)
	if got := d.List("general physician"); len(got) != 0 {
		t.Fatalf("expected empty list before load, got %d", len(got))
	}
	_, _ = d.Refresh(context.Background())
	got := d.List("General Physician")
	if len(got) != 2 || got[0].ID != "d1" || got[1].ID != "d3" {
		t.Fatalf("unexpected filter result %+v", got)
	}
	if len(d.List("")) != 3 {
		t.Fatal("empty filter should list all")
	}
}

func TestWaitLoaded(t *testing.T) {
	src := &stubLister{err: errors.New("offline")}
	d := New(src, nil, nil)
	_, _ = d.Refresh(context.Background())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := d.WaitLoaded(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline, got %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- d.WaitLoaded(context.Background()) }()
	src.set(sample(), nil)
	_, _ = d.Refresh(context.Background())
	_, _ = d.Refresh(context.Background())

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("wait: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("WaitLoaded did not return after refresh")
	}
}

func TestRunRefreshesPeriodically(t *testing.T) {
	src := &stubLister{doctors: sample()}
	d := New(src, nil, nil)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		d.Run(ctx, 5*time.Millisecond)
		close(done)
	}()

	if err := d.WaitLoaded(context.Background()); err != nil {
		t.Fatalf("wait: %v", err)
	}
	cancel()
	<-done

	d.Run(context.Background(), 0)
}
