package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"qcdash/internal/core"
)

type fakeStore struct {
	created []core.InspectionRecord
	updated map[string]core.InspectionRecord
	deleted []string
	err     error
}

func (s *fakeStore) Create(_ context.Context, r core.InspectionRecord) (core.InspectionRecord, error) {
	if s.err != nil {
		return core.InspectionRecord{}, s.err
	}
	s.created = append(s.created, r)
	r.ID = "generated"
	return r, nil
}

func (s *fakeStore) Update(_ context.Context, id string, r core.InspectionRecord) (core.InspectionRecord, error) {
	if s.err != nil {
		return core.InspectionRecord{}, s.err
	}
	if s.updated == nil {
		s.updated = map[string]core.InspectionRecord{}
	}
	s.updated[id] = r
	return r, nil
}

func (s *fakeStore) Delete(_ context.Context, id string) error {
	if s.err != nil {
		return s.err
	}
	s.deleted = append(s.deleted, id)
	return nil
}

type fakePublisher struct {
	ids []string
	err error
}

func (p *fakePublisher) PublishUpdate(_ context.Context, id string) error {
	p.ids = append(p.ids, id)
	return p.err
}

func formRecord() core.InspectionRecord {
	r := core.InspectionRecord{
		InspectionID:     "INS-7",
		Year:             2024,
		Month:            "March",
		InspectionDate:   time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
		ServicePerformed: "Final",
		InspectionType:   "Random",
		InspectorName:    "Omar",
	}
	r.Set(core.FieldFail, 1)
	return r
}

func TestCreateDerivesStatusAndPublishes(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	f := &stubFetcher{}
	dash := NewDashboardService(f, nil, nil)
	svc := NewInspectionService(store, dash, pub, nil)

	saved, err := svc.Create(context.Background(), formRecord())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if saved.ID != "generated" {
		t.Fatalf("saved id = %q", saved.ID)
	}
	if got := store.created[0].InspectionStatus; got != core.StatusFailed {
		t.Fatalf("status sent = %q, want %q", got, core.StatusFailed)
	}
	if len(pub.ids) != 1 || pub.ids[0] != "generated" {
		t.Fatalf("published = %v", pub.ids)
	}
	if f.calls != 1 || dash.Status().Generation != 1 {
		t.Fatalf("snapshot not refreshed: calls=%d", f.calls)
	}
}

func TestCreateRejectsInvalid(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{}
	svc := NewInspectionService(store, nil, pub, nil)

	r := formRecord()
	r.Month = "Marzo"
	r.Set(core.FieldPass, 1)
	_, err := svc.Create(context.Background(), r)
	if !errors.Is(err, ErrInvalidInspection) {
		t.Fatalf("expected ErrInvalidInspection, got %v", err)
	}
	for _, want := range []error{core.ErrInvalidMonth, core.ErrMultipleOutcomes} {
		if !errors.Is(err, want) {
			t.Errorf("missing %v in %v", want, err)
		}
	}
	if len(store.created) != 0 || len(pub.ids) != 0 {
		t.Fatalf("invalid record reached the store or publisher")
	}
}

func TestPublishFailureDoesNotFailWrite(t *testing.T) {
	store := &fakeStore{}
	pub := &fakePublisher{err: errors.New("broker down")}
	f := &stubFetcher{err: errors.New("api down")}
	svc := NewInspectionService(store, NewDashboardService(f, nil, nil), pub, nil)

	saved, err := svc.Update(context.Background(), "abc", formRecord())
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if saved.ID != "abc" {
		t.Fatalf("saved id = %q", saved.ID)
	}
	if _, ok := store.updated["abc"]; !ok {
		t.Fatalf("update not forwarded")
	}
	if err := svc.Delete(context.Background(), "abc"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(pub.ids) != 2 {
		t.Fatalf("published = %v", pub.ids)
	}
}

func TestStoreErrorsAreWrapped(t *testing.T) {
	notFound := errors.New("not found")
	store := &fakeStore{err: notFound}
	svc := NewInspectionService(store, nil, nil, nil)

	if _, err := svc.Update(context.Background(), "x", formRecord()); !errors.Is(err, notFound) {
		t.Fatalf("update err = %v", err)
	}
	if err := svc.Delete(context.Background(), "x"); !errors.Is(err, notFound) {
		t.Fatalf("delete err = %v", err)
	}
	if _, err := svc.Create(context.Background(), formRecord()); !errors.Is(err, notFound) {
		t.Fatalf("create err = %v", err)
	}
}
