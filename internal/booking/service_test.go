package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"booking-service/internal/calendar"
	"booking-service/internal/model"
	"booking-service/internal/store"
	"booking-service/internal/timeslot"
)

type fakeStore struct {
	mt        model.MeetingType
	mtErr     error
	byKey     map[string]model.Booking
	confirmed []model.Booking
	commitErr error
	committed []model.Booking
	cancelled model.Booking
	cancelErr error
}

func (f *fakeStore) GetMeetingType(_ context.Context, id int64, ownerID string) (model.MeetingType, error) {
	if f.mtErr != nil {
		return model.MeetingType{}, f.mtErr
	}
	if id != f.mt.ID || ownerID != f.mt.OwnerID {
		return model.MeetingType{}, store.ErrNotFound
	}
	return f.mt, nil
}

func (f *fakeStore) BookingByIdempotencyKey(_ context.Context, key string) (model.Booking, error) {
	if b, ok := f.byKey[key]; ok {
		return b, nil
	}
	return model.Booking{}, store.ErrNotFound
}

func (f *fakeStore) ConfirmedBookingsInRange(_ context.Context, _ string, _, _ time.Time) ([]model.Booking, error) {
	return f.confirmed, nil
}

func (f *fakeStore) CommitBooking(_ context.Context, b *model.Booking) error {
	if f.commitErr != nil {
		return f.commitErr
	}
	f.committed = append(f.committed, *b)
	return nil
}

func (f *fakeStore) CancelBooking(_ context.Context, id string) (model.Booking, error) {
	if f.cancelErr != nil {
		return model.Booking{}, f.cancelErr
	}
	return f.cancelled, nil
}

type fakeSchedules struct {
	sched model.Schedule
	err   error
}

func (f *fakeSchedules) GetSchedule(context.Context, string) (model.Schedule, error) {
	if f.err != nil {
		return model.Schedule{}, f.err
	}
	return f.sched, nil
}

type fakeGateway struct {
	busy      []timeslot.Interval
	busyErr   error
	createErr error
	deleteErr error
	created   []calendar.EventInput
	deleted   []string
}

func (f *fakeGateway) ListBusy(context.Context, string, time.Time, time.Time) ([]timeslot.Interval, error) {
	if f.busyErr != nil {
		return nil, f.busyErr
	}
	return f.busy, nil
}

func (f *fakeGateway) CreateEvent(_ context.Context, _ string, ev calendar.EventInput) (string, error) {
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, ev)
	return "evt-1", nil
}

func (f *fakeGateway) DeleteEvent(_ context.Context, _ string, eventID string) error {
	f.deleted = append(f.deleted, eventID)
	return f.deleteErr
}

// Friday 2026-02-27 12:00 UTC; first bookable Monday is 2026-03-02.
var testNow = time.Date(2026, time.February, 27, 12, 0, 0, 0, time.UTC)

func newFixture() (*fakeStore, *fakeSchedules, *fakeGateway, *Service) {
	st := &fakeStore{
		mt: model.MeetingType{
			ID: 7, OwnerID: "owner-1", Name: "Intro call",
			DurationMinutes: 30, MaxAdvanceDays: 30, IsActive: true,
		},
		byKey: map[string]model.Booking{},
	}
	sc := &fakeSchedules{sched: model.Schedule{
		OwnerID:  "owner-1",
		Timezone: "America/New_York",
		Rules: []timeslot.Rule{
			{Weekday: time.Monday, Start: timeslot.TimeOfDay{Hour: 9}, End: timeslot.TimeOfDay{Hour: 17}},
		},
	}}
	gw := &fakeGateway{}
	svc := NewService(st, sc, gw, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc.now = func() time.Time { return testNow }
	return st, sc, gw, svc
}

func validRequest() CreateRequest {
	return CreateRequest{
		MeetingTypeID: 7,
		OwnerID:       "owner-1",
		StartTime:     "2026-03-02T10:00", // Monday 10:00 New York local
		Timezone:      "America/New_York",
		AttendeeName:  "Ada Lovelace",
		AttendeeEmail: "ada@example.com",
		AttendeeNotes: "First contact",
	}
}

func TestCreateBookingRoundTrip(t *testing.T) {
	st, _, gw, svc := newFixture()

	b, err := svc.CreateBooking(context.Background(), validRequest())
	if err != nil {
		t.Fatal(err)
	}

	wantStart := time.Date(2026, time.March, 2, 15, 0, 0, 0, time.UTC) // 10:00 EST
	if !b.StartAt.Equal(wantStart) {
		t.Fatalf("StartAt = %v, want %v (UTC-normalized local time)", b.StartAt, wantStart)
	}
	if !b.EndAt.Equal(wantStart.Add(30 * time.Minute)) {
		t.Fatalf("EndAt = %v, want start + 30m", b.EndAt)
	}
	if b.Status != model.BookingConfirmed {
		t.Fatalf("Status = %q, want confirmed", b.Status)
	}
	if b.ExternalEventID != "evt-1" {
		t.Fatalf("ExternalEventID = %q, want evt-1", b.ExternalEventID)
	}
	if len(st.committed) != 1 {
		t.Fatalf("committed %d bookings, want 1", len(st.committed))
	}
	if len(gw.created) != 1 {
		t.Fatalf("created %d external events, want 1", len(gw.created))
	}
	if gw.created[0].Description != "First contact" {
		t.Fatalf("event description = %q, want attendee notes", gw.created[0].Description)
	}
}

func TestCreateBookingCompensatesOnCommitFailure(t *testing.T) {
	st, _, gw, svc := newFixture()
	st.commitErr = errors.New("connection reset")

	_, err := svc.CreateBooking(context.Background(), validRequest())
	be, ok := AsError(err)
	if !ok || be.Kind != KindPersistence {
		t.Fatalf("err = %v, want KindPersistence", err)
	}
	if len(gw.deleted) != 1 || gw.deleted[0] != "evt-1" {
		t.Fatalf("compensation deletes = %v, want exactly [evt-1]", gw.deleted)
	}
}

func TestCreateBookingCompensationFailureKeepsErrorKind(t *testing.T) {
	st, _, gw, svc := newFixture()
	st.commitErr = errors.New("connection reset")
	gw.deleteErr = errors.New("calendar down")

	_, err := svc.CreateBooking(context.Background(), validRequest())
	be, ok := AsError(err)
	if !ok || be.Kind != KindPersistence {
		t.Fatalf("err = %v, want KindPersistence even when compensation fails", err)
	}
}

func TestCreateBookingLosesSlotRace(t *testing.T) {
	st, _, gw, svc := newFixture()
	st.commitErr = store.ErrSlotTaken

	_, err := svc.CreateBooking(context.Background(), validRequest())
	be, ok := AsError(err)
	if !ok || be.Kind != KindSlotUnavailable {
		t.Fatalf("err = %v, want KindSlotUnavailable for losing saga", err)
	}
	if len(gw.deleted) != 1 {
		t.Fatalf("compensation deletes = %v, want 1", gw.deleted)
	}
}

func TestCreateBookingStaleSlotRejectedBeforeExternalWrite(t *testing.T) {
	_, _, gw, svc := newFixture()
	// Busy interval covering the requested slot.
	gw.busy = []timeslot.Interval{{
		Start: time.Date(2026, time.March, 2, 15, 0, 0, 0, time.UTC),
		End:   time.Date(2026, time.March, 2, 15, 30, 0, 0, time.UTC),
	}}

	_, err := svc.CreateBooking(context.Background(), validRequest())
	be, ok := AsError(err)
	if !ok || be.Kind != KindSlotUnavailable {
		t.Fatalf("err = %v, want KindSlotUnavailable", err)
	}
	if len(gw.created) != 0 {
		t.Fatal("external event must not be created for an unavailable slot")
	}
}

func TestCreateBookingConfirmedBookingBlocksSlot(t *testing.T) {
	st, _, _, svc := newFixture()
	st.confirmed = []model.Booking{{
		StartAt: time.Date(2026, time.March, 2, 15, 0, 0, 0, time.UTC),
		EndAt:   time.Date(2026, time.March, 2, 15, 30, 0, 0, time.UTC),
		Status:  model.BookingConfirmed,
	}}

	_, err := svc.CreateBooking(context.Background(), validRequest())
	be, ok := AsError(err)
	if !ok || be.Kind != KindSlotUnavailable {
		t.Fatalf("err = %v, want KindSlotUnavailable", err)
	}
}

func TestCreateBookingBusyFetchFailureIsFailOpen(t *testing.T) {
	_, _, gw, svc := newFixture()
	gw.busyErr = errors.New("calendar unreachable")

	if _, err := svc.CreateBooking(context.Background(), validRequest()); err != nil {
		t.Fatalf("busy fetch failure must not block booking: %v", err)
	}
}

func TestCreateBookingIdempotentReplay(t *testing.T) {
	st, _, gw, svc := newFixture()
	key := "4fa0e4c4-9c7c-4a1e-9a5e-0d6f9c2b1a33"
	existing := model.Booking{ID: "b-1", IdempotencyKey: key, Status: model.BookingConfirmed}
	st.byKey[key] = existing

	req := validRequest()
	req.IdempotencyKey = key
	b, err := svc.CreateBooking(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if b.ID != "b-1" {
		t.Fatalf("replay returned %q, want original booking b-1", b.ID)
	}
	if len(gw.created) != 0 {
		t.Fatal("replay must not create a second external event")
	}
}

// A concurrent retry with the same key can commit between our pre-check and
// our commit. The loser must discard its external event and return the
// winner's booking.
func TestCreateBookingDuplicateKeyRaceReturnsWinner(t *testing.T) {
	st, sc, gw, svc := newFixture()
	key := "4fa0e4c4-9c7c-4a1e-9a5e-0d6f9c2b1a33"
	st.commitErr = store.ErrDuplicateKey

	rs := &replayStore{
		fakeStore: st,
		winner:    model.Booking{ID: "b-winner", IdempotencyKey: key},
	}
	svc2 := NewService(rs, sc, gw, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	svc2.now = svc.now

	req := validRequest()
	req.IdempotencyKey = key
	b, err := svc2.CreateBooking(context.Background(), req)
	if err != nil {
		t.Fatal(err)
	}
	if b.ID != "b-winner" {
		t.Fatalf("got booking %q, want the concurrent winner", b.ID)
	}
	if len(gw.deleted) != 1 {
		t.Fatalf("duplicate external event not compensated: deletes = %v", gw.deleted)
	}
}

// replayStore misses the first idempotency lookup and hits afterwards.
type replayStore struct {
	*fakeStore
	winner model.Booking
	calls  int
}

func (r *replayStore) BookingByIdempotencyKey(_ context.Context, key string) (model.Booking, error) {
	r.calls++
	if r.calls == 1 {
		return model.Booking{}, store.ErrNotFound
	}
	return r.winner, nil
}

func TestCreateBookingValidation(t *testing.T) {
	_, _, gw, svc := newFixture()

	cases := []struct {
		name   string
		mutate func(*CreateRequest)
		field  string
	}{
		{"missing email", func(r *CreateRequest) { r.AttendeeEmail = "" }, "attendee_email"},
		{"bad email", func(r *CreateRequest) { r.AttendeeEmail = "not-an-email" }, "attendee_email"},
		{"missing name", func(r *CreateRequest) { r.AttendeeName = "" }, "attendee_name"},
		{"missing timezone", func(r *CreateRequest) { r.Timezone = "" }, "timezone"},
		{"unknown timezone", func(r *CreateRequest) { r.Timezone = "Nowhere/Nope" }, "timezone"},
		{"bad start time", func(r *CreateRequest) { r.StartTime = "tomorrow-ish" }, "start_time"},
		{"bad idempotency key", func(r *CreateRequest) { r.IdempotencyKey = "not-a-uuid" }, "idempotency_key"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := validRequest()
			tc.mutate(&req)
			_, err := svc.CreateBooking(context.Background(), req)
			be, ok := AsError(err)
			if !ok || be.Kind != KindValidation {
				t.Fatalf("err = %v, want KindValidation", err)
			}
			if _, present := be.Fields[tc.field]; !present {
				t.Fatalf("field errors %v missing %q", be.Fields, tc.field)
			}
		})
	}
	if len(gw.created) != 0 {
		t.Fatal("validation failures must not reach the gateway")
	}
}

func TestCreateBookingInactiveMeetingType(t *testing.T) {
	st, _, _, svc := newFixture()
	st.mt.IsActive = false

	_, err := svc.CreateBooking(context.Background(), validRequest())
	be, ok := AsError(err)
	if !ok || be.Kind != KindNotFound {
		t.Fatalf("err = %v, want KindNotFound for inactive meeting type", err)
	}
}

func TestCreateBookingExternalFailureAbortsBeforeCommit(t *testing.T) {
	st, _, gw, svc := newFixture()
	gw.createErr = errors.New("quota exceeded")

	_, err := svc.CreateBooking(context.Background(), validRequest())
	be, ok := AsError(err)
	if !ok || be.Kind != KindExternal {
		t.Fatalf("err = %v, want KindExternal", err)
	}
	if len(st.committed) != 0 {
		t.Fatal("nothing may be persisted when the external write fails")
	}
}

func TestCancelBooking(t *testing.T) {
	st, _, gw, svc := newFixture()
	st.cancelled = model.Booking{
		ID: "b-1", OwnerID: "owner-1", ExternalEventID: "evt-9",
		Status: model.BookingCancelled,
	}

	b, err := svc.CancelBooking(context.Background(), "b-1")
	if err != nil {
		t.Fatal(err)
	}
	if b.Status != model.BookingCancelled {
		t.Fatalf("Status = %q, want cancelled", b.Status)
	}
	if len(gw.deleted) != 1 || gw.deleted[0] != "evt-9" {
		t.Fatalf("external deletes = %v, want [evt-9]", gw.deleted)
	}

	t.Run("missing booking", func(t *testing.T) {
		st.cancelErr = store.ErrNotFound
		_, err := svc.CancelBooking(context.Background(), "nope")
		be, ok := AsError(err)
		if !ok || be.Kind != KindNotFound {
			t.Fatalf("err = %v, want KindNotFound", err)
		}
	})

	t.Run("already cancelled", func(t *testing.T) {
		st.cancelErr = store.ErrAlreadyCancelled
		_, err := svc.CancelBooking(context.Background(), "b-1")
		be, ok := AsError(err)
		if !ok || be.Kind != KindNotFound {
			t.Fatalf("err = %v, want KindNotFound", err)
		}
	})

	t.Run("external delete failure is non-fatal", func(t *testing.T) {
		st.cancelErr = nil
		gw.deleteErr = errors.New("calendar down")
		if _, err := svc.CancelBooking(context.Background(), "b-1"); err != nil {
			t.Fatalf("cancel must succeed despite external delete failure: %v", err)
		}
	})
}

func TestListSlots(t *testing.T) {
	_, _, gw, svc := newFixture()
	loc, _ := time.LoadLocation("America/New_York")
	from := time.Date(2026, time.March, 2, 0, 0, 0, 0, loc).UTC()
	to := from.Add(24 * time.Hour)

	// Busy 10:00-10:30 local removes exactly one slot.
	gw.busy = []timeslot.Interval{{
		Start: time.Date(2026, time.March, 2, 10, 0, 0, 0, loc),
		End:   time.Date(2026, time.March, 2, 10, 30, 0, 0, loc),
	}}

	slots, err := svc.ListSlots(context.Background(), "owner-1", 7, from, to)
	if err != nil {
		t.Fatal(err)
	}
	// 16 half-hour starts in 09:00-17:00, minus the busy one.
	if len(slots) != 15 {
		t.Fatalf("got %d slots, want 15", len(slots))
	}
	for _, s := range slots {
		if s.End.Sub(s.Start) != 30*time.Minute {
			t.Fatalf("slot %v is not 30 minutes", s)
		}
		if s.Start.Equal(time.Date(2026, time.March, 2, 10, 0, 0, 0, loc)) {
			t.Fatalf("busy slot offered: %v", s)
		}
	}
}
