package poller

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"

	"busalert/internal/availability"
	"busalert/internal/cities"
	"busalert/internal/journal"
	"busalert/internal/store"
)

type fakeClient struct {
	mu      sync.Mutex
	calls   []string // "origin->dest@date"
	trips   map[int64][]availability.Trip
	failFor map[int64]bool
	byChat  map[int]int64 // originCode -> chatID marker, see makeStore
}

func (f *fakeClient) Search(_ context.Context, originCode, destCode int, date string) ([]availability.Trip, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chatID := f.byChat[originCode]
	f.calls = append(f.calls, date)
	if f.failFor[chatID] {
		return nil, errors.New("boom")
	}
	return f.trips[chatID], nil
}

type fakeDispatcher struct {
	mu   sync.Mutex
	sent map[int64][]string
}

func (f *fakeDispatcher) Send(_ context.Context, chatID int64, text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sent == nil {
		f.sent = map[int64][]string{}
	}
	f.sent[chatID] = append(f.sent[chatID], text)
	return nil
}

func (f *fakeDispatcher) messages(chatID int64) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.sent[chatID]...)
}

func subscribe(st *store.Store, chatID int64, origin, dest, date string) {
	st.Begin(chatID)
	st.Update(chatID, func(s *store.Subscription) {
		s.Origin, s.Destination, s.TravelDate = origin, dest, date
		s.State = store.StateSubscribed
	})
}

func newService(st *store.Store, client availability.Client, disp Dispatcher) *Service {
	jrn, _ := journal.Open(journal.Config{}, zerolog.Nop())
	return New(Config{Workers: 2, LookupRatePerSec: 1000},
		st, cities.NewDirectory(), client, disp, jrn, zerolog.Nop())
}

func TestCycleDispatchesOneMessage(t *testing.T) {
	t.Parallel()
	st := store.New()
	subscribe(st, 1, "تهران", "مشهد", "1403/03/12")

	client := &fakeClient{
		byChat: map[int]int64{11320000: 1},
		trips: map[int64][]availability.Trip{
			1: {
				{DepartureTime: "08:30", AvailableSeats: 3, Price: 1250000, CompanyName: "همسفر"},
				{DepartureTime: "10:00", AvailableSeats: 0},
			},
		},
	}
	disp := &fakeDispatcher{}

	newService(st, client, disp).RunCycle(context.Background())

	msgs := disp.messages(1)
	if len(msgs) != 1 {
		t.Fatalf("messages = %d, want exactly 1", len(msgs))
	}
	if !strings.Contains(msgs[0], "08:30") {
		t.Fatalf("dispatched message missing available trip:\n%s", msgs[0])
	}
	if strings.Contains(msgs[0], "10:00") {
		t.Fatalf("zero-seat trip leaked into message:\n%s", msgs[0])
	}
}

func TestCycleSilentWhenNoSeats(t *testing.T) {
	t.Parallel()
	st := store.New()
	subscribe(st, 1, "تهران", "مشهد", "1403/03/12")

	client := &fakeClient{
		byChat: map[int]int64{11320000: 1},
		trips: map[int64][]availability.Trip{
			1: {{DepartureTime: "08:30", AvailableSeats: 0}},
		},
	}
	disp := &fakeDispatcher{}

	newService(st, client, disp).RunCycle(context.Background())

	if len(disp.messages(1)) != 0 {
		t.Fatal("expected no message for zero-seat inventory")
	}
}

func TestCycleContinuesPastFailures(t *testing.T) {
	t.Parallel()
	st := store.New()
	subscribe(st, 1, "ناکجاآباد", "مشهد", "1403/03/12") // unresolvable origin
	subscribe(st, 2, "تهران", "مشهد", "خرداد")          // unparseable date
	subscribe(st, 3, "رشت", "مشهد", "1403/03/12")       // lookup error
	subscribe(st, 4, "اصفهان", "مشهد", "1403/03/12")    // should still get its alert

	client := &fakeClient{
		byChat:  map[int]int64{54310000: 3, 21310000: 4},
		failFor: map[int64]bool{3: true},
		trips: map[int64][]availability.Trip{
			4: {{DepartureTime: "21:45", AvailableSeats: 7, Price: 900000}},
		},
	}
	disp := &fakeDispatcher{}

	newService(st, client, disp).RunCycle(context.Background())

	if len(disp.messages(4)) != 1 {
		t.Fatal("healthy subscription was not processed after earlier failures")
	}
	for _, chat := range []int64{1, 2, 3} {
		if len(disp.messages(chat)) != 0 {
			t.Fatalf("chat %d should not have received a message", chat)
		}
	}
}

func TestCycleSkipsInactiveAndIncomplete(t *testing.T) {
	t.Parallel()
	st := store.New()
	subscribe(st, 1, "تهران", "مشهد", "1403/03/12")
	st.Deactivate(1)
	st.Begin(2) // registration in progress

	client := &fakeClient{byChat: map[int]int64{}}
	disp := &fakeDispatcher{}

	newService(st, client, disp).RunCycle(context.Background())

	client.mu.Lock()
	calls := len(client.calls)
	client.mu.Unlock()
	if calls != 0 {
		t.Fatalf("expected no lookups, got %d", calls)
	}
}

func TestApplyRejectsBadSchedule(t *testing.T) {
	t.Parallel()
	st := store.New()
	s := newService(st, &fakeClient{byChat: map[int]int64{}}, &fakeDispatcher{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := s.Start(ctx); err != nil {
		t.Fatalf("Start error: %v", err)
	}
	defer s.Stop(context.Background())

	if err := s.Apply(Config{Schedule: "not a cron expression"}); err == nil {
		t.Fatal("expected error for invalid schedule")
	}
	if err := s.Apply(Config{Schedule: "*/10 * * * *"}); err != nil {
		t.Fatalf("Apply error: %v", err)
	}
}
