package dialog

import (
	"testing"
	"time"

	"github.com/rs/zerolog"

	"busalert/internal/cities"
	"busalert/internal/store"
	"busalert/internal/transport"
)

func newMachine() (*Machine, *store.Store, *cities.Directory) {
	st := store.New()
	dir := cities.NewDirectory()
	return New(st, dir, zerolog.Nop()), st, dir
}

func textEvent(chatID int64, text string) transport.Event {
	return transport.Event{
		Kind:   transport.EventText,
		ChatID: chatID,
		Text:   text,
		At:     time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestFullRegistrationFlow(t *testing.T) {
	t.Parallel()
	m, st, dir := newMachine()
	const chat = int64(99)

	p := m.Handle(transport.Event{Kind: transport.EventStart, ChatID: chat})
	if p == nil || len(p.Choices) != dir.Len() {
		t.Fatalf("start prompt = %+v, want full city list", p)
	}

	p = m.Handle(textEvent(chat, "تهران"))
	if p == nil || len(p.Choices) != dir.Len()-1 {
		t.Fatalf("destination prompt = %+v, want city list minus origin", p)
	}
	for _, c := range p.Choices {
		if c == "تهران" {
			t.Fatal("origin offered as a destination choice")
		}
	}
	sub, _ := st.Get(chat)
	if sub.Origin != "تهران" || sub.State != store.StateAwaitingDestination {
		t.Fatalf("record after origin: %+v", sub)
	}

	p = m.Handle(textEvent(chat, "مشهد"))
	if p == nil || len(p.Choices) != 5 {
		t.Fatalf("date prompt = %+v, want 5 dates", p)
	}
	sub, _ = st.Get(chat)
	if sub.Destination != "مشهد" || sub.State != store.StateAwaitingDate {
		t.Fatalf("record after destination: %+v", sub)
	}

	p = m.Handle(textEvent(chat, "1403/03/12"))
	if p == nil || !p.ClearChoices || len(p.Choices) != 0 {
		t.Fatalf("confirmation prompt = %+v, want keyboard cleared", p)
	}
	sub, _ = st.Get(chat)
	if sub.TravelDate != "1403/03/12" || sub.State != store.StateSubscribed {
		t.Fatalf("record after date: %+v", sub)
	}

	// Further text is inert.
	if p := m.Handle(textEvent(chat, "anything")); p != nil {
		t.Fatalf("expected no prompt after completion, got %+v", p)
	}
}

func TestUnknownUserIgnored(t *testing.T) {
	t.Parallel()
	m, st, _ := newMachine()

	if p := m.Handle(textEvent(123, "تهران")); p != nil {
		t.Fatalf("expected nil prompt for unknown user, got %+v", p)
	}
	if _, ok := st.Get(123); ok {
		t.Fatal("record created for unknown user")
	}
}

func TestStopFromAnyState(t *testing.T) {
	t.Parallel()
	m, st, _ := newMachine()
	const chat = int64(7)

	m.Handle(transport.Event{Kind: transport.EventStart, ChatID: chat})
	m.Handle(textEvent(chat, "رشت"))
	m.Handle(transport.Event{Kind: transport.EventStop, ChatID: chat})

	sub, ok := st.Get(chat)
	if !ok || sub.Active || sub.State != store.StateNone || sub.Origin != "" {
		t.Fatalf("record not cleared on stop: %+v ok=%v", sub, ok)
	}

	// Text after stop is inert.
	if p := m.Handle(textEvent(chat, "یزد")); p != nil {
		t.Fatalf("expected nil prompt after stop, got %+v", p)
	}

	// Stop before any start is accepted silently.
	m.Handle(transport.Event{Kind: transport.EventStop, ChatID: 555})
	if sub, ok := st.Get(555); !ok || sub.Active {
		t.Fatalf("expected inert record after bare stop, got %+v ok=%v", sub, ok)
	}
}

func TestStartResetsCompletedSubscription(t *testing.T) {
	t.Parallel()
	m, st, _ := newMachine()
	const chat = int64(3)

	m.Handle(transport.Event{Kind: transport.EventStart, ChatID: chat})
	m.Handle(textEvent(chat, "تهران"))
	m.Handle(textEvent(chat, "مشهد"))
	m.Handle(textEvent(chat, "1403/03/12"))

	m.Handle(transport.Event{Kind: transport.EventStart, ChatID: chat})
	sub, _ := st.Get(chat)
	if sub.State != store.StateAwaitingOrigin || sub.Origin != "" || sub.TravelDate != "" {
		t.Fatalf("start did not fully overwrite: %+v", sub)
	}
}

func TestVerbatimTextAccepted(t *testing.T) {
	t.Parallel()
	m, st, dir := newMachine()
	const chat = int64(11)

	m.Handle(transport.Event{Kind: transport.EventStart, ChatID: chat})
	// Not one of the offered choices: stored verbatim anyway.
	p := m.Handle(textEvent(chat, "ونیز"))
	if p == nil || len(p.Choices) != dir.Len() {
		t.Fatalf("unknown origin should exclude nothing, got %+v", p)
	}
	sub, _ := st.Get(chat)
	if sub.Origin != "ونیز" {
		t.Fatalf("origin not stored verbatim: %+v", sub)
	}
}
