// Package dialog drives the registration dialogue: one inbound event plus
// the stored state produce the next state and an outbound prompt.
package dialog

import (
	"github.com/rs/zerolog"

	"busalert/internal/cities"
	"busalert/internal/dates"
	"busalert/internal/store"
	"busalert/internal/transport"
)

const (
	promptOrigin      = "شهر مبدا را انتخاب کنید:"
	promptDestination = "شهر مقصد را انتخاب کنید:"
	promptDate        = "تاریخ مورد نظر را انتخاب کنید:"
	promptSubscribed  = "پیگیری شما اضافه شد 🙌\nبه محض موجود شدن اتوبوس به شما اطلاع رسانی می‌شود"
)

// Prompt is the outbound reply for one handled event.
type Prompt struct {
	Text         string
	Choices      []string
	ClearChoices bool
}

type Machine struct {
	store  *store.Store
	cities *cities.Directory
	log    zerolog.Logger
}

func New(st *store.Store, dir *cities.Directory, log zerolog.Logger) *Machine {
	return &Machine{
		store:  st,
		cities: dir,
		log:    log.With().Str("component", "dialog").Logger(),
	}
}

// Handle consumes one inbound event and returns the prompt to send, or nil
// when the event is inert (unknown user, stopped or completed dialogue).
func (m *Machine) Handle(ev transport.Event) *Prompt {
	switch ev.Kind {
	case transport.EventStart:
		return m.handleStart(ev)
	case transport.EventStop:
		m.handleStop(ev)
		return nil
	case transport.EventText:
		return m.handleText(ev)
	default:
		return nil
	}
}

// A start always resets the user to the beginning, discarding any
// in-progress or completed registration.
func (m *Machine) handleStart(ev transport.Event) *Prompt {
	m.store.Begin(ev.ChatID)
	m.log.Info().Int64("chat_id", ev.ChatID).Msg("registration started")
	return &Prompt{Text: promptOrigin, Choices: m.cities.Names()}
}

// A stop is accepted from any state, including before any registration.
func (m *Machine) handleStop(ev transport.Event) {
	m.store.Deactivate(ev.ChatID)
	m.log.Info().Int64("chat_id", ev.ChatID).Msg("subscription deactivated")
}

func (m *Machine) handleText(ev transport.Event) *Prompt {
	sub, ok := m.store.Get(ev.ChatID)
	if !ok || !sub.Active {
		// No prior start: ignored, no record, no reply.
		return nil
	}

	// The offered keyboards are advisory only; any text is stored verbatim.
	switch sub.State {
	case store.StateAwaitingOrigin:
		m.store.Update(ev.ChatID, func(s *store.Subscription) {
			s.Origin = ev.Text
			s.State = store.StateAwaitingDestination
		})
		return &Prompt{Text: promptDestination, Choices: m.cities.ListExcluding(ev.Text)}

	case store.StateAwaitingDestination:
		m.store.Update(ev.ChatID, func(s *store.Subscription) {
			s.Destination = ev.Text
			s.State = store.StateAwaitingDate
		})
		return &Prompt{Text: promptDate, Choices: dates.Upcoming(ev.At, dates.UpcomingDays)}

	case store.StateAwaitingDate:
		m.store.Update(ev.ChatID, func(s *store.Subscription) {
			s.TravelDate = ev.Text
			s.State = store.StateSubscribed
		})
		m.log.Info().Int64("chat_id", ev.ChatID).Msg("subscription completed")
		return &Prompt{Text: promptSubscribed, ClearChoices: true}

	case store.StateSubscribed, store.StateNone:
		return nil
	default:
		return nil
	}
}
