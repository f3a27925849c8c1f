// Package telegram adapts the Telegram Bot API (via telebot long polling)
// to the transport boundary the core speaks.
package telegram

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
	tele "gopkg.in/telebot.v4"

	rtsup "busalert/internal/runtime/supervisor"
	"busalert/internal/transport"
)

type Config struct {
	Token       string
	PollTimeout time.Duration
}

type Adapter struct {
	cfg Config
	log zerolog.Logger

	bot     *tele.Bot
	out     atomic.Value // stores (chan<- transport.Event)
	runMu   sync.Mutex
	running bool

	// sup owns the adapter goroutines (poll loop, stop watcher, drop logger).
	sup *rtsup.Supervisor

	// droppedEvents counts inbound events dropped because the consumer fell
	// behind the poll loop; reported periodically instead of per event.
	droppedEvents uint64
}

func New(cfg Config, log zerolog.Logger) (*Adapter, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	timeout := cfg.PollTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		Poller: &tele.LongPoller{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}

	a := &Adapter{cfg: cfg, log: log, bot: b}
	// Ensure atomic.Value is initialized with a stable dynamic type.
	var nilOut chan<- transport.Event
	a.out.Store(nilOut)
	a.registerHandlers()
	return a, nil
}

func (a *Adapter) registerHandlers() {
	// Handlers forward to the CURRENT output channel; Start() may swap it.
	a.bot.Handle("/start", func(c tele.Context) error {
		return a.forward(transport.EventStart, c.Message())
	})
	a.bot.Handle("/stop", func(c tele.Context) error {
		return a.forward(transport.EventStop, c.Message())
	})
	a.bot.Handle(tele.OnText, func(c tele.Context) error {
		return a.forward(transport.EventText, c.Message())
	})
}

func (a *Adapter) forward(kind transport.EventKind, m *tele.Message) error {
	if m == nil || m.Chat == nil {
		return nil
	}
	ev := transport.Event{
		Kind:   kind,
		ChatID: m.Chat.ID,
		Text:   m.Text,
		At:     m.Time(),
	}

	v := a.out.Load()
	out, _ := v.(chan<- transport.Event)
	if out == nil {
		return nil
	}
	select {
	case out <- ev:
	default:
		atomic.AddUint64(&a.droppedEvents, 1)
	}
	return nil
}

func (a *Adapter) Start(ctx context.Context, out chan<- transport.Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	a.runMu.Lock()
	if a.running {
		a.runMu.Unlock()
		return nil
	}
	a.running = true
	a.out.Store(out)
	a.sup = rtsup.New(ctx, a.log.With().Str("component", "telegram").Logger())
	sup := a.sup
	a.runMu.Unlock()

	// Periodic summary for dropped events (avoid per-event log spam).
	sup.Go0("events.drop_report", func(c context.Context) {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-c.Done():
				if n := atomic.SwapUint64(&a.droppedEvents, 0); n > 0 {
					a.log.Warn().Uint64("count", n).Msg("inbound events dropped (channel full)")
				}
				return
			case <-ticker.C:
				if n := atomic.SwapUint64(&a.droppedEvents, 0); n > 0 {
					a.log.Warn().Uint64("count", n).Msg("inbound events dropped (channel full)")
				}
			}
		}
	})

	// Stop telebot when the adapter context is cancelled.
	sup.Go0("telebot.stop_on_cancel", func(c context.Context) {
		<-c.Done()
		if a.bot != nil {
			a.bot.Stop()
		}
	})

	// Telebot's Start() is a long-running loop. In some failure modes it can
	// exit unexpectedly; run it under a restart loop so the adapter self-heals.
	sup.GoRestart("telebot.poll", func(c context.Context) error {
		a.log.Info().Msg("polling started")
		if a.bot != nil {
			a.bot.Start() // blocks until Stop()
		}
		a.log.Info().Msg("polling stopped")
		if c.Err() != nil {
			return context.Canceled
		}
		return errors.New("telegram poll loop exited unexpectedly")
	})

	return nil
}

func (a *Adapter) Stop(ctx context.Context) error {
	a.runMu.Lock()
	sup := a.sup
	a.sup = nil
	wasRunning := a.running
	a.running = false
	var nilOut chan<- transport.Event
	a.out.Store(nilOut)
	a.runMu.Unlock()

	if !wasRunning {
		return nil
	}
	if sup != nil {
		sup.Cancel()
	}
	// telebot Stop is expected to be fast; run it async just in case.
	if a.bot != nil {
		go a.bot.Stop()
	}

	// Grace window: keep shutdown snappy even if the long-poll is still waiting.
	grace := 2 * time.Second
	if dl, ok := ctx.Deadline(); ok {
		if rem := time.Until(dl); rem > 0 && rem < grace {
			grace = rem
		}
	}
	wctx, cancel := context.WithTimeout(ctx, grace)
	defer cancel()

	if sup == nil {
		return nil
	}
	if err := sup.Wait(wctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			a.log.Warn().Err(err).Msg("telegram stop timed out")
			return nil
		}
		a.log.Warn().Err(err).Msg("telegram stop error")
	}
	return nil
}

func (a *Adapter) SendText(ctx context.Context, to transport.ChatTarget, text string, opt *transport.SendOptions) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}
	if opt == nil {
		opt = &transport.SendOptions{}
	}

	sendOpt := &tele.SendOptions{}
	switch {
	case len(opt.Choices) > 0:
		sendOpt.ReplyMarkup = choiceKeyboard(opt.Choices)
	case opt.ClearChoices:
		sendOpt.ReplyMarkup = &tele.ReplyMarkup{RemoveKeyboard: true}
	}

	_, err := a.bot.Send(&tele.Chat{ID: to.ChatID}, text, sendOpt)
	return err
}

// choiceKeyboard renders one choice per row, like the original keyboards.
func choiceKeyboard(choices []string) *tele.ReplyMarkup {
	rm := &tele.ReplyMarkup{ResizeKeyboard: true}
	rows := make([]tele.Row, 0, len(choices))
	for _, c := range choices {
		rows = append(rows, rm.Row(rm.Text(c)))
	}
	rm.Reply(rows...)
	return rm
}
