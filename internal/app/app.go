package app

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"busalert/internal/availability"
	"busalert/internal/cities"
	"busalert/internal/config"
	"busalert/internal/dialog"
	"busalert/internal/health"
	"busalert/internal/journal"
	"busalert/internal/logging"
	"busalert/internal/metrics"
	"busalert/internal/notifier"
	"busalert/internal/poller"
	"busalert/internal/runtime/supervisor"
	"busalert/internal/store"
	"busalert/internal/transport"
	"busalert/internal/transport/telegram"
)

type App struct {
	cfgm *config.Manager
	sup  *supervisor.Supervisor

	log zerolog.Logger

	store   *store.Store
	dialog  *dialog.Machine
	adapter transport.Adapter
	notif   *notifier.Service
	poller  *poller.Service
	health  *health.Server
	journal journal.Journal

	events chan transport.Event
}

func NewApp(cfgPath string) (*App, error) {
	cfgm := config.NewManager(cfgPath, zerolog.Nop())
	cfg, err := cfgm.Load()
	if err != nil {
		return nil, err
	}

	log := logging.New(cfg.Logging)
	cfgm = config.NewManager(cfgPath, log)
	cfgm.Commit(cfg)

	metrics.Register()

	pollTimeout, err := config.ParseDurationOrDefault("telegram.poll_timeout", cfg.Telegram.PollTimeout, 10*time.Second)
	if err != nil {
		return nil, err
	}
	adapter, err := telegram.New(telegram.Config{
		Token:       cfg.Telegram.Token,
		PollTimeout: pollTimeout,
	}, log)
	if err != nil {
		return nil, err
	}

	st := store.New()
	dir := cities.NewDirectory()

	lookupTimeout, err := config.ParseDurationOrDefault("availability.timeout", cfg.Availability.Timeout, 15*time.Second)
	if err != nil {
		return nil, err
	}
	client := availability.NewHTTPClient(availability.Config{
		BaseURL: cfg.Availability.BaseURL,
		Timeout: lookupTimeout,
	}, log)

	jrn, err := journal.Open(journal.Config{
		Driver: cfg.Journal.Driver,
		Path:   cfg.Journal.Path,
	}, log)
	if err != nil {
		return nil, err
	}

	ncfg, err := mapNotifierConfig(cfg)
	if err != nil {
		return nil, err
	}
	notif := notifier.New(ncfg, adapter, log)

	poll := poller.New(poller.Config{
		Schedule:         cfg.Poller.Schedule,
		Workers:          cfg.Poller.Workers,
		LookupRatePerSec: cfg.Poller.LookupRatePerSec,
	}, st, dir, client, notif, jrn, log)

	var hs *health.Server
	if cfg.HTTP.Addr != "" {
		hs = health.NewServer(cfg.HTTP.Addr, log)
	}

	return &App{
		cfgm:    cfgm,
		log:     log.With().Str("component", "app").Logger(),
		store:   st,
		dialog:  dialog.New(st, dir, log),
		adapter: adapter,
		notif:   notif,
		poller:  poll,
		health:  hs,
		journal: jrn,
		events:  make(chan transport.Event, 256),
	}, nil
}

// Done is closed when the app run context ends (fatal error or Stop).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor, if any.
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = supervisor.New(ctx, a.log)

	if err := a.adapter.Start(a.sup.Context(), a.events); err != nil {
		return err
	}
	a.notif.Start(a.sup.Context())
	if err := a.poller.Start(a.sup.Context()); err != nil {
		return err
	}
	if a.health != nil {
		a.sup.Go("health.serve", func(context.Context) error {
			return a.health.Start()
		})
	}

	a.sup.Go0("dialog.dispatch", func(c context.Context) {
		a.dispatchLoop(c)
	})

	sub := a.cfgm.Subscribe(8)
	a.sup.Go0("config.reload", func(c context.Context) {
		defer a.cfgm.Unsubscribe(sub)
		a.reloadLoop(c, sub)
	})
	a.sup.Go("config.watch", func(c context.Context) error {
		return a.cfgm.Watch(c)
	})

	a.log.Info().Msg("app started")
	return nil
}

// dispatchLoop turns incoming chat events into dialogue replies.
func (a *App) dispatchLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-a.events:
			if !ok {
				return
			}
			prompt := a.dialog.Handle(ev)
			if prompt == nil {
				continue
			}
			err := a.adapter.SendText(ctx, transport.ChatTarget{ChatID: ev.ChatID}, prompt.Text, &transport.SendOptions{
				Choices:      prompt.Choices,
				ClearChoices: prompt.ClearChoices,
			})
			if err != nil {
				a.log.Warn().Err(err).Int64("chat_id", ev.ChatID).Msg("reply failed")
			}
		}
	}
}

// reloadLoop applies validated config updates. The log level, poll
// schedule and rate limits apply live; other sections need a restart.
func (a *App) reloadLoop(ctx context.Context, sub chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case newCfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config.
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						newCfg = newer
					}
				default:
					goto APPLY
				}
			}
		APPLY:
			zerolog.SetGlobalLevel(logging.ParseLevel(newCfg.Logging.Level))
			if err := a.poller.Apply(poller.Config{
				Schedule:         newCfg.Poller.Schedule,
				Workers:          newCfg.Poller.Workers,
				LookupRatePerSec: newCfg.Poller.LookupRatePerSec,
			}); err != nil {
				a.log.Warn().Err(err).Msg("invalid poller config; keeping previous")
				continue
			}
			a.log.Info().Msg("config reloaded")
		}
	}
}

func (a *App) Stop(ctx context.Context) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info().Msg("stopping")

	// Cancel the run context first so background loops start unwinding.
	a.sup.Cancel()

	// Bounded shutdown steps so one component can't stall the whole stop.
	step := func(name string, max time.Duration, fn func(context.Context) error) {
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn().Err(err).Str("step", name).Msg("stop step error")
			}
		case <-stepCtx.Done():
			a.log.Warn().Str("step", name).Msg("stop step deadline reached (continuing)")
		}
	}

	step("poller", 2*time.Second, func(c context.Context) error { a.poller.Stop(c); return nil })
	step("notifier", 2*time.Second, func(c context.Context) error { a.notif.Stop(c); return nil })
	if a.health != nil {
		step("health", 1*time.Second, func(c context.Context) error { a.health.Stop(c); return nil })
	}
	step("adapter", 2*time.Second, func(c context.Context) error { return a.adapter.Stop(c) })
	step("journal", 1*time.Second, func(context.Context) error { return a.journal.Close() })
	step("supervisor", 2*time.Second, func(c context.Context) error { return a.sup.Wait(c) })

	a.log.Info().Msg("stopped")
	return nil
}

func mapNotifierConfig(cfg *config.Config) (notifier.Config, error) {
	retryBase, err := config.ParseDurationField("notifier.retry_base", cfg.Notifier.RetryBase)
	if err != nil {
		return notifier.Config{}, err
	}
	retryMaxDelay, err := config.ParseDurationField("notifier.retry_max_delay", cfg.Notifier.RetryMaxDelay)
	if err != nil {
		return notifier.Config{}, err
	}
	return notifier.Config{
		Workers:       cfg.Notifier.Workers,
		QueueSize:     cfg.Notifier.QueueSize,
		RatePerSec:    cfg.Notifier.RatePerSec,
		RetryMax:      cfg.Notifier.RetryMax,
		RetryBase:     retryBase,
		RetryMaxDelay: retryMaxDelay,
	}, nil
}
