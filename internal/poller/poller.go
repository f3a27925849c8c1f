// Package poller runs the recurring availability check across all
// registered subscriptions and dispatches alerts when seats appear.
package poller

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"busalert/internal/availability"
	"busalert/internal/cities"
	"busalert/internal/dates"
	"busalert/internal/journal"
	"busalert/internal/metrics"
	"busalert/internal/report"
	"busalert/internal/store"
)

// DefaultSchedule matches the original every-five-minutes cadence.
const DefaultSchedule = "*/5 * * * *"

// Dispatcher delivers one alert message to a user. Implemented by the
// notifier service.
type Dispatcher interface {
	Send(ctx context.Context, chatID int64, text string) error
}

type Config struct {
	// Schedule is a 5-field cron expression.
	Schedule string
	// Workers bounds fan-out concurrency inside one tick.
	Workers int
	// LookupRatePerSec caps calls to the external availability source.
	LookupRatePerSec int
}

func (c *Config) applyDefaults() {
	if c.Schedule == "" {
		c.Schedule = DefaultSchedule
	}
	if c.Workers <= 0 {
		c.Workers = 4
	}
	if c.LookupRatePerSec <= 0 {
		c.LookupRatePerSec = 5
	}
}

// Service holds explicit references to every collaborator; nothing is
// captured ambiently by the timer callback.
type Service struct {
	log     zerolog.Logger
	store   *store.Store
	cities  *cities.Directory
	client  availability.Client
	disp    Dispatcher
	journal journal.Journal
	limiter *rate.Limiter

	parser cron.Parser

	mu      sync.Mutex
	cfg     Config
	cron    *cron.Cron
	entryID cron.EntryID
	runCtx  context.Context
}

func New(cfg Config, st *store.Store, dir *cities.Directory, client availability.Client,
	disp Dispatcher, jrn journal.Journal, log zerolog.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		log:     log.With().Str("component", "poller").Logger(),
		store:   st,
		cities:  dir,
		client:  client,
		disp:    disp,
		journal: jrn,
		limiter: rate.NewLimiter(rate.Limit(cfg.LookupRatePerSec), cfg.LookupRatePerSec),
		parser:  cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow),
		cfg:     cfg,
	}
}

// Start begins cron triggering. Idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	sched, err := s.parser.Parse(s.cfg.Schedule)
	if err != nil {
		return err
	}

	s.runCtx = ctx
	s.cron = cron.New(cron.WithParser(s.parser))
	s.entryID = s.cron.Schedule(sched, cron.FuncJob(func() { s.RunCycle(ctx) }))
	s.cron.Start()
	s.log.Info().Str("schedule", s.cfg.Schedule).Int("workers", s.cfg.Workers).Msg("poller started")
	return nil
}

// Stop halts triggering; a tick in flight finishes unless ctx expires first.
func (s *Service) Stop(ctx context.Context) {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()
	if c == nil {
		return
	}
	select {
	case <-c.Stop().Done():
	case <-ctx.Done():
		// best-effort
	}
	s.log.Info().Msg("poller stopped")
}

// Apply reschedules the tick when the cron expression changes. Invalid
// expressions are rejected and the previous schedule kept.
func (s *Service) Apply(cfg Config) error {
	cfg.applyDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()

	if cfg.Schedule != s.cfg.Schedule && s.cron != nil {
		sched, err := s.parser.Parse(cfg.Schedule)
		if err != nil {
			return err
		}
		s.cron.Remove(s.entryID)
		ctx := s.runCtx
		s.entryID = s.cron.Schedule(sched, cron.FuncJob(func() { s.RunCycle(ctx) }))
		s.log.Info().Str("schedule", cfg.Schedule).Msg("poll schedule updated")
	}
	s.cfg = cfg
	s.limiter.SetLimit(rate.Limit(cfg.LookupRatePerSec))
	s.limiter.SetBurst(cfg.LookupRatePerSec)
	return nil
}

// RunCycle executes one tick: snapshot, fan out with bounded concurrency,
// and process every eligible subscription regardless of individual
// failures.
func (s *Service) RunCycle(ctx context.Context) {
	start := time.Now()
	snap := s.store.Snapshot()
	metrics.SetActiveSubscriptions(len(snap))
	metrics.IncPollCycle()
	if len(snap) == 0 {
		return
	}

	s.mu.Lock()
	workers := s.cfg.Workers
	s.mu.Unlock()
	if workers > len(snap) {
		workers = len(snap)
	}

	jobs := make(chan store.Subscription)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				s.processOne(ctx, sub)
			}
		}()
	}
	for _, sub := range snap {
		jobs <- sub
	}
	close(jobs)
	wg.Wait()

	s.log.Debug().Int("subscriptions", len(snap)).
		Dur("took", time.Since(start)).Msg("poll cycle finished")
}

// processOne handles a single subscription. All failures are contained
// here; it never panics out into the worker loop.
func (s *Service) processOne(ctx context.Context, sub store.Subscription) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Int64("chat_id", sub.ChatID).Msgf("subscription processing panicked: %v", r)
		}
	}()

	log := s.log.With().
		Int64("chat_id", sub.ChatID).
		Str("origin", sub.Origin).
		Str("destination", sub.Destination).
		Str("date", sub.TravelDate).
		Logger()

	originCode, err := s.cities.Resolve(sub.Origin)
	if err != nil {
		log.Warn().Err(err).Msg("origin not in city table; skipping")
		metrics.IncLookup("bad_city")
		return
	}
	destCode, err := s.cities.Resolve(sub.Destination)
	if err != nil {
		log.Warn().Err(err).Msg("destination not in city table; skipping")
		metrics.IncLookup("bad_city")
		return
	}
	isoDate, err := dates.ToGregorian(sub.TravelDate)
	if err != nil {
		log.Warn().Err(err).Msg("travel date not parseable; skipping")
		metrics.IncLookup("bad_date")
		return
	}

	if err := s.limiter.Wait(ctx); err != nil {
		return
	}
	trips, err := s.client.Search(ctx, originCode, destCode, isoDate)
	if err != nil {
		// No retry here; the next tick retries naturally.
		log.Warn().Err(err).Msg("availability lookup failed; skipping")
		metrics.IncLookup("lookup_error")
		return
	}

	open := report.Available(trips)
	if len(open) == 0 {
		metrics.IncLookup("no_seats")
		return
	}
	metrics.IncLookup("ok")

	msg := report.Format(sub.Origin, sub.Destination, sub.TravelDate, open)
	if err := s.disp.Send(ctx, sub.ChatID, msg); err != nil {
		log.Warn().Err(err).Msg("alert dispatch failed")
		return
	}
	metrics.IncAlertSent()
	log.Info().Int("trips", len(open)).Msg("alert dispatched")

	if err := s.journal.Append(ctx, journal.Entry{
		At:          time.Now(),
		ChatID:      sub.ChatID,
		Origin:      sub.Origin,
		Destination: sub.Destination,
		TravelDate:  sub.TravelDate,
		Trips:       len(open),
		Chars:       utf8.RuneCountInString(msg),
	}); err != nil {
		log.Debug().Err(err).Msg("journal append failed")
	}
}
