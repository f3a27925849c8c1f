// Package notifier delivers outbound alert messages through the transport
// adapter: bounded queue, worker pool, rate limit, retry with backoff.
package notifier

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	rtsup "busalert/internal/runtime/supervisor"
	"busalert/internal/transport"
)

var (
	ErrQueueFull = errors.New("notifier queue full")
	ErrStopped   = errors.New("notifier stopped")
)

type Config struct {
	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration
}

func (c *Config) applyDefaults() {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 256
	}
	if c.RatePerSec <= 0 {
		// Telegram tolerates a low steady send rate per bot.
		c.RatePerSec = 3
	}
	if c.RetryMax < 0 {
		c.RetryMax = 0
	}
	if c.RetryBase <= 0 {
		c.RetryBase = 500 * time.Millisecond
	}
	if c.RetryMaxDelay <= 0 {
		c.RetryMaxDelay = 10 * time.Second
	}
}

type job struct {
	target transport.ChatTarget
	text   string
	opt    *transport.SendOptions
}

// Service is safe for concurrent use.
type Service struct {
	mu sync.Mutex

	cfg     Config
	adapter transport.Adapter
	log     zerolog.Logger
	limiter *rate.Limiter

	accepting bool
	queue     chan job
	sup       *rtsup.Supervisor
	sendWG    sync.WaitGroup
}

func New(cfg Config, adapter transport.Adapter, log zerolog.Logger) *Service {
	cfg.applyDefaults()
	return &Service{
		cfg:     cfg,
		adapter: adapter,
		log:     log.With().Str("component", "notifier").Logger(),
		// Token bucket: burst = rate per sec, so short spikes don't block hard.
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec),
	}
}

// Start is idempotent.
func (s *Service) Start(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.queue != nil {
		return
	}
	s.queue = make(chan job, s.cfg.QueueSize)
	s.accepting = true
	s.sup = rtsup.New(ctx, s.log)

	q := s.queue
	for i := 0; i < s.cfg.Workers; i++ {
		name := fmt.Sprintf("worker.%d", i)
		s.sup.Go(name, func(c context.Context) error {
			s.workerLoop(c, q)
			return nil
		})
	}
}

// Stop blocks new sends and drains the queue best-effort until ctx expires.
func (s *Service) Stop(ctx context.Context) {
	if ctx == nil {
		ctx = context.Background()
	}
	s.mu.Lock()
	q := s.queue
	sup := s.sup
	if q == nil {
		s.mu.Unlock()
		return
	}
	s.accepting = false
	s.queue = nil
	s.sup = nil
	s.mu.Unlock()

	// Wait for in-flight enqueues, then close so workers can drain.
	s.sendWG.Wait()
	close(q)

	if sup != nil {
		if err := sup.Wait(ctx); err != nil {
			sup.Cancel()
		}
	}
}

// Send enqueues one message for the chat. Fire-and-forget: delivery errors
// are logged by the workers, not surfaced to the caller.
func (s *Service) Send(ctx context.Context, chatID int64, text string) error {
	if ctx != nil {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
	}

	s.mu.Lock()
	if !s.accepting || s.queue == nil {
		s.mu.Unlock()
		return ErrStopped
	}
	q := s.queue
	s.sendWG.Add(1)
	s.mu.Unlock()
	defer s.sendWG.Done()

	select {
	case q <- job{target: transport.ChatTarget{ChatID: chatID}, text: text}:
		return nil
	default:
		return ErrQueueFull
	}
}

func (s *Service) workerLoop(ctx context.Context, q <-chan job) {
	for {
		select {
		case <-ctx.Done():
			return
		case j, ok := <-q:
			if !ok {
				return
			}
			s.sendWithRetry(ctx, j)
		}
	}
}

func (s *Service) sendWithRetry(ctx context.Context, j job) {
	maxAttempts := 1 + s.cfg.RetryMax

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return
		}

		// Bound per-send call so a stuck transport can't hang a worker.
		callCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		err := s.adapter.SendText(callCtx, j.target, j.text, j.opt)
		cancel()
		if err == nil {
			return
		}
		s.log.Debug().Err(err).Int64("chat_id", j.target.ChatID).
			Int("attempt", attempt).Int("max", maxAttempts).Msg("send failed")

		if attempt >= maxAttempts {
			s.log.Warn().Err(err).Int64("chat_id", j.target.ChatID).Msg("message dropped after retries")
			return
		}

		select {
		case <-time.After(s.retryDelay(attempt)):
		case <-ctx.Done():
			return
		}
	}
}

// retryDelay is exponential from RetryBase with 0.7..1.3 jitter, capped at
// RetryMaxDelay.
func (s *Service) retryDelay(attempt int) time.Duration {
	d := s.cfg.RetryBase
	for i := 1; i < attempt; i++ {
		d *= 2
		if d >= s.cfg.RetryMaxDelay {
			d = s.cfg.RetryMaxDelay
			break
		}
	}
	j := 0.7 + rand.Float64()*0.6
	d = time.Duration(float64(d) * j)
	if d > s.cfg.RetryMaxDelay {
		d = s.cfg.RetryMaxDelay
	}
	if d < 0 {
		return 0
	}
	return d
}
