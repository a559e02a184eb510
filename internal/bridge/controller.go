package bridge

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"mlesc/internal/dedup"
	"mlesc/internal/domain"
)

const (
	DefaultGrace         = 5 * time.Second
	DefaultStatsInterval = 5 * time.Second

	scopeA = "a"
	scopeB = "b"
)

// ErrShutdownTimeout is returned when the sides outlive the grace period
// after cancellation.
var ErrShutdownTimeout = errors.New("bridge: shutdown grace period exceeded")

// Side is one end of a bridge.
type Side interface {
	Name() string
	Channel() string
	Run(ctx context.Context) error
	Messages() <-chan domain.Message
	Send(m domain.Message) error
	State() domain.LinkState
	Reconnects() uint64
	DecodeFailures() uint64
}

// Config tunes shutdown and reporting. Zero values take the defaults; a
// negative StatsInterval disables the periodic log.
type Config struct {
	Grace         time.Duration
	StatsInterval time.Duration
}

// Controller bridges side A and side B.
type Controller struct {
	a, b  Side
	cache *dedup.Cache
	cfg   Config
	log   zerolog.Logger
	stats counters
}

// New returns a controller. cache must not be shared with anything else
// that uses the scopes "a" and "b".
func New(a, b Side, cache *dedup.Cache, cfg Config, log zerolog.Logger) *Controller {
	if cfg.Grace <= 0 {
		cfg.Grace = DefaultGrace
	}
	if cfg.StatsInterval == 0 {
		cfg.StatsInterval = DefaultStatsInterval
	}
	return &Controller{
		a:     a,
		b:     b,
		cache: cache,
		cfg:   cfg,
		log: log.With().Str("component", "bridge").
			Str("a", a.Name()).Str("b", b.Name()).Logger(),
	}
}

// Run bridges until ctx is cancelled or both sides have ended. Side failures
// are returned joined; a clean shutdown returns nil.
func (c *Controller) Run(ctx context.Context) error {
	var (
		wg   sync.WaitGroup
		errs [2]error
	)
	wg.Add(4)
	go func() { defer wg.Done(); errs[0] = c.runSide(ctx, c.a) }()
	go func() { defer wg.Done(); errs[1] = c.runSide(ctx, c.b) }()
	go func() { defer wg.Done(); c.route(c.a, scopeA, c.b, scopeB, &c.stats.forwardedAB) }()
	go func() { defer wg.Done(); c.route(c.b, scopeB, c.a, scopeA, &c.stats.forwardedBA) }()

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	go c.report(ctx, done)

	c.log.Info().Str("channel_a", c.a.Channel()).Str("channel_b", c.b.Channel()).Msg("bridge started")
	select {
	case <-done:
	case <-ctx.Done():
		t := time.NewTimer(c.cfg.Grace)
		defer t.Stop()
		select {
		case <-done:
		case <-t.C:
			c.log.Error().Dur("grace", c.cfg.Grace).Msg("sides did not stop in time")
			return ErrShutdownTimeout
		}
	}
	c.logStats(zerolog.InfoLevel, "bridge stopped")
	return errors.Join(errs[:]...)
}

// Stats returns a point-in-time copy of the counters.
func (c *Controller) Stats() Snapshot {
	return Snapshot{
		NameA:           c.a.Name(),
		NameB:           c.b.Name(),
		ForwardedAB:     c.stats.forwardedAB.Load(),
		ForwardedBA:     c.stats.forwardedBA.Load(),
		Suppressed:      c.stats.suppressed.Load(),
		Dropped:         c.stats.dropped.Load(),
		ReconnectsA:     c.a.Reconnects(),
		ReconnectsB:     c.b.Reconnects(),
		DecodeFailuresA: c.a.DecodeFailures(),
		DecodeFailuresB: c.b.DecodeFailures(),
		StateA:          c.a.State(),
		StateB:          c.b.State(),
	}
}

func (c *Controller) runSide(ctx context.Context, s Side) error {
	err := s.Run(ctx)
	if err != nil {
		c.log.Error().Err(err).Str("side", s.Name()).Msg("side failed, other side continues")
		return fmt.Errorf("side %s: %w", s.Name(), err)
	}
	return nil
}

// route forwards from → to until from's message stream closes.
func (c *Controller) route(from Side, fromScope string, to Side, toScope string, forwarded *atomicCounter) {
	log := c.log.With().Str("from", from.Name()).Str("to", to.Name()).Logger()
	for m := range from.Messages() {
		out := m.WithChannel(to.Channel())
		if !c.cache.AdmitAndMark(fromScope, m, toScope, out) {
			c.stats.suppressed.Add(1)
			log.Trace().Str("uid", m.UID).Msg("suppressed duplicate")
			continue
		}
		if to.State() == domain.LinkDisconnected {
			c.stats.dropped.Add(1)
			log.Debug().Str("uid", m.UID).Msg("destination down, dropped")
			continue
		}
		if err := to.Send(out); err != nil {
			c.stats.dropped.Add(1)
			log.Warn().Err(err).Str("uid", m.UID).Msg("forward failed, dropped")
			continue
		}
		forwarded.Add(1)
	}
}

func (c *Controller) report(ctx context.Context, done <-chan struct{}) {
	if c.cfg.StatsInterval < 0 {
		return
	}
	t := time.NewTicker(c.cfg.StatsInterval)
	defer t.Stop()
	var last Snapshot
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case <-t.C:
			s := c.Stats()
			lvl := zerolog.DebugLevel
			if s.counts() != last.counts() {
				lvl = zerolog.InfoLevel
			}
			last = s
			c.logStats(lvl, "bridge stats")
		}
	}
}

func (c *Controller) logStats(lvl zerolog.Level, msg string) {
	s := c.Stats()
	c.log.WithLevel(lvl).
		Uint64("forwarded_ab", s.ForwardedAB).
		Uint64("forwarded_ba", s.ForwardedBA).
		Uint64("suppressed", s.Suppressed).
		Uint64("dropped", s.Dropped).
		Uint64("decode_failures_a", s.DecodeFailuresA).
		Uint64("decode_failures_b", s.DecodeFailuresB).
		Stringer("state_a", s.StateA).
		Stringer("state_b", s.StateB).
		Msg(msg)
}
