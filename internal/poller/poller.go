package poller

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	xlog "plexpresence/internal/log"
	"plexpresence/internal/media"
	"plexpresence/internal/metrics"
	"plexpresence/internal/models"
)

// DefaultTick bounds how long a shutdown request can go unnoticed while
// the loop sleeps between polls.
const DefaultTick = time.Second

// PresenceChannel is the part of presence.Channel the loop drives.
type PresenceChannel interface {
	UpdatePresence(ctx context.Context, rec *models.PlaybackRecord) error
	ClearPresence() error
	Connected() bool
	Close()
}

// Status is the last thing reported to the status sink.
type Status struct {
	Text      string    `json:"text"`
	Active    bool      `json:"active"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Poller struct {
	source   media.SessionSource
	presence PresenceChannel
	metrics  *metrics.Metrics
	logger   zerolog.Logger
	interval atomic.Int64
	tick     time.Duration
	status   chan *string

	// worker-owned
	lastKey string
	active  bool

	statusMu   sync.RWMutex
	lastStatus Status

	startOnce sync.Once
	cancel    context.CancelFunc
	done      chan struct{}

	triggerPoll chan struct{}
	pollNotify  chan struct{}
}

type PollerOption func(*Poller)

func WithMetrics(m *metrics.Metrics) PollerOption {
	return func(p *Poller) { p.metrics = m }
}

func WithTick(d time.Duration) PollerOption {
	return func(p *Poller) {
		if d > 0 {
			p.tick = d
		}
	}
}

func New(src media.SessionSource, pc PresenceChannel, interval time.Duration, opts ...PollerOption) *Poller {
	p := &Poller{
		source:   src,
		presence: pc,
		logger:   xlog.WithComponent("poller"),
		tick:     DefaultTick,
		status:   make(chan *string, 8),
		lastStatus: Status{
			Text:      "Nothing playing",
			UpdatedAt: time.Now().UTC(),
		},
	}
	p.SetInterval(interval)
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Status delivers status lines for the UI. A nil value means nothing is
// playing. When the reader falls behind, older lines are dropped.
func (p *Poller) Status() <-chan *string {
	return p.status
}

// SetInterval changes the polling interval; it takes effect after the
// current sleep.
func (p *Poller) SetInterval(d time.Duration) {
	if d <= 0 {
		return
	}
	p.interval.Store(int64(d))
}

func (p *Poller) Interval() time.Duration {
	return time.Duration(p.interval.Load())
}

// LastStatus is safe to call from any goroutine.
func (p *Poller) LastStatus() Status {
	p.statusMu.RLock()
	defer p.statusMu.RUnlock()
	return p.lastStatus
}

func (p *Poller) Start(ctx context.Context) {
	p.startOnce.Do(func() {
		ctx, p.cancel = context.WithCancel(ctx)
		p.done = make(chan struct{})
		go func() {
			defer close(p.done)
			p.Run(ctx)
		}()
	})
}

func (p *Poller) Stop() {
	if p.cancel != nil && p.done != nil {
		p.cancel()
		<-p.done
	}
}

// Run polls until ctx is cancelled and then closes the presence channel.
func (p *Poller) Run(ctx context.Context) {
	p.logger.Info().Str("source", p.source.Name()).Dur("interval", p.Interval()).Msg("poller started")
	defer p.logger.Info().Msg("poller stopped")
	defer p.presence.Close()

	for {
		p.poll(ctx)
		if !p.sleep(ctx) {
			return
		}
	}
}

// sleep waits one interval in ticks of at most p.tick. It reports false
// once ctx is cancelled.
func (p *Poller) sleep(ctx context.Context) bool {
	remaining := p.Interval()
	for remaining > 0 {
		step := min(p.tick, remaining)
		timer := time.NewTimer(step)
		select {
		case <-ctx.Done():
			timer.Stop()
			return false
		case <-p.triggerPoll:
			timer.Stop()
			return true
		case <-timer.C:
		}
		remaining -= step
	}
	return ctx.Err() == nil
}

func (p *Poller) poll(ctx context.Context) {
	start := time.Now()
	rec, err := p.source.NowPlaying(ctx)
	took := time.Since(start)

	switch {
	case err != nil:
		if ctx.Err() != nil {
			return
		}
		p.metrics.ObservePoll("error", took)
		p.logger.Warn().Err(err).Msg("failed to get session status")
	case rec == nil:
		p.metrics.ObservePoll("idle", took)
		if p.active {
			p.logger.Info().Msg("nothing playing")
			p.active = false
			p.lastKey = ""
			p.publish(nil)
			p.clear()
		}
	default:
		p.metrics.ObservePoll("playing", took)
		p.handleRecord(ctx, rec)
	}

	if p.pollNotify != nil {
		select {
		case p.pollNotify <- struct{}{}:
		default:
		}
	}
}

func (p *Poller) handleRecord(ctx context.Context, rec *models.PlaybackRecord) {
	p.active = true
	if key := rec.IdentityKey(); key != p.lastKey {
		p.lastKey = key
		p.logger.Info().
			Str("title", rec.DisplayTitle()).
			Str("kind", string(rec.Kind)).
			Str("state", string(rec.State)).
			Msg("now playing")
		text := rec.StatusText()
		p.publish(&text)
	}

	if rec.State != models.PlayStatePlaying {
		p.clear()
		return
	}
	err := p.presence.UpdatePresence(ctx, rec)
	p.metrics.ObservePresence("update", err, p.presence.Connected())
	if err != nil {
		p.logPresenceError("presence update failed", err)
		return
	}
	p.logger.Debug().Msg("presence updated")
}

func (p *Poller) clear() {
	err := p.presence.ClearPresence()
	p.metrics.ObservePresence("clear", err, p.presence.Connected())
	if err != nil {
		p.logPresenceError("presence clear failed", err)
	}
}

func (p *Poller) logPresenceError(msg string, err error) {
	ev := p.logger.Warn()
	if errors.Is(err, context.Canceled) {
		ev = p.logger.Debug()
	}
	ev.Err(err).Msg(msg)
}

// publish never blocks: if the buffer is full the oldest line is dropped.
func (p *Poller) publish(text *string) {
	st := Status{Text: "Nothing playing", UpdatedAt: time.Now().UTC()}
	if text != nil {
		st.Text = *text
		st.Active = true
	}
	p.statusMu.Lock()
	p.lastStatus = st
	p.statusMu.Unlock()

	for {
		select {
		case p.status <- text:
			return
		default:
		}
		select {
		case <-p.status:
		default:
		}
	}
}
