package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	xlog "plexpresence/internal/log"
	"plexpresence/internal/models"
	"plexpresence/internal/presence/ipc"
)

// DefaultClientID is the Discord application that owns the plex/movie/tv/music assets.
const DefaultClientID = "1451961488427188355"

const (
	ReconnectDelay         = 10 * time.Second
	BackoffWindow          = 3 * ReconnectDelay
	MaxConsecutiveFailures = 3
)

type State string

const (
	StateDisconnected State = "disconnected"
	StateConnected    State = "connected"
	StateBackingOff   State = "backing_off"
)

// Transport is an open presence connection.
type Transport interface {
	SetActivity(a *ipc.Activity) error
	ClearActivity() error
	Close() error
}

type Dialer interface {
	Dial(ctx context.Context) (Transport, error)
}

type DialerFunc func(ctx context.Context) (Transport, error)

func (f DialerFunc) Dial(ctx context.Context) (Transport, error) { return f(ctx) }

// IPCDialer dials the local Discord client for the given application id.
func IPCDialer(clientID string) Dialer {
	return DialerFunc(func(ctx context.Context) (Transport, error) {
		conn, err := ipc.Dial(ctx, clientID)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

type Option func(*Channel)

func WithClock(c Clock) Option {
	return func(ch *Channel) { ch.clock = c }
}

// Channel owns the presence connection. Reconnects are limited to one per
// ReconnectDelay; after MaxConsecutiveFailures updates are refused until
// BackoffWindow has passed since the last connect attempt.
//
// A Channel must only be used from one goroutine.
type Channel struct {
	dialer  Dialer
	clock   Clock
	limiter *rate.Limiter
	logger  zerolog.Logger

	conn        Transport
	lastAttempt time.Time
	failures    uint
}

func NewChannel(d Dialer, opts ...Option) *Channel {
	c := &Channel{
		dialer:  d,
		clock:   systemClock{},
		limiter: rate.NewLimiter(rate.Every(ReconnectDelay), 1),
		logger:  xlog.WithComponent("presence"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Channel) Connected() bool { return c.conn != nil }

func (c *Channel) Failures() uint { return c.failures }

func (c *Channel) State() State {
	if c.backingOff(c.clock.Now()) {
		return StateBackingOff
	}
	if c.conn != nil {
		return StateConnected
	}
	return StateDisconnected
}

func (c *Channel) backingOff(now time.Time) bool {
	return c.failures >= MaxConsecutiveFailures &&
		!c.lastAttempt.IsZero() &&
		now.Sub(c.lastAttempt) < BackoffWindow
}

// Connect opens a fresh connection, dropping any existing one. A failed dial
// leaves the channel disconnected; the failure counter is the caller's.
func (c *Channel) Connect(ctx context.Context) error {
	now := c.clock.Now()
	if !c.limiter.AllowN(now, 1) {
		return ErrTooSoon
	}
	c.lastAttempt = now
	c.disconnect()

	c.logger.Info().Msg("connecting to Discord")
	conn, err := c.dialer.Dial(ctx)
	if err != nil {
		return fmt.Errorf("presence: connect: %w", err)
	}
	c.conn = conn
	c.failures = 0
	c.logger.Info().Msg("connected to Discord")
	return nil
}

// UpdatePresence shows rec, connecting first if needed.
func (c *Channel) UpdatePresence(ctx context.Context, rec *models.PlaybackRecord) error {
	now := c.clock.Now()
	if c.failures >= MaxConsecutiveFailures {
		if c.backingOff(now) {
			return ErrBackoff
		}
		c.logger.Debug().Uint("failures", c.failures).Msg("backoff window elapsed, retrying")
		c.failures = 0
	}

	if c.conn == nil {
		if err := c.Connect(ctx); err != nil {
			c.failures++
			return err
		}
	}

	activity := Render(rec, c.clock.Now())
	if c.conn == nil {
		c.failures++
		return ErrNotConnected
	}
	if err := c.conn.SetActivity(activity); err != nil {
		c.failures++
		c.logger.Warn().Err(err).Uint("failures", c.failures).Msg("failed to set activity")
		c.disconnect()
		return fmt.Errorf("%w: %v", ErrTransportSend, err)
	}
	c.failures = 0
	c.logger.Debug().Str("details", activity.Details).Str("state", activity.State).Msg("updated presence")
	return nil
}

// ClearPresence removes the displayed activity. It is a no-op when disconnected.
func (c *Channel) ClearPresence() error {
	if c.conn == nil {
		return nil
	}
	if err := c.conn.ClearActivity(); err != nil {
		c.logger.Warn().Err(err).Msg("failed to clear activity")
		c.disconnect()
		return fmt.Errorf("%w: %v", ErrTransportSend, err)
	}
	c.logger.Debug().Msg("cleared presence")
	return nil
}

// Close releases the connection. Errors are dropped.
func (c *Channel) Close() {
	if c.conn != nil {
		c.disconnect()
		c.logger.Info().Msg("disconnected from Discord")
	}
}

func (c *Channel) disconnect() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
}
