package asebalink

import (
	"context"
	"time"

	"github.com/rs/zerolog"
)

const (
	// DefaultDiscoverRate is how often the session broadcasts LIST_NODES
	// while discovery is active.
	DefaultDiscoverRate = 2 * time.Second
	// DefaultRefreshingRate is how often an active node's variable mirror
	// is refreshed with GET_VARIABLES.
	DefaultRefreshingRate = 30 * time.Millisecond
	// DefaultTimeout is the liveness window: a node that sends nothing for
	// this long is dropped and REMOVED fires.
	DefaultTimeout = 3 * time.Second
	// DefaultHandshakeWaitTimeout bounds WaitForHandshake's poll loop.
	DefaultHandshakeWaitTimeout = 5 * time.Second
	// DefaultHandshakePoll is the fast-path polling interval used by
	// WaitForHandshake's adaptive backoff; see poll.go.
	DefaultHandshakePoll = 10 * time.Millisecond
)

// Option configures a Session at construction time.
type Option func(*Config)

// Config holds runtime settings for a Session. Zero value is never used
// directly; defaultConfig() supplies sane defaults, then options are
// applied on top, matching the teacher's applyConfig() convention.
type Config struct {
	ctx    context.Context
	cancel context.CancelFunc

	hostNodeID uint16

	discoverRate       time.Duration
	refreshingRate     time.Duration
	refreshingCoverage map[string]struct{} // nil means "whole mirror"
	timeout            time.Duration
	handshakeWaitTime  time.Duration
	handshakePollFast  time.Duration

	metrics Metrics
	logger  zerolog.Logger
}

// Validate checks the configuration for nonsensical combinations.
func (c *Config) Validate() error {
	if c.timeout <= 0 {
		return ErrInvalidConfig
	}
	if c.discoverRate <= 0 || c.refreshingRate <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

func defaultConfig() *Config {
	ctx, cancel := context.WithCancel(context.Background())
	return &Config{
		ctx:               ctx,
		cancel:            cancel,
		hostNodeID:        DefaultHostNodeID,
		discoverRate:      DefaultDiscoverRate,
		refreshingRate:    DefaultRefreshingRate,
		timeout:           DefaultTimeout,
		handshakeWaitTime: DefaultHandshakeWaitTimeout,
		handshakePollFast: DefaultHandshakePoll,
		metrics:           NewDefaultMetrics(),
		logger:            zerolog.Nop(),
	}
}

func applyConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithHostNodeID sets the node id the host presents as the source of every
// outbound message. Default DefaultHostNodeID.
func WithHostNodeID(id uint16) Option {
	return func(c *Config) { c.hostNodeID = id }
}

// WithDiscoverRate sets how often LIST_NODES is broadcast while discovery
// is running.
func WithDiscoverRate(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.discoverRate = d
		}
	}
}

// WithRefreshingRate sets how often each active node's mirror is refreshed.
func WithRefreshingRate(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.refreshingRate = d
		}
	}
}

// WithRefreshingCoverage restricts the auto-refresh loop to the span
// covering only the named variables, computed via dataSpanForVariables,
// instead of fetching the whole mirror on every tick. Passing no names
// restores whole-mirror refresh.
func WithRefreshingCoverage(names ...string) Option {
	return func(c *Config) {
		if len(names) == 0 {
			c.refreshingCoverage = nil
			return
		}
		set := make(map[string]struct{}, len(names))
		for _, n := range names {
			set[n] = struct{}{}
		}
		c.refreshingCoverage = set
	}
}

// WithTimeout sets the liveness window after which a silent node is
// considered REMOVED.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHandshakeWait sets the maximum duration WaitForHandshake polls before
// giving up with ErrHandshakeTimeout.
func WithHandshakeWait(d time.Duration) Option {
	return func(c *Config) {
		if d > 0 {
			c.handshakeWaitTime = d
		}
	}
}

// WithMetrics sets a custom metrics implementation. If not provided, a
// default implementation backed by atomic counters is used.
func WithMetrics(metrics Metrics) Option {
	return func(c *Config) {
		if metrics != nil {
			c.metrics = metrics
		}
	}
}

// WithLogger sets the zerolog.Logger used for wire tracing and lifecycle
// events. The zero value discards everything, so omitting this option is
// always safe.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Config) { c.logger = logger }
}

// WithContext sets the base context governing the session's background
// goroutines. Cancelling it has the same effect as calling Close.
func WithContext(ctx context.Context) Option {
	return func(c *Config) {
		if ctx != nil {
			c.ctx, c.cancel = context.WithCancel(ctx)
		}
	}
}
