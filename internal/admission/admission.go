// Package admission decides whether a client request may proceed, based on
// a sliding window of its recent requests and a shared blacklist.
package admission

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// Defaults for the statement parsing endpoint.
const (
	DefaultWindow      = 60 * time.Second
	DefaultMaxRequests = 5
)

var ErrInvalidPolicy = errors.New("invalid admission policy")

// Decision is the admission verdict for one request.
type Decision int

const (
	Allow Decision = iota
	Throttle
	Denied
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case Throttle:
		return "throttle"
	case Denied:
		return "denied"
	default:
		return fmt.Sprintf("decision(%d)", int(d))
	}
}

// Policy is the rate rule for one endpoint. Strict policies blacklist a
// client the first time it exceeds MaxRequests within Window.
type Policy struct {
	Name        string
	MaxRequests int
	Window      time.Duration
	Strict      bool
}

// Outcome describes a Decision and the state that led to it.
type Outcome struct {
	Decision Decision
	// NewlyBlacklisted is set when this request caused the blacklisting.
	NewlyBlacklisted bool
	// Count is the number of requests in the window, including this one
	// when it was allowed.
	Count int
	// RetryAfter is set for throttled requests.
	RetryAfter time.Duration
}

// Store holds request logs and the blacklist. Implementations must make
// Record atomic per client.
type Store interface {
	IsBlacklisted(ctx context.Context, client string, now time.Time) (bool, error)
	// Blacklist adds client. A ttl of zero means until the store is reset.
	Blacklist(ctx context.Context, client string, now time.Time, ttl time.Duration) error
	// Record prunes timestamps at least window old from the (scope, client)
	// log and, if fewer than limit remain, appends now. It returns the
	// resulting count and whether now was recorded.
	Record(ctx context.Context, scope, client string, now time.Time, window time.Duration, limit int) (int, bool, error)
	// Forget drops every log and blacklist entry for client.
	Forget(ctx context.Context, client string) error
	// Reset drops all state.
	Reset(ctx context.Context) error
}

// Option configures a Controller.
type Option func(*Controller)

// WithBlacklistTTL makes blacklist entries expire after ttl. Zero keeps
// them until the store is reset.
func WithBlacklistTTL(ttl time.Duration) Option {
	return func(c *Controller) { c.blacklistTTL = ttl }
}

// WithLogger sets the logger used for blacklist events.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) { c.logger = l }
}

// Controller applies one Policy against a Store.
type Controller struct {
	store        Store
	policy       Policy
	blacklistTTL time.Duration
	logger       *slog.Logger
}

// NewController validates policy, filling zero Window and MaxRequests with
// the defaults.
func NewController(store Store, policy Policy, opts ...Option) (*Controller, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store is required", ErrInvalidPolicy)
	}
	policy.Name = strings.TrimSpace(policy.Name)
	if policy.Name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidPolicy)
	}
	if policy.Window == 0 {
		policy.Window = DefaultWindow
	}
	if policy.MaxRequests == 0 {
		policy.MaxRequests = DefaultMaxRequests
	}
	if policy.Window < 0 || policy.MaxRequests < 0 {
		return nil, fmt.Errorf("%w: %s must have positive limits", ErrInvalidPolicy, policy.Name)
	}

	c := &Controller{
		store:  store,
		policy: policy,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.blacklistTTL < 0 {
		return nil, fmt.Errorf("%w: blacklist ttl must not be negative", ErrInvalidPolicy)
	}
	return c, nil
}

// Policy returns the effective policy.
func (c *Controller) Policy() Policy {
	return c.policy
}

// Admit decides whether client may make a request at now.
func (c *Controller) Admit(ctx context.Context, client string, now time.Time) (Outcome, error) {
	blocked, err := c.store.IsBlacklisted(ctx, client, now)
	if err != nil {
		return Outcome{}, fmt.Errorf("admission: blacklist lookup: %w", err)
	}
	if blocked {
		return Outcome{Decision: Denied}, nil
	}

	count, recorded, err := c.store.Record(ctx, c.policy.Name, client, now, c.policy.Window, c.policy.MaxRequests)
	if err != nil {
		return Outcome{}, fmt.Errorf("admission: record request: %w", err)
	}
	if recorded {
		return Outcome{Decision: Allow, Count: count}, nil
	}

	if !c.policy.Strict {
		return Outcome{Decision: Throttle, Count: count, RetryAfter: c.policy.Window}, nil
	}

	if err := c.store.Blacklist(ctx, client, now, c.blacklistTTL); err != nil {
		return Outcome{}, fmt.Errorf("admission: blacklist client: %w", err)
	}
	c.logger.Warn("client blacklisted due to rate limit violation",
		"client", client,
		"policy", c.policy.Name,
		"requests", count,
		"window", c.policy.Window.String(),
		"duration", ttlLabel(c.blacklistTTL),
	)
	return Outcome{Decision: Denied, NewlyBlacklisted: true, Count: count}, nil
}

// Reset clears all admission state in the underlying store.
func (c *Controller) Reset(ctx context.Context) error {
	return c.store.Reset(ctx)
}

func ttlLabel(ttl time.Duration) string {
	if ttl == 0 {
		return "permanent"
	}
	return ttl.String()
}
