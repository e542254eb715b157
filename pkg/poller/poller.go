package poller

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"relay-swap/pkg/types"
)

const (
	DefaultInterval = 2 * time.Second
	DefaultTimeout  = 60 * time.Second
)

// ErrTimeout is returned when no successful status was seen before the deadline
var ErrTimeout = errors.New("timeout waiting for success")

// CheckFunc performs one status check
type CheckFunc func(ctx context.Context) (*types.StatusResult, error)

// SleepFunc blocks for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error

// Poller repeatedly runs a status check until it reports success or time runs out.
// Checks never overlap: the next one is scheduled only after the previous returned.
type Poller struct {
	interval time.Duration
	timeout  time.Duration
	now      func() time.Time
	sleep    SleepFunc
	logger   *logrus.Logger
}

// Option configures a Poller
type Option func(*Poller)

// WithInterval sets the delay between checks
func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

// WithTimeout sets how long to keep checking
func WithTimeout(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.timeout = d
		}
	}
}

// WithClock replaces the wall clock, mainly for tests
func WithClock(now func() time.Time, sleep SleepFunc) Option {
	return func(p *Poller) {
		if now != nil {
			p.now = now
		}
		if sleep != nil {
			p.sleep = sleep
		}
	}
}

// WithLogger sets the logger used for per-check debug output
func WithLogger(logger *logrus.Logger) Option {
	return func(p *Poller) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// New creates a poller with a 2s interval and a 60s timeout unless overridden
func New(opts ...Option) *Poller {
	p := &Poller{
		interval: DefaultInterval,
		timeout:  DefaultTimeout,
		now:      time.Now,
		sleep:    sleepContext,
		logger:   logrus.StandardLogger(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Interval returns the delay between checks
func (p *Poller) Interval() time.Duration {
	return p.interval
}

// Timeout returns the overall deadline
func (p *Poller) Timeout() time.Duration {
	return p.timeout
}

// WaitForSuccess checks immediately, then every interval, until the check
// returns the success status, returns an error, or the timeout has elapsed.
// The timeout is only evaluated after a check, so the total wait may exceed
// it by up to one interval.
func (p *Poller) WaitForSuccess(ctx context.Context, check CheckFunc) (*types.StatusResult, error) {
	start := p.now()
	attempt := 0

	for {
		attempt++
		status, err := check(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "status check failed")
		}
		if status == nil {
			return nil, errors.New("status check returned no result")
		}

		p.logger.WithFields(logrus.Fields{
			"attempt": attempt,
			"status":  status.Status,
		}).Debug("Checking status")

		if status.IsSuccess() {
			return status, nil
		}

		if elapsed := p.now().Sub(start); elapsed > p.timeout {
			return nil, errors.Wrapf(ErrTimeout, "last status %q after %d checks in %s", status.Status, attempt, elapsed.Round(time.Millisecond))
		}

		if err := p.sleep(ctx, p.interval); err != nil {
			return nil, err
		}
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
