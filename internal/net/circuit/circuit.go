package circuit

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	cb "github.com/sony/gobreaker"
)

var (
	// ErrCircuitOpen is returned when the circuit breaker rejects a call
	ErrCircuitOpen = errors.New("circuit breaker is open")
	// ErrRequestTimeout is returned when a call outlives RequestTimeout
	ErrRequestTimeout = errors.New("request timeout")
)

// Config represents circuit breaker configuration
type Config struct {
	FailureThreshold uint32        `yaml:"failure_threshold" json:"failure_threshold" default:"3" validate:"gte=1"`  // Consecutive failures to open
	MinRequests      uint32        `yaml:"min_requests" json:"min_requests" default:"20"`                            // Requests before the ratio rule applies
	FailureRatio     float64       `yaml:"failure_ratio" json:"failure_ratio" default:"0.05" validate:"gte=0,lte=1"` // Failure share that opens
	Interval         time.Duration `yaml:"interval" json:"interval" default:"60s"`                                   // Closed-state count reset
	Timeout          time.Duration `yaml:"timeout" json:"timeout" default:"60s"`                                     // Open before half-open
	RequestTimeout   time.Duration `yaml:"request_timeout" json:"request_timeout" default:"10s"`                     // Per-call deadline
}

// DefaultConfig returns three strikes or more than 5% of 20 calls
func DefaultConfig() Config {
	return Config{
		FailureThreshold: 3,
		MinRequests:      20,
		FailureRatio:     0.05,
		Interval:         60 * time.Second,
		Timeout:          60 * time.Second,
		RequestTimeout:   10 * time.Second,
	}
}

// Breaker guards calls to one upstream
type Breaker struct {
	cb     *cb.CircuitBreaker
	config Config
}

// NewBreaker creates a named circuit breaker
func NewBreaker(name string, config Config) *Breaker {
	st := cb.Settings{
		Name:     name,
		Interval: config.Interval,
		Timeout:  config.Timeout,
	}
	st.ReadyToTrip = func(counts cb.Counts) bool {
		if counts.ConsecutiveFailures >= config.FailureThreshold {
			return true
		}
		if counts.Requests < config.MinRequests {
			return false
		}
		return float64(counts.TotalFailures)/float64(counts.Requests) > config.FailureRatio
	}
	st.OnStateChange = func(name string, from, to cb.State) {
		log.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).Msg("circuit state changed")
	}
	return &Breaker{cb: cb.NewCircuitBreaker(st), config: config}
}

// Call runs fn under the breaker with the per-call deadline
func (b *Breaker) Call(ctx context.Context, fn func(ctx context.Context) error) error {
	_, err := b.cb.Execute(func() (interface{}, error) {
		callCtx := ctx
		if b.config.RequestTimeout > 0 {
			var cancel context.CancelFunc
			callCtx, cancel = context.WithTimeout(ctx, b.config.RequestTimeout)
			defer cancel()
		}
		err := fn(callCtx)
		if err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, ErrRequestTimeout
		}
		return nil, err
	})
	if errors.Is(err, cb.ErrOpenState) || errors.Is(err, cb.ErrTooManyRequests) {
		return ErrCircuitOpen
	}
	return err
}

// State returns the breaker state as "closed", "half-open" or "open"
func (b *Breaker) State() string {
	return b.cb.State().String()
}

// Counts returns the request counters of the current generation
func (b *Breaker) Counts() cb.Counts {
	return b.cb.Counts()
}
