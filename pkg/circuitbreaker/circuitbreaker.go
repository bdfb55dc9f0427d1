package circuitbreaker

import (
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
)

const (
	defaultName = "webhook"
)

var (
	// MaxNumOfFailingRequests is the number of requests that must be exceeded
	// in the current interval before the breaker considers tripping.
	MaxNumOfFailingRequests uint32 = 10
	// FailingRatio is the share of failed requests that trips the breaker.
	FailingRatio = 0.6
	// OpenTimeout is how long the breaker stays open before letting a probe
	// request through.
	OpenTimeout = 60 * time.Second
)

// Config holds the parameters of a circuit breaker.
type Config struct {
	Name         string
	MinRequests  uint32
	FailingRatio float64
	Timeout      time.Duration
}

// DefaultConfig returns the config built from the package level defaults.
func DefaultConfig() Config {
	return Config{
		Name:         defaultName,
		MinRequests:  MaxNumOfFailingRequests,
		FailingRatio: FailingRatio,
		Timeout:      OpenTimeout,
	}
}

// NewCircuitBreaker returns a *gobreaker.CircuitBreaker configured with
// DefaultConfig.
func NewCircuitBreaker() *gobreaker.CircuitBreaker {
	return New(DefaultConfig())
}

// New returns a *gobreaker.CircuitBreaker that trips once more than
// cfg.MinRequests requests were made and the ratio of the failing ones has
// reached cfg.FailingRatio. State changes are logged.
func New(cfg Config) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:    cfg.Name,
		Timeout: cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return shouldTrip(counts, cfg.MinRequests, cfg.FailingRatio)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.WithFields(log.Fields{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Warn("circuit breaker state changed")
		},
	})
}

func shouldTrip(counts gobreaker.Counts, minRequests uint32, ratio float64) bool {
	if counts.Requests <= minRequests {
		return false
	}
	failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
	return failureRatio >= ratio
}
