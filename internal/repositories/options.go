package repositories

import (
	"math/rand/v2"
	"time"

	"github.com/google/uuid"
)

// NewID returns a random identifier for users, chats and messages.
func NewID() string {
	return uuid.NewString()
}

type options struct {
	now  func() time.Time
	intn func(n int) int
}

// Option customises an in-memory repository.
type Option func(*options)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithRandom overrides the source used for random picks. intn must return a value in [0, n).
func WithRandom(intn func(n int) int) Option {
	return func(o *options) {
		if intn != nil {
			o.intn = intn
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, intn: rand.IntN}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
