package auth

import (
	"context"
	"time"

	"github.com/ncfakude30/personal-asset-manager/internal/telemetry"
)

// Claims is the identity carried by a verified token.
type Claims struct {
	UserID    string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

type Verifier interface {
	Verify(ctx context.Context, token string) (Claims, error)
}

type options struct {
	now     func() time.Time
	metrics telemetry.Sink
}

type Option func(*options)

// WithClock overrides the wall clock used for expiry checks and issuance.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

func WithMetrics(sink telemetry.Sink) Option {
	return func(o *options) {
		o.metrics = sink
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now, metrics: telemetry.Nop()}
	for _, opt := range opts {
		opt(&o)
	}
	o.metrics = telemetry.Safe(o.metrics)
	return o
}
