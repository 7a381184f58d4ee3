// Package telemetry holds the auth metrics bundle and the OpenTelemetry
// provider setup under telemetry/otel.
package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// AuthMetrics counts session lifecycle outcomes. A nil *AuthMetrics is valid
// and records nothing, so tests and wiring without a collector stay simple.
type AuthMetrics struct {
	logins        metric.Int64Counter
	registrations metric.Int64Counter
	rotations     metric.Int64Counter
	rateLimited   metric.Int64Counter
}

// NewAuthMetrics builds the counters on the given meter.
func NewAuthMetrics(meter metric.Meter) (*AuthMetrics, error) {
	logins, err := meter.Int64Counter("auth.logins",
		metric.WithDescription("Login attempts by outcome"))
	if err != nil {
		return nil, err
	}
	registrations, err := meter.Int64Counter("auth.registrations",
		metric.WithDescription("Completed registrations"))
	if err != nil {
		return nil, err
	}
	rotations, err := meter.Int64Counter("auth.refresh_rotations",
		metric.WithDescription("Refresh token rotations by outcome"))
	if err != nil {
		return nil, err
	}
	rateLimited, err := meter.Int64Counter("auth.rate_limited",
		metric.WithDescription("Login attempts rejected by the rate limiter"))
	if err != nil {
		return nil, err
	}
	return &AuthMetrics{
		logins:        logins,
		registrations: registrations,
		rotations:     rotations,
		rateLimited:   rateLimited,
	}, nil
}

func (m *AuthMetrics) RecordLogin(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.logins.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *AuthMetrics) RecordRegistration(ctx context.Context) {
	if m == nil {
		return
	}
	m.registrations.Add(ctx, 1)
}

func (m *AuthMetrics) RecordRotation(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.rotations.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *AuthMetrics) RecordRateLimited(ctx context.Context) {
	if m == nil {
		return
	}
	m.rateLimited.Add(ctx, 1)
}
