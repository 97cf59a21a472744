package store

import (
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/flik/groupledger/internal/members"
)

// Option configures a Store.
type Option func(*Store)

// WithCatalog sets the contact catalog used for peer-to-peer transfers.
func WithCatalog(c *members.Catalog) Option {
	return func(s *Store) { s.catalog = c }
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithDefaultCurrency sets the currency of groups created without one.
func WithDefaultCurrency(currency string) Option {
	return func(s *Store) { s.currency = currency }
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(s *Store) { s.tracerProvider = tp }
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(s *Store) { s.meterProvider = mp }
}
