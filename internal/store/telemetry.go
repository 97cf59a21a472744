package store

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/flik/groupledger/internal/logger"
)

const instrumentationName = "gitlab.com/flik/groupledger/internal/store"

type instruments struct {
	expensesAdded       metric.Int64Counter
	overBudget          metric.Int64Counter
	groupsSettled       metric.Int64Counter
	transactionsEmitted metric.Int64Counter
	messagesPosted      metric.Int64Counter
}

func newInstruments(mp metric.MeterProvider) *instruments {
	meter := mp.Meter(instrumentationName)
	return &instruments{
		expensesAdded:       counter(meter, "groupledger.expenses.added", "Expenses added to groups"),
		overBudget:          counter(meter, "groupledger.expenses.over_budget", "Expenses that pushed a group over its budget"),
		groupsSettled:       counter(meter, "groupledger.groups.settled", "Groups closed by settle-up"),
		transactionsEmitted: counter(meter, "groupledger.transactions.emitted", "Payment and request transactions recorded"),
		messagesPosted:      counter(meter, "groupledger.messages.posted", "Chat messages appended"),
	}
}

func counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		logger.Log.Warn().Err(err).Str("instrument", name).Msg("Failed to create counter, using no-op")
		return noop.Int64Counter{}
	}
	return c
}

func (s *Store) startSpan(ctx context.Context, name, groupID string) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{}
	if groupID != "" {
		attrs = append(attrs, attribute.String("group.id", groupID))
	}
	return s.tracer.Start(ctx, "store."+name, trace.WithAttributes(attrs...))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}
