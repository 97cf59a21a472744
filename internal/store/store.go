// Package store holds groups, transactions and chat messages and serializes
// mutations per group.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/flik/groupledger/internal/journal"
	"gitlab.com/flik/groupledger/internal/ledger"
	"gitlab.com/flik/groupledger/internal/logger"
	"gitlab.com/flik/groupledger/internal/members"
	"gitlab.com/flik/groupledger/internal/models"
	"gitlab.com/flik/groupledger/internal/settlement"
)

var (
	// ErrGroupNotFound is returned for an unknown group id.
	ErrGroupNotFound = errors.New("group not found")
	// ErrGroupExists is returned when creating a group with an id already in use.
	ErrGroupExists = errors.New("group already exists")
	// ErrEmptyMessage is returned when posting a blank chat message.
	ErrEmptyMessage = errors.New("message is empty")
	// ErrNoPersister is returned by Save on a store opened without persistence.
	ErrNoPersister = errors.New("store has no persister")
	// ErrSelfTransfer is returned for a payment or request to oneself.
	ErrSelfTransfer = errors.New("cannot transfer to self")
)

// Store is the in-memory owner of all ledger state.
//
// Mutations on one group are serialized; different groups proceed in
// parallel. Every mutation validates against a copy of the group and only
// then commits the group together with its log entries.
type Store struct {
	mu     sync.RWMutex
	groups map[string]*models.Group
	order  []string

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	transactions *journal.Transactions
	messages     *journal.Messages

	catalog   *members.Catalog
	currency  string
	now       func() time.Time
	persister Persister

	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider
	tracer         trace.Tracer
	metrics        *instruments
	log            zerolog.Logger
}

// New creates an empty store.
func New(opts ...Option) *Store {
	s := &Store{
		groups:       make(map[string]*models.Group),
		locks:        make(map[string]*sync.Mutex),
		transactions: journal.New[models.Transaction](),
		messages:     journal.New[models.ChatMessage](),
		catalog:      members.DefaultCatalog(),
		currency:     models.DefaultCurrency,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.tracerProvider == nil {
		s.tracerProvider = otel.GetTracerProvider()
	}
	if s.meterProvider == nil {
		s.meterProvider = otel.GetMeterProvider()
	}
	s.tracer = s.tracerProvider.Tracer(instrumentationName)
	s.metrics = newInstruments(s.meterProvider)
	s.log = logger.Component("store")
	return s
}

// Catalog returns the contact catalog.
func (s *Store) Catalog() *members.Catalog {
	return s.catalog
}

// lockGroup serializes mutations of one group and returns the unlock func.
// A lock dropped by DeleteGroup while waiting is not reused.
func (s *Store) lockGroup(id string) func() {
	for {
		s.locksMu.Lock()
		l, ok := s.locks[id]
		if !ok {
			l = &sync.Mutex{}
			s.locks[id] = l
		}
		s.locksMu.Unlock()

		l.Lock()
		s.locksMu.Lock()
		current := s.locks[id] == l
		s.locksMu.Unlock()
		if current {
			return l.Unlock
		}
		l.Unlock()
	}
}

// current returns the committed group without copying it. Callers must not modify it.
func (s *Store) current(id string) (*models.Group, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.groups[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrGroupNotFound, id)
	}
	return g, nil
}

// commit replaces a group and appends its log entries in one step.
func (s *Store) commit(g *models.Group, txs []models.Transaction, msgs ...models.ChatMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[g.ID]; !ok {
		s.order = append(s.order, g.ID)
	}
	s.groups[g.ID] = g
	s.transactions.Append(txs...)
	s.messages.Append(msgs...)
}

// CreateGroup validates in and adds a new open group.
func (s *Store) CreateGroup(ctx context.Context, in ledger.GroupInput) (_ *models.Group, err error) {
	_, span := s.startSpan(ctx, "CreateGroup", in.ID)
	defer func() { endSpan(span, err) }()

	if in.Currency == "" {
		in.Currency = s.currency
	}
	g, err := ledger.NewGroup(in, s.now())
	if err != nil {
		return nil, err
	}

	defer s.lockGroup(g.ID)()

	if _, err := s.current(g.ID); err == nil {
		return nil, fmt.Errorf("%w: %q", ErrGroupExists, g.ID)
	}
	s.commit(g, nil)

	span.SetAttributes(attribute.String("group.id", g.ID), attribute.Int("group.members", len(g.Members)))
	s.log.Info().
		Str("group_id", g.ID).
		Str("owner", logger.HashID(g.OwnerID)).
		Int("members", len(g.Members)).
		Msg("Group created")
	return g.Clone(), nil
}

// Group returns a copy of the group with the given id.
func (s *Store) Group(id string) (*models.Group, error) {
	g, err := s.current(id)
	if err != nil {
		return nil, err
	}
	return g.Clone(), nil
}

// Groups returns copies of all groups in creation order.
func (s *Store) Groups() []*models.Group {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*models.Group, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.groups[id].Clone())
	}
	return out
}

// UpdateGroup changes a group's name, budget or color.
func (s *Store) UpdateGroup(ctx context.Context, id string, details ledger.GroupDetails) (_ *models.Group, err error) {
	_, span := s.startSpan(ctx, "UpdateGroup", id)
	defer func() { endSpan(span, err) }()

	defer s.lockGroup(id)()

	g, err := s.current(id)
	if err != nil {
		return nil, err
	}
	next, err := ledger.UpdateDetails(g, details)
	if err != nil {
		return nil, err
	}
	s.commit(next, nil)

	s.log.Info().Str("group_id", id).Msg("Group updated")
	return next.Clone(), nil
}

// DeleteGroup removes a group. Its transactions and messages are kept.
func (s *Store) DeleteGroup(ctx context.Context, id string) (err error) {
	_, span := s.startSpan(ctx, "DeleteGroup", id)
	defer func() { endSpan(span, err) }()

	defer s.lockGroup(id)()

	s.locksMu.Lock()
	delete(s.locks, id)
	s.locksMu.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.groups[id]; !ok {
		return fmt.Errorf("%w: %q", ErrGroupNotFound, id)
	}
	delete(s.groups, id)
	s.order = slices.DeleteFunc(s.order, func(gid string) bool { return gid == id })

	s.log.Info().Str("group_id", id).Msg("Group deleted")
	return nil
}

// AddExpense adds an expense to a group and records its system message.
func (s *Store) AddExpense(ctx context.Context, groupID string, in ledger.ExpenseInput) (_ *ledger.ExpenseResult, err error) {
	ctx, span := s.startSpan(ctx, "AddExpense", groupID)
	defer func() { endSpan(span, err) }()

	defer s.lockGroup(groupID)()

	g, err := s.current(groupID)
	if err != nil {
		return nil, err
	}
	res, err := ledger.AddExpense(g, in, s.now())
	if err != nil {
		s.log.Debug().Err(err).Str("group_id", groupID).Msg("Expense rejected")
		return nil, err
	}
	s.commit(res.Group, nil, res.Message)

	attrs := metric.WithAttributes(attribute.String("split_mode", string(res.Expense.SplitMode)))
	s.metrics.expensesAdded.Add(ctx, 1, attrs)
	s.metrics.messagesPosted.Add(ctx, 1)
	if res.OverBudget {
		s.metrics.overBudget.Add(ctx, 1)
	}
	span.SetAttributes(attribute.Bool("expense.over_budget", res.OverBudget))

	s.log.Info().
		Str("group_id", groupID).
		Str("expense_id", res.Expense.ID).
		Str("payer", logger.HashID(res.Expense.PayerID)).
		Str("description", logger.SanitizeDescription(res.Expense.Description)).
		Str("amount", res.Expense.Amount.StringFixed(2)).
		Int("participants", len(res.Expense.Participants)).
		Bool("over_budget", res.OverBudget).
		Msg("Expense added")

	res.Group = res.Group.Clone()
	return res, nil
}

// SettleUp closes a group and records its settlement transactions.
func (s *Store) SettleUp(ctx context.Context, groupID string) (_ *settlement.Result, err error) {
	ctx, span := s.startSpan(ctx, "SettleUp", groupID)
	defer func() { endSpan(span, err) }()

	defer s.lockGroup(groupID)()

	g, err := s.current(groupID)
	if err != nil {
		return nil, err
	}
	res, err := settlement.SettleUp(g, s.now())
	if err != nil {
		return nil, err
	}
	s.commit(res.Group, res.Transactions, res.Message)

	s.metrics.groupsSettled.Add(ctx, 1)
	s.metrics.transactionsEmitted.Add(ctx, int64(len(res.Transactions)), metric.WithAttributes(attribute.String("source", "settlement")))
	s.metrics.messagesPosted.Add(ctx, 1)
	span.SetAttributes(attribute.Int("settlement.transactions", len(res.Transactions)))

	s.log.Info().
		Str("group_id", groupID).
		Int("transactions", len(res.Transactions)).
		Msg("Group settled")

	res.Group = res.Group.Clone()
	res.Transactions = slices.Clone(res.Transactions)
	return res, nil
}

// PreviewSettlement returns the transactions settling the group would emit.
func (s *Store) PreviewSettlement(ctx context.Context, groupID string) (_ []models.Transaction, err error) {
	_, span := s.startSpan(ctx, "PreviewSettlement", groupID)
	defer func() { endSpan(span, err) }()

	g, err := s.current(groupID)
	if err != nil {
		return nil, err
	}
	return settlement.Preview(g)
}

// Stats returns balance, category and monthly summaries of a group.
func (s *Store) Stats(groupID string) (ledger.Stats, error) {
	g, err := s.current(groupID)
	if err != nil {
		return ledger.Stats{}, err
	}
	return ledger.ComputeStats(g), nil
}

// Transactions returns the transactions of a group, most recent last.
func (s *Store) Transactions(groupID string) []models.Transaction {
	return s.transactions.ListByGroup(groupID)
}

// Messages returns the chat messages of a group, most recent last.
func (s *Store) Messages(groupID string) []models.ChatMessage {
	return s.messages.ListByGroup(groupID)
}
