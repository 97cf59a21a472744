package store

import (
	"context"
	"fmt"

	"gitlab.com/flik/groupledger/internal/ledger"
	"gitlab.com/flik/groupledger/internal/models"
)

// Snapshot is the complete persisted state of a store.
type Snapshot struct {
	// Groups are in creation order.
	Groups       []*models.Group
	Transactions []models.Transaction
	Messages     []models.ChatMessage
}

// Persister loads and saves snapshots.
type Persister interface {
	// Load returns nil, nil when nothing has been saved yet.
	Load(ctx context.Context) (*Snapshot, error)
	Save(ctx context.Context, snap *Snapshot) error
}

// Open creates a store backed by p and restores the last saved snapshot.
func Open(ctx context.Context, p Persister, opts ...Option) (*Store, error) {
	s := New(opts...)
	s.persister = p

	ctx, span := s.startSpan(ctx, "Open", "")
	snap, err := p.Load(ctx)
	endSpan(span, err)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if snap == nil {
		s.log.Info().Msg("No saved state, starting empty")
		return s, nil
	}
	if err := s.Restore(snap); err != nil {
		return nil, err
	}
	return s, nil
}

// Snapshot returns a consistent copy of the store's state.
func (s *Store) Snapshot() *Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := &Snapshot{
		Groups:       make([]*models.Group, 0, len(s.order)),
		Transactions: s.transactions.All(),
		Messages:     s.messages.All(),
	}
	for _, id := range s.order {
		snap.Groups = append(snap.Groups, s.groups[id].Clone())
	}
	return snap
}

// Restore replaces the store's content with snap. Stored balances are
// re-derived from each group's expenses; a group with an expense referring to
// a non-member is rejected. It is meant to run before the store is shared.
func (s *Store) Restore(snap *Snapshot) error {
	groups := make(map[string]*models.Group, len(snap.Groups))
	order := make([]string, 0, len(snap.Groups))
	for _, g := range snap.Groups {
		if g == nil || g.ID == "" {
			return fmt.Errorf("%w: snapshot group without id", ledger.ErrInvalidGroup)
		}
		if _, ok := groups[g.ID]; ok {
			return fmt.Errorf("%w: duplicate group %q in snapshot", ledger.ErrInvalidGroup, g.ID)
		}
		g = g.Clone()
		if err := ledger.CheckExpenses(g); err != nil {
			return fmt.Errorf("%w: snapshot group %q: %w", ledger.ErrInvalidGroup, g.ID, err)
		}
		if err := ledger.Verify(g); err != nil {
			s.log.Warn().Err(err).Str("group_id", g.ID).Msg("Stored balances disagree with expenses, re-deriving")
			ledger.ApplyDerivedBalances(g)
		}
		groups[g.ID] = g
		order = append(order, g.ID)
	}

	s.mu.Lock()
	s.groups = groups
	s.order = order
	s.transactions.Replace(snap.Transactions...)
	s.messages.Replace(snap.Messages...)
	s.mu.Unlock()

	s.log.Info().
		Int("groups", len(order)).
		Int("transactions", len(snap.Transactions)).
		Int("messages", len(snap.Messages)).
		Msg("State restored")
	return nil
}

// Save writes the current snapshot to the store's persister.
func (s *Store) Save(ctx context.Context) (err error) {
	ctx, span := s.startSpan(ctx, "Save", "")
	defer func() { endSpan(span, err) }()

	if s.persister == nil {
		return ErrNoPersister
	}
	snap := s.Snapshot()
	if err := s.persister.Save(ctx, snap); err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	s.log.Debug().Int("groups", len(snap.Groups)).Msg("State saved")
	return nil
}
