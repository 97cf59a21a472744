// Package repository persists ledger state in PostgreSQL.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"gitlab.com/flik/groupledger/internal/database"
	"gitlab.com/flik/groupledger/internal/models"
	"gitlab.com/flik/groupledger/internal/store"
)

// SnapshotRepository saves and loads complete store snapshots.
type SnapshotRepository struct {
	db database.DB
}

// NewSnapshotRepository creates a new SnapshotRepository.
func NewSnapshotRepository(db database.DB) *SnapshotRepository {
	return &SnapshotRepository{db: db}
}

var _ store.Persister = (*SnapshotRepository)(nil)

// Save writes snap in a single transaction. Groups missing from snap are
// deleted with their members and expenses; transactions and messages are
// append-only and only their status and order are updated.
func (r *SnapshotRepository) Save(ctx context.Context, snap *store.Snapshot) error {
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		ids := make([]string, len(snap.Groups))
		for i, g := range snap.Groups {
			ids[i] = g.ID
		}
		if _, err := tx.Exec(ctx, `DELETE FROM groups WHERE NOT (id = ANY($1))`, ids); err != nil {
			return fmt.Errorf("failed to delete removed groups: %w", err)
		}

		batch := &pgx.Batch{}
		for i, g := range snap.Groups {
			queueGroup(batch, g, i)
		}
		for i, t := range snap.Transactions {
			queueTransaction(batch, t, i)
		}
		for i, m := range snap.Messages {
			queueMessage(batch, m, i)
		}
		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			return fmt.Errorf("failed to write snapshot rows: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

func queueGroup(b *pgx.Batch, g *models.Group, position int) {
	b.Queue(`
		INSERT INTO groups (id, name, owner_id, budget, currency, color, closed, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			owner_id = EXCLUDED.owner_id,
			budget = EXCLUDED.budget,
			currency = EXCLUDED.currency,
			color = EXCLUDED.color,
			closed = EXCLUDED.closed,
			position = EXCLUDED.position
	`, g.ID, g.Name, g.OwnerID, g.Budget, g.Currency, g.Color, g.Closed, position, g.CreatedAt)

	b.Queue(`DELETE FROM group_members WHERE group_id = $1`, g.ID)
	for i, m := range g.Members {
		b.Queue(`
			INSERT INTO group_members (group_id, member_id, name, contact_id, balance, position)
			VALUES ($1, $2, $3, $4, $5, $6)
		`, g.ID, m.ID, m.Name, m.ContactID, m.Balance, i)
	}

	for i, e := range g.Expenses {
		b.Queue(`
			INSERT INTO expenses (id, group_id, description, amount, payer_id, split_mode, category, position, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (id) DO NOTHING
		`, e.ID, g.ID, e.Description, e.Amount, e.PayerID, string(e.SplitMode), string(e.Category), i, e.Date)

		for j, p := range e.Participants {
			var weight any
			if w, ok := e.Weights[p]; ok {
				weight = w
			}
			b.Queue(`
				INSERT INTO expense_participants (expense_id, member_id, position, weight, share)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (expense_id, member_id) DO NOTHING
			`, e.ID, p, j, weight, e.Shares[p])
		}
	}
}

func queueTransaction(b *pgx.Batch, t models.Transaction, position int) {
	b.Queue(`
		INSERT INTO transactions (id, group_id, from_member_id, to_member_id, amount, kind, status, description, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			position = EXCLUDED.position
	`, t.ID, t.GroupID, t.FromMemberID, t.ToMemberID, t.Amount, string(t.Kind), string(t.Status), t.Description, position, t.CreatedAt)
}

func queueMessage(b *pgx.Batch, m models.ChatMessage, position int) {
	var related *string
	if m.RelatedExpenseID != "" {
		related = &m.RelatedExpenseID
	}
	b.Queue(`
		INSERT INTO chat_messages (id, group_id, sender_id, sender_name, content, kind, related_expense_id, position, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET position = EXCLUDED.position
	`, m.ID, m.GroupID, m.SenderID, m.SenderName, m.Content, string(m.Kind), related, position, m.Timestamp)
}

// Load reads the saved snapshot. It returns nil, nil when nothing has been saved.
func (r *SnapshotRepository) Load(ctx context.Context) (*store.Snapshot, error) {
	var snap *store.Snapshot
	err := pgx.BeginFunc(ctx, r.db, func(tx pgx.Tx) error {
		groups, err := loadGroups(ctx, tx)
		if err != nil {
			return err
		}
		txs, err := loadTransactions(ctx, tx)
		if err != nil {
			return err
		}
		msgs, err := loadMessages(ctx, tx)
		if err != nil {
			return err
		}
		if len(groups) == 0 && len(txs) == 0 && len(msgs) == 0 {
			return nil
		}
		snap = &store.Snapshot{Groups: groups, Transactions: txs, Messages: msgs}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	return snap, nil
}

func loadGroups(ctx context.Context, db database.PGXDB) ([]*models.Group, error) {
	rows, err := db.Query(ctx, `
		SELECT id, name, owner_id, budget, currency, color, closed, created_at
		FROM groups
		ORDER BY position, created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query groups: %w", err)
	}
	defer rows.Close()

	var groups []*models.Group
	byID := make(map[string]*models.Group)
	for rows.Next() {
		g := &models.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.OwnerID, &g.Budget, &g.Currency, &g.Color, &g.Closed, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan group: %w", err)
		}
		g.CreatedAt = g.CreatedAt.UTC()
		groups = append(groups, g)
		byID[g.ID] = g
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating groups: %w", err)
	}

	if err := loadMembers(ctx, db, byID); err != nil {
		return nil, err
	}
	if err := loadExpenses(ctx, db, byID); err != nil {
		return nil, err
	}
	return groups, nil
}

func loadMembers(ctx context.Context, db database.PGXDB, groups map[string]*models.Group) error {
	rows, err := db.Query(ctx, `
		SELECT group_id, member_id, name, contact_id, balance
		FROM group_members
		ORDER BY group_id, position
	`)
	if err != nil {
		return fmt.Errorf("failed to query group members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID string
		var m models.Member
		if err := rows.Scan(&groupID, &m.ID, &m.Name, &m.ContactID, &m.Balance); err != nil {
			return fmt.Errorf("failed to scan group member: %w", err)
		}
		if g, ok := groups[groupID]; ok {
			g.Members = append(g.Members, m)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating group members: %w", err)
	}
	return nil
}

func loadExpenses(ctx context.Context, db database.PGXDB, groups map[string]*models.Group) error {
	rows, err := db.Query(ctx, `
		SELECT e.id, e.group_id, e.description, e.amount, e.payer_id, e.split_mode, e.category, e.created_at,
		       p.member_id, p.weight, p.share
		FROM expenses e
		JOIN expense_participants p ON p.expense_id = e.id
		ORDER BY e.group_id, e.position, p.position
	`)
	if err != nil {
		return fmt.Errorf("failed to query expenses: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			e        models.Expense
			member   string
			weight   decimal.NullDecimal
			share    decimal.Decimal
			mode     string
			category string
		)
		if err := rows.Scan(&e.ID, &e.GroupID, &e.Description, &e.Amount, &e.PayerID, &mode, &category, &e.Date,
			&member, &weight, &share); err != nil {
			return fmt.Errorf("failed to scan expense: %w", err)
		}
		g, ok := groups[e.GroupID]
		if !ok {
			continue
		}

		n := len(g.Expenses)
		if n == 0 || g.Expenses[n-1].ID != e.ID {
			e.SplitMode = models.SplitMode(mode)
			e.Category = models.Category(category)
			e.Date = e.Date.UTC()
			e.Shares = make(map[string]decimal.Decimal)
			g.Expenses = append(g.Expenses, e)
			n++
		}
		cur := &g.Expenses[n-1]
		cur.Participants = append(cur.Participants, member)
		cur.Shares[member] = share
		if weight.Valid {
			if cur.Weights == nil {
				cur.Weights = make(map[string]decimal.Decimal)
			}
			cur.Weights[member] = weight.Decimal
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("error iterating expenses: %w", err)
	}
	return nil
}

func loadTransactions(ctx context.Context, db database.PGXDB) ([]models.Transaction, error) {
	rows, err := db.Query(ctx, `
		SELECT id, group_id, from_member_id, to_member_id, amount, kind, status, description, created_at
		FROM transactions
		ORDER BY position, created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}
	defer rows.Close()

	var txs []models.Transaction
	for rows.Next() {
		var t models.Transaction
		var kind, status string
		if err := rows.Scan(&t.ID, &t.GroupID, &t.FromMemberID, &t.ToMemberID, &t.Amount, &kind, &status, &t.Description, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan transaction: %w", err)
		}
		t.Kind = models.TransactionKind(kind)
		t.Status = models.TransactionStatus(status)
		t.CreatedAt = t.CreatedAt.UTC()
		txs = append(txs, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transactions: %w", err)
	}
	return txs, nil
}

func loadMessages(ctx context.Context, db database.PGXDB) ([]models.ChatMessage, error) {
	rows, err := db.Query(ctx, `
		SELECT id, group_id, sender_id, sender_name, content, kind, related_expense_id, created_at
		FROM chat_messages
		ORDER BY position, created_at, id
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var msgs []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		var kind string
		var related *string
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.SenderName, &m.Content, &kind, &related, &m.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		m.Kind = models.MessageKind(kind)
		if related != nil {
			m.RelatedExpenseID = *related
		}
		m.Timestamp = m.Timestamp.UTC()
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}
	return msgs, nil
}
