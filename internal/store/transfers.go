package store

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"gitlab.com/flik/groupledger/internal/ledger"
	"gitlab.com/flik/groupledger/internal/logger"
	"gitlab.com/flik/groupledger/internal/members"
	"gitlab.com/flik/groupledger/internal/models"
)

// Transfer describes a direct payment or request between two contacts.
// For a request, From is the contact asked to pay and To is the requester.
type Transfer struct {
	FromMemberID string
	ToMemberID   string
	Amount       decimal.Decimal
	Description  string
}

// Activity is a transaction seen from one member's perspective.
type Activity struct {
	Transaction models.Transaction
	Direction   models.Direction
}

// PostMessage appends a text message from a group member to the group chat.
func (s *Store) PostMessage(ctx context.Context, groupID, senderID, content string) (_ models.ChatMessage, err error) {
	ctx, span := s.startSpan(ctx, "PostMessage", groupID)
	defer func() { endSpan(span, err) }()

	content = strings.TrimSpace(content)
	if content == "" {
		return models.ChatMessage{}, ErrEmptyMessage
	}

	defer s.lockGroup(groupID)()

	g, err := s.current(groupID)
	if err != nil {
		return models.ChatMessage{}, err
	}
	sender, err := members.Find(g, senderID)
	if err != nil {
		return models.ChatMessage{}, fmt.Errorf("%w: sender: %w", ledger.ErrUnknownMember, err)
	}

	msg := models.ChatMessage{
		ID:         uuid.NewString(),
		GroupID:    groupID,
		SenderID:   sender.ID,
		SenderName: sender.Name,
		Content:    content,
		Kind:       models.MessageText,
		Timestamp:  s.now(),
	}
	s.commit(g, nil, msg)
	s.metrics.messagesPosted.Add(ctx, 1)

	s.log.Debug().
		Str("group_id", groupID).
		Str("sender", logger.HashID(sender.ID)).
		Str("content", logger.SanitizeText(content)).
		Msg("Message posted")
	return msg, nil
}

// SendMoney records a completed payment between two contacts outside any group.
func (s *Store) SendMoney(ctx context.Context, t Transfer) (models.Transaction, error) {
	return s.transfer(ctx, t, models.TransactionPayment)
}

// RequestMoney records a pending request for t.FromMemberID to pay t.ToMemberID.
func (s *Store) RequestMoney(ctx context.Context, t Transfer) (models.Transaction, error) {
	return s.transfer(ctx, t, models.TransactionRequest)
}

func (s *Store) transfer(ctx context.Context, t Transfer, kind models.TransactionKind) (_ models.Transaction, err error) {
	ctx, span := s.startSpan(ctx, "Transfer", models.IndividualGroupID)
	defer func() { endSpan(span, err) }()

	if !t.Amount.IsPositive() {
		return models.Transaction{}, fmt.Errorf("%w: %s", ledger.ErrInvalidAmount, t.Amount.String())
	}
	from, err := s.catalog.Lookup(t.FromMemberID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%w: %w", ledger.ErrUnknownMember, err)
	}
	to, err := s.catalog.Lookup(t.ToMemberID)
	if err != nil {
		return models.Transaction{}, fmt.Errorf("%w: %w", ledger.ErrUnknownMember, err)
	}
	if from.ID == to.ID {
		return models.Transaction{}, fmt.Errorf("%w: %q", ErrSelfTransfer, from.ID)
	}

	tx := models.Transaction{
		ID:           uuid.NewString(),
		GroupID:      models.IndividualGroupID,
		FromMemberID: from.ID,
		ToMemberID:   to.ID,
		Amount:       t.Amount,
		Kind:         kind,
		Description:  strings.TrimSpace(t.Description),
		CreatedAt:    s.now(),
	}
	switch kind {
	case models.TransactionPayment:
		tx.Status = models.StatusCompleted
		if tx.Description == "" {
			tx.Description = "Payment to " + to.Name
		}
	case models.TransactionRequest:
		tx.Status = models.StatusPending
		if tx.Description == "" {
			tx.Description = "Request to " + from.Name
		}
	}

	s.mu.Lock()
	s.transactions.Append(tx)
	s.mu.Unlock()

	s.metrics.transactionsEmitted.Add(ctx, 1, metric.WithAttributes(attribute.String("source", string(kind))))
	s.log.Info().
		Str("kind", string(kind)).
		Str("from", logger.HashID(from.ID)).
		Str("to", logger.HashID(to.ID)).
		Str("amount", t.Amount.StringFixed(2)).
		Msg("Transfer recorded")
	return tx, nil
}

// ActivityFor returns every transaction involving memberID with its direction, most recent last.
func (s *Store) ActivityFor(memberID string) []Activity {
	txs := s.transactions.Filter(func(tx models.Transaction) bool {
		return tx.FromMemberID == memberID || tx.ToMemberID == memberID
	})
	out := make([]Activity, len(txs))
	for i, tx := range txs {
		out[i] = Activity{Transaction: tx, Direction: tx.DirectionFor(memberID)}
	}
	return out
}
