// Package settlement closes out a group's balances against its owner.
package settlement

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gitlab.com/flik/groupledger/internal/ledger"
	"gitlab.com/flik/groupledger/internal/members"
	"gitlab.com/flik/groupledger/internal/models"
	"gitlab.com/flik/groupledger/internal/money"
)

// Result is the outcome of SettleUp.
type Result struct {
	// Group is the closed copy of the input group with all balances at zero.
	Group        *models.Group
	Transactions []models.Transaction
	// Message is the system chat notification summarising the settlement.
	Message models.ChatMessage
}

// SettleUp emits one transaction per non-owner member with a non-zero
// balance, zeroes every balance and closes the group. Members who are owed
// money are paid by the owner; members who owe money get a pending request
// to pay the owner. The input group is never modified.
func SettleUp(group *models.Group, at time.Time) (*Result, error) {
	txs, err := plan(group, at)
	if err != nil {
		return nil, err
	}

	next := group.Clone()
	for i := range next.Members {
		next.Members[i].Balance = decimal.Zero
	}
	next.Closed = true

	return &Result{
		Group:        next,
		Transactions: txs,
		Message:      summary(next, txs, at),
	}, nil
}

// Preview returns the transactions SettleUp would emit without closing the group.
func Preview(group *models.Group) ([]models.Transaction, error) {
	return plan(group, time.Time{})
}

// NetEffect returns how executing txs would change memberID's balance.
// Money paid out or collected raises the balance of the payer and lowers
// that of the recipient.
func NetEffect(txs []models.Transaction, memberID string) decimal.Decimal {
	net := decimal.Zero
	for _, tx := range txs {
		if tx.FromMemberID == memberID {
			net = net.Add(tx.Amount)
		}
		if tx.ToMemberID == memberID {
			net = net.Sub(tx.Amount)
		}
	}
	return net
}

// SignedTotal sums txs from the owner's perspective: payments count
// positive, requests negative.
func SignedTotal(txs []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range txs {
		switch tx.Kind {
		case models.TransactionPayment:
			total = total.Add(tx.Amount)
		case models.TransactionRequest:
			total = total.Sub(tx.Amount)
		}
	}
	return total
}

func plan(group *models.Group, at time.Time) ([]models.Transaction, error) {
	if group.Closed {
		return nil, fmt.Errorf("%w: %q", ledger.ErrAlreadySettled, group.ID)
	}
	if len(group.Members) == 0 {
		return nil, fmt.Errorf("%w: %q has no members", ledger.ErrInvalidGroup, group.ID)
	}
	owner, err := members.Find(group, group.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("%w: owner: %w", ledger.ErrInvalidGroup, err)
	}

	var txs []models.Transaction
	for _, m := range group.Members {
		if m.ID == owner.ID || m.Balance.IsZero() {
			continue
		}
		tx := models.Transaction{
			ID:        uuid.NewString(),
			GroupID:   group.ID,
			Amount:    m.Balance.Abs(),
			CreatedAt: at,
		}
		if m.Balance.IsPositive() {
			tx.Kind = models.TransactionPayment
			tx.Status = models.StatusCompleted
			tx.FromMemberID = owner.ID
			tx.ToMemberID = m.ID
			tx.Description = fmt.Sprintf("Settlement of %s: %s paid %s", group.Name, owner.Name, m.Name)
		} else {
			tx.Kind = models.TransactionRequest
			tx.Status = models.StatusPending
			tx.FromMemberID = m.ID
			tx.ToMemberID = owner.ID
			tx.Description = fmt.Sprintf("Settlement of %s: %s owes %s", group.Name, m.Name, owner.Name)
		}
		txs = append(txs, tx)
	}
	return txs, nil
}

func summary(group *models.Group, txs []models.Transaction, at time.Time) models.ChatMessage {
	var b strings.Builder
	fmt.Fprintf(&b, "%s was settled", group.Name)
	if len(txs) == 0 {
		b.WriteString(", nothing to pay")
	}
	for i, tx := range txs {
		if i == 0 {
			b.WriteString(": ")
		} else {
			b.WriteString("; ")
		}
		from := memberName(group, tx.FromMemberID)
		to := memberName(group, tx.ToMemberID)
		amount := money.Format(tx.Amount, group.Currency)
		switch tx.Kind {
		case models.TransactionPayment:
			fmt.Fprintf(&b, "%s paid %s to %s", from, amount, to)
		case models.TransactionRequest:
			fmt.Fprintf(&b, "%s owes %s to %s", from, amount, to)
		}
	}

	return models.ChatMessage{
		ID:         uuid.NewString(),
		GroupID:    group.ID,
		SenderID:   models.SystemSenderID,
		SenderName: ledger.SystemSenderName,
		Content:    b.String(),
		Kind:       models.MessageSystem,
		Timestamp:  at,
	}
}

func memberName(group *models.Group, id string) string {
	if m, err := members.Find(group, id); err == nil {
		return m.Name
	}
	return id
}
