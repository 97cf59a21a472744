// Package ledger applies expenses to groups and keeps member balances consistent.
package ledger

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gitlab.com/flik/groupledger/internal/members"
	"gitlab.com/flik/groupledger/internal/models"
	"gitlab.com/flik/groupledger/internal/money"
	"gitlab.com/flik/groupledger/internal/split"
)

// SystemSenderName is the display name of ledger-generated chat messages.
const SystemSenderName = "System"

// ExpenseInput describes an expense to add to a group.
type ExpenseInput struct {
	Description  string
	Amount       decimal.Decimal
	PayerID      string
	Participants []string
	SplitMode    models.SplitMode
	// Weights are per-participant weights for shares splits or percentages for percentage splits.
	Weights  map[string]decimal.Decimal
	Category models.Category
}

// ExpenseResult is the outcome of AddExpense.
type ExpenseResult struct {
	// Group is the updated copy of the input group.
	Group   *models.Group
	Expense models.Expense
	// Message is the system chat notification for the new expense.
	Message models.ChatMessage
	// OverBudget is set when the group's total now exceeds its positive budget.
	OverBudget bool
}

// AddExpense validates in against group and returns an updated copy of the
// group with the expense appended and balances adjusted. The input group is
// never modified.
func AddExpense(group *models.Group, in ExpenseInput, at time.Time) (*ExpenseResult, error) {
	if group.Closed {
		return nil, fmt.Errorf("%w: %q", ErrGroupClosed, group.ID)
	}
	if !in.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: %s", ErrInvalidAmount, in.Amount.String())
	}
	if err := members.Validate(group, in.PayerID); err != nil {
		return nil, fmt.Errorf("%w: payer: %w", ErrUnknownMember, err)
	}
	if err := members.Validate(group, in.Participants...); err != nil {
		return nil, fmt.Errorf("%w: participant: %w", ErrUnknownMember, err)
	}

	shares, err := split.ComputeShares(in.Amount, in.Participants, in.SplitMode, in.Weights)
	if err != nil {
		return nil, err
	}

	category := in.Category.OrDefault()
	if !category.Valid() {
		category = models.CategoryOther
	}

	expense := models.Expense{
		ID:           uuid.NewString(),
		GroupID:      group.ID,
		Description:  strings.TrimSpace(in.Description),
		Amount:       in.Amount,
		PayerID:      in.PayerID,
		Participants: slices.Clone(in.Participants),
		SplitMode:    in.SplitMode,
		Weights:      participantWeights(in),
		Shares:       shares,
		Date:         at,
		Category:     category,
	}

	next := group.Clone()
	applyExpense(next, expense)
	next.Expenses = append(next.Expenses, expense)

	payer := next.Members[next.MemberIndex(in.PayerID)]
	return &ExpenseResult{
		Group:      next,
		Expense:    expense.Clone(),
		Message:    expenseMessage(next, payer, expense),
		OverBudget: next.OverBudget(),
	}, nil
}

func applyExpense(group *models.Group, e models.Expense) {
	for i := range group.Members {
		m := &group.Members[i]
		if m.ID == e.PayerID {
			m.Balance = m.Balance.Add(e.Amount)
		}
		if share, ok := e.Shares[m.ID]; ok {
			m.Balance = m.Balance.Sub(share)
		}
	}
}

// participantWeights keeps only the weights the split actually used.
func participantWeights(in ExpenseInput) map[string]decimal.Decimal {
	if in.SplitMode == models.SplitEqual {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(in.Participants))
	for _, p := range in.Participants {
		out[p] = in.Weights[p]
	}
	return out
}

func expenseMessage(group *models.Group, payer models.Member, e models.Expense) models.ChatMessage {
	content := fmt.Sprintf("%s paid %s", payer.Name, money.Format(e.Amount, group.Currency))
	if e.Description != "" {
		content += " for " + e.Description
	}
	return models.ChatMessage{
		ID:               uuid.NewString(),
		GroupID:          group.ID,
		SenderID:         models.SystemSenderID,
		SenderName:       SystemSenderName,
		Content:          content,
		Kind:             models.MessageSystem,
		RelatedExpenseID: e.ID,
		Timestamp:        e.Date,
	}
}
