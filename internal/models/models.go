// Package models defines the domain entities for the group ledger.
package models

import (
	"slices"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is the currency used for new groups unless configured otherwise.
const DefaultCurrency = "EUR"

// IndividualGroupID is the reserved group id of peer-to-peer transfers.
const IndividualGroupID = "individual"

// SupportedCurrencies lists all supported currency codes.
var SupportedCurrencies = map[string]string{
	"EUR": "€",
	"USD": "$",
	"GBP": "£",
	"CHF": "CHF",
	"HRK": "kn",
	"HUF": "Ft",
	"CZK": "Kč",
	"PLN": "zł",
	"RSD": "din",
	"BAM": "KM",
	"SEK": "kr",
	"NOK": "kr",
	"DKK": "kr",
	"JPY": "¥",
	"AUD": "A$",
	"SGD": "S$",
}

// Member is a participant of a group with a derived running balance.
// A positive balance means the member is owed money.
type Member struct {
	ID        string
	Name      string
	ContactID string
	Balance   decimal.Decimal
}

// SplitMode is the policy used to divide an expense among participants.
type SplitMode string

const (
	SplitEqual      SplitMode = "equal"
	SplitShares     SplitMode = "shares"
	SplitPercentage SplitMode = "percentage"
)

// Valid reports whether m is a known split mode.
func (m SplitMode) Valid() bool {
	switch m {
	case SplitEqual, SplitShares, SplitPercentage:
		return true
	}
	return false
}

// Category classifies an expense.
type Category string

const (
	CategoryFood          Category = "food"
	CategoryAccommodation Category = "accommodation"
	CategoryTransport     Category = "transport"
	CategoryEntertainment Category = "entertainment"
	CategoryOther         Category = "other"
)

// Categories lists all categories in display order.
var Categories = []Category{
	CategoryFood,
	CategoryAccommodation,
	CategoryTransport,
	CategoryEntertainment,
	CategoryOther,
}

// Valid reports whether c is a known category.
func (c Category) Valid() bool {
	return slices.Contains(Categories, c)
}

// OrDefault returns c, or CategoryOther when c is empty.
func (c Category) OrDefault() Category {
	if c == "" {
		return CategoryOther
	}
	return c
}

// Expense is an immutable record of money paid by one member on behalf of participants.
type Expense struct {
	ID           string
	GroupID      string
	Description  string
	Amount       decimal.Decimal
	PayerID      string
	Participants []string
	SplitMode    SplitMode
	// Weights holds per-participant weights or percentages; nil for equal splits.
	Weights map[string]decimal.Decimal
	// Shares holds the amount each participant owes for this expense.
	Shares   map[string]decimal.Decimal
	Date     time.Time
	Category Category
}

// Clone returns a deep copy of the expense.
func (e Expense) Clone() Expense {
	e.Participants = slices.Clone(e.Participants)
	e.Weights = cloneAmounts(e.Weights)
	e.Shares = cloneAmounts(e.Shares)
	return e
}

// Group owns its members, expenses and derived balances.
type Group struct {
	ID       string
	Name     string
	Members  []Member
	OwnerID  string
	Budget   decimal.NullDecimal
	Expenses []Expense
	Closed   bool
	Currency string
	Color    string

	CreatedAt time.Time
}

// TotalExpenses returns the sum of all expense amounts.
func (g *Group) TotalExpenses() decimal.Decimal {
	total := decimal.Zero
	for _, e := range g.Expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// HasBudget reports whether a positive budget is set.
func (g *Group) HasBudget() bool {
	return g.Budget.Valid && g.Budget.Decimal.IsPositive()
}

// BudgetRemaining returns the unspent budget, negative when overspent.
// It returns zero when no budget is set.
func (g *Group) BudgetRemaining() decimal.Decimal {
	if !g.Budget.Valid {
		return decimal.Zero
	}
	return g.Budget.Decimal.Sub(g.TotalExpenses())
}

// BudgetUsage returns the percentage of the budget spent, rounded to one decimal.
// It returns zero when no positive budget is set.
func (g *Group) BudgetUsage() decimal.Decimal {
	if !g.HasBudget() {
		return decimal.Zero
	}
	return g.TotalExpenses().Mul(decimal.NewFromInt(100)).Div(g.Budget.Decimal).Round(1)
}

// OverBudget reports whether total expenses exceed a positive budget.
func (g *Group) OverBudget() bool {
	return g.HasBudget() && g.TotalExpenses().GreaterThan(g.Budget.Decimal)
}

// MemberIndex returns the position of the member with the given id, or -1.
func (g *Group) MemberIndex(id string) int {
	return slices.IndexFunc(g.Members, func(m Member) bool { return m.ID == id })
}

// Clone returns a deep copy of the group.
func (g *Group) Clone() *Group {
	c := *g
	c.Members = slices.Clone(g.Members)
	if g.Expenses != nil {
		c.Expenses = make([]Expense, len(g.Expenses))
		for i, e := range g.Expenses {
			c.Expenses[i] = e.Clone()
		}
	}
	return &c
}

// TransactionKind distinguishes payments from requests.
type TransactionKind string

const (
	TransactionPayment TransactionKind = "payment"
	TransactionRequest TransactionKind = "request"
)

// Valid reports whether k is a known transaction kind.
func (k TransactionKind) Valid() bool {
	return k == TransactionPayment || k == TransactionRequest
}

// TransactionStatus is the lifecycle state of a transaction.
type TransactionStatus string

const (
	StatusPending   TransactionStatus = "pending"
	StatusCompleted TransactionStatus = "completed"
	StatusCancelled TransactionStatus = "cancelled"
)

// Valid reports whether s is a known transaction status.
func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Direction is a transaction seen from one member's perspective.
type Direction string

const (
	// DirectionSent is a payment the member made.
	DirectionSent Direction = "sent"
	// DirectionReceived is a payment the member got.
	DirectionReceived Direction = "received"
	// DirectionOutgoing is a request the member has to pay.
	DirectionOutgoing Direction = "outgoing"
	// DirectionIncoming is a request the member is owed.
	DirectionIncoming Direction = "incoming"
	// DirectionUnrelated is a transaction the member is not part of.
	DirectionUnrelated Direction = "unrelated"
)

// Valid reports whether d is a known direction.
func (d Direction) Valid() bool {
	switch d {
	case DirectionSent, DirectionReceived, DirectionOutgoing, DirectionIncoming, DirectionUnrelated:
		return true
	}
	return false
}

// Transaction records money moving, or requested to move, between two members.
// A request is always from the member who owes to the member who is owed.
type Transaction struct {
	ID           string
	GroupID      string
	FromMemberID string
	ToMemberID   string
	Amount       decimal.Decimal
	Kind         TransactionKind
	Status       TransactionStatus
	Description  string
	CreatedAt    time.Time
}

// GroupKey returns the id of the group the transaction belongs to.
func (t Transaction) GroupKey() string { return t.GroupID }

// DirectionFor maps the transaction to the given member's perspective.
func (t Transaction) DirectionFor(memberID string) Direction {
	switch t.Kind {
	case TransactionPayment:
		switch memberID {
		case t.FromMemberID:
			return DirectionSent
		case t.ToMemberID:
			return DirectionReceived
		}
	case TransactionRequest:
		switch memberID {
		case t.FromMemberID:
			return DirectionOutgoing
		case t.ToMemberID:
			return DirectionIncoming
		}
	}
	return DirectionUnrelated
}

// MessageKind distinguishes chat messages.
type MessageKind string

const (
	MessageText    MessageKind = "text"
	MessageExpense MessageKind = "expense"
	MessageSystem  MessageKind = "system"
)

// Valid reports whether k is a known message kind.
func (k MessageKind) Valid() bool {
	switch k {
	case MessageText, MessageExpense, MessageSystem:
		return true
	}
	return false
}

// SystemSenderID is the sender id of messages generated by the ledger.
const SystemSenderID = "system"

// ChatMessage is an entry in a group's chat log.
type ChatMessage struct {
	ID               string
	GroupID          string
	SenderID         string
	SenderName       string
	Content          string
	Kind             MessageKind
	RelatedExpenseID string
	Timestamp        time.Time
}

// GroupKey returns the id of the group the message belongs to.
func (m ChatMessage) GroupKey() string { return m.GroupID }

func cloneAmounts(m map[string]decimal.Decimal) map[string]decimal.Decimal {
	if m == nil {
		return nil
	}
	out := make(map[string]decimal.Decimal, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
