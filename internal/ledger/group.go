package ledger

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gitlab.com/flik/groupledger/internal/models"
)

// GroupInput describes a group to create.
type GroupInput struct {
	// ID is generated when empty.
	ID      string
	Name    string
	Members []models.Member
	// OwnerID defaults to the first member.
	OwnerID  string
	Budget   decimal.NullDecimal
	Currency string
	Color    string
}

// GroupDetails holds the editable attributes of a group. Nil fields are left unchanged.
type GroupDetails struct {
	Name   *string
	Budget *decimal.NullDecimal
	Color  *string
}

// NewGroup validates in and returns an open group with all balances at zero.
func NewGroup(in GroupInput, at time.Time) (*models.Group, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: name is required", ErrInvalidGroup)
	}
	if len(in.Members) == 0 {
		return nil, fmt.Errorf("%w: at least one member is required", ErrInvalidGroup)
	}
	if err := checkBudget(in.Budget); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(in.Members))
	members := make([]models.Member, len(in.Members))
	for i, m := range in.Members {
		if m.ID == "" {
			return nil, fmt.Errorf("%w: member %d has no id", ErrInvalidGroup, i)
		}
		if _, ok := seen[m.ID]; ok {
			return nil, fmt.Errorf("%w: duplicate member %q", ErrInvalidGroup, m.ID)
		}
		seen[m.ID] = struct{}{}
		m.Balance = decimal.Zero
		members[i] = m
	}

	owner := in.OwnerID
	if owner == "" {
		owner = members[0].ID
	}
	if _, ok := seen[owner]; !ok {
		return nil, fmt.Errorf("%w: owner %q is not a member", ErrInvalidGroup, owner)
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = models.DefaultCurrency
	}
	if _, ok := models.SupportedCurrencies[currency]; !ok {
		return nil, fmt.Errorf("%w: unsupported currency %q", ErrInvalidGroup, currency)
	}

	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	if id == models.IndividualGroupID {
		return nil, fmt.Errorf("%w: group id %q is reserved", ErrInvalidGroup, id)
	}

	return &models.Group{
		ID:        id,
		Name:      name,
		Members:   members,
		OwnerID:   owner,
		Budget:    in.Budget,
		Currency:  currency,
		Color:     in.Color,
		CreatedAt: at,
	}, nil
}

// UpdateDetails returns a copy of group with the given details applied.
// Members, balances and expenses cannot be edited.
func UpdateDetails(group *models.Group, details GroupDetails) (*models.Group, error) {
	next := group.Clone()
	if details.Name != nil {
		name := strings.TrimSpace(*details.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: name is required", ErrInvalidGroup)
		}
		next.Name = name
	}
	if details.Budget != nil {
		if err := checkBudget(*details.Budget); err != nil {
			return nil, err
		}
		next.Budget = *details.Budget
	}
	if details.Color != nil {
		next.Color = *details.Color
	}
	return next, nil
}

func checkBudget(budget decimal.NullDecimal) error {
	if budget.Valid && budget.Decimal.IsNegative() {
		return fmt.Errorf("%w: budget must not be negative", ErrInvalidAmount)
	}
	return nil
}
