package ledger

import (
	"fmt"

	"github.com/shopspring/decimal"

	"gitlab.com/flik/groupledger/internal/models"
)

// DeriveBalances recomputes every member's balance from the expense list.
// All balances are zero once the group is closed.
func DeriveBalances(group *models.Group) map[string]decimal.Decimal {
	balances := make(map[string]decimal.Decimal, len(group.Members))
	for _, m := range group.Members {
		balances[m.ID] = decimal.Zero
	}
	if group.Closed {
		return balances
	}
	for _, e := range group.Expenses {
		balances[e.PayerID] = balances[e.PayerID].Add(e.Amount)
		for id, share := range e.Shares {
			balances[id] = balances[id].Sub(share)
		}
	}
	return balances
}

// Verify checks that balances sum to zero and match the expense list.
func Verify(group *models.Group) error {
	derived := DeriveBalances(group)
	sum := decimal.Zero
	for _, m := range group.Members {
		sum = sum.Add(m.Balance)
		if want := derived[m.ID]; !m.Balance.Equal(want) {
			return fmt.Errorf("%w: group %q member %q balance %s, expenses give %s",
				ErrInvariant, group.ID, m.ID, m.Balance.String(), want.String())
		}
	}
	if !sum.IsZero() {
		return fmt.Errorf("%w: group %q balances sum to %s", ErrInvariant, group.ID, sum.String())
	}
	return nil
}

// CheckExpenses reports an expense whose payer or share holder is not a
// member of the group.
func CheckExpenses(group *models.Group) error {
	for _, e := range group.Expenses {
		if group.MemberIndex(e.PayerID) < 0 {
			return fmt.Errorf("%w: expense %q payer %q", ErrUnknownMember, e.ID, e.PayerID)
		}
		for id := range e.Shares {
			if group.MemberIndex(id) < 0 {
				return fmt.Errorf("%w: expense %q participant %q", ErrUnknownMember, e.ID, id)
			}
		}
	}
	return nil
}

// ApplyDerivedBalances overwrites stored balances with derived ones and
// reports whether any of them changed.
func ApplyDerivedBalances(group *models.Group) bool {
	derived := DeriveBalances(group)
	changed := false
	for i := range group.Members {
		want := derived[group.Members[i].ID]
		if !group.Members[i].Balance.Equal(want) {
			group.Members[i].Balance = want
			changed = true
		}
	}
	return changed
}
