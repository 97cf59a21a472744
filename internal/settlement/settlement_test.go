package settlement

import (
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"gitlab.com/flik/groupledger/internal/ledger"
	"gitlab.com/flik/groupledger/internal/models"
)

var testTime = time.Date(2025, 6, 2, 18, 30, 0, 0, time.UTC)

func scenarioGroup(t *testing.T) *models.Group {
	t.Helper()
	g, err := ledger.NewGroup(ledger.GroupInput{
		ID:   "trip",
		Name: "Trip",
		Members: []models.Member{
			{ID: "A", Name: "Ana"},
			{ID: "B", Name: "Bor"},
			{ID: "C", Name: "Cene"},
		},
	}, testTime)
	require.NoError(t, err)

	for _, e := range []struct{ amount, payer string }{{"30.00", "A"}, {"15.00", "B"}} {
		res, err := ledger.AddExpense(g, ledger.ExpenseInput{
			Description:  "dinner",
			Amount:       decimal.RequireFromString(e.amount),
			PayerID:      e.payer,
			Participants: []string{"A", "B", "C"},
			SplitMode:    models.SplitEqual,
		}, testTime)
		require.NoError(t, err)
		g = res.Group
	}
	return g
}

func TestSettleUpScenario(t *testing.T) {
	t.Parallel()

	g := scenarioGroup(t)
	res, err := SettleUp(g, testTime)
	require.NoError(t, err)

	require.Len(t, res.Transactions, 1)
	tx := res.Transactions[0]
	require.Equal(t, models.TransactionRequest, tx.Kind)
	require.Equal(t, models.StatusPending, tx.Status)
	require.Equal(t, "C", tx.FromMemberID)
	require.Equal(t, "A", tx.ToMemberID)
	require.Equal(t, "15.00", tx.Amount.StringFixed(2))
	require.Equal(t, "trip", tx.GroupID)
	require.Equal(t, testTime, tx.CreatedAt)
	require.NotEmpty(t, tx.ID)

	require.True(t, res.Group.Closed)
	for _, m := range res.Group.Members {
		require.True(t, m.Balance.IsZero(), "member %s", m.ID)
	}
	require.Len(t, res.Group.Expenses, 2)

	require.Equal(t, models.MessageSystem, res.Message.Kind)
	require.Equal(t, "Trip was settled: Cene owes 15.00 EUR to Ana", res.Message.Content)

	// input untouched
	require.False(t, g.Closed)
	require.Equal(t, "15.00", g.Members[0].Balance.StringFixed(2))
}

func TestSettleUpPaymentToCreditor(t *testing.T) {
	t.Parallel()

	g := scenarioGroup(t)
	g.OwnerID = "C"

	res, err := SettleUp(g, testTime)
	require.NoError(t, err)
	require.Len(t, res.Transactions, 1)

	tx := res.Transactions[0]
	require.Equal(t, models.TransactionPayment, tx.Kind)
	require.Equal(t, models.StatusCompleted, tx.Status)
	require.Equal(t, "C", tx.FromMemberID)
	require.Equal(t, "A", tx.ToMemberID)
	require.Equal(t, "15.00", tx.Amount.StringFixed(2))
	require.Equal(t, models.DirectionSent, tx.DirectionFor("C"))
	require.Equal(t, models.DirectionReceived, tx.DirectionFor("A"))
}

func TestSettleUpTwice(t *testing.T) {
	t.Parallel()

	res, err := SettleUp(scenarioGroup(t), testTime)
	require.NoError(t, err)

	closed := res.Group
	before := closed.Clone()
	again, err := SettleUp(closed, testTime)
	require.ErrorIs(t, err, ledger.ErrAlreadySettled)
	require.Nil(t, again)
	require.Equal(t, before, closed)

	_, err = Preview(closed)
	require.ErrorIs(t, err, ledger.ErrAlreadySettled)
}

func TestSettleUpInvalidGroup(t *testing.T) {
	t.Parallel()

	_, err := SettleUp(&models.Group{ID: "empty"}, testTime)
	require.ErrorIs(t, err, ledger.ErrInvalidGroup)

	g := scenarioGroup(t)
	g.OwnerID = "nobody"
	_, err = SettleUp(g, testTime)
	require.ErrorIs(t, err, ledger.ErrInvalidGroup)
}

func TestSettleUpNothingOwed(t *testing.T) {
	t.Parallel()

	g, err := ledger.NewGroup(ledger.GroupInput{Name: "Empty", Members: []models.Member{{ID: "A", Name: "Ana"}, {ID: "B", Name: "Bor"}}}, testTime)
	require.NoError(t, err)

	res, err := SettleUp(g, testTime)
	require.NoError(t, err)
	require.Empty(t, res.Transactions)
	require.True(t, res.Group.Closed)
	require.Equal(t, "Empty was settled, nothing to pay", res.Message.Content)
}

func TestPreview(t *testing.T) {
	t.Parallel()

	g := scenarioGroup(t)
	txs, err := Preview(g)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	require.False(t, g.Closed)
	require.Equal(t, "15.00", g.Members[2].Balance.Neg().StringFixed(2))
}

func TestNetEffect(t *testing.T) {
	t.Parallel()

	txs := []models.Transaction{
		{FromMemberID: "A", ToMemberID: "B", Amount: decimal.NewFromInt(10), Kind: models.TransactionPayment},
		{FromMemberID: "C", ToMemberID: "A", Amount: decimal.NewFromInt(4), Kind: models.TransactionRequest},
	}
	require.Equal(t, "6", NetEffect(txs, "A").String())
	require.Equal(t, "-10", NetEffect(txs, "B").String())
	require.Equal(t, "4", NetEffect(txs, "C").String())
	require.True(t, NetEffect(txs, "D").IsZero())
	require.Equal(t, "6", SignedTotal(txs).String())
}

func TestSettleUpProperties(t *testing.T) {
	t.Parallel()

	rapid.Check(t, func(t *rapid.T) {
		n := rapid.IntRange(1, 6).Draw(t, "members")
		ids := make([]string, n)
		ms := make([]models.Member, n)
		for i := range ms {
			ids[i] = fmt.Sprintf("m%d", i)
			ms[i] = models.Member{ID: ids[i], Name: ids[i]}
		}
		g, err := ledger.NewGroup(ledger.GroupInput{
			Name:    "prop",
			Members: ms,
			OwnerID: rapid.SampledFrom(ids).Draw(t, "owner"),
		}, testTime)
		require.NoError(t, err)

		for range rapid.IntRange(0, 10).Draw(t, "expenses") {
			res, err := ledger.AddExpense(g, ledger.ExpenseInput{
				Amount:       decimal.New(rapid.Int64Range(1, 50_000).Draw(t, "cents"), -2),
				PayerID:      rapid.SampledFrom(ids).Draw(t, "payer"),
				Participants: rapid.SliceOfNDistinct(rapid.SampledFrom(ids), 1, n, rapid.ID[string]).Draw(t, "participants"),
				SplitMode:    models.SplitEqual,
			}, testTime)
			require.NoError(t, err)
			g = res.Group
		}

		before := make(map[string]decimal.Decimal, n)
		for _, m := range g.Members {
			before[m.ID] = m.Balance
		}

		res, err := SettleUp(g, testTime)
		require.NoError(t, err)

		require.True(t, res.Group.Closed)
		for _, m := range res.Group.Members {
			require.True(t, m.Balance.IsZero())
		}
		require.NoError(t, ledger.Verify(res.Group))

		// payments minus requests offset the owner's balance
		require.True(t, SignedTotal(res.Transactions).Equal(before[g.OwnerID].Neg()))

		// executing every transaction brings each member to zero
		for _, id := range ids {
			after := before[id].Add(NetEffect(res.Transactions, id))
			require.True(t, after.IsZero(), "member %s ends at %s", id, after)
		}

		for _, tx := range res.Transactions {
			require.True(t, tx.Amount.IsPositive())
			require.NotEqual(t, tx.FromMemberID, tx.ToMemberID)
		}

		_, err = SettleUp(res.Group, testTime)
		require.ErrorIs(t, err, ledger.ErrAlreadySettled)
	})
}
