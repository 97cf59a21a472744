package groupledger

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"gitlab.com/flik/groupledger/internal/config"
	"gitlab.com/flik/groupledger/internal/ledger"
	"gitlab.com/flik/groupledger/internal/models"
	"gitlab.com/flik/groupledger/internal/store"
)

var testTime = time.Date(2025, 8, 15, 18, 30, 0, 0, time.UTC)

type recordingPersister struct {
	mu    sync.Mutex
	snap  *store.Snapshot
	saves int
	err   error
}

func (p *recordingPersister) Load(context.Context) (*store.Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.snap, nil
}

func (p *recordingPersister) Save(_ context.Context, snap *store.Snapshot) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.snap = snap
	p.saves++
	return nil
}

func (p *recordingPersister) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saves
}

func memoryConfig() *config.Config {
	return &config.Config{
		LogFormat:         config.LogFormatConsole,
		DefaultCurrency:   "EUR",
		TelemetryExporter: "none",
	}
}

func createTrip(t *testing.T, l *Ledger) {
	t.Helper()
	ms, err := l.Catalog().Members("1", "2", "3")
	require.NoError(t, err)
	_, err = l.CreateGroup(context.Background(), GroupInput{ID: "bled", Name: "Bled", Members: ms})
	require.NoError(t, err)
}

func dinner(amount, payer string) ExpenseInput {
	return ExpenseInput{
		Description:  "dinner",
		Amount:       decimal.RequireFromString(amount),
		PayerID:      payer,
		Participants: []string{"1", "2", "3"},
		SplitMode:    SplitEqual,
	}
}

func TestOpenInMemory(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	cfg := memoryConfig()
	cfg.DefaultCurrency = "CHF"

	l, err := Open(ctx, cfg, store.WithClock(func() time.Time { return testTime }))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, l.Close(context.Background())) })

	createTrip(t, l)
	g, err := l.Group("bled")
	require.NoError(t, err)
	require.Equal(t, "CHF", g.Currency)
	require.Equal(t, testTime, g.CreatedAt)

	require.ErrorIs(t, l.Save(ctx), store.ErrNoPersister)
}

func TestOpenRejectsBadSalt(t *testing.T) {
	t.Parallel()

	cfg := memoryConfig()
	cfg.LogHashSalt = "too-short"
	_, err := Open(context.Background(), cfg)
	require.Error(t, err)
}

func TestLedgerWorkflow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, err := New(ctx, nil, false, store.WithClock(func() time.Time { return testTime }))
	require.NoError(t, err)
	createTrip(t, l)

	res, err := l.AddExpense(ctx, "bled", dinner("30.00", "1"))
	require.NoError(t, err)
	require.Equal(t, "20.00", res.Group.Members[0].Balance.StringFixed(2))

	_, err = l.AddExpense(ctx, "bled", dinner("15.00", "2"))
	require.NoError(t, err)

	_, err = l.PostMessage(ctx, "bled", "3", "thanks!")
	require.NoError(t, err)

	preview, err := l.PreviewSettlement(ctx, "bled")
	require.NoError(t, err)
	require.Len(t, preview, 1)

	settled, err := l.SettleUp(ctx, "bled")
	require.NoError(t, err)
	require.True(t, settled.Group.Closed)
	require.Len(t, settled.Transactions, 1)
	require.Equal(t, "3", settled.Transactions[0].FromMemberID)
	require.Equal(t, "15.00", settled.Transactions[0].Amount.StringFixed(2))

	_, err = l.SettleUp(ctx, "bled")
	require.ErrorIs(t, err, ledger.ErrAlreadySettled)
	_, err = l.AddExpense(ctx, "bled", dinner("5", "1"))
	require.ErrorIs(t, err, ledger.ErrGroupClosed)

	// two expense messages, the chat message and the settlement summary
	require.Len(t, l.Messages("bled"), 4)
	require.Len(t, l.Transactions("bled"), 1)

	activity := l.ActivityFor("3")
	require.Len(t, activity, 1)
	require.Equal(t, models.DirectionOutgoing, activity[0].Direction)
}

func TestLedgerTransfers(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, err := New(ctx, nil, false)
	require.NoError(t, err)

	sent, err := l.SendMoney(ctx, Transfer{FromMemberID: "1", ToMemberID: "2", Amount: decimal.RequireFromString("12.40")})
	require.NoError(t, err)
	require.Equal(t, models.StatusCompleted, sent.Status)

	requested, err := l.RequestMoney(ctx, Transfer{FromMemberID: "2", ToMemberID: "1", Amount: decimal.NewFromInt(3)})
	require.NoError(t, err)
	require.Equal(t, models.StatusPending, requested.Status)

	require.Len(t, l.Transactions(models.IndividualGroupID), 2)

	_, err = l.SendMoney(ctx, Transfer{FromMemberID: "1", ToMemberID: "1", Amount: decimal.NewFromInt(1)})
	require.ErrorIs(t, err, store.ErrSelfTransfer)
}

func TestLedgerAutoSave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := &recordingPersister{}
	l, err := New(ctx, p, true, store.WithClock(func() time.Time { return testTime }))
	require.NoError(t, err)

	createTrip(t, l)
	require.Equal(t, 1, p.count())

	_, err = l.AddExpense(ctx, "bled", dinner("9", "1"))
	require.NoError(t, err)
	require.Equal(t, 2, p.count())

	// rejected mutations are not saved
	_, err = l.AddExpense(ctx, "bled", dinner("-1", "1"))
	require.ErrorIs(t, err, ledger.ErrInvalidAmount)
	require.Equal(t, 2, p.count())

	name := "Lake Bled"
	_, err = l.UpdateGroup(ctx, "bled", GroupDetails{Name: &name})
	require.NoError(t, err)
	require.Equal(t, 3, p.count())

	reopened, err := New(ctx, p, true)
	require.NoError(t, err)
	g, err := reopened.Group("bled")
	require.NoError(t, err)
	require.Equal(t, "Lake Bled", g.Name)
	require.Len(t, g.Expenses, 1)

	require.NoError(t, l.DeleteGroup(ctx, "bled"))
	require.Equal(t, 4, p.count())
	require.Empty(t, p.snap.Groups)
}

func TestLedgerWithoutAutoSave(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	p := &recordingPersister{}
	l, err := New(ctx, p, false)
	require.NoError(t, err)

	createTrip(t, l)
	require.Zero(t, p.count())

	require.NoError(t, l.Save(ctx))
	require.Equal(t, 1, p.count())
}

func TestLedgerPersistFailureKeepsChange(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	boom := errors.New("connection reset")
	p := &recordingPersister{}
	l, err := New(ctx, p, true)
	require.NoError(t, err)
	createTrip(t, l)

	p.mu.Lock()
	p.err = boom
	p.mu.Unlock()

	res, err := l.AddExpense(ctx, "bled", dinner("30", "1"))
	require.ErrorIs(t, err, ErrPersist)
	require.ErrorIs(t, err, boom)
	require.NotNil(t, res)

	g, err := l.Group("bled")
	require.NoError(t, err)
	require.Len(t, g.Expenses, 1)
}

func TestLedgerStatements(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	l, err := New(ctx, nil, false, store.WithClock(func() time.Time { return testTime }))
	require.NoError(t, err)
	createTrip(t, l)
	_, err = l.AddExpense(ctx, "bled", dinner("30", "1"))
	require.NoError(t, err)
	_, err = l.SettleUp(ctx, "bled")
	require.NoError(t, err)

	data, err := l.StatementCSV("bled")
	require.NoError(t, err)
	records, err := csv.NewReader(bytes.NewReader(data)).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 2)
	require.Equal(t, "30.00", records[1][4])

	xlsx, err := l.StatementXLSX("bled")
	require.NoError(t, err)
	require.NotEmpty(t, xlsx)

	_, err = l.StatementCSV("missing")
	require.ErrorIs(t, err, store.ErrGroupNotFound)
	_, err = l.StatementXLSX("missing")
	require.ErrorIs(t, err, store.ErrGroupNotFound)
}
