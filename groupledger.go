// Package groupledger is a shared-expense ledger: groups of members record
// expenses split by equal, weighted or percentage rules, keep derived
// balances, settle up into payments and requests, and chat.
package groupledger

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"gitlab.com/flik/groupledger/internal/config"
	"gitlab.com/flik/groupledger/internal/database"
	"gitlab.com/flik/groupledger/internal/export"
	"gitlab.com/flik/groupledger/internal/ledger"
	"gitlab.com/flik/groupledger/internal/logger"
	"gitlab.com/flik/groupledger/internal/members"
	"gitlab.com/flik/groupledger/internal/models"
	"gitlab.com/flik/groupledger/internal/repository"
	"gitlab.com/flik/groupledger/internal/settlement"
	"gitlab.com/flik/groupledger/internal/store"
	"gitlab.com/flik/groupledger/internal/telemetry"
)

// ErrPersist is returned when a mutation succeeded in memory but saving the
// new state failed. The returned value reflects the committed change.
var ErrPersist = errors.New("change applied but not saved")

// Errors returned by Ledger operations, for use with errors.Is.
var (
	ErrGroupNotFound  = store.ErrGroupNotFound
	ErrGroupExists    = store.ErrGroupExists
	ErrEmptyMessage   = store.ErrEmptyMessage
	ErrNoPersister    = store.ErrNoPersister
	ErrSelfTransfer   = store.ErrSelfTransfer
	ErrInvalidAmount  = ledger.ErrInvalidAmount
	ErrInvalidSplit   = ledger.ErrInvalidSplit
	ErrUnknownMember  = ledger.ErrUnknownMember
	ErrGroupClosed    = ledger.ErrGroupClosed
	ErrAlreadySettled = ledger.ErrAlreadySettled
	ErrInvalidGroup   = ledger.ErrInvalidGroup
)

type (
	// Config is the ledger configuration read by LoadConfig.
	Config = config.Config
	// Option configures the underlying store.
	Option = store.Option
	// Persister loads and saves snapshots of the whole ledger.
	Persister = store.Persister
	// Snapshot is the complete persisted state handed to a Persister.
	Snapshot = store.Snapshot
	// Catalog is the directory of contacts that can join groups.
	Catalog = members.Catalog
	// Contact is a catalog entry.
	Contact = members.Contact

	// Group is a set of members sharing expenses.
	Group = models.Group
	// Member is a group participant with a derived balance.
	Member = models.Member
	// Expense is a payment split among participants.
	Expense = models.Expense
	// Transaction is a payment or request between two members.
	Transaction = models.Transaction
	// ChatMessage is a user or system message in a group.
	ChatMessage = models.ChatMessage
	// SplitMode selects how an expense is divided.
	SplitMode = models.SplitMode
	// Category classifies an expense.
	Category = models.Category
	// TransactionKind tells payments from requests.
	TransactionKind = models.TransactionKind
	// TransactionStatus is the lifecycle state of a transaction.
	TransactionStatus = models.TransactionStatus
	// Direction is a transaction seen from one member's side.
	Direction = models.Direction

	// GroupInput describes a group to create.
	GroupInput = ledger.GroupInput
	// GroupDetails holds the editable group fields; nil fields are unchanged.
	GroupDetails = ledger.GroupDetails
	// ExpenseInput describes an expense to add.
	ExpenseInput = ledger.ExpenseInput
	// ExpenseResult is the outcome of AddExpense.
	ExpenseResult = ledger.ExpenseResult
	// Stats summarizes a group's balances and spending.
	Stats = ledger.Stats
	// MemberBalance is one member's entry in Stats.
	MemberBalance = ledger.MemberBalance
	// CategoryTotal is one category's entry in Stats.
	CategoryTotal = ledger.CategoryTotal
	// MonthTotal is one month's entry in Stats.
	MonthTotal = ledger.MonthTotal
	// SettlementResult is the outcome of SettleUp.
	SettlementResult = settlement.Result
	// Transfer describes a peer-to-peer payment or request.
	Transfer = store.Transfer
	// Activity is a transaction seen from one member's side.
	Activity = store.Activity
)

// Split modes.
const (
	SplitEqual      = models.SplitEqual
	SplitShares     = models.SplitShares
	SplitPercentage = models.SplitPercentage
)

// Expense categories.
const (
	CategoryFood          = models.CategoryFood
	CategoryAccommodation = models.CategoryAccommodation
	CategoryTransport     = models.CategoryTransport
	CategoryEntertainment = models.CategoryEntertainment
	CategoryOther         = models.CategoryOther
)

// Transaction kinds and statuses.
const (
	TransactionPayment = models.TransactionPayment
	TransactionRequest = models.TransactionRequest
	StatusPending      = models.StatusPending
	StatusCompleted    = models.StatusCompleted
	StatusCancelled    = models.StatusCancelled
)

// Transaction directions.
const (
	DirectionSent      = models.DirectionSent
	DirectionReceived  = models.DirectionReceived
	DirectionOutgoing  = models.DirectionOutgoing
	DirectionIncoming  = models.DirectionIncoming
	DirectionUnrelated = models.DirectionUnrelated
)

// IndividualGroupID is the group id of peer-to-peer transfers.
const IndividualGroupID = models.IndividualGroupID

// LoadConfig reads the configuration from the environment and an optional .env file.
func LoadConfig() (*Config, error) {
	return config.Load()
}

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return store.WithClock(now)
}

// WithCatalog sets the contact catalog.
func WithCatalog(c *Catalog) Option {
	return store.WithCatalog(c)
}

// WithDefaultCurrency sets the currency of groups created without one.
func WithDefaultCurrency(currency string) Option {
	return store.WithDefaultCurrency(currency)
}

// WithTracerProvider overrides the global tracer provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return store.WithTracerProvider(tp)
}

// WithMeterProvider overrides the global meter provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return store.WithMeterProvider(mp)
}

// NewCatalog returns a catalog of the given contacts.
func NewCatalog(contacts ...Contact) *Catalog {
	return members.NewCatalog(contacts...)
}

// DefaultCatalog returns the built-in contact catalog.
func DefaultCatalog() *Catalog {
	return members.DefaultCatalog()
}

// Ledger is the entry point for host applications.
type Ledger struct {
	store      *store.Store
	autoSave   bool
	persistent bool
	saveMu     sync.Mutex

	pool     *pgxpool.Pool
	shutdown telemetry.ShutdownFunc
	log      zerolog.Logger
}

// Open configures logging and telemetry from cfg and opens the ledger. With a
// database URL the schema is migrated and the last saved state is loaded;
// otherwise the ledger lives in memory only.
func Open(ctx context.Context, cfg *Config, opts ...Option) (_ *Ledger, err error) {
	if err := cfg.ApplyLogging(); err != nil {
		return nil, err
	}

	shutdown, err := telemetry.Setup(ctx, cfg.TelemetryOptions())
	if err != nil {
		return nil, fmt.Errorf("failed to set up telemetry: %w", err)
	}
	defer func() {
		if err != nil {
			_ = shutdown(context.WithoutCancel(ctx))
		}
	}()

	opts = append([]Option{store.WithDefaultCurrency(cfg.DefaultCurrency)}, opts...)

	if !cfg.Persistent() {
		l := newLedger(store.New(opts...), false, false)
		l.shutdown = shutdown
		l.log.Info().Msg("Ledger opened in memory")
		return l, nil
	}

	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	defer func() {
		if err != nil {
			pool.Close()
		}
	}()

	if err := database.RunMigrations(ctx, pool); err != nil {
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	s, err := store.Open(ctx, repository.NewSnapshotRepository(pool), opts...)
	if err != nil {
		return nil, err
	}

	l := newLedger(s, cfg.AutoSave, true)
	l.pool = pool
	l.shutdown = shutdown
	l.log.Info().Bool("auto_save", cfg.AutoSave).Msg("Ledger opened with database")
	return l, nil
}

// New opens a ledger over p without touching global logging or telemetry.
// A nil p gives an in-memory ledger.
func New(ctx context.Context, p Persister, autoSave bool, opts ...Option) (*Ledger, error) {
	if p == nil {
		return newLedger(store.New(opts...), false, false), nil
	}
	s, err := store.Open(ctx, p, opts...)
	if err != nil {
		return nil, err
	}
	return newLedger(s, autoSave, true), nil
}

func newLedger(s *store.Store, autoSave, persistent bool) *Ledger {
	return &Ledger{
		store:      s,
		autoSave:   autoSave,
		persistent: persistent,
		log:        logger.Component("ledger"),
	}
}

// Close flushes telemetry and releases the database pool.
func (l *Ledger) Close(ctx context.Context) error {
	var err error
	if l.shutdown != nil {
		err = l.shutdown(ctx)
	}
	if l.pool != nil {
		l.pool.Close()
	}
	return err
}

// Save persists the current state.
func (l *Ledger) Save(ctx context.Context) error {
	l.saveMu.Lock()
	defer l.saveMu.Unlock()
	return l.store.Save(ctx)
}

func (l *Ledger) persist(ctx context.Context) error {
	if !l.autoSave || !l.persistent {
		return nil
	}
	if err := l.Save(ctx); err != nil {
		l.log.Error().Err(err).Msg("Failed to save state")
		return fmt.Errorf("%w: %w", ErrPersist, err)
	}
	return nil
}

// Catalog returns the contacts available for groups and transfers.
func (l *Ledger) Catalog() *Catalog {
	return l.store.Catalog()
}

// CreateGroup creates a new open group.
func (l *Ledger) CreateGroup(ctx context.Context, in GroupInput) (*Group, error) {
	g, err := l.store.CreateGroup(ctx, in)
	if err != nil {
		return nil, err
	}
	return g, l.persist(ctx)
}

// Group returns a copy of a group.
func (l *Ledger) Group(id string) (*Group, error) {
	return l.store.Group(id)
}

// Groups returns copies of all groups in creation order.
func (l *Ledger) Groups() []*Group {
	return l.store.Groups()
}

// UpdateGroup changes a group's name, budget or color.
func (l *Ledger) UpdateGroup(ctx context.Context, id string, details GroupDetails) (*Group, error) {
	g, err := l.store.UpdateGroup(ctx, id, details)
	if err != nil {
		return nil, err
	}
	return g, l.persist(ctx)
}

// DeleteGroup removes a group.
func (l *Ledger) DeleteGroup(ctx context.Context, id string) error {
	if err := l.store.DeleteGroup(ctx, id); err != nil {
		return err
	}
	return l.persist(ctx)
}

// AddExpense records an expense in a group.
func (l *Ledger) AddExpense(ctx context.Context, groupID string, in ExpenseInput) (*ExpenseResult, error) {
	res, err := l.store.AddExpense(ctx, groupID, in)
	if err != nil {
		return nil, err
	}
	return res, l.persist(ctx)
}

// SettleUp settles and closes a group.
func (l *Ledger) SettleUp(ctx context.Context, groupID string) (*SettlementResult, error) {
	res, err := l.store.SettleUp(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return res, l.persist(ctx)
}

// PreviewSettlement returns the transactions SettleUp would emit.
func (l *Ledger) PreviewSettlement(ctx context.Context, groupID string) ([]Transaction, error) {
	return l.store.PreviewSettlement(ctx, groupID)
}

// PostMessage posts a chat message from a group member.
func (l *Ledger) PostMessage(ctx context.Context, groupID, senderID, content string) (ChatMessage, error) {
	msg, err := l.store.PostMessage(ctx, groupID, senderID, content)
	if err != nil {
		return ChatMessage{}, err
	}
	return msg, l.persist(ctx)
}

// SendMoney records a completed payment between two contacts.
func (l *Ledger) SendMoney(ctx context.Context, t Transfer) (Transaction, error) {
	tx, err := l.store.SendMoney(ctx, t)
	if err != nil {
		return Transaction{}, err
	}
	return tx, l.persist(ctx)
}

// RequestMoney records a pending request between two contacts.
func (l *Ledger) RequestMoney(ctx context.Context, t Transfer) (Transaction, error) {
	tx, err := l.store.RequestMoney(ctx, t)
	if err != nil {
		return Transaction{}, err
	}
	return tx, l.persist(ctx)
}

// Stats returns balance, category and monthly summaries of a group.
func (l *Ledger) Stats(groupID string) (Stats, error) {
	return l.store.Stats(groupID)
}

// Transactions returns a group's transactions, most recent last.
func (l *Ledger) Transactions(groupID string) []Transaction {
	return l.store.Transactions(groupID)
}

// Messages returns a group's chat messages, most recent last.
func (l *Ledger) Messages(groupID string) []ChatMessage {
	return l.store.Messages(groupID)
}

// ActivityFor returns the transactions involving memberID.
func (l *Ledger) ActivityFor(memberID string) []Activity {
	return l.store.ActivityFor(memberID)
}

// StatementCSV renders a group's expenses as CSV.
func (l *Ledger) StatementCSV(groupID string) ([]byte, error) {
	g, err := l.store.Group(groupID)
	if err != nil {
		return nil, err
	}
	return export.GroupStatementCSV(g)
}

// StatementXLSX renders a group's expenses, balances and transactions as a workbook.
func (l *Ledger) StatementXLSX(groupID string) ([]byte, error) {
	g, err := l.store.Group(groupID)
	if err != nil {
		return nil, err
	}
	return export.GroupStatementXLSX(g, l.store.Transactions(groupID))
}
