package ledger

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"tradejoy/internal/core"
	"tradejoy/internal/log"
)

var ErrNotFound = errors.New("transaction not found")

//go:generate mockgen -source=ledger.go -destination=mocks/mock_ledger.go

// Journal persists transactions so they survive a restart.
type Journal interface {
	Save(ctx context.Context, tx core.Transaction) error
	Delete(ctx context.Context, id int64) error
	LoadAll(ctx context.Context) ([]core.Transaction, error)
}

// ProfileStore persists the business profile.
type ProfileStore interface {
	SaveProfile(ctx context.Context, p core.Profile) error
	// LoadProfile reports false when no profile was saved yet.
	LoadProfile(ctx context.Context) (core.Profile, bool, error)
}

// Publisher announces ledger changes to other processes.
type Publisher interface {
	PublishRecorded(ctx context.Context, tx core.Transaction) error
	PublishDeleted(ctx context.Context, tx core.Transaction) error
}

// Options configures a Ledger. Zero values select the wall clock, UTC and no
// journal or publisher.
type Options struct {
	Clock     func() time.Time
	Location  *time.Location
	Journal   Journal
	Profiles  ProfileStore
	Publisher Publisher
	Logger    *log.Logger
}

type subscriber struct {
	id int
	fn func(core.Totals)
}

// Ledger is the single owner of the transaction list. All methods are safe
// for concurrent use.
type Ledger struct {
	clock     func() time.Time
	loc       *time.Location
	journal   Journal
	profiles  ProfileStore
	publisher Publisher
	logger    *log.Logger

	mu      sync.Mutex
	profile core.Profile
	txs     []core.Transaction // newest first
	lastID  int64
	subs    []subscriber
	nextSub int
}

func New(opts Options) *Ledger {
	l := &Ledger{
		clock:     opts.Clock,
		loc:       opts.Location,
		journal:   opts.Journal,
		profiles:  opts.Profiles,
		publisher: opts.Publisher,
		logger:    opts.Logger,
		profile:   core.DefaultProfile(),
	}
	if l.clock == nil {
		l.clock = time.Now
	}
	if l.loc == nil {
		l.loc = time.UTC
	}
	if l.logger == nil {
		l.logger = log.New(log.DefaultConfig())
	}
	l.logger = l.logger.WithComponent(log.ComponentLedger)
	return l
}

// Today is the current calendar day in the ledger's location.
func (l *Ledger) Today() core.Date {
	return core.DateOf(l.clock().In(l.loc))
}

// Record validates e, assigns it the next id, stamps it with the current time
// and puts it at the head of the list.
func (l *Ledger) Record(ctx context.Context, e core.Entry) (core.Transaction, error) {
	tx, err := l.insert(ctx, e, l.clock())
	if err != nil {
		return core.Transaction{}, err
	}

	if l.publisher != nil {
		if err := l.publisher.PublishRecorded(ctx, tx); err != nil {
			l.logger.ErrorContext(ctx, "Failed to publish transaction event",
				log.NewFields().WithTransaction(tx.ID, tx.Kind.String(), tx.Description, tx.Amount.Cents, string(tx.Category)).
					WithOperation(log.OpPublish).WithError(err).ToSlice()...)
		}
	}
	return tx, nil
}

func (l *Ledger) insert(ctx context.Context, e core.Entry, at time.Time) (core.Transaction, error) {
	if err := e.Validate(); err != nil {
		return core.Transaction{}, fmt.Errorf("record transaction: %w", err)
	}
	at = at.In(l.loc)

	l.mu.Lock()
	l.lastID++
	tx := core.Transaction{
		ID:          l.lastID,
		Kind:        e.Kind,
		Amount:      e.Amount,
		Description: e.Description,
		Category:    e.Category,
		OccurredAt:  at,
		Date:        core.DateOf(at),
	}
	if l.journal != nil {
		if err := l.journal.Save(ctx, tx); err != nil {
			l.mu.Unlock()
			return core.Transaction{}, fmt.Errorf("journal transaction: %w", err)
		}
	}
	l.txs = append([]core.Transaction{tx}, l.txs...)
	totals, subs := l.snapshotLocked()
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "Transaction recorded",
		log.NewFields().WithTransaction(tx.ID, tx.Kind.String(), tx.Description, tx.Amount.Cents, string(tx.Category)).
			WithOperation(log.OpCreate).ToSlice()...)
	notify(subs, totals)
	return tx, nil
}

// Delete removes the transaction with the given id and returns it.
func (l *Ledger) Delete(ctx context.Context, id int64) (core.Transaction, error) {
	l.mu.Lock()
	idx := -1
	for i, tx := range l.txs {
		if tx.ID == id {
			idx = i
			break
		}
	}
	if idx < 0 {
		l.mu.Unlock()
		return core.Transaction{}, fmt.Errorf("delete transaction %d: %w", id, ErrNotFound)
	}
	if l.journal != nil {
		if err := l.journal.Delete(ctx, id); err != nil {
			l.mu.Unlock()
			return core.Transaction{}, fmt.Errorf("journal delete %d: %w", id, err)
		}
	}
	removed := l.txs[idx]
	next := make([]core.Transaction, 0, len(l.txs)-1)
	next = append(next, l.txs[:idx]...)
	l.txs = append(next, l.txs[idx+1:]...)
	totals, subs := l.snapshotLocked()
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "Transaction deleted", log.FieldTxID, id, log.FieldOperation, log.OpDelete)
	notify(subs, totals)

	if l.publisher != nil {
		if err := l.publisher.PublishDeleted(ctx, removed); err != nil {
			l.logger.ErrorContext(ctx, "Failed to publish delete event",
				log.FieldTxID, id, log.FieldOperation, log.OpPublish, log.FieldError, err)
		}
	}
	return removed, nil
}

// List returns up to limit transactions, newest first. A limit <= 0 returns
// all of them. The result is a copy.
func (l *Ledger) List(limit int) []core.Transaction {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.txs)
	if limit > 0 && limit < n {
		n = limit
	}
	return append([]core.Transaction(nil), l.txs[:n]...)
}

// Totals recomputes totals against the current day.
func (l *Ledger) Totals() core.Totals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Aggregate(l.txs, l.Today())
}

func (l *Ledger) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.txs)
}

// Daily reports per-day totals for the last days days, oldest first.
func (l *Ledger) Daily(days int) []core.DailyTotals {
	l.mu.Lock()
	defer l.mu.Unlock()
	return Daily(l.txs, l.Today(), days)
}

// SalesByCategory sums sales per category, largest first.
func (l *Ledger) SalesByCategory() []core.CategoryAmount {
	l.mu.Lock()
	defer l.mu.Unlock()
	return SalesByCategory(l.txs)
}

func (l *Ledger) Profile() core.Profile {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.profile
}

// UpdateProfile validates and stores p, replacing the current profile.
func (l *Ledger) UpdateProfile(ctx context.Context, p core.Profile) (core.Profile, error) {
	if err := p.Validate(); err != nil {
		return core.Profile{}, fmt.Errorf("update profile: %w", err)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.profiles != nil {
		if err := l.profiles.SaveProfile(ctx, p); err != nil {
			return core.Profile{}, fmt.Errorf("save profile: %w", err)
		}
	}
	l.profile = p
	l.logger.InfoContext(ctx, "Business profile updated",
		log.FieldOperation, log.OpUpdate, "daily_target_cents", p.DailyTarget.Cents)
	return p, nil
}

// Subscribe registers fn to receive the totals after every change. fn runs on
// the goroutine that made the change, outside the ledger lock. The returned
// func removes the subscription.
func (l *Ledger) Subscribe(fn func(core.Totals)) func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.nextSub++
	id := l.nextSub
	l.subs = append(l.subs, subscriber{id: id, fn: fn})

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, s := range l.subs {
			if s.id == id {
				l.subs = append(l.subs[:i:i], l.subs[i+1:]...)
				return
			}
		}
	}
}

var demoEntries = []struct {
	entry core.Entry
	ago   time.Duration
}{
	{core.Entry{Kind: core.KindSale, Amount: core.MustMoney("200"), Description: "Service Charge", Category: core.CategoryService}, 4 * time.Hour},
	{core.Entry{Kind: core.KindExpense, Amount: core.MustMoney("50"), Description: "Transport Cost", Category: core.CategoryTransport}, 3 * time.Hour},
	{core.Entry{Kind: core.KindSale, Amount: core.MustMoney("150"), Description: "Vegetables Sale", Category: core.CategoryProductSale}, 2 * time.Hour},
}

// Seed inserts the demo transactions when the ledger is empty and reports how
// many were added. Seeded transactions are not published.
func (l *Ledger) Seed(ctx context.Context) (int, error) {
	if l.Len() > 0 {
		return 0, nil
	}
	now := l.clock()
	for i, d := range demoEntries {
		if _, err := l.insert(ctx, d.entry, now.Add(-d.ago)); err != nil {
			return i, fmt.Errorf("seed demo data: %w", err)
		}
	}
	l.logger.InfoContext(ctx, "Demo transactions seeded", log.FieldOperation, log.OpSeed, "count", len(demoEntries))
	return len(demoEntries), nil
}

// Restore loads the saved profile and replays the journal into an empty
// ledger. The id counter resumes after the highest restored id.
func (l *Ledger) Restore(ctx context.Context) (int, error) {
	if l.profiles != nil {
		p, ok, err := l.profiles.LoadProfile(ctx)
		if err != nil {
			return 0, fmt.Errorf("restore profile: %w", err)
		}
		if ok {
			l.mu.Lock()
			l.profile = p
			l.mu.Unlock()
		}
	}
	if l.journal == nil {
		return 0, nil
	}
	txs, err := l.journal.LoadAll(ctx)
	if err != nil {
		return 0, fmt.Errorf("restore ledger: %w", err)
	}

	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].OccurredAt.Equal(txs[j].OccurredAt) {
			return txs[i].OccurredAt.After(txs[j].OccurredAt)
		}
		return txs[i].ID > txs[j].ID
	})

	l.mu.Lock()
	if len(l.txs) > 0 {
		l.mu.Unlock()
		return 0, errors.New("restore ledger: ledger is not empty")
	}
	l.txs = txs
	for _, tx := range txs {
		if tx.ID > l.lastID {
			l.lastID = tx.ID
		}
	}
	totals, subs := l.snapshotLocked()
	l.mu.Unlock()

	l.logger.InfoContext(ctx, "Ledger restored from journal", log.FieldOperation, log.OpRestore, "count", len(txs))
	notify(subs, totals)
	return len(txs), nil
}

func (l *Ledger) snapshotLocked() (core.Totals, []func(core.Totals)) {
	fns := make([]func(core.Totals), len(l.subs))
	for i, s := range l.subs {
		fns[i] = s.fn
	}
	return Aggregate(l.txs, l.Today()), fns
}

func notify(subs []func(core.Totals), t core.Totals) {
	for _, fn := range subs {
		fn(t)
	}
}
