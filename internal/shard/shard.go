// Package shard realizes the per-user state shards at the heart of the
// backend. One logical shard exists per lowercased wallet address and owns
// that user's recipients, schedules, transaction history, and login nonce.
//
// Concurrency contract:
//   - All writes to a shard are serialized behind the shard's mutex, so
//     concurrent operations on the same user observe a total order.
//   - Reads take the same mutex and therefore reflect the latest completed
//     write on that shard (linearizable per shard).
//   - Operations on distinct shards proceed in parallel.
//
// Every operation is bounded by the configured per-op timeout and honors the
// caller's context for cancellation.
package shard

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"strings"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
	"github.com/voicepay/go-voicepay-backend/internal/repo"
)

// DefaultOpTimeout bounds a single shard operation when the manager is
// constructed with a non-positive timeout.
const DefaultOpTimeout = 5 * time.Second

// Key normalizes a wallet address into the shard key. Two requests
// addressing the same user always map to the same shard.
func Key(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// Manager hands out shards by address. It is safe for concurrent use and
// creates shard handles lazily; a shard holds no state of its own beyond its
// write lock, so the map only ever grows by one small struct per active user.
type Manager struct {
	db        *gorm.DB
	opTimeout time.Duration

	mu     sync.Mutex
	shards map[string]*Shard
}

// NewManager constructs a Manager over the given database handle.
func NewManager(db *gorm.DB, opTimeout time.Duration) *Manager {
	if opTimeout <= 0 {
		opTimeout = DefaultOpTimeout
	}
	return &Manager{
		db:        db,
		opTimeout: opTimeout,
		shards:    make(map[string]*Shard),
	}
}

// For returns the shard for the given address, creating it on first use.
func (m *Manager) For(address string) *Shard {
	key := Key(address)
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.shards[key]
	if !ok {
		s = &Shard{addr: key, db: m.db, opTimeout: m.opTimeout}
		m.shards[key] = s
	}
	return s
}

// DB exposes the underlying handle for cross-shard scans that do not need
// single-writer semantics (e.g. the dispatcher's index reconcile).
func (m *Manager) DB() *gorm.DB { return m.db }

// Shard serializes all operations for one user. Obtain instances via
// Manager.For; the zero value is not usable.
type Shard struct {
	addr      string
	db        *gorm.DB
	opTimeout time.Duration
	mu        sync.Mutex
}

// Address returns the lowercased wallet address this shard serves.
func (s *Shard) Address() string { return s.addr }

func (s *Shard) bound(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.opTimeout)
}

//
// Recipients
//

// Recipients lists the shard's address book.
func (s *Shard) Recipients(ctx context.Context) ([]domain.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return repo.ListRecipients(ctx, s.db, s.addr)
}

// AddRecipient inserts a recipient; the wallet must be unique within the
// shard. Returns repo.ErrDuplicate otherwise.
func (s *Shard) AddRecipient(ctx context.Context, name, wallet, note string) (*domain.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return repo.CreateRecipient(ctx, s.db, s.addr, name, Key(wallet), note)
}

// UpdateRecipient patches the recipient identified by oldWallet. Nil fields
// are left unchanged.
func (s *Shard) UpdateRecipient(ctx context.Context, oldWallet string, newWallet, newName, newNote *string) (*domain.Recipient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	if newWallet != nil {
		w := Key(*newWallet)
		newWallet = &w
	}
	return repo.UpdateRecipient(ctx, s.db, s.addr, Key(oldWallet), newWallet, newName, newNote)
}

// DeleteRecipient removes the recipient with the given wallet.
func (s *Shard) DeleteRecipient(ctx context.Context, wallet string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return repo.DeleteRecipient(ctx, s.db, s.addr, Key(wallet))
}

//
// Nonce
//

// IssueNonce generates a fresh random token, stores it (overwriting any
// prior unconsumed nonce), and returns it.
func (s *Shard) IssueNonce(ctx context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	nonce := hex.EncodeToString(buf)
	if err := repo.SetNonce(ctx, s.db, s.addr, nonce); err != nil {
		return "", err
	}
	return nonce, nil
}

// Nonce returns the outstanding nonce and its issue time, or repo.ErrNotFound
// when none exists.
func (s *Shard) Nonce(ctx context.Context) (string, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return repo.GetNonce(ctx, s.db, s.addr)
}

// ConsumeNonce clears the outstanding nonce after a successful verify.
func (s *Shard) ConsumeNonce(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return repo.ClearNonce(ctx, s.db, s.addr)
}

//
// Schedules
//

// AppendSchedule inserts a schedule owned by this shard's user.
func (s *Shard) AppendSchedule(ctx context.Context, sched *domain.Schedule) (*domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	sched.UserAddress = s.addr
	sched.Recipient = Key(sched.Recipient)
	return repo.CreateSchedule(ctx, s.db, sched)
}

// Schedule fetches one schedule by ID.
func (s *Shard) Schedule(ctx context.Context, id string) (*domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return repo.GetSchedule(ctx, s.db, s.addr, id)
}

// Schedules lists every schedule in the shard, newest first.
func (s *Shard) Schedules(ctx context.Context) ([]domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return repo.ListSchedules(ctx, s.db, s.addr)
}

// ActiveSchedules lists the shard's active schedules.
func (s *Shard) ActiveSchedules(ctx context.Context) ([]domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return repo.ListActiveSchedules(ctx, s.db, s.addr)
}

// UpdateSchedule applies a patch to one schedule.
func (s *Shard) UpdateSchedule(ctx context.Context, id string, patch repo.SchedulePatch) (*domain.Schedule, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return repo.UpdateSchedule(ctx, s.db, s.addr, id, patch)
}

// DeleteSchedule removes one schedule.
func (s *Shard) DeleteSchedule(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return repo.DeleteSchedule(ctx, s.db, s.addr, id)
}

//
// Transactions
//

// AppendTransaction appends a history record. Records are immutable once
// written.
func (s *Shard) AppendTransaction(ctx context.Context, tx *domain.Transaction) (*domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	tx.UserAddress = s.addr
	tx.Address = Key(tx.Address)
	return repo.AppendTransaction(ctx, s.db, tx)
}

// Transactions lists the shard's full history, newest first.
func (s *Shard) Transactions(ctx context.Context) ([]domain.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	return repo.ListTransactions(ctx, s.db, s.addr)
}

// TransactionsPage lists one page of history plus the total count.
func (s *Shard) TransactionsPage(ctx context.Context, offset, limit int) ([]domain.Transaction, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ctx, cancel := s.bound(ctx)
	defer cancel()
	total, err := repo.CountTransactions(ctx, s.db, s.addr)
	if err != nil {
		return nil, 0, err
	}
	items, err := repo.ListTransactionsPage(ctx, s.db, s.addr, offset, limit)
	return items, total, err
}
