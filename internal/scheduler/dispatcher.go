// Dispatcher core: the periodic scan over the schedule index.
//
// Duplicate-fire protection is layered: the cron wrapper skips a tick while
// the previous one is still running, and an in-flight set keyed by schedule
// ID guards against the index scan yielding the same entry twice within a
// tick. The dispatcher is the only writer of nextRun and times_remaining
// after schedule creation.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/voicepay/go-voicepay-backend/internal/domain"
	"github.com/voicepay/go-voicepay-backend/internal/repo"
	"github.com/voicepay/go-voicepay-backend/internal/shard"
)

// indexPageSize bounds one page of the index scan.
const indexPageSize = 200

// Options configures a Dispatcher.
type Options struct {
	// TickInterval is the cadence of the periodic scan.
	TickInterval time.Duration
	// CallTimeout bounds one executor bridge call.
	CallTimeout time.Duration
	// RetryBackoff is added to now for a failed fire's next attempt.
	RetryBackoff time.Duration
	// Workers caps concurrent in-flight executor calls within a tick.
	Workers int
	// IndexOpTimeout bounds one index read or write.
	IndexOpTimeout time.Duration
	// Token is the ERC-20 contract address sent in dispatch payloads.
	Token string
	// Now is a clock seam for tests; defaults to time.Now.
	Now func() time.Time
}

// Dispatcher owns the schedule index and drives due schedules through the
// executor bridge.
type Dispatcher struct {
	shards *shard.Manager
	db     *gorm.DB
	exec   ExecutorClient
	opts   Options
	log    zerolog.Logger

	cron *cron.Cron

	mu       sync.Mutex
	inflight map[string]struct{}
}

// New constructs a Dispatcher. Start must be called to begin ticking;
// Tick may also be invoked directly (tests, manual drain).
func New(shards *shard.Manager, exec ExecutorClient, opts Options, log zerolog.Logger) *Dispatcher {
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Minute
	}
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 30 * time.Second
	}
	if opts.RetryBackoff <= 0 {
		opts.RetryBackoff = 10 * time.Minute
	}
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	if opts.IndexOpTimeout <= 0 {
		opts.IndexOpTimeout = 5 * time.Second
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Dispatcher{
		shards:   shards,
		db:       shards.DB(),
		exec:     exec,
		opts:     opts,
		log:      log,
		inflight: make(map[string]struct{}),
	}
}

// Start reconciles the index from the shards and begins the periodic tick.
// Ticks never overlap: a tick that outlives the interval causes the next one
// to be skipped, not stacked.
func (d *Dispatcher) Start(ctx context.Context) error {
	if err := d.Reconcile(ctx); err != nil {
		// The index is reconstructible; a failed repair pass must not keep
		// the dispatcher down.
		d.log.Error().Err(err).Msg("index reconcile failed")
	}

	d.cron = cron.New(cron.WithChain(
		cron.SkipIfStillRunning(cron.DiscardLogger),
	))
	spec := fmt.Sprintf("@every %s", d.opts.TickInterval)
	if _, err := d.cron.AddFunc(spec, func() {
		d.Tick(context.Background())
	}); err != nil {
		return err
	}
	d.cron.Start()
	d.log.Info().Dur("interval", d.opts.TickInterval).Msg("dispatcher started")
	return nil
}

// Stop halts the tick and waits for a running tick to finish.
func (d *Dispatcher) Stop() {
	if d.cron != nil {
		<-d.cron.Stop().Done()
	}
	d.log.Info().Msg("dispatcher stopped")
}

// Tick performs one scan: list the index page by page, fire every due entry,
// and advance or retire each schedule. Fires for distinct schedules run in
// parallel up to the worker cap.
func (d *Dispatcher) Tick(ctx context.Context) {
	now := d.opts.Now().UTC()

	var wg sync.WaitGroup
	sem := make(chan struct{}, d.opts.Workers)

	for offset := 0; ; offset += indexPageSize {
		entries, err := d.listPage(ctx, offset)
		if err != nil {
			d.log.Error().Err(err).Int("offset", offset).Msg("index scan failed")
			break
		}
		if len(entries) == 0 {
			break
		}
		for i := range entries {
			e := entries[i]
			if e.NextRun.After(now) {
				continue
			}
			if !d.acquire(e.ScheduleID) {
				continue
			}
			wg.Add(1)
			sem <- struct{}{}
			go func() {
				defer wg.Done()
				defer func() { <-sem }()
				defer d.release(e.ScheduleID)
				d.fire(ctx, &e, now)
			}()
		}
		if len(entries) < indexPageSize {
			break
		}
	}
	wg.Wait()
}

func (d *Dispatcher) listPage(ctx context.Context, offset int) ([]domain.ScheduleIndexEntry, error) {
	ctx, cancel := context.WithTimeout(ctx, d.opts.IndexOpTimeout)
	defer cancel()
	return repo.ListIndexPage(ctx, d.db, offset, indexPageSize)
}

// acquire marks a schedule as in flight; false means it already is.
func (d *Dispatcher) acquire(scheduleID string) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, busy := d.inflight[scheduleID]; busy {
		return false
	}
	d.inflight[scheduleID] = struct{}{}
	return true
}

func (d *Dispatcher) release(scheduleID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.inflight, scheduleID)
}

// fire executes one due schedule and applies the success or failure
// bookkeeping. Bookkeeping runs on a context detached from cancellation: a
// fire that reached the executor must be recorded even if the tick's context
// has been cancelled meanwhile.
func (d *Dispatcher) fire(ctx context.Context, e *domain.ScheduleIndexEntry, now time.Time) {
	callCtx, cancel := context.WithTimeout(ctx, d.opts.CallTimeout)
	defer cancel()

	res, err := d.exec.Process(callCtx, DispatchPayload{
		ScheduleID:  e.ScheduleID,
		UserAddress: e.UserAddress,
		Recipient:   e.Recipient,
		Amount:      e.Amount,
		Token:       d.opts.Token,
		Interval:    e.Interval,
		Note:        e.Note,
		Timestamp:   now.UnixMilli(),
	})

	record := context.WithoutCancel(ctx)
	switch {
	case err == nil && res.OK && res.TxHash != "":
		d.settleSuccess(record, e, now, res.TxHash)
	case err != nil:
		d.settleFailure(record, e, now, "", fmt.Sprintf("executor call failed: %v", err))
	default:
		diag := res.Error
		if diag == "" {
			diag = "executor rejected dispatch"
		}
		if res.Code != "" {
			diag = fmt.Sprintf("%s (%s)", diag, res.Code)
		}
		// A reverted fire still mined a transaction; keep its hash.
		d.settleFailure(record, e, now, res.TxHash, diag)
	}
}

// settleSuccess appends the completed transaction, decrements the remaining
// count, and advances nextRun by one interval. Catch-up is gradual: a
// schedule due several times over fires once per tick until it is ahead of
// the clock again.
func (d *Dispatcher) settleSuccess(ctx context.Context, e *domain.ScheduleIndexEntry, now time.Time, txHash string) {
	sh := d.shards.For(e.UserAddress)

	sid := e.ScheduleID
	if _, err := sh.AppendTransaction(ctx, &domain.Transaction{
		Type:       domain.TxTypeRecurring,
		Name:       e.Name,
		Address:    e.Recipient,
		Amount:     e.Amount,
		Currency:   e.Currency,
		Status:     domain.TxStatusCompleted,
		TxHash:     &txHash,
		ScheduleID: &sid,
		Note:       e.Note,
		Timestamp:  now,
	}); err != nil {
		d.log.Error().Err(err).Str("schedule_id", sid).Msg("append completed transaction failed")
	}

	next := NextAfter(e.NextRun, e.Interval, e.IntervalMs)
	var remaining *int
	if e.TimesRemaining != nil {
		r := *e.TimesRemaining - 1
		if r < 0 {
			r = 0
		}
		remaining = &r
	}

	if remaining != nil && *remaining == 0 {
		d.retire(ctx, e, next, remaining)
		return
	}

	// Shard first, index second. A patch that finds no row means the user
	// cancelled while this fire was in flight: the cancel already removed
	// the index entry, and writing it back would resurrect a dead schedule.
	_, err := sh.UpdateSchedule(ctx, sid, repo.SchedulePatch{
		NextRun:        &next,
		TimesRemaining: remaining,
	})
	switch {
	case errors.Is(err, repo.ErrNotFound):
		if derr := d.deleteIndex(ctx, sid); derr != nil {
			d.log.Error().Err(derr).Str("schedule_id", sid).Msg("index delete failed")
		}
		d.log.Info().Str("schedule_id", sid).Str("tx_hash", txHash).Msg("schedule cancelled mid-fire")
		return
	case err != nil:
		// Still advance the index below so the next tick does not refire a
		// payment that already went out.
		d.log.Error().Err(err).Str("schedule_id", sid).Msg("schedule patch failed")
	}

	e.NextRun = next
	e.TimesRemaining = remaining
	if err := d.putIndex(ctx, e); err != nil {
		d.log.Error().Err(err).Str("schedule_id", sid).Msg("index overwrite failed")
	}

	d.log.Info().
		Str("schedule_id", sid).
		Str("user", e.UserAddress).
		Str("tx_hash", txHash).
		Time("next_run", next).
		Msg("schedule fired")
}

// settleFailure appends the failed transaction and pushes nextRun out by the
// retry backoff without touching times_remaining. txHash is non-empty when
// the attempt mined but reverted.
func (d *Dispatcher) settleFailure(ctx context.Context, e *domain.ScheduleIndexEntry, now time.Time, txHash, diag string) {
	sh := d.shards.For(e.UserAddress)

	var hash *string
	if txHash != "" {
		hash = &txHash
	}
	sid := e.ScheduleID
	if _, err := sh.AppendTransaction(ctx, &domain.Transaction{
		Type:       domain.TxTypeRecurring,
		Name:       e.Name,
		Address:    e.Recipient,
		Amount:     e.Amount,
		Currency:   e.Currency,
		Status:     domain.TxStatusFailed,
		TxHash:     hash,
		ScheduleID: &sid,
		Note:       diag,
		Timestamp:  now,
	}); err != nil {
		d.log.Error().Err(err).Str("schedule_id", sid).Msg("append failed transaction failed")
	}

	next := now.Add(d.opts.RetryBackoff)
	_, err := sh.UpdateSchedule(ctx, sid, repo.SchedulePatch{NextRun: &next})
	switch {
	case errors.Is(err, repo.ErrNotFound):
		// Cancelled while the attempt was in flight; drop the index entry
		// instead of writing it back.
		if derr := d.deleteIndex(ctx, sid); derr != nil {
			d.log.Error().Err(derr).Str("schedule_id", sid).Msg("index delete failed")
		}
		d.log.Info().Str("schedule_id", sid).Msg("schedule cancelled mid-fire")
		return
	case err != nil:
		d.log.Error().Err(err).Str("schedule_id", sid).Msg("schedule patch failed")
	}

	e.NextRun = next
	if err := d.putIndex(ctx, e); err != nil {
		d.log.Error().Err(err).Str("schedule_id", sid).Msg("index overwrite failed")
	}

	d.log.Warn().
		Str("schedule_id", sid).
		Str("user", e.UserAddress).
		Str("diag", diag).
		Time("retry_at", next).
		Msg("schedule fire failed")
}

// retire removes the index entry and deactivates the shard schedule once the
// remaining count hits zero.
func (d *Dispatcher) retire(ctx context.Context, e *domain.ScheduleIndexEntry, next time.Time, remaining *int) {
	if err := d.deleteIndex(ctx, e.ScheduleID); err != nil {
		d.log.Error().Err(err).Str("schedule_id", e.ScheduleID).Msg("index delete failed")
	}
	inactive := false
	if _, err := d.shards.For(e.UserAddress).UpdateSchedule(ctx, e.ScheduleID, repo.SchedulePatch{
		NextRun:        &next,
		TimesRemaining: remaining,
		Active:         &inactive,
	}); err != nil && !errors.Is(err, repo.ErrNotFound) {
		// NotFound means a concurrent cancel already removed the schedule.
		d.log.Error().Err(err).Str("schedule_id", e.ScheduleID).Msg("schedule retire failed")
	}
	d.log.Info().Str("schedule_id", e.ScheduleID).Msg("schedule completed all occurrences")
}

func (d *Dispatcher) putIndex(ctx context.Context, e *domain.ScheduleIndexEntry) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.IndexOpTimeout)
	defer cancel()
	return repo.PutIndexEntry(ctx, d.db, e)
}

func (d *Dispatcher) deleteIndex(ctx context.Context, scheduleID string) error {
	ctx, cancel := context.WithTimeout(ctx, d.opts.IndexOpTimeout)
	defer cancel()
	return repo.DeleteIndexEntry(ctx, d.db, scheduleID)
}

// Reconcile rebuilds missing index entries from the authoritative shards.
// The index may drift (e.g. a crash between shard append and index put);
// shards never depend on the index, so repair is a one-way fill.
func (d *Dispatcher) Reconcile(ctx context.Context) error {
	addrs, err := repo.ListShardAddresses(ctx, d.db)
	if err != nil {
		return err
	}
	var repaired int
	for _, addr := range addrs {
		schedules, err := d.shards.For(addr).ActiveSchedules(ctx)
		if err != nil {
			return err
		}
		for i := range schedules {
			s := &schedules[i]
			if _, err := repo.GetIndexEntry(ctx, d.db, s.ID); err == nil {
				continue
			}
			if err := d.putIndex(ctx, IndexEntryFor(s)); err != nil {
				return err
			}
			repaired++
		}
	}
	if repaired > 0 {
		d.log.Info().Int("entries", repaired).Msg("index reconciled")
	}
	return nil
}

// IndexEntryFor projects a shard schedule into its index entry.
func IndexEntryFor(s *domain.Schedule) *domain.ScheduleIndexEntry {
	return &domain.ScheduleIndexEntry{
		ScheduleID:     s.ID,
		UserAddress:    s.UserAddress,
		NextRun:        s.NextRun,
		Recipient:      s.Recipient,
		Amount:         s.Amount,
		Currency:       s.Currency,
		Interval:       s.Interval,
		IntervalMs:     s.IntervalMs,
		TimesRemaining: s.TimesRemaining,
		Name:           s.Name,
		Note:           s.Note,
		CreatedAt:      s.CreatedAt,
	}
}
