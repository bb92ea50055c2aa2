// Package offline relays mutations captured while a client had no connection.
// Operations are queued durably and replayed in order once the relay is online.
// Each operation ID is applied at most once, including across restarts.
package offline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/saadkhan2003/masjid-ledger/internal/clock"
)

var (
	ErrOffline          = errors.New("relay is offline")
	ErrReplayInProgress = errors.New("replay already in progress")
	ErrInvalidOperation = errors.New("invalid operation")
)

type Kind string

const (
	KindCreate Kind = "CREATE"
	KindUpdate Kind = "UPDATE"
	KindDelete Kind = "DELETE"
)

type Table string

const (
	TableMembers  Table = "members"
	TablePayments Table = "payments"
	TableDebts    Table = "debts"
)

// Operation is one queued mutation. Data holds the table-specific JSON body.
type Operation struct {
	ID       uuid.UUID       `json:"id"`
	Seq      uint64          `json:"seq"`
	Kind     Kind            `json:"type"`
	Table    Table           `json:"table"`
	Data     json.RawMessage `json:"data"`
	QueuedAt time.Time       `json:"queued_at"`
}

func (op Operation) validate() error {
	switch op.Kind {
	case KindCreate, KindUpdate, KindDelete:
	default:
		return fmt.Errorf("%w: unknown type %q", ErrInvalidOperation, op.Kind)
	}

	switch op.Table {
	case TableMembers, TablePayments, TableDebts:
	default:
		return fmt.Errorf("%w: unknown table %q", ErrInvalidOperation, op.Table)
	}

	if len(op.Data) == 0 {
		return fmt.Errorf("%w: missing data", ErrInvalidOperation)
	}

	return nil
}

// Applier performs a queued operation against the ledger.
type Applier interface {
	Apply(ctx context.Context, op Operation) error
}

type ReplayResult struct {
	Applied int
	Failed  int
	// Skipped counts operations dropped because their ID had already been applied.
	Skipped int
	Errors  []error
}

type Status struct {
	Online     bool
	Queued     int
	Replaying  bool
	LastReplay *time.Time
	LastResult *ReplayResult
}

// Relay owns the outbox and the online flag. Construct one per process.
type Relay struct {
	outbox  *Outbox
	applier Applier
	clock   clock.Clock
	logger  *slog.Logger

	replaying atomic.Bool
	wg        sync.WaitGroup

	mu         sync.Mutex
	online     bool
	lastReplay *time.Time
	lastResult *ReplayResult
}

func NewRelay(outbox *Outbox, applier Applier, clk clock.Clock, logger *slog.Logger) *Relay {
	if logger == nil {
		logger = slog.Default()
	}

	return &Relay{
		outbox:  outbox,
		applier: applier,
		clock:   clk,
		logger:  logger,
	}
}

// Enqueue stores op durably. An empty ID is filled in. Re-submitting an operation
// with a known ID is a no-op and returns false.
func (r *Relay) Enqueue(_ context.Context, op Operation) (Operation, bool, error) {
	if err := op.validate(); err != nil {
		return op, false, err
	}

	if op.ID == uuid.Nil {
		op.ID = uuid.New()
	}

	op.QueuedAt = r.clock.Now()

	stored, err := r.outbox.Push(&op)
	if err != nil {
		return op, false, err
	}

	if stored {
		r.logger.Debug("operation queued", "op_id", op.ID, "type", op.Kind, "table", op.Table)
	}

	return op, stored, nil
}

func (r *Relay) Online() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	return r.online
}

// SetOnline updates connectivity. Going from offline to online starts a replay in the
// background; Wait blocks until it finishes.
func (r *Relay) SetOnline(online bool) {
	r.mu.Lock()
	wasOnline := r.online
	r.online = online
	r.mu.Unlock()

	if online && !wasOnline {
		r.logger.Info("relay online, replaying queued operations")

		r.wg.Go(func() {
			if _, err := r.Replay(context.Background()); err != nil && !errors.Is(err, ErrReplayInProgress) {
				r.logger.Error("background replay failed", "error", err)
			}
		})
	}
}

// Wait blocks until background replays started by SetOnline have finished.
func (r *Relay) Wait() {
	r.wg.Wait()
}

// Replay applies queued operations in order. A failed operation stays queued and the
// replay moves on to the next one. Only one replay runs at a time.
func (r *Relay) Replay(ctx context.Context) (*ReplayResult, error) {
	if !r.Online() {
		return nil, ErrOffline
	}

	if !r.replaying.CompareAndSwap(false, true) {
		return nil, ErrReplayInProgress
	}
	defer r.replaying.Store(false)

	ops, err := r.outbox.Pending()
	if err != nil {
		return nil, fmt.Errorf("reading outbox: %w", err)
	}

	res := &ReplayResult{}

	for _, op := range ops {
		r.replayOne(ctx, op, res)
	}

	now := r.clock.Now()

	r.mu.Lock()
	r.lastReplay = &now
	r.lastResult = res
	r.mu.Unlock()

	r.logger.Info("replay finished", "applied", res.Applied, "failed", res.Failed, "skipped", res.Skipped)

	return res, errors.Join(res.Errors...)
}

func (r *Relay) replayOne(ctx context.Context, op Operation, res *ReplayResult) {
	log := r.logger.With("op_id", op.ID, "type", op.Kind, "table", op.Table)

	if err := r.outbox.Claim(op, r.clock.Now()); err != nil {
		if errors.Is(err, errClaimed) {
			log.Warn("operation already applied, dropping")

			if err := r.outbox.Drop(op); err != nil {
				res.Errors = append(res.Errors, fmt.Errorf("dropping %s: %w", op.ID, err))
			}

			res.Skipped++

			return
		}

		res.Failed++
		res.Errors = append(res.Errors, fmt.Errorf("claiming %s: %w", op.ID, err))

		return
	}

	if err := r.applier.Apply(ctx, op); err != nil {
		log.Error("operation failed, keeping it queued", "error", err)

		res.Failed++
		res.Errors = append(res.Errors, fmt.Errorf("applying %s: %w", op.ID, err))

		if err := r.outbox.Release(op); err != nil {
			res.Errors = append(res.Errors, fmt.Errorf("releasing %s: %w", op.ID, err))
		}

		return
	}

	if err := r.outbox.Complete(op, r.clock.Now()); err != nil {
		res.Errors = append(res.Errors, fmt.Errorf("completing %s: %w", op.ID, err))
	}

	res.Applied++
}

func (r *Relay) Status() (Status, error) {
	n, err := r.outbox.Len()
	if err != nil {
		return Status{}, fmt.Errorf("counting outbox: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	return Status{
		Online:     r.online,
		Queued:     n,
		Replaying:  r.replaying.Load(),
		LastReplay: r.lastReplay,
		LastResult: r.lastResult,
	}, nil
}
