package offline_test

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/saadkhan2003/masjid-ledger/internal/clock"
	"github.com/saadkhan2003/masjid-ledger/internal/offline"
)

type recordingApplier struct {
	mu      sync.Mutex
	applied []uuid.UUID
	fail    map[uuid.UUID]error
}

func (a *recordingApplier) Apply(_ context.Context, op offline.Operation) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.fail[op.ID]; err != nil {
		return err
	}

	a.applied = append(a.applied, op.ID)

	return nil
}

func (a *recordingApplier) calls() []uuid.UUID {
	a.mu.Lock()
	defer a.mu.Unlock()

	return append([]uuid.UUID(nil), a.applied...)
}

func openOutbox(t *testing.T, path string) *offline.Outbox {
	t.Helper()

	o, err := offline.OpenOutbox(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = o.Close() })

	return o
}

func paymentOp(memberID uuid.UUID, amount int64) offline.Operation {
	data, _ := json.Marshal(map[string]any{
		"member_id":    memberID,
		"amount":       amount,
		"payment_date": "2024-04-20T00:00:00Z",
	})

	return offline.Operation{ID: uuid.New(), Kind: offline.KindCreate, Table: offline.TablePayments, Data: data}
}

func TestRelay_QueuesWhileOfflineAndReplaysOnReconnect(t *testing.T) {
	ctx := context.Background()
	applier := &recordingApplier{}
	relay := offline.NewRelay(openOutbox(t, filepath.Join(t.TempDir(), "outbox.db")), applier, clock.NewFake(time.Date(2024, 4, 20, 9, 0, 0, 0, time.UTC)), nil)

	first, stored, err := relay.Enqueue(ctx, paymentOp(uuid.New(), 25000))
	require.NoError(t, err)
	assert.True(t, stored)

	second, _, err := relay.Enqueue(ctx, paymentOp(uuid.New(), 10000))
	require.NoError(t, err)

	_, err = relay.Replay(ctx)
	assert.ErrorIs(t, err, offline.ErrOffline)

	status, err := relay.Status()
	require.NoError(t, err)
	assert.Equal(t, 2, status.Queued)
	assert.False(t, status.Online)

	relay.SetOnline(true)
	relay.Wait()

	assert.Equal(t, []uuid.UUID{first.ID, second.ID}, applier.calls())

	status, err = relay.Status()
	require.NoError(t, err)
	assert.Zero(t, status.Queued)
	assert.NotNil(t, status.LastReplay)
}

func TestRelay_FailedOperationStaysQueued(t *testing.T) {
	ctx := context.Background()
	applier := &recordingApplier{fail: map[uuid.UUID]error{}}
	relay := offline.NewRelay(openOutbox(t, filepath.Join(t.TempDir(), "outbox.db")), applier, clock.Real{}, nil)

	bad, _, err := relay.Enqueue(ctx, paymentOp(uuid.New(), 100))
	require.NoError(t, err)

	good, _, err := relay.Enqueue(ctx, paymentOp(uuid.New(), 200))
	require.NoError(t, err)

	applier.fail[bad.ID] = errors.New("member not found")

	relay.SetOnline(true)
	relay.Wait()

	assert.Equal(t, []uuid.UUID{good.ID}, applier.calls())

	res, err := relay.Replay(ctx)
	require.Error(t, err)
	assert.Equal(t, 1, res.Failed)
	assert.Zero(t, res.Applied)

	delete(applier.fail, bad.ID)

	res, err = relay.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Applied)
	assert.Equal(t, []uuid.UUID{good.ID, bad.ID}, applier.calls())
}

func TestRelay_NeverAppliesAnOperationTwice(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outbox.db")
	applier := &recordingApplier{}

	outbox, err := offline.OpenOutbox(path)
	require.NoError(t, err)

	relay := offline.NewRelay(outbox, applier, clock.Real{}, nil)

	op, _, err := relay.Enqueue(ctx, paymentOp(uuid.New(), 25000))
	require.NoError(t, err)

	// A crash between applying and completing leaves the claim behind.
	require.NoError(t, outbox.Claim(op, time.Now()))
	require.NoError(t, outbox.Close())

	relay = offline.NewRelay(openOutbox(t, path), applier, clock.Real{}, nil)
	relay.SetOnline(true)
	relay.Wait()

	assert.Empty(t, applier.calls())

	status, err := relay.Status()
	require.NoError(t, err)
	assert.Zero(t, status.Queued)
	require.NotNil(t, status.LastResult)
	assert.Equal(t, 1, status.LastResult.Skipped)
}

func TestRelay_ResubmittedOperationIsIgnored(t *testing.T) {
	ctx := context.Background()
	applier := &recordingApplier{}
	relay := offline.NewRelay(openOutbox(t, filepath.Join(t.TempDir(), "outbox.db")), applier, clock.Real{}, nil)

	op := paymentOp(uuid.New(), 25000)

	_, stored, err := relay.Enqueue(ctx, op)
	require.NoError(t, err)
	assert.True(t, stored)

	_, stored, err = relay.Enqueue(ctx, op)
	require.NoError(t, err)
	assert.False(t, stored)

	relay.SetOnline(true)
	relay.Wait()

	_, stored, err = relay.Enqueue(ctx, op)
	require.NoError(t, err)
	assert.False(t, stored)

	_, err = relay.Replay(ctx)
	require.NoError(t, err)
	assert.Equal(t, []uuid.UUID{op.ID}, applier.calls())
}

func TestRelay_QueueSurvivesRestart(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "outbox.db")

	outbox, err := offline.OpenOutbox(path)
	require.NoError(t, err)

	relay := offline.NewRelay(outbox, &recordingApplier{}, clock.Real{}, nil)
	op, _, err := relay.Enqueue(ctx, paymentOp(uuid.New(), 5000))
	require.NoError(t, err)
	require.NoError(t, outbox.Close())

	pending, err := openOutbox(t, path).Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, op.ID, pending[0].ID)
	assert.Equal(t, offline.TablePayments, pending[0].Table)
}

func TestRelay_RejectsMalformedOperation(t *testing.T) {
	relay := offline.NewRelay(openOutbox(t, filepath.Join(t.TempDir(), "outbox.db")), &recordingApplier{}, clock.Real{}, nil)

	_, _, err := relay.Enqueue(context.Background(), offline.Operation{Kind: "UPSERT", Table: offline.TableMembers, Data: []byte(`{}`)})
	assert.ErrorIs(t, err, offline.ErrInvalidOperation)

	_, _, err = relay.Enqueue(context.Background(), offline.Operation{Kind: offline.KindCreate, Table: "settings", Data: []byte(`{}`)})
	assert.ErrorIs(t, err, offline.ErrInvalidOperation)
}
