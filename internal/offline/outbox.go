package offline

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketQueue   = []byte("queue")
	bucketApplied = []byte("applied")
)

var errClaimed = errors.New("operation already claimed")

// Outbox is a durable FIFO of operations plus the set of operation IDs that were
// handed to the applier. Both live in one bbolt file.
type Outbox struct {
	db *bolt.DB
}

type appliedMark struct {
	State string    `json:"state"`
	At    time.Time `json:"at"`
}

const (
	markClaimed = "claimed"
	markApplied = "applied"
)

func OpenOutbox(path string) (*Outbox, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("opening outbox: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketQueue, bucketApplied} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("creating bucket %s: %w", b, err)
			}
		}

		return nil
	})
	if err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Outbox{db: db}, nil
}

func (o *Outbox) Close() error {
	return o.db.Close()
}

// Push appends op to the queue. It reports false without storing anything when an
// operation with the same ID is already queued or was already handed to the applier.
func (o *Outbox) Push(op *Operation) (bool, error) {
	stored := false

	err := o.db.Update(func(tx *bolt.Tx) error {
		if tx.Bucket(bucketApplied).Get(op.ID[:]) != nil {
			return nil
		}

		q := tx.Bucket(bucketQueue)

		dup := false
		err := q.ForEach(func(_, v []byte) error {
			var queued Operation
			if err := json.Unmarshal(v, &queued); err != nil {
				return err
			}

			if queued.ID == op.ID {
				dup = true
			}

			return nil
		})
		if err != nil || dup {
			return err
		}

		seq, err := q.NextSequence()
		if err != nil {
			return err
		}

		op.Seq = seq

		data, err := json.Marshal(op)
		if err != nil {
			return fmt.Errorf("marshalling operation: %w", err)
		}

		stored = true

		return q.Put(itob(seq), data)
	})
	if err != nil {
		return false, fmt.Errorf("queueing operation: %w", err)
	}

	return stored, nil
}

// Pending returns queued operations oldest first.
func (o *Outbox) Pending() ([]Operation, error) {
	var ops []Operation

	err := o.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).ForEach(func(_, v []byte) error {
			var op Operation
			if err := json.Unmarshal(v, &op); err != nil {
				return fmt.Errorf("decoding operation: %w", err)
			}

			ops = append(ops, op)

			return nil
		})
	})

	return ops, err
}

func (o *Outbox) Len() (int, error) {
	var n int

	err := o.db.View(func(tx *bolt.Tx) error {
		n = tx.Bucket(bucketQueue).Stats().KeyN
		return nil
	})

	return n, err
}

// Claim records that op is about to be applied. It returns errClaimed when the ID
// was claimed before; such an operation must not be applied again.
func (o *Outbox) Claim(op Operation, at time.Time) error {
	return o.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketApplied)
		if b.Get(op.ID[:]) != nil {
			return errClaimed
		}

		return putMark(b, op.ID, markClaimed, at)
	})
}

// Release drops a claim after the applier reported failure, so the operation is retried.
func (o *Outbox) Release(op Operation) error {
	return o.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketApplied).Delete(op.ID[:])
	})
}

// Complete removes op from the queue and marks its ID applied, in one transaction.
func (o *Outbox) Complete(op Operation, at time.Time) error {
	return o.db.Update(func(tx *bolt.Tx) error {
		if err := tx.Bucket(bucketQueue).Delete(itob(op.Seq)); err != nil {
			return err
		}

		return putMark(tx.Bucket(bucketApplied), op.ID, markApplied, at)
	})
}

// Drop removes op from the queue without touching the applied set.
func (o *Outbox) Drop(op Operation) error {
	return o.db.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketQueue).Delete(itob(op.Seq))
	})
}

func putMark(b *bolt.Bucket, id uuid.UUID, state string, at time.Time) error {
	data, err := json.Marshal(appliedMark{State: state, At: at})
	if err != nil {
		return err
	}

	return b.Put(id[:], data)
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)

	return b
}
