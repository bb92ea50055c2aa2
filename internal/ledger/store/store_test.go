package store

import (
	"hash/fnv"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestAllocationLockKey(t *testing.T) {
	a := uuid.MustParse("6f1c2a52-8d0e-4c7b-9a3e-2b1f0c9d8e7a")
	b := uuid.MustParse("0b7e5d3c-1a2f-4e6d-8c9b-7a6f5e4d3c2b")

	h := fnv.New64a()
	h.Write([]byte("allocation\x00"))
	h.Write(a[:])

	assert.Equal(t, int64(h.Sum64()), allocationLockKey(a))
	assert.Equal(t, allocationLockKey(a), allocationLockKey(a))
	assert.NotEqual(t, allocationLockKey(a), allocationLockKey(b))
}
