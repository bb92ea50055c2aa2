package clock_test

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/saadkhan2003/masjid-ledger/internal/clock"
)

func TestFake(t *testing.T) {
	start := time.Date(2024, 5, 1, 12, 0, 0, 0, time.FixedZone("PKT", 5*60*60))

	tests := []struct {
		name string
		move func(c *clock.Fake)
		want time.Time
	}{
		{name: "New", move: func(*clock.Fake) {}, want: time.Date(2024, 5, 1, 7, 0, 0, 0, time.UTC)},
		{name: "Advance", move: func(c *clock.Fake) { c.Advance(24 * time.Hour) }, want: time.Date(2024, 5, 2, 7, 0, 0, 0, time.UTC)},
		{name: "Set", move: func(c *clock.Fake) { c.Set(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) }, want: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := clock.NewFake(start)
			tt.move(c)

			assert.True(t, tt.want.Equal(c.Now()))
			assert.Equal(t, time.UTC, c.Now().Location())
		})
	}
}

func TestFake_ConcurrentUse(t *testing.T) {
	start := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)

	var wg sync.WaitGroup
	for range 8 {
		wg.Go(func() {
			for range 100 {
				c.Advance(time.Minute)
				_ = c.Now()
			}
		})
	}
	wg.Wait()

	assert.True(t, start.Add(800*time.Minute).Equal(c.Now()))
}
