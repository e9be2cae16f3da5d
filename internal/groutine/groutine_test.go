package groutine

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGo_NameIsVisibleInContext(t *testing.T) {
	got := make(chan string, 1)

	Go(nil, "sample-pump", func(ctx context.Context) {
		got <- GetName(ctx)
	})

	assert.Equal(t, "sample-pump", <-got)
}

func TestGoTracked_WaitsForCompletion(t *testing.T) {
	var wg sync.WaitGroup
	var mu sync.Mutex
	done := 0

	for i := 0; i < 5; i++ {
		GoTracked(context.Background(), &wg, "writer", func(ctx context.Context) {
			mu.Lock()
			done++
			mu.Unlock()
		})
	}
	wg.Wait()

	assert.Equal(t, 5, done)
}

func TestGetName_WithoutName(t *testing.T) {
	assert.Equal(t, "", GetName(nil)) //nolint:staticcheck // nil context is handled explicitly
	assert.Equal(t, "", GetName(context.Background()))
}
