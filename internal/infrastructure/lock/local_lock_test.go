package lock

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalLockerMutualExclusion(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	counter := 0
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release, err := locker.Acquire(ctx, 1)
			assert.NoError(t, err)
			counter++
			release()
		}()
	}
	wg.Wait()

	assert.Equal(t, 50, counter)
}

func TestLocalLockerIndependentMemberships(t *testing.T) {
	locker := NewLocalLocker()
	ctx := context.Background()

	release1, err := locker.Acquire(ctx, 1)
	require.NoError(t, err)
	defer release1()

	// holding membership 1 must not block membership 2
	done := make(chan struct{})
	go func() {
		release2, err := locker.Acquire(ctx, 2)
		assert.NoError(t, err)
		release2()
		close(done)
	}()
	<-done
}
