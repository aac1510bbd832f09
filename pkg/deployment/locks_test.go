package deployment

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyedMutex_SerializesSameKey(t *testing.T) {
	locks := newKeyedMutex()

	counter := 0

	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			locks.lock("record-1")
			counter++
			locks.unlock("record-1")
		}()
	}

	wg.Wait()

	assert.Equal(t, 100, counter)
}

func TestKeyedMutex_DistinctKeysDoNotBlock(t *testing.T) {
	locks := newKeyedMutex()

	locks.lock("a")

	done := make(chan struct{})

	go func() {
		locks.lock("b")
		locks.unlock("b")
		close(done)
	}()

	<-done
	locks.unlock("a")
}

func TestKeyedMutex_EntriesAreDropped(t *testing.T) {
	locks := newKeyedMutex()

	locks.lock("a")
	locks.unlock("a")

	locks.mu.Lock()
	defer locks.mu.Unlock()

	assert.Empty(t, locks.entries)
}
