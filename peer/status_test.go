package peer

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_String(t *testing.T) {
	assert.Equal(t, "unknown", StatusUnknown.String())
	assert.Equal(t, "available", StatusAvailable.String())
	assert.Equal(t, "unavailable", StatusUnavailable.String())
	assert.Equal(t, "", Status(-1).String())
}

func TestStatusTracker_Set(t *testing.T) {
	tr := NewStatusTracker()
	require.Equal(t, StatusUnknown, tr.Get())

	prev := tr.Set(StatusAvailable)
	assert.Equal(t, StatusUnknown, prev)
	assert.Equal(t, StatusAvailable, tr.Get())

	prev = tr.Set(StatusUnavailable)
	assert.Equal(t, StatusAvailable, prev)
	assert.Equal(t, StatusUnavailable, tr.Get())
}

func TestStatusTracker_NotifyOnceTransition(t *testing.T) {
	tr := NewStatusTracker()

	var transitions [][2]Status

	tr.Subscribe(func(prev, next Status) {
		transitions = append(transitions, [2]Status{prev, next})
	})

	tr.Set(StatusAvailable)
	tr.Set(StatusAvailable) // no-op, must not notify
	tr.Set(StatusUnavailable)

	require.Len(t, transitions, 2)
	assert.Equal(t, [2]Status{StatusUnknown, StatusAvailable}, transitions[0])
	assert.Equal(t, [2]Status{StatusAvailable, StatusUnavailable}, transitions[1])
}

func TestStatusTracker_Unsubscribe(t *testing.T) {
	tr := NewStatusTracker()

	var notified int

	id := tr.Subscribe(func(prev, next Status) {
		notified++
	})

	tr.Set(StatusAvailable)
	tr.Unsubscribe(id)
	tr.Set(StatusUnavailable)

	assert.Equal(t, 1, notified)
}

func TestStatusTracker_ConcurrentSet(t *testing.T) {
	tr := NewStatusTracker()

	var (
		mut         sync.Mutex
		transitions int
	)

	tr.Subscribe(func(prev, next Status) {
		mut.Lock()
		transitions++
		mut.Unlock()
	})

	var wg sync.WaitGroup

	// Many goroutines racing to set the same value: the value changes at
	// most once, so the subscriber fires at most once.
	for i := 0; i < 32; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()
			tr.Set(StatusAvailable)
		}()
	}

	wg.Wait()

	assert.Equal(t, StatusAvailable, tr.Get())
	assert.Equal(t, 1, transitions)
}
