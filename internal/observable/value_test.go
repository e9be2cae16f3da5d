package observable

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValue_GetReturnsInitialUntilPosted(t *testing.T) {
	v := New("mtu", 23)
	defer v.Close()

	got, posted := v.Get()
	assert.Equal(t, 23, got)
	assert.False(t, posted)

	v.Post(185)
	got, posted = v.Get()
	assert.Equal(t, 185, got)
	assert.True(t, posted)
}

func TestValue_ObserverSeesLastValue(t *testing.T) {
	v := New("rate", 0)
	defer v.Close()

	seen := make(chan int, 100)
	v.Observe(func(n int) { seen <- n })

	for i := 1; i <= 10; i++ {
		v.Post(i)
	}

	last := 0
	deadline := time.After(2 * time.Second)
	for last != 10 {
		select {
		case n := <-seen:
			require.GreaterOrEqual(t, n, last, "observer MUST NOT see values out of order")
			last = n
		case <-deadline:
			t.Fatalf("observer did not receive final value, last=%d", last)
		}
	}
}

func TestValue_CancelObserver(t *testing.T) {
	v := New("flag", false)
	defer v.Close()

	calls := make(chan bool, 10)
	cancel := v.Observe(func(b bool) { calls <- b })
	cancel()

	v.Post(true)
	select {
	case <-calls:
		t.Fatal("cancelled observer MUST NOT be notified")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestValue_PostAfterClose(t *testing.T) {
	v := New("closed", "a")
	v.Close()
	v.Close()

	v.Post("b")
	got, _ := v.Get()
	assert.Equal(t, "b", got)
}
