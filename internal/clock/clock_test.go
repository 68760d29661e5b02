package clock

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFake_AdvanceFiresInDeadlineOrder(t *testing.T) {
	start := time.Unix(1_700_000_000, 0)
	c := NewFake(start)

	var fired []string
	c.AfterFunc(3*time.Second, func() { fired = append(fired, "c") })
	c.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	c.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })

	c.Advance(2 * time.Second)
	assert.Equal(t, []string{"a", "b"}, fired)
	assert.Equal(t, start.Add(2*time.Second), c.Now())
	assert.Equal(t, 1, c.Pending())

	c.Advance(time.Second)
	assert.Equal(t, []string{"a", "b", "c"}, fired)
	assert.Equal(t, 0, c.Pending())
}

func TestFake_StopPreventsFire(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	fired := false
	timer := c.AfterFunc(time.Second, func() { fired = true })

	require.True(t, timer.Stop())
	assert.False(t, timer.Stop(), "second stop reports already stopped")

	c.Advance(time.Minute)
	assert.False(t, fired)
}

func TestFake_CallbackSeesDeadlineAsNow(t *testing.T) {
	start := time.Unix(0, 0)
	c := NewFake(start)

	var seen time.Time
	c.AfterFunc(4*time.Second, func() { seen = c.Now() })

	c.Advance(10 * time.Second)
	assert.Equal(t, start.Add(4*time.Second), seen)
	assert.Equal(t, start.Add(10*time.Second), c.Now())
}

func TestFake_TimerScheduledByCallbackInsideWindow(t *testing.T) {
	c := NewFake(time.Unix(0, 0))

	count := 0
	var tick func()
	tick = func() {
		count++
		c.AfterFunc(time.Second, tick)
	}
	c.AfterFunc(time.Second, tick)

	c.Advance(3 * time.Second)
	assert.Equal(t, 3, count)
	assert.Equal(t, 1, c.Pending())
}

func TestReal_AfterFunc(t *testing.T) {
	done := make(chan struct{})
	Real().AfterFunc(5*time.Millisecond, func() { close(done) })

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("real timer did not fire")
	}
}
