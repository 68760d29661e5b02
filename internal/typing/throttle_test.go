package typing

import (
	"testing"
	"time"

	"go-typing/internal/clock"

	"github.com/stretchr/testify/assert"
)

func TestThrottle_Interval(t *testing.T) {
	fake := clock.NewFake(time.Unix(0, 0))
	th := NewThrottle(ThrottleConfig{Enabled: true, Interval: 5 * time.Second}, fake)
	c1 := EncodeScope("C1", "")
	c2 := EncodeScope("C2", "")

	assert.True(t, th.Allow(c1, 2))
	assert.False(t, th.Allow(c1, 2))
	assert.True(t, th.Allow(c2, 2), "scopes are throttled independently")

	fake.Advance(5 * time.Second)
	assert.False(t, th.Allow(c1, 2), "window is exclusive of its end")

	fake.Advance(time.Millisecond)
	assert.True(t, th.Allow(c1, 2))
}

func TestThrottle_MemberLimit(t *testing.T) {
	th := NewThrottle(ThrottleConfig{Enabled: true, Interval: time.Second, MaxMembers: 10}, clock.NewFake(time.Unix(0, 0)))
	scope := EncodeScope("C1", "")

	assert.False(t, th.Allow(scope, 10))
	assert.True(t, th.Allow(scope, 9))
}

func TestThrottle_Disabled(t *testing.T) {
	th := NewThrottle(ThrottleConfig{Enabled: false, Interval: time.Second}, clock.NewFake(time.Unix(0, 0)))
	assert.False(t, th.Allow(EncodeScope("C1", ""), 1))
}
