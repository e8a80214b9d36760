package board

import (
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestScheduler(t *testing.T) {
	clock := new(fakeClock)
	s := NewScheduler(time.Second, clock.AfterFunc)

	var ran []string
	s.Schedule(func() { ran = append(ran, "first") })
	s.Schedule(func() { ran = append(ran, "second") })
	assert.True(t, s.Pending())
	assert.Equal(t, 1, clock.active())

	clock.fire()
	assert.Equal(t, []string{"second"}, ran)
	assert.False(t, s.Pending())

	s.Schedule(func() { ran = append(ran, "third") })
	s.Cancel()
	clock.fire()
	assert.Equal(t, []string{"second"}, ran)
	assert.False(t, s.Pending())
}

func TestScheduler_realTimer(t *testing.T) {
	s := NewScheduler(10*time.Millisecond, nil)

	var n int32
	for i := 0; i < 5; i++ {
		s.Schedule(func() { atomic.AddInt32(&n, 1) })
	}
	assert.Eventually(t, func() bool { return atomic.LoadInt32(&n) == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&n))
}
