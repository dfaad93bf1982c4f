package orchestrator

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStopRegistry_ScopedPerUserAndProfile(t *testing.T) {
	r := NewStopRegistry()
	r.Request("u1", "p1")

	assert.True(t, r.ForUser("u1").StopRequested("p1"))
	assert.False(t, r.ForUser("u1").StopRequested("p2"))
	assert.False(t, r.ForUser("u2").StopRequested("p1"))
}

func TestStopRegistry_Clear(t *testing.T) {
	r := NewStopRegistry()
	r.Request("u1", "p1")
	r.Request("u1", "p2")

	r.Clear("u1", "p1")

	assert.False(t, r.Requested("u1", "p1"))
	assert.True(t, r.Requested("u1", "p2"))

	r.Clear("u1", "p2", "p3")
	assert.Empty(t, r.flags)
}

func TestStopRegistry_SignalSeesLaterRequests(t *testing.T) {
	r := NewStopRegistry()
	sig := r.ForUser("u1")
	assert.False(t, sig.StopRequested("p1"))

	r.Request("u1", "p1")
	assert.True(t, sig.StopRequested("p1"))
}

func TestStopRegistry_Concurrent(t *testing.T) {
	r := NewStopRegistry()
	sig := r.ForUser("u1")

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Request("u1", "p1")
		}()
		go func() {
			defer wg.Done()
			_ = sig.StopRequested("p1")
		}()
	}
	wg.Wait()
	assert.True(t, sig.StopRequested("p1"))
}
