// Relay - Local Contact and Server Directory Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/relay

package hub

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/tomtom215/relay/internal/models"
)

func snapAt(ts int64) *models.DataSnapshot {
	s := models.EmptySnapshot()
	s.LastUpdated = ts
	return s
}

// recorder collects delivered LastUpdated values.
type recorder struct {
	mu  sync.Mutex
	got []int64
}

func (r *recorder) fn(s *models.DataSnapshot) {
	r.mu.Lock()
	r.got = append(r.got, s.LastUpdated)
	r.mu.Unlock()
}

func (r *recorder) values() []int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]int64(nil), r.got...)
}

func equal(a, b []int64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSubscribe_DeliversCurrentSnapshot(t *testing.T) {
	h := New()
	var before recorder
	h.Subscribe(before.fn)
	if len(before.values()) != 0 {
		t.Fatal("nothing should be delivered before the first publish")
	}

	h.Publish(snapAt(10))
	var late recorder
	h.Subscribe(late.fn)
	if !equal(late.values(), []int64{10}) {
		t.Errorf("late subscriber got %v, want [10]", late.values())
	}
	if !equal(before.values(), []int64{10}) {
		t.Errorf("early subscriber got %v, want [10]", before.values())
	}
}

func TestPublish_IgnoresOlderSnapshots(t *testing.T) {
	h := New()
	var r recorder
	h.Subscribe(r.fn)

	h.Publish(snapAt(5))
	h.Publish(snapAt(3))
	h.Publish(snapAt(5))
	h.Publish(snapAt(8))

	if !equal(r.values(), []int64{5, 8}) {
		t.Errorf("got %v, want [5 8]", r.values())
	}
	if h.Latest().LastUpdated != 8 {
		t.Errorf("latest = %d, want 8", h.Latest().LastUpdated)
	}
}

func TestSubscribeMutateUnsubscribe(t *testing.T) {
	h := New()
	h.Publish(snapAt(1))

	var r recorder
	tok := h.Subscribe(r.fn)
	h.Publish(snapAt(2))
	h.Unsubscribe(tok)
	h.Unsubscribe(tok)
	h.Publish(snapAt(3))

	if !equal(r.values(), []int64{1, 2}) {
		t.Errorf("got %v, want [1 2]", r.values())
	}
	if h.Subscribers() != 0 {
		t.Errorf("subscribers = %d, want 0", h.Subscribers())
	}
}

func TestUnsubscribeDuringDelivery(t *testing.T) {
	h := New()
	var calls int
	var tok Token
	tok = h.Subscribe(func(*models.DataSnapshot) {
		calls++
		h.Unsubscribe(tok)
	})
	h.Publish(snapAt(1))
	h.Publish(snapAt(2))
	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
}

func TestReentrantPublishIsSerialized(t *testing.T) {
	h := New()
	var depth, maxDepth int
	var r recorder
	h.Subscribe(func(s *models.DataSnapshot) {
		depth++
		if depth > maxDepth {
			maxDepth = depth
		}
		r.fn(s)
		if s.LastUpdated == 1 {
			h.Publish(snapAt(2))
			h.Publish(snapAt(3))
		}
		depth--
	})

	h.Publish(snapAt(1))

	if maxDepth != 1 {
		t.Errorf("deliveries nested %d deep", maxDepth)
	}
	// 2 was superseded by 3 before the first delivery returned
	if !equal(r.values(), []int64{1, 3}) {
		t.Errorf("got %v, want [1 3]", r.values())
	}
}

func TestStaleTokenDoesNotMatchReusedSlot(t *testing.T) {
	h := New()
	first := h.Subscribe(func(*models.DataSnapshot) {})
	h.Unsubscribe(first)

	var r recorder
	second := h.Subscribe(r.fn)
	if second.index != first.index {
		t.Fatalf("expected slot reuse, got %d and %d", first.index, second.index)
	}

	h.Unsubscribe(first)
	h.Publish(snapAt(4))
	if !equal(r.values(), []int64{4}) {
		t.Errorf("reused slot lost its subscriber: %v", r.values())
	}
	if !(Token{}).IsZero() || second.IsZero() {
		t.Error("IsZero mismatch")
	}
}

func TestPanickingSubscriberDoesNotStopOthers(t *testing.T) {
	h := New()
	h.Subscribe(func(*models.DataSnapshot) { panic("boom") })
	var r recorder
	h.Subscribe(r.fn)

	h.Publish(snapAt(1))
	h.Publish(snapAt(2))
	if !equal(r.values(), []int64{1, 2}) {
		t.Errorf("got %v", r.values())
	}
}

func TestConcurrentPublishDeliversIncreasingSequence(t *testing.T) {
	h := New()
	var inFlight atomic.Int32
	var overlapped atomic.Bool
	var r recorder
	h.Subscribe(func(s *models.DataSnapshot) {
		if inFlight.Add(1) > 1 {
			overlapped.Store(true)
		}
		r.fn(s)
		inFlight.Add(-1)
	})

	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 1; i <= 50; i++ {
				h.Publish(snapAt(int64(i*8 + g)))
			}
		}(g)
	}
	wg.Wait()

	if overlapped.Load() {
		t.Error("deliveries to one subscriber overlapped")
	}
	got := r.values()
	for i := 1; i < len(got); i++ {
		if got[i] <= got[i-1] {
			t.Fatalf("delivery %d went backwards: %v", i, got[i-1:i+1])
		}
	}
	if got[len(got)-1] != h.Latest().LastUpdated {
		t.Errorf("final delivery %d, latest %d", got[len(got)-1], h.Latest().LastUpdated)
	}
}

func TestLifecycleListeners(t *testing.T) {
	h := New()
	var starts, completes, failures, auths int
	var second Token
	h.OnReloadStart(func(models.ReloadStatus) {
		starts++
		h.Unsubscribe(second)
	})
	second = h.OnReloadStart(func(models.ReloadStatus) { starts += 100 })
	completeTok := h.OnReloadComplete(func(models.ReloadStatus) { completes++ })
	h.OnDataError(func(f models.ReloadFailure) {
		if f.Root == "/data" {
			failures++
		}
	})
	h.OnAuthRequested(func(models.AuthRequest) { auths++ })

	h.ReloadStarted(models.ReloadStatus{Reason: "manual"})
	h.ReloadCompleted(models.ReloadStatus{})
	h.Unsubscribe(completeTok)
	h.ReloadCompleted(models.ReloadStatus{})
	h.DataFailed(models.ReloadFailure{Root: "/data"})
	h.AuthRequested(models.AuthRequest{Token: "t"})

	if starts != 1 {
		t.Errorf("starts = %d, want 1 (listener removed mid-emit must not run)", starts)
	}
	if completes != 1 || failures != 1 || auths != 1 {
		t.Errorf("completes=%d failures=%d auths=%d", completes, failures, auths)
	}
}

func TestListeners_RemoveForeignToken(t *testing.T) {
	a := NewListeners[int]("a")
	b := NewListeners[int]("b")
	tok := a.Add(func(int) {})
	b.Add(func(int) {})

	if b.Remove(tok) {
		t.Error("token from another list must not match")
	}
	if !a.Remove(tok) || a.Remove(tok) {
		t.Error("first remove should succeed, second should not")
	}
	if a.Len() != 0 || b.Len() != 1 {
		t.Errorf("lens a=%d b=%d", a.Len(), b.Len())
	}
}
