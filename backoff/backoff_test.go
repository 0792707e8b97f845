package backoff

import (
	"testing"
	"time"
)

func TestNewDefaults(t *testing.T) {
	b := New()
	got := b.Duration()
	if got < 100 || got > 10_000 {
		t.Errorf("default duration out of range: got %v", got)
	}
}

func TestNewCustom(t *testing.T) {
	b := New(WithMin(200), WithMax(5000))
	got := b.Duration()
	if got < 200 || got > 5000 {
		t.Errorf("custom duration out of range: got %v", got)
	}
}

func TestDurationMonotoneToCap(t *testing.T) {
	b := New(WithMin(10), WithMax(1000))
	var prev int64
	for range 8 {
		curr := b.Duration()
		if curr < prev {
			t.Errorf("duration decreased: prev=%v curr=%v", prev, curr)
		}
		if curr > 1000 {
			t.Errorf("duration exceeded max: %v", curr)
		}
		prev = curr
		time.Sleep(time.Millisecond)
	}
}

func TestReset(t *testing.T) {
	b := New()
	initial := b.Duration()
	b.Duration()
	b.Duration()
	b.Reset()
	if got := b.Attempts(); got != 0 {
		t.Errorf("Reset did not zero attempts: got %v", got)
	}
	if after := b.Duration(); after != initial {
		t.Errorf("Reset did not restore first duration: initial=%v after=%v", initial, after)
	}
}

func TestAttemptsObservable(t *testing.T) {
	b := New()
	for i := range 3 {
		if got := b.Attempts(); got != uint64(i) {
			t.Errorf("Attempts() = %v, want %v", got, i)
		}
		b.Duration()
	}
}

func TestSetJitterHasEffect(t *testing.T) {
	b := New(WithMin(1000), WithMax(100_000))
	b.SetJitter(0.9)
	b.Reset()
	prev := b.Duration()
	found := false
	for range 10 {
		curr := b.Duration()
		if curr != prev {
			found = true
			break
		}
		prev = curr
	}
	if !found {
		t.Error("SetJitter(0.9) produced identical durations across 10 attempts")
	}
}

func TestSetMinClampedToMax(t *testing.T) {
	b := New(WithMin(100), WithMax(200))
	b.SetMin(500)
	if got := b.Duration(); got > 200 {
		t.Errorf("SetMin should clamp to max: got %v", got)
	}
}
