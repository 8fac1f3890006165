package spectrum

import (
	"math"
	"testing"
)

func TestAdd(t *testing.T) {
	a := New(4)
	b := New(4)
	for i := range a.Counts {
		a.Counts[i] = float64(i)
		b.Counts[i] = 10
	}
	a.ElapsedLifetime = 1.5
	b.ElapsedLifetime = 0.5
	b.InputCounts = 100

	if err := a.Add(b); err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	for i := range a.Counts {
		want := float64(i) + 10
		if a.Counts[i] != want {
			t.Fatalf("channel %d: expected %f, got %f", i, want, a.Counts[i])
		}
	}
	if a.ElapsedLifetime != 2.0 {
		t.Fatalf("expected elapsed lifetime 2.0, got %f", a.ElapsedLifetime)
	}
	if a.InputCounts != 100 {
		t.Fatalf("expected input counts 100, got %f", a.InputCounts)
	}
}

func TestAdd_ChannelMismatch(t *testing.T) {
	a := New(4)
	b := New(8)
	if err := a.Add(b); err == nil {
		t.Fatal("expected error for mismatched channel counts")
	}
}

func TestAdd_Nil(t *testing.T) {
	a := New(4)
	a.Counts[0] = 3
	if err := a.Add(nil); err != nil {
		t.Fatalf("Add(nil) should be a no-op, got %v", err)
	}
	if a.Counts[0] != 3 {
		t.Fatalf("Add(nil) mutated the spectrum")
	}
}

func TestRangeSum_Inclusive(t *testing.T) {
	s := New(8)
	for i := range s.Counts {
		s.Counts[i] = float64(i + 1) // 1..8
	}
	// channels 2..4 -> 3+4+5
	if got := s.RangeSum(2, 4); got != 12 {
		t.Fatalf("expected 12, got %f", got)
	}
	// single channel
	if got := s.RangeSum(7, 7); got != 8 {
		t.Fatalf("expected 8, got %f", got)
	}
}

func TestRangeSum_Inverted(t *testing.T) {
	s := New(8)
	for i := range s.Counts {
		s.Counts[i] = 1
	}
	if got := s.RangeSum(5, 3); got != 0 {
		t.Fatalf("inverted range should sum to 0, got %f", got)
	}
}

func TestRangeSum_Truncated(t *testing.T) {
	s := New(4)
	for i := range s.Counts {
		s.Counts[i] = 2
	}
	if got := s.RangeSum(-3, 100); got != 8 {
		t.Fatalf("expected 8, got %f", got)
	}
}

func TestClone(t *testing.T) {
	s := New(3)
	s.Counts[1] = 7
	s.OutputCounts = 42
	c := s.Clone()
	c.Counts[1] = 0
	if s.Counts[1] != 7 {
		t.Fatal("Clone shares backing storage with original")
	}
	if c.OutputCounts != 42 {
		t.Fatalf("expected output counts 42, got %f", c.OutputCounts)
	}
}

func TestTotalCounts(t *testing.T) {
	s := New(3)
	s.Counts[0], s.Counts[1], s.Counts[2] = 1, 2, 3.5
	if got := s.TotalCounts(); math.Abs(got-6.5) > 1e-12 {
		t.Fatalf("expected 6.5, got %f", got)
	}
}
