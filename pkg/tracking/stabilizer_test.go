package tracking

import (
	"image"
	"testing"
)

func TestMidpoint_Truncates(t *testing.T) {
	tests := []struct {
		name           string
		x1, y1, x2, y2 int
		want           Point
	}{
		{"even box", 10, 20, 30, 40, Point{20, 30}},
		{"odd sum truncates", 10, 20, 31, 41, Point{20, 30}},
		{"uses y for the y axis", 0, 100, 10, 110, Point{5, 105}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := Midpoint(tc.x1, tc.y1, tc.x2, tc.y2); got != tc.want {
				t.Errorf("got %v, want %v", got, tc.want)
			}
		})
	}

	if got := RectMidpoint(image.Rect(10, 20, 30, 40)); got != (Point{20, 30}) {
		t.Errorf("RectMidpoint: got %v", got)
	}
}

func TestTrail_NoConsecutiveDuplicates(t *testing.T) {
	var tr Trail
	seq := []Point{{1, 1}, {1, 1}, {2, 2}, {2, 2}, {2, 2}, {1, 1}}
	for _, p := range seq {
		tr.Append(p)
	}

	pts := tr.Points()
	want := []Point{{1, 1}, {2, 2}, {1, 1}}
	if len(pts) != len(want) {
		t.Fatalf("got %v, want %v", pts, want)
	}
	for i := 1; i < len(pts); i++ {
		if pts[i] == pts[i-1] {
			t.Errorf("consecutive duplicate at %d: %v", i, pts)
		}
	}

	if last, _ := tr.Last(); last != (Point{1, 1}) {
		t.Errorf("Last: got %v", last)
	}
	if prev, _ := tr.Previous(); prev != (Point{2, 2}) {
		t.Errorf("Previous: got %v", prev)
	}

	tr.Clear()
	if tr.Len() != 0 {
		t.Error("Clear should empty the trail")
	}
	if _, ok := tr.Previous(); ok {
		t.Error("Previous on empty trail should report false")
	}
}

func TestStabilizer_BiteAfterRest(t *testing.T) {
	s := NewStabilizer(DefaultConfig())

	v := s.Observe(Point{50, 50})
	if !v.Appended || v.Compared || v.Stabilized || v.Strike {
		t.Fatalf("first point: %+v", v)
	}

	v = s.Observe(Point{50, 51})
	if v.DX != 0 || v.DY != 1 {
		t.Fatalf("delta: got (%d,%d), want (0,1)", v.DX, v.DY)
	}
	if !v.Stabilized || !s.Stabilized() {
		t.Fatal("bobber should be stabilized after a (0,1) move")
	}
	if v.Strike {
		t.Fatal("no strike expected on stabilization")
	}

	v = s.Observe(Point{58, 52})
	if v.DX != 8 || v.DY != 1 {
		t.Fatalf("delta: got (%d,%d), want (8,1)", v.DX, v.DY)
	}
	if !v.Strike {
		t.Fatal("(8,1) after stabilization must be a strike")
	}
	if s.Stabilized() {
		t.Error("strike must clear the stabilization flag")
	}
	if s.Trail().Len() != 0 {
		t.Errorf("strike must clear the trail, got %v", s.Trail().Points())
	}
}

func TestStabilizer_NoStrikeBeforeStabilized(t *testing.T) {
	s := NewStabilizer(DefaultConfig())

	for _, p := range []Point{{10, 10}, {15, 10}, {20, 12}, {25, 14}} {
		if v := s.Observe(p); v.Strike || v.Stabilized {
			t.Fatalf("moving bobber at %v produced %+v", p, v)
		}
	}
	if s.Stabilized() {
		t.Error("a constantly moving bobber never stabilizes")
	}
}

func TestStabilizer_LargeJumpIsNotAStrike(t *testing.T) {
	s := NewStabilizer(DefaultConfig())
	s.Observe(Point{100, 100})
	s.Observe(Point{100, 101})
	if !s.Stabilized() {
		t.Fatal("expected stabilized")
	}

	v := s.Observe(Point{140, 160})
	if v.Strike {
		t.Error("a jump of (40,59) is a re-cast or tracker jump, not a bite")
	}
	if !s.Stabilized() {
		t.Error("flag stays set when the jump is rejected")
	}
}

func TestStabilizer_RepeatedPointComparesRecordedPair(t *testing.T) {
	s := NewStabilizer(DefaultConfig())
	s.Observe(Point{50, 50})
	s.Observe(Point{50, 51})

	v := s.Observe(Point{50, 51})
	if v.Appended {
		t.Error("repeat of the last point must not be appended")
	}
	if s.Trail().Len() != 2 {
		t.Errorf("trail length: got %d, want 2", s.Trail().Len())
	}
	if v.Strike {
		t.Error("no strike on a resting bobber")
	}
}

func TestStabilizer_FlagOnlyRisesOnSmallDelta(t *testing.T) {
	s := NewStabilizer(DefaultConfig())
	pts := []Point{{0, 0}, {5, 0}, {5, 3}, {6, 4}}
	var rose []int
	for i, p := range pts {
		if v := s.Observe(p); v.Stabilized {
			rose = append(rose, i)
			if v.DX > 1 || v.DY > 1 {
				t.Errorf("flag rose on delta (%d,%d)", v.DX, v.DY)
			}
		}
	}
	if len(rose) != 1 || rose[0] != 3 {
		t.Errorf("flag rose at %v, want [3]", rose)
	}
}

func TestStabilizer_Reset(t *testing.T) {
	s := NewStabilizer(DefaultConfig())
	s.Observe(Point{1, 1})
	s.Observe(Point{1, 2})
	s.Reset()
	if s.Stabilized() || s.Trail().Len() != 0 {
		t.Error("Reset should clear flag and trail")
	}
}
