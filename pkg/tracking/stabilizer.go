package tracking

// Verdict describes what one observation did to the stabilizer.
type Verdict struct {
	Point    Point
	Appended bool // point was new and recorded
	Compared bool // a previous point existed, DX/DY are meaningful
	DX, DY   int

	Stabilized bool // bobber came to rest on this observation
	Strike     bool // bite detected; trail and flag were reset
}

// Stabilizer runs the rest-then-bob detection over a point stream.
// It is not safe for concurrent use; the controller owns it.
type Stabilizer struct {
	cfg        Config
	trail      Trail
	stabilized bool
}

// NewStabilizer creates a stabilizer with the given thresholds.
func NewStabilizer(cfg Config) *Stabilizer {
	return &Stabilizer{cfg: cfg}
}

// Observe feeds the midpoint of a successful tracker update.
//
// The point is appended unless it repeats the last one. The delta is always
// taken between the two most recent trail points, so a repeated point is
// compared against the pair that is already recorded.
func (s *Stabilizer) Observe(p Point) Verdict {
	v := Verdict{Point: p}
	v.Appended = s.trail.Append(p)

	if s.trail.Len() < 2 {
		return v
	}
	prev, _ := s.trail.Previous()
	v.Compared = true
	v.DX, v.DY = p.Delta(prev)

	if s.cfg.IsStable(v.DX, v.DY) && !s.stabilized {
		s.stabilized = true
		v.Stabilized = true
	}

	if s.stabilized && s.cfg.IsStrike(v.DX, v.DY) {
		v.Strike = true
		s.Reset()
	}
	return v
}

// Stabilized reports whether the bobber is currently considered at rest.
func (s *Stabilizer) Stabilized() bool { return s.stabilized }

// Trail exposes the recorded points.
func (s *Stabilizer) Trail() *Trail { return &s.trail }

// Reset clears the trail and the stabilization flag.
func (s *Stabilizer) Reset() {
	s.trail.Clear()
	s.stabilized = false
}

// Config returns the thresholds in use.
func (s *Stabilizer) Config() Config { return s.cfg }
