package tracking

import "testing"

func TestDefaultConfig_Thresholds(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.StableMax != 1 {
		t.Errorf("Expected StableMax=1, got %v", cfg.StableMax)
	}
	if cfg.StrikeMinX != 2 || cfg.StrikeMinY != 1 {
		t.Errorf("Expected strike minimums (2,1), got (%d,%d)", cfg.StrikeMinX, cfg.StrikeMinY)
	}
	if cfg.StrikeMaxX != 8 || cfg.StrikeMaxY != 8 {
		t.Errorf("Expected strike maximums (8,8), got (%d,%d)", cfg.StrikeMaxX, cfg.StrikeMaxY)
	}
}

func TestConfig_Validate(t *testing.T) {
	configs := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"Default", DefaultConfig(), false},
		{"Sensitive", SensitiveConfig(), false},
		{"negative stable", Config{StableMax: -1, StrikeMinX: 2, StrikeMinY: 1, StrikeMaxX: 8, StrikeMaxY: 8}, true},
		{"inverted x window", Config{StableMax: 1, StrikeMinX: 8, StrikeMinY: 1, StrikeMaxX: 2, StrikeMaxY: 8}, true},
		{"empty y window", Config{StableMax: 1, StrikeMinX: 2, StrikeMinY: 3, StrikeMaxX: 8, StrikeMaxY: 3}, true},
	}

	for _, tc := range configs {
		err := tc.cfg.Validate()
		if (err != nil) != tc.wantErr {
			t.Errorf("%s: Validate() error = %v, wantErr %v", tc.name, err, tc.wantErr)
		}
	}
}

func TestConfig_IsStrike_LiteralExpression(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name   string
		dx, dy int
		want   bool
	}{
		{"at rest", 0, 0, false},
		{"noise within dead zone", 2, 1, false},
		{"x bob", 3, 0, true},
		{"y bob", 0, 2, true},
		{"x at upper bound, y still inside", 8, 1, true},
		{"both axes jumped", 8, 8, false},
		{"large x, small y still passes", 20, 2, true},
		{"large jump on both axes", 30, 30, false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			want := (tc.dx > 2 || tc.dy > 1) && (tc.dx < 8 || tc.dy < 8)
			if want != tc.want {
				t.Fatalf("table entry disagrees with literal expression for (%d,%d)", tc.dx, tc.dy)
			}
			if got := cfg.IsStrike(tc.dx, tc.dy); got != tc.want {
				t.Errorf("IsStrike(%d,%d) = %v, want %v", tc.dx, tc.dy, got, tc.want)
			}
		})
	}
}

func TestConfig_IsStable(t *testing.T) {
	cfg := DefaultConfig()
	if !cfg.IsStable(1, 1) || !cfg.IsStable(0, 0) {
		t.Error("deltas within 1px should be stable")
	}
	if cfg.IsStable(2, 0) || cfg.IsStable(0, 2) {
		t.Error("a 2px delta on either axis is not stable")
	}
}
