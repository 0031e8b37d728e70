package coerce

import "testing"

func TestFloat(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  float64
		valid bool
	}{
		{"plain", "23.5", 23.5, true},
		{"comma decimal", "23,5", 23.5, true},
		{"unicode minus", "−3.2", -3.2, true},
		{"trailing unit", "12 mm", 12.0, true},
		{"unit with degree", "23,5 °C", 23.5, true},
		{"whitespace", "  7.1  ", 7.1, true},
		{"negative", "-10.0", -10.0, true},
		{"zero", "0", 0, true},
		{"empty", "", 0, false},
		{"single dash", "-", 0, false},
		{"double dash", "--", 0, false},
		{"triple dash", "---", 0, false},
		{"n/a", "N/A", 0, false},
		{"na", "na", 0, false},
		{"null", "NULL", 0, false},
		{"nan", "NaN", 0, false},
		{"letters only", "offline", 0, false},
		{"garbage punctuation", "..--", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Float(tt.raw)
			if got.Valid != tt.valid {
				t.Fatalf("Float(%q).Valid = %v, want %v", tt.raw, got.Valid, tt.valid)
			}
			if tt.valid && got.Float64 != tt.want {
				t.Errorf("Float(%q) = %v, want %v", tt.raw, got.Float64, tt.want)
			}
		})
	}
}

func TestPtr(t *testing.T) {
	if p := Ptr("--"); p != nil {
		t.Errorf("Ptr(--) = %v, want nil", *p)
	}
	p := Ptr("14,2")
	if p == nil || *p != 14.2 {
		t.Errorf("Ptr(14,2) = %v, want 14.2", p)
	}
}
