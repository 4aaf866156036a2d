package rules

import "testing"

func TestParseSelector(t *testing.T) {
	tests := []struct {
		name    string
		selType string
		count   int
		want    Selector
		wantErr bool
	}{
		{"episodes", "episodes", 3, Selector{Type: SelectorEpisodes, Count: 3}, false},
		{"seasons", "seasons", 2, Selector{Type: SelectorSeasons, Count: 2}, false},
		{"all ignores count", "all", 5, Selector{Type: SelectorAll}, false},
		{"legacy season keyword", "season", 0, Selector{Type: SelectorSeasons, Count: 1}, false},
		{"legacy bare number", "5", 0, Selector{Type: SelectorEpisodes, Count: 5}, false},
		{"legacy uppercase", "ALL", 0, Selector{Type: SelectorAll}, false},
		{"empty defaults to episodes", "", 2, Selector{Type: SelectorEpisodes, Count: 2}, false},
		{"garbage", "sometimes", 1, Selector{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSelector(tt.selType, tt.count)
			if (err != nil) != tt.wantErr {
				t.Fatalf("ParseSelector(%q, %d) error = %v, wantErr %v", tt.selType, tt.count, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseSelector(%q, %d) = %+v, want %+v", tt.selType, tt.count, got, tt.want)
			}
		})
	}
}

func TestRuleValidate(t *testing.T) {
	days := 30
	valid := Rule{
		Name:        "default",
		Get:         Selector{Type: SelectorEpisodes, Count: 3},
		Keep:        Selector{Type: SelectorAll},
		DormantDays: &days,
		Action:      ActionMonitor,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("valid rule failed validation: %v", err)
	}

	t.Run("missing name", func(t *testing.T) {
		r := valid
		r.Name = "  "
		if err := r.Validate(); err == nil {
			t.Error("expected error for blank name")
		}
	})

	t.Run("zero selector count", func(t *testing.T) {
		r := valid
		r.Get = Selector{Type: SelectorEpisodes, Count: 0}
		if err := r.Validate(); err == nil {
			t.Error("expected error for zero count")
		}
	})

	t.Run("bad action", func(t *testing.T) {
		r := valid
		r.Action = "delete"
		if err := r.Validate(); err == nil {
			t.Error("expected error for unknown action")
		}
	})

	t.Run("zero threshold", func(t *testing.T) {
		r := valid
		zero := 0
		r.DormantDays = &zero
		if err := r.Validate(); err == nil {
			t.Error("expected error for zero dormant days")
		}
	})
}
