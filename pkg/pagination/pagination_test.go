package pagination

import "testing"

func TestNew(t *testing.T) {
	tests := []struct {
		name        string
		page        int
		perPage     int
		wantPage    int
		wantPerPage int
	}{
		{"defaults applied", 0, 0, 1, DefaultPerPage},
		{"negative page", -3, 10, 1, 10},
		{"per page capped", 1, 10000, 1, MaxPerPage},
		{"valid values kept", 3, 25, 3, 25},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := New(tt.page, tt.perPage)
			if p.Page != tt.wantPage || p.PerPage != tt.wantPerPage {
				t.Errorf("New(%d, %d) = (%d, %d), want (%d, %d)",
					tt.page, tt.perPage, p.Page, p.PerPage, tt.wantPage, tt.wantPerPage)
			}
		})
	}
}

func TestOffsetLimit(t *testing.T) {
	p := New(3, 20)
	if p.Offset() != 40 {
		t.Errorf("Offset() = %d, want 40", p.Offset())
	}
	if p.Limit() != 20 {
		t.Errorf("Limit() = %d, want 20", p.Limit())
	}
}

func TestNewResult(t *testing.T) {
	p := New(2, 10)
	result := NewResult([]string{"a", "b"}, 25, p)

	if result.Total != 25 || result.Page != 2 || result.PerPage != 10 {
		t.Errorf("result = %+v", result)
	}
	if result.TotalPages != 3 {
		t.Errorf("TotalPages = %d, want 3", result.TotalPages)
	}

	empty := NewResult[string](nil, 0, p)
	if empty.Data == nil {
		t.Error("Data should be an empty slice, not nil")
	}
	if empty.TotalPages != 0 {
		t.Errorf("TotalPages = %d, want 0", empty.TotalPages)
	}
}
