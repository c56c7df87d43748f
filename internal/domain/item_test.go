package domain

import "testing"

func TestItemTypeOpposite(t *testing.T) {
	if got := ItemTypeLost.Opposite(); got != ItemTypeFound {
		t.Errorf("lost.Opposite() = %q, want found", got)
	}
	if got := ItemTypeFound.Opposite(); got != ItemTypeLost {
		t.Errorf("found.Opposite() = %q, want lost", got)
	}
}

func TestItemTypeValid(t *testing.T) {
	tests := []struct {
		in   ItemType
		want bool
	}{
		{ItemTypeLost, true},
		{ItemTypeFound, true},
		{"", false},
		{"stolen", false},
		{"LOST", false},
	}
	for _, tt := range tests {
		if got := tt.in.Valid(); got != tt.want {
			t.Errorf("ItemType(%q).Valid() = %v, want %v", tt.in, got, tt.want)
		}
	}
}
