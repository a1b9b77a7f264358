package db

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNewSizeStats(t *testing.T) {
	got := NewSizeStats([]float64{2, 4, 4, 4, 5, 5, 7, 9})
	want := SizeStats{Values: 8, Total: 40, StdDeviation: 2, Min: 2, Max: 9, Mean: 5}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}

	if diff := cmp.Diff(SizeStats{}, NewSizeStats(nil)); diff != "" {
		t.Errorf("expected zero stats for no values (-want +got):\n%s", diff)
	}
}

func TestPrefixUpperBound(t *testing.T) {
	tests := []struct {
		prefix string
		want   []byte
	}{
		{"users/", []byte("users0")},
		{"a\xff", []byte("b")},
		{"\xff\xff", nil},
		{"", nil},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, PrefixUpperBound(tt.prefix)); diff != "" {
			t.Errorf("PrefixUpperBound(%q) mismatch (-want +got):\n%s", tt.prefix, diff)
		}
	}
}
