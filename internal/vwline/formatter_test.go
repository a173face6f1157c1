package vwline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCompose(t *testing.T) {
	assert.Equal(t, "|c shared |i item0", Compose("|c shared", "|i item0"))
}

func TestComposeTrain(t *testing.T) {
	w := 0.25
	tests := []struct {
		name   string
		label  float64
		weight *float64
		want   string
	}{
		{
			name:  "unweighted keeps the weight field empty",
			label: 1,
			want:  "1  |c shared |i item0",
		},
		{
			name:   "weighted",
			label:  -1,
			weight: &w,
			want:   "-1 0.25 |c shared |i item0",
		},
		{
			name:  "fractional label",
			label: 0.5,
			want:  "0.5  |c shared |i item0",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ComposeTrain("|c shared", "|i item0", tt.label, tt.weight)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPassthrough(t *testing.T) {
	var f Passthrough
	assert.Equal(t, "|c shared", f.FormatCommon("|c shared"))
	assert.Equal(t, "|i item0", f.FormatItem("|c shared", "|i item0"))
	// Non-string values come out empty rather than panicking.
	assert.Equal(t, "", f.FormatCommon(42))
}

func TestSanitize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "|a feature", "|a feature"},
		{"strips newlines", "|a fea\nture\r", "|a feature"},
		{"trims surrounding space", "  |a feature \t", "|a feature"},
		{"normalizes to NFC", "|a café", "|a café"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Sanitize(tt.in))
		})
	}
}
