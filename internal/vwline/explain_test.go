package vwline

import (
	"testing"

	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleExplanation = "u^user42*i^item7:143407:1:-0.5\ti^item7:98765:2:0.2\tConstant:116060:1:0.1"

func TestParseExplanation(t *testing.T) {
	contribs, err := ParseExplanation(sampleExplanation)
	require.NoError(t, err)
	require.Len(t, contribs, 3)

	// Sorted by descending relative potential.
	first := contribs[0]
	assert.Equal(t, "u^user42*i^item7", first.OriginalName)
	assert.Equal(t, []Element{
		{Namespace: "u", Feature: "user42"},
		{Namespace: "i", Feature: "item7"},
	}, first.Names)
	assert.Equal(t, int64(143407), first.HashIndex)
	assert.InDelta(t, 1.0, first.Value, 1e-12)
	assert.InDelta(t, -0.5, first.Weight, 1e-12)
	assert.InDelta(t, -0.5, first.Potential, 1e-12)
	assert.InDelta(t, 0.5, first.RelativePotential, 1e-12)

	assert.Equal(t, "i^item7", contribs[1].OriginalName)
	assert.InDelta(t, 0.4, contribs[1].Potential, 1e-12)
	assert.InDelta(t, 0.4, contribs[1].RelativePotential, 1e-12)

	// A bare element has no namespace.
	assert.Equal(t, "Constant", contribs[2].OriginalName)
	assert.Equal(t, []Element{{Feature: "Constant"}}, contribs[2].Names)
	assert.InDelta(t, 0.1, contribs[2].RelativePotential, 1e-12)
}

func TestParseExplanationAverageSuffix(t *testing.T) {
	contribs, err := ParseExplanation("a^a1:7:1:0.25@0.5")
	require.NoError(t, err)
	require.Len(t, contribs, 1)
	assert.InDelta(t, 0.25, contribs[0].Weight, 1e-12)
}

func TestParseExplanationZeroWeights(t *testing.T) {
	// Untrained model: every weight zero. Relative potentials stay defined.
	contribs, err := ParseExplanation("a^a1:7:1:0\tb^b1:9:2:0")
	require.NoError(t, err)
	require.Len(t, contribs, 2)
	for _, c := range contribs {
		assert.Zero(t, c.Potential)
		assert.Zero(t, c.RelativePotential)
	}
}

func TestParseExplanationMalformed(t *testing.T) {
	tests := []struct {
		name string
		in   string
	}{
		{"too few fields", "a^a1:7:1"},
		{"bad hash", "a^a1:x:1:0.5"},
		{"bad value", "a^a1:7:x:0.5"},
		{"bad weight", "a^a1:7:1:x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseExplanation(tt.in)
			assert.Error(t, err)
		})
	}
}

func TestRenderExplanation(t *testing.T) {
	contribs, err := ParseExplanation(sampleExplanation)
	require.NoError(t, err)

	g := goldie.New(t)
	g.Assert(t, "explanation_table", []byte(RenderExplanation(contribs)))
}
