package assess

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/foodmatch/matchd/internal/model"
)

func testInput() Input {
	return Input{
		Solicitation: &model.Solicitation{
			ID:         1,
			Title:      "Emergency Food Supply",
			Categories: []string{"fresh produce", "cold storage"},
		},
		Organization: &model.Organization{
			ID:           7,
			Name:         "Delta Fresh Foods",
			OrgType:      model.OrgSupplier,
			Capabilities: []string{"fresh produce", "cold storage", "emergency supply"},
		},
		DistanceMiles: 60,
		NeedScore:     82,
	}
}

func TestFallbackAssess(t *testing.T) {
	f := NewFallback(500)
	a := f.Assess(context.Background(), testInput())

	// 0.5*100 + 0.3*88 + 0.2*82 = 92.8
	assert.InDelta(t, 92.8, a.Score, 0.1)
	assert.Contains(t, a.Explanation, "Delta Fresh Foods has 2 overlapping capabilities")
	assert.Contains(t, a.Explanation, "cold storage, fresh produce")
	assert.Contains(t, a.Explanation, "60 miles away")
	assert.Contains(t, a.Explanation, "high food insecurity")
}

func TestFallbackAssessLowNeedOmitsNote(t *testing.T) {
	in := testInput()
	in.NeedScore = 40
	a := NewFallback(500).Assess(context.Background(), in)
	assert.NotContains(t, a.Explanation, "high food insecurity")
}

func TestFallbackAssessNoOverlap(t *testing.T) {
	in := testInput()
	in.Organization.Capabilities = []string{"warehouse distribution"}
	a := NewFallback(500).Assess(context.Background(), in)
	assert.Contains(t, a.Explanation, "0 overlapping capabilities")
	assert.GreaterOrEqual(t, a.Score, 0.0)
	assert.LessOrEqual(t, a.Score, 100.0)
}

func TestFallbackDeterministic(t *testing.T) {
	f := NewFallback(500)
	a1 := f.Assess(context.Background(), testInput())
	a2 := f.Assess(context.Background(), testInput())
	assert.Equal(t, a1, a2)
}

func TestFallbackExplanationCapsAtThreeCapabilities(t *testing.T) {
	in := testInput()
	in.Solicitation.Categories = []string{"a", "b", "c", "d"}
	in.Organization.Capabilities = []string{"a", "b", "c", "d"}
	a := NewFallback(500).Assess(context.Background(), in)
	assert.Contains(t, a.Explanation, "4 overlapping capabilities")
	assert.Contains(t, a.Explanation, "(a, b, c)")
	assert.NotContains(t, a.Explanation, "(a, b, c, d)")
}

func TestParseAssessment(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    Assessment
		wantErr bool
	}{
		{
			"plain json",
			`{"score": 85, "explanation": "strong match"}`,
			Assessment{Score: 85, Explanation: "strong match"},
			false,
		},
		{
			"fenced json",
			"```json\n{\"score\": 72.5, \"explanation\": \"decent\"}\n```",
			Assessment{Score: 72.5, Explanation: "decent"},
			false,
		},
		{
			"fenced without language tag",
			"```\n{\"score\": 40, \"explanation\": \"weak\"}\n```",
			Assessment{Score: 40, Explanation: "weak"},
			false,
		},
		{
			"score above range clamped",
			`{"score": 150, "explanation": "x"}`,
			Assessment{Score: 100, Explanation: "x"},
			false,
		},
		{
			"negative score clamped",
			`{"score": -5, "explanation": "x"}`,
			Assessment{Score: 0, Explanation: "x"},
			false,
		},
		{
			"garbage",
			"the model rambled instead",
			Assessment{},
			true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseAssessment(tt.content)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
