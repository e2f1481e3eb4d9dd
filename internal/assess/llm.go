package assess

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/foodmatch/matchd/pkg/anthropic"
)

// LLM is an Assessor backed by the Anthropic API. Any error, timeout, or
// unparseable payload degrades to the deterministic fallback; the caller
// never sees the failure.
type LLM struct {
	client    anthropic.Client
	model     string
	maxTokens int64
	fallback  *Fallback
}

// NewLLM creates an LLM assessor delegating to fallback on degradation.
func NewLLM(client anthropic.Client, modelID string, maxTokens int64, fallback *Fallback) *LLM {
	return &LLM{
		client:    client,
		model:     modelID,
		maxTokens: maxTokens,
		fallback:  fallback,
	}
}

const assessTemperature = 0.3

// Assess asks the model for a 0-100 score and explanation covering
// capability alignment, certification relevance, proximity, and community
// need.
func (l *LLM) Assess(ctx context.Context, in Input) Assessment {
	temp := assessTemperature
	resp, err := l.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       l.model,
		MaxTokens:   l.maxTokens,
		Temperature: &temp,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(in)},
		},
	})
	if err != nil {
		zap.L().Warn("assess: llm call failed, using fallback",
			zap.Int64("organization_id", in.Organization.ID),
			zap.Error(err),
		)
		return l.fallback.Assess(ctx, in)
	}
	resp.Usage.Log(l.model, "assess")

	a, err := parseAssessment(resp.Text())
	if err != nil {
		zap.L().Warn("assess: unparseable llm response, using fallback",
			zap.Int64("organization_id", in.Organization.ID),
			zap.Error(err),
		)
		return l.fallback.Assess(ctx, in)
	}
	return a
}

func buildPrompt(in Input) string {
	sol := in.Solicitation
	org := in.Organization

	setAside := sol.SetAsideType
	if setAside == "" {
		setAside = "None"
	}
	desc := org.Description
	if desc == "" {
		desc = "N/A"
	}

	return fmt.Sprintf(`Score this match between a food solicitation and an organization from 0-100.
Provide your response as JSON: {"score": <number>, "explanation": "<2-3 sentences>"}

Solicitation:
- Title: %s
- Description: %s
- Agency: %s
- Categories: %s
- Set-aside: %s

Organization:
- Name: %s
- Type: %s
- Capabilities: %s
- Certifications: %s
- Description: %s

Context:
- Distance: %.0f miles
- ZIP food insecurity need score: %.0f/100

Consider: capability alignment, certifications relevant to set-asides, proximity, and community need.`,
		sol.Title, sol.Description, sol.Agency,
		strings.Join(sol.Categories, ", "), setAside,
		org.Name, org.OrgType,
		strings.Join(org.Capabilities, ", "),
		strings.Join(org.Certifications, ", "), desc,
		in.DistanceMiles, in.NeedScore,
	)
}

// parseAssessment extracts {"score": n, "explanation": "..."} from the model
// output, tolerating a markdown code fence around the JSON.
func parseAssessment(content string) (Assessment, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		parts := strings.SplitN(content, "```", 3)
		if len(parts) >= 2 {
			content = parts[1]
		}
		content = strings.TrimPrefix(content, "json")
		content = strings.TrimSpace(content)
	}

	var parsed struct {
		Score       float64 `json:"score"`
		Explanation string  `json:"explanation"`
	}
	if err := json.Unmarshal([]byte(content), &parsed); err != nil {
		return Assessment{}, eris.Wrap(err, "assess: parse response")
	}
	return Assessment{
		Score:       clamp(parsed.Score),
		Explanation: parsed.Explanation,
	}, nil
}
