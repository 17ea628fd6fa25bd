// Package disambiguate asks a language model to pick the provider for an
// address inside a split-territory ZIP. The verdict is advisory: callers feed
// it to review tooling, never directly into the override tables.
package disambiguate

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/provider"
	"github.com/sells-group/utility-cli/pkg/anthropic"
)

const systemPrompt = `You are resolving which utility provider serves a specific street address inside a ZIP code that is split between providers. Use ONLY the observed patterns and evidence given to you. If the patterns do not cover the address, say so with low confidence rather than guessing.

Respond with ONLY valid JSON, no other text:
{"provider": "name or empty string if unknown", "confidence": 0.0, "reasoning": "brief explanation"}`

// Input carries everything the model is allowed to see for one address.
type Input struct {
	Address      string
	ZipCode      string
	City         string
	State        string
	Category     model.Category
	Context      *model.ZipContext
	EvidenceNote string
}

// Verdict is the parsed model answer. Provider is canonicalized; an empty
// Provider means the model declined to pick.
type Verdict struct {
	Provider   string  `json:"provider"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning"`
}

// Disambiguator wraps the Anthropic client with prompt construction and
// answer parsing.
type Disambiguator struct {
	ai    anthropic.Client
	canon *provider.Canonicalizer
	model string
}

// New builds a Disambiguator using the given model ID.
func New(ai anthropic.Client, canon *provider.Canonicalizer, modelID string) *Disambiguator {
	return &Disambiguator{ai: ai, canon: canon, model: modelID}
}

// Resolve asks the model for a verdict. A ZIP with no learned context returns
// (nil, nil): without patterns there is nothing to reason from.
func (d *Disambiguator) Resolve(ctx context.Context, in Input) (*Verdict, error) {
	if in.Context == nil || !in.Context.IsSplitTerritory {
		return nil, nil
	}

	resp, err := d.ai.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     d.model,
		MaxTokens: 256,
		System:    systemPrompt,
		Messages: []anthropic.Message{
			{Role: "user", Content: buildPrompt(in)},
		},
	})
	if err != nil {
		return nil, eris.Wrap(err, "disambiguate: claude request")
	}

	verdict, err := parseVerdict(resp.Text())
	if err != nil {
		return nil, err
	}

	if verdict.Provider != "" {
		verdict.Provider = d.canon.Canonicalize(verdict.Provider, in.Category)
	}

	zap.L().Debug("disambiguation verdict",
		zap.String("zip", in.ZipCode),
		zap.String("category", string(in.Category)),
		zap.String("provider", verdict.Provider),
		zap.Float64("confidence", verdict.Confidence),
	)

	return verdict, nil
}

// buildPrompt renders the address, the learned ZIP context, and any evidence
// note into the user message.
func buildPrompt(in Input) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Address: %s", in.Address)
	if in.City != "" {
		fmt.Fprintf(&b, ", %s", in.City)
	}
	if in.State != "" {
		fmt.Fprintf(&b, ", %s", in.State)
	}
	fmt.Fprintf(&b, " %s\n", in.ZipCode)
	fmt.Fprintf(&b, "Utility type: %s\n\n", in.Category)

	fmt.Fprintf(&b, "What we know about ZIP %s:\n%s\n", in.ZipCode, in.Context.ContextText)

	if len(in.Context.Patterns) > 0 {
		b.WriteString("\nLearned patterns:\n")
		for _, p := range in.Context.Patterns {
			fmt.Fprintf(&b, "- %s\n", p)
		}
	}

	if in.EvidenceNote != "" {
		fmt.Fprintf(&b, "\nExternal evidence: %s\n", in.EvidenceNote)
	}

	b.WriteString("\nWhich provider serves this address?")
	return b.String()
}

// parseVerdict extracts the JSON object from the model text, which may carry
// surrounding prose.
func parseVerdict(text string) (*Verdict, error) {
	if text == "" {
		return nil, eris.New("disambiguate: empty claude response")
	}

	jsonStart := strings.Index(text, "{")
	jsonEnd := strings.LastIndex(text, "}")
	if jsonStart < 0 || jsonEnd <= jsonStart {
		return nil, eris.Errorf("disambiguate: no JSON in response: %s", text)
	}

	var v Verdict
	if err := json.Unmarshal([]byte(text[jsonStart:jsonEnd+1]), &v); err != nil {
		return nil, eris.Wrap(err, "disambiguate: parse response JSON")
	}

	if v.Confidence < 0 {
		v.Confidence = 0
	}
	if v.Confidence > 1 {
		v.Confidence = 1
	}

	return &v, nil
}
