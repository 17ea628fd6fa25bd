package disambiguate

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/provider"
	"github.com/sells-group/utility-cli/pkg/anthropic"
)

type fakeAI struct {
	lastReq anthropic.MessageRequest
	reply   string
	err     error
}

func (f *fakeAI) CreateMessage(_ context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	f.lastReq = req
	if f.err != nil {
		return nil, f.err
	}
	return &anthropic.MessageResponse{
		Content: []anthropic.ContentBlock{{Type: "text", Text: f.reply}},
	}, nil
}

func splitContext() *model.ZipContext {
	return &model.ZipContext{
		ZipCode:           "75201",
		Category:          model.CategoryElectric,
		ObservedProviders: []string{"Oncor", "TXU Energy"},
		Patterns: []string{
			"street MAIN STREET -> Oncor (90% of 10)",
			"street OAK AVENUE -> TXU Energy (85% of 7)",
		},
		IsSplitTerritory: true,
		ContextText:      "Split territory: Oncor and TXU Energy both serve this ZIP.",
	}
}

func newDisambiguator(t *testing.T, ai anthropic.Client) *Disambiguator {
	t.Helper()
	canon, err := provider.New()
	require.NoError(t, err)
	return New(ai, canon, "claude-haiku-4-5-20251001")
}

func TestResolveParsesVerdict(t *testing.T) {
	ai := &fakeAI{reply: `{"provider": "ONCOR ELECTRIC DELIVERY", "confidence": 0.85, "reasoning": "street pattern match"}`}
	d := newDisambiguator(t, ai)

	v, err := d.Resolve(context.Background(), Input{
		Address:  "120 Main St",
		ZipCode:  "75201",
		State:    "TX",
		Category: model.CategoryElectric,
		Context:  splitContext(),
	})

	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "Oncor", v.Provider, "verdict provider must be canonicalized")
	assert.Equal(t, 0.85, v.Confidence)
}

func TestResolvePromptCarriesContext(t *testing.T) {
	ai := &fakeAI{reply: `{"provider": "", "confidence": 0.1, "reasoning": "no matching pattern"}`}
	d := newDisambiguator(t, ai)

	_, err := d.Resolve(context.Background(), Input{
		Address:      "999 Elm St",
		ZipCode:      "75201",
		City:         "Dallas",
		State:        "TX",
		Category:     model.CategoryElectric,
		Context:      splitContext(),
		EvidenceNote: "3 positive search signals for Oncor",
	})
	require.NoError(t, err)

	prompt := ai.lastReq.Messages[0].Content
	assert.Contains(t, prompt, "999 Elm St, Dallas, TX 75201")
	assert.Contains(t, prompt, "Split territory")
	assert.Contains(t, prompt, "street MAIN STREET -> Oncor")
	assert.Contains(t, prompt, "3 positive search signals")
	assert.True(t, strings.Contains(ai.lastReq.System, "ONLY valid JSON"))
}

func TestResolveSkipsWithoutSplitContext(t *testing.T) {
	ai := &fakeAI{reply: `{"provider": "Oncor", "confidence": 0.9}`}
	d := newDisambiguator(t, ai)

	v, err := d.Resolve(context.Background(), Input{
		ZipCode:  "75205",
		Category: model.CategoryElectric,
	})
	require.NoError(t, err)
	assert.Nil(t, v, "no context means nothing to reason from")

	single := splitContext()
	single.IsSplitTerritory = false
	v, err = d.Resolve(context.Background(), Input{
		ZipCode:  "75205",
		Category: model.CategoryElectric,
		Context:  single,
	})
	require.NoError(t, err)
	assert.Nil(t, v)
}

func TestParseVerdict(t *testing.T) {
	tests := []struct {
		name    string
		text    string
		want    *Verdict
		wantErr bool
	}{
		{
			name: "clean json",
			text: `{"provider": "Oncor", "confidence": 0.8, "reasoning": "ok"}`,
			want: &Verdict{Provider: "Oncor", Confidence: 0.8, Reasoning: "ok"},
		},
		{
			name: "surrounding prose",
			text: `Based on the patterns: {"provider": "TXU Energy", "confidence": 0.7, "reasoning": "range"} hope that helps`,
			want: &Verdict{Provider: "TXU Energy", Confidence: 0.7, Reasoning: "range"},
		},
		{
			name: "confidence clamped",
			text: `{"provider": "Oncor", "confidence": 1.4, "reasoning": ""}`,
			want: &Verdict{Provider: "Oncor", Confidence: 1},
		},
		{
			name:    "empty response",
			text:    "",
			wantErr: true,
		},
		{
			name:    "no json",
			text:    "I cannot answer that.",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseVerdict(tt.text)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
