package notion

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/jomei/notionapi"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/model"
)

// keyProperty is the rich_text column used for idempotent exports: a page is
// only created when no page with the same key exists.
const keyProperty = "Key"

// ExportCorrections creates one review page per pending correction. Already
// exported corrections are skipped. Returns the number of pages created.
func ExportCorrections(ctx context.Context, c Client, dbID string, corrections []model.Correction) (int, error) {
	seen, err := existingKeys(ctx, c, dbID)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, cor := range corrections {
		if cor.Status != model.CorrectionPending {
			continue
		}

		key := correctionKey(cor)
		if _, ok := seen[key]; ok {
			continue
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: correctionProperties(cor, key),
		}

		if _, err := c.CreatePage(ctx, req); err != nil {
			return created, eris.Wrap(err, "notion: export correction")
		}
		created++
	}

	zap.L().Info("exported corrections to review queue",
		zap.Int("created", created),
		zap.Int("total", len(corrections)),
	)
	return created, nil
}

// ExportFlagged creates one review page per flagged location: an aggregate
// whose provider mix was too ambiguous to learn from. Returns the number of
// pages created.
func ExportFlagged(ctx context.Context, c Client, dbID string, aggs []model.LocationAggregate) (int, error) {
	seen, err := existingKeys(ctx, c, dbID)
	if err != nil {
		return 0, err
	}

	created := 0
	for _, agg := range aggs {
		key := flaggedKey(agg)
		if _, ok := seen[key]; ok {
			continue
		}

		req := &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: notionapi.DatabaseID(dbID),
			},
			Properties: flaggedProperties(agg, key),
		}

		if _, err := c.CreatePage(ctx, req); err != nil {
			return created, eris.Wrap(err, "notion: export flagged location")
		}
		created++
	}

	zap.L().Info("exported flagged locations to review queue",
		zap.Int("created", created),
		zap.Int("total", len(aggs)),
	)
	return created, nil
}

// existingKeys loads the Key column of every page in the database.
func existingKeys(ctx context.Context, c Client, dbID string) (map[string]struct{}, error) {
	pages, err := QueryAll(ctx, c, dbID, nil)
	if err != nil {
		return nil, eris.Wrap(err, "notion: load existing keys")
	}

	keys := make(map[string]struct{}, len(pages))
	for _, p := range pages {
		if k := keyFromPage(p); k != "" {
			keys[k] = struct{}{}
		}
	}
	return keys, nil
}

func keyFromPage(p notionapi.Page) string {
	prop, ok := p.Properties[keyProperty]
	if !ok {
		return ""
	}

	var rt []notionapi.RichText
	switch v := prop.(type) {
	case *notionapi.RichTextProperty:
		rt = v.RichText
	case notionapi.RichTextProperty:
		rt = v.RichText
	default:
		return ""
	}

	var b strings.Builder
	for _, t := range rt {
		if t.PlainText != "" {
			b.WriteString(t.PlainText)
		} else if t.Text != nil {
			b.WriteString(t.Text.Content)
		}
	}
	return b.String()
}

func correctionKey(c model.Correction) string {
	return strings.Join([]string{
		"correction",
		string(c.UtilityType),
		strings.ToUpper(c.State),
		c.ZipCode,
		strings.ToUpper(c.CanonicalProvider),
	}, "|")
}

func flaggedKey(a model.LocationAggregate) string {
	return strings.Join([]string{
		"flagged",
		string(a.Category),
		a.ZipCode,
		a.Street,
	}, "|")
}

func correctionProperties(c model.Correction, key string) notionapi.Properties {
	title := fmt.Sprintf("%s - %s %s (%s)", c.CorrectProvider, c.State, c.ZipCode, c.UtilityType)

	props := notionapi.Properties{
		"Name":          titleProp(title),
		keyProperty:     richTextProp(key),
		"Type":          richTextProp("correction"),
		"Category":      richTextProp(string(c.UtilityType)),
		"State":         richTextProp(c.State),
		"ZIP":           richTextProp(c.ZipCode),
		"Claimed":       richTextProp(c.CorrectProvider),
		"Replaces":      richTextProp(c.IncorrectProvider),
		"Confirmations": numberProp(float64(c.ConfirmationCount)),
		"Status": notionapi.StatusProperty{
			Status: notionapi.Status{Name: "Needs Review"},
		},
	}

	if c.EvidenceConfidence != nil {
		props["Evidence"] = numberProp(float64(*c.EvidenceConfidence))
	}
	if c.EvidenceNote != "" {
		props["Evidence Note"] = richTextProp(c.EvidenceNote)
	}
	return props
}

func flaggedProperties(a model.LocationAggregate, key string) notionapi.Properties {
	dominant, rate := a.Dominant()
	title := fmt.Sprintf("%s %s (%s)", a.ZipCode, a.Street, a.Category)

	names := make([]string, 0, len(a.Counts))
	for name := range a.Counts {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %d", name, a.Counts[name]))
	}

	return notionapi.Properties{
		"Name":      titleProp(title),
		keyProperty: richTextProp(key),
		"Type":      richTextProp("flagged_location"),
		"Category":  richTextProp(string(a.Category)),
		"ZIP":       richTextProp(a.ZipCode),
		"Street":    richTextProp(a.Street),
		"Observed":  richTextProp(strings.Join(parts, ", ")),
		"Dominant":  richTextProp(fmt.Sprintf("%s (%.0f%%)", dominant, rate*100)),
		"Samples":   numberProp(float64(a.SampleCount())),
		"Status": notionapi.StatusProperty{
			Status: notionapi.Status{Name: "Needs Review"},
		},
	}
}

func titleProp(s string) notionapi.TitleProperty {
	return notionapi.TitleProperty{
		Type: notionapi.PropertyTypeTitle,
		Title: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
		},
	}
}

func richTextProp(s string) notionapi.RichTextProperty {
	return notionapi.RichTextProperty{
		Type: notionapi.PropertyTypeRichText,
		RichText: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: s}},
		},
	}
}

func numberProp(n float64) notionapi.NumberProperty {
	return notionapi.NumberProperty{
		Type:   notionapi.PropertyTypeNumber,
		Number: n,
	}
}
