package notion

import (
	"context"
	"testing"

	"github.com/jomei/notionapi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/utility-cli/internal/model"
)

// fakeClient serves canned query pages and records created pages.
type fakeClient struct {
	pages   []notionapi.Page
	created []*notionapi.PageCreateRequest
	queries int
}

func (f *fakeClient) QueryDatabase(_ context.Context, _ string, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error) {
	f.queries++

	// Two-page pagination when a cursor round trip is wanted.
	if req.StartCursor == "" && len(f.pages) > 1 {
		return &notionapi.DatabaseQueryResponse{
			Results:    f.pages[:1],
			HasMore:    true,
			NextCursor: notionapi.Cursor("page2"),
		}, nil
	}
	if req.StartCursor == "page2" {
		return &notionapi.DatabaseQueryResponse{Results: f.pages[1:]}, nil
	}
	return &notionapi.DatabaseQueryResponse{Results: f.pages}, nil
}

func (f *fakeClient) CreatePage(_ context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error) {
	f.created = append(f.created, req)
	return &notionapi.Page{ID: "new-page"}, nil
}

func pageWithKey(key string) notionapi.Page {
	return notionapi.Page{
		Properties: notionapi.Properties{
			keyProperty: &notionapi.RichTextProperty{
				RichText: []notionapi.RichText{{PlainText: key}},
			},
		},
	}
}

func pendingCorrection(zip, provider string) model.Correction {
	return model.Correction{
		ID:                "c-" + zip,
		UtilityType:       model.CategoryElectric,
		CorrectProvider:   provider,
		CanonicalProvider: provider,
		State:             "TX",
		ZipCode:           zip,
		IncorrectProvider: "TXU Energy",
		ConfirmationCount: 2,
		Status:            model.CorrectionPending,
	}
}

func TestExportCorrectionsCreatesPages(t *testing.T) {
	fc := &fakeClient{}

	n, err := ExportCorrections(context.Background(), fc, "db1", []model.Correction{
		pendingCorrection("75201", "Oncor"),
		pendingCorrection("75202", "Oncor"),
	})

	require.NoError(t, err)
	assert.Equal(t, 2, n)
	require.Len(t, fc.created, 2)

	props := fc.created[0].Properties
	title := props["Name"].(notionapi.TitleProperty)
	assert.Equal(t, "Oncor - TX 75201 (electric)", title.Title[0].Text.Content)
	key := props[keyProperty].(notionapi.RichTextProperty)
	assert.Equal(t, "correction|electric|TX|75201|ONCOR", key.RichText[0].Text.Content)
	count := props["Confirmations"].(notionapi.NumberProperty)
	assert.Equal(t, float64(2), count.Number)
}

func TestExportCorrectionsSkipsExistingAndNonPending(t *testing.T) {
	fc := &fakeClient{pages: []notionapi.Page{
		pageWithKey("correction|electric|TX|75201|ONCOR"),
	}}

	verified := pendingCorrection("75203", "Oncor")
	verified.Status = model.CorrectionVerified

	n, err := ExportCorrections(context.Background(), fc, "db1", []model.Correction{
		pendingCorrection("75201", "Oncor"), // already exported
		verified,                            // not pending
		pendingCorrection("75202", "Oncor"), // new
	})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	require.Len(t, fc.created, 1)
	key := fc.created[0].Properties[keyProperty].(notionapi.RichTextProperty)
	assert.Equal(t, "correction|electric|TX|75202|ONCOR", key.RichText[0].Text.Content)
}

func TestExportCorrectionsIncludesEvidence(t *testing.T) {
	fc := &fakeClient{}
	conf := 85
	cor := pendingCorrection("75201", "Oncor")
	cor.EvidenceConfidence = &conf
	cor.EvidenceNote = "1 positive signal, 0 negative"

	_, err := ExportCorrections(context.Background(), fc, "db1", []model.Correction{cor})
	require.NoError(t, err)
	require.Len(t, fc.created, 1)

	props := fc.created[0].Properties
	assert.Equal(t, float64(85), props["Evidence"].(notionapi.NumberProperty).Number)
	note := props["Evidence Note"].(notionapi.RichTextProperty)
	assert.Equal(t, "1 positive signal, 0 negative", note.RichText[0].Text.Content)
}

func TestExportFlagged(t *testing.T) {
	fc := &fakeClient{}

	n, err := ExportFlagged(context.Background(), fc, "db1", []model.LocationAggregate{
		{
			ZipCode:  "75201",
			Street:   "MAIN STREET",
			Category: model.CategoryElectric,
			Counts:   map[string]int{"Oncor": 3, "TXU Energy": 2},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, 1, n)
	props := fc.created[0].Properties
	observed := props["Observed"].(notionapi.RichTextProperty)
	assert.Equal(t, "Oncor: 3, TXU Energy: 2", observed.RichText[0].Text.Content)
	dominant := props["Dominant"].(notionapi.RichTextProperty)
	assert.Equal(t, "Oncor (60%)", dominant.RichText[0].Text.Content)
	assert.Equal(t, float64(5), props["Samples"].(notionapi.NumberProperty).Number)
}

func TestQueryAllPaginates(t *testing.T) {
	fc := &fakeClient{pages: []notionapi.Page{
		pageWithKey("k1"),
		pageWithKey("k2"),
	}}

	pages, err := QueryAll(context.Background(), fc, "db1", nil)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, 2, fc.queries)
}
