package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/store"
)

const snapshotCSV = `address,city,state,zip_code,utility_type,provider,reported_at
100 Main St,Dallas,TX,75201,electric,Oncor Electric Delivery,2026-01-15
102 Main St,Dallas,TX,75201,electric,ONCOR,2026-01-16
200 Oak Ave,Dallas,TX,75201,gas,Atmos Energy,2026-01-17
bad row,,XX,abc,electric,,
300 Elm St,Dallas,TX,75201,cable,Spectrum,2026-01-18
`

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLite(filepath.Join(t.TempDir(), "ingest.db"))
	require.NoError(t, err)
	require.NoError(t, st.Migrate(context.Background()))
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func writeSnapshot(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestRunIngestsCSVFile(t *testing.T) {
	st := newTestStore(t)
	ing := New(st)

	stats, err := ing.Run(context.Background(), writeSnapshot(t, "snap.csv", snapshotCSV))
	require.NoError(t, err)

	assert.Equal(t, 5, stats.Rows)
	assert.Equal(t, 3, stats.Inserted, "invalid zip and unknown category rows are skipped")
	assert.Equal(t, 2, stats.Skipped)

	obs, err := st.ListObservations(context.Background(), store.ObservationFilter{ZipCode: "75201"})
	require.NoError(t, err)
	assert.Len(t, obs, 3)
}

func TestRunIngestsFromHTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(snapshotCSV))
	}))
	defer srv.Close()

	st := newTestStore(t)
	stats, err := New(st).Run(context.Background(), srv.URL+"/snapshot.csv")
	require.NoError(t, err)
	assert.Equal(t, 3, stats.Inserted)
}

func TestRunRejectsHeaderOnly(t *testing.T) {
	st := newTestStore(t)
	_, err := New(st).Run(context.Background(), writeSnapshot(t, "empty.csv", "address,zip_code,utility_type,provider\n"))
	assert.Error(t, err)
}

func TestMapHeaderMissingColumns(t *testing.T) {
	_, err := mapHeader([]string{"address", "city", "state"})
	assert.ErrorContains(t, err, "missing required columns")
}

func TestParseRow(t *testing.T) {
	cols, err := mapHeader([]string{"address", "street", "zip_code", "utility_type", "provider"})
	require.NoError(t, err)

	tests := []struct {
		name string
		row  []string
		ok   bool
	}{
		{"valid", []string{"100 Main St", "Main St", "75201", "electric", "Oncor"}, true},
		{"short zip", []string{"100 Main St", "Main St", "7520", "electric", "Oncor"}, false},
		{"bad category", []string{"100 Main St", "Main St", "75201", "internet", "Oncor"}, false},
		{"no provider", []string{"100 Main St", "Main St", "75201", "electric", ""}, false},
		{"short row tolerated", []string{"100 Main St", "Main St", "75201", "electric"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs, ok := parseRow(cols, tt.row)
			assert.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, model.CategoryElectric, obs.Category)
				assert.NotEmpty(t, obs.ID)
			}
		})
	}
}

func TestParseRowDerivesStreet(t *testing.T) {
	cols, err := mapHeader([]string{"address", "zip_code", "utility_type", "provider"})
	require.NoError(t, err)

	obs, ok := parseRow(cols, []string{"4512 N Lamar Blvd", "78751", "electric", "Austin Energy"})
	require.True(t, ok)
	assert.Equal(t, "N Lamar Blvd", obs.Street)
}

func TestStreetFromAddress(t *testing.T) {
	assert.Equal(t, "Main St", streetFromAddress("100 Main St"))
	assert.Equal(t, "Old Mill Road", streetFromAddress("Old Mill Road"))
	assert.Equal(t, "X", streetFromAddress("X"))
}

func TestParseTimestamp(t *testing.T) {
	got, err := parseTimestamp("2026-01-15")
	require.NoError(t, err)
	assert.Equal(t, 2026, got.Year())

	got, err = parseTimestamp("01/15/2026")
	require.NoError(t, err)
	assert.Equal(t, 15, got.Day())

	_, err = parseTimestamp("yesterday")
	assert.Error(t, err)
}
