package ingest

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/provider"
	"github.com/sells-group/utility-cli/pkg/geocode"
)

func newGeoLoader(t *testing.T, geo geocode.Client) *GeoLoader {
	t.Helper()
	canon, err := provider.New()
	require.NoError(t, err)
	return NewGeoLoader(geo, canon)
}

const geoCSV = `zip_code,state,utility_type,provider,address,city,lat,lon
75201,TX,electric,Oncor,100 Main St,Dallas,32.7800,-96.8000
75201,TX,electric,TXU Energy,200 Oak Ave,Dallas,32.7600,-96.8000
75201,TX,gas,Atmos Energy,100 Main St,Dallas,32.7800,-96.8000
75202,TX,electric,Oncor,300 Elm St,Dallas,32.7700,-96.8100
75201,TX,electric,Oncor,400 Pine St,Dallas,,
`

type fakeGeocoder struct {
	result *geocode.Result
	calls  int
}

func (f *fakeGeocoder) Geocode(_ context.Context, _ geocode.AddressInput) (*geocode.Result, error) {
	f.calls++
	return f.result, nil
}

func (f *fakeGeocoder) GeocodeBatch(_ context.Context, _ []geocode.AddressInput) ([]geocode.Result, error) {
	return nil, nil
}

func TestGeoLoaderGroupsByZipAndCategory(t *testing.T) {
	loader := newGeoLoader(t, nil)

	zips, err := loader.Load(context.Background(), writeSnapshot(t, "geo.csv", geoCSV))
	require.NoError(t, err)

	// 75201/electric, 75201/gas, 75202/electric. The coordinate-less row is
	// dropped without a geocoder.
	require.Len(t, zips, 3)
	assert.Equal(t, "75201", zips[0].ZipCode)
	assert.Equal(t, model.CategoryElectric, zips[0].Category)
	assert.Len(t, zips[0].Points, 2)
	assert.Equal(t, model.CategoryGas, zips[1].Category)
	assert.Equal(t, "75202", zips[2].ZipCode)
	assert.Equal(t, "TX", zips[2].State)
}

func TestGeoLoaderBackfillsMissingCoordinates(t *testing.T) {
	geo := &fakeGeocoder{result: &geocode.Result{
		Latitude:  32.7900,
		Longitude: -96.7900,
		Quality:   "rooftop",
		Matched:   true,
	}}
	loader := newGeoLoader(t, geo)

	zips, err := loader.Load(context.Background(), writeSnapshot(t, "geo.csv", geoCSV))
	require.NoError(t, err)

	assert.Equal(t, 1, geo.calls)
	require.Len(t, zips, 3)
	assert.Len(t, zips[0].Points, 3, "backfilled point joins its group")
}

func TestGeoLoaderSkipsUnmatchedBackfill(t *testing.T) {
	geo := &fakeGeocoder{result: &geocode.Result{Matched: false}}
	loader := newGeoLoader(t, geo)

	zips, err := loader.Load(context.Background(), writeSnapshot(t, "geo.csv", geoCSV))
	require.NoError(t, err)

	assert.Equal(t, 1, geo.calls)
	assert.Len(t, zips[0].Points, 2)
}

func TestGeoLoaderCollapsesProviderSpellings(t *testing.T) {
	// Two spellings of Oncor plus an alias. Read verbatim they would look
	// like three providers in one ZIP; canonicalized they are one.
	const csv = `zip_code,state,utility_type,provider,address,city,lat,lon
75203,TX,electric,Oncor,100 Main St,Dallas,32.7800,-96.8000
75203,TX,electric,ONCOR ELECTRIC DELIVERY,200 Oak Ave,Dallas,32.7600,-96.8000
75203,TX,electric,Oncor Electric,300 Elm St,Dallas,32.7700,-96.8100
`
	loader := newGeoLoader(t, nil)

	zips, err := loader.Load(context.Background(), writeSnapshot(t, "geo.csv", csv))
	require.NoError(t, err)

	require.Len(t, zips, 1)
	require.Len(t, zips[0].Points, 3)
	for _, p := range zips[0].Points {
		assert.Equal(t, "Oncor", p.ReportedProvider,
			"spelling variants must collapse to the canonical provider")
	}
}

func TestMapGeoHeaderMissingColumns(t *testing.T) {
	_, err := mapGeoHeader([]string{"zip_code", "lat", "lon"})
	assert.ErrorContains(t, err, "missing required columns")
}
