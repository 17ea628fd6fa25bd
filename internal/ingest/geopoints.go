package ingest

import (
	"context"
	"sort"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/boundary"
	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/provider"
	"github.com/sells-group/utility-cli/pkg/geocode"
)

// GeoLoader reads a geocoded snapshot into per-ZIP point sets for boundary
// analysis. Rows without coordinates are backfilled through the geocoder when
// one is configured, otherwise skipped.
type GeoLoader struct {
	geo   geocode.Client
	canon *provider.Canonicalizer
}

// NewGeoLoader creates a GeoLoader. geo may be nil to disable backfill.
func NewGeoLoader(geo geocode.Client, canon *provider.Canonicalizer) *GeoLoader {
	return &GeoLoader{geo: geo, canon: canon}
}

// Load parses the snapshot at source and groups its points by
// (zip, state, category). Reported providers are canonicalized so spelling
// variants of one provider never read as separate providers downstream.
// Output order is deterministic.
func (l *GeoLoader) Load(ctx context.Context, source string) ([]boundary.ZipPoints, error) {
	rc, err := Open(ctx, source)
	if err != nil {
		return nil, err
	}
	defer rc.Close() //nolint:errcheck

	rows, err := readCSV(rc)
	if err != nil {
		return nil, err
	}
	if len(rows) < 2 {
		return nil, eris.New("ingest: geocoded snapshot has no data rows")
	}

	cols, err := mapGeoHeader(rows[0])
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		zip      string
		state    string
		category model.Category
	}
	groups := make(map[groupKey][]model.GeoPoint)

	skipped := 0
	backfilled := 0
	for _, row := range rows[1:] {
		field := func(idx int) string {
			if idx < 0 || idx >= len(row) {
				return ""
			}
			return strings.TrimSpace(row[idx])
		}

		zip := field(cols.zip)
		category := model.Category(strings.ToLower(field(cols.category)))
		providerName := l.canon.Canonicalize(field(cols.provider), category)
		if !validZip(zip) || !category.Valid() || providerName == "" {
			skipped++
			continue
		}

		state := strings.ToUpper(field(cols.state))
		address := field(cols.address)

		lat, latErr := strconv.ParseFloat(field(cols.lat), 64)
		lon, lonErr := strconv.ParseFloat(field(cols.lon), 64)
		if latErr != nil || lonErr != nil {
			r, ok := l.backfill(ctx, address, field(cols.city), state, zip)
			if !ok {
				skipped++
				continue
			}
			lat, lon = r.Latitude, r.Longitude
			backfilled++
		}

		key := groupKey{zip: zip, state: state, category: category}
		groups[key] = append(groups[key], model.GeoPoint{
			Lat:              lat,
			Lon:              lon,
			Address:          address,
			ReportedProvider: providerName,
			Category:         category,
		})
	}

	out := make([]boundary.ZipPoints, 0, len(groups))
	for key, points := range groups {
		out = append(out, boundary.ZipPoints{
			ZipCode:  key.zip,
			State:    key.state,
			Category: key.category,
			Points:   points,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ZipCode != out[j].ZipCode {
			return out[i].ZipCode < out[j].ZipCode
		}
		return out[i].Category < out[j].Category
	})

	zap.L().Info("geocoded snapshot loaded",
		zap.Int("zips", len(out)),
		zap.Int("backfilled", backfilled),
		zap.Int("skipped", skipped),
	)
	return out, nil
}

// backfill geocodes one address. Misses and errors both mean the row is
// dropped, never an aborted run.
func (l *GeoLoader) backfill(ctx context.Context, address, city, state, zip string) (*geocode.Result, bool) {
	if l.geo == nil || address == "" {
		return nil, false
	}

	r, err := l.geo.Geocode(ctx, geocode.AddressInput{
		Street:  address,
		City:    city,
		State:   state,
		ZipCode: zip,
	})
	if err != nil {
		zap.L().Warn("geocode backfill failed", zap.String("address", address), zap.Error(err))
		return nil, false
	}
	if !r.Matched {
		return nil, false
	}
	return r, true
}

type geoColumnMap struct {
	zip      int
	state    int
	category int
	provider int
	address  int
	city     int
	lat      int
	lon      int
}

func mapGeoHeader(header []string) (geoColumnMap, error) {
	cols := geoColumnMap{zip: -1, state: -1, category: -1, provider: -1, address: -1, city: -1, lat: -1, lon: -1}

	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "zip", "zip_code", "zipcode":
			cols.zip = i
		case "state":
			cols.state = i
		case "category", "utility_type", "type":
			cols.category = i
		case "provider", "provider_name", "utility_provider":
			cols.provider = i
		case "address", "service_address":
			cols.address = i
		case "city":
			cols.city = i
		case "lat", "latitude":
			cols.lat = i
		case "lon", "lng", "longitude":
			cols.lon = i
		}
	}

	if cols.zip < 0 || cols.category < 0 || cols.provider < 0 {
		return cols, eris.Errorf("ingest: geocoded header missing required columns (have %v)", header)
	}
	return cols, nil
}
