// Package territory answers "which provider serves this coordinate" from a
// service-territory shapefile. It is the independent source the boundary
// analyzer validates against, never an authority on its own.
package territory

import (
	"context"
	"strings"

	"github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom"
	"github.com/twpayne/go-geom/xy"
	"go.uber.org/zap"
)

// Config names the shapefile and its attribute columns.
type Config struct {
	Path       string
	NameField  string // provider name attribute
	StateField string // two-letter state attribute; optional
}

// Index holds the loaded territories in memory. Read-only after load.
type Index struct {
	entries []entry
}

type entry struct {
	name  string
	state string
	rings [][]float64 // flat XY rings, one per polygon part
	box   shp.Box
}

// Load reads the shapefile into an in-memory index.
func Load(cfg Config) (*Index, error) {
	reader, err := shp.Open(cfg.Path)
	if err != nil {
		return nil, eris.Wrapf(err, "territory: open shapefile %s", cfg.Path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, cfg.NameField)
	if nameIdx < 0 {
		return nil, eris.Errorf("territory: field %q not found in %s", cfg.NameField, cfg.Path)
	}
	stateIdx := -1
	if cfg.StateField != "" {
		stateIdx = fieldIndex(reader, cfg.StateField)
	}

	idx := &Index{}
	skipped := 0
	for reader.Next() {
		_, shape := reader.Shape()
		poly, ok := shape.(*shp.Polygon)
		if !ok || poly.NumParts == 0 || len(poly.Points) == 0 {
			skipped++
			continue
		}

		name := strings.TrimSpace(reader.Attribute(nameIdx))
		if name == "" {
			skipped++
			continue
		}
		state := ""
		if stateIdx >= 0 {
			state = strings.ToUpper(strings.TrimSpace(reader.Attribute(stateIdx)))
		}

		idx.entries = append(idx.entries, entry{
			name:  name,
			state: state,
			rings: polygonRings(poly),
			box:   poly.Box,
		})
	}
	if err := reader.Err(); err != nil {
		return nil, eris.Wrapf(err, "territory: read shapefile %s", cfg.Path)
	}

	zap.L().Info("territory index loaded",
		zap.String("path", cfg.Path),
		zap.Int("territories", len(idx.entries)),
		zap.Int("skipped", skipped))
	return idx, nil
}

// Lookup returns the provider whose territory contains the coordinate, or ""
// when no territory matches. state narrows the candidates when present.
func (idx *Index) Lookup(_ context.Context, lat, lon float64, state string) (string, error) {
	state = strings.ToUpper(strings.TrimSpace(state))
	p := geom.Coord{lon, lat}

	for _, e := range idx.entries {
		if state != "" && e.state != "" && e.state != state {
			continue
		}
		if lon < e.box.MinX || lon > e.box.MaxX || lat < e.box.MinY || lat > e.box.MaxY {
			continue
		}
		for _, ring := range e.rings {
			if xy.IsPointInRing(geom.XY, p, ring) {
				return e.name, nil
			}
		}
	}
	return "", nil
}

// Size reports how many territories are indexed.
func (idx *Index) Size() int {
	return len(idx.entries)
}

// polygonRings flattens each shapefile part into a closed XY ring.
func polygonRings(p *shp.Polygon) [][]float64 {
	rings := make([][]float64, 0, p.NumParts)
	for i := int32(0); i < p.NumParts; i++ {
		start := p.Parts[i]
		end := int32(len(p.Points))
		if i+1 < p.NumParts {
			end = p.Parts[i+1]
		}

		ring := make([]float64, 0, (end-start+1)*2)
		for j := start; j < end; j++ {
			ring = append(ring, p.Points[j].X, p.Points[j].Y)
		}
		// Close the ring if the shapefile left it open.
		if len(ring) >= 2 && (ring[0] != ring[len(ring)-2] || ring[1] != ring[len(ring)-1]) {
			ring = append(ring, ring[0], ring[1])
		}
		rings = append(rings, ring)
	}
	return rings
}

func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
