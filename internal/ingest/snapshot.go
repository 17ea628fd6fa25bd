package ingest

import (
	"context"
	"encoding/csv"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/store"
)

// insertBatchSize bounds the number of observations per store write.
const insertBatchSize = 500

// Stats summarizes one ingest run. Skipped rows are counted, never fatal.
type Stats struct {
	Rows     int `json:"rows"`
	Inserted int `json:"inserted"`
	Skipped  int `json:"skipped"`
}

// Ingestor parses snapshot rows and writes observations to the store.
type Ingestor struct {
	store store.Store
}

// New creates an Ingestor.
func New(st store.Store) *Ingestor {
	return &Ingestor{store: st}
}

// Run ingests a snapshot from source, which may be a local CSV or XLSX file,
// an http(s) URL, or an ftp URL.
func (g *Ingestor) Run(ctx context.Context, source string) (Stats, error) {
	rc, err := Open(ctx, source)
	if err != nil {
		return Stats{}, err
	}
	defer rc.Close() //nolint:errcheck

	var rows [][]string
	if strings.HasSuffix(strings.ToLower(strings.TrimSuffix(source, "/")), ".xlsx") {
		rows, err = readXLSX(rc)
	} else {
		rows, err = readCSV(rc)
	}
	if err != nil {
		return Stats{}, err
	}

	return g.insertRows(ctx, rows)
}

func (g *Ingestor) insertRows(ctx context.Context, rows [][]string) (Stats, error) {
	if len(rows) < 2 {
		return Stats{}, eris.New("ingest: snapshot has no data rows")
	}

	cols, err := mapHeader(rows[0])
	if err != nil {
		return Stats{}, err
	}

	var (
		stats Stats
		batch []model.Observation
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := g.store.InsertObservations(ctx, batch)
		if err != nil {
			return eris.Wrap(err, "ingest: insert batch")
		}
		stats.Inserted += n
		batch = batch[:0]
		return nil
	}

	for _, row := range rows[1:] {
		stats.Rows++

		obs, ok := parseRow(cols, row)
		if !ok {
			stats.Skipped++
			continue
		}

		batch = append(batch, obs)
		if len(batch) >= insertBatchSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}

	if err := flush(); err != nil {
		return stats, err
	}

	zap.L().Info("snapshot ingested",
		zap.Int("rows", stats.Rows),
		zap.Int("inserted", stats.Inserted),
		zap.Int("skipped", stats.Skipped),
	)
	return stats, nil
}

// columnMap holds the resolved index of each snapshot column. Street and
// reported_at are optional; street falls back to the address line.
type columnMap struct {
	address  int
	street   int
	city     int
	state    int
	zip      int
	category int
	provider int
	reported int
}

func mapHeader(header []string) (columnMap, error) {
	cols := columnMap{address: -1, street: -1, city: -1, state: -1, zip: -1, category: -1, provider: -1, reported: -1}

	for i, h := range header {
		switch strings.ToLower(strings.TrimSpace(h)) {
		case "address", "service_address":
			cols.address = i
		case "street", "street_name":
			cols.street = i
		case "city":
			cols.city = i
		case "state":
			cols.state = i
		case "zip", "zip_code", "zipcode":
			cols.zip = i
		case "category", "utility_type", "type":
			cols.category = i
		case "provider", "provider_name", "utility_provider":
			cols.provider = i
		case "reported_at", "reported", "date":
			cols.reported = i
		}
	}

	if cols.address < 0 || cols.zip < 0 || cols.category < 0 || cols.provider < 0 {
		return cols, eris.Errorf("ingest: snapshot header missing required columns (have %v)", header)
	}
	return cols, nil
}

func parseRow(cols columnMap, row []string) (model.Observation, bool) {
	field := func(idx int) string {
		if idx < 0 || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	obs := model.Observation{
		ID:              uuid.NewString(),
		Address:         field(cols.address),
		Street:          field(cols.street),
		City:            field(cols.city),
		State:           strings.ToUpper(field(cols.state)),
		ZipCode:         field(cols.zip),
		Category:        model.Category(strings.ToLower(field(cols.category))),
		RawProviderName: field(cols.provider),
		ReportedAt:      time.Now().UTC(),
	}

	if obs.Street == "" {
		obs.Street = streetFromAddress(obs.Address)
	}
	if ts := field(cols.reported); ts != "" {
		if parsed, err := parseTimestamp(ts); err == nil {
			obs.ReportedAt = parsed
		}
	}

	if obs.Address == "" || obs.RawProviderName == "" {
		return obs, false
	}
	if !obs.Category.Valid() {
		return obs, false
	}
	if !validZip(obs.ZipCode) {
		return obs, false
	}
	return obs, true
}

// streetFromAddress drops a leading house number so rows without an explicit
// street column still group by street.
func streetFromAddress(address string) string {
	fields := strings.Fields(address)
	if len(fields) < 2 {
		return address
	}
	if isDigits(fields[0]) {
		return strings.Join(fields[1:], " ")
	}
	return address
}

func parseTimestamp(s string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02", "01/02/2006"} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, eris.Errorf("ingest: unparseable timestamp %q", s)
}

func validZip(zip string) bool {
	return len(zip) == 5 && isDigits(zip)
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func readCSV(r io.Reader) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read csv")
	}
	return rows, nil
}

func readXLSX(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: read xlsx body")
	}

	f, err := xlsx.OpenBinary(data)
	if err != nil {
		return nil, eris.Wrap(err, "ingest: open xlsx")
	}
	if len(f.Sheets) == 0 {
		return nil, eris.New("ingest: xlsx has no sheets")
	}

	sheet := f.Sheets[0]
	rows := make([][]string, 0, len(sheet.Rows))
	for _, row := range sheet.Rows {
		cells := make([]string, len(row.Cells))
		for j, cell := range row.Cells {
			cells[j] = cell.String()
		}
		rows = append(rows, cells)
	}
	return rows, nil
}
