package export

import (
	"io"
	"strings"
	"time"

	"quant-observer/src/models"
)

// SnapshotSaver writes a tick snapshot in one download format.
type SnapshotSaver interface {
	Save(w io.Writer, ticks []models.MTick) error
	Extension() string
	ContentType() string
}

// Formats lists the accepted values for NewSnapshotSaver.
var Formats = []string{"csv", "json", "parquet"}

// NewSnapshotSaver returns the saver for format (csv, json, parquet).
// It returns nil for anything else.
func NewSnapshotSaver(format string) SnapshotSaver {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "csv":
		return CSVSaver{}
	case "json":
		return JSONSaver{}
	case "parquet":
		return ParquetSaver{}
	default:
		return nil
	}
}

// -----------------------------------------------------------------------------

// TickRow is the flat row shared by every format. Timestamp is unix millis.
type TickRow struct {
	Timestamp int64   `json:"timestamp" parquet:"timestamp"`
	Symbol    string  `json:"symbol" parquet:"symbol,dict"`
	Price     float64 `json:"price" parquet:"price"`
	Volume    float64 `json:"volume" parquet:"volume"`
}

func toRows(ticks []models.MTick) []TickRow {
	rows := make([]TickRow, len(ticks))
	for i, t := range ticks {
		rows[i] = TickRow{
			Timestamp: t.Timestamp.UnixMilli(),
			Symbol:    t.Symbol,
			Price:     t.Price,
			Volume:    t.Volume,
		}
	}
	return rows
}

// FileName builds the attachment name for a snapshot taken at `at`.
func FileName(symbol string, at time.Time, s SnapshotSaver) string {
	name := strings.NewReplacer("/", "", " ", "").Replace(strings.ToLower(symbol))
	if name == "" {
		name = "ticks"
	}
	return name + "_" + at.UTC().Format("20060102T150405") + "." + s.Extension()
}
