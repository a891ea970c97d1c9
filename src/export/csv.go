package export

import (
	"encoding/csv"
	"io"
	"strconv"

	"quant-observer/src/models"
)

// CSVSaver writes a header line followed by one row per tick.
type CSVSaver struct{}

func (CSVSaver) Extension() string   { return "csv" }
func (CSVSaver) ContentType() string { return "text/csv" }

func (CSVSaver) Save(w io.Writer, ticks []models.MTick) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"timestamp", "symbol", "price", "volume"}); err != nil {
		return err
	}
	for _, r := range toRows(ticks) {
		record := []string{
			strconv.FormatInt(r.Timestamp, 10),
			r.Symbol,
			strconv.FormatFloat(r.Price, 'f', -1, 64),
			strconv.FormatFloat(r.Volume, 'f', -1, 64),
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
