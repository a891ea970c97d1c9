package export

import (
	"io"

	"quant-observer/src/models"

	"github.com/parquet-go/parquet-go"
)

// ParquetSaver writes the snapshot as a single parquet file.
type ParquetSaver struct{}

func (ParquetSaver) Extension() string   { return "parquet" }
func (ParquetSaver) ContentType() string { return "application/vnd.apache.parquet" }

func (ParquetSaver) Save(w io.Writer, ticks []models.MTick) error {
	return parquet.Write(w, toRows(ticks))
}
