package export

import (
	"encoding/json"
	"io"

	"quant-observer/src/models"
)

// JSONSaver writes the snapshot as an indented array.
type JSONSaver struct{}

func (JSONSaver) Extension() string   { return "json" }
func (JSONSaver) ContentType() string { return "application/json" }

func (JSONSaver) Save(w io.Writer, ticks []models.MTick) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(toRows(ticks))
}
