package export

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"testing"
	"time"

	"quant-observer/src/models"

	"github.com/parquet-go/parquet-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var base = time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

func sampleTicks() []models.MTick {
	return []models.MTick{
		{Symbol: "BTC/USD", Price: 45000.5, Volume: 12.25, Timestamp: base},
		{Symbol: "BTC/USD", Price: 45010, Timestamp: base.Add(1500 * time.Millisecond)},
	}
}

func TestNewSnapshotSaver(t *testing.T) {
	assert.IsType(t, CSVSaver{}, NewSnapshotSaver("csv"))
	assert.IsType(t, JSONSaver{}, NewSnapshotSaver(" JSON "))
	assert.IsType(t, ParquetSaver{}, NewSnapshotSaver("parquet"))
	assert.Nil(t, NewSnapshotSaver("xlsx"))

	for _, f := range Formats {
		s := NewSnapshotSaver(f)
		require.NotNil(t, s, f)
		assert.Equal(t, f, s.Extension())
		assert.NotEmpty(t, s.ContentType())
	}
}

func TestCSVSaver(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, CSVSaver{}.Save(&buf, sampleTicks()))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"timestamp", "symbol", "price", "volume"}, records[0])
	assert.Equal(t, []string{"1767323045000", "BTC/USD", "45000.5", "12.25"}, records[1])
	assert.Equal(t, "1767323046500", records[2][0])
	assert.Equal(t, "0", records[2][3])
}

func TestJSONSaver(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, JSONSaver{}.Save(&buf, sampleTicks()))

	var rows []TickRow
	require.NoError(t, json.Unmarshal(buf.Bytes(), &rows))
	assert.Equal(t, toRows(sampleTicks()), rows)

	buf.Reset()
	require.NoError(t, JSONSaver{}.Save(&buf, nil))
	assert.JSONEq(t, "[]", buf.String())
}

func TestParquetSaver(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, ParquetSaver{}.Save(&buf, sampleTicks()))

	rows, err := parquet.Read[TickRow](bytes.NewReader(buf.Bytes()), int64(buf.Len()))
	require.NoError(t, err)
	assert.Equal(t, toRows(sampleTicks()), rows)
}

func TestFileName(t *testing.T) {
	assert.Equal(t, "btcusd_20260102T030405.csv", FileName("BTC/USD", base, CSVSaver{}))
	assert.Equal(t, "ticks_20260102T030405.parquet", FileName("", base, ParquetSaver{}))
}
