package store

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/rickgao/ohlcv-gatherer/internal/model"
)

// Header is the column header of every series file.
var Header = []string{"epoch", "low", "high", "open", "close", "volume", "datetime"}

const numColumns = 7

// encodeRows renders rows (and optionally the header) as one CSV buffer.
func encodeRows(rows []model.Row, withHeader bool) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if withHeader {
		if err := w.Write(Header); err != nil {
			return nil, err
		}
	}
	record := make([]string, numColumns)
	for _, r := range rows {
		record[0] = strconv.FormatInt(r.Epoch, 10)
		record[1] = formatNull(r.Low)
		record[2] = formatNull(r.High)
		record[3] = formatNull(r.Open)
		record[4] = formatNull(r.Close)
		record[5] = formatNull(r.Volume)
		record[6] = r.Datetime
		if record[6] == "" {
			record[6] = model.EpochDatetime(r.Epoch)
		}
		if err := w.Write(record); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func formatNull(d decimal.NullDecimal) string {
	if !d.Valid {
		return ""
	}
	return d.Decimal.String()
}

func isHeader(record []string) bool {
	return len(record) > 0 && record[0] == Header[0]
}

// decodeRow parses one data record.
func decodeRow(record []string) (model.Row, error) {
	if len(record) != numColumns {
		return model.Row{}, fmt.Errorf("%w: %d columns, want %d", ErrCorrupt, len(record), numColumns)
	}
	epoch, err := strconv.ParseInt(record[0], 10, 64)
	if err != nil {
		return model.Row{}, fmt.Errorf("%w: epoch %q", ErrCorrupt, record[0])
	}

	row := model.Row{Epoch: epoch, Datetime: record[6]}
	fields := []*decimal.NullDecimal{&row.Low, &row.High, &row.Open, &row.Close, &row.Volume}
	for i, f := range fields {
		v := record[i+1]
		if v == "" {
			continue
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			return model.Row{}, fmt.Errorf("%w: %s %q at epoch %d", ErrCorrupt, Header[i+1], v, epoch)
		}
		*f = decimal.NewNullDecimal(d)
	}
	if row.Datetime == "" {
		row.Datetime = model.EpochDatetime(epoch)
	}
	return row, nil
}

// decodeLine parses a single CSV line.
func decodeLine(line []byte) ([]string, error) {
	r := csv.NewReader(bytes.NewReader(line))
	r.FieldsPerRecord = -1
	record, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return record, nil
}
