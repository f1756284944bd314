package data

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/sarchlab/gossiplearn/model"
)

// LoadCSV reads a headerless numeric CSV. The column at labelCol holds the
// label; a negative labelCol counts from the end, so -1 is the last column.
func LoadCSV(r io.Reader, labelCol int) (*model.Dataset, error) {
	reader := csv.NewReader(r)
	reader.ReuseRecord = true

	ds := &model.Dataset{}

	for line := 1; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("reading line %d: %w", line, err)
		}

		col := labelCol
		if col < 0 {
			col += len(record)
		}

		if col < 0 || col >= len(record) {
			return nil, fmt.Errorf("%w: line %d has no label column %d",
				ErrInvalidSplit, line, labelCol)
		}

		x := make([]float64, 0, len(record)-1)
		var y float64

		for i, field := range record {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("line %d column %d: %w", line, i, err)
			}

			if i == col {
				y = v
				continue
			}

			x = append(x, v)
		}

		ds.X = append(ds.X, x)
		ds.Y = append(ds.Y, y)
	}

	return ds, nil
}
