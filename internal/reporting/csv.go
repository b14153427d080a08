package reporting

import (
	"encoding/csv"
	"fmt"
	"io"
)

// WriteOperationsCSV writes the operation journal rows as CSV.
func WriteOperationsCSV(w io.Writer, rows []OperationRow) error {
	records := make([][]interface{}, len(rows))
	for i, r := range rows {
		records[i] = r.values()
	}
	return writeCSV(w, operationHeaders, records)
}

// WriteActivityCSV writes contract activity rows as CSV.
func WriteActivityCSV(w io.Writer, rows []ActivityRow) error {
	records := make([][]interface{}, len(rows))
	for i, r := range rows {
		records[i] = r.values()
	}
	return writeCSV(w, activityHeaders, records)
}

func writeCSV(w io.Writer, headers []string, records [][]interface{}) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(headers); err != nil {
		return err
	}
	row := make([]string, len(headers))
	for _, rec := range records {
		for i, v := range rec {
			row[i] = fmt.Sprint(v)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
