package reporting

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the XLSX workbook.
const (
	SheetSummary    = "Summary"
	SheetOperations = "Operations"
	SheetActivity   = "Activity"
	SheetActions    = "Actions"
)

// WriteXLSX writes the report as a workbook with one sheet per section.
func WriteXLSX(w io.Writer, r *Report) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		return err
	}
	summary := [][]interface{}{
		{"Generated", formatTime(r.GeneratedAt)},
		{"Network", r.Network},
		{"Operations", r.Summary.TotalOperations},
		{"Confirmed", r.Summary.Confirmed},
		{"Rejected", r.Summary.Rejected},
		{"Timed Out", r.Summary.TimedOut},
		{"In Flight", r.Summary.InFlight},
		{"Events", r.Summary.TotalEvents},
		{"First Ledger", r.Summary.FirstLedger},
		{"Last Ledger", r.Summary.LastLedger},
	}
	if err := writeRows(f, SheetSummary, 1, summary); err != nil {
		return err
	}

	ops := make([][]interface{}, len(r.Operations))
	for i, o := range r.Operations {
		ops[i] = o.values()
	}
	if err := writeSheet(f, SheetOperations, operationHeaders, ops); err != nil {
		return err
	}

	activity := make([][]interface{}, len(r.Activity))
	for i, a := range r.Activity {
		activity[i] = a.values()
	}
	if err := writeSheet(f, SheetActivity, activityHeaders, activity); err != nil {
		return err
	}

	actions := make([][]interface{}, len(r.ActionCounts))
	for i, a := range r.ActionCounts {
		actions[i] = []interface{}{a.Contract, a.Action, a.Count}
	}
	if err := writeSheet(f, SheetActions, []string{"contract", "action", "count"}, actions); err != nil {
		return err
	}

	f.SetActiveSheet(0)
	return f.Write(w)
}

func writeSheet(f *excelize.File, sheet string, headers []string, rows [][]interface{}) error {
	if _, err := f.NewSheet(sheet); err != nil {
		return fmt.Errorf("new sheet %s: %w", sheet, err)
	}
	header := make([]interface{}, len(headers))
	for i, h := range headers {
		header[i] = h
	}
	if err := writeRows(f, sheet, 1, [][]interface{}{header}); err != nil {
		return err
	}
	return writeRows(f, sheet, 2, rows)
}

func writeRows(f *excelize.File, sheet string, start int, rows [][]interface{}) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, start+i)
		if err != nil {
			return err
		}
		row := row
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, start+i, err)
		}
	}
	return nil
}
