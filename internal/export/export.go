// Package export renders an insight snapshot as CSV or XLSX for download.
// Every unknown value renders as "--".
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/couchcryptid/heat-insight-engine/internal/domain"
)

// Unknown is the placeholder written for missing values.
const Unknown = "--"

// Formats accepted by Write.
const (
	FormatCSV  = "csv"
	FormatXLSX = "xlsx"
)

// ContentType returns the MIME type for format.
func ContentType(format string) string {
	if format == FormatXLSX {
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	}
	return "text/csv; charset=utf-8"
}

// Sheet is one table of an export.
type Sheet struct {
	Name   string
	Header []string
	Rows   [][]any
}

// Sheets lays out snap as a summary table followed by the hourly, daily and
// forecast series.
func Sheets(snap domain.InsightSnapshot) []Sheet {
	return []Sheet{summarySheet(snap), hourlySheet(snap), dailySheet(snap), forecastSheet(snap)}
}

func summarySheet(snap domain.InsightSnapshot) Sheet {
	var latest, latestAt any = Unknown, Unknown
	if snap.Latest != nil {
		latest = snap.Latest.HeatIndexC
		latestAt = snap.Latest.Timestamp
	}
	var peak, peakAt any = Unknown, Unknown
	if snap.Peak != nil {
		peak = snap.Peak.Value
		peakAt = snap.Peak.Timestamp
	}
	var population, classification any = Unknown, Unknown
	if snap.Demographic != nil {
		population = count(snap.Demographic.Population2020)
		if snap.Demographic.Classification != "" {
			classification = snap.Demographic.Classification
		}
	}
	var load any = Unknown
	if snap.CoolingCenterLoadPct != nil {
		load = *snap.CoolingCenterLoadPct
	}

	return Sheet{
		Name:   "Summary",
		Header: []string{"Field", "Value"},
		Rows: [][]any{
			{"Locality", snap.Locality},
			{"Generated at", snap.GeneratedAt},
			{"Window (days)", snap.WindowDays},
			{"Risk level", snap.RiskLevel.String()},
			{"Risk label", snap.RiskLabel},
			{"Latest heat index (°C)", latest},
			{"Latest reading at", latestAt},
			{"Weekly average (°C)", number(snap.WeeklyAverage)},
			{"Peak next 24h (°C)", peak},
			{"Peak at", peakAt},
			{"Hours above 41°C (last 24h)", snap.HoursAboveThreshold},
			{"Classification", classification},
			{"Population (2020)", population},
			{"Vulnerable population", count(snap.VulnerablePopulation)},
			{"Cooling center load (%)", load},
		},
	}
}

func hourlySheet(snap domain.InsightSnapshot) Sheet {
	s := Sheet{
		Name:   "Hourly",
		Header: []string{"Timestamp", "Temperature (°C)", "Relative humidity (%)", "Heat index (°C)"},
	}
	for _, r := range snap.Readings {
		s.Rows = append(s.Rows, []any{r.Timestamp, number(r.TemperatureC), number(r.RelativeHumidity), r.HeatIndexC})
	}
	return s
}

func dailySheet(snap domain.InsightSnapshot) Sheet {
	s := Sheet{
		Name:   "Daily",
		Header: []string{"Date", "Observed (°C)", "Baseline (°C)"},
	}
	for _, p := range snap.DailyBaseline {
		s.Rows = append(s.Rows, []any{p.Date.Format(time.DateOnly), number(p.Observed), number(p.Baseline)})
	}
	return s
}

func forecastSheet(snap domain.InsightSnapshot) Sheet {
	s := Sheet{
		Name:   "Forecast",
		Header: []string{"Date", "Predicted (°C)", "Actual (°C)", "Residual"},
	}
	for _, p := range snap.Forecast {
		s.Rows = append(s.Rows, []any{p.Date.Format(time.DateOnly), p.Predicted, number(p.Actual), number(p.Residual)})
	}
	return s
}

func number(v *float64) any {
	if v == nil {
		return Unknown
	}
	return *v
}

func count(v *int64) any {
	if v == nil {
		return Unknown
	}
	return *v
}

// Write renders snap in format to w.
func Write(w io.Writer, format string, snap domain.InsightSnapshot) error {
	switch format {
	case FormatCSV:
		return WriteCSV(w, snap)
	case FormatXLSX:
		return WriteXLSX(w, snap)
	default:
		return fmt.Errorf("unsupported export format %q", format)
	}
}

// WriteCSV writes every sheet as a titled section, separated by blank lines.
func WriteCSV(w io.Writer, snap domain.InsightSnapshot) error {
	cw := csv.NewWriter(w)
	for i, s := range Sheets(snap) {
		if i > 0 {
			if err := cw.Write([]string{""}); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}
		if err := cw.Write([]string{s.Name}); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		if err := cw.Write(s.Header); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		for _, row := range s.Rows {
			record := make([]string, len(row))
			for j, v := range row {
				record[j] = cellText(v)
			}
			if err := cw.Write(record); err != nil {
				return fmt.Errorf("write csv: %w", err)
			}
		}
	}
	cw.Flush()
	return cw.Error()
}

func cellText(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case time.Time:
		if x.IsZero() {
			return Unknown
		}
		return x.Format(time.RFC3339)
	default:
		return fmt.Sprint(x)
	}
}

var columnWidths = []float64{28, 20, 22, 18}

// WriteXLSX writes one worksheet per sheet with a bold header row.
func WriteXLSX(w io.Writer, snap domain.InsightSnapshot) error {
	f := excelize.NewFile()
	defer f.Close()

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#FDE7D3"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("create header style: %w", err)
	}

	for i, s := range Sheets(snap) {
		// The default sheet becomes the first (active) one.
		if i == 0 {
			if err := f.SetSheetName(f.GetSheetName(0), s.Name); err != nil {
				return fmt.Errorf("rename sheet: %w", err)
			}
		} else if _, err := f.NewSheet(s.Name); err != nil {
			return fmt.Errorf("create sheet %s: %w", s.Name, err)
		}
		if err := writeSheet(f, s, headerStyle); err != nil {
			return err
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write xlsx: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, s Sheet, headerStyle int) error {
	header := make([]any, len(s.Header))
	for i, h := range s.Header {
		header[i] = h
	}
	if err := f.SetSheetRow(s.Name, "A1", &header); err != nil {
		return fmt.Errorf("write %s header: %w", s.Name, err)
	}
	if err := f.SetRowStyle(s.Name, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", s.Name, err)
	}

	for r, row := range s.Rows {
		cells := make([]any, len(row))
		for j, v := range row {
			if t, ok := v.(time.Time); ok {
				// Spreadsheet clients drop the offset; keep it visible.
				cells[j] = cellText(t)
				continue
			}
			cells[j] = v
		}
		cell, err := excelize.CoordinatesToCellName(1, r+2)
		if err != nil {
			return fmt.Errorf("cell name: %w", err)
		}
		if err := f.SetSheetRow(s.Name, cell, &cells); err != nil {
			return fmt.Errorf("write %s row %d: %w", s.Name, r+2, err)
		}
	}

	for i := range s.Header {
		if i >= len(columnWidths) {
			break
		}
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("column name: %w", err)
		}
		if err := f.SetColWidth(s.Name, col, col, columnWidths[i]); err != nil {
			return fmt.Errorf("set column width: %w", err)
		}
	}
	return nil
}
