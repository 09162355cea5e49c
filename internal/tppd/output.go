package tppd

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"
)

// Summary is the JSON run report written next to the output tables,
// consumed by external plotting/reporting collaborators
type Summary struct {
	// Input table the run was computed from
	Input string `json:"input"`

	// Time, ex: "2024-01-01 20:41:00"
	Time string `json:"time"`

	// Execution is the number of seconds it took to run the pipeline
	Execution float64 `json:"execution"`

	// Strategy is the resampling strategy that built the null distribution
	Strategy string `json:"strategy"`

	// Rounds is the bootstrap round count B
	Rounds int `json:"rounds"`

	// Alpha is the FDR cutoff used for hit calling
	Alpha float64 `json:"alpha"`

	// Proteins is the profile count after filtering
	Proteins int `json:"proteins"`

	// Fitted is the count of valid model fits
	Fitted int `json:"fitted"`

	// NullStats is the size of the bootstrapped null distribution
	NullStats int `json:"nullStats"`

	// Hits at or below alpha, ranked by F
	Hits []FDRRow `json:"hits"`
}

// WriteSummaryJSON writes the run report to filename
func WriteSummaryJSON(filename, input string, results *Results, strategy string, rounds int, alpha float64, seconds float64) error {
	t := time.Now()
	fitted := 0
	for _, mp := range results.Params {
		if mp.Valid {
			fitted++
		}
	}

	summary := Summary{
		Input:     input,
		Time:      fmt.Sprintf("%d/%02d/%02d %02d:%02d:%02d", t.Year(), t.Month(), t.Day(), t.Hour(), t.Minute(), t.Second()),
		Execution: seconds,
		Strategy:  strategy,
		Rounds:    rounds,
		Alpha:     alpha,
		Proteins:  len(results.Params),
		Fitted:    fitted,
		NullStats: len(results.Null),
		Hits:      results.Hits,
	}

	contents, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize run summary: %v", err)
	}
	return os.WriteFile(filename, contents, 0644)
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// WriteParamsCSV writes the per-protein fit summary table. Invalid
// records keep their row with empty fit fields so no protein is
// silently dropped
func WriteParamsCSV(w io.Writer, params []ModelParams) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"clustername", "nObs", "rss0", "rss1", "df0", "df1", "infl", "slope", "valid", "degenerate"}); err != nil {
		return err
	}

	for _, mp := range params {
		row := []string{mp.Clustername, strconv.Itoa(mp.NObs), "", "", "", "", "", "", strconv.FormatBool(mp.Valid), strconv.FormatBool(mp.Degenerate)}
		if mp.Valid {
			row[2] = formatFloat(mp.Null.RSS)
			row[3] = formatFloat(mp.Alt.RSS)
			row[4] = strconv.Itoa(mp.DF0)
			row[5] = strconv.Itoa(mp.DF1)
			row[6] = formatFloat(mp.Infl)
			row[7] = formatFloat(mp.Slope)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFStatsCSV writes an F-statistic table (observed or null)
func WriteFStatsCSV(w io.Writer, stats []FStat) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"clustername", "F", "df1", "df2", "nObs", "dataset", "pValue", "degenerate"}); err != nil {
		return err
	}

	for _, fs := range stats {
		err := cw.Write([]string{
			fs.Clustername,
			formatFloat(fs.F),
			strconv.Itoa(fs.DF1),
			strconv.Itoa(fs.DF2),
			strconv.Itoa(fs.NObs),
			fs.Dataset,
			formatFloat(fs.PValue),
			strconv.FormatBool(fs.Degenerate),
		})
		if err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteFDRCSV writes the FDR table (or a hit list)
func WriteFDRCSV(w io.Writer, rows []FDRRow) error {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	if err := cw.Write([]string{"clustername", "F", "nObs", "pValue", "fdr", "degenerate"}); err != nil {
		return err
	}

	for _, row := range rows {
		err := cw.Write([]string{
			row.Clustername,
			formatFloat(row.F),
			strconv.Itoa(row.NObs),
			formatFloat(row.PValue),
			formatFloat(row.FDR),
			strconv.FormatBool(row.Degenerate),
		})
		if err != nil {
			return err
		}
	}

	cw.Flush()
	return cw.Error()
}

// ReadFDRCSV reads an FDR table back, so hit calling can be re-run at a
// new cutoff without recomputing the pipeline
func ReadFDRCSV(r io.Reader) ([]FDRRow, error) {
	cr := csv.NewReader(r)

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read FDR table header: %v", err)
	}
	cols := make(map[string]int)
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range []string{"clustername", "F", "nObs", "fdr"} {
		if _, ok := cols[name]; !ok {
			return nil, &SchemaError{Missing: []string{name}}
		}
	}

	var rows []FDRRow
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		row := FDRRow{Clustername: record[cols["clustername"]]}
		if row.F, err = strconv.ParseFloat(record[cols["F"]], 64); err != nil {
			return nil, fmt.Errorf("bad F value %q", record[cols["F"]])
		}
		if row.NObs, err = strconv.Atoi(record[cols["nObs"]]); err != nil {
			return nil, fmt.Errorf("bad nObs value %q", record[cols["nObs"]])
		}
		if row.FDR, err = strconv.ParseFloat(record[cols["fdr"]], 64); err != nil {
			return nil, fmt.Errorf("bad fdr value %q", record[cols["fdr"]])
		}
		if i, ok := cols["pValue"]; ok {
			row.PValue, _ = strconv.ParseFloat(record[i], 64)
		}
		if i, ok := cols["degenerate"]; ok {
			row.Degenerate, _ = strconv.ParseBool(record[i])
		}

		rows = append(rows, row)
	}

	return rows, nil
}
