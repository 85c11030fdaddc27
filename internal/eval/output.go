package eval

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// SaveResults writes the per-question results table as CSV.
func SaveResults(records []Record, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating results file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	header := []string{"question", "provider", "answer", "citations", "exact_match", "latency_sec", "cost_usd", "failed", "failure_reason"}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Question,
			r.Provider,
			r.Answer,
			strings.Join(r.Citations, ";"),
			strconv.FormatBool(r.ExactMatch),
			strconv.FormatFloat(r.Latency.Seconds(), 'f', 3, 64),
			strconv.FormatFloat(r.CostUSD, 'f', 6, 64),
			strconv.FormatBool(r.Failed),
			r.FailureReason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("writing results file: %w", err)
	}
	return f.Close()
}

// SaveSummary writes the aggregate metrics record as JSON.
func SaveSummary(summary Summary, path string) error {
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing summary file: %w", err)
	}
	return nil
}
