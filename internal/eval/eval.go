// Package eval replays a labeled question set through a provider and
// computes answer-quality metrics.
package eval

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"normativa-rag/internal/provider"
	"normativa-rag/internal/rag"
)

// GoldQuestion is one line of the gold set. Answer may be empty, in
// which case exact match is not scored for that question.
type GoldQuestion struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Record is the outcome for one gold question.
type Record struct {
	Question        string
	Provider        string
	Answer          string
	Citations       []string
	ExactMatch      bool
	ExactScored     bool
	CitationCovered bool
	Latency         time.Duration
	CostUSD         float64
	Failed          bool
	FailureReason   string
}

// Summary aggregates one provider's run over the whole gold set.
type Summary struct {
	RunID            string    `json:"run_id"`
	Timestamp        time.Time `json:"timestamp"`
	Provider         string    `json:"provider"`
	Total            int       `json:"n"`
	Failures         int       `json:"failures"`
	ExactScored      int       `json:"exact_match_scored"`
	ExactMatchRate   float64   `json:"exact_match"`
	CitationCoverage float64   `json:"citation_coverage"`
	AvgLatencySecs   float64   `json:"avg_latency_sec"`
	AvgCostUSD       float64   `json:"avg_cost_usd"`
	TotalCostUSD     float64   `json:"total_cost_usd"`
}

// LoadGoldSet reads a jsonl gold set, one question object per line.
func LoadGoldSet(path string) ([]GoldQuestion, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening gold set: %w", err)
	}
	defer f.Close()

	var questions []GoldQuestion
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		var q GoldQuestion
		if err := json.Unmarshal([]byte(line), &q); err != nil {
			return nil, fmt.Errorf("parsing gold set line: %w", err)
		}
		questions = append(questions, q)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading gold set: %w", err)
	}
	return questions, nil
}

// Evaluator drives retrieval and generation over a gold set, one
// question at a time. Batch mode is sequential by design so latencies
// and costs are reproducible.
type Evaluator struct {
	service *rag.Service
	k       int
}

func New(service *rag.Service, k int) *Evaluator {
	if k < 1 {
		k = 4
	}
	return &Evaluator{service: service, k: k}
}

// Evaluate runs every gold question through the provider. A failing
// question is recorded with its failure and evaluation continues; failed
// records are excluded from latency and cost means.
func (e *Evaluator) Evaluate(ctx context.Context, gold []GoldQuestion, p provider.Provider) ([]Record, Summary) {
	records := make([]Record, 0, len(gold))

	for _, q := range gold {
		rec := Record{Question: q.Question, Provider: p.Name()}

		resp, err := e.service.AskWith(ctx, q.Question, p, e.k)
		if err != nil {
			rec.Failed = true
			rec.FailureReason = err.Error()
			log.Warn().Err(err).Str("question", q.Question).Msg("Evaluation question failed")
			records = append(records, rec)
			continue
		}

		rec.Answer = resp.Answer
		rec.Citations = resp.Citations
		rec.CitationCovered = len(resp.Citations) > 0
		rec.Latency = resp.RetrievalLatency + resp.GenerationLatency
		rec.CostUSD = resp.CostUSD

		expected := strings.TrimSpace(q.Answer)
		if expected != "" {
			rec.ExactScored = true
			rec.ExactMatch = strings.Contains(strings.ToLower(resp.Answer), strings.ToLower(expected))
		}
		records = append(records, rec)
	}

	return records, e.summarize(records, p.Name())
}

func (e *Evaluator) summarize(records []Record, providerName string) Summary {
	summary := Summary{
		RunID:     uuid.NewString(),
		Timestamp: time.Now(),
		Provider:  providerName,
		Total:     len(records),
	}

	var succeeded, exactHits, covered int
	var latencySum time.Duration
	for _, r := range records {
		if r.Failed {
			summary.Failures++
			continue
		}
		succeeded++
		latencySum += r.Latency
		summary.TotalCostUSD += r.CostUSD
		if r.ExactScored {
			summary.ExactScored++
			if r.ExactMatch {
				exactHits++
			}
		}
		if r.CitationCovered {
			covered++
		}
	}

	if summary.ExactScored > 0 {
		summary.ExactMatchRate = float64(exactHits) / float64(summary.ExactScored)
	}
	if succeeded > 0 {
		summary.CitationCoverage = float64(covered) / float64(succeeded)
		summary.AvgLatencySecs = latencySum.Seconds() / float64(succeeded)
		summary.AvgCostUSD = summary.TotalCostUSD / float64(succeeded)
	}
	return summary
}

// Run evaluates the gold set at goldPath and writes the results table and
// summary record into outDir, both tagged with the run timestamp.
func (e *Evaluator) Run(ctx context.Context, p provider.Provider, goldPath, outDir string) (Summary, error) {
	gold, err := LoadGoldSet(goldPath)
	if err != nil {
		return Summary{}, err
	}
	if len(gold) == 0 {
		return Summary{}, fmt.Errorf("gold set %s has no questions", goldPath)
	}

	records, summary := e.Evaluate(ctx, gold, p)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return summary, fmt.Errorf("creating eval output dir: %w", err)
	}
	stamp := summary.Timestamp.Format("20060102_150405")
	resultsPath := filepath.Join(outDir, fmt.Sprintf("results_%s_%s.csv", summary.Provider, stamp))
	summaryPath := filepath.Join(outDir, fmt.Sprintf("summary_%s_%s.json", summary.Provider, stamp))

	if err := SaveResults(records, resultsPath); err != nil {
		return summary, err
	}
	if err := SaveSummary(summary, summaryPath); err != nil {
		return summary, err
	}
	log.Info().
		Str("results", resultsPath).
		Str("summary", summaryPath).
		Int("questions", summary.Total).
		Int("failures", summary.Failures).
		Msg("Evaluation run saved")
	return summary, nil
}
