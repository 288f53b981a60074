package evaluation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/upb/paper-rag/models"
	"github.com/upb/paper-rag/repositories"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// DefaultLiveWindow bounds the query logs aggregated into the live stats
const DefaultLiveWindow = 24 * time.Hour

// runsDocument is the on-disk shape of the runs file
type runsDocument struct {
	Runs []models.EvaluationRun `json:"runs" yaml:"runs"`
}

// Service serves offline evaluation runs and live latency stats to the dashboard
type Service struct {
	runsFile string
	logs     repositories.QueryLogRepository
	logger   *zap.Logger
	now      func() time.Time

	mu   sync.RWMutex
	runs []models.EvaluationRun
}

// NewService creates an evaluation service. runsFile may be empty and logs may be nil.
func NewService(runsFile string, logs repositories.QueryLogRepository, logger *zap.Logger) *Service {
	return &Service{
		runsFile: runsFile,
		logs:     logs,
		logger:   logger,
		now:      time.Now,
	}
}

// Load reads the runs file, replacing whatever was loaded before
func (s *Service) Load() error {
	if s.runsFile == "" {
		s.logger.Info("no evaluation runs file configured")
		return nil
	}

	data, err := os.ReadFile(s.runsFile)
	if err != nil {
		return fmt.Errorf("failed to read evaluation runs: %w", err)
	}

	runs, err := ParseRuns(data, filepath.Ext(s.runsFile))
	if err != nil {
		return fmt.Errorf("failed to parse %s: %w", s.runsFile, err)
	}

	s.mu.Lock()
	s.runs = runs
	s.mu.Unlock()

	s.logger.Info("evaluation runs loaded",
		zap.String("file", s.runsFile),
		zap.Int("runs", len(runs)))
	return nil
}

// ParseRuns decodes a runs document. ext selects the format; anything but .json is read as YAML.
func ParseRuns(data []byte, ext string) ([]models.EvaluationRun, error) {
	var doc runsDocument
	switch strings.ToLower(ext) {
	case ".json":
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&doc); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, err
		}
	}

	for i, run := range doc.Runs {
		if strings.TrimSpace(run.Name) == "" {
			return nil, fmt.Errorf("run %d has no name", i)
		}
	}
	if doc.Runs == nil {
		doc.Runs = []models.EvaluationRun{}
	}
	return doc.Runs, nil
}

// ListRuns returns the runs, optionally only those for one embedding model
func (s *Service) ListRuns(embeddingModel string) []models.EvaluationRun {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.EvaluationRun, 0, len(s.runs))
	for _, run := range s.runs {
		if embeddingModel != "" && run.EmbeddingModel != embeddingModel {
			continue
		}
		out = append(out, run)
	}
	return out
}

// Summary names the best run per metric and, when a query log is wired, adds live stats
func (s *Service) Summary(ctx context.Context) (*models.EvaluationSummary, error) {
	summary := Summarize(s.ListRuns(""))

	if s.logs != nil {
		live, err := s.logs.StatsByModel(ctx, s.now().Add(-DefaultLiveWindow))
		if err != nil {
			return nil, fmt.Errorf("failed to aggregate live stats: %w", err)
		}
		summary.Live = live
	}

	return &summary, nil
}

// Summarize picks the best run for each metric. Ties go to the earlier run.
func Summarize(runs []models.EvaluationRun) models.EvaluationSummary {
	summary := models.EvaluationSummary{Runs: len(runs)}
	if len(runs) == 0 {
		return summary
	}

	summary.BestMRR = best(runs, func(r models.EvaluationRun) float64 { return r.MRR })
	summary.BestNDCG = best(runs, func(r models.EvaluationRun) float64 { return r.NDCG })
	summary.BestPrecision = best(runs, func(r models.EvaluationRun) float64 { return r.PrecisionAtK })
	summary.BestRecall = best(runs, func(r models.EvaluationRun) float64 { return r.RecallAtK })

	// runs without a latency measurement never win "fastest"
	measured := make([]models.EvaluationRun, 0, len(runs))
	for _, r := range runs {
		if r.AvgLatencyMs > 0 {
			measured = append(measured, r)
		}
	}
	if len(measured) > 0 {
		sort.SliceStable(measured, func(i, j int) bool { return measured[i].AvgLatencyMs < measured[j].AvgLatencyMs })
		summary.FastestRun = measured[0].Name
	}

	return summary
}

func best(runs []models.EvaluationRun, metric func(models.EvaluationRun) float64) string {
	bestIdx := 0
	for i := 1; i < len(runs); i++ {
		if metric(runs[i]) > metric(runs[bestIdx]) {
			bestIdx = i
		}
	}
	return runs[bestIdx].Name
}
