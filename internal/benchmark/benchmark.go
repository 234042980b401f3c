// Package benchmark evaluates review quality against a labeled corpus of
// pull request cases and gates releases on the resulting metrics.
package benchmark

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/mjholt/reviewgate/internal/models"
)

// LabeledFinding is the normalized finding shape used for both ground-truth
// labels and predictions. Findings match when signature, severity and
// category all agree.
type LabeledFinding struct {
	Signature string `json:"signature"`
	Severity  string `json:"severity"`
	Category  string `json:"category"`
}

func (f LabeledFinding) key() string {
	return f.Signature + "|" + f.Severity + "|" + f.Category
}

func (f LabeledFinding) severe() bool {
	return models.SeverityAtLeast(f.Severity, models.SeverityHigh)
}

// Case is one labeled pull request. The blocked fields, when nil, are
// inferred: a case blocks when it carries any severe finding.
type Case struct {
	ID               string           `json:"case_id"`
	Language         string           `json:"language"`
	RepoFamily       string           `json:"repo_family"`
	SourceURL        string           `json:"source_url,omitempty"`
	Notes            string           `json:"notes,omitempty"`
	Expected         []LabeledFinding `json:"expected_findings"`
	Predicted        []LabeledFinding `json:"predicted_findings"`
	ExpectedBlocked  *bool            `json:"expected_blocked,omitempty"`
	PredictedBlocked *bool            `json:"predicted_blocked,omitempty"`
}

// Dataset is a labeled corpus.
type Dataset struct {
	Cases []Case `json:"cases"`
}

// CaseMetrics is the evaluation of a single case.
type CaseMetrics struct {
	CaseID         string  `json:"case_id"`
	Language       string  `json:"language"`
	TP             int     `json:"tp"`
	FP             int     `json:"fp"`
	FN             int     `json:"fn"`
	Precision      float64 `json:"precision"`
	Recall         float64 `json:"recall"`
	F1             float64 `json:"f1"`
	SevereRecall   float64 `json:"severe_recall"`
	VerdictCorrect bool    `json:"verdict_correct"`
}

// Metrics aggregates case metrics over a whole dataset.
type Metrics struct {
	CaseMetrics      []CaseMetrics `json:"case_metrics"`
	TotalCases       int           `json:"total_cases"`
	MeanPrecision    float64       `json:"mean_precision"`
	MeanRecall       float64       `json:"mean_recall"`
	MeanF1           float64       `json:"mean_f1"`
	MeanSevereRecall float64       `json:"mean_severe_recall"`
	VerdictAccuracy  float64       `json:"verdict_accuracy"`
}

// Scorecard summarizes metrics for one group of cases.
type Scorecard struct {
	Group           string  `json:"group"`
	Cases           int     `json:"cases"`
	MeanPrecision   float64 `json:"mean_precision"`
	MeanRecall      float64 `json:"mean_recall"`
	MeanF1          float64 `json:"mean_f1"`
	SevereRecall    float64 `json:"severe_recall"`
	VerdictAccuracy float64 `json:"verdict_accuracy"`
}

// GateThresholds are the minimum metrics a benchmark run must reach.
type GateThresholds struct {
	MinMeanPrecision   float64
	MinMeanRecall      float64
	MinMeanF1          float64
	MinSevereRecall    float64
	MinVerdictAccuracy float64
}

// DefaultGateThresholds returns the release gate used when none is supplied.
func DefaultGateThresholds() GateThresholds {
	return GateThresholds{
		MinMeanPrecision:   0.9,
		MinMeanRecall:      0.85,
		MinMeanF1:          0.87,
		MinSevereRecall:    0.95,
		MinVerdictAccuracy: 0.9,
	}
}

// GateResult is the outcome of checking metrics against a gate.
type GateResult struct {
	Passed       bool
	FailedChecks []string
	Thresholds   GateThresholds
}

// LoadDataset reads and validates a labeled corpus from a JSON file.
func LoadDataset(path string) (*Dataset, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted source (CLI argument)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}

	var ds Dataset
	if err := json.Unmarshal(data, &ds); err != nil {
		return nil, fmt.Errorf("parsing dataset JSON: %w", err)
	}

	for i := range ds.Cases {
		c := &ds.Cases[i]
		if c.ID == "" {
			return nil, fmt.Errorf("case %d: case_id is required", i)
		}
		if c.Language == "" {
			c.Language = "unknown"
		}
		if c.RepoFamily == "" {
			c.RepoFamily = "unknown"
		}
		for _, group := range [][]LabeledFinding{c.Expected, c.Predicted} {
			for j := range group {
				group[j].Severity = strings.ToLower(group[j].Severity)
				group[j].Category = strings.ToLower(group[j].Category)
				if group[j].Signature == "" {
					return nil, fmt.Errorf("case %s: finding signature is required", c.ID)
				}
				if !models.IsValidSeverity(group[j].Severity) {
					return nil, fmt.Errorf("case %s: unknown severity %q", c.ID, group[j].Severity)
				}
			}
		}
	}
	return &ds, nil
}

// EvaluateCase computes precision, recall and verdict correctness for one
// labeled case.
func EvaluateCase(c Case) CaseMetrics {
	expected := keySet(c.Expected)
	predicted := keySet(c.Predicted)

	tp := intersect(expected, predicted)
	fp := len(predicted) - tp
	fn := len(expected) - tp

	precision := safeDiv(float64(tp), float64(tp+fp))
	recall := safeDiv(float64(tp), float64(tp+fn))
	f1 := safeDiv(2*precision*recall, precision+recall)

	expectedSevere := keySet(severeOnly(c.Expected))
	predictedSevere := keySet(severeOnly(c.Predicted))
	severeRecall := safeDiv(float64(intersect(expectedSevere, predictedSevere)), float64(len(expectedSevere)))

	return CaseMetrics{
		CaseID:         c.ID,
		Language:       c.Language,
		TP:             tp,
		FP:             fp,
		FN:             fn,
		Precision:      precision,
		Recall:         recall,
		F1:             f1,
		SevereRecall:   severeRecall,
		VerdictCorrect: blockedOrInferred(c.ExpectedBlocked, c.Expected) == blockedOrInferred(c.PredictedBlocked, c.Predicted),
	}
}

// Evaluate scores every case and aggregates the means.
func Evaluate(ds *Dataset) Metrics {
	if len(ds.Cases) == 0 {
		return Metrics{CaseMetrics: []CaseMetrics{}}
	}

	metrics := Metrics{
		CaseMetrics: make([]CaseMetrics, 0, len(ds.Cases)),
		TotalCases:  len(ds.Cases),
	}
	correct := 0
	for _, c := range ds.Cases {
		cm := EvaluateCase(c)
		metrics.CaseMetrics = append(metrics.CaseMetrics, cm)
		metrics.MeanPrecision += cm.Precision
		metrics.MeanRecall += cm.Recall
		metrics.MeanF1 += cm.F1
		metrics.MeanSevereRecall += cm.SevereRecall
		if cm.VerdictCorrect {
			correct++
		}
	}

	n := float64(metrics.TotalCases)
	metrics.MeanPrecision /= n
	metrics.MeanRecall /= n
	metrics.MeanF1 /= n
	metrics.MeanSevereRecall /= n
	metrics.VerdictAccuracy = float64(correct) / n
	return metrics
}

// EvaluateGate checks aggregate metrics against release thresholds.
func EvaluateGate(m Metrics, gate GateThresholds) GateResult {
	var failures []string
	check := func(name string, got, min float64) {
		if got < min {
			failures = append(failures, fmt.Sprintf("%s %.4f < %.4f", name, got, min))
		}
	}
	check("mean_precision", m.MeanPrecision, gate.MinMeanPrecision)
	check("mean_recall", m.MeanRecall, gate.MinMeanRecall)
	check("mean_f1", m.MeanF1, gate.MinMeanF1)
	check("mean_severe_recall", m.MeanSevereRecall, gate.MinSevereRecall)
	check("verdict_accuracy", m.VerdictAccuracy, gate.MinVerdictAccuracy)

	return GateResult{Passed: len(failures) == 0, FailedChecks: failures, Thresholds: gate}
}

// ScorecardsByLanguage groups case metrics per language, sorted by group name.
func ScorecardsByLanguage(ds *Dataset) []Scorecard {
	return scorecards(ds, func(c Case) string { return strings.ToLower(c.Language) })
}

// ScorecardsByRepoFamily groups case metrics per repository family.
func ScorecardsByRepoFamily(ds *Dataset) []Scorecard {
	return scorecards(ds, func(c Case) string { return c.RepoFamily })
}

func scorecards(ds *Dataset, groupOf func(Case) string) []Scorecard {
	grouped := make(map[string][]CaseMetrics)
	for _, c := range ds.Cases {
		g := groupOf(c)
		grouped[g] = append(grouped[g], EvaluateCase(c))
	}

	groups := make([]string, 0, len(grouped))
	for g := range grouped {
		groups = append(groups, g)
	}
	sort.Strings(groups)

	cards := make([]Scorecard, 0, len(groups))
	for _, g := range groups {
		cards = append(cards, buildScorecard(g, grouped[g]))
	}
	return cards
}

func buildScorecard(group string, metrics []CaseMetrics) Scorecard {
	card := Scorecard{Group: group, Cases: len(metrics)}
	correct := 0
	for _, m := range metrics {
		card.MeanPrecision += m.Precision
		card.MeanRecall += m.Recall
		card.MeanF1 += m.F1
		card.SevereRecall += m.SevereRecall
		if m.VerdictCorrect {
			correct++
		}
	}
	n := float64(len(metrics))
	card.MeanPrecision /= n
	card.MeanRecall /= n
	card.MeanF1 /= n
	card.SevereRecall /= n
	card.VerdictAccuracy = float64(correct) / n
	return card
}

func keySet(findings []LabeledFinding) map[string]bool {
	set := make(map[string]bool, len(findings))
	for _, f := range findings {
		set[f.key()] = true
	}
	return set
}

func severeOnly(findings []LabeledFinding) []LabeledFinding {
	var out []LabeledFinding
	for _, f := range findings {
		if f.severe() {
			out = append(out, f)
		}
	}
	return out
}

func intersect(a, b map[string]bool) int {
	n := 0
	for k := range a {
		if b[k] {
			n++
		}
	}
	return n
}

func blockedOrInferred(explicit *bool, findings []LabeledFinding) bool {
	if explicit != nil {
		return *explicit
	}
	for _, f := range findings {
		if f.severe() {
			return true
		}
	}
	return false
}

func safeDiv(numerator, denominator float64) float64 {
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}
