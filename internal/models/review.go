package models

import (
	"fmt"
	"time"
)

// CostRecord tracks provider usage attributable to one analyzer run.
// Records are additive; total review cost is the sum over all results.
type CostRecord struct {
	Provider     string  `json:"provider,omitempty"`
	Model        string  `json:"model,omitempty"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	AmountUSD    float64 `json:"amount_usd"`
}

// Add accumulates another cost record into this one.
func (c *CostRecord) Add(other CostRecord) {
	if c.Provider == "" {
		c.Provider = other.Provider
	}
	if c.Model == "" {
		c.Model = other.Model
	}
	c.InputTokens += other.InputTokens
	c.OutputTokens += other.OutputTokens
	c.AmountUSD += other.AmountUSD
}

// AnalyzerResult is the output of a single analyzer for one review.
// Exactly one result is produced per applicable analyzer per review; a failed
// or timed-out analyzer yields a result with empty findings and Err set.
// Warnings carry partial failures: units of work the analyzer could not
// finish even though it produced findings.
type AnalyzerResult struct {
	AnalyzerName string        `json:"analyzer"`
	Findings     []Finding     `json:"findings"`
	Warnings     []string      `json:"warnings,omitempty"`
	Cost         CostRecord    `json:"cost"`
	Duration     time.Duration `json:"duration"`
	Err          error         `json:"-"`
}

// FailedResult builds the result recorded for an analyzer that errored.
func FailedResult(name string, err error) *AnalyzerResult {
	return &AnalyzerResult{
		AnalyzerName: name,
		Findings:     []Finding{},
		Err:          err,
	}
}

// Decision is the terminal verdict of a review.
type Decision string

// Review decisions.
const (
	DecisionApproved    Decision = "APPROVED"
	DecisionBlocked     Decision = "BLOCKED"
	DecisionNeedsReview Decision = "NEEDS_REVIEW"
)

// Verdict couples a decision with the rules that triggered it, for audit.
type Verdict struct {
	Decision Decision `json:"decision"`
	Rules    []string `json:"rules,omitempty"`
}

// PRIdentity names the pull request (or local diff) under review.
type PRIdentity struct {
	Owner  string `json:"owner,omitempty"`
	Repo   string `json:"repo,omitempty"`
	Number int    `json:"number,omitempty"`
	Ref    string `json:"ref,omitempty"`
	Local  bool   `json:"local,omitempty"`
}

// String renders the identity as owner/repo#number or a local marker.
func (p PRIdentity) String() string {
	if p.Local {
		return "local diff"
	}
	return fmt.Sprintf("%s/%s#%d", p.Owner, p.Repo, p.Number)
}

// Review is the terminal artifact of one review invocation. It is never
// mutated after construction.
type Review struct {
	ID        string     `json:"id"`
	PR        PRIdentity `json:"pr"`
	Findings  []Finding  `json:"findings"`
	TotalCost CostRecord `json:"total_cost"`
	Verdict   Verdict    `json:"verdict"`
	Warnings  []string   `json:"warnings,omitempty"`
	StartTime time.Time  `json:"start_time"`
	EndTime   time.Time  `json:"end_time"`
}

// Summary provides per-severity counts for rendering.
type Summary struct {
	Total    int `json:"total"`
	Critical int `json:"critical"`
	High     int `json:"high"`
	Medium   int `json:"medium"`
	Low      int `json:"low"`
	Info     int `json:"info"`
}

// Summarize counts findings by severity.
func (r *Review) Summarize() Summary {
	s := Summary{Total: len(r.Findings)}
	for _, f := range r.Findings {
		switch f.Severity {
		case SeverityCritical:
			s.Critical++
		case SeverityHigh:
			s.High++
		case SeverityMedium:
			s.Medium++
		case SeverityLow:
			s.Low++
		case SeverityInfo:
			s.Info++
		}
	}
	return s
}

// CountAtLeast returns the number of findings at or above the given severity.
func CountAtLeast(findings []Finding, threshold string) int {
	n := 0
	for _, f := range findings {
		if SeverityAtLeast(f.Severity, threshold) {
			n++
		}
	}
	return n
}
