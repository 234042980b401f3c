package analyzer

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/mjholt/reviewgate/internal/models"
	"github.com/mjholt/reviewgate/pkg/logger"
)

// SecurityRule is one pattern the security analyzer matches against added
// lines. Rules are data so the set can grow without structural changes.
type SecurityRule struct {
	ID       string
	Title    string
	Message  string
	Severity string
	Pattern  *regexp.Regexp
}

// DefaultSecurityRules returns the built-in secret and vulnerability rules.
func DefaultSecurityRules() []SecurityRule {
	return []SecurityRule{
		// Secrets
		{
			ID:       "aws-access-key",
			Title:    "AWS access key ID in source",
			Message:  "An AWS access key ID appears in the change. Rotate the key and move it to a secret store.",
			Severity: models.SeverityCritical,
			Pattern:  regexp.MustCompile(`\b(A3T[A-Z0-9]|AKIA|AGPA|AIDA|AROA|ASIA)[A-Z0-9]{16}\b`),
		},
		{
			ID:       "github-token",
			Title:    "GitHub token in source",
			Message:  "A GitHub personal access token appears in the change. Revoke it immediately.",
			Severity: models.SeverityCritical,
			Pattern:  regexp.MustCompile(`\bgh[pousr]_[A-Za-z0-9]{36,}\b`),
		},
		{
			ID:       "private-key",
			Title:    "Private key material in source",
			Message:  "Private key material is committed in the change.",
			Severity: models.SeverityCritical,
			Pattern:  regexp.MustCompile(`-----BEGIN (RSA |DSA |EC |OPENSSH |PGP )?PRIVATE KEY`),
		},
		{
			ID:       "generic-api-key",
			Title:    "Hardcoded API key",
			Message:  "A value that looks like an API key is assigned in source. Load it from configuration or a secret store.",
			Severity: models.SeverityHigh,
			Pattern:  regexp.MustCompile(`(?i)(?:api[_-]?key|apikey)\s*[:=]\s*['"][A-Za-z0-9_\-]{16,}['"]`),
		},
		{
			ID:       "hardcoded-password",
			Title:    "Hardcoded password",
			Message:  "A password literal is assigned in source.",
			Severity: models.SeverityHigh,
			Pattern:  regexp.MustCompile(`(?i)password\s*[:=]\s*['"][^'"]{4,}['"]`),
		},
		{
			ID:       "jwt-token",
			Title:    "JWT in source",
			Message:  "A JSON Web Token appears in the change.",
			Severity: models.SeverityHigh,
			Pattern:  regexp.MustCompile(`\beyJ[A-Za-z0-9_=-]{10,}\.eyJ[A-Za-z0-9_=-]{10,}\.[A-Za-z0-9_.+/=-]*`),
		},

		// Vulnerability patterns
		{
			ID:       "sql-string-concat",
			Title:    "Possible SQL injection",
			Message:  "SQL appears to be built by string concatenation or formatting with external input. Use parameterized queries.",
			Severity: models.SeverityCritical,
			Pattern:  regexp.MustCompile(`(?i)(?:execute|exec|query)\s*\(\s*(?:f?["'].*(?:SELECT|INSERT|UPDATE|DELETE).*["']\s*(?:\+|%|\.format)|.*\+\s*\w+\s*\+.*(?:WHERE|VALUES))`),
		},
		{
			ID:       "command-injection",
			Title:    "Possible command injection",
			Message:  "A system command is assembled from variables. Pass arguments as a list and avoid shell interpolation.",
			Severity: models.SeverityCritical,
			Pattern:  regexp.MustCompile(`(?:os\.system|subprocess\.(?:call|run|Popen)|exec\.Command)\s*\([^)]*(?:\+|%s.*%|fmt\.Sprintf)`),
		},
		{
			ID:       "unsafe-deserialization",
			Title:    "Unsafe deserialization",
			Message:  "Deserializing untrusted data with pickle or marshal can execute arbitrary code.",
			Severity: models.SeverityHigh,
			Pattern:  regexp.MustCompile(`\b(?:pickle|marshal)\.loads?\s*\(`),
		},
		{
			ID:       "eval-usage",
			Title:    "Use of eval",
			Message:  "eval() on dynamic input can execute arbitrary code.",
			Severity: models.SeverityHigh,
			Pattern:  regexp.MustCompile(`\beval\s*\(`),
		},
		{
			ID:       "weak-hash",
			Title:    "Weak hash algorithm",
			Message:  "MD5 and SHA-1 are unsuitable for security-sensitive hashing.",
			Severity: models.SeverityMedium,
			Pattern:  regexp.MustCompile(`(?i)\b(?:md5|sha1)\s*(?:\.New|\()`),
		},
		{
			ID:       "tls-verify-disabled",
			Title:    "TLS verification disabled",
			Message:  "Certificate verification is turned off, allowing man-in-the-middle attacks.",
			Severity: models.SeverityHigh,
			Pattern:  regexp.MustCompile(`(?i)(?:InsecureSkipVerify\s*:\s*true|verify\s*=\s*False|CURLOPT_SSL_VERIFYPEER\s*,\s*(?:false|0))`),
		},
	}
}

// SecurityAnalyzer matches secret and vulnerability patterns against the
// lines each change adds.
type SecurityAnalyzer struct {
	name   string
	rules  []SecurityRule
	logger logger.Logger
}

// NewSecurityAnalyzer creates a security analyzer with the default rules.
func NewSecurityAnalyzer(log logger.Logger) *SecurityAnalyzer {
	return NewSecurityAnalyzerWithRules(DefaultSecurityRules(), log)
}

// NewSecurityAnalyzerWithRules creates a security analyzer with custom rules.
func NewSecurityAnalyzerWithRules(rules []SecurityRule, log logger.Logger) *SecurityAnalyzer {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &SecurityAnalyzer{
		name:   "security",
		rules:  rules,
		logger: log.With("analyzer", "security"),
	}
}

// Name returns "security".
func (s *SecurityAnalyzer) Name() string { return s.name }

// Capabilities declares purely local analysis over any file.
func (s *SecurityAnalyzer) Capabilities() Capabilities {
	return Capabilities{}
}

// Analyze scans the added lines of every changed file against the rule set.
func (s *SecurityAnalyzer) Analyze(ctx context.Context, rctx *models.AnalysisContext) (*models.AnalyzerResult, error) {
	start := time.Now()
	result := &models.AnalyzerResult{
		AnalyzerName: s.name,
		Findings:     []models.Finding{},
	}

	for _, fc := range rctx.ChangedFiles {
		if fc.Status == models.StatusRemoved || fc.Binary {
			continue
		}
		if err := ctx.Err(); err != nil {
			result.Err = NewError(s.name, ErrorTypeTimeout, err)
			break
		}

		for _, added := range AddedLines(fc.Patch) {
			for _, rule := range s.rules {
				if !rule.Pattern.MatchString(added.Text) {
					continue
				}
				if isTestPlaceholder(added.Text) {
					continue
				}
				finding := models.Finding{
					ID:             models.GenerateFindingID(s.name, rule.ID, fc.Path, added.Line),
					Severity:       rule.Severity,
					Category:       models.CategorySecurity,
					Title:          rule.Title,
					Message:        rule.Message,
					Location:       models.Location{File: fc.Path, StartLine: added.Line},
					SourceAnalyzer: s.name,
					Confidence:     0.9,
				}
				result.Findings = append(result.Findings, finding)
			}
		}
	}

	result.Duration = time.Since(start)
	s.logger.Debug("Security analysis complete", "findings", len(result.Findings))
	return result, nil
}

// isTestPlaceholder filters obvious example values to cut false positives.
func isTestPlaceholder(line string) bool {
	lower := strings.ToLower(line)
	for _, marker := range []string{"example", "placeholder", "your-", "xxxx", "dummy", "changeme", "<password>"} {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// AddedLine is one line introduced by a patch, with its line number in the
// new file.
type AddedLine struct {
	Line int
	Text string
}

var hunkHeaderRe = regexp.MustCompile(`^@@ -\d+(?:,\d+)? \+(\d+)(?:,\d+)? @@`)

// AddedLines extracts the added lines of a unified diff with their new-file
// line numbers.
func AddedLines(patch string) []AddedLine {
	var out []AddedLine
	newLine := 0

	for _, line := range strings.Split(patch, "\n") {
		if m := hunkHeaderRe.FindStringSubmatch(line); m != nil {
			start, err := strconv.Atoi(m[1])
			if err != nil {
				continue
			}
			newLine = start
			continue
		}
		if newLine == 0 {
			continue // before the first hunk header
		}

		switch {
		case strings.HasPrefix(line, "+"):
			out = append(out, AddedLine{Line: newLine, Text: line[1:]})
			newLine++
		case strings.HasPrefix(line, "-"):
			// removed line, does not advance the new file
		case strings.HasPrefix(line, "\\"):
			// "\ No newline at end of file"
		default:
			newLine++
		}
	}

	return out
}
