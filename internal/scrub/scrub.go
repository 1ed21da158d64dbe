// Package scrub redacts secrets from captured hook output using the
// Gitleaks SDK.
package scrub

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/zricethezav/gitleaks/v8/detect"
	"github.com/zricethezav/gitleaks/v8/report"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/hookd/internal/logging"
)

// previewLen is how many leading characters of a secret survive in the
// redaction marker, enough to tell two tokens apart in diagnostics.
const previewLen = 4

// Scrubber replaces detected secrets with [REDACTED:rule:preview]
// markers. Safe for concurrent use; parallel hook batches share one
// instance.
type Scrubber struct {
	detector *detect.Detector
	log      *logging.Logger
}

// Option configures a Scrubber.
type Option func(*Scrubber)

// WithLogger sets the logger. Defaults to a nop logger.
func WithLogger(log *logging.Logger) Option {
	return func(s *Scrubber) { s.log = log }
}

// New builds a scrubber from the default Gitleaks ruleset plus an
// optional allowlist. Construction compiles several hundred rules; build
// one scrubber per process and reuse it.
func New(allowlist *Allowlist, opts ...Option) (*Scrubber, error) {
	detector, err := detect.NewDetectorDefaultConfig()
	if err != nil {
		return nil, fmt.Errorf("building secret detector: %w", err)
	}
	if allowlist != nil {
		applyAllowlist(&detector.Config, allowlist)
	}

	s := &Scrubber{detector: detector, log: logging.NewNop()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Scrub returns content with every detected secret replaced by its
// marker. Content without findings passes through unchanged.
func (s *Scrubber) Scrub(content string) string {
	if content == "" {
		return content
	}

	findings := s.detector.DetectString(content)
	if len(findings) == 0 {
		return content
	}

	rules := make([]string, 0, len(findings))
	for _, f := range findings {
		rules = append(rules, f.RuleID)
	}
	s.log.Debug(context.Background(), "redacted hook output",
		zap.Int("findings", len(findings)),
		zap.Strings("rules", rules))

	return replaceFindings(content, findings)
}

// replaceFindings substitutes markers by secret value rather than by
// reported position: a token echoed twice disappears both times, and a
// stale column never splices the wrong bytes. Longer secrets go first so
// a secret containing another is not clobbered halfway.
func replaceFindings(content string, findings []report.Finding) string {
	sorted := make([]report.Finding, len(findings))
	copy(sorted, findings)
	sort.Slice(sorted, func(i, j int) bool {
		return len(sorted[i].Secret) > len(sorted[j].Secret)
	})

	seen := make(map[string]struct{}, len(sorted))
	for _, f := range sorted {
		if f.Secret == "" {
			continue
		}
		if _, done := seen[f.Secret]; done {
			continue
		}
		seen[f.Secret] = struct{}{}

		marker := fmt.Sprintf("[REDACTED:%s:%s]", f.RuleID, preview(f.Secret))
		content = strings.ReplaceAll(content, f.Secret, marker)
	}
	return content
}

func preview(secret string) string {
	if len(secret) <= previewLen {
		return secret
	}
	return secret[:previewLen]
}
