package integrity

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/clover/pkg/metrics"
	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// Enforcement modes. Strict refuses to serve a bundle that fails
// verification; observe logs the violation and serves it anyway.
const (
	EnforcementStrict  = "strict"
	EnforcementObserve = "observe"
)

// ErrIntegrityViolation is returned in strict mode when a bundle fails
// checksum verification.
var ErrIntegrityViolation = errors.New("value bundle integrity violation")

// VerifyResult reports the outcome of a checksum verification
type VerifyResult struct {
	Valid    bool   `json:"valid"`
	Expected string `json:"expected"`
	Actual   string `json:"actual"`
}

// Guard verifies sealed value bundles before they are served
type Guard struct {
	mode   string
	logger ectologger.Logger
}

// NewGuard creates a guard with the given enforcement mode. Unknown modes
// fall back to strict; serving silently is the failure we exist to prevent.
func NewGuard(mode string, logger ectologger.Logger) *Guard {
	if mode != EnforcementStrict && mode != EnforcementObserve {
		logger.Warnf("Unknown integrity enforcement mode %q, defaulting to strict", mode)
		mode = EnforcementStrict
	}
	return &Guard{
		mode:   mode,
		logger: logger,
	}
}

// Mode returns the configured enforcement mode
func (g *Guard) Mode() string {
	return g.mode
}

// Verify recomputes the checksum from the sealed field values and compares
// it against the attached token. A bundle with no checksum is always
// invalid.
func (g *Guard) Verify(ctx context.Context, s SealedBundle) VerifyResult {
	actual := s.Checksum()
	expected := Checksum(s.Bundle())

	result := VerifyResult{
		Valid:    actual != "" && actual == expected,
		Expected: expected,
		Actual:   actual,
	}

	if !result.Valid {
		metrics.IntegrityViolationsTotal.WithLabelValues(g.mode).Inc()
		g.logger.WithContext(ctx).WithFields(map[string]any{
			"player_id": s.Bundle().PlayerID,
			"expected":  expected,
			"actual":    actual,
			"mode":      g.mode,
		}).Error("INTEGRITY VIOLATION: value bundle checksum mismatch")
	}

	return result
}

// Release verifies a sealed bundle and returns the underlying values. In
// strict mode a failed verification returns ErrIntegrityViolation; in
// observe mode the violation is logged by Verify and the values are served.
func (g *Guard) Release(ctx context.Context, s SealedBundle) (models.ValueBundle, error) {
	ctx, span := tracing.StartSpan(ctx, "integrity.Guard.Release")
	defer span.End()

	result := g.Verify(ctx, s)
	if !result.Valid && g.mode == EnforcementStrict {
		return models.ValueBundle{}, fmt.Errorf("%w: player %s", ErrIntegrityViolation, s.Bundle().PlayerID)
	}

	return s.Bundle(), nil
}

// Validate returns a human-readable list of defects for a sealed bundle.
// An empty list means the bundle is fit to serve. Validation never errors;
// it reports.
func (g *Guard) Validate(ctx context.Context, s SealedBundle) []string {
	defects := []string{}

	b := s.Bundle()
	if b.PlayerID == "" {
		defects = append(defects, "missing player_id")
	}
	// zero is a legitimate valuation; NaN and infinities are the only
	// float states that cannot be a real value
	if math.IsNaN(b.Value) || math.IsInf(b.Value, 0) {
		defects = append(defects, "value is not a finite number")
	}
	if b.ValueEpoch <= 0 {
		defects = append(defects, "missing value_epoch")
	}
	if b.UpdatedAt.IsZero() {
		defects = append(defects, "missing updated_at")
	}

	if !s.Sealed() {
		defects = append(defects, "bundle is not sealed: no checksum attached")
		return defects
	}

	if expected := Checksum(b); s.Checksum() != expected {
		defects = append(defects, fmt.Sprintf("checksum mismatch: expected %s, got %s", expected, s.Checksum()))
	}

	return defects
}

// ReportMutationAttempt records an attempted write to a sealed bundle.
// Callers that detect a write path reaching sealed data report it here so
// the attempt is visible even though the value type already blocks it.
func (g *Guard) ReportMutationAttempt(ctx context.Context, playerID, field string) {
	metrics.MutationAttemptsTotal.Inc()
	g.logger.WithContext(ctx).WithFields(map[string]any{
		"player_id": playerID,
		"field":     field,
	}).Warn("Attempted mutation of sealed value bundle")
}
