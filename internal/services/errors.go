package services

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel markers for the failure modes the pipeline distinguishes. Format
// conversions tag container-shape problems, step transitions tag ordering
// problems, and the ambient markers cover everything else.
var (
	// ErrStructureMissing reports that an expected named section is absent
	// from a container (the external tool did not save the expected layout).
	ErrStructureMissing = errors.New("container structure missing")
	// ErrReferenceResolution reports that a stored reference inside a
	// container could not be dereferenced to an underlying array.
	ErrReferenceResolution = errors.New("reference resolution failed")
	// ErrCountMismatch reports a violated 1:1 correspondence between a
	// step's inputs and outputs.
	ErrCountMismatch = errors.New("input/output count mismatch")
	// ErrPrerequisiteNotMet reports an attempted transition into a step
	// whose predecessor is incomplete.
	ErrPrerequisiteNotMet = errors.New("prerequisite not met")
	// ErrAmbiguousMatch reports an edited file whose name matches more than
	// one original base name.
	ErrAmbiguousMatch = errors.New("ambiguous base name match")

	ErrValidation    = errors.New("validation error")
	ErrConfiguration = errors.New("configuration error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient failure")
)

// FailureKind describes how the tracker should treat a conversion failure.
type FailureKind string

const (
	// KindManual means the failure needs a corrected input file (for
	// example a re-save from the editing tool) before retrying is useful.
	KindManual FailureKind = "manual"
	// KindTransient means a later reconciliation pass may retry on its own.
	KindTransient FailureKind = "transient"
)

// Wrap builds an error message that includes component context while tagging
// it with the provided marker for later classification. The marker should be
// one of the exported sentinel errors above.
func Wrap(marker error, component, operation, message string, err error) error {
	detail := buildDetail(component, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// Classify maps a conversion error to the retry treatment it deserves.
// Container-shape and naming problems require a human (or the external tool)
// to produce a corrected file; everything else may be retried.
func Classify(err error) FailureKind {
	switch {
	case errors.Is(err, ErrStructureMissing),
		errors.Is(err, ErrReferenceResolution),
		errors.Is(err, ErrAmbiguousMatch),
		errors.Is(err, ErrValidation),
		errors.Is(err, ErrConfiguration):
		return KindManual
	default:
		return KindTransient
	}
}

func buildDetail(component, operation, message string) string {
	parts := make([]string, 0, 3)
	if component = strings.TrimSpace(component); component != "" {
		parts = append(parts, component)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
