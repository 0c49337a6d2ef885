package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrProbe marks failures while reading source media characteristics,
	// including required fields the container simply does not carry.
	ErrProbe = errors.New("probe error")
	// ErrEncode marks encoder process failures after retries are exhausted.
	ErrEncode = errors.New("encode failure")
	// ErrMetricUnavailable marks a single quality metric that could not be
	// computed for the current pair of files.
	ErrMetricUnavailable = errors.New("metric unavailable")
	// ErrQualityUnverifiable marks exhaustion of the whole metric fallback chain.
	ErrQualityUnverifiable = errors.New("quality unverifiable")
	// ErrIterationLimit marks a search that hit its trial ceiling before
	// converging.
	ErrIterationLimit = errors.New("iteration limit exceeded")
	// ErrPolicyNotMet marks a finished search whose best candidate fails the
	// size or quality acceptance policy.
	ErrPolicyNotMet = errors.New("size or quality policy not met")
	// ErrStuck marks an operation killed by the supervisor after producing no
	// progress signal within the absolute ceiling.
	ErrStuck = errors.New("operation stuck")
	// ErrValidation marks caller mistakes such as unsupported flag combinations.
	ErrValidation = errors.New("validation error")
	// ErrConfiguration marks unusable configuration files or values.
	ErrConfiguration = errors.New("configuration error")
	// ErrTransient marks failures with no better classification.
	ErrTransient = errors.New("transient failure")
)

// Wrap builds an error message that includes component context while tagging it
// with the provided marker for later outcome classification. The marker should
// be one of the exported sentinel errors above.
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

// Reason is the stable label a conversion outcome carries for a failed file.
type Reason string

const (
	ReasonProbe             Reason = "probe_error"
	ReasonEncode            Reason = "encode_failure"
	ReasonMetricUnavailable Reason = "metric_unavailable"
	ReasonUnverifiable      Reason = "quality_unverifiable"
	ReasonIterationLimit    Reason = "iteration_limit_exceeded"
	ReasonPolicyNotMet      Reason = "size_or_quality_not_met"
	ReasonStuck             Reason = "stuck"
	ReasonValidation        Reason = "validation_error"
	ReasonConfiguration     Reason = "configuration_error"
	ReasonTransient         Reason = "transient_failure"
)

// Classify maps an error to the rejection reason the pipeline records on the
// per-file outcome. Classification follows the sentinel markers, so wrapped
// errors keep their taxonomy through arbitrary nesting.
func Classify(err error) Reason {
	switch {
	case errors.Is(err, ErrProbe):
		return ReasonProbe
	case errors.Is(err, ErrStuck):
		return ReasonStuck
	case errors.Is(err, ErrEncode):
		return ReasonEncode
	case errors.Is(err, ErrQualityUnverifiable):
		return ReasonUnverifiable
	case errors.Is(err, ErrMetricUnavailable):
		return ReasonMetricUnavailable
	case errors.Is(err, ErrIterationLimit):
		return ReasonIterationLimit
	case errors.Is(err, ErrPolicyNotMet):
		return ReasonPolicyNotMet
	case errors.Is(err, ErrValidation):
		return ReasonValidation
	case errors.Is(err, ErrConfiguration):
		return ReasonConfiguration
	default:
		return ReasonTransient
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
