// Package validation checks user-supplied optimization parameters
// before any pipeline work starts, so bad flags fail fast with a
// message naming the offending value.
package validation

import (
	"fmt"
	"regexp"
	"strings"

	apperrors "github.com/indpriyanshuraj/talvaar-image-optimizer/internal/errors"
)

var (
	validModes = map[string]bool{
		"auto":    true,
		"rgba":    true,
		"palette": true,
		"rgb":     true,
	}
	validFormats = map[string]bool{
		"":     true, // defaults to png
		"png":  true,
		"jpg":  true,
		"jpeg": true,
		"webp": true,
		"qoi":  true,
	}
	validConflictPolicies = map[string]bool{
		"overwrite": true,
		"keep_both": true,
	}
	validAlgorithms = map[string]bool{
		"auto":     true,
		"nearest":  true,
		"bilinear": true,
		"bicubic":  true,
		"mitchell": true,
		"lanczos":  true,
	}

	pixelSpecPattern      = regexp.MustCompile(`^\d+x\d+$`)
	percentageSpecPattern = regexp.MustCompile(`^\d+(\.\d+)?%$`)
)

// ParamsValidator validates optimization parameters.
type ParamsValidator struct{}

// NewParamsValidator creates a new parameter validator.
func NewParamsValidator() *ParamsValidator {
	return &ParamsValidator{}
}

// ValidateMode checks the save mode.
func (v *ParamsValidator) ValidateMode(mode string) error {
	if !validModes[strings.ToLower(mode)] {
		return apperrors.NewValidationError(
			fmt.Sprintf("invalid mode %q (expected auto, rgba, palette or rgb)", mode), nil)
	}
	return nil
}

// ValidateFormat checks the output format.
func (v *ParamsValidator) ValidateFormat(format string) error {
	if !validFormats[strings.ToLower(format)] {
		return apperrors.NewValidationError(
			fmt.Sprintf("invalid format %q (expected png, jpeg, webp or qoi)", format), nil)
	}
	return nil
}

// ValidateCompression checks the compression level range.
func (v *ParamsValidator) ValidateCompression(level int) error {
	if level < 0 || level > 9 {
		return apperrors.NewValidationError(
			fmt.Sprintf("compression level %d out of range 0-9", level), nil)
	}
	return nil
}

// ValidateConflictPolicy checks the output-conflict policy.
func (v *ParamsValidator) ValidateConflictPolicy(policy string) error {
	if !validConflictPolicies[strings.ToLower(policy)] {
		return apperrors.NewValidationError(
			fmt.Sprintf("invalid conflict policy %q (expected overwrite or keep_both)", policy), nil)
	}
	return nil
}

// ValidateAlgorithm checks the resize kernel name.
func (v *ParamsValidator) ValidateAlgorithm(algorithm string) error {
	if !validAlgorithms[strings.ToLower(algorithm)] {
		return apperrors.NewValidationError(
			fmt.Sprintf("invalid resize algorithm %q", algorithm), nil)
	}
	return nil
}

// ValidateResizeSpec checks a resize specification: either an absolute
// "WxH" in pixels or a "N%" scale. Empty means no resizing.
func (v *ParamsValidator) ValidateResizeSpec(spec string) error {
	if spec == "" {
		return nil
	}
	spec = strings.ToLower(strings.TrimSpace(spec))
	if pixelSpecPattern.MatchString(spec) || percentageSpecPattern.MatchString(spec) {
		return nil
	}
	return apperrors.NewValidationError(
		fmt.Sprintf("invalid resize spec %q (expected WxH or N%%)", spec), nil)
}

// ValidateAll runs every parameter check and returns the first failure.
func (v *ParamsValidator) ValidateAll(mode, format string, compression int, conflict, algorithm, resize string) error {
	if err := v.ValidateMode(mode); err != nil {
		return err
	}
	if err := v.ValidateFormat(format); err != nil {
		return err
	}
	if err := v.ValidateCompression(compression); err != nil {
		return err
	}
	if err := v.ValidateConflictPolicy(conflict); err != nil {
		return err
	}
	if err := v.ValidateAlgorithm(algorithm); err != nil {
		return err
	}
	return v.ValidateResizeSpec(resize)
}
