// Copyright 2018 Saferwall. All rights reserved.
// Use of this source code is governed by Apache v2 license
// license that can be found in the LICENSE file.

// Package rawtest holds the array-comparison logic used to check a
// parsed scan against an independently captured ground truth value
// (e.g. exported from the vendor's own reader), without pulling in the
// ground-truth capture/storage format itself.
package rawtest

import (
	"fmt"
	"math"
)

// ArrayComparison is the result of comparing a parsed m/z or intensity
// array against its ground truth counterpart.
type ArrayComparison struct {
	MaxErrorPPM  float64
	MeanErrorPPM float64
	Errors       []string
}

// ValidateMzArrays compares parsed against truth element-wise, in parts
// per million, reporting every element that exceeds tolerancePPM. A
// length mismatch is reported as an infinite error without comparing
// elements.
func ValidateMzArrays(parsed, truth []float64, tolerancePPM float64) ArrayComparison {
	if len(parsed) != len(truth) {
		return ArrayComparison{
			MaxErrorPPM:  math.Inf(1),
			MeanErrorPPM: math.Inf(1),
			Errors: []string{fmt.Sprintf(
				"Peak count mismatch: parsed=%d truth=%d", len(parsed), len(truth))},
		}
	}

	var maxError, sumError float64
	var errs []string
	for i := range parsed {
		errorPPM := 0.0
		if truth[i] != 0.0 {
			errorPPM = math.Abs((parsed[i]-truth[i])/truth[i]) * 1e6
		}
		if errorPPM > maxError {
			maxError = errorPPM
		}
		sumError += errorPPM
		if errorPPM > tolerancePPM {
			errs = append(errs, fmt.Sprintf(
				"Peak %d: mz parsed=%.8f truth=%.8f error=%.4f ppm", i, parsed[i], truth[i], errorPPM))
		}
	}

	meanError := 0.0
	if len(truth) > 0 {
		meanError = sumError / float64(len(truth))
	}
	return ArrayComparison{MaxErrorPPM: maxError, MeanErrorPPM: meanError, Errors: errs}
}

// IntensityComparison is the result of comparing a parsed intensity
// array against its ground truth counterpart.
type IntensityComparison struct {
	MaxRelativeError float64
	Errors           []string
}

// ValidateIntensityArrays compares parsed against truth element-wise, as
// a relative error, reporting every element that exceeds tolerance. A
// length mismatch is reported as an infinite error without comparing
// elements.
func ValidateIntensityArrays(parsed, truth []float64, tolerance float64) IntensityComparison {
	if len(parsed) != len(truth) {
		return IntensityComparison{
			MaxRelativeError: math.Inf(1),
			Errors: []string{fmt.Sprintf(
				"Intensity count mismatch: parsed=%d truth=%d", len(parsed), len(truth))},
		}
	}

	var maxError float64
	var errs []string
	for i := range parsed {
		var relError float64
		switch {
		case truth[i] != 0.0:
			relError = math.Abs((parsed[i] - truth[i]) / truth[i])
		case parsed[i] != 0.0:
			relError = math.Inf(1)
		default:
			relError = 0.0
		}
		if relError > maxError {
			maxError = relError
		}
		if relError > tolerance {
			errs = append(errs, fmt.Sprintf(
				"Peak %d: intensity parsed=%.6f truth=%.6f rel_error=%.2e", i, parsed[i], truth[i], relError))
		}
	}
	return IntensityComparison{MaxRelativeError: maxError, Errors: errs}
}
