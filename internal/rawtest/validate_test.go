package rawtest

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateMzArraysPerfectMatch(t *testing.T) {
	result := ValidateMzArrays([]float64{100.0, 200.0, 300.0}, []float64{100.0, 200.0, 300.0}, 0.1)
	assert.Zero(t, result.MaxErrorPPM)
	assert.Zero(t, result.MeanErrorPPM)
	assert.Empty(t, result.Errors)
}

func TestValidateMzArraysSmallError(t *testing.T) {
	parsed := []float64{100.000005, 200.00001, 300.000015}
	truth := []float64{100.0, 200.0, 300.0}
	result := ValidateMzArrays(parsed, truth, 0.1)
	assert.Less(t, result.MaxErrorPPM, 0.1)
	assert.Empty(t, result.Errors)
}

func TestValidateMzArraysLargeError(t *testing.T) {
	result := ValidateMzArrays([]float64{100.001}, []float64{100.0}, 0.1)
	assert.Greater(t, result.MaxErrorPPM, 1.0)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateMzArraysLengthMismatch(t *testing.T) {
	result := ValidateMzArrays([]float64{100.0, 200.0}, []float64{100.0}, 0.1)
	assert.True(t, math.IsInf(result.MaxErrorPPM, 1))
	assert.NotEmpty(t, result.Errors)
}

func TestValidateIntensityArraysPerfect(t *testing.T) {
	result := ValidateIntensityArrays([]float64{1000.0, 2000.0}, []float64{1000.0, 2000.0}, 1e-6)
	assert.Zero(t, result.MaxRelativeError)
	assert.Empty(t, result.Errors)
}

func TestValidateIntensityArraysWithError(t *testing.T) {
	result := ValidateIntensityArrays([]float64{1000.01}, []float64{1000.0}, 1e-6)
	assert.Greater(t, result.MaxRelativeError, 1e-6)
	assert.NotEmpty(t, result.Errors)
}

func TestValidateIntensityArraysZeroTruthNonzeroParsed(t *testing.T) {
	result := ValidateIntensityArrays([]float64{5.0}, []float64{0.0}, 1e-6)
	assert.True(t, math.IsInf(result.MaxRelativeError, 1))
}
