package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFormatForCLI(t *testing.T) {
	err := Config("no vector store configured")

	out := FormatForCLI(err)

	assert.Contains(t, out, "Error: no vector store configured")
	assert.Contains(t, out, "Hint:")
	assert.Contains(t, out, "Code: CONFIG_ERROR")
}

func TestFormatForCLI_PlainError(t *testing.T) {
	out := FormatForCLI(errors.New("something broke"))

	assert.Contains(t, out, "something broke")
	assert.Contains(t, out, "Code:")
}

func TestFormatForCLI_Nil(t *testing.T) {
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatForLog(t *testing.T) {
	err := DimensionMismatch(384, 768)

	attrs := FormatForLog(err)

	assert.Equal(t, CodeDimensionMismatch, attrs["error_code"])
	assert.Equal(t, 384, attrs["detail_expected"])
	assert.Equal(t, false, attrs["retryable"])
}

func TestFormatForLog_PlainError(t *testing.T) {
	attrs := FormatForLog(errors.New("boom"))
	assert.Equal(t, "boom", attrs["error"])
}
