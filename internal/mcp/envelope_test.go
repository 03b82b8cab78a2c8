package mcp

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/ragmcp/internal/errors"
)

func TestOKEnvelope(t *testing.T) {
	env := ok("search", time.Now(), 3, []string{"a", "b", "c"})
	assert.True(t, env.Success)
	assert.Equal(t, 3, env.Metadata.Count)
	assert.Equal(t, "search", env.Metadata.Operation)
	assert.Empty(t, env.Errors)
}

func TestFailEnvelopeCarriesPartialData(t *testing.T) {
	entry := entryFrom(errors.Validation("bad input"), errors.CodeValidation)
	env := fail("add_points", time.Now(), []string{"42"}, entry)
	assert.False(t, env.Success)
	assert.Equal(t, []string{"42"}, env.Data)
	require.Len(t, env.Errors, 1)
	assert.Equal(t, "VALIDATION_ERROR", env.Errors[0].Code)
	assert.NotEmpty(t, env.Errors[0].Suggestions)
}

func TestEntryFromWrapsPlainErrors(t *testing.T) {
	entry := entryFrom(assert.AnError, errors.CodeStoreUnavailable)
	assert.Equal(t, "VECTOR_STORE_UNAVAILABLE", entry.Code)
	assert.NotEmpty(t, entry.Message)
}

func TestParseID(t *testing.T) {
	id, err := parseID("42")
	require.NoError(t, err)
	assert.Equal(t, uint64(42), id)

	id, err = parseID(" 9007199254740993 ")
	require.NoError(t, err)
	assert.Equal(t, uint64(9007199254740993), id)

	_, err = parseID("forty-two")
	require.Error(t, err)
	assert.Equal(t, errors.CodeValidation, errors.CodeOf(err))
}

func TestFormatIDRoundTrip(t *testing.T) {
	const id = uint64(1234567890123456789)
	parsed, err := parseID(formatID(id))
	require.NoError(t, err)
	assert.Equal(t, id, parsed)
}

func TestPrecisionHint(t *testing.T) {
	assert.NotEmpty(t, precisionHint("1234567890123456700"))
	assert.Empty(t, precisionHint("1234567890123456789"))
	assert.Empty(t, precisionHint("42"))
}
