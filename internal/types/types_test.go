package types

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeTickerIsIdempotent(t *testing.T) {
	cases := map[string]string{
		" brk.b ":  "BRK.B",
		"aapl":     "AAPL",
		"BF-B":     "BF-B",
		"\tmsft\n": "MSFT",
	}
	for in, want := range cases {
		once, err := NormalizeTicker(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, once)

		twice, err := NormalizeTicker(once)
		require.NoError(t, err, in)
		assert.Equal(t, once, twice)
	}
}

func TestNormalizeTickerRejects(t *testing.T) {
	for _, in := range []string{"", "   ", "AAPL1", "ABCDEFGHIJK", "A B", "ÄPPL", "AAPL$"} {
		_, err := NormalizeTicker(in)
		require.Error(t, err, "%q", in)
		assert.True(t, errors.Is(err, ErrInvalidTicker), "%q", in)

		var invalid *InvalidTickerError
		require.ErrorAs(t, err, &invalid)
		assert.Equal(t, in, invalid.Input)
	}
}

func TestNormalizeTickerAcceptsTenCharacters(t *testing.T) {
	got, err := NormalizeTicker("abcdefghij")
	require.NoError(t, err)
	assert.Equal(t, "ABCDEFGHIJ", got)
}

func TestErrorKinds(t *testing.T) {
	notFound := &TickerNotFoundError{Ticker: "ZZZZ", Provider: "polygon"}
	provider := &ProviderError{Provider: "polygon", StatusCode: 500, Err: errors.New("boom")}
	transport := &ModelTransportError{Analyst: "score_agent", Model: "m", Attempts: 5, Err: errors.New("503")}
	format := &ResponseFormatError{Analyst: "compiler_agent", Schema: SchemaCompiled, Err: &OracleMismatchError{Field: "final_score", Got: 70, Want: 63}}

	assert.True(t, IsDataError(notFound))
	assert.True(t, IsDataError(provider))
	assert.False(t, IsDataError(transport))

	assert.True(t, IsModelError(transport))
	assert.True(t, IsModelError(format))
	assert.True(t, IsModelError(ErrEmptyResponse))
	assert.False(t, IsModelError(provider))

	var mismatch *OracleMismatchError
	require.ErrorAs(t, format, &mismatch)
	assert.Equal(t, "final_score", mismatch.Field)
}
