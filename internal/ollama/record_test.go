package ollama

import (
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestParseRecord_Malformed(t *testing.T) {
	for _, line := range []string{"not json at all", `{"message":`, `{"a":1} trailing`} {
		_, err := ParseRecord(line)
		require.ErrorIs(t, err, ErrMalformedRecord, line)
	}
	r, err := ParseRecord(`{"done":false}`)
	require.NoError(t, err)
	require.True(t, r.IsObject())
}

func TestIsValidRecord(t *testing.T) {
	cases := map[string]bool{
		`{"message":{"content":"x"}}`: true,
		`{"message":{}}`:              true,
		`{"error":"boom"}`:            true,
		`{"done":false}`:              true,
		`{"done":true}`:               true,
		`{"message":"flat"}`:          false,
		`{"message":null}`:            false,
		`{"error":42}`:                false,
		`{"done":"true"}`:             false,
		`{"model":"llama"}`:           false,
		`[{"done":true}]`:             false,
		`"done"`:                      false,
		`42`:                          false,
		`null`:                        false,
	}
	for in, want := range cases {
		require.Equal(t, want, IsValidRecord(gjson.Parse(in)), in)
	}
}

func TestExtractContent(t *testing.T) {
	require.Equal(t, "hi", ExtractContent(gjson.Parse(`{"message":{"role":"assistant","content":"hi"}}`)))
	require.Equal(t, "", ExtractContent(gjson.Parse(`{"message":{"content":7}}`)))
	require.Equal(t, "", ExtractContent(gjson.Parse(`{"message":{}}`)))
	require.Equal(t, "", ExtractContent(gjson.Parse(`{"done":true}`)))
	require.Equal(t, "", ExtractContent(gjson.Parse(`["x"]`)))
}

func TestExtractError(t *testing.T) {
	msg, ok := ExtractError(gjson.Parse(`{"error":"model not found"}`))
	require.True(t, ok)
	require.Equal(t, "model not found", msg)

	_, ok = ExtractError(gjson.Parse(`{"error":""}`))
	require.False(t, ok)
	_, ok = ExtractError(gjson.Parse(`{"done":true}`))
	require.False(t, ok)
	_, ok = ExtractError(gjson.Parse(`{"error":{"code":1}}`))
	require.False(t, ok)
}

func TestIsDone(t *testing.T) {
	require.True(t, IsDone(gjson.Parse(`{"done":true}`)))
	require.True(t, IsDone(gjson.Parse(`{"message":{"content":""},"done":true}`)))
	require.False(t, IsDone(gjson.Parse(`{"done":false}`)))
	require.False(t, IsDone(gjson.Parse(`{"done":1}`)))
	require.False(t, IsDone(gjson.Parse(`{"message":{},"done":"yes"}`)))
}
