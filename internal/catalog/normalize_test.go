package catalog

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalize_Shapes(t *testing.T) {
	long := `{"flags":[` + strings.Repeat("true,", 60) + `true]}`
	cases := []struct {
		name    string
		payload string
		want    []string
	}{
		{"models names", `{"models":[{"name":"llama3.1:8b"},{"name":"mistral:7b"}]}`, []string{"llama3.1:8b", "mistral:7b"}},
		{"models dedupe", `{"models":[{"name":"a"},{"name":" a "},{"name":"b"}]}`, []string{"a", "b"}},
		{"models fallback to model", `{"models":[{"name":"  ","model":"qwen2:7b"}]}`, []string{"qwen2:7b"}},
		{"models nested search", `{"models":[{"details":{"tag":"phi3:mini"}}]}`, []string{"phi3:mini"}},
		{"models string entries", `{"models":["gemma:2b",null,3]}`, []string{"gemma:2b"}},
		{"bare array of objects", `[{"model":"x:1"},{"name":"y:2"}]`, []string{"x:1", "y:2"}},
		{"tags whitespace heuristic", `{"tags":["a b c","model-x"]}`, []string{"model-x"}},
		{"tags all whitespace keeps all", `{"tags":["a b","c d"]}`, []string{"a b", "c d"}},
		{"tags objects", `{"tags":[{"id":"m1"},{"label":"m2"},[{"title":"m3"}]]}`, []string{"m1", "m2", "m3"}},
		{"bare scalars", `["m1",2,true,null,"m1"]`, []string{"m1", "2"}},
		{"object keys", `{"llama3":{},"mistral":{}}`, []string{"llama3", "mistral"}},
		{"scalar payload", `"hello"`, []string{}},
		{"number payload", `42`, []string{}},
		{"empty models", `{"models":[]}`, []string{}},
		{"oversized object skipped", `{"tags":[` + long + `]}`, []string{}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := Normalize([]byte(tc.payload))
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestNormalize_StringifiesSmallObjects(t *testing.T) {
	got, err := Normalize([]byte(`{"tags":[{"size": 1, "ok": true}]}`))
	require.NoError(t, err)
	require.Equal(t, []string{"1"}, got)

	got, err = Normalize([]byte(`{"tags":[{"flags": [true, false]}]}`))
	require.NoError(t, err)
	require.Equal(t, []string{`{"flags":[true,false]}`}, got)
}

func TestNormalize_DepthBound(t *testing.T) {
	// Past the depth bound the innermost reachable object is stringified.
	got, err := Normalize([]byte(`{"models":[{"a":{"b":{"c":"deep"}}}]}`))
	require.NoError(t, err)
	require.Equal(t, []string{`{"b":{"c":"deep"}}`}, got)

	got, err = Normalize([]byte(`{"models":[{"a":{"c":"shallow"}}]}`))
	require.NoError(t, err)
	require.Equal(t, []string{"shallow"}, got)
}

func TestNormalize_InvalidJSON(t *testing.T) {
	_, err := Normalize([]byte(`{"models":[`))
	require.ErrorIs(t, err, ErrInvalidPayload)
}

func TestFormatNumber(t *testing.T) {
	require.Equal(t, "2", formatNumber(2))
	require.Equal(t, "1234567", formatNumber(1234567))
	require.Equal(t, "0.5", formatNumber(0.5))
	require.Equal(t, "1e+21", formatNumber(1e21))
}
