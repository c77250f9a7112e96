package ollama

import (
	"github.com/tidwall/gjson"
)

// ParseRecord parses one NDJSON line. It returns ErrMalformedRecord when the
// line is not a single JSON value.
func ParseRecord(line string) (gjson.Result, error) {
	if !gjson.Valid(line) {
		return gjson.Result{}, ErrMalformedRecord
	}
	return gjson.Parse(line), nil
}

// IsValidRecord reports whether x looks like an Ollama chat record: a JSON
// object with a nested message object, a string error or a boolean done flag.
func IsValidRecord(x gjson.Result) bool {
	if !x.IsObject() {
		return false
	}
	if x.Get("message").IsObject() {
		return true
	}
	if x.Get("error").Type == gjson.String {
		return true
	}
	d := x.Get("done")
	return d.Type == gjson.True || d.Type == gjson.False
}

// ExtractContent returns message.content when it is a string, else "".
func ExtractContent(x gjson.Result) string {
	if !IsValidRecord(x) {
		return ""
	}
	c := x.Get("message.content")
	if c.Type != gjson.String {
		return ""
	}
	return c.Str
}

// ExtractError returns the record's error text. An empty string counts as absent.
func ExtractError(x gjson.Result) (string, bool) {
	if !IsValidRecord(x) {
		return "", false
	}
	e := x.Get("error")
	if e.Type != gjson.String || e.Str == "" {
		return "", false
	}
	return e.Str, true
}

// IsDone is true only for a literal `"done": true`.
func IsDone(x gjson.Result) bool {
	if !IsValidRecord(x) {
		return false
	}
	return x.Get("done").Type == gjson.True
}
