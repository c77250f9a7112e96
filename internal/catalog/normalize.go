package catalog

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"unicode"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// ErrInvalidPayload is returned when the discovery response is not JSON.
var ErrInvalidPayload = errors.New("model list is not valid JSON")

const (
	// entryDepth bounds the nested search inside one models[] entry.
	entryDepth = 2
	// valueDepth bounds the nested search for tags[] and bare arrays.
	valueDepth = 3
	// maxStringified is the longest compact JSON accepted as a fallback name.
	maxStringified = 200
)

// preferredKeys are checked, in order, before any other nested field.
var preferredKeys = []string{"name", "id", "tag", "model", "label", "title"}

// Normalize turns a discovery payload into model identifiers. Shapes are
// matched in a fixed order:
//
//	(a) {"models": [...]}        per entry: name, model, then nested search
//	(b) [{...}, ...]             same per-entry rule
//	(c) {"tags": [...]}          nested search per entry
//	(d) [scalar, ...]            stringified scalars / nested search
//	(e) {...}                    the object's key names
//
// Anything else yields an empty list. The result is trimmed, de-duplicated
// in first-seen order and filtered by preferCompact.
func Normalize(payload []byte) ([]string, error) {
	if !gjson.ValidBytes(payload) {
		return nil, ErrInvalidPayload
	}
	root := gjson.ParseBytes(payload)
	var raw []string
	switch {
	case root.IsObject() && root.Get("models").IsArray():
		raw = fromEntries(root.Get("models").Array())
	case root.IsArray() && firstIsObject(root):
		raw = fromEntries(root.Array())
	case root.IsObject() && root.Get("tags").IsArray():
		raw = fromValues(root.Get("tags").Array())
	case root.IsArray():
		raw = fromValues(root.Array())
	case root.IsObject():
		root.ForEach(func(key, _ gjson.Result) bool {
			raw = append(raw, key.String())
			return true
		})
	}
	return preferCompact(dedupe(raw)), nil
}

func firstIsObject(arr gjson.Result) bool {
	items := arr.Array()
	return len(items) > 0 && items[0].IsObject()
}

func fromEntries(items []gjson.Result) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		switch {
		case it.Type == gjson.String:
			out = append(out, it.Str)
		case it.IsObject():
			if v := nonBlankString(it.Get("name")); v != "" {
				out = append(out, v)
			} else if v := nonBlankString(it.Get("model")); v != "" {
				out = append(out, v)
			} else if v, ok := extract(it, entryDepth); ok {
				out = append(out, v)
			}
		}
	}
	return out
}

func fromValues(items []gjson.Result) []string {
	out := make([]string, 0, len(items))
	for _, it := range items {
		if v, ok := extract(it, valueDepth); ok {
			out = append(out, v)
		}
	}
	return out
}

// extract finds the first string-like value in x, descending at most depth
// levels into arrays and objects.
func extract(x gjson.Result, depth int) (string, bool) {
	switch x.Type {
	case gjson.String:
		return x.Str, x.Str != ""
	case gjson.Number:
		return formatNumber(x.Num), true
	case gjson.Null, gjson.True, gjson.False:
		return "", false
	}
	if !x.Exists() || depth <= 0 {
		return "", false
	}
	if x.IsArray() {
		for _, it := range x.Array() {
			if v, ok := extract(it, depth-1); ok {
				return v, true
			}
		}
		return "", false
	}
	for _, k := range preferredKeys {
		if v := nonBlankString(x.Get(k)); v != "" {
			return v, true
		}
	}
	var found string
	x.ForEach(func(_, v gjson.Result) bool {
		if s, ok := extract(v, depth-1); ok {
			found = s
			return false
		}
		return true
	})
	if found != "" {
		return found, true
	}
	if s := string(pretty.Ugly([]byte(x.Raw))); len(s) < maxStringified {
		return s, true
	}
	return "", false
}

func nonBlankString(r gjson.Result) string {
	if r.Type != gjson.String {
		return ""
	}
	return strings.TrimSpace(r.Str)
}

// formatNumber renders n the way JSON producers usually print it: plain
// decimals, exponent form only for very large or very small magnitudes.
func formatNumber(n float64) string {
	abs := math.Abs(n)
	if abs != 0 && (abs >= 1e21 || abs < 1e-6) {
		return strconv.FormatFloat(n, 'g', -1, 64)
	}
	return strconv.FormatFloat(n, 'f', -1, 64)
}

func dedupe(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// preferCompact drops whitespace-bearing entries when at least one compact
// identifier exists. Stringified objects and sentences are usually noise.
func preferCompact(in []string) []string {
	compact := make([]string, 0, len(in))
	for _, s := range in {
		if strings.IndexFunc(s, unicode.IsSpace) < 0 {
			compact = append(compact, s)
		}
	}
	if len(compact) == 0 {
		return in
	}
	return compact
}
