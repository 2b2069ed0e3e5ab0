package identification

import (
	"mime"
	"sort"
	"strings"
)

// OctetStream is the canonical type for files no engine could classify.
const OctetStream = "application/octet-stream"

// Candidate is one raw engine answer. Rank is the position in the engine's
// result list, highest confidence first.
type Candidate struct {
	// MIMERaw may be empty, or hold several ", " separated alternatives.
	MIMERaw string `json:"mime,omitempty"`
	// Version may be the literal "null" meaning absent.
	Version string `json:"version,omitempty"`
	Name    string `json:"name,omitempty"`
	// PUID is a PRONOM-style identifier such as "fmt/43".
	PUID string `json:"puid,omitempty"`
}

// Param is one media type parameter.
type Param struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}

// CanonicalFormat is a media type plus ordered, unique parameters.
type CanonicalFormat struct {
	MIMEType string  `json:"mime_type"`
	Params   []Param `json:"params,omitempty"`
}

// Param returns the value of key.
func (f CanonicalFormat) Param(key string) (string, bool) {
	for _, p := range f.Params {
		if p.Key == key {
			return p.Value, true
		}
	}
	return "", false
}

// set replaces key in place or appends it.
func (f *CanonicalFormat) set(key, value string) {
	for i := range f.Params {
		if f.Params[i].Key == key {
			f.Params[i].Value = value
			return
		}
	}
	f.Params = append(f.Params, Param{Key: key, Value: value})
}

// String renders the format as a media type with parameters sorted by key,
// quoting values where RFC 2045 requires it.
func (f CanonicalFormat) String() string {
	if len(f.Params) == 0 {
		return f.MIMEType
	}
	params := make(map[string]string, len(f.Params))
	for _, p := range f.Params {
		params[p.Key] = p.Value
	}
	if rendered := mime.FormatMediaType(f.MIMEType, params); rendered != "" {
		return rendered
	}

	// FormatMediaType refuses non-token types; render verbatim instead.
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(f.MIMEType)
	for _, k := range keys {
		b.WriteString("; ")
		b.WriteString(k)
		b.WriteString("=")
		b.WriteString(params[k])
	}
	return b.String()
}

// Equal reports whether two formats have the same type and parameter list.
func (f CanonicalFormat) Equal(other CanonicalFormat) bool {
	if f.MIMEType != other.MIMEType || len(f.Params) != len(other.Params) {
		return false
	}
	for i := range f.Params {
		if f.Params[i] != other.Params[i] {
			return false
		}
	}
	return true
}
