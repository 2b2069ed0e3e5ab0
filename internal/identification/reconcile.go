package identification

import (
	"mime"
	"sort"
	"strings"
)

const (
	paramVersion = "version"
	paramPUID    = "puid"
	paramName    = "name"

	alternativeSeparator = ", "
	puidTypePrefix       = "application/x-puid-"
)

// Reconcile collapses an engine's ordered candidates into one CanonicalFormat.
// It is a pure function of its input.
//
// Only the first candidate is consulted. When it carries a MIME type, the first
// ", " alternative is parsed and version/puid parameters are added only if the
// list holds exactly one candidate. Without a MIME type a vendor type is built
// from the puid, carrying the candidate name and version.
func Reconcile(candidates []Candidate) CanonicalFormat {
	if len(candidates) == 0 {
		return CanonicalFormat{MIMEType: OctetStream}
	}
	first := candidates[0]

	if first.MIMERaw != "" {
		chosen := first.MIMERaw
		if idx := strings.Index(chosen, alternativeSeparator); idx >= 0 {
			chosen = chosen[:idx]
		}
		format := parseMediaType(chosen)
		if _, ok := format.Param(paramVersion); !ok && hasVersion(first.Version) && len(candidates) == 1 {
			format.set(paramVersion, first.Version)
			format.set(paramPUID, puidParam(first.PUID))
		}
		return format
	}

	format := CanonicalFormat{MIMEType: puidTypePrefix + puidParam(first.PUID)}
	format.set(paramName, strings.ReplaceAll(first.Name, `"`, "'"))
	if hasVersion(first.Version) {
		format.set(paramVersion, first.Version)
	}
	return format
}

// parseMediaType splits a media type into base type and parameters. Input that
// does not parse is kept verbatim (trimmed) as the base type.
func parseMediaType(raw string) CanonicalFormat {
	base, params, err := mime.ParseMediaType(raw)
	if err != nil {
		return CanonicalFormat{MIMEType: strings.TrimSpace(raw)}
	}
	format := CanonicalFormat{MIMEType: base}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		format.set(k, params[k])
	}
	return format
}

func hasVersion(v string) bool {
	return v != "" && v != "null"
}

func puidParam(puid string) string {
	return strings.ReplaceAll(puid, "/", "-")
}
