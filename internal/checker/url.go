package checker

import (
	"fmt"
	"net/url"
	"strings"
)

// LinkKind is the coarse classification applied before probing.
type LinkKind int

// Link kinds. Only KindHTTP targets are probed; the rest become Skipped
// records at discovery time.
const (
	KindHTTP LinkKind = iota
	KindMailto
	KindLocal
	KindInvalid
	KindUnsupported
)

// Classify buckets a raw target before any network work happens.
func Classify(raw string) LinkKind {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return KindInvalid
	}
	lower := strings.ToLower(trimmed)
	switch {
	case strings.HasPrefix(lower, "mailto:"):
		return KindMailto
	case strings.HasPrefix(lower, "file://"):
		return KindLocal
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return KindInvalid
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		if u.Host == "" {
			return KindInvalid
		}
		return KindHTTP
	case "":
		// No scheme means we cannot probe it; reject rather than guess.
		return KindInvalid
	default:
		return KindUnsupported
	}
}

// Normalize produces the canonical form of an http(s) URL used as the
// per-run deduplication key. It lowercases scheme and host, strips default
// ports and fragments, sorts query parameters, trims a trailing slash from
// non-root paths, and fixes an empty path to "/" so the host root has a
// single form.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("parse url: %w", err)
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	if (u.Scheme == "http" && strings.HasSuffix(u.Host, ":80")) ||
		(u.Scheme == "https" && strings.HasSuffix(u.Host, ":443")) {
		u.Host = u.Hostname()
	}

	u.Fragment = ""

	if len(u.Path) > 1 && strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
	}
	if u.Path == "" {
		u.Path = "/"
	}

	q := u.Query()
	u.RawQuery = q.Encode()

	return u.String(), nil
}

// SkipReason maps a non-probeable link kind to its record reason.
func SkipReason(kind LinkKind) string {
	switch kind {
	case KindMailto:
		return ReasonMailto
	case KindLocal:
		return ReasonLocalFile
	case KindUnsupported:
		return ReasonUnsupportedScheme
	default:
		return ReasonInvalidURL
	}
}
