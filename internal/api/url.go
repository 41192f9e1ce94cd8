package api

import "strings"

// RootSegment is the path segment every backend route lives under.
const RootSegment = "api"

// BuildURL turns a logical endpoint into a request URL. With an empty base the result is a
// same-origin path. The root segment appears exactly once whether or not endpoint or base
// already carry it, and BuildURL(base, BuildURL(base, e)) == BuildURL(base, e).
func BuildURL(base, endpoint string) string {
	base = normalizeBase(base)
	endpoint = strings.TrimSpace(endpoint)

	if base == "" {
		rest := stripRoot(endpoint)
		if rest == "" {
			return "/" + RootSegment
		}
		return "/" + RootSegment + "/" + rest
	}

	switch {
	case endpoint == base:
		endpoint = ""
	case strings.HasPrefix(endpoint, base+"/"):
		endpoint = strings.TrimPrefix(endpoint, base)
	case isAbsoluteURL(endpoint):
		// A different origin; nothing to join.
		return endpoint
	}

	rest := stripRoot(endpoint)
	if hasRootSuffix(base) {
		if rest == "" {
			return base
		}
		return base + "/" + rest
	}
	if rest == "" {
		return base + "/" + RootSegment
	}
	return base + "/" + RootSegment + "/" + rest
}

func normalizeBase(base string) string {
	return strings.TrimRight(strings.TrimSpace(base), "/")
}

// stripRoot removes leading slashes and any leading root segments.
func stripRoot(endpoint string) string {
	rest := strings.TrimLeft(endpoint, "/")
	for {
		if rest == RootSegment {
			return ""
		}
		if !strings.HasPrefix(rest, RootSegment+"/") {
			return rest
		}
		rest = strings.TrimLeft(strings.TrimPrefix(rest, RootSegment+"/"), "/")
	}
}

func hasRootSuffix(base string) bool {
	path := base
	if i := strings.Index(base, "://"); i >= 0 {
		host := base[i+3:]
		j := strings.Index(host, "/")
		if j < 0 {
			return false
		}
		path = host[j:]
	}
	return path == "/"+RootSegment || strings.HasSuffix(path, "/"+RootSegment)
}

func isAbsoluteURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}
