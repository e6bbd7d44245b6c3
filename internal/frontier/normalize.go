package frontier

import (
	"net/url"
	"strings"
)

// Normalize drops the fragment and one trailing slash from the path. The
// query string and host case are preserved.
func Normalize(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	u.RawFragment = ""
	if strings.HasSuffix(u.Path, "/") {
		u.Path = strings.TrimSuffix(u.Path, "/")
		if u.RawPath != "" {
			u.RawPath = strings.TrimSuffix(u.RawPath, "/")
		}
	}
	return u.String(), nil
}

// Resolve turns an anchor href found on pageURL into a normalized absolute
// URL. Fragments, script links and non-http(s) targets are rejected.
//
// Normalized page URLs have lost their trailing slash, so relative hrefs are
// resolved against pageURL as if it were a directory.
func Resolve(pageURL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if !isFollowable(href) {
		return "", false
	}

	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}

	var abs *url.URL
	if ref.IsAbs() {
		abs = ref
	} else {
		baseURL, err := url.Parse(pageURL)
		if err != nil {
			return "", false
		}
		if !strings.HasSuffix(baseURL.Path, "/") {
			baseURL.Path += "/"
			baseURL.RawPath = ""
		}
		abs = baseURL.ResolveReference(ref)
	}

	if abs.Scheme != "http" && abs.Scheme != "https" {
		return "", false
	}
	normalized, err := Normalize(abs.String())
	if err != nil {
		return "", false
	}
	return normalized, true
}

func isFollowable(href string) bool {
	if href == "" {
		return false
	}
	lower := strings.ToLower(href)
	return !strings.HasPrefix(lower, "#") &&
		!strings.HasPrefix(lower, "javascript:") &&
		!strings.HasPrefix(lower, "mailto:")
}
