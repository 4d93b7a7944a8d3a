package utils

import (
	"fmt"
	"net/url"
	"strings"
)

// CleanURI trims surrounding whitespace and every trailing slash from a base URI
// so that paths can be appended with a single "/".
func CleanURI(uri string) string {
	return strings.TrimRight(strings.TrimSpace(uri), "/")
}

// ParseBaseURL cleans uri and checks it is an absolute http(s) URL.
func ParseBaseURL(uri string) (*url.URL, error) {
	cleaned := CleanURI(uri)
	if cleaned == "" {
		return nil, fmt.Errorf("empty URL")
	}

	u, err := url.Parse(cleaned)
	if err != nil {
		return nil, fmt.Errorf("invalid URL %q: %w", uri, err)
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid URL %q: scheme must be http or https", uri)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: missing host", uri)
	}

	return u, nil
}
