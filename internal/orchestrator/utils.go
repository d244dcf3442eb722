package orchestrator

import (
	"fmt"
	"net/url"
	"path"
	"strings"
)

// parseSourceURL accepts absolute http and https URLs only.
func parseSourceURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("%w: empty url", ErrInvalidURL)
	}

	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("%w: unsupported scheme %q", ErrInvalidURL, u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("%w: missing host", ErrInvalidURL)
	}
	return u, nil
}

// titleFromURL derives a readable title when neither the caller nor the page supplies one.
func titleFromURL(u *url.URL) string {
	p := strings.TrimSuffix(u.Path, "/")
	if p == "" {
		return u.Host
	}
	return u.Host + "/" + path.Base(p)
}

// firstNonEmpty returns the first value that is not blank after trimming.
func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}

// isPlainText reports whether a Content-Type header names a text format that
// is not HTML.
func isPlainText(contentType string) bool {
	ct := strings.ToLower(contentType)
	if i := strings.IndexByte(ct, ';'); i >= 0 {
		ct = ct[:i]
	}
	ct = strings.TrimSpace(ct)
	return strings.HasPrefix(ct, "text/") && ct != "text/html"
}
