package audit

import (
	"fmt"
	"net/url"
	"strings"
)

const defaultScheme = "https://"

// NormalizeURL prefixes https:// when the target has no http(s) scheme and
// checks that the result names a host.
func NormalizeURL(raw string) (string, error) {
	target := strings.TrimSpace(raw)
	if target == "" {
		return "", fmt.Errorf("%w: empty url", ErrInvalidInput)
	}
	lower := strings.ToLower(target)
	if !strings.HasPrefix(lower, "http://") && !strings.HasPrefix(lower, "https://") {
		if strings.Contains(target, "://") {
			return "", fmt.Errorf("%w: unsupported scheme in %q", ErrInvalidInput, target)
		}
		target = defaultScheme + target
	}
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	host := u.Hostname()
	if host == "" || strings.ContainsAny(host, " \t") {
		return "", fmt.Errorf("%w: missing host in %q", ErrInvalidInput, raw)
	}
	return u.String(), nil
}
