package livesync

import (
	"fmt"
	"net/url"
	"strings"

	"crawlwatch/internal/api"
)

// StreamPath is the crawler's push channel route
const StreamPath = api.PathPrefix + "/ws"

// StreamURL derives the push channel address from the REST base address by
// swapping the scheme (http→ws, https→wss) and appending StreamPath.
func StreamURL(base string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", fmt.Errorf("invalid backend URL %q: %w", base, err)
	}

	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	case "ws", "wss":
	default:
		return "", fmt.Errorf("invalid backend URL %q: unsupported scheme %q", base, u.Scheme)
	}
	if u.Host == "" {
		return "", fmt.Errorf("invalid backend URL %q: missing host", base)
	}

	u.Path = strings.TrimRight(u.Path, "/") + StreamPath
	u.RawPath = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u.String(), nil
}
