package gateway

import (
	"net/http"
	"net/url"

	"go.uber.org/zap"

	"github.com/duskcourt/onuw/internal/logging"
)

// OriginChecker validates the Origin header on the WebSocket upgrade
// request against a configured allow-list, grounded on the video
// conferencing transport's validateOrigin helper. An empty allow-list
// accepts every origin, matching the teacher's permissive development
// default, but a non-empty list is matched on scheme+host only.
type OriginChecker struct {
	allowed []string
}

// NewOriginChecker builds a checker from a comma-free list of origins
// (e.g. "http://localhost:3000"). A nil/empty list allows everything.
func NewOriginChecker(allowed []string) *OriginChecker {
	return &OriginChecker{allowed: allowed}
}

// CheckOrigin is suitable for websocket.Upgrader.CheckOrigin.
func (c *OriginChecker) CheckOrigin(r *http.Request) bool {
	if len(c.allowed) == 0 {
		return true
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // non-browser clients carry no Origin header
	}

	originURL, err := url.Parse(origin)
	if err != nil {
		logging.Get().Warn("invalid origin header", zap.String("origin", origin), zap.Error(err))
		return false
	}

	for _, allow := range c.allowed {
		allowedURL, err := url.Parse(allow)
		if err != nil {
			continue
		}
		if originURL.Scheme == allowedURL.Scheme && originURL.Host == allowedURL.Host {
			return true
		}
	}

	logging.Get().Warn("origin not in allow-list", zap.String("origin", origin))
	return false
}
