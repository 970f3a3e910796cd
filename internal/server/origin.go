// Package server normalizes and validates HTTP origins for WebSocket
// upgrade requests to enforce configured access control.
package server

import (
	"log"
	"net/http"
	"net/url"
	"strings"
)

// originChecker decides whether a WebSocket upgrade request comes from an
// allowed origin. A configured "*" entry allows every origin.
type originChecker struct {
	allowed  map[string]struct{}
	allowAll bool
}

func newOriginChecker(origins []string) *originChecker {
	oc := &originChecker{allowed: make(map[string]struct{}, len(origins))}

	for _, origin := range origins {
		trimmed := strings.TrimSpace(origin)
		if trimmed == "" {
			continue
		}
		if trimmed == "*" {
			oc.allowAll = true
			continue
		}

		normalized, ok := normalizeOrigin(trimmed)
		if !ok {
			log.Printf("Ignoring invalid origin in configuration: %q", origin)
			continue
		}
		oc.allowed[normalized] = struct{}{}
	}

	return oc
}

func normalizeOrigin(origin string) (string, bool) {
	parsed, err := url.Parse(origin)
	if err != nil {
		return "", false
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return "", false
	}
	return strings.ToLower(parsed.Scheme) + "://" + strings.ToLower(parsed.Host), true
}

func (oc *originChecker) isAllowed(r *http.Request) bool {
	originHeader := r.Header.Get("Origin")
	if originHeader == "" {
		return false
	}

	normalized, ok := normalizeOrigin(originHeader)
	if !ok {
		return false
	}

	if oc.allowAll {
		return true
	}
	_, exists := oc.allowed[normalized]
	return exists
}

func (oc *originChecker) check(r *http.Request) bool {
	if oc.isAllowed(r) {
		return true
	}

	log.Printf("Blocked WebSocket connection from disallowed origin: %q", r.Header.Get("Origin"))
	return false
}
