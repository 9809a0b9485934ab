// Package clientip extracts real client IP addresses from HTTP requests.
//
// Proxy headers are checked in priority order (CF-Connecting-IP,
// X-Forwarded-For, X-Real-IP) before falling back to the connection's
// RemoteAddr. Extracted values are validated and normalized, which matters
// for rate limiting: an attacker must not be able to reset their bucket by
// sending a garbage header.
package clientip

import (
	"net"
	"net/http"
	"strings"
)

// Headers checked in priority order. CDN-set headers come first because
// they are the hardest to spoof when the service actually sits behind one.
var headerPriority = []string{
	"CF-Connecting-IP",
	"X-Forwarded-For",
	"X-Real-IP",
}

// GetIP returns the client IP address for the request.
// It never returns an empty string: when no header yields a valid address,
// the host part of RemoteAddr is returned as-is.
func GetIP(r *http.Request) string {
	for _, header := range headerPriority {
		value := r.Header.Get(header)
		if value == "" {
			continue
		}

		// X-Forwarded-For may contain a chain "client, proxy1, proxy2";
		// the leftmost entry is the original client.
		if header == "X-Forwarded-For" {
			if ip := firstValidIP(strings.Split(value, ",")); ip != "" {
				return ip
			}
			continue
		}

		if ip := normalizeIP(value); ip != "" {
			return ip
		}
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	if ip := normalizeIP(host); ip != "" {
		return ip
	}
	return host
}

// firstValidIP returns the first parseable address in the list, normalized.
func firstValidIP(candidates []string) string {
	for _, c := range candidates {
		if ip := normalizeIP(c); ip != "" {
			return ip
		}
	}
	return ""
}

// normalizeIP parses and canonicalizes an address string.
// Returns "" for invalid input and for the unspecified addresses
// (0.0.0.0, ::), which indicate no usable client IP.
func normalizeIP(s string) string {
	ip := net.ParseIP(strings.TrimSpace(s))
	if ip == nil || ip.IsUnspecified() {
		return ""
	}
	return ip.String()
}
