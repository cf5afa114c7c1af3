package transport

import (
	"strings"

	stealth "github.com/anatolykoptev/go-stealth"
)

// defaultUserAgent is the fallback User-Agent when none is configured.
const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// apiHeaders returns the browser-consistent base headers for REST API calls.
func apiHeaders(userAgent string) map[string]string {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	h := map[string]string{
		"user-agent":      userAgent,
		"accept":          "*/*",
		"accept-language": "en-US,en;q=0.9",
		"accept-encoding": "gzip, deflate, br",
	}
	if ch := stealth.ClientHintsHeaders(userAgent); ch != nil {
		for k, v := range ch {
			h[k] = v
		}
	}
	return h
}

// mergeHeaders overlays request headers onto base using lowercase names.
func mergeHeaders(base map[string]string, hdr map[string][]string) map[string]string {
	out := make(map[string]string, len(base)+len(hdr))
	for k, v := range base {
		out[k] = v
	}
	for k, vs := range hdr {
		if len(vs) > 0 {
			out[strings.ToLower(k)] = strings.Join(vs, ", ")
		}
	}
	return out
}

// apiHeaderOrder is the header order sent on the wire for TLS fingerprint consistency.
var apiHeaderOrder = []string{
	"authorization",
	"content-type",
	"content-length",
	"sec-ch-ua",
	"sec-ch-ua-mobile",
	"sec-ch-ua-platform",
	"user-agent",
	"accept",
	"accept-language",
	"accept-encoding",
}
