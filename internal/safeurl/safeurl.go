// Package safeurl validates stream and playlist locators before they reach
// the downloader or an external process.
package safeurl

import "net/url"

// IsHTTPOrHTTPS returns true if u is a valid URL with scheme http or https.
// Used to reject file://, ftp://, and other schemes that could lead to SSRF
// or local file access via ffprobe's protocol handlers.
func IsHTTPOrHTTPS(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	s := parsed.Scheme
	return s == "http" || s == "https"
}

// IsProbeTarget returns true if u is something the stream prober may hand to
// the inspection process: http(s) plus the streaming schemes providers use.
func IsProbeTarget(u string) bool {
	parsed, err := url.Parse(u)
	if err != nil {
		return false
	}
	switch parsed.Scheme {
	case "http", "https", "rtmp", "rtsp", "mms", "udp", "rtp":
		return true
	}
	return false
}
