package server

import (
	"net"
	"net/http"
	"strings"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

// ------------------------------------------------------------
// Client IP
//
// The server usually sits behind an ALB or CloudFront, so RemoteAddr
// is the proxy. The access log wants the operator's address instead.
// ------------------------------------------------------------

// isPublicIP:
//   - false for private, loopback and link-local addresses
//   - used to skip proxy hops inside X-Forwarded-For
func isPublicIP(ip net.IP) bool {
	if ip == nil {
		return false
	}
	// IPv4 private ranges: 10/8, 172.16/12, 192.168/16 (and IPv6 fc00::/7)
	if ip.IsPrivate() {
		return false
	}
	// loopback, link-local
	if ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() {
		return false
	}
	return true
}

// safeParseIP:
//   - tolerates surrounding spaces (" 203.0.113.1" from "a, b" lists)
//   - nil for empty or malformed input
func safeParseIP(s string) net.IP {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return net.ParseIP(s)
}

// clientIP
//
// Priority:
//  1. X-Forwarded-For, first public address
//  2. CloudFront-Viewer-Address, port stripped
//  3. RemoteAddr
//
// Unlike the forwarded headers, RemoteAddr is returned even when it is a
// private address: operators commonly query from inside the VPC.
func clientIP(r *http.Request) string {

	// 1) X-Forwarded-For (ALB)
	// e.g. "203.0.113.1, 10.0.1.24"
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		for _, part := range strings.Split(xff, ",") {
			ip := safeParseIP(part)
			if isPublicIP(ip) {
				return ip.String()
			}
		}
	}

	// 2) CloudFront-Viewer-Address
	// e.g. "203.0.113.55:44321" or "2404:6800:4004::200e:44321"
	if cf := r.Header.Get("CloudFront-Viewer-Address"); cf != "" {
		host := cf
		// strip the port at the last ":" (works for IPv6 too)
		if i := strings.LastIndex(cf, ":"); i != -1 {
			host = cf[:i]
		}
		ip := safeParseIP(host)
		if isPublicIP(ip) {
			return ip.String()
		}
	}

	// 3) RemoteAddr fallback
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil {
		if ip := safeParseIP(host); ip != nil {
			return ip.String()
		}
	}
	return ""
}

// accessLog writes one zerolog record per finished request.
// Streams are logged when they end, with their full duration.
func accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}

		// 4xx is the caller's problem, 5xx ours
		ev := log.Info()
		if status >= http.StatusInternalServerError {
			ev = log.Error()
		} else if status >= http.StatusBadRequest {
			ev = log.Warn()
		}
		ev.
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", status).
			Int("bytes", ww.BytesWritten()).
			Dur("took", time.Since(start)).
			Str("ip", clientIP(r)).
			Msg("request")
	})
}
