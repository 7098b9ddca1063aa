package http

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/mooncress/authcore/internal/domain"
	"github.com/mooncress/authcore/pkg/httpx"
)

const maxBodyBytes = 64 << 10

// decodeJSON reads a JSON request body into dst, rejecting fields the
// endpoint does not know. It writes the error response itself and reports
// whether decoding succeeded.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeBody(w, r, dst, true)
}

// decodeJSONLenient is decodeJSON without the unknown-field check, for
// bodies whose shape is owned by an external party (federation provider
// userinfo payloads carry fields beyond the mapped subset).
func decodeJSONLenient(w http.ResponseWriter, r *http.Request, dst any) bool {
	return decodeBody(w, r, dst, false)
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any, strict bool) bool {
	if ct := r.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "application/json") {
		httpx.WriteError(w, http.StatusUnsupportedMediaType, "invalid_content_type",
			"expected application/json")
		return false
	}

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if strict {
		dec.DisallowUnknownFields()
	}
	if err := dec.Decode(dst); err != nil {
		httpx.WriteError(w, http.StatusBadRequest, "invalid_body",
			"request body is not valid JSON")
		return false
	}
	return true
}

// clientInfo captures the advisory fingerprint stored with a new session.
func clientInfo(r *http.Request) domain.ClientInfo {
	ip := r.Header.Get("X-Forwarded-For")
	if ip != "" {
		if idx := strings.Index(ip, ","); idx >= 0 {
			ip = ip[:idx]
		}
		ip = strings.TrimSpace(ip)
	} else if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		ip = host
	} else {
		ip = r.RemoteAddr
	}

	return domain.ClientInfo{
		IP:        ip,
		UserAgent: r.UserAgent(),
	}
}
