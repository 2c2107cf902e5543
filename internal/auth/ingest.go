package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"net/http"
	"strconv"
	"time"
)

// IngestAuthMiddleware authenticates scan reader traffic. Readers are
// machines, not users, so instead of carrying JWTs they sign each
// request with a shared HMAC secret.
type IngestAuthMiddleware struct {
	Secret  []byte
	MaxSkew time.Duration
}

// NewIngestAuthMiddleware constructs ingest auth middleware.
func NewIngestAuthMiddleware(secret []byte, maxSkew time.Duration) *IngestAuthMiddleware {
	return &IngestAuthMiddleware{Secret: secret, MaxSkew: maxSkew}
}

// Wrap verifies the signature headers before the scan payload reaches
// the handler. The body is buffered so the handler can read it again.
func (m *IngestAuthMiddleware) Wrap(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, status, msg := m.verify(r)
		if status != 0 {
			http.Error(w, msg, status)
			return
		}
		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r)
	})
}

// verify checks the headers and signature, returning the buffered body
// on success and a non-zero status with a message on failure.
func (m *IngestAuthMiddleware) verify(r *http.Request) ([]byte, int, string) {
	if len(m.Secret) == 0 {
		return nil, http.StatusUnauthorized, "ingest auth not configured"
	}
	timestamp := r.Header.Get("X-Ingest-Timestamp")
	presented, err := hex.DecodeString(r.Header.Get("X-Ingest-Signature"))
	if timestamp == "" || err != nil || len(presented) == 0 {
		return nil, http.StatusUnauthorized, "missing ingest signature"
	}
	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return nil, http.StatusUnauthorized, "invalid ingest timestamp"
	}
	if m.MaxSkew > 0 && time.Since(time.Unix(ts, 0)).Abs() > m.MaxSkew {
		return nil, http.StatusUnauthorized, "ingest signature expired"
	}
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, http.StatusBadRequest, "read body error"
	}
	_ = r.Body.Close()
	if !hmac.Equal(presented, ingestMAC(m.Secret, timestamp, body)) {
		return nil, http.StatusUnauthorized, "invalid ingest signature"
	}
	return body, 0, ""
}

func ingestMAC(secret []byte, timestamp string, body []byte) []byte {
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte{'\n'})
	mac.Write(body)
	return mac.Sum(nil)
}

// ComputeIngestSignature signs a request the way readers must:
// hex(hmac-sha256(secret, timestamp + "\n" + body)).
func ComputeIngestSignature(secret []byte, timestamp string, body []byte) string {
	return hex.EncodeToString(ingestMAC(secret, timestamp, body))
}
