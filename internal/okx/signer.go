// Package okx implements the signed client for the upstream OKX-style
// market data API: request signing, per-endpoint circuit breaking and
// bounded retries with exponential backoff.
package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"time"
)

// Credentials holds the upstream API credentials. ProjectID is optional and
// only attached when configured.
type Credentials struct {
	APIKey     string
	APISecret  string
	Passphrase string
	ProjectID  string
}

// timestampLayout is the upstream's required ISO-8601 format with
// millisecond precision, always UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z"

// Timestamp formats t the way the upstream signature scheme expects
func Timestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

// Sign returns base64(HMAC-SHA256(secret, message))
func Sign(secret, message string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(message))
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

// BuildHeaders produces the signed headers for one request. The signed
// message is timestamp + method + requestPath + body, where requestPath
// includes the query string and body is empty for GET. Pure function of its
// inputs; callers inject the clock.
func BuildHeaders(creds Credentials, method, requestPath, body string, now time.Time) http.Header {
	ts := Timestamp(now)
	h := http.Header{}
	h.Set("OK-ACCESS-KEY", creds.APIKey)
	h.Set("OK-ACCESS-SIGN", Sign(creds.APISecret, ts+method+requestPath+body))
	h.Set("OK-ACCESS-TIMESTAMP", ts)
	h.Set("OK-ACCESS-PASSPHRASE", creds.Passphrase)
	h.Set("Content-Type", "application/json")
	if creds.ProjectID != "" {
		h.Set("OK-ACCESS-PROJECT", creds.ProjectID)
	}
	return h
}
