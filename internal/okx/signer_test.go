package okx

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testCreds = Credentials{
	APIKey:     "test-key",
	APISecret:  "test-secret",
	Passphrase: "test-pass",
}

func TestTimestampFormat(t *testing.T) {
	at := time.Date(2024, 3, 7, 9, 30, 15, 123_000_000, time.UTC)
	assert.Equal(t, "2024-03-07T09:30:15.123Z", Timestamp(at))

	// Non-UTC inputs are normalized
	loc := time.FixedZone("plus2", 2*3600)
	assert.Equal(t, "2024-03-07T09:30:15.123Z", Timestamp(at.In(loc)))
}

func TestBuildHeadersSignsTimestampMethodPathBody(t *testing.T) {
	at := time.Date(2024, 3, 7, 9, 30, 15, 123_000_000, time.UTC)
	path := "/api/v5/dex/aggregator/quote?chainId=1&amount=100"

	h := BuildHeaders(testCreds, "GET", path, "", at)

	assert.Equal(t, "test-key", h.Get("OK-ACCESS-KEY"))
	assert.Equal(t, "test-pass", h.Get("OK-ACCESS-PASSPHRASE"))
	assert.Equal(t, "2024-03-07T09:30:15.123Z", h.Get("OK-ACCESS-TIMESTAMP"))
	assert.Equal(t, "application/json", h.Get("Content-Type"))
	assert.Empty(t, h.Get("OK-ACCESS-PROJECT"))

	// The signed message is ts + method + path + body
	mac := hmac.New(sha256.New, []byte("test-secret"))
	mac.Write([]byte("2024-03-07T09:30:15.123Z" + "GET" + path))
	want := base64.StdEncoding.EncodeToString(mac.Sum(nil))
	assert.Equal(t, want, h.Get("OK-ACCESS-SIGN"))
}

func TestBuildHeadersBodyChangesSignature(t *testing.T) {
	at := time.Date(2024, 3, 7, 9, 30, 15, 0, time.UTC)

	withoutBody := BuildHeaders(testCreds, "POST", "/api/v5/x", "", at)
	withBody := BuildHeaders(testCreds, "POST", "/api/v5/x", `{"a":1}`, at)

	require.NotEmpty(t, withoutBody.Get("OK-ACCESS-SIGN"))
	assert.NotEqual(t, withoutBody.Get("OK-ACCESS-SIGN"), withBody.Get("OK-ACCESS-SIGN"))
}

func TestBuildHeadersDeterministicForFixedClock(t *testing.T) {
	at := time.Date(2024, 3, 7, 9, 30, 15, 0, time.UTC)

	a := BuildHeaders(testCreds, "GET", "/api/v5/x", "", at)
	b := BuildHeaders(testCreds, "GET", "/api/v5/x", "", at)
	assert.Equal(t, a.Get("OK-ACCESS-SIGN"), b.Get("OK-ACCESS-SIGN"))
}

func TestBuildHeadersProjectHeaderOptional(t *testing.T) {
	creds := testCreds
	creds.ProjectID = "proj-1"

	h := BuildHeaders(creds, "GET", "/api/v5/x", "", time.Now())
	assert.Equal(t, "proj-1", h.Get("OK-ACCESS-PROJECT"))
}
