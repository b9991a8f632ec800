package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"net/http"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = "whsec_" + base64.StdEncoding.EncodeToString([]byte("super-secret-signing-key"))

func newTestVerifier(t *testing.T, now time.Time) *Verifier {
	t.Helper()
	v, err := NewVerifier(testSecret, 5*time.Minute)
	require.NoError(t, err)
	v.now = func() time.Time { return now }
	return v
}

func signedHeader(t *testing.T, v *Verifier, id string, ts time.Time, body []byte) http.Header {
	t.Helper()
	sig, err := v.Sign(id, ts, body)
	require.NoError(t, err)
	h := http.Header{}
	h.Set(HeaderID, id)
	h.Set(HeaderTimestamp, strconv.FormatInt(ts.Unix(), 10))
	h.Set(HeaderSignature, sig)
	return h
}

func TestVerifier_Verify(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"type":"payment.succeeded","data":{}}`)

	t.Run("valid signature", func(t *testing.T) {
		v := newTestVerifier(t, now)
		id, err := v.Verify(signedHeader(t, v, "msg_1", now, body), body)
		require.NoError(t, err)
		assert.Equal(t, "msg_1", id)
	})

	t.Run("one of several signatures matches", func(t *testing.T) {
		v := newTestVerifier(t, now)
		h := signedHeader(t, v, "msg_2", now, body)
		h.Set(HeaderSignature, "v1,bm90LXRoZS1zaWduYXR1cmU= "+h.Get(HeaderSignature))
		_, err := v.Verify(h, body)
		assert.NoError(t, err)
	})

	t.Run("tampered body", func(t *testing.T) {
		v := newTestVerifier(t, now)
		h := signedHeader(t, v, "msg_3", now, body)
		_, err := v.Verify(h, []byte(`{"type":"payment.succeeded","data":{"x":1}}`))
		assert.ErrorIs(t, err, ErrNoMatchingSignature)
	})

	t.Run("wrong secret", func(t *testing.T) {
		v := newTestVerifier(t, now)
		other, err := NewVerifier("whsec_"+base64.StdEncoding.EncodeToString([]byte("another-key")), 0)
		require.NoError(t, err)
		_, err = v.Verify(signedHeader(t, other, "msg_4", now, body), body)
		assert.ErrorIs(t, err, ErrNoMatchingSignature)
	})

	t.Run("stale timestamp", func(t *testing.T) {
		v := newTestVerifier(t, now)
		_, err := v.Verify(signedHeader(t, v, "msg_5", now.Add(-6*time.Minute), body), body)
		assert.ErrorIs(t, err, ErrTimestampExpired)
	})

	t.Run("future timestamp", func(t *testing.T) {
		v := newTestVerifier(t, now)
		_, err := v.Verify(signedHeader(t, v, "msg_6", now.Add(6*time.Minute), body), body)
		assert.ErrorIs(t, err, ErrTimestampExpired)
	})

	t.Run("missing headers", func(t *testing.T) {
		v := newTestVerifier(t, now)
		h := signedHeader(t, v, "msg_7", now, body)
		h.Del(HeaderID)
		_, err := v.Verify(h, body)
		assert.ErrorIs(t, err, ErrMissingHeaders)
	})

	t.Run("non numeric timestamp", func(t *testing.T) {
		v := newTestVerifier(t, now)
		h := signedHeader(t, v, "msg_8", now, body)
		h.Set(HeaderTimestamp, "yesterday")
		_, err := v.Verify(h, body)
		assert.ErrorIs(t, err, ErrInvalidTimestamp)
	})

	t.Run("unknown version is ignored", func(t *testing.T) {
		v := newTestVerifier(t, now)
		h := signedHeader(t, v, "msg_9", now, body)
		sig := h.Get(HeaderSignature)
		h.Set(HeaderSignature, "v2"+sig[2:])
		_, err := v.Verify(h, body)
		assert.ErrorIs(t, err, ErrNoMatchingSignature)
	})
}

func TestVerifier_HandComputedSignature(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{"type":"subscription.renewed"}`)
	ts := strconv.FormatInt(now.Unix(), 10)

	mac := hmac.New(sha256.New, []byte("super-secret-signing-key"))
	mac.Write([]byte("msg_10." + ts + "."))
	mac.Write(body)

	h := http.Header{}
	h.Set(HeaderID, "msg_10")
	h.Set(HeaderTimestamp, ts)
	h.Set(HeaderSignature, "v1,"+base64.StdEncoding.EncodeToString(mac.Sum(nil)))

	v := newTestVerifier(t, now)
	id, err := v.Verify(h, body)
	require.NoError(t, err)
	assert.Equal(t, "msg_10", id)

	sig, err := v.Sign("msg_10", now, body)
	require.NoError(t, err)
	assert.Equal(t, h.Get(HeaderSignature), sig)
}

func TestVerifier_CustomTolerance(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	body := []byte(`{}`)
	v, err := NewVerifier(testSecret, 10*time.Minute)
	require.NoError(t, err)
	v.now = func() time.Time { return now }

	id, err := v.Verify(signedHeader(t, v, "msg_11", now.Add(-8*time.Minute), body), body)
	require.NoError(t, err)
	assert.Equal(t, "msg_11", id)
}

func TestVerifier_NotConfigured(t *testing.T) {
	v, err := NewVerifier("", 0)
	require.NoError(t, err)
	_, err = v.Verify(http.Header{}, nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
	_, err = v.Sign("msg_1", time.Now(), nil)
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestNewVerifier_BadSecret(t *testing.T) {
	_, err := NewVerifier("whsec_***not base64***", 0)
	assert.Error(t, err)
}
