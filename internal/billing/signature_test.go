package billing

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strconv"
	"testing"
	"time"
)

const testSecret = "whsec_test"

func signPayload(t *testing.T, payload []byte, secret string, at time.Time) string {
	t.Helper()
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return fmt.Sprintf("t=%s,v1=%s", ts, hex.EncodeToString(mac.Sum(nil)))
}

func TestVerifySignatureValid(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1"}`)
	header := signPayload(t, payload, testSecret, now)

	if err := VerifySignature(payload, header, testSecret, DefaultTolerance, now); err != nil {
		t.Fatalf("valid signature rejected: %v", err)
	}
}

func TestVerifySignatureWrongSecret(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1"}`)
	header := signPayload(t, payload, "whsec_other", now)

	err := VerifySignature(payload, header, testSecret, DefaultTolerance, now)
	if !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestVerifySignatureTamperedPayload(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1"}`)
	header := signPayload(t, payload, testSecret, now)

	err := VerifySignature([]byte(`{"id":"evt_2"}`), header, testSecret, DefaultTolerance, now)
	if !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestVerifySignatureStaleTimestamp(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1"}`)
	header := signPayload(t, payload, testSecret, now.Add(-6*time.Minute))

	err := VerifySignature(payload, header, testSecret, DefaultTolerance, now)
	if !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature for stale timestamp, got %v", err)
	}
}

func TestVerifySignatureMissingHeader(t *testing.T) {
	err := VerifySignature([]byte(`{}`), "", testSecret, DefaultTolerance, time.Now())
	if !errors.Is(err, ErrSignature) {
		t.Fatalf("expected ErrSignature, got %v", err)
	}
}

func TestVerifySignatureExtraV1Candidates(t *testing.T) {
	now := time.Now()
	payload := []byte(`{"id":"evt_1"}`)
	header := signPayload(t, payload, testSecret, now) + ",v1=deadbeef"

	if err := VerifySignature(payload, header, testSecret, DefaultTolerance, now); err != nil {
		t.Fatalf("valid candidate among extras rejected: %v", err)
	}
}
