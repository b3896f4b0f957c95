package signedurl

import (
	"errors"
	"testing"
	"time"

	"github.com/streamforge/uploadengine/uploaderr"
)

func TestSignThenValidateHappyPath(t *testing.T) {
	s := New(Config{Secret: []byte("shh")})

	signed, err := s.Sign("https://example.com/upload", SignOptions{
		ExpiresIn:   time.Minute,
		MaxFileSize: 10,
	})
	if err != nil {
		t.Fatalf("Sign error: %v", err)
	}

	result, err := s.Validate(signed)
	if err != nil {
		t.Fatalf("Validate error: %v", err)
	}
	if result.Constraints.MaxFileSize != 10 {
		t.Fatalf("MaxFileSize = %d, want 10", result.Constraints.MaxFileSize)
	}
	if result.TimeRemaining <= 0 || result.TimeRemaining > time.Minute {
		t.Fatalf("TimeRemaining = %v, want (0, 1m]", result.TimeRemaining)
	}
}

func TestValidateRejectsTamperedSignature(t *testing.T) {
	s := New(Config{Secret: []byte("shh")})
	signed, _ := s.Sign("https://example.com/upload", SignOptions{ExpiresIn: time.Minute})

	tampered := signed[:len(signed)-1] + "0"
	_, err := s.Validate(tampered)
	var uerr *uploaderr.Error
	if !errors.As(err, &uerr) || uerr.Code != uploaderr.CodeSignedURLInvalid {
		t.Fatalf("expected SignedURLInvalid, got %v", err)
	}
}

func TestValidateRejectsExpired(t *testing.T) {
	s := New(Config{Secret: []byte("shh")})
	signed, _ := s.Sign("https://example.com/upload", SignOptions{ExpiresIn: -time.Minute})

	_, err := s.Validate(signed)
	var uerr *uploaderr.Error
	if !errors.As(err, &uerr) || uerr.Code != uploaderr.CodeSignedURLExpired {
		t.Fatalf("expected SignedURLExpired, got %v", err)
	}
}

func TestValidateRejectsReplay(t *testing.T) {
	replay := NewReplayCache(0)
	defer replay.Close()

	s := New(Config{Secret: []byte("shh"), ReplayCache: replay})
	signed, _ := s.Sign("https://example.com/upload", SignOptions{ExpiresIn: time.Minute})

	if _, err := s.Validate(signed); err != nil {
		t.Fatalf("first validate: unexpected error: %v", err)
	}

	_, err := s.Validate(signed)
	var uerr *uploaderr.Error
	if !errors.As(err, &uerr) || uerr.Code != uploaderr.CodeSignedURLReplayed {
		t.Fatalf("expected SignedURLReplayed, got %v", err)
	}
}

func TestValidateMissingSignature(t *testing.T) {
	s := New(Config{Secret: []byte("shh")})
	_, err := s.Validate("https://example.com/upload?expires=123")
	var uerr *uploaderr.Error
	if !errors.As(err, &uerr) || uerr.Code != uploaderr.CodeSignedURLMissingSignature {
		t.Fatalf("expected SignedURLMissingSignature, got %v", err)
	}
}

func TestReplayCacheSweepRemovesExpired(t *testing.T) {
	rc := NewReplayCache(0)
	defer rc.Close()

	rc.Record("sig1", time.Now().Add(-time.Hour).Unix())
	rc.Record("sig2", time.Now().Add(time.Hour).Unix())

	rc.sweep(time.Now().Unix())

	if rc.Seen("sig1") {
		t.Fatal("expected sig1 to be swept")
	}
	if !rc.Seen("sig2") {
		t.Fatal("expected sig2 to survive sweep")
	}
}
