package auth

import (
	"bytes"
	"testing"

	"spice-go/internal/spiceerr"
)

func TestNoAuthAcceptsEmptyChallenge(t *testing.T) {
	resp, err := NoAuth{}.Authenticate(nil)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if resp != nil {
		t.Fatalf("resp = %v, want nil", resp)
	}
}

func TestNoAuthRejectsNonEmptyChallenge(t *testing.T) {
	_, err := NoAuth{}.Authenticate([]byte{1, 2, 3})
	if err != spiceerr.ErrAuthenticationFailed {
		t.Fatalf("err = %v, want ErrAuthenticationFailed", err)
	}
}

func TestPasswordAuthEmptyChallengeIsNoop(t *testing.T) {
	resp, err := PasswordAuth{Password: "hunter2"}.Authenticate(nil)
	if err != nil || resp != nil {
		t.Fatalf("resp=%v err=%v, want nil,nil", resp, err)
	}
}

func TestPasswordAuthIsDeterministicPerChallenge(t *testing.T) {
	challenge := []byte("server-challenge-bytes")
	a := PasswordAuth{Password: "hunter2"}
	r1, err := a.Authenticate(challenge)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	r2, err := a.Authenticate(challenge)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if !bytes.Equal(r1, r2) {
		t.Fatalf("responses for identical input differ: %v vs %v", r1, r2)
	}
	if len(r1) != responseKeyLen {
		t.Fatalf("response length = %d, want %d", len(r1), responseKeyLen)
	}
}

func TestPasswordAuthDiffersByPassword(t *testing.T) {
	challenge := []byte("same-challenge")
	r1, _ := PasswordAuth{Password: "hunter2"}.Authenticate(challenge)
	r2, _ := PasswordAuth{Password: "different"}.Authenticate(challenge)
	if bytes.Equal(r1, r2) {
		t.Fatal("expected different passwords to derive different responses")
	}
}
