package registry

import (
	"encoding/base64"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	"github.com/quorumvote/ballotvault/crypto/blindsign"
	"github.com/quorumvote/ballotvault/keystore"
)

func newTestRegistry(t *testing.T) *Registry {
	t.Helper()
	db, err := OpenDB(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	ks := keystore.New(db)
	if _, _, err := ks.GetOrCreateKeys(); err != nil {
		t.Fatalf("get or create keys: %v", err)
	}
	return New(db, ks)
}

func blindedTokenB64(t *testing.T, reg *Registry, token []byte) string {
	t.Helper()
	pub, err := reg.keystore.PublicKey()
	if err != nil {
		t.Fatalf("public key: %v", err)
	}
	blinded, _, err := blindsign.Blind(token, pub)
	if err != nil {
		t.Fatalf("blind: %v", err)
	}
	return base64.StdEncoding.EncodeToString(blinded)
}

func TestIssueTokenHappyPath(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.SeedEligible([]string{"VOTER_00001"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	blindedB64 := blindedTokenB64(t, reg, []byte("token-1"))
	res, err := reg.IssueToken("VOTER_00001", blindedB64)
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if res.BlindSigB64 == "" {
		t.Fatal("expected a non-empty blind signature")
	}

	status, err := reg.VoterStatus("VOTER_00001")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !status.Eligible || !status.Registered || !status.TokenIssued {
		t.Fatalf("unexpected status: %+v", status)
	}
}

func TestIssueTokenDuplicate(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.SeedEligible([]string{"V2"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	b1 := blindedTokenB64(t, reg, []byte("token-a"))
	if _, err := reg.IssueToken("V2", b1); err != nil {
		t.Fatalf("first issuance: %v", err)
	}

	b2 := blindedTokenB64(t, reg, []byte("token-b"))
	_, err := reg.IssueToken("V2", b2)
	if !errors.Is(err, ErrAlreadyIssued) {
		t.Fatalf("expected ErrAlreadyIssued, got %v", err)
	}
}

func TestIssueTokenIneligible(t *testing.T) {
	reg := newTestRegistry(t)
	blindedB64 := blindedTokenB64(t, reg, []byte("ghost-token"))
	_, err := reg.IssueToken("GHOST", blindedB64)
	if !errors.Is(err, ErrNotEligible) {
		t.Fatalf("expected ErrNotEligible, got %v", err)
	}
}

func TestIssueTokenMalformedVoterID(t *testing.T) {
	reg := newTestRegistry(t)
	_, err := reg.IssueToken("bad id!", "irrelevant")
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestIssueTokenMalformedBase64(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.SeedEligible([]string{"V3"}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	_, err := reg.IssueToken("V3", "not-valid-base64!!")
	if !errors.Is(err, ErrMalformedInput) {
		t.Fatalf("expected ErrMalformedInput, got %v", err)
	}
}

func TestIssueTokenConcurrentExactlyOneWins(t *testing.T) {
	reg := newTestRegistry(t)
	if err := reg.SeedEligible([]string{"V4"}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	const attempts = 8
	blindedTokens := make([]string, attempts)
	for i := 0; i < attempts; i++ {
		blindedTokens[i] = blindedTokenB64(t, reg, []byte{byte(i)})
	}

	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = reg.IssueToken("V4", blindedTokens[i])
		}(i)
	}
	wg.Wait()

	successes := 0
	for _, err := range results {
		if err == nil {
			successes++
		} else if !errors.Is(err, ErrAlreadyIssued) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if successes != 1 {
		t.Fatalf("expected exactly one success, got %d", successes)
	}
}

func TestVoterStatusUnknownVoter(t *testing.T) {
	reg := newTestRegistry(t)
	status, err := reg.VoterStatus("NOBODY")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Eligible || status.Registered || status.TokenIssued {
		t.Fatalf("unknown voter should report all-false status, got %+v", status)
	}
}
