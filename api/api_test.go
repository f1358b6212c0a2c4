package api

import (
	"bytes"
	"crypto/rsa"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/quorumvote/ballotvault/crypto/blindsign"
	"github.com/quorumvote/ballotvault/keystore"
	"github.com/quorumvote/ballotvault/ledger"
	"github.com/quorumvote/ballotvault/registry"
)

func newTestAPI(t *testing.T) *API {
	t.Helper()
	db, err := registry.OpenDB(filepath.Join(t.TempDir(), "registry.db"))
	if err != nil {
		t.Fatalf("open registry db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	ks := keystore.New(db)
	if _, _, err := ks.GetOrCreateKeys(); err != nil {
		t.Fatalf("get or create keys: %v", err)
	}
	reg := registry.New(db, ks)
	if err := reg.SeedEligible([]string{"VOTER_00001"}); err != nil {
		t.Fatalf("seed eligible: %v", err)
	}

	l, err := ledger.Open(ledger.Config{
		Path:       filepath.Join(t.TempDir(), "chain.json"),
		Candidates: []string{"Candidate A", "Candidate B"},
		Difficulty: 1,
	})
	if err != nil {
		t.Fatalf("open ledger: %v", err)
	}

	a := &API{registry: reg, keystore: ks, ledger: l}
	a.initRouter()
	return a
}

func doJSON(t *testing.T, a *API, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var r *http.Request
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal request body: %v", err)
		}
		r = httptest.NewRequest(method, path, bytes.NewReader(data))
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	a.Router().ServeHTTP(w, r)
	return w
}

func TestPing(t *testing.T) {
	a := newTestAPI(t)
	w := doJSON(t, a, http.MethodGet, PingEndpoint, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestIssueTokenAndCastVoteEndToEnd(t *testing.T) {
	a := newTestAPI(t)

	pubW := doJSON(t, a, http.MethodGet, IssuerPubKeyEndpoint, nil)
	if pubW.Code != http.StatusOK {
		t.Fatalf("expected 200 from pubkey endpoint, got %d", pubW.Code)
	}
	var pubRes IssuerPubKeyResponse
	if err := json.Unmarshal(pubW.Body.Bytes(), &pubRes); err != nil {
		t.Fatalf("unmarshal pubkey response: %v", err)
	}
	pub, err := pemToRSAPublicKey(pubRes.PublicKeyPEM)
	if err != nil {
		t.Fatalf("decode pubkey: %v", err)
	}

	token := []byte("end-to-end-token")
	blinded, r, err := blindsign.Blind(token, pub)
	if err != nil {
		t.Fatalf("blind: %v", err)
	}

	issueW := doJSON(t, a, http.MethodPost, IssueTokenEndpoint, &IssueTokenRequest{
		VoterID:         "VOTER_00001",
		BlindedTokenB64: base64.StdEncoding.EncodeToString(blinded),
	})
	if issueW.Code != http.StatusOK {
		t.Fatalf("expected 200 from issuance, got %d: %s", issueW.Code, issueW.Body.String())
	}
	var issueRes IssueTokenResponse
	if err := json.Unmarshal(issueW.Body.Bytes(), &issueRes); err != nil {
		t.Fatalf("unmarshal issuance response: %v", err)
	}

	blindSig, err := blindsign.Base64ToInt(issueRes.BlindSignatureB64)
	if err != nil {
		t.Fatalf("decode blind signature: %v", err)
	}
	sig, err := blindsign.Unblind(blindSig, r, pub)
	if err != nil {
		t.Fatalf("unblind: %v", err)
	}

	voteW := doJSON(t, a, http.MethodPost, CastVoteEndpoint, &CastVoteRequest{
		TokenHex:     blindsign.TokenToHex(token),
		SignatureB64: blindsign.IntToBase64(sig),
		Choice:       "Candidate A",
	})
	if voteW.Code != http.StatusOK {
		t.Fatalf("expected 200 from cast vote, got %d: %s", voteW.Code, voteW.Body.String())
	}

	// A second vote with the same credential must be rejected.
	replayW := doJSON(t, a, http.MethodPost, CastVoteEndpoint, &CastVoteRequest{
		TokenHex:     blindsign.TokenToHex(token),
		SignatureB64: blindsign.IntToBase64(sig),
		Choice:       "Candidate B",
	})
	if replayW.Code != http.StatusConflict {
		t.Fatalf("expected 409 on replay, got %d", replayW.Code)
	}

	talliesW := doJSON(t, a, http.MethodGet, TalliesEndpoint, nil)
	var talliesRes TalliesResponse
	if err := json.Unmarshal(talliesW.Body.Bytes(), &talliesRes); err != nil {
		t.Fatalf("unmarshal tallies response: %v", err)
	}
	if talliesRes.Tallies["Candidate A"] != 1 {
		t.Fatalf("expected tally 1 for Candidate A, got %d", talliesRes.Tallies["Candidate A"])
	}

	verifyW := doJSON(t, a, http.MethodGet, VerifyChainEndpoint, nil)
	var verifyRes VerifyChainResponse
	if err := json.Unmarshal(verifyW.Body.Bytes(), &verifyRes); err != nil {
		t.Fatalf("unmarshal verify response: %v", err)
	}
	if !verifyRes.Valid {
		t.Fatalf("expected a valid chain, got %+v", verifyRes)
	}
}

func TestIssueTokenIneligibleVoter(t *testing.T) {
	a := newTestAPI(t)
	w := doJSON(t, a, http.MethodPost, IssueTokenEndpoint, &IssueTokenRequest{
		VoterID:         "GHOST",
		BlindedTokenB64: base64.StdEncoding.EncodeToString([]byte("irrelevant")),
	})
	if w.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d: %s", w.Code, w.Body.String())
	}
}

func pemToRSAPublicKey(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("invalid public key PEM")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("PEM does not contain an RSA public key")
	}
	return pub, nil
}
