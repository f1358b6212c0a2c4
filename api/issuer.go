package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/quorumvote/ballotvault/keystore"
	"github.com/quorumvote/ballotvault/registry"
)

// issueToken handles POST /issuer/token: a blind-signed credential issuance
// for one eligible voter. The issuer never sees the plaintext token, only
// its blinded form.
func (a *API) issueToken(w http.ResponseWriter, r *http.Request) {
	req := &IssueTokenRequest{}
	if err := decodeStrict(r, req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}

	res, err := a.registry.IssueToken(req.VoterID, req.BlindedTokenB64)
	if err != nil {
		writeRegistryError(w, err)
		return
	}

	httpWriteJSON(w, &IssueTokenResponse{BlindSignatureB64: res.BlindSigB64})
}

// issuerPubKey handles GET /issuer/pubkey.
func (a *API) issuerPubKey(w http.ResponseWriter, r *http.Request) {
	pubPEM, err := a.keystore.GetPublicKey()
	if err != nil {
		if errors.Is(err, keystore.ErrUninitialized) {
			ErrKeystoreUninitialized.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &IssuerPubKeyResponse{PublicKeyPEM: pubPEM})
}

// voterStatus handles GET /issuer/status/{voter_id}.
func (a *API) voterStatus(w http.ResponseWriter, r *http.Request) {
	voterID := chi.URLParam(r, VoterIDURLParam)
	status, err := a.registry.VoterStatus(voterID)
	if err != nil {
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}
	httpWriteJSON(w, &VoterStatusResponse{
		VoterID:       status.VoterID,
		Eligible:      status.Eligible,
		Registered:    status.Registered,
		TokenIssued:   status.TokenIssued,
		RegisteredAt:  status.RegisteredAt,
		TokenIssuedAt: status.TokenIssuedAt,
	})
}

// writeRegistryError maps a registry sentinel error to its HTTP response.
func writeRegistryError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrMalformedInput):
		ErrMalformedVoterID.WithErr(err).Write(w)
	case errors.Is(err, registry.ErrNotEligible):
		ErrNotEligible.Write(w)
	case errors.Is(err, registry.ErrAlreadyIssued):
		ErrAlreadyIssued.Write(w)
	case errors.Is(err, keystore.ErrUninitialized):
		ErrKeystoreUninitialized.Write(w)
	default:
		ErrGenericInternalServerError.WithErr(err).Write(w)
	}
}
