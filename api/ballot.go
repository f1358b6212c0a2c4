package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/quorumvote/ballotvault/crypto/blindsign"
	"github.com/quorumvote/ballotvault/keystore"
	"github.com/quorumvote/ballotvault/ledger"
)

// castVote handles POST /ballot/vote: redeem a credential for a single
// vote. The issuer public key used to verify the credential is fetched
// fresh on every call rather than cached, so a never-initialized issuer
// fails cleanly instead of panicking on a nil key.
func (a *API) castVote(w http.ResponseWriter, r *http.Request) {
	req := &CastVoteRequest{}
	if err := decodeStrict(r, req); err != nil {
		ErrMalformedBody.Withf("could not decode request body: %v", err).Write(w)
		return
	}

	token, err := blindsign.HexToToken(req.TokenHex)
	if err != nil {
		ErrMalformedBody.Withf("invalid token_hex: %v", err).Write(w)
		return
	}
	sig, err := blindsign.Base64ToInt(req.SignatureB64)
	if err != nil {
		ErrMalformedBody.Withf("invalid signature: %v", err).Write(w)
		return
	}

	issuerPub, err := a.keystore.PublicKey()
	if err != nil {
		if errors.Is(err, keystore.ErrUninitialized) {
			ErrKeystoreUninitialized.Write(w)
			return
		}
		ErrGenericInternalServerError.WithErr(err).Write(w)
		return
	}

	res, err := a.ledger.CastVote(token, sig, req.Choice, issuerPub)
	if err != nil {
		writeLedgerError(w, err)
		return
	}

	httpWriteJSON(w, &CastVoteResponse{TxHash: res.TxHash, BlockIndex: res.BlockIndex})
}

// tallies handles GET /ballot/tallies.
func (a *API) tallies(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, &TalliesResponse{Tallies: a.ledger.Tallies()})
}

// chain handles GET /ballot/chain.
func (a *API) chain(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, a.ledger.GetChain())
}

// chainBlock handles GET /ballot/chain/{index}.
func (a *API) chainBlock(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, BlockIndexURLParam))
	if err != nil {
		ErrMalformedBody.Withf("invalid block index: %v", err).Write(w)
		return
	}
	block, ok := a.ledger.GetBlock(idx)
	if !ok {
		ErrBlockNotFound.Write(w)
		return
	}
	httpWriteJSON(w, block)
}

// verifyChain handles GET /ballot/verify.
func (a *API) verifyChain(w http.ResponseWriter, r *http.Request) {
	report := a.ledger.VerifyChain()
	httpWriteJSON(w, &VerifyChainResponse{
		Valid:      report.Valid,
		BlockCount: report.BlockCount,
		Message:    report.Message,
	})
}

// stats handles GET /ballot/stats.
func (a *API) stats(w http.ResponseWriter, r *http.Request) {
	httpWriteJSON(w, a.ledger.GetStats())
}

// writeLedgerError maps a ledger sentinel error to its HTTP response.
func writeLedgerError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ledger.ErrInvalidChoice):
		ErrInvalidChoice.Write(w)
	case errors.Is(err, ledger.ErrInvalidCredential):
		ErrInvalidCredential.Write(w)
	case errors.Is(err, ledger.ErrDoubleVote):
		ErrDoubleVote.Write(w)
	default:
		ErrGenericInternalServerError.WithErr(err).Write(w)
	}
}
