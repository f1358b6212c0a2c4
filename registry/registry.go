// Package registry implements the voter eligibility and credential-issuance
// state machine: eligible -> token_issued, enforced atomically against a
// SQLite-backed store so that exactly one of two concurrent issuance
// attempts for the same voter succeeds.
package registry

import (
	"database/sql"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"

	"github.com/quorumvote/ballotvault/crypto/blindsign"
	"github.com/quorumvote/ballotvault/keystore"
)

var voterIDPattern = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

// Sentinel errors surfaced to callers. None are retried internally;
// ineligibility and duplicate issuance are permanent for the life of the
// election.
var (
	ErrMalformedInput = errors.New("registry: malformed voter_id or blinded token")
	ErrNotEligible    = errors.New("registry: voter is not eligible")
	ErrAlreadyIssued  = errors.New("registry: token already issued to this voter")
	ErrUninitialized  = keystore.ErrUninitialized
)

// Registry is the voter eligibility and issuance store.
type Registry struct {
	db       *sql.DB
	keystore *keystore.Store
}

// New constructs a Registry over an already-open database and keystore. The
// two share the same underlying SQLite file by convention (see OpenDB).
func New(db *sql.DB, ks *keystore.Store) *Registry {
	return &Registry{db: db, keystore: ks}
}

// SeedEligible inserts each voter ID into the eligible set, ignoring IDs
// that are already present. Safe to call repeatedly.
func (r *Registry) SeedEligible(voterIDs []string) error {
	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("registry: seed eligible: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`INSERT OR IGNORE INTO eligible_voters (voter_id) VALUES (?)`)
	if err != nil {
		return fmt.Errorf("registry: seed eligible: %w", err)
	}
	defer stmt.Close()

	for _, id := range voterIDs {
		if _, err := stmt.Exec(id); err != nil {
			return fmt.Errorf("registry: seed eligible %q: %w", id, err)
		}
	}
	return tx.Commit()
}

// IssueResult is the outcome of a successful IssueToken call.
type IssueResult struct {
	BlindSigB64 string
}

// IssueToken validates voter_id and blinded_token_b64, blind-signs the
// blinded token with the issuer's private key, and atomically records that
// the voter has received their one-shot token. The issuer never retains
// blinded_token_b64 or the resulting signature past this call: neither is
// written to the database, only the boolean fact that issuance happened.
func (r *Registry) IssueToken(voterID, blindedTokenB64 string) (IssueResult, error) {
	if !voterIDPattern.MatchString(voterID) {
		return IssueResult{}, fmt.Errorf("%w: voter_id has invalid characters", ErrMalformedInput)
	}

	eligible, err := r.isEligible(voterID)
	if err != nil {
		return IssueResult{}, err
	}
	if !eligible {
		return IssueResult{}, ErrNotEligible
	}

	issued, err := r.tokenIssued(voterID)
	if err != nil {
		return IssueResult{}, err
	}
	if issued {
		return IssueResult{}, ErrAlreadyIssued
	}

	blinded, err := base64.StdEncoding.DecodeString(blindedTokenB64)
	if err != nil {
		return IssueResult{}, fmt.Errorf("%w: invalid base64 for blinded token", ErrMalformedInput)
	}

	priv, err := r.keystore.PrivateKey()
	if err != nil {
		return IssueResult{}, err
	}

	blindSig := blindsign.Sign(blinded, priv)
	blindSigB64 := blindsign.IntToBase64(blindSig)

	// Conditional UPDATE/INSERT: exactly one of two concurrent callers for
	// the same voter_id flips token_issued from 0 to 1. SQLite serializes
	// writers on this single connection, so the row either doesn't exist
	// yet (first caller inserts it as issued) or exists with
	// token_issued=0 (first caller to reach here wins the UPDATE; the
	// loser's UPDATE affects zero rows).
	res, err := r.db.Exec(
		`INSERT INTO voters (voter_id, token_issued, token_issued_at)
		   VALUES (?, 1, datetime('now'))
		 ON CONFLICT(voter_id) DO UPDATE
		   SET token_issued = 1, token_issued_at = datetime('now')
		   WHERE voters.token_issued = 0`,
		voterID,
	)
	if err != nil {
		return IssueResult{}, fmt.Errorf("registry: record issuance: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return IssueResult{}, fmt.Errorf("registry: record issuance: %w", err)
	}
	if affected == 0 {
		// Lost the race between our own tokenIssued check and the write.
		return IssueResult{}, ErrAlreadyIssued
	}

	return IssueResult{BlindSigB64: blindSigB64}, nil
}

// StatusRecord is the public registration status of a voter.
type StatusRecord struct {
	VoterID       string
	Eligible      bool
	Registered    bool
	TokenIssued   bool
	RegisteredAt  string
	TokenIssuedAt string
}

// VoterStatus returns the registration status for voterID. Voters absent
// from the eligible set report all flags false.
func (r *Registry) VoterStatus(voterID string) (StatusRecord, error) {
	var registeredAt, tokenIssuedAt sql.NullString
	var tokenIssued bool
	row := r.db.QueryRow(
		`SELECT registered_at, token_issued, token_issued_at FROM voters WHERE voter_id = ?`,
		voterID,
	)
	switch err := row.Scan(&registeredAt, &tokenIssued, &tokenIssuedAt); {
	case errors.Is(err, sql.ErrNoRows):
		eligible, err := r.isEligible(voterID)
		if err != nil {
			return StatusRecord{}, err
		}
		return StatusRecord{VoterID: voterID, Eligible: eligible}, nil
	case err != nil:
		return StatusRecord{}, fmt.Errorf("registry: voter status: %w", err)
	default:
		return StatusRecord{
			VoterID:       voterID,
			Eligible:      true,
			Registered:    true,
			TokenIssued:   tokenIssued,
			RegisteredAt:  registeredAt.String,
			TokenIssuedAt: tokenIssuedAt.String,
		}, nil
	}
}

func (r *Registry) isEligible(voterID string) (bool, error) {
	var id string
	err := r.db.QueryRow(`SELECT voter_id FROM eligible_voters WHERE voter_id = ?`, voterID).Scan(&id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("registry: eligibility check: %w", err)
	default:
		return true, nil
	}
}

func (r *Registry) tokenIssued(voterID string) (bool, error) {
	var issued bool
	err := r.db.QueryRow(`SELECT token_issued FROM voters WHERE voter_id = ?`, voterID).Scan(&issued)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("registry: issuance check: %w", err)
	default:
		return issued, nil
	}
}
