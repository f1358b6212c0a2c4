// Package ledger implements the anonymous ballot ledger: a hash-chained,
// proof-of-work-sealed log of votes with a spent-nullifier set that
// prevents double-voting. The whole chain lives in memory, guarded by a
// single mutex, and is persisted as one JSON document on every mutation.
package ledger

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/quorumvote/ballotvault/crypto/blindsign"
	"github.com/quorumvote/ballotvault/log"
)

// Sentinel errors surfaced to callers of CastVote.
var (
	ErrInvalidChoice     = errors.New("ledger: choice is not a member of the candidate set")
	ErrInvalidCredential = errors.New("ledger: credential does not verify against the issuer public key")
	ErrDoubleVote        = errors.New("ledger: nullifier already spent")
)

// ErrCorruptChain is logged (not returned) when a persisted chain fails
// verification on load; the ledger reinitializes from a fresh genesis.
var ErrCorruptChain = errors.New("ledger: persisted chain failed verification")

// Ledger is the in-memory, lock-guarded ballot chain plus its durable
// backing file.
type Ledger struct {
	mu         sync.Mutex
	chain      []Block
	spent      map[string]struct{}
	candidates []string
	difficulty int
	path       string
}

// Config configures a new Ledger.
type Config struct {
	Path       string
	Candidates []string
	Difficulty int
}

// Open loads the ledger from cfg.Path if present and valid, otherwise
// initializes a fresh chain with only a mined genesis block and persists
// it immediately. A file whose chain fails verification is replaced by a
// fresh chain; a file that cannot be read or parsed as JSON is returned as
// an error.
func Open(cfg Config) (*Ledger, error) {
	l := &Ledger{
		spent:      make(map[string]struct{}),
		candidates: cfg.Candidates,
		difficulty: cfg.Difficulty,
		path:       cfg.Path,
	}

	loaded, err := loadChainFile(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("ledger: load: %w", err)
	}
	if loaded != nil {
		l.chain = loaded.Chain
		l.spent = make(map[string]struct{}, len(loaded.SpentTokens))
		for _, nf := range loaded.SpentTokens {
			l.spent[nf] = struct{}{}
		}
		if err := l.verifyChainLocked(); err != nil {
			log.Warnw("persisted chain failed verification, reinitializing from genesis", "error", fmt.Errorf("%w: %v", ErrCorruptChain, err).Error())
			l.chain = nil
			l.spent = make(map[string]struct{})
		}
	}

	if len(l.chain) == 0 {
		genesis := Block{
			Index:        0,
			Timestamp:    nowUnix(),
			Votes:        []Vote{},
			PreviousHash: genesisPreviousHash,
		}
		if err := genesis.mine(l.difficulty); err != nil {
			return nil, fmt.Errorf("ledger: mine genesis: %w", err)
		}
		l.chain = []Block{genesis}
		if err := l.persistLocked(); err != nil {
			return nil, err
		}
	}

	return l, nil
}

func nowUnix() int64 { return time.Now().Unix() }

// CastResult is the outcome of a successful CastVote call.
type CastResult struct {
	TxHash     string
	BlockIndex int
}

// CastVote validates and, if accepted, appends a new block recording a
// single vote. The whole operation — credential verification, nullifier
// check, mining, and persistence — runs inside the ledger's single lock,
// which is what makes the nullifier check and the append atomic; splitting
// them would open a TOCTOU double-vote window.
func (l *Ledger) CastVote(token []byte, signature *big.Int, choice string, issuerPub *rsa.PublicKey) (CastResult, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.isCandidate(choice) {
		return CastResult{}, ErrInvalidChoice
	}

	// The ledger performs its own verification against the issuer public
	// key; the API layer does not verify the signature before calling in.
	// The ledger's own invariant ("every accepted ballot is signed") thus
	// does not depend on a well-behaved caller.
	if !blindsign.Verify(token, signature, issuerPub) {
		return CastResult{}, ErrInvalidCredential
	}

	nf := blindsign.Nullifier(token)
	if _, spent := l.spent[nf]; spent {
		return CastResult{}, ErrDoubleVote
	}

	_, sigB64 := blindsign.SerializeCredential(blindsign.Credential{Token: token, Signature: signature})
	excerpt := sigB64
	if len(excerpt) > 64 {
		excerpt = excerpt[:64]
	}

	vote := Vote{
		Nullifier:        nf,
		Choice:           choice,
		Timestamp:        nowUnix(),
		SignatureExcerpt: excerpt,
	}

	block := Block{
		Index:        len(l.chain),
		Timestamp:    nowUnix(),
		Votes:        []Vote{vote},
		PreviousHash: l.chain[len(l.chain)-1].Hash,
	}
	if err := block.mine(l.difficulty); err != nil {
		return CastResult{}, fmt.Errorf("ledger: mine block: %w", err)
	}

	// Mutate in-memory state only after mining succeeds, then persist; on
	// persistence failure roll the append back so disk and memory never
	// diverge from what a successful return promises.
	l.spent[nf] = struct{}{}
	l.chain = append(l.chain, block)
	if err := l.persistLocked(); err != nil {
		l.chain = l.chain[:len(l.chain)-1]
		delete(l.spent, nf)
		return CastResult{}, fmt.Errorf("ledger: persist: %w", err)
	}

	return CastResult{TxHash: block.Hash, BlockIndex: block.Index}, nil
}

func (l *Ledger) isCandidate(choice string) bool {
	for _, c := range l.candidates {
		if c == choice {
			return true
		}
	}
	return false
}

// Tallies returns the vote count for every candidate, zero-initialized for
// candidates with no votes.
func (l *Ledger) Tallies() map[string]int {
	l.mu.Lock()
	defer l.mu.Unlock()

	tallies := make(map[string]int, len(l.candidates))
	for _, c := range l.candidates {
		tallies[c] = 0
	}
	for _, block := range l.chain[1:] {
		for _, v := range block.Votes {
			if _, ok := tallies[v.Choice]; ok {
				tallies[v.Choice]++
			}
		}
	}
	return tallies
}

// VerifyReport is the result of a chain-integrity check.
type VerifyReport struct {
	Valid      bool
	BlockCount int
	Message    string
}

// VerifyChain recomputes every non-genesis block's hash from its stored
// fields and checks the previous_hash links. It does not re-check
// proof-of-work difficulty.
func (l *Ledger) VerifyChain() VerifyReport {
	l.mu.Lock()
	defer l.mu.Unlock()

	err := l.verifyChainLocked()
	if err != nil {
		return VerifyReport{Valid: false, BlockCount: len(l.chain), Message: "chain integrity FAILED: " + err.Error()}
	}
	return VerifyReport{Valid: true, BlockCount: len(l.chain), Message: "chain integrity verified"}
}

func (l *Ledger) verifyChainLocked() error {
	for i := 1; i < len(l.chain); i++ {
		current := l.chain[i]
		previous := l.chain[i-1]

		recomputed, err := current.computeHash()
		if err != nil {
			return err
		}
		if recomputed != current.Hash {
			return fmt.Errorf("block %d: stored hash does not match recomputed hash", i)
		}
		if current.PreviousHash != previous.Hash {
			return fmt.Errorf("block %d: previous_hash does not match block %d's hash", i, i-1)
		}
	}
	return nil
}

// GetChain returns a snapshot copy of the full chain.
func (l *Ledger) GetChain() []Block {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Block, len(l.chain))
	copy(out, l.chain)
	return out
}

// GetBlock returns a copy of the block at index, or false if out of range.
func (l *Ledger) GetBlock(index int) (Block, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if index < 0 || index >= len(l.chain) {
		return Block{}, false
	}
	return l.chain[index], true
}

// Stats is the aggregate ledger summary exposed to read-only callers.
type Stats struct {
	BlockCount  int      `json:"block_count"`
	TotalVotes  int      `json:"total_votes"`
	SpentTokens int      `json:"spent_tokens"`
	Candidates  []string `json:"candidates"`
}

// GetStats returns the aggregate ledger summary.
func (l *Ledger) GetStats() Stats {
	l.mu.Lock()
	defer l.mu.Unlock()

	total := 0
	for _, b := range l.chain[1:] {
		total += len(b.Votes)
	}
	return Stats{
		BlockCount:  len(l.chain),
		TotalVotes:  total,
		SpentTokens: len(l.spent),
		Candidates:  l.candidates,
	}
}

// IsTokenSpent reports whether a token's nullifier is already in the
// spent-set.
func (l *Ledger) IsTokenSpent(token []byte) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, spent := l.spent[blindsign.Nullifier(token)]
	return spent
}

func (l *Ledger) persistLocked() error {
	spent := make([]string, 0, len(l.spent))
	for nf := range l.spent {
		spent = append(spent, nf)
	}
	return saveChainFile(l.path, chainFile{Chain: l.chain, SpentTokens: spent})
}
