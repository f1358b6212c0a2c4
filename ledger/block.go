package ledger

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"strings"
)

// genesisPreviousHash is the fixed previous_hash of the genesis block:
// 64 zero hex digits.
var genesisPreviousHash = strings.Repeat("0", 64)

// Vote is a single cast ballot as recorded inside a block. signatureExcerpt
// is opaque audit data, the first 64 characters of the base64 signature —
// lossy by design, never used to re-verify the ballot.
type Vote struct {
	Choice           string `json:"choice"`
	Nullifier        string `json:"nullifier"`
	SignatureExcerpt string `json:"signature_excerpt"`
	Timestamp        int64  `json:"timestamp"`
}

// Block is one entry in the ballot chain. Block 0 (genesis) carries no
// votes; every other block carries exactly one.
type Block struct {
	Index        int    `json:"index"`
	Timestamp    int64  `json:"timestamp"`
	Votes        []Vote `json:"votes"`
	PreviousHash string `json:"previous_hash"`
	Nonce        int64  `json:"nonce"`
	Hash         string `json:"hash"`
}

// canonicalBlock is the subset of Block fields that feed the hash, encoded
// with lexicographically ordered keys so two implementations that agree on
// field values produce identical bytes.
type canonicalBlock struct {
	Index        int    `json:"index"`
	Nonce        int64  `json:"nonce"`
	PreviousHash string `json:"previous_hash"`
	Timestamp    int64  `json:"timestamp"`
	Votes        []Vote `json:"votes"`
}

// computeHash returns the SHA-256 hex digest of the block's canonical JSON
// encoding. Go's encoding/json already emits object keys in the order the
// struct declares them and struct tags are written here in lexicographic
// order, so this is deterministic across runs and implementations.
func (b *Block) computeHash() (string, error) {
	canon := canonicalBlock{
		Index:        b.Index,
		Nonce:        b.Nonce,
		PreviousHash: b.PreviousHash,
		Timestamp:    b.Timestamp,
		Votes:        b.Votes,
	}
	data, err := json.Marshal(canon)
	if err != nil {
		return "", fmt.Errorf("ledger: canonicalize block %d: %w", b.Index, err)
	}
	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum[:]), nil
}

// mine increments nonce and recomputes the block hash until it carries
// difficulty leading hex zeros. With difficulty=2 this is on the order of
// a few hundred hashes.
func (b *Block) mine(difficulty int) error {
	prefix := strings.Repeat("0", difficulty)
	for {
		hash, err := b.computeHash()
		if err != nil {
			return err
		}
		b.Hash = hash
		if strings.HasPrefix(b.Hash, prefix) {
			return nil
		}
		b.Nonce++
	}
}
