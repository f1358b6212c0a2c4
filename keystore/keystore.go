// Package keystore persists the single RSA keypair used by the credential
// issuer. Exactly one row ever exists: the key is generated once, at first
// bootstrap, and never rotated for the life of the election.
package keystore

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"database/sql"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"

	"github.com/quorumvote/ballotvault/crypto/blindsign"
	"github.com/quorumvote/ballotvault/log"
)

// ErrUninitialized is returned by GetPublicKey when no key has been
// generated yet.
var ErrUninitialized = errors.New("keystore: issuer keys not initialized")

// Store is the issuer's single-row keypair store, backed by the registry's
// SQLite database (table issuer_keys).
type Store struct {
	db   *sql.DB
	once sync.Once
}

// New wraps an already-open database connection (shared with the voter
// registry) as a keystore.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// GetOrCreateKeys returns the issuer's PEM-encoded keypair, generating a
// fresh 2048-bit RSA key on first call if none exists yet. Subsequent calls,
// including from other processes sharing the same database, observe the
// same key: the INSERT ... ON CONFLICT DO NOTHING below is what actually
// makes first-bootstrap idempotent across concurrent callers, since a
// losing writer just re-reads the row the winner inserted. s.once only
// dedupes the "generating" log line in-process; it guards no correctness
// property by itself.
func (s *Store) GetOrCreateKeys() (privPEM, pubPEM string, err error) {
	privPEM, pubPEM, err = s.read()
	if err != nil {
		return "", "", err
	}
	if privPEM != "" {
		return privPEM, pubPEM, nil
	}

	s.once.Do(func() {
		log.Infof("keystore: generating RSA keypair")
	})

	priv, err := rsa.GenerateKey(rand.Reader, blindsign.KeySize)
	if err != nil {
		return "", "", fmt.Errorf("keystore: generate key: %w", err)
	}
	newPriv, newPub, err := encodeKeypair(priv)
	if err != nil {
		return "", "", err
	}

	if _, err := s.db.Exec(
		`INSERT INTO issuer_keys (id, private_key, public_key) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO NOTHING`,
		newPriv, newPub,
	); err != nil {
		return "", "", fmt.Errorf("keystore: persist keypair: %w", err)
	}

	// Someone else may have won the race to insert; re-read so every
	// caller observes the single winning key.
	return s.read()
}

// GetPublicKey returns the issuer's public key PEM without generating one.
// Returns ErrUninitialized if no key exists yet.
func (s *Store) GetPublicKey() (string, error) {
	_, pubPEM, err := s.read()
	if err != nil {
		return "", err
	}
	if pubPEM == "" {
		return "", ErrUninitialized
	}
	return pubPEM, nil
}

// PublicKey decodes and returns the issuer's public key as *rsa.PublicKey,
// for use by the ledger's credential verification call.
func (s *Store) PublicKey() (*rsa.PublicKey, error) {
	pubPEM, err := s.GetPublicKey()
	if err != nil {
		return nil, err
	}
	return decodePublicKeyPEM(pubPEM)
}

// PrivateKey decodes and returns the issuer's private key as *rsa.PrivateKey,
// for use by the registry's blind-signing call.
func (s *Store) PrivateKey() (*rsa.PrivateKey, error) {
	privPEM, _, err := s.read()
	if err != nil {
		return nil, err
	}
	if privPEM == "" {
		return nil, ErrUninitialized
	}
	return decodePrivateKeyPEM(privPEM)
}

func (s *Store) read() (privPEM, pubPEM string, err error) {
	row := s.db.QueryRow(`SELECT private_key, public_key FROM issuer_keys WHERE id = 1`)
	if err := row.Scan(&privPEM, &pubPEM); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", nil
		}
		return "", "", fmt.Errorf("keystore: read keypair: %w", err)
	}
	return privPEM, pubPEM, nil
}

func encodeKeypair(priv *rsa.PrivateKey) (privPEM, pubPEM string, err error) {
	privBytes := x509.MarshalPKCS1PrivateKey(priv)
	privBlock := &pem.Block{Type: "RSA PRIVATE KEY", Bytes: privBytes}

	pubBytes, err := x509.MarshalPKIXPublicKey(&priv.PublicKey)
	if err != nil {
		return "", "", fmt.Errorf("keystore: marshal public key: %w", err)
	}
	pubBlock := &pem.Block{Type: "PUBLIC KEY", Bytes: pubBytes}

	return string(pem.EncodeToMemory(privBlock)), string(pem.EncodeToMemory(pubBlock)), nil
}

func decodePrivateKeyPEM(pemStr string) (*rsa.PrivateKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("keystore: invalid private key PEM")
	}
	return x509.ParsePKCS1PrivateKey(block.Bytes)
}

func decodePublicKeyPEM(pemStr string) (*rsa.PublicKey, error) {
	block, _ := pem.Decode([]byte(pemStr))
	if block == nil {
		return nil, errors.New("keystore: invalid public key PEM")
	}
	key, err := x509.ParsePKIXPublicKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	pub, ok := key.(*rsa.PublicKey)
	if !ok {
		return nil, errors.New("keystore: PEM does not contain an RSA public key")
	}
	return pub, nil
}
