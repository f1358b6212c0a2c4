// Package service wires the registry, keystore, ledger and HTTP API into a
// single election process with a Start/Stop lifecycle.
package service

import (
	"context"
	"fmt"
	"sync"

	"github.com/quorumvote/ballotvault/api"
	"github.com/quorumvote/ballotvault/config"
	"github.com/quorumvote/ballotvault/keystore"
	"github.com/quorumvote/ballotvault/ledger"
	"github.com/quorumvote/ballotvault/log"
	"github.com/quorumvote/ballotvault/registry"
)

// Election owns every long-lived component of one running election:
// the voter registry's database, the issuer keystore, the ballot ledger,
// and the HTTP API server exposing all three.
type Election struct {
	mu     sync.Mutex
	cancel context.CancelFunc

	cfg *config.Config
	db  dbCloser

	Registry *registry.Registry
	Keystore *keystore.Store
	Ledger   *ledger.Ledger
	API      *api.API
}

// dbCloser is the subset of *sql.DB this package needs, named so tests can
// substitute a fake without importing database/sql here.
type dbCloser interface {
	Close() error
}

// New constructs an Election from cfg. It does not start the HTTP server;
// call Start for that.
func New(cfg *config.Config) *Election {
	return &Election{cfg: cfg}
}

// Start opens the registry database, lazily generates the issuer keypair if
// this is the first run, seeds the eligible-voter roll, opens the ballot
// ledger, and finally starts the HTTP API server. It returns an error if
// the election is already running.
func (e *Election) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		return fmt.Errorf("service: election already running")
	}

	db, err := registry.OpenDB(e.cfg.RegistryDBPath)
	if err != nil {
		return fmt.Errorf("service: open registry db: %w", err)
	}
	e.db = db

	ks := keystore.New(db)
	if _, _, err := ks.GetOrCreateKeys(); err != nil {
		db.Close()
		return fmt.Errorf("service: initialize issuer keys: %w", err)
	}
	log.Infof("service: issuer keys ready")

	reg := registry.New(db, ks)
	if len(e.cfg.VoterIDs) > 0 {
		if err := reg.SeedEligible(e.cfg.VoterIDs); err != nil {
			db.Close()
			return fmt.Errorf("service: seed eligible voters: %w", err)
		}
		log.Infow("service: seeded eligible voters", "count", len(e.cfg.VoterIDs))
	}

	l, err := ledger.Open(ledger.Config{
		Path:       e.cfg.LedgerPath,
		Candidates: config.CandidateSet,
		Difficulty: config.Difficulty,
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("service: open ledger: %w", err)
	}

	a, err := api.New(&api.Config{
		Host:     e.cfg.HTTPHost,
		Port:     e.cfg.HTTPPort,
		Registry: reg,
		Keystore: ks,
		Ledger:   l,
	})
	if err != nil {
		db.Close()
		return fmt.Errorf("service: start API server: %w", err)
	}

	_, e.cancel = context.WithCancel(ctx)
	e.Registry = reg
	e.Keystore = ks
	e.Ledger = l
	e.API = a

	return nil
}

// Stop releases the election's resources. The HTTP listener started by
// api.New has no graceful shutdown hook in this design, so Stop only
// releases the database; the process is expected to exit shortly after.
func (e *Election) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.cancel != nil {
		e.cancel()
		e.cancel = nil
	}
	if e.db != nil {
		if err := e.db.Close(); err != nil {
			log.Warnw("service: error closing registry db", "error", err.Error())
		}
		e.db = nil
	}
}
