package service

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/quorumvote/ballotvault/config"
)

func TestElectionStartStop(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		RegistryDBPath: filepath.Join(dir, "registry.db"),
		LedgerPath:     filepath.Join(dir, "chain.json"),
		HTTPHost:       "127.0.0.1",
		HTTPPort:       18080,
		VoterIDs:       []string{"VOTER_00001"},
	}

	e := New(cfg)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	status, err := e.Registry.VoterStatus("VOTER_00001")
	if err != nil {
		t.Fatalf("voter status: %v", err)
	}
	if !status.Eligible {
		t.Fatal("expected seeded voter to be eligible")
	}

	if _, err := e.Keystore.GetPublicKey(); err != nil {
		t.Fatalf("expected issuer keys to be ready: %v", err)
	}

	if report := e.Ledger.VerifyChain(); !report.Valid {
		t.Fatalf("expected a valid genesis chain, got %+v", report)
	}
}

func TestElectionStartTwiceFails(t *testing.T) {
	dir := t.TempDir()
	cfg := &config.Config{
		RegistryDBPath: filepath.Join(dir, "registry.db"),
		LedgerPath:     filepath.Join(dir, "chain.json"),
		HTTPHost:       "127.0.0.1",
		HTTPPort:       18081,
	}

	e := New(cfg)
	if err := e.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer e.Stop()

	if err := e.Start(context.Background()); err == nil {
		t.Fatal("expected second Start to fail")
	}
}
