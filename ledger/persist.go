package ledger

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// chainFile is the on-disk document format: the full chain plus the
// spent-nullifier set, as a single JSON document.
type chainFile struct {
	Chain       []Block  `json:"chain"`
	SpentTokens []string `json:"spent_tokens"`
}

// loadChainFile reads and parses the chain file at path. Returns (nil, nil)
// if the file does not exist yet (first bootstrap).
func loadChainFile(path string) (*chainFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var cf chainFile
	if err := json.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("parse chain file: %w", err)
	}
	return &cf, nil
}

// saveChainFile writes cf to path atomically: it writes to a temp file in
// the same directory and renames it over the destination, so a crash
// mid-write never leaves a truncated chain file behind.
func saveChainFile(path string, cf chainFile) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chain dir: %w", err)
	}

	data, err := json.MarshalIndent(cf, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal chain: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".chain-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp chain file: %w", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write temp chain file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync temp chain file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp chain file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename chain file into place: %w", err)
	}
	return nil
}
