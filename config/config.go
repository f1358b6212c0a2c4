// Package config holds the compiled-in election constants and the runtime
// configuration for the ballotvault service.
package config

// Difficulty is the number of leading hex zeros required in a mined block
// hash. Fixed for the lifetime of the election.
const Difficulty = 2

// CandidateSet is the fixed, ordered list of valid ballot choices for this
// election instance. It is a compiled-in constant, not an admin-editable
// value: the spec treats the candidate whitelist as an external collaborator
// the core merely validates against.
var CandidateSet = []string{"Candidate A", "Candidate B", "Candidate C"}

// Config is the runtime configuration for a ballotvault process, normally
// populated from CLI flags in main.go.
type Config struct {
	// RegistryDBPath is the path to the SQLite database backing the voter
	// registry and issuer keystore.
	RegistryDBPath string
	// LedgerPath is the path to the JSON file backing the ballot ledger.
	LedgerPath string
	// HTTPHost and HTTPPort configure the API listener.
	HTTPHost string
	HTTPPort int
	// LogLevel is one of "debug", "info", "warn", "error".
	LogLevel string
	// VoterIDs is the list of eligible voter IDs to seed at bootstrap.
	VoterIDs []string
}

// Default returns a Config populated with sane defaults for local use.
func Default() *Config {
	return &Config{
		RegistryDBPath: "registry.db",
		LedgerPath:     "chain.json",
		HTTPHost:       "127.0.0.1",
		HTTPPort:       8080,
		LogLevel:       "info",
	}
}
