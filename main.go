// Command ballotvaultd runs a single election: a credential issuer backed
// by RSA blind signatures and a hash-chained, proof-of-work-sealed ballot
// ledger, exposed over HTTP.
package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	flag "github.com/spf13/pflag"

	"github.com/quorumvote/ballotvault/config"
	"github.com/quorumvote/ballotvault/log"
	"github.com/quorumvote/ballotvault/service"
)

func main() {
	cfg := config.Default()

	registryDBPath := flag.String("registry-db", cfg.RegistryDBPath, "path to the voter registry SQLite database")
	ledgerPath := flag.String("ledger", cfg.LedgerPath, "path to the ballot ledger JSON file")
	host := flag.String("host", cfg.HTTPHost, "HTTP listen host")
	port := flag.Int("port", cfg.HTTPPort, "HTTP listen port")
	logLevel := flag.String("log-level", cfg.LogLevel, "log level: debug, info, warn, error")
	voterIDs := flag.StringSlice("seed-voters", nil, "comma-separated list of eligible voter IDs to seed at startup (IDs already seeded are ignored)")
	flag.Parse()

	log.Init(*logLevel, "stdout", nil)

	cfg.RegistryDBPath = *registryDBPath
	cfg.LedgerPath = *ledgerPath
	cfg.HTTPHost = *host
	cfg.HTTPPort = *port
	cfg.LogLevel = *logLevel
	cfg.VoterIDs = dedupeNonEmpty(*voterIDs)

	election := service.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := election.Start(ctx); err != nil {
		log.Fatalf("failed to start election: %v", err)
	}
	log.Infow("ballotvault is running", "host", cfg.HTTPHost, "port", cfg.HTTPPort)

	<-ctx.Done()
	log.Infof("shutting down")
	election.Stop()
}

func dedupeNonEmpty(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if _, dup := seen[id]; id != "" && !dup {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	return out
}
