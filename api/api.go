// Package api exposes the election's registry and ledger over HTTP.
package api

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/quorumvote/ballotvault/keystore"
	"github.com/quorumvote/ballotvault/ledger"
	"github.com/quorumvote/ballotvault/log"
	"github.com/quorumvote/ballotvault/registry"
)

// Config configures a new API server.
type Config struct {
	Host     string
	Port     int
	Registry *registry.Registry
	Keystore *keystore.Store
	Ledger   *ledger.Ledger
}

// API is the election's HTTP server: a thin router over the registry,
// keystore and ledger.
type API struct {
	router   *chi.Mux
	registry *registry.Registry
	keystore *keystore.Store
	ledger   *ledger.Ledger
}

// New builds an API instance and starts serving in the background. It
// returns as soon as the router is constructed; ListenAndServe runs in its
// own goroutine, matching how the rest of this service's components start
// without blocking their caller.
func New(conf *Config) (*API, error) {
	if conf == nil {
		return nil, fmt.Errorf("api: missing configuration")
	}
	if conf.Registry == nil || conf.Keystore == nil || conf.Ledger == nil {
		return nil, fmt.Errorf("api: missing registry, keystore or ledger")
	}

	a := &API{
		registry: conf.Registry,
		keystore: conf.Keystore,
		ledger:   conf.Ledger,
	}
	a.initRouter()

	go func() {
		addr := fmt.Sprintf("%s:%d", conf.Host, conf.Port)
		log.Infow("starting API server", "host", conf.Host, "port", conf.Port)
		if err := http.ListenAndServe(addr, a.router); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
	return a, nil
}

// Router returns the chi router, for use in tests.
func (a *API) Router() *chi.Mux {
	return a.router
}

func (a *API) registerHandlers() {
	log.Infow("register handler", "endpoint", PingEndpoint, "method", "GET")
	a.router.Get(PingEndpoint, func(w http.ResponseWriter, r *http.Request) {
		httpWriteOK(w)
	})

	log.Infow("register handler", "endpoint", IssueTokenEndpoint, "method", "POST")
	a.router.Post(IssueTokenEndpoint, a.issueToken)
	log.Infow("register handler", "endpoint", IssuerPubKeyEndpoint, "method", "GET")
	a.router.Get(IssuerPubKeyEndpoint, a.issuerPubKey)
	log.Infow("register handler", "endpoint", VoterStatusEndpoint, "method", "GET")
	a.router.Get(VoterStatusEndpoint, a.voterStatus)

	log.Infow("register handler", "endpoint", CastVoteEndpoint, "method", "POST")
	a.router.Post(CastVoteEndpoint, a.castVote)
	log.Infow("register handler", "endpoint", TalliesEndpoint, "method", "GET")
	a.router.Get(TalliesEndpoint, a.tallies)
	log.Infow("register handler", "endpoint", ChainEndpoint, "method", "GET")
	a.router.Get(ChainEndpoint, a.chain)
	log.Infow("register handler", "endpoint", ChainBlockEndpoint, "method", "GET")
	a.router.Get(ChainBlockEndpoint, a.chainBlock)
	log.Infow("register handler", "endpoint", VerifyChainEndpoint, "method", "GET")
	a.router.Get(VerifyChainEndpoint, a.verifyChain)
	log.Infow("register handler", "endpoint", StatsEndpoint, "method", "GET")
	a.router.Get(StatsEndpoint, a.stats)
}

// bufPool reduces allocations in the debug request logger below.
var bufPool = sync.Pool{
	New: func() interface{} {
		return new(bytes.Buffer)
	},
}

func (a *API) initRouter() {
	logHandler := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if log.Level() != log.LogLevelDebug || r.URL.Path == PingEndpoint {
				next.ServeHTTP(w, r)
				return
			}

			buf := bufPool.Get().(*bytes.Buffer)
			buf.Reset()

			bodyBytes, err := io.ReadAll(r.Body)
			if err != nil {
				http.Error(w, "unable to read request body", http.StatusInternalServerError)
				bufPool.Put(buf)
				return
			}
			buf.Write(bodyBytes)

			log.Debugw("api request",
				"method", r.Method,
				"url", r.URL.String(),
				"body", strings.ReplaceAll(buf.String(), "\"", ""),
			)

			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			bufPool.Put(buf)

			next.ServeHTTP(w, r)
		})
	}

	a.router = chi.NewRouter()
	a.router.Use(cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}).Handler)
	a.router.Use(logHandler)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Throttle(100))
	a.router.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	a.router.Use(middleware.Timeout(45 * time.Second))

	a.registerHandlers()
}
