// Package node wires one axiomd process together: it opens the
// node's database, constructs the C1-C7 stores and services, and
// exposes Run to drive the HTTP server and scheduler until canceled.
package node

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"golang.org/x/sync/errgroup"

	"github.com/axiom-network/axiomd/internal/audit"
	"github.com/axiom-network/axiomd/internal/chain"
	"github.com/axiom-network/axiomd/internal/config"
	"github.com/axiom-network/axiomd/internal/extractor"
	"github.com/axiom-network/axiomd/internal/httpapi"
	"github.com/axiom-network/axiomd/internal/ledger"
	"github.com/axiom-network/axiomd/internal/p2p"
	"github.com/axiom-network/axiomd/internal/prune"
	"github.com/axiom-network/axiomd/internal/scheduler"
	"github.com/axiom-network/axiomd/internal/telemetry"
)

// Collaborators lets a caller plug in real fact-extraction and
// idle-learning implementations. Any unset field falls back to
// extractor.Noop.
type Collaborators struct {
	FactExtractor extractor.FactExtractor
	Relationship  extractor.RelationshipRefresher
	Pattern       extractor.ConversationPatternCompiler
	Introspector  extractor.CodeIntrospector
	Quality       extractor.DataQualitySampler
	SelfChecker   extractor.SelfChecker
}

// Node holds one process's fully wired stores and services.
type Node struct {
	cfg *config.Config
	log *slog.Logger
	db  *sql.DB

	Ledger   *ledger.Store
	Chain    *chain.Store
	Registry *p2p.Registry
	Client   *p2p.Client

	Server    *httpapi.Server
	Scheduler *scheduler.Scheduler
}

// New opens the node's database, runs every store's EnsureSchema, and
// wires the HTTP server and scheduler. It does not start either; call
// Run for that.
func New(ctx context.Context, cfg *config.Config, log *slog.Logger, telemetryProviders *telemetry.Providers, collab Collaborators) (*Node, error) {
	db, err := openDB(cfg.DBPath)
	if err != nil {
		return nil, err
	}

	ls := ledger.NewStore(db)
	if err := ls.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("node: ensure ledger schema: %w", err)
	}
	cs := chain.NewStore(db)
	if err := cs.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("node: ensure chain schema: %w", err)
	}
	if err := cs.InitializeChain(ctx); err != nil {
		return nil, fmt.Errorf("node: initialize chain: %w", err)
	}
	registry := p2p.NewRegistry(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("node: ensure peers schema: %w", err)
	}

	if cfg.BootstrapPeer != "" {
		if err := registry.Register(ctx, cfg.BootstrapPeer); err != nil {
			log.Warn("register bootstrap peer failed", "peer", cfg.BootstrapPeer, "error", err)
		}
	}

	client := p2p.NewClient(cfg.AdvertisedURL)

	var metrics *telemetry.Metrics
	if telemetryProviders != nil {
		metrics, err = telemetry.NewMetrics(telemetry.Meter())
		if err != nil {
			return nil, fmt.Errorf("node: build metrics: %w", err)
		}
	}

	auditor := audit.NewAuditor(ls, p2p.NewOpinionClient(client))
	pruner := prune.NewPruner(ls)

	sched := scheduler.New(
		scheduler.Config{
			Port:              cfg.Port,
			Role:              role(cfg),
			AdvertisedURL:     cfg.AdvertisedURL,
			DBPath:            cfg.DBPath,
			MainCycleInterval: cfg.MainCycleInterval,
			IdleSuiteInterval: cfg.IdleSuiteInterval,
		},
		log, ls, cs, registry, client,
		firstNonNilExtractor(collab.FactExtractor),
		firstNonNilRelationship(collab.Relationship),
		firstNonNilPattern(collab.Pattern),
		firstNonNilIntrospector(collab.Introspector),
		firstNonNilQuality(collab.Quality),
		firstNonNilSelfChecker(collab.SelfChecker),
		auditor, pruner,
	)
	sched.SetMetrics(metrics)

	server := httpapi.NewServer(ls, cs, registry, sched, log)

	return &Node{
		cfg: cfg, log: log, db: db,
		Ledger: ls, Chain: cs, Registry: registry, Client: client,
		Server: server, Scheduler: sched,
	}, nil
}

// Run starts the HTTP server and the scheduler and blocks until ctx
// is canceled or either fails.
func (n *Node) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return n.Server.ListenAndServe(gctx, fmt.Sprintf(":%d", n.cfg.Port))
	})
	g.Go(func() error {
		return n.Scheduler.Run(gctx)
	})
	return g.Wait()
}

// Close releases the node's database handle.
func (n *Node) Close() error {
	return n.db.Close()
}

func role(cfg *config.Config) string {
	if cfg.BootstrapPeer == "" {
		return "bootstrap"
	}
	return "peer"
}

func openDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path))
	if err != nil {
		return nil, fmt.Errorf("node: open database %s: %w", path, err)
	}
	return db, nil
}

func firstNonNilExtractor(e extractor.FactExtractor) extractor.FactExtractor {
	if e == nil {
		return extractor.Noop{}
	}
	return e
}

func firstNonNilRelationship(e extractor.RelationshipRefresher) extractor.RelationshipRefresher {
	if e == nil {
		return extractor.Noop{}
	}
	return e
}

func firstNonNilPattern(e extractor.ConversationPatternCompiler) extractor.ConversationPatternCompiler {
	if e == nil {
		return extractor.Noop{}
	}
	return e
}

func firstNonNilIntrospector(e extractor.CodeIntrospector) extractor.CodeIntrospector {
	if e == nil {
		return extractor.Noop{}
	}
	return e
}

func firstNonNilQuality(e extractor.DataQualitySampler) extractor.DataQualitySampler {
	if e == nil {
		return extractor.Noop{}
	}
	return e
}

func firstNonNilSelfChecker(e extractor.SelfChecker) extractor.SelfChecker {
	if e == nil {
		return extractor.Noop{}
	}
	return e
}
