// Package scheduler implements C7: the cooperative single-worker main
// cycle and idle suite spec.md §4.7 describes.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/axiom-network/axiomd/internal/audit"
	"github.com/axiom-network/axiomd/internal/chain"
	"github.com/axiom-network/axiomd/internal/extractor"
	"github.com/axiom-network/axiomd/internal/ledger"
	"github.com/axiom-network/axiomd/internal/p2p"
	"github.com/axiom-network/axiomd/internal/prune"
	"github.com/axiom-network/axiomd/internal/telemetry"
)

// Default per-task idle-suite throttles. Only the fragment audit's 30
// minute interval is named in spec.md §4.7; the rest are this node's
// own documented choice (see DESIGN.md), spaced so the external
// collaborator tasks don't re-run every 30s tick by default.
const (
	idleLearningInterval      = 5 * time.Minute
	codeIntrospectionInterval = 15 * time.Minute
	dataQualityInterval       = 10 * time.Minute
	healthSnapshotInterval    = 0 // every idle-suite tick
	selfChecksInterval        = 15 * time.Minute
)

// Config is the subset of node configuration the scheduler needs.
type Config struct {
	Port              int
	Role              string
	AdvertisedURL     string
	DBPath            string
	MainCycleInterval time.Duration
	IdleSuiteInterval time.Duration
}

// Scheduler drives one node's background worker.
type Scheduler struct {
	cfg    Config
	log    *slog.Logger
	ledger *ledger.Store
	chain  *chain.Store

	registry *p2p.Registry
	client   *p2p.Client

	factExtractor extractor.FactExtractor
	relationship  extractor.RelationshipRefresher
	pattern       extractor.ConversationPatternCompiler
	introspector  extractor.CodeIntrospector
	quality       extractor.DataQualitySampler
	selfChecker   extractor.SelfChecker

	auditor *audit.Auditor
	pruner  *prune.Pruner
	metrics *telemetry.Metrics

	idleLearning         *throttle
	codeIntrospection    *throttle
	dataQuality          *throttle
	healthSnapshot       *throttle
	selfChecks           *throttle
	fragmentAuditSkipLog *throttle // rate-limits the skip log only; a.auditor owns the actual due check

	mu            sync.Mutex
	initialized   bool
	lastMainCycle time.Time
}

// New wires a Scheduler from a node's stores and its external
// collaborators. Pass extractor.Noop{} for any collaborator a node
// does not yet implement.
func New(
	cfg Config,
	log *slog.Logger,
	ledgerStore *ledger.Store,
	chainStore *chain.Store,
	registry *p2p.Registry,
	client *p2p.Client,
	factExtractor extractor.FactExtractor,
	relationship extractor.RelationshipRefresher,
	pattern extractor.ConversationPatternCompiler,
	introspector extractor.CodeIntrospector,
	quality extractor.DataQualitySampler,
	selfChecker extractor.SelfChecker,
	auditor *audit.Auditor,
	pruner *prune.Pruner,
) *Scheduler {
	return &Scheduler{
		cfg:                  cfg,
		log:                  log,
		ledger:               ledgerStore,
		chain:                chainStore,
		registry:             registry,
		client:               client,
		factExtractor:        factExtractor,
		relationship:         relationship,
		pattern:              pattern,
		introspector:         introspector,
		quality:              quality,
		selfChecker:          selfChecker,
		auditor:              auditor,
		pruner:               pruner,
		idleLearning:         newThrottle(idleLearningInterval),
		codeIntrospection:    newThrottle(codeIntrospectionInterval),
		dataQuality:          newThrottle(dataQualityInterval),
		healthSnapshot:       newThrottle(healthSnapshotInterval),
		selfChecks:           newThrottle(selfChecksInterval),
		fragmentAuditSkipLog: newThrottle(0),
	}
}

// SetMetrics attaches the node's counters. A Scheduler with no metrics
// attached records nothing; *telemetry.Metrics is nil-safe.
func (s *Scheduler) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
}

// tag prefixes a log line with the node's listen port, per spec.md
// §4.7's origin-tagging requirement for multi-node deployments.
func (s *Scheduler) tag() string {
	return fmt.Sprintf("node:%d", s.cfg.Port)
}

// Run drives the main cycle and idle suite on a single goroutine
// until ctx is canceled. The two are cooperative: each tick runs to
// completion before the next select, so they never overlap.
func (s *Scheduler) Run(ctx context.Context) error {
	s.mu.Lock()
	s.initialized = true
	s.mu.Unlock()

	mainTicker := time.NewTicker(s.cfg.MainCycleInterval)
	idleTicker := time.NewTicker(s.cfg.IdleSuiteInterval)
	defer mainTicker.Stop()
	defer idleTicker.Stop()

	s.log.Info("scheduler started", "tag", s.tag(),
		"main_cycle_interval", s.cfg.MainCycleInterval, "idle_suite_interval", s.cfg.IdleSuiteInterval)

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler shutting down", "tag", s.tag())
			return nil
		case <-mainTicker.C:
			s.runMainCycle(ctx)
		case <-idleTicker.C:
			s.runIdleSuite(ctx)
		}
	}
}

// runMainCycle implements spec.md §4.7's four main-cycle steps.
func (s *Scheduler) runMainCycle(ctx context.Context) {
	ctx, span := telemetry.Tracer().Start(ctx, "scheduler.main_cycle", trace.WithAttributes(
		attribute.Int("axiom.node_port", s.cfg.Port),
	))
	defer span.End()

	s.mu.Lock()
	s.lastMainCycle = time.Now()
	s.mu.Unlock()

	candidates, err := s.factExtractor.ExtractFacts(ctx)
	if err != nil {
		s.log.Warn("main cycle: fact extraction failed", "tag", s.tag(), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fact extraction failed")
		return
	}

	existingIDs, err := s.ledger.GetFactIDs(ctx)
	if err != nil {
		s.log.Warn("main cycle: list existing facts failed", "tag", s.tag(), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "list existing facts failed")
		return
	}
	existing := make(map[string]struct{}, len(existingIDs))
	for _, id := range existingIDs {
		existing[id] = struct{}{}
	}

	var newIDs []string
	for _, c := range candidates {
		if ctx.Err() != nil {
			return
		}
		id := ledger.ComputeFactID(c.Content)
		_, alreadyPresent := existing[id]

		insertedID, err := s.ledger.InsertUncorroboratedFact(ctx, s.log, c.Content, c.SourceURL, c.AdlSummary, ledger.FragmentUnknown, 0, "")
		if err != nil {
			s.log.Warn("main cycle: fact insert failed", "tag", s.tag(), "error", err)
			continue
		}
		if !alreadyPresent {
			newIDs = append(newIDs, insertedID)
			existing[id] = struct{}{}
		}
	}

	s.metrics.FactInserted(ctx, int64(len(newIDs)))

	if len(newIDs) > 0 {
		block, err := s.chain.CreateBlock(ctx, newIDs)
		if err != nil {
			s.log.Warn("main cycle: create block failed", "tag", s.tag(), "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "create block failed")
		} else if block != nil {
			s.log.Info("main cycle: committed block", "tag", s.tag(), "block_id", block.BlockID, "height", block.Height, "fact_count", len(newIDs))
			s.metrics.BlockCreated(ctx)
		}
	}

	if s.pruner != nil && s.pruner.Due(time.Now()) {
		n, err := s.pruner.RunOnce(ctx, s.log.With("tag", s.tag()), time.Now())
		if err != nil {
			s.log.Warn("main cycle: prune failed", "tag", s.tag(), "error", err)
			span.RecordError(err)
			span.SetStatus(codes.Error, "prune failed")
		} else {
			s.metrics.FragmentsPruned(ctx, int64(n))
		}
	}

	if s.registry == nil || s.client == nil || s.chain == nil {
		return
	}
	peers, err := s.registry.List(ctx)
	if err != nil {
		s.log.Warn("main cycle: list peers failed", "tag", s.tag(), "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "list peers failed")
		return
	}
	syncer := p2p.NewSyncer(s.client, s.ledger, s.chain, s.registry)
	syncer.SetMetrics(s.metrics)
	for _, peer := range peers {
		if ctx.Err() != nil {
			return
		}
		syncer.Round(ctx, s.log.With("tag", s.tag()), peer)
	}
}

