package p2p

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/axiom-network/axiomd/internal/chain"
	"github.com/axiom-network/axiomd/internal/ledger"
	"github.com/axiom-network/axiomd/internal/telemetry"
)

// factBatchSize bounds how many ids one get_facts_by_id call requests
// at a time, and factFetchConcurrency bounds how many such batches run
// concurrently against a single peer.
const (
	factBatchSize        = 200
	factFetchConcurrency = 4
)

// Syncer drives one pull round against a peer on behalf of the
// scheduler's main cycle.
type Syncer struct {
	client   *Client
	ledger   *ledger.Store
	chain    *chain.Store
	registry *Registry
	metrics  *telemetry.Metrics
}

// NewSyncer wires a syncer to a node's stores and outbound client.
func NewSyncer(client *Client, ledgerStore *ledger.Store, chainStore *chain.Store, registry *Registry) *Syncer {
	return &Syncer{client: client, ledger: ledgerStore, chain: chainStore, registry: registry}
}

// SetMetrics attaches the node's counters. A Syncer with no metrics
// attached records nothing; *telemetry.Metrics is nil-safe.
func (s *Syncer) SetMetrics(m *telemetry.Metrics) {
	s.metrics = m
}

// Round performs one full pull-sync round against peerURL: fact sync,
// chain sync, then peer discovery, per spec.md §4.5. Each step's
// errors are logged and the round continues with the next step rather
// than aborting early.
func (s *Syncer) Round(ctx context.Context, log *slog.Logger, peerURL string) {
	ctx, span := telemetry.Tracer().Start(ctx, "p2p.sync_round", trace.WithAttributes(
		attribute.String("axiom.peer", peerURL),
	))
	defer span.End()

	if err := s.syncFacts(ctx, log, peerURL); err != nil {
		log.Warn("fact sync failed", "peer", peerURL, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "fact sync failed")
		s.metrics.SyncError(ctx, "fact_sync")
	}
	if err := s.syncChain(ctx, log, peerURL); err != nil {
		log.Warn("chain sync failed", "peer", peerURL, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "chain sync failed")
		s.metrics.SyncError(ctx, "chain_sync")
	}
	if err := s.discoverPeers(ctx, log, peerURL); err != nil {
		log.Warn("peer discovery failed", "peer", peerURL, "error", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, "peer discovery failed")
		s.metrics.SyncError(ctx, "peer_discovery")
	}
}

func (s *Syncer) syncFacts(ctx context.Context, log *slog.Logger, peerURL string) error {
	remoteIDs, err := s.client.GetFactIDs(ctx, peerURL)
	if err != nil {
		return fmt.Errorf("get fact ids: %w", err)
	}

	localIDs, err := s.ledger.GetFactIDs(ctx)
	if err != nil {
		return fmt.Errorf("get local fact ids: %w", err)
	}
	local := make(map[string]struct{}, len(localIDs))
	for _, id := range localIDs {
		local[id] = struct{}{}
	}

	var missing []string
	for _, id := range remoteIDs {
		if _, ok := local[id]; !ok {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}

	batches := batchStrings(missing, factBatchSize)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(factFetchConcurrency)
	results := make([][]FactRecord, len(batches))
	for i, batch := range batches {
		i, batch := i, batch
		g.Go(func() error {
			records, ferr := s.client.GetFactsByID(gctx, peerURL, batch)
			if ferr != nil {
				log.Warn("fact batch fetch failed", "peer", peerURL, "error", ferr)
				return nil // a batch failure does not abort the round
			}
			results[i] = records
			return nil
		})
	}
	_ = g.Wait()

	for _, records := range results {
		for _, rec := range records {
			s.insertVerified(ctx, log, peerURL, rec)
		}
	}
	return nil
}

// insertVerified checks the content-address invariant before ever
// calling into C1: a hash mismatch is an integrity failure and the
// record is dropped, never inserted.
func (s *Syncer) insertVerified(ctx context.Context, log *slog.Logger, peerURL string, rec FactRecord) {
	sum := sha256.Sum256([]byte(rec.Content))
	if hex.EncodeToString(sum[:]) != rec.FactID {
		log.Warn("fact hash mismatch, dropping", "peer", peerURL, "fact_id", rec.FactID)
		return
	}
	if _, err := s.ledger.InsertUncorroboratedFact(ctx, log, rec.Content, rec.SourceURL, rec.AdlSummary,
		ledger.FragmentState(rec.FragmentState), rec.FragmentScore, ""); err != nil {
		log.Warn("fact insert failed during sync", "peer", peerURL, "fact_id", rec.FactID, "error", err)
		return
	}
	s.metrics.FactInserted(ctx, 1)
}

func (s *Syncer) syncChain(ctx context.Context, log *slog.Logger, peerURL string) error {
	localHead, err := s.chain.GetChainHead(ctx, log)
	if err != nil {
		return fmt.Errorf("get local chain head: %w", err)
	}

	peerHead, err := s.client.GetChainHead(ctx, peerURL)
	if err != nil {
		return fmt.Errorf("get peer chain head: %w", err)
	}
	if peerHead.Height <= localHead.Height {
		return nil
	}

	blocks, err := s.client.GetBlocksAfter(ctx, peerURL, localHead.Height)
	if err != nil {
		return fmt.Errorf("get blocks after %d: %w", localHead.Height, err)
	}

	for _, b := range blocks {
		candidate := chain.Block{
			BlockID:         b.BlockID,
			PreviousBlockID: b.PreviousBlockID,
			Height:          b.Height,
			CreatedAtUTC:    b.CreatedAtUTC,
			FactIDs:         b.FactIDs,
		}
		if err := s.chain.AppendBlock(ctx, candidate); err != nil {
			// no reorg: stop this peer's chain sync this round on first failure.
			return fmt.Errorf("append block %s at height %d: %w", b.BlockID, b.Height, err)
		}
		s.metrics.BlockCreated(ctx)
	}
	return nil
}

func (s *Syncer) discoverPeers(ctx context.Context, log *slog.Logger, peerURL string) error {
	peers, err := s.client.GetPeers(ctx, peerURL)
	if err != nil {
		return fmt.Errorf("get peers: %w", err)
	}
	for _, p := range peers {
		if err := s.registry.Register(ctx, p); err != nil {
			log.Warn("peer registration failed", "peer", p, "error", err)
			continue
		}
		s.metrics.PeerDiscovered(ctx)
	}
	return nil
}

func batchStrings(items []string, size int) [][]string {
	var batches [][]string
	for len(items) > 0 {
		n := size
		if n > len(items) {
			n = len(items)
		}
		batches = append(batches, items[:n])
		items = items[n:]
	}
	return batches
}
