package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/axiom-network/axiomd/internal/ledger"
)

const (
	// sampleSize is the maximum number of non-disputed facts audited per run.
	sampleSize = 40
	// throttle is the minimum interval between audit runs on one node.
	throttle = 30 * time.Minute
	// maxOpinionPeers bounds how many peers are consulted per suspected fact.
	maxOpinionPeers = 3
)

// Auditor runs the C3 fragment classification pass over the ledger.
type Auditor struct {
	store   *ledger.Store
	client  OpinionClient
	mu      sync.Mutex
	lastRun time.Time
}

// NewAuditor wires an auditor to a ledger store and a peer opinion
// client.
func NewAuditor(store *ledger.Store, client OpinionClient) *Auditor {
	return &Auditor{store: store, client: client}
}

// Due reports whether enough time has passed since the last run to
// attempt another one.
func (a *Auditor) Due(now time.Time) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return now.Sub(a.lastRun) >= throttle
}

// LastRunAt returns the last time RunOnce completed, zero if never run.
func (a *Auditor) LastRunAt() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastRun
}

// RunOnce samples up to sampleSize non-disputed facts, applies the
// score-based transition, and — for facts that land on
// suspected_fragment — queries up to maxOpinionPeers peers for
// consensus. It returns the number of facts whose fragment_state
// changed.
func (a *Auditor) RunOnce(ctx context.Context, log *slog.Logger, peers []string, now time.Time) (int, error) {
	a.mu.Lock()
	a.lastRun = now
	a.mu.Unlock()

	facts, err := a.store.SampleNonDisputedFacts(ctx, sampleSize)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, f := range facts {
		score, reasons := Score(f.Content)
		next := NextFromScore(f.FragmentState, score)

		if next == ledger.FragmentSuspected {
			if consensus := a.consult(ctx, log, peers, f.FactID); consensus != "" {
				next = consensus
			}
		}

		if next == f.FragmentState && score == f.FragmentScore {
			continue
		}

		reasonTag := joinReasons(reasons)
		if err := a.store.UpdateFragment(ctx, f.FactID, next, score, reasonTag); err != nil {
			log.Warn("fragment audit: update failed", "fact_id", f.FactID, "error", err)
			continue
		}
		if next != f.FragmentState {
			changed++
		}
	}
	return changed, nil
}

// consult queries up to maxOpinionPeers peers for their opinion of
// factID and returns the resulting consensus transition, or "" for
// mixed/empty/no-peers.
func (a *Auditor) consult(ctx context.Context, log *slog.Logger, peers []string, factID string) ledger.FragmentState {
	if a.client == nil || len(peers) == 0 {
		return ""
	}
	n := len(peers)
	if n > maxOpinionPeers {
		n = maxOpinionPeers
	}

	var opinions []PeerOpinion
	for _, peerURL := range peers[:n] {
		op, err := a.client.FragmentOpinion(ctx, peerURL, factID)
		if err != nil {
			log.Debug("fragment audit: peer opinion failed, skipping peer", "peer", peerURL, "fact_id", factID, "error", err)
			continue
		}
		opinions = append(opinions, op)
	}
	return ConsensusDecision(opinions)
}

func joinReasons(reasons []string) string {
	out := ""
	for i, r := range reasons {
		if i > 0 {
			out += ","
		}
		out += r
	}
	return out
}
