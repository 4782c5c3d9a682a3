package audit

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/axiom-network/axiomd/internal/ledger"
)

func TestScorePronounLeadingShortSentence(t *testing.T) {
	score, reasons := Score("he went there.")
	if score < 0.5 {
		t.Fatalf("expected score >= 0.5 for a short pronoun-leading sentence, got %v (reasons=%v)", score, reasons)
	}
}

func TestScoreWellFormedSentenceIsLow(t *testing.T) {
	score, _ := Score("The Eiffel Tower was completed in 1889 in Paris, France.")
	if score >= 0.5 {
		t.Fatalf("expected a well-formed named-entity sentence to score low, got %v", score)
	}
}

func TestNextFromScoreTransitions(t *testing.T) {
	if got := NextFromScore(ledger.FragmentUnknown, 0.6); got != ledger.FragmentSuspected {
		t.Errorf("expected unknown->suspected at score 0.6, got %s", got)
	}
	if got := NextFromScore(ledger.FragmentUnknown, 0.3); got != ledger.FragmentUnknown {
		t.Errorf("expected unknown to stay unknown below 0.5, got %s", got)
	}
	if got := NextFromScore(ledger.FragmentSuspected, 0.1); got != ledger.FragmentRejected {
		t.Errorf("expected suspected->rejected below 0.2, got %s", got)
	}
	if got := NextFromScore(ledger.FragmentSuspected, 0.3); got != ledger.FragmentSuspected {
		t.Errorf("expected suspected to hold at score 0.3, got %s", got)
	}
}

func TestConsensusDecisionAllUnseenConfirms(t *testing.T) {
	opinions := []PeerOpinion{{Seen: false}, {Seen: false}, {Seen: false}}
	if got := ConsensusDecision(opinions); got != ledger.FragmentConfirmed {
		t.Fatalf("expected confirmed_fragment from unanimous seen=false, got %s", got)
	}
}

func TestConsensusDecisionRejectedOnNegative(t *testing.T) {
	opinions := []PeerOpinion{{Seen: true, FragmentState: ledger.FragmentRejected}}
	if got := ConsensusDecision(opinions); got != ledger.FragmentRejected {
		t.Fatalf("expected rejected_fragment from a single negative vote, got %s", got)
	}
}

func TestConsensusDecisionMixedIsNoChange(t *testing.T) {
	opinions := []PeerOpinion{
		{Seen: false},
		{Seen: true, FragmentState: ledger.FragmentRejected},
	}
	if got := ConsensusDecision(opinions); got != "" {
		t.Fatalf("expected no change on mixed votes, got %s", got)
	}
}

func TestConsensusDecisionTrustedHighScoreIsNegative(t *testing.T) {
	opinions := []PeerOpinion{{Seen: true, Status: ledger.StatusTrusted, TrustScore: 5, FragmentState: ledger.FragmentUnknown}}
	if got := ConsensusDecision(opinions); got != ledger.FragmentRejected {
		t.Fatalf("expected rejected_fragment for a decently-trusted peer opinion, got %s", got)
	}
}

type fakeOpinionClient struct {
	opinion PeerOpinion
	err     error
}

func (f *fakeOpinionClient) FragmentOpinion(ctx context.Context, peerURL, factID string) (PeerOpinion, error) {
	return f.opinion, f.err
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestAuditorPromotesSuspectedToConfirmedViaPeerConsensus(t *testing.T) {
	ctx := context.Background()
	store := newTestLedger(t)
	log := testLogger()

	id, err := store.InsertUncorroboratedFact(ctx, log, "he went there.", "", "", ledger.FragmentUnknown, 0, "")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	auditor := NewAuditor(store, nil)
	if _, err := auditor.RunOnce(ctx, log, nil, time.Now()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	facts, err := store.GetFactsByID(ctx, []string{id})
	if err != nil {
		t.Fatalf("get facts: %v", err)
	}
	if facts[0].FragmentState != ledger.FragmentSuspected {
		t.Fatalf("expected suspected_fragment after first run, got %s", facts[0].FragmentState)
	}

	client := &fakeOpinionClient{opinion: PeerOpinion{Seen: false}}
	auditor2 := NewAuditor(store, client)
	if _, err := auditor2.RunOnce(ctx, log, []string{"http://peer-a", "http://peer-b", "http://peer-c"}, time.Now()); err != nil {
		t.Fatalf("second run: %v", err)
	}
	facts, err = store.GetFactsByID(ctx, []string{id})
	if err != nil {
		t.Fatalf("get facts: %v", err)
	}
	if facts[0].FragmentState != ledger.FragmentConfirmed {
		t.Fatalf("expected confirmed_fragment after peer consensus, got %s", facts[0].FragmentState)
	}
}

func TestAuditorDueRespectsThrottle(t *testing.T) {
	store := newTestLedger(t)
	auditor := NewAuditor(store, nil)
	now := time.Now()
	if !auditor.Due(now) {
		t.Fatal("expected a fresh auditor to be due immediately")
	}
	if _, err := auditor.RunOnce(context.Background(), testLogger(), nil, now); err != nil {
		t.Fatalf("run: %v", err)
	}
	if auditor.Due(now.Add(time.Minute)) {
		t.Fatal("expected auditor to not be due one minute after a run")
	}
	if !auditor.Due(now.Add(31 * time.Minute)) {
		t.Fatal("expected auditor to be due after the throttle window")
	}
}
