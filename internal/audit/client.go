package audit

import "context"

// OpinionClient is the minimal peer-facing capability the auditor
// needs: ask one peer for its opinion of a fact. internal/p2p's HTTP
// client implements this; the auditor depends only on the interface so
// it never imports the sync package.
type OpinionClient interface {
	FragmentOpinion(ctx context.Context, peerURL, factID string) (PeerOpinion, error)
}
