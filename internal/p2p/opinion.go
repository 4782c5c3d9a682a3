package p2p

import (
	"context"

	"github.com/axiom-network/axiomd/internal/audit"
	"github.com/axiom-network/axiomd/internal/ledger"
)

// OpinionClient adapts Client to audit.OpinionClient, so the fragment
// auditor can poll peer opinions without importing p2p directly.
type OpinionClient struct {
	client *Client
}

// NewOpinionClient wraps client for use as an audit.OpinionClient.
func NewOpinionClient(client *Client) *OpinionClient {
	return &OpinionClient{client: client}
}

// FragmentOpinion implements audit.OpinionClient.
func (o *OpinionClient) FragmentOpinion(ctx context.Context, peerURL, factID string) (audit.PeerOpinion, error) {
	resp, err := o.client.FragmentOpinionWire(ctx, peerURL, factID)
	if err != nil {
		return audit.PeerOpinion{}, err
	}
	if !resp.Seen {
		return audit.PeerOpinion{Seen: false}, nil
	}
	return audit.PeerOpinion{
		Seen:          true,
		Status:        ledger.Status(resp.Status),
		TrustScore:    resp.TrustScore,
		FragmentState: ledger.FragmentState(resp.FragmentState),
	}, nil
}
