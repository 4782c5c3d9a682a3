package audit

import "github.com/axiom-network/axiomd/internal/ledger"

// decentTrustFloor resolves spec.md's open question on the
// peer-opinion trust floor: the spec's own stated default, "≥3".
const decentTrustFloor = 3

// NextFromScore applies the score-only transition rules: unknown
// crossing 0.5 becomes suspected, a suspected fact whose score falls
// below 0.2 is demoted back to rejected. Any other state is left
// untouched by score alone; only peer consensus can move it further.
func NextFromScore(current ledger.FragmentState, score float64) ledger.FragmentState {
	switch current {
	case ledger.FragmentUnknown:
		if score >= 0.5 {
			return ledger.FragmentSuspected
		}
	case ledger.FragmentSuspected:
		if score < 0.2 {
			return ledger.FragmentRejected
		}
	}
	return current
}

// PeerOpinion is one peer's answer to GET /fragment_opinion.
type PeerOpinion struct {
	Seen          bool
	Status        ledger.Status
	TrustScore    int
	FragmentState ledger.FragmentState
}

// Vote classifies a single peer opinion as positive, negative, or an
// abstention, per spec.md §4.3.
type Vote int

const (
	VoteAbstain Vote = iota
	VotePositive
	VoteNegative
)

func classifyVote(op PeerOpinion) Vote {
	if !op.Seen || op.FragmentState == ledger.FragmentSuspected || op.FragmentState == ledger.FragmentConfirmed {
		return VotePositive
	}
	if op.FragmentState == ledger.FragmentRejected || (op.Status == ledger.StatusTrusted && op.TrustScore >= decentTrustFloor) {
		return VoteNegative
	}
	return VoteAbstain
}

// ConsensusDecision tallies positive/negative votes across opinions
// and returns the resulting transition, or "" for mixed/empty (no
// change).
func ConsensusDecision(opinions []PeerOpinion) ledger.FragmentState {
	var positives, negatives int
	for _, op := range opinions {
		switch classifyVote(op) {
		case VotePositive:
			positives++
		case VoteNegative:
			negatives++
		}
	}
	switch {
	case positives > 0 && negatives == 0:
		return ledger.FragmentConfirmed
	case negatives > 0 && positives == 0:
		return ledger.FragmentRejected
	default:
		return ""
	}
}
