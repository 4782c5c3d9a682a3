package ledger

import "time"

// Status is a fact's corroboration state.
type Status string

const (
	StatusUncorroborated Status = "uncorroborated"
	StatusTrusted        Status = "trusted"
	StatusDisputed       Status = "disputed"
)

// FragmentState is a fact's position in the metacognitive audit state
// machine.
type FragmentState string

const (
	FragmentUnknown   FragmentState = "unknown"
	FragmentSuspected FragmentState = "suspected_fragment"
	FragmentConfirmed FragmentState = "confirmed_fragment"
	FragmentRejected  FragmentState = "rejected_fragment"
)

// RelationshipKind tags a row in fact_relationships.
type RelationshipKind string

const (
	RelationshipContradicts  RelationshipKind = "contradicts"
	RelationshipSharedEntity RelationshipKind = "shared_entity"
)

// Fact is an immutable, content-addressed textual claim plus the
// mutable corroboration and fragment-audit metadata layered on top of
// it. Content is the decompressed plaintext; GetFactsByID and
// SampleNonDisputedFacts populate it, while GetFactIDs returns ids only.
type Fact struct {
	FactID             string
	Content            string
	AdlSummary         string
	SourceURL          string
	IngestTimestampUTC time.Time
	Status             Status
	TrustScore         int
	FragmentState      FragmentState
	FragmentScore      float64
	FragmentReason     string
}
