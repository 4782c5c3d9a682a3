// Package extractor defines the minimal interfaces the scheduler (C7)
// calls into for the idle-suite and main-cycle steps that spec.md
// marks "external": fact extraction, relationship refresh,
// conversation-pattern compilation, code introspection, data-quality
// sampling, and self-checks. Axiom's scheduler treats each as a black
// box; this package only adapts a capability down to the narrow shape
// a caller needs, the way internal/storage/provider.go wraps a
// Storage implementation behind IssueProvider.
package extractor

import "context"

// FactCandidate is one record the external fact extractor proposes
// for insertion into the ledger during a main cycle.
type FactCandidate struct {
	Content    string
	SourceURL  string
	AdlSummary string
}

// FactExtractor supplies the main cycle's step 1: candidate facts to
// insert this cycle.
type FactExtractor interface {
	ExtractFacts(ctx context.Context) ([]FactCandidate, error)
}

// RelationshipRefresher is idle-suite task 1.
type RelationshipRefresher interface {
	Refresh(ctx context.Context) error
}

// ConversationPatternCompiler is idle-suite task 2.
type ConversationPatternCompiler interface {
	Compile(ctx context.Context) error
}

// CodeIntrospector is idle-suite task 3.
type CodeIntrospector interface {
	Introspect(ctx context.Context) error
}

// DataQualitySampler is idle-suite task 4.
type DataQualitySampler interface {
	Sample(ctx context.Context) error
}

// SelfChecker is idle-suite task 7.
type SelfChecker interface {
	Check(ctx context.Context) error
}
