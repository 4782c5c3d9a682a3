package extractor

import "context"

// Noop implements every interface in this package as a no-op,
// returning an empty extraction and nil errors. A node runs this
// until a real Crucible/relationship/pattern/introspection/quality/
// self-check collaborator is wired in.
type Noop struct{}

func (Noop) ExtractFacts(ctx context.Context) ([]FactCandidate, error) { return nil, nil }
func (Noop) Refresh(ctx context.Context) error                        { return nil }
func (Noop) Compile(ctx context.Context) error                        { return nil }
func (Noop) Introspect(ctx context.Context) error                     { return nil }
func (Noop) Sample(ctx context.Context) error                         { return nil }
func (Noop) Check(ctx context.Context) error                          { return nil }

var (
	_ FactExtractor               = Noop{}
	_ RelationshipRefresher       = Noop{}
	_ ConversationPatternCompiler = Noop{}
	_ CodeIntrospector            = Noop{}
	_ DataQualitySampler          = Noop{}
	_ SelfChecker                 = Noop{}
)
