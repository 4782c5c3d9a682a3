package scheduler

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/axiom-network/axiomd/internal/audit"
	"github.com/axiom-network/axiomd/internal/chain"
	"github.com/axiom-network/axiomd/internal/extractor"
	"github.com/axiom-network/axiomd/internal/ledger"
	"github.com/axiom-network/axiomd/internal/p2p"
	"github.com/axiom-network/axiomd/internal/prune"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeExtractor struct {
	candidates []extractor.FactCandidate
}

func (f *fakeExtractor) ExtractFacts(ctx context.Context) ([]extractor.FactCandidate, error) {
	return f.candidates, nil
}

type countingTask struct {
	calls atomic.Int32
}

func (c *countingTask) Refresh(ctx context.Context) error    { c.calls.Add(1); return nil }
func (c *countingTask) Compile(ctx context.Context) error    { c.calls.Add(1); return nil }
func (c *countingTask) Introspect(ctx context.Context) error { c.calls.Add(1); return nil }
func (c *countingTask) Sample(ctx context.Context) error     { c.calls.Add(1); return nil }
func (c *countingTask) Check(ctx context.Context) error      { c.calls.Add(1); return nil }

func newTestScheduler(t *testing.T, cfg Config, fe extractor.FactExtractor) (*Scheduler, *ledger.Store, *chain.Store) {
	t.Helper()
	dbPath := t.TempDir() + "/scheduler_test.db"
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath))
	if err != nil {
		t.Fatalf("open test database: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	ls := ledger.NewStore(db)
	if err := ls.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure ledger schema: %v", err)
	}
	cs := chain.NewStore(db)
	if err := cs.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure chain schema: %v", err)
	}
	if err := cs.InitializeChain(ctx); err != nil {
		t.Fatalf("initialize chain: %v", err)
	}
	reg := p2p.NewRegistry(db)
	if err := reg.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure peers schema: %v", err)
	}

	client := p2p.NewClient(cfg.AdvertisedURL)
	auditor := audit.NewAuditor(ls, p2p.NewOpinionClient(client))
	pruner := prune.NewPruner(ls)
	noop := extractor.Noop{}

	sched := New(cfg, testLogger(), ls, cs, reg, client, fe,
		noop, noop, noop, noop, noop, auditor, pruner)
	return sched, ls, cs
}

func TestRunMainCycleInsertsFactsAndCreatesBlock(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExtractor{candidates: []extractor.FactCandidate{
		{Content: "the sky is blue", SourceURL: "test://a"},
		{Content: "water is wet", SourceURL: "test://b"},
	}}
	cfg := Config{Port: 9100, Role: "test", AdvertisedURL: "http://self:9100", DBPath: ":memory:",
		MainCycleInterval: time.Hour, IdleSuiteInterval: time.Hour}
	sched, ls, cs := newTestScheduler(t, cfg, fe)

	sched.runMainCycle(ctx)

	ids, err := ls.GetFactIDs(ctx)
	if err != nil {
		t.Fatalf("get fact ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected 2 facts inserted, got %d", len(ids))
	}

	head, err := cs.GetChainHead(ctx, testLogger())
	if err != nil {
		t.Fatalf("get chain head: %v", err)
	}
	if head.Height != 1 {
		t.Fatalf("expected chain to advance to height 1 after first cycle, got %d", head.Height)
	}
}

func TestRunMainCycleSecondPassDoesNotReblockExistingFacts(t *testing.T) {
	ctx := context.Background()
	fe := &fakeExtractor{candidates: []extractor.FactCandidate{{Content: "a stable fact", SourceURL: "test://a"}}}
	cfg := Config{Port: 9101, Role: "test", AdvertisedURL: "http://self:9101", DBPath: ":memory:",
		MainCycleInterval: time.Hour, IdleSuiteInterval: time.Hour}
	sched, _, cs := newTestScheduler(t, cfg, fe)

	sched.runMainCycle(ctx)
	sched.runMainCycle(ctx)

	head, err := cs.GetChainHead(ctx, testLogger())
	if err != nil {
		t.Fatalf("get chain head: %v", err)
	}
	if head.Height != 1 {
		t.Fatalf("expected no second block for an already-seen fact, height stayed at %d", head.Height)
	}
}

func TestRunIdleSuiteCombinesRelationshipAndPatternUnderOneThrottle(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Port: 9102, Role: "test", AdvertisedURL: "http://self:9102", DBPath: ":memory:",
		MainCycleInterval: time.Hour, IdleSuiteInterval: time.Hour}
	sched, _, _ := newTestScheduler(t, cfg, extractor.Noop{})

	counting := &countingTask{}
	sched.relationship = counting
	sched.pattern = counting

	sched.runIdleSuite(ctx)
	if got := counting.calls.Load(); got != 2 {
		t.Fatalf("expected both relationship refresh and pattern compile to run on first pass, got %d calls", got)
	}

	sched.runIdleSuite(ctx)
	if got := counting.calls.Load(); got != 2 {
		t.Fatalf("expected second pass within the throttle interval to be skipped entirely, got %d calls", got)
	}
}

func TestRunIdleSuiteSkipsTasksNotYetDue(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Port: 9103, Role: "test", AdvertisedURL: "http://self:9103", DBPath: ":memory:",
		MainCycleInterval: time.Hour, IdleSuiteInterval: time.Hour}
	sched, _, _ := newTestScheduler(t, cfg, extractor.Noop{})

	counting := &countingTask{}
	sched.introspector = counting

	sched.runIdleSuite(ctx)
	sched.runIdleSuite(ctx)
	sched.runIdleSuite(ctx)

	if got := counting.calls.Load(); got != 1 {
		t.Fatalf("expected code introspection to run once and then stay throttled, got %d calls", got)
	}
}

func TestRunIdleSuiteRunsNoStepsWhenContextAlreadyCanceled(t *testing.T) {
	cfg := Config{Port: 9104, Role: "test", AdvertisedURL: "http://self:9104", DBPath: ":memory:",
		MainCycleInterval: time.Hour, IdleSuiteInterval: time.Hour}
	sched, _, _ := newTestScheduler(t, cfg, extractor.Noop{})

	counting := &countingTask{}
	sched.relationship = counting
	sched.pattern = counting
	sched.introspector = counting

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sched.runIdleSuite(ctx)
	if got := counting.calls.Load(); got != 0 {
		t.Fatalf("expected a pre-canceled context to run no idle steps, got %d calls", got)
	}
}

func TestIdleStateNotOkBeforeRunStarts(t *testing.T) {
	cfg := Config{Port: 9105, Role: "test", AdvertisedURL: "http://self:9105", DBPath: ":memory:",
		MainCycleInterval: time.Hour, IdleSuiteInterval: time.Hour}
	sched, _, _ := newTestScheduler(t, cfg, extractor.Noop{})

	_, ok := sched.IdleState()
	if ok {
		t.Fatal("expected IdleState to report not-ok before Run has started")
	}
}

func TestIdleStateReflectsConfigAfterRunStarts(t *testing.T) {
	cfg := Config{Port: 9106, Role: "primary", AdvertisedURL: "http://self:9106", DBPath: "/tmp/axiom.db",
		MainCycleInterval: 900 * time.Second, IdleSuiteInterval: 30 * time.Second}
	sched, _, _ := newTestScheduler(t, cfg, extractor.Noop{})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = sched.Run(ctx)
		close(done)
	}()

	for i := 0; i < 100; i++ {
		if _, ok := sched.IdleState(); ok {
			break
		}
		time.Sleep(time.Millisecond)
	}
	cancel()
	<-done

	snapshot, ok := sched.IdleState()
	if !ok {
		t.Fatal("expected IdleState to report ok once Run has started")
	}
	if snapshot.NodePort != 9106 || snapshot.NodeRole != "primary" {
		t.Fatalf("unexpected idle state config fields: %+v", snapshot)
	}
	if snapshot.MainCycleIntervalSec != 900 || snapshot.IdleSuiteIntervalSec != 30 {
		t.Fatalf("unexpected idle state interval fields: %+v", snapshot)
	}
}
