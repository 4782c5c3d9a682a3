package p2p

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/axiom-network/axiomd/internal/chain"
	"github.com/axiom-network/axiomd/internal/ledger"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type testNode struct {
	db       *sql.DB
	ledger   *ledger.Store
	chain    *chain.Store
	registry *Registry
}

func newTestNode(t *testing.T) *testNode {
	t.Helper()
	dbPath := t.TempDir() + "/p2p_test.db"
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
	reg := NewRegistry(db)
	if err := reg.EnsureSchema(ctx); err != nil {
		t.Fatalf("ensure peers schema: %v", err)
	}
	return &testNode{db: db, ledger: ls, chain: cs, registry: reg}
}

func factID(content string) string {
	sum := sha256.Sum256([]byte(content))
	return hex.EncodeToString(sum[:])
}

func TestSyncFactsFetchesMissingAndVerifiesHash(t *testing.T) {
	ctx := context.Background()
	dst := newTestNode(t)

	good := "a well-formed corroborated fact statement."
	bad := "tampered content that will not match its advertised id."
	badID := factID("original content")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_fact_ids":
			_ = json.NewEncoder(w).Encode(FactIDsResponse{FactIDs: []string{factID(good), badID}})
		case "/get_facts_by_id":
			_ = json.NewEncoder(w).Encode(FactsByIDResponse{Facts: []FactRecord{
				{FactID: factID(good), Content: good, Status: "uncorroborated", TrustScore: 1, FragmentState: "unknown"},
				{FactID: badID, Content: bad, Status: "uncorroborated", TrustScore: 1, FragmentState: "unknown"},
			}})
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient("http://self")
	syncer := NewSyncer(client, dst.ledger, dst.chain, dst.registry)

	if err := syncer.syncFacts(ctx, testLogger(), srv.URL); err != nil {
		t.Fatalf("sync facts: %v", err)
	}

	ids, err := dst.ledger.GetFactIDs(ctx)
	if err != nil {
		t.Fatalf("get fact ids: %v", err)
	}
	if len(ids) != 1 || ids[0] != factID(good) {
		t.Fatalf("expected only the hash-verified fact to be inserted, got %v", ids)
	}
}

func TestSyncChainAppliesBlocksInOrder(t *testing.T) {
	ctx := context.Background()
	src := newTestNode(t)
	dst := newTestNode(t)

	factA, err := src.ledger.InsertUncorroboratedFact(ctx, testLogger(), "fact a", "", "", ledger.FragmentUnknown, 0, "")
	if err != nil {
		t.Fatalf("insert fact a: %v", err)
	}
	if _, err := src.chain.CreateBlock(ctx, []string{factA}); err != nil {
		t.Fatalf("create block: %v", err)
	}

	head, err := src.chain.GetChainHead(ctx, testLogger())
	if err != nil {
		t.Fatalf("source head: %v", err)
	}
	blocks, err := src.chain.GetBlocksAfter(ctx, 0)
	if err != nil {
		t.Fatalf("source blocks: %v", err)
	}
	var blocksResp BlocksAfterResponse
	for _, b := range blocks {
		blocksResp.Blocks = append(blocksResp.Blocks, BlockRecord{
			BlockID: b.BlockID, PreviousBlockID: b.PreviousBlockID,
			Height: b.Height, CreatedAtUTC: b.CreatedAtUTC, FactIDs: b.FactIDs,
		})
	}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/get_chain_head":
			_ = json.NewEncoder(w).Encode(ChainHeadResponse{BlockID: head.BlockID, Height: head.Height})
		case "/get_blocks_after":
			_ = json.NewEncoder(w).Encode(blocksResp)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	client := NewClient("http://self")
	syncer := NewSyncer(client, dst.ledger, dst.chain, dst.registry)

	if err := syncer.syncChain(ctx, testLogger(), srv.URL); err != nil {
		t.Fatalf("sync chain: %v", err)
	}

	dstHead, err := dst.chain.GetChainHead(ctx, testLogger())
	if err != nil {
		t.Fatalf("dst head: %v", err)
	}
	if dstHead.Height != 1 {
		t.Fatalf("expected dst chain to advance to height 1, got %d", dstHead.Height)
	}
}

func TestDiscoverPeersRegistersAdvertisedURLs(t *testing.T) {
	ctx := context.Background()
	dst := newTestNode(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(PeersResponse{Peers: []string{"http://peer-a:8009", "http://peer-b:8010"}})
	}))
	defer srv.Close()

	client := NewClient("http://self")
	syncer := NewSyncer(client, dst.ledger, dst.chain, dst.registry)

	if err := syncer.discoverPeers(ctx, testLogger(), srv.URL); err != nil {
		t.Fatalf("discover peers: %v", err)
	}

	peers, err := dst.registry.List(ctx)
	if err != nil {
		t.Fatalf("list peers: %v", err)
	}
	if len(peers) != 2 {
		t.Fatalf("expected 2 registered peers, got %v", peers)
	}
}

func TestClientSendsPeerHeader(t *testing.T) {
	var gotHeader string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotHeader = r.Header.Get(PeerHeader)
		_ = json.NewEncoder(w).Encode(FactIDsResponse{})
	}))
	defer srv.Close()

	client := NewClient("http://self:8009")
	if _, err := client.GetFactIDs(context.Background(), srv.URL); err != nil {
		t.Fatalf("get fact ids: %v", err)
	}
	if gotHeader != "http://self:8009" {
		t.Fatalf("expected peer header to advertise our url, got %q", gotHeader)
	}
}

func TestClientDoesNotRetryPermanentFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	client := NewClient("http://self")
	start := time.Now()
	_, err := client.GetFactIDs(context.Background(), srv.URL)
	if err == nil {
		t.Fatal("expected an error for a 400 response")
	}
	if time.Since(start) > retryMaxElapsed {
		t.Fatalf("expected a permanent 4xx failure to return immediately, took %v", time.Since(start))
	}
}

func TestOpinionClientTranslatesUnseen(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(FragmentOpinionResponse{Seen: false})
	}))
	defer srv.Close()

	oc := NewOpinionClient(NewClient("http://self"))
	op, err := oc.FragmentOpinion(context.Background(), srv.URL, factID("x"))
	if err != nil {
		t.Fatalf("fragment opinion: %v", err)
	}
	if op.Seen {
		t.Fatal("expected Seen=false to round-trip")
	}
}
