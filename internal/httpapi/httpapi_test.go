package httpapi

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/axiom-network/axiomd/internal/chain"
	"github.com/axiom-network/axiomd/internal/ledger"
	"github.com/axiom-network/axiomd/internal/p2p"
)

func newTestServer(t *testing.T) (*Server, *ledger.Store, *chain.Store) {
	t.Helper()
	dbPath := t.TempDir() + "/httpapi_test.db"
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

	return NewServer(ls, cs, reg, nil, nil), ls, cs
}

func TestGetFactIDsEmpty(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/get_fact_ids")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out p2p.FactIDsResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.FactIDs == nil || len(out.FactIDs) != 0 {
		t.Fatalf("expected an empty (not null) array, got %v", out.FactIDs)
	}
}

func TestGetFactsByIDPostRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv, ls, _ := newTestServer(t)
	id, err := ls.InsertUncorroboratedFact(ctx, testLogger(), "a round trip fact statement.", "", "", ledger.FragmentUnknown, 0, "")
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	body, _ := json.Marshal(p2p.FactsByIDRequest{IDs: []string{id, "unknownid"}})
	resp, err := http.Post(ts.URL+"/get_facts_by_id", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()

	var out p2p.FactsByIDResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Facts) != 1 || out.Facts[0].FactID != id {
		t.Fatalf("expected exactly the known fact, unknown omitted silently, got %+v", out.Facts)
	}
}

func TestGetChainHeadReturnsGenesis(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/get_chain_head")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var out p2p.ChainHeadResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.BlockID != chain.GenesisBlockID || out.Height != 0 {
		t.Fatalf("expected genesis head, got %+v", out)
	}
}

func TestGetBlocksAfterMalformedHeightIs400(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/get_blocks_after?height=notanumber")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestGetBlocksAfterBeyondHeadReturnsEmptyNot404(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/get_blocks_after?height=99")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
	var out p2p.BlocksAfterResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Blocks == nil || len(out.Blocks) != 0 {
		t.Fatalf("expected an empty (not null) array, got %v", out.Blocks)
	}
}

func TestFragmentOpinionUnseen(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/fragment_opinion?fact_id=" + unseenID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	var out p2p.FragmentOpinionResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Seen {
		t.Fatal("expected seen=false for an unknown fact id")
	}
}

func TestFragmentOpinionMissingParamIs400(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/fragment_opinion")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", resp.StatusCode)
	}
}

func TestDebugIdleStateUninitializedIs503(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/debug/idle_state")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", resp.StatusCode)
	}
}

func TestPeerHeaderRegistersSender(t *testing.T) {
	srv, _, _ := newTestServer(t)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	req, _ := http.NewRequest(http.MethodGet, ts.URL+"/get_peers", nil)
	req.Header.Set(p2p.PeerHeader, "http://some-peer:8010")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()

	resp2, err := http.Get(ts.URL + "/get_peers")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp2.Body.Close()
	var out p2p.PeersResponse
	if err := json.NewDecoder(resp2.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Peers) != 1 || out.Peers[0] != "http://some-peer:8010" {
		t.Fatalf("expected the inbound X-Axiom-Peer sender to be registered, got %v", out.Peers)
	}
}
