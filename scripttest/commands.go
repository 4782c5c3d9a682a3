// Package scripttest drives whole-node end-to-end scenarios against
// real httpapi.Server/p2p.Syncer instances through rsc.io/script's
// txtar-based command scripts, the same way the teacher's own CLI
// commands are exercised against a live process tree rather than
// mocked collaborators.
package scripttest

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"strings"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
	"rsc.io/script"

	"github.com/axiom-network/axiomd/internal/chain"
	"github.com/axiom-network/axiomd/internal/httpapi"
	"github.com/axiom-network/axiomd/internal/ledger"
	"github.com/axiom-network/axiomd/internal/p2p"
)

// testNode bundles one in-process node's stores and HTTP surface
// under a script-chosen name. Commands look nodes up by name so a
// single script can drive several nodes at once, as scenario 4 (pull
// sync between two nodes) requires.
type testNode struct {
	ledger   *ledger.Store
	chain    *chain.Store
	registry *p2p.Registry
	httpSrv  *httptest.Server
	db       *sql.DB
}

var (
	nodesMu sync.Mutex
	nodes   = map[string]*testNode{}
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func putNode(name string, n *testNode) {
	nodesMu.Lock()
	defer nodesMu.Unlock()
	nodes[name] = n
}

func getNode(name string) (*testNode, error) {
	nodesMu.Lock()
	defer nodesMu.Unlock()
	n, ok := nodes[name]
	if !ok {
		return nil, fmt.Errorf("no such node %q (did you run 'newnode %s' first?)", name, name)
	}
	return n, nil
}

// commands returns the axiom-specific commands layered onto
// script.DefaultCmds() for the scenarios in testdata/*.txt.
func commands() map[string]script.Cmd {
	return map[string]script.Cmd{
		"newnode":     cmdNewNode(),
		"insert":      cmdInsert(),
		"createblock": cmdCreateBlock(),
		"commitall":   cmdCommitAll(),
		"head":        cmdHead(),
		"blocksafter": cmdBlocksAfter(),
		"sync":        cmdSync(),
	}
}

func cmdNewNode() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "start an in-process node backed by a fresh sqlite db",
			Args:    "name",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("usage: newnode name")
			}
			name := args[0]
			ctx := s.Context()

			dbPath, err := os.CreateTemp("", "axiom-scripttest-*.db")
			if err != nil {
				return nil, err
			}
			_ = dbPath.Close()

			db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)", dbPath.Name()))
			if err != nil {
				return nil, fmt.Errorf("open db: %w", err)
			}

			ls := ledger.NewStore(db)
			if err := ls.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("ensure ledger schema: %w", err)
			}
			cs := chain.NewStore(db)
			if err := cs.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("ensure chain schema: %w", err)
			}
			if err := cs.InitializeChain(ctx); err != nil {
				return nil, fmt.Errorf("initialize chain: %w", err)
			}
			reg := p2p.NewRegistry(db)
			if err := reg.EnsureSchema(ctx); err != nil {
				return nil, fmt.Errorf("ensure peers schema: %w", err)
			}

			srv := httpapi.NewServer(ls, cs, reg, nil, discardLogger())
			httpSrv := httptest.NewServer(srv.Handler())

			putNode(name, &testNode{ledger: ls, chain: cs, registry: reg, httpSrv: httpSrv, db: db})
			return nil, nil
		},
	)
}

func cmdInsert() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "insert a fact's content and print its fact_id",
			Args:    "name content",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) < 2 {
				return nil, fmt.Errorf("usage: insert name content...")
			}
			n, err := getNode(args[0])
			if err != nil {
				return nil, err
			}
			content := strings.Join(args[1:], " ")
			factID, err := n.ledger.InsertUncorroboratedFact(s.Context(), discardLogger(), content, "", "", ledger.FragmentUnknown, 0, "")
			if err != nil {
				return nil, fmt.Errorf("insert fact: %w", err)
			}
			return stringWaiter(factID + "\n"), nil
		},
	)
}

func cmdCreateBlock() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "commit a comma-separated list of fact ids into a new block",
			Args:    "name id1,id2,...",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("usage: createblock name id1,id2,...")
			}
			n, err := getNode(args[0])
			if err != nil {
				return nil, err
			}
			ids := strings.Split(args[1], ",")
			block, err := n.chain.CreateBlock(s.Context(), ids)
			if err != nil {
				return nil, fmt.Errorf("create block: %w", err)
			}
			if block == nil {
				return stringWaiter("no-op\n"), nil
			}
			return stringWaiter(block.BlockID + "\n"), nil
		},
	)
}

// cmdCommitAll stands in for the scheduler's main cycle commit step:
// it gathers every fact id currently in the ledger, drops the ids some
// existing block already commits, and hands the rest to CreateBlock,
// which is a no-op when that set is empty (spec.md §8's "empty cycle"
// case).
func cmdCommitAll() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "commit every fact id currently in the ledger into a new block",
			Args:    "name",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("usage: commitall name")
			}
			n, err := getNode(args[0])
			if err != nil {
				return nil, err
			}
			ids, err := n.ledger.GetFactIDs(s.Context())
			if err != nil {
				return nil, fmt.Errorf("list fact ids: %w", err)
			}
			blocks, err := n.chain.GetBlocksAfter(s.Context(), 0)
			if err != nil {
				return nil, fmt.Errorf("list blocks: %w", err)
			}
			committed := make(map[string]bool)
			for _, b := range blocks {
				for _, id := range b.FactIDs {
					committed[id] = true
				}
			}
			var fresh []string
			for _, id := range ids {
				if !committed[id] {
					fresh = append(fresh, id)
				}
			}
			block, err := n.chain.CreateBlock(s.Context(), fresh)
			if err != nil {
				return nil, fmt.Errorf("create block: %w", err)
			}
			if block == nil {
				return stringWaiter("no-op\n"), nil
			}
			return stringWaiter(block.BlockID + "\n"), nil
		},
	)
}

func cmdHead() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "GET /get_chain_head from a node and print the response body",
			Args:    "name",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 1 {
				return nil, fmt.Errorf("usage: head name")
			}
			n, err := getNode(args[0])
			if err != nil {
				return nil, err
			}
			body, err := httpGET(s.Context(), n.httpSrv.URL+"/get_chain_head")
			if err != nil {
				return nil, err
			}
			return stringWaiter(body), nil
		},
	)
}

func cmdBlocksAfter() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "GET /get_blocks_after?height=N from a node and print the response body",
			Args:    "name height",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("usage: blocksafter name height")
			}
			n, err := getNode(args[0])
			if err != nil {
				return nil, err
			}
			if _, err := strconv.ParseInt(args[1], 10, 64); err != nil {
				return nil, fmt.Errorf("malformed height %q: %w", args[1], err)
			}
			body, err := httpGET(s.Context(), n.httpSrv.URL+"/get_blocks_after?height="+args[1])
			if err != nil {
				return nil, err
			}
			return stringWaiter(body), nil
		},
	)
}

func cmdSync() script.Cmd {
	return script.Command(
		script.CmdUsage{
			Summary: "pull-sync one node from a peer node (facts, then chain, then peer discovery)",
			Args:    "name peer",
		},
		func(s *script.State, args ...string) (script.WaitFunc, error) {
			if len(args) != 2 {
				return nil, fmt.Errorf("usage: sync name peer")
			}
			n, err := getNode(args[0])
			if err != nil {
				return nil, err
			}
			peer, err := getNode(args[1])
			if err != nil {
				return nil, err
			}
			client := p2p.NewClient(n.httpSrv.URL)
			syncer := p2p.NewSyncer(client, n.ledger, n.chain, n.registry)
			syncer.Round(s.Context(), discardLogger(), peer.httpSrv.URL)
			return nil, nil
		},
	)
}

func httpGET(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, body)
	}
	return string(body) + "\n", nil
}

func stringWaiter(s string) script.WaitFunc {
	return func(*script.State) (stdout, stderr string, err error) {
		return s, "", nil
	}
}
