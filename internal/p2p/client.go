package p2p

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/axiom-network/axiomd/internal/axiomerr"
)

// requestTimeout is the hard per-request ceiling spec.md §5 requires
// on every outbound P2P call.
const requestTimeout = 10 * time.Second

// retryMaxElapsed bounds how long a single outbound call may spend
// retrying a transient failure before giving up and letting the
// caller log it as a skipped step, per spec.md §4.5.
const retryMaxElapsed = 3 * time.Second

// Client issues outbound P2P calls against one peer at a time. It
// carries no per-peer state: the peer URL is a parameter of every
// method.
type Client struct {
	advertisedURL string
	httpClient    *http.Client
}

// NewClient builds a client that identifies itself to peers as
// advertisedURL via the X-Axiom-Peer header on every request.
func NewClient(advertisedURL string) *Client {
	return &Client{
		advertisedURL: advertisedURL,
		httpClient:    &http.Client{Timeout: requestTimeout},
	}
}

func newRetryBackoff() backoff.BackOff {
	bo := backoff.NewExponentialBackOff()
	bo.MaxElapsedTime = retryMaxElapsed
	return bo
}

// isRetryableError reports whether err looks like a transient network
// failure worth a second attempt, as opposed to a protocol or
// integrity failure the caller should skip immediately.
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "connection refused") ||
		strings.Contains(msg, "timeout") ||
		strings.Contains(msg, "timed out") ||
		strings.Contains(msg, "eof") ||
		strings.Contains(msg, "reset by peer") ||
		strings.Contains(msg, "no such host")
}

// doJSON performs one HTTP round trip against peerURL+path, retrying
// transient failures with exponential backoff, and decodes the JSON
// response body into out (skipped if out is nil).
func (c *Client) doJSON(ctx context.Context, method, peerURL, path string, body interface{}, out interface{}) error {
	var reqBody []byte
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("%w: encode request body: %s", axiomerr.ErrProtocol, err)
		}
		reqBody = encoded
	}

	op := func() error {
		req, err := http.NewRequestWithContext(ctx, method, peerURL+path, bytes.NewReader(reqBody))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("build request: %w", err))
		}
		if reqBody != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		req.Header.Set(PeerHeader, c.advertisedURL)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if isRetryableError(err) {
				return fmt.Errorf("%w: %s", axiomerr.ErrTransient, err)
			}
			return backoff.Permanent(fmt.Errorf("%w: %s", axiomerr.ErrTransient, err))
		}
		defer func() { _ = resp.Body.Close() }()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return backoff.Permanent(fmt.Errorf("%w: read response: %s", axiomerr.ErrTransient, err))
		}

		if resp.StatusCode >= 500 {
			return fmt.Errorf("%w: peer returned %d", axiomerr.ErrTransient, resp.StatusCode)
		}
		if resp.StatusCode >= 400 {
			return backoff.Permanent(fmt.Errorf("%w: peer returned %d", axiomerr.ErrProtocol, resp.StatusCode))
		}

		if out != nil {
			if err := json.Unmarshal(data, out); err != nil {
				return backoff.Permanent(fmt.Errorf("%w: decode response: %s", axiomerr.ErrProtocol, err))
			}
		}
		return nil
	}

	return backoff.Retry(op, backoff.WithContext(newRetryBackoff(), ctx))
}

// GetFactIDs fetches the peer's full fact id set.
func (c *Client) GetFactIDs(ctx context.Context, peerURL string) ([]string, error) {
	var out FactIDsResponse
	if err := c.doJSON(ctx, http.MethodGet, peerURL, "/get_fact_ids", nil, &out); err != nil {
		return nil, err
	}
	return out.FactIDs, nil
}

// GetFactsByID fetches the full records for ids via POST, spec.md
// §6's default client encoding (GET with a query list is the
// server-side compatibility path, not something this client needs).
func (c *Client) GetFactsByID(ctx context.Context, peerURL string, ids []string) ([]FactRecord, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var out FactsByIDResponse
	if err := c.doJSON(ctx, http.MethodPost, peerURL, "/get_facts_by_id", FactsByIDRequest{IDs: ids}, &out); err != nil {
		return nil, err
	}
	return out.Facts, nil
}

// GetChainHead fetches the peer's current chain head.
func (c *Client) GetChainHead(ctx context.Context, peerURL string) (ChainHeadResponse, error) {
	var out ChainHeadResponse
	if err := c.doJSON(ctx, http.MethodGet, peerURL, "/get_chain_head", nil, &out); err != nil {
		return ChainHeadResponse{}, err
	}
	return out, nil
}

// GetBlocksAfter fetches every block the peer has beyond height n, in
// ascending order.
func (c *Client) GetBlocksAfter(ctx context.Context, peerURL string, n int64) ([]BlockRecord, error) {
	var out BlocksAfterResponse
	path := "/get_blocks_after?height=" + strconv.FormatInt(n, 10)
	if err := c.doJSON(ctx, http.MethodGet, peerURL, path, nil, &out); err != nil {
		return nil, err
	}
	return out.Blocks, nil
}

// GetPeers fetches the peer's own peer list.
func (c *Client) GetPeers(ctx context.Context, peerURL string) ([]string, error) {
	var out PeersResponse
	if err := c.doJSON(ctx, http.MethodGet, peerURL, "/get_peers", nil, &out); err != nil {
		return nil, err
	}
	return out.Peers, nil
}

// FragmentOpinionWire fetches one peer's opinion of a fact by id.
func (c *Client) FragmentOpinionWire(ctx context.Context, peerURL, factID string) (FragmentOpinionResponse, error) {
	var out FragmentOpinionResponse
	path := "/fragment_opinion?fact_id=" + url.QueryEscape(factID)
	if err := c.doJSON(ctx, http.MethodGet, peerURL, path, nil, &out); err != nil {
		return FragmentOpinionResponse{}, err
	}
	return out, nil
}
