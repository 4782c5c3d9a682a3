package httpapi

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/axiom-network/axiomd/internal/ledger"
	"github.com/axiom-network/axiomd/internal/p2p"
)

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (s *Server) handleGetFactIDs(w http.ResponseWriter, r *http.Request) {
	ids, err := s.ledger.GetFactIDs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if ids == nil {
		ids = []string{}
	}
	writeJSON(w, http.StatusOK, p2p.FactIDsResponse{FactIDs: ids})
}

func (s *Server) handleGetFactsByID(w http.ResponseWriter, r *http.Request) {
	var ids []string
	switch r.Method {
	case http.MethodGet:
		raw := r.URL.Query().Get("ids")
		if raw != "" {
			ids = strings.Split(raw, ",")
		}
	case http.MethodPost:
		body, err := io.ReadAll(r.Body)
		if err != nil {
			writeError(w, http.StatusBadRequest, "read request body: "+err.Error())
			return
		}
		var req p2p.FactsByIDRequest
		if len(body) > 0 {
			if err := json.Unmarshal(body, &req); err != nil {
				writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
				return
			}
		}
		ids = req.IDs
	default:
		writeError(w, http.StatusBadRequest, "method not allowed")
		return
	}

	facts, err := s.ledger.GetFactsByID(r.Context(), ids)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	records := make([]p2p.FactRecord, 0, len(facts))
	for _, f := range facts {
		records = append(records, factToRecord(f))
	}
	writeJSON(w, http.StatusOK, p2p.FactsByIDResponse{Facts: records})
}

func factToRecord(f ledger.Fact) p2p.FactRecord {
	return p2p.FactRecord{
		FactID:             f.FactID,
		Content:            f.Content,
		SourceURL:          f.SourceURL,
		AdlSummary:         f.AdlSummary,
		Status:             string(f.Status),
		TrustScore:         f.TrustScore,
		FragmentState:      string(f.FragmentState),
		FragmentScore:      f.FragmentScore,
		IngestTimestampUTC: f.IngestTimestampUTC,
	}
}

func (s *Server) handleGetChainHead(w http.ResponseWriter, r *http.Request) {
	head, err := s.chain.GetChainHead(r.Context(), s.log)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, p2p.ChainHeadResponse{BlockID: head.BlockID, Height: head.Height})
}

func (s *Server) handleGetBlocksAfter(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("height")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "missing height query parameter")
		return
	}
	height, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed height query parameter")
		return
	}

	blocks, err := s.chain.GetBlocksAfter(r.Context(), height)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]p2p.BlockRecord, 0, len(blocks))
	for _, b := range blocks {
		out = append(out, p2p.BlockRecord{
			BlockID:         b.BlockID,
			PreviousBlockID: b.PreviousBlockID,
			Height:          b.Height,
			CreatedAtUTC:    b.CreatedAtUTC,
			FactIDs:         b.FactIDs,
		})
	}
	writeJSON(w, http.StatusOK, p2p.BlocksAfterResponse{Blocks: out})
}

func (s *Server) handleGetPeers(w http.ResponseWriter, r *http.Request) {
	peers, err := s.registry.List(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if peers == nil {
		peers = []string{}
	}
	writeJSON(w, http.StatusOK, p2p.PeersResponse{Peers: peers})
}

func (s *Server) handleFragmentOpinion(w http.ResponseWriter, r *http.Request) {
	factID := r.URL.Query().Get("fact_id")
	if factID == "" {
		writeError(w, http.StatusBadRequest, "missing fact_id query parameter")
		return
	}

	facts, err := s.ledger.GetFactsByID(r.Context(), []string{factID})
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if len(facts) == 0 {
		writeJSON(w, http.StatusOK, p2p.FragmentOpinionResponse{Seen: false})
		return
	}
	f := facts[0]
	writeJSON(w, http.StatusOK, p2p.FragmentOpinionResponse{
		Seen:          true,
		Status:        string(f.Status),
		TrustScore:    f.TrustScore,
		FragmentState: string(f.FragmentState),
		FragmentScore: f.FragmentScore,
	})
}

func (s *Server) handleDebugIdleState(w http.ResponseWriter, r *http.Request) {
	if s.idle == nil {
		writeError(w, http.StatusServiceUnavailable, "node not initialized")
		return
	}
	state, ok := s.idle.IdleState()
	if !ok {
		writeError(w, http.StatusServiceUnavailable, "node not initialized")
		return
	}
	writeJSON(w, http.StatusOK, state)
}
