package chain

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/axiom-network/axiomd/internal/dbutil"
)

// CreateBlock takes the current head, commits factIDs in order at
// height+1, and appends the computed block. A node must not create a
// block over zero facts: CreateBlock returns (nil, nil) in that case
// rather than writing an empty commitment. createMu makes this safe
// against a second concurrent invocation on the same node; the
// underlying IMMEDIATE transaction additionally protects against a
// concurrent append_block from a peer sync round.
func (s *Store) CreateBlock(ctx context.Context, factIDs []string) (*Block, error) {
	if len(factIDs) == 0 {
		return nil, nil
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	var result *Block
	err := dbutil.WithImmediateTx(ctx, s.db, func(conn *sql.Conn) error {
		head, err := headFromQuerier(ctx, conn)
		if err != nil {
			return err
		}

		createdAt := time.Now().UTC().Format(time.RFC3339Nano)
		height := head.Height + 1
		blockID, err := computeBlockID(head.BlockID, height, createdAt, factIDs)
		if err != nil {
			return err
		}

		encoded, err := json.Marshal(factIDs)
		if err != nil {
			return fmt.Errorf("chain: create block: encode fact ids: %w", err)
		}

		if _, err := conn.ExecContext(ctx, `
			INSERT INTO blocks (block_id, previous_block_id, height, created_at_utc, fact_ids)
			VALUES (?, ?, ?, ?, ?)
		`, blockID, head.BlockID, height, createdAt, string(encoded)); err != nil {
			return fmt.Errorf("chain: create block: insert: %w", err)
		}

		result = &Block{
			BlockID:         blockID,
			PreviousBlockID: head.BlockID,
			Height:          height,
			FactIDs:         factIDs,
		}
		if t, perr := time.Parse(time.RFC3339Nano, createdAt); perr == nil {
			result.CreatedAtUTC = t
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ValidateBlock checks candidate against the currently stored head:
// its recomputed hash must equal its stored block_id, its
// previous_block_id must equal our head's block_id, its height must
// be our head's height+1, and every fact_id must be a 64-char
// lowercase hex string.
func (s *Store) ValidateBlock(ctx context.Context, candidate Block) error {
	head, err := headFromQuerier(ctx, s.db)
	if err != nil {
		return err
	}
	return validateAgainst(head, candidate)
}

func validateAgainst(head Head, candidate Block) error {
	recomputed, err := computeBlockID(candidate.PreviousBlockID, candidate.Height,
		candidate.CreatedAtUTC.Format(time.RFC3339Nano), candidate.FactIDs)
	if err != nil {
		return err
	}
	if recomputed != candidate.BlockID {
		return fmt.Errorf("chain: validate block %s: recomputed hash mismatch", candidate.BlockID)
	}
	if candidate.PreviousBlockID != head.BlockID {
		return fmt.Errorf("chain: validate block %s: previous_block_id %q does not match head %q",
			candidate.BlockID, candidate.PreviousBlockID, head.BlockID)
	}
	if candidate.Height != head.Height+1 {
		return fmt.Errorf("chain: validate block %s: height %d does not extend head height %d",
			candidate.BlockID, candidate.Height, head.Height)
	}
	for _, id := range candidate.FactIDs {
		if !isHex64(id) {
			return fmt.Errorf("chain: validate block %s: fact id %q is not a 64-hex string", candidate.BlockID, id)
		}
	}
	return nil
}

func isHex64(s string) bool {
	if len(s) != 64 {
		return false
	}
	for _, c := range s {
		if !((c >= '0' && c <= '9') || (c >= 'a' && c <= 'f')) {
			return false
		}
	}
	return true
}

// AppendBlock re-validates candidate against the current head inside
// the same atomic section that performs the insert, so a losing race
// between two peers extending our head with different blocks at
// height+1 is rejected cleanly: whichever append_block commits first
// wins, and the second fails validate_block because the head has
// already moved.
func (s *Store) AppendBlock(ctx context.Context, candidate Block) error {
	s.createMu.Lock()
	defer s.createMu.Unlock()

	return dbutil.WithImmediateTx(ctx, s.db, func(conn *sql.Conn) error {
		head, err := headFromQuerier(ctx, conn)
		if err != nil {
			return err
		}
		if err := validateAgainst(head, candidate); err != nil {
			return err
		}

		encoded, err := json.Marshal(candidate.FactIDs)
		if err != nil {
			return fmt.Errorf("chain: append block: encode fact ids: %w", err)
		}

		_, err = conn.ExecContext(ctx, `
			INSERT INTO blocks (block_id, previous_block_id, height, created_at_utc, fact_ids)
			VALUES (?, ?, ?, ?, ?)
		`, candidate.BlockID, candidate.PreviousBlockID, candidate.Height,
			candidate.CreatedAtUTC.Format(time.RFC3339Nano), string(encoded))
		if err != nil {
			return fmt.Errorf("chain: append block: insert: %w", err)
		}
		return nil
	})
}
