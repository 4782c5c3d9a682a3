package chain

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
)

// computeBlockID reproduces block_id = SHA256(previous_block_id ||
// height || created_at_utc || json(fact_ids)) exactly as spec.md
// defines it, so validate_block can recompute and compare.
func computeBlockID(previousBlockID string, height int64, createdAtUTC string, factIDs []string) (string, error) {
	if factIDs == nil {
		factIDs = []string{}
	}
	encoded, err := json.Marshal(factIDs)
	if err != nil {
		return "", fmt.Errorf("chain: encode fact ids: %w", err)
	}
	payload := fmt.Sprintf("%s%d%s%s", previousBlockID, height, createdAtUTC, encoded)
	sum := sha256.Sum256([]byte(payload))
	return hex.EncodeToString(sum[:]), nil
}
