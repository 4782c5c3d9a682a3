package ledger

import (
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
)

// compressContent zlib-compresses plaintext for storage. Compression
// failure means the insert is skipped entirely per spec.md's "never
// store plaintext" failure semantics; callers must not fall back to
// storing the raw bytes.
func compressContent(plaintext string) ([]byte, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write([]byte(plaintext)); err != nil {
		_ = w.Close()
		return nil, fmt.Errorf("compress content: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("compress content: %w", err)
	}
	return buf.Bytes(), nil
}

// decompressContent reverses compressContent. A blob that fails to
// decompress as zlib is treated as legacy plaintext stored before the
// compression invariant existed, per the self-healing migration
// described in spec.md §3.
func decompressContent(blob []byte) (string, bool) {
	r, err := zlib.NewReader(bytes.NewReader(blob))
	if err != nil {
		return "", false
	}
	defer func() { _ = r.Close() }()
	out, err := io.ReadAll(r)
	if err != nil {
		return "", false
	}
	return string(out), true
}
