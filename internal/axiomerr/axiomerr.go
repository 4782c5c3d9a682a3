// Package axiomerr defines the node-wide error taxonomy from the Axiom
// spec's error handling design: transient I/O, protocol violations,
// integrity failures, and fatal local storage conditions.
package axiomerr

import "errors"

var (
	// ErrTransient marks a network or remote-peer failure that should be
	// logged and skipped; the caller continues with the next step or peer.
	ErrTransient = errors.New("transient I/O error")

	// ErrProtocol marks malformed JSON or a missing field in a peer
	// response; the offending item is skipped.
	ErrProtocol = errors.New("protocol error")

	// ErrIntegrity marks a hash mismatch on a fact or block; the item is
	// rejected and never inserted.
	ErrIntegrity = errors.New("integrity error")

	// ErrFatal marks a local storage condition a node cannot recover
	// from at runtime (disk full, corruption detected on startup). The
	// node logs and terminates rather than continuing with an
	// inconsistent store.
	ErrFatal = errors.New("fatal local storage error")

	// ErrNotFound marks a lookup that found nothing; callers may treat
	// this as "empty result" rather than an error where spec.md says so
	// (e.g. get_blocks_after beyond head returns an empty list, not 404).
	ErrNotFound = errors.New("not found")
)
