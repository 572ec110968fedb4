// Package store writes received plaintext to disk.
//
// AtomicFile stages writes in a temp file beside the target and renames it
// into place on Commit, so a reader never sees a partially written file. An
// aborted file leaves the target untouched and the staged bytes are
// truncated before the temp file is removed.
package store
