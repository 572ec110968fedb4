package store_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"secchannel/internal/store"
)

func TestAtomicFile_Commit_ReplacesTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatalf("seed: %v", err)
	}

	f, err := store.CreateAtomic(path, 0o600)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Write([]byte("new ")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := f.Write([]byte("content")); err != nil {
		t.Fatalf("write: %v", err)
	}

	// Target is untouched until commit.
	if b, _ := os.ReadFile(path); string(b) != "old" {
		t.Fatalf("target changed before commit: %q", b)
	}
	if err := f.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(b) != "new content" {
		t.Fatalf("got %q", b)
	}
	st, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if st.Mode().Perm() != 0o600 {
		t.Fatalf("mode = %v, want 0600", st.Mode().Perm())
	}
	assertNoTemps(t, dir)
}

func TestAtomicFile_Abort_LeavesNothing(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "out.txt")

	f, err := store.CreateAtomic(path, 0o600)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := f.Write([]byte("secret")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := f.Abort(); err != nil {
		t.Fatalf("abort: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("target exists after abort: %v", err)
	}
	assertNoTemps(t, dir)

	if _, err := f.Write([]byte("x")); !errors.Is(err, store.ErrFinished) {
		t.Fatalf("write after abort: want ErrFinished, got %v", err)
	}
	if err := f.Commit(); !errors.Is(err, store.ErrFinished) {
		t.Fatalf("commit after abort: want ErrFinished, got %v", err)
	}
}

func TestAtomicFile_AbortAfterCommit_NoOp(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.txt")
	f, err := store.CreateAtomic(path, 0o600)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := f.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := f.Abort(); err != nil {
		t.Fatalf("abort after commit: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("committed file missing: %v", err)
	}
}

func TestCreateAtomic_MissingDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope", "out.txt")
	if _, err := store.CreateAtomic(path, 0o600); err == nil {
		t.Fatal("expected error for missing directory")
	}
}

func assertNoTemps(t *testing.T, dir string) {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "*.tmp-*"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	if len(matches) != 0 {
		t.Fatalf("temp files left behind: %v", matches)
	}
}
