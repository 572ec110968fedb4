package memzero_test

import (
	"bytes"
	"testing"

	"secchannel/internal/util/memzero"
)

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3, 4}
	memzero.Zero(b)
	if !bytes.Equal(b, make([]byte, 4)) {
		t.Fatalf("not wiped: %v", b)
	}
	memzero.Zero(nil)
}

func TestZeroCap_WipesTruncatedTail(t *testing.T) {
	backing := []byte{9, 9, 9, 9, 9, 9}
	memzero.ZeroCap(backing[:2])
	if !bytes.Equal(backing, make([]byte, 6)) {
		t.Fatalf("tail not wiped: %v", backing)
	}
}
