// Package securebuf provides a byte container whose memory is wiped when it
// is released.
//
// A Buffer behaves like an ordinary byte slice for reading, copying and
// comparison. Whenever its storage is dropped (Release, Resize, growth on
// Append) the old bytes are overwritten with zeros first. Callers own the
// Buffer they receive and must Release it, normally with defer so that error
// paths are covered as well:
//
//	pt, err := provider.Unseal(key, vk, sealed)
//	if err != nil {
//		return err
//	}
//	defer pt.Release()
//
// A finalizer releases forgotten buffers as a backstop. This protects against
// secrets lingering in freed memory, not against a compromised process.
package securebuf

import (
	"crypto/subtle"
	"runtime"

	"secchannel/internal/util/memzero"
)

// Buffer holds key material, plaintext or ciphertext.
type Buffer struct {
	b []byte
}

// New returns a zero-filled buffer of length n.
func New(n int) *Buffer {
	return track(&Buffer{b: make([]byte, n)})
}

// From copies src into a new buffer. src is left untouched.
func From(src []byte) *Buffer {
	buf := New(len(src))
	copy(buf.b, src)
	return buf
}

// Wrap takes ownership of b without copying. The caller must not keep
// other references to b.
func Wrap(b []byte) *Buffer {
	return track(&Buffer{b: b})
}

func track(buf *Buffer) *Buffer {
	runtime.SetFinalizer(buf, (*Buffer).Release)
	return buf
}

// Bytes returns the live contents. The slice is only valid until the next
// Resize, Append or Release.
func (s *Buffer) Bytes() []byte {
	if s == nil {
		return nil
	}
	return s.b
}

// Len returns the number of bytes held.
func (s *Buffer) Len() int {
	if s == nil {
		return 0
	}
	return len(s.b)
}

// Resize changes the length to n. Shrinking wipes the dropped tail, growing
// moves the data to fresh storage and wipes the old one.
func (s *Buffer) Resize(n int) {
	switch {
	case n < len(s.b):
		memzero.Zero(s.b[n:])
		s.b = s.b[:n]
	case n <= cap(s.b):
		s.b = s.b[:n]
	default:
		s.grow(n)
		s.b = s.b[:n]
	}
}

// Append adds p to the end of the buffer.
func (s *Buffer) Append(p ...byte) {
	n := len(s.b)
	if n+len(p) > cap(s.b) {
		s.grow(n + len(p))
	}
	s.b = append(s.b, p...)
}

func (s *Buffer) grow(need int) {
	c := 2 * cap(s.b)
	if c < need {
		c = need
	}
	nb := make([]byte, len(s.b), c)
	copy(nb, s.b)
	memzero.ZeroCap(s.b)
	s.b = nb
}

// Clone returns an independent copy.
func (s *Buffer) Clone() *Buffer {
	return From(s.Bytes())
}

// Equal reports whether s and o hold the same bytes. The comparison runs in
// constant time for equal lengths.
func (s *Buffer) Equal(o *Buffer) bool {
	a, b := s.Bytes(), o.Bytes()
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// Release wipes and drops the storage. It is safe to call more than once and
// on a nil Buffer.
func (s *Buffer) Release() {
	if s == nil || s.b == nil {
		return
	}
	memzero.ZeroCap(s.b)
	s.b = nil
	runtime.SetFinalizer(s, nil)
}
