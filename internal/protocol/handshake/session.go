package handshake

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shirou/gopsutil/process"
	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"secchannel/internal/crypto"
	"secchannel/internal/domain"
	"secchannel/internal/protocol"
	"secchannel/internal/securebuf"
)

// peerIdentifier is implemented by transports that know the peer process.
type peerIdentifier interface {
	PeerPID() int
}

// Session is one side of a handshake and, once established, the sealed
// message stream built on it. A Session is not safe for concurrent use.
type Session struct {
	id       uuid.UUID
	side     domain.Side
	state    State
	conn     domain.Conn
	provider *crypto.Provider
	log      *logrus.Entry

	key      *crypto.SessionKey
	signer   *crypto.KeyPair   // responder
	verifier *crypto.PublicKey // initiator
	exchange *crypto.KeyPair   // initiator, until the session key is unwrapped
	peerPID  int

	closeOnce sync.Once
	closed    bool
	closeErr  error
}

func newSession(side domain.Side, start State, conn domain.Conn, p *crypto.Provider, log *logrus.Entry) *Session {
	id := uuid.New()
	return &Session{
		id:       id,
		side:     side,
		state:    start,
		conn:     conn,
		provider: p,
		log: log.WithFields(logrus.Fields{
			"session": id.String(),
			"side":    side.String(),
		}),
	}
}

// ID identifies the session in logs.
func (s *Session) ID() uuid.UUID { return s.id }

// Side returns the role this session plays.
func (s *Session) Side() domain.Side { return s.side }

// State returns the current handshake state.
func (s *Session) State() State { return s.state }

// PeerPID returns the initiator's announced process id on a responder
// session and the OS-reported responder id, when known, on an initiator
// session.
func (s *Session) PeerPID() int { return s.peerPID }

// VerificationKey returns the responder's signature public key on an
// initiator session, or nil.
func (s *Session) VerificationKey() *crypto.PublicKey { return s.verifier }

// advance moves to the next state, enforcing the transition table.
func (s *Session) advance(to State) error {
	if next[s.state] != to {
		return fmt.Errorf("%w: %s cannot follow %s", domain.ErrProtocolViolation, to, s.state)
	}
	s.state = to
	s.log.WithField("state", to.String()).Debug("handshake step")
	return nil
}

// abort destroys every key, closes the transport and wraps err with the
// step that failed.
func (s *Session) abort(err error) error {
	at := s.state
	s.state = StateAborted
	s.destroyKeys()
	if cerr := s.conn.Close(); cerr != nil {
		s.log.WithError(cerr).Debug("close after abort")
	}
	s.closed = true
	s.log.WithFields(logrus.Fields{
		"state": at.String(),
		"kind":  domain.KindOf(err).String(),
	}).WithError(err).Warn("handshake aborted")
	return fmt.Errorf("%s handshake at %s: %w", s.side, at, err)
}

func (s *Session) destroyKeys() {
	s.key.Destroy()
	s.signer.Destroy()
	s.exchange.Destroy()
	s.key, s.signer, s.exchange = nil, nil, nil
}

func (s *Session) ready() error {
	if s.closed {
		return fmt.Errorf("session %s: %w", s.id, domain.ErrClosed)
	}
	if s.state != StateEstablished {
		return fmt.Errorf("%w: session is %s", domain.ErrProtocolViolation, s.state)
	}
	return nil
}

// Seal encrypts and signs plaintext. Only the responder holds a signature
// key, so sealing on an initiator session fails with domain.ErrCrypto.
func (s *Session) Seal(plaintext *securebuf.Buffer) (*crypto.SealedPayload, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.signer == nil {
		return nil, fmt.Errorf("%w: %s session has no signature key", domain.ErrCrypto, s.side)
	}
	return s.provider.Seal(s.key, s.signer, plaintext)
}

// Unseal decrypts and verifies a sealed payload from the responder.
func (s *Session) Unseal(sealed *crypto.SealedPayload) (*securebuf.Buffer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	if s.verifier == nil {
		return nil, fmt.Errorf("%w: %s session has no verification key", domain.ErrCrypto, s.side)
	}
	return s.provider.Unseal(s.key, s.verifier, sealed)
}

// Send seals plaintext and writes it as two Payload messages.
func (s *Session) Send(plaintext *securebuf.Buffer) error {
	sealed, err := s.Seal(plaintext)
	if err != nil {
		return err
	}
	defer sealed.Release()
	if err := protocol.Send(s.conn, protocol.TypePayload, sealed.Data); err != nil {
		return err
	}
	if err := protocol.Send(s.conn, protocol.TypePayload, sealed.Signature); err != nil {
		return err
	}
	s.log.WithField("len", plaintext.Len()).Debug("sealed payload sent")
	return nil
}

// Receive reads the two Payload messages of one sealed payload and returns
// the verified plaintext.
func (s *Session) Receive(ctx context.Context) (*securebuf.Buffer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	data, err := protocol.ReceiveTyped(ctx, s.conn, protocol.TypePayload)
	if err != nil {
		return nil, err
	}
	defer data.Release()
	sig, err := protocol.ReceiveTyped(ctx, s.conn, protocol.TypePayload)
	if err != nil {
		return nil, err
	}
	defer sig.Release()

	pt, err := s.Unseal(&crypto.SealedPayload{Data: data.Bytes(), Signature: sig.Bytes()})
	if err != nil {
		s.log.WithError(err).Warn("sealed payload rejected")
		return nil, err
	}
	s.log.WithField("len", pt.Len()).Debug("sealed payload received")
	return pt, nil
}

// WatchPeer polls the peer process every interval and closes the returned
// channel once it no longer exists. Polling stops when ctx ends. If the peer
// process id is unknown the channel never closes.
func (s *Session) WatchPeer(ctx context.Context, interval time.Duration) <-chan struct{} {
	gone := make(chan struct{})
	pid := s.peerPID
	if pid <= 0 {
		s.log.Debug("peer pid unknown; not watching")
		return gone
	}
	log := s.log.WithField("pid", pid)
	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		for {
			alive, err := process.PidExistsWithContext(ctx, int32(pid))
			if ctx.Err() != nil {
				return
			}
			if err != nil {
				log.WithError(err).Warn("peer liveness check failed")
			}
			if err != nil || !alive {
				log.Info("peer process exited")
				close(gone)
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-t.C:
			}
		}
	}()
	return gone
}

// Close destroys the key material and closes the transport. The responder's
// transport removes the channel name. Close is idempotent.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.destroyKeys()
		s.verifier = nil
		var err error
		if !s.closed {
			err = multierr.Append(err, s.conn.Close())
		}
		s.closed = true
		s.closeErr = err
		s.log.Debug("session closed")
	})
	return s.closeErr
}
