package handshake

import (
	"context"
	"encoding/binary"
	"fmt"

	"secchannel/internal/crypto"
	"secchannel/internal/domain"
	"secchannel/internal/protocol"
	"secchannel/internal/securebuf"
)

// pidMessageSize is the encoded size of the process id message.
const pidMessageSize = 4

// Initiate runs the initiator side of the handshake on conn. On failure the
// session is aborted and conn is closed.
func Initiate(ctx context.Context, conn domain.Conn, p *crypto.Provider, opts ...Option) (*Session, error) {
	cfg := buildConfig(opts)
	s := newSession(domain.Initiator, StateInit, conn, p, cfg.log)
	if pi, ok := conn.(peerIdentifier); ok {
		s.peerPID = pi.PeerPID()
	}
	if err := s.initiate(ctx, cfg.pid); err != nil {
		return nil, s.abort(err)
	}
	s.log.WithField("verification_key", s.verifier.Fingerprint().String()).Info("session established")
	return s, nil
}

func (s *Session) initiate(ctx context.Context, pid int) error {
	pidMsg := securebuf.New(pidMessageSize)
	binary.LittleEndian.PutUint32(pidMsg.Bytes(), uint32(pid))
	err := protocol.Send(s.conn, protocol.TypePayload, pidMsg.Bytes())
	pidMsg.Release()
	if err != nil {
		return err
	}
	if err := s.advance(StatePIDSent); err != nil {
		return err
	}

	if s.exchange, err = s.provider.GenerateKeyPair(domain.RoleExchange); err != nil {
		return err
	}
	blob, err := s.provider.ExportPublic(s.exchange)
	if err != nil {
		return err
	}
	if err := protocol.Send(s.conn, protocol.TypePublicKey, blob); err != nil {
		return err
	}
	if err := s.advance(StateKeySent); err != nil {
		return err
	}

	wrapped, err := protocol.ReceiveTyped(ctx, s.conn, protocol.TypeSymmetricKey)
	if err != nil {
		return err
	}
	s.key, err = s.provider.ImportSymmetric(wrapped.Bytes(), s.exchange)
	wrapped.Release()
	if err != nil {
		return err
	}
	s.exchange.Destroy()
	s.exchange = nil

	vkBlob, err := protocol.ReceiveTyped(ctx, s.conn, protocol.TypePublicKey)
	if err != nil {
		return err
	}
	vk, err := s.provider.ImportPublic(vkBlob.Bytes())
	vkBlob.Release()
	if err != nil {
		return err
	}
	if vk.Role() != domain.RoleSignature {
		return fmt.Errorf("%w: verification key is a %s key", domain.ErrProtocolViolation, vk.Role())
	}
	s.verifier = vk

	if err := s.advance(StateKeyExchanged); err != nil {
		return err
	}
	return s.advance(StateEstablished)
}
