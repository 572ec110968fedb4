package handshake

import (
	"context"
	"encoding/binary"
	"fmt"

	"github.com/sirupsen/logrus"

	"secchannel/internal/crypto"
	"secchannel/internal/domain"
	"secchannel/internal/protocol"
)

// Respond runs the responder side of the handshake on conn. On failure the
// session is aborted and conn is closed.
func Respond(ctx context.Context, conn domain.Conn, p *crypto.Provider, opts ...Option) (*Session, error) {
	cfg := buildConfig(opts)
	s := newSession(domain.Responder, StateListening, conn, p, cfg.log)
	if err := s.respond(ctx, cfg.peerCheck); err != nil {
		return nil, s.abort(err)
	}
	s.log.WithFields(logrus.Fields{
		"pid":           s.peerPID,
		"signature_key": s.signer.Public().Fingerprint().String(),
	}).Info("session established")
	return s, nil
}

func (s *Session) respond(ctx context.Context, peerCheck bool) error {
	pidMsg, err := protocol.ReceiveTyped(ctx, s.conn, protocol.TypePayload)
	if err != nil {
		return err
	}
	if pidMsg.Len() != pidMessageSize {
		pidMsg.Release()
		return fmt.Errorf("%w: pid message is %d bytes", domain.ErrProtocolViolation, pidMsg.Len())
	}
	s.peerPID = int(binary.LittleEndian.Uint32(pidMsg.Bytes()))
	pidMsg.Release()
	if peerCheck {
		if pi, ok := s.conn.(peerIdentifier); ok {
			if actual := pi.PeerPID(); actual != 0 && actual != s.peerPID {
				return fmt.Errorf("%w: peer announced pid %d, transport reports %d", domain.ErrProtocolViolation, s.peerPID, actual)
			}
		}
	}
	s.log = s.log.WithField("pid", s.peerPID)
	if err := s.advance(StatePIDReceived); err != nil {
		return err
	}

	if s.signer, err = s.provider.GenerateKeyPair(domain.RoleSignature); err != nil {
		return err
	}
	if s.key, err = s.provider.GenerateSymmetricKey(); err != nil {
		return err
	}

	peerBlob, err := protocol.ReceiveTyped(ctx, s.conn, protocol.TypePublicKey)
	if err != nil {
		return err
	}
	recipient, err := s.provider.ImportPublic(peerBlob.Bytes())
	peerBlob.Release()
	if err != nil {
		return err
	}
	if recipient.Role() != domain.RoleExchange {
		return fmt.Errorf("%w: initiator sent a %s key", domain.ErrProtocolViolation, recipient.Role())
	}

	wrapped, err := s.provider.ExportSymmetric(s.key, recipient)
	if err != nil {
		return err
	}
	if err := protocol.Send(s.conn, protocol.TypeSymmetricKey, wrapped); err != nil {
		return err
	}
	if err := s.advance(StateKeysIssued); err != nil {
		return err
	}

	vkBlob, err := s.provider.ExportPublic(s.signer)
	if err != nil {
		return err
	}
	if err := protocol.Send(s.conn, protocol.TypePublicKey, vkBlob); err != nil {
		return err
	}
	if err := s.advance(StateKeyExchanged); err != nil {
		return err
	}
	return s.advance(StateEstablished)
}
