package app

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"secchannel/internal/domain"
	"secchannel/internal/protocol/handshake"
	"secchannel/internal/securebuf"
)

// handshakeMessages is how many messages the responder queues during the
// handshake: a header and body for each of the two key blobs.
const handshakeMessages = 4

// messagesPerPayload counts the header and body sends for the data and the
// signature of one sealed payload.
const messagesPerPayload = 4

// App runs the two role flows over a Wire.
type App struct {
	w   *Wire
	log *logrus.Entry
}

// New returns an App using w.
func New(w *Wire) *App {
	return &App{w: w, log: logrus.NewEntry(w.Log).WithField("component", "app")}
}

// Respond creates the channel, waits for an initiator, completes the
// responder handshake and sends every payload sealed. It then holds the
// channel open until the initiator disconnects, its process exits, or ctx
// ends. With replace set a stale socket under the same name is removed
// first.
func (a *App) Respond(ctx context.Context, payloads []*securebuf.Buffer, replace bool) (err error) {
	cfg := a.w.Config.Channel
	if err := a.checkPayloads(payloads); err != nil {
		return err
	}

	if replace {
		if err := a.w.RemoveChannel(); err != nil && !errors.Is(err, domain.ErrNotFound) {
			return err
		}
	}
	ch, err := a.w.CreateChannel()
	if err != nil {
		return err
	}
	log := a.log.WithField("channel", ch.Path())
	log.Info("waiting for initiator")

	select {
	case <-ch.Attached():
	case <-ch.PeerGone():
		return multierr.Append(fmt.Errorf("wait for initiator: %w", domain.ErrClosed), ch.Close())
	case <-ctx.Done():
		return multierr.Append(fmt.Errorf("wait for initiator: %w", domain.ErrCanceled), ch.Close())
	}

	hctx, cancel := a.w.stepContext(ctx)
	s, err := handshake.Respond(hctx, ch, a.w.Provider, a.w.handshakeOptions()...)
	cancel()
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(s))

	for i, p := range payloads {
		if err := s.Send(p); err != nil {
			return fmt.Errorf("send payload %d: %w", i, err)
		}
	}
	log.WithField("count", len(payloads)).Info("payloads sent")

	watchCtx, stop := context.WithCancel(ctx)
	defer stop()
	select {
	case <-ch.PeerGone():
		log.Info("initiator disconnected")
	case <-s.WatchPeer(watchCtx, cfg.PeerPollInterval):
	case <-ctx.Done():
		log.Info("interrupted")
	}
	return nil
}

// checkPayloads rejects payloads the configured channel could not carry
// before any socket is created.
func (a *App) checkPayloads(payloads []*securebuf.Buffer) error {
	cfg := a.w.Config.Channel
	if need := handshakeMessages + messagesPerPayload*len(payloads); need > cfg.MaxMessages {
		return fmt.Errorf("%d payloads need %d messages, channel allows %d: %w",
			len(payloads), need, cfg.MaxMessages, domain.ErrQueueFull)
	}
	for i, p := range payloads {
		if n := a.w.Provider.SealedLen(p.Len()); n > cfg.MaxMessageSize {
			return fmt.Errorf("payload %d seals to %d bytes, channel allows %d: %w",
				i, n, cfg.MaxMessageSize, domain.ErrMessageTooLarge)
		}
	}
	return nil
}

// Initiate opens the channel, completes the initiator handshake and writes
// count verified plaintexts to out, each followed by a newline when newline
// is set. Every receive is bounded by the configured receive timeout.
func (a *App) Initiate(ctx context.Context, count int, out io.Writer, newline bool) (err error) {
	ch, err := a.w.OpenChannel(ctx)
	if err != nil {
		return err
	}

	hctx, cancel := a.w.stepContext(ctx)
	s, err := handshake.Initiate(hctx, ch, a.w.Provider, a.w.handshakeOptions()...)
	cancel()
	if err != nil {
		return err
	}
	defer multierr.AppendInvoke(&err, multierr.Close(s))

	log := a.log.WithFields(logrus.Fields{
		"channel":       ch.Path(),
		"signature_key": s.VerificationKey().Fingerprint().String(),
	})
	for i := 0; i < count; i++ {
		if err := a.receiveOne(ctx, s, out, newline); err != nil {
			return fmt.Errorf("receive payload %d: %w", i, err)
		}
	}
	log.WithField("count", count).Info("payloads received")
	return nil
}

func (a *App) receiveOne(ctx context.Context, s *handshake.Session, out io.Writer, newline bool) error {
	rctx, cancel := a.w.stepContext(ctx)
	defer cancel()
	pt, err := s.Receive(rctx)
	if err != nil {
		return err
	}
	defer pt.Release()
	if _, err := out.Write(pt.Bytes()); err != nil {
		return fmt.Errorf("write plaintext: %w", err)
	}
	if newline {
		if _, err := io.WriteString(out, "\n"); err != nil {
			return fmt.Errorf("write plaintext: %w", err)
		}
	}
	return nil
}
