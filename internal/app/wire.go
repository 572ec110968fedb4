package app

import (
	"context"
	"io"

	"github.com/sirupsen/logrus"

	"secchannel/internal/channel"
	"secchannel/internal/crypto"
	"secchannel/internal/protocol/handshake"
)

// Wire bundles the logger, crypto provider and channel settings built from a
// Config.
type Wire struct {
	Config   *Config
	Log      *logrus.Logger
	Provider *crypto.Provider
}

// NewWire validates cfg and constructs the dependency graph. Logs go to
// logOut.
func NewWire(cfg *Config, logOut io.Writer) (*Wire, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log, err := NewLogger(cfg.Log, logOut)
	if err != nil {
		return nil, err
	}
	suite, err := cfg.Suite()
	if err != nil {
		return nil, err
	}
	p, err := crypto.NewProvider(suite)
	if err != nil {
		return nil, err
	}
	return &Wire{Config: cfg, Log: log, Provider: p}, nil
}

func (w *Wire) channelOptions() []channel.Option {
	return []channel.Option{
		channel.WithDir(w.Config.Channel.Dir),
		channel.WithDialTimeout(w.Config.Channel.DialTimeout),
		channel.WithLimits(w.Config.Channel.MaxMessages, w.Config.Channel.MaxMessageSize),
		channel.WithLogger(logrus.NewEntry(w.Log)),
	}
}

func (w *Wire) handshakeOptions(extra ...handshake.Option) []handshake.Option {
	return append([]handshake.Option{handshake.WithLogger(logrus.NewEntry(w.Log))}, extra...)
}

// CreateChannel creates the configured channel as responder.
func (w *Wire) CreateChannel() (*channel.Channel, error) {
	c := w.Config.Channel
	return channel.Create(c.Name, c.MaxMessages, c.MaxMessageSize, w.channelOptions()...)
}

// OpenChannel attaches to the configured channel as initiator.
func (w *Wire) OpenChannel(ctx context.Context) (*channel.Channel, error) {
	return channel.Open(ctx, w.Config.Channel.Name, w.channelOptions()...)
}

// RemoveChannel clears a stale socket left under the configured name.
func (w *Wire) RemoveChannel() error {
	return channel.Remove(w.Config.Channel.Name, w.channelOptions()...)
}

// stepContext bounds one blocking step by the configured receive timeout.
func (w *Wire) stepContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if d := w.Config.Channel.ReceiveTimeout; d > 0 {
		return context.WithTimeout(ctx, d)
	}
	return context.WithCancel(ctx)
}
