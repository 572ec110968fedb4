package handshake

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

type config struct {
	log       *logrus.Entry
	pid       int
	peerCheck bool
}

// Option customises Initiate and Respond.
type Option func(*config)

// WithLogger sets the logger. Without it the session logs nowhere.
func WithLogger(log *logrus.Entry) Option {
	return func(c *config) { c.log = log }
}

// WithPID overrides the process id the initiator announces.
func WithPID(pid int) Option {
	return func(c *config) { c.pid = pid }
}

// WithPeerCheck controls whether the responder compares the announced
// process id with the one the OS reports for the channel peer. It is on by
// default and only applies when the transport knows the peer.
func WithPeerCheck(enabled bool) Option {
	return func(c *config) { c.peerCheck = enabled }
}

func buildConfig(opts []Option) config {
	c := config{pid: os.Getpid(), peerCheck: true}
	for _, opt := range opts {
		opt(&c)
	}
	if c.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		c.log = logrus.NewEntry(l)
	}
	return c
}
