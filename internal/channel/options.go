package channel

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"secchannel/internal/domain"
	"secchannel/internal/protocol"
)

// DefaultDialTimeout bounds Open's connect and hello exchange.
const DefaultDialTimeout = 5 * time.Second

// maxSocketPath is the sun_path limit minus the terminating NUL.
const maxSocketPath = 107

// Limits are the capacity parameters fixed at creation.
type Limits struct {
	MaxMessages    int
	MaxMessageSize int
}

func (l Limits) validate() error {
	if l.MaxMessages <= 0 || l.MaxMessageSize <= 0 {
		return fmt.Errorf("%w: invalid limits %d x %d", domain.ErrTransport, l.MaxMessages, l.MaxMessageSize)
	}
	return nil
}

// within reports whether l fits inside max on both axes.
func (l Limits) within(max Limits) bool {
	return l.MaxMessages <= max.MaxMessages && l.MaxMessageSize <= max.MaxMessageSize
}

type options struct {
	dir         string
	log         *logrus.Entry
	dialTimeout time.Duration
	limits      Limits
}

// Option customises Create, Open and Remove.
type Option func(*options)

// WithDir places the socket in dir instead of the default runtime directory.
func WithDir(dir string) Option {
	return func(o *options) { o.dir = dir }
}

// WithLogger sets the logger. Without it the channel logs nowhere.
func WithLogger(log *logrus.Entry) Option {
	return func(o *options) { o.log = log }
}

// WithDialTimeout overrides DefaultDialTimeout.
func WithDialTimeout(d time.Duration) Option {
	return func(o *options) { o.dialTimeout = d }
}

// WithLimits sets the largest capacity Open accepts from a creator. The
// default is protocol.MaxMessageNumber x protocol.MaxMessageSize.
func WithLimits(maxMessages, maxMessageSize int) Option {
	return func(o *options) {
		o.limits = Limits{MaxMessages: maxMessages, MaxMessageSize: maxMessageSize}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		dialTimeout: DefaultDialTimeout,
		limits:      Limits{MaxMessages: protocol.MaxMessageNumber, MaxMessageSize: protocol.MaxMessageSize},
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.dir == "" {
		o.dir = DefaultDir()
	}
	if o.log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		o.log = logrus.NewEntry(l)
	}
	return o
}

// DefaultDir is $XDG_RUNTIME_DIR when set, otherwise the OS temp directory.
func DefaultDir() string {
	if d := os.Getenv("XDG_RUNTIME_DIR"); d != "" {
		return d
	}
	return os.TempDir()
}

// SocketPath returns the socket file a channel name maps to inside dir.
func SocketPath(dir, name string) (string, error) {
	if name == "" || name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return "", fmt.Errorf("%w: %q", domain.ErrInvalidName, name)
	}
	p := filepath.Join(dir, name+".sock")
	if len(p) > maxSocketPath {
		return "", fmt.Errorf("%w: socket path %q exceeds %d bytes", domain.ErrInvalidName, p, maxSocketPath)
	}
	return p, nil
}
