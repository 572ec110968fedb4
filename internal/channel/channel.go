package channel

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net"
	"os"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"go.uber.org/multierr"

	"secchannel/internal/domain"
	"secchannel/internal/util/memzero"
)

// Channel is one end of a named two-party queue. Send and Receive may be
// called from different goroutines; concurrent Receives are not supported.
type Channel struct {
	name   string
	path   string
	side   domain.Side
	limits Limits
	log    *logrus.Entry

	ln   *net.UnixListener // creator only
	sock os.FileInfo       // creator only; the socket file this end bound

	// wmu serialises writes to conn and guards pending.
	wmu     sync.Mutex
	pending [][]byte

	mu          sync.Mutex
	conn        *net.UnixConn
	attachedAny bool
	outstanding int
	peerPID     int
	peerErr     error

	inbound  chan []byte
	attached chan struct{}
	peerGone chan struct{}
	goneOnce sync.Once
	closed   chan struct{}

	closeOnce sync.Once
	closeErr  error
	wg        sync.WaitGroup
}

var _ domain.Conn = (*Channel)(nil)

func newChannel(name, path string, side domain.Side, limits Limits, log *logrus.Entry) *Channel {
	return &Channel{
		name:     name,
		path:     path,
		side:     side,
		limits:   limits,
		log:      log.WithFields(logrus.Fields{"channel": name, "side": side.String()}),
		inbound:  make(chan []byte, limits.MaxMessages),
		attached: make(chan struct{}),
		peerGone: make(chan struct{}),
		closed:   make(chan struct{}),
	}
}

// Create makes a new channel called name and starts accepting its single
// peer. It fails with domain.ErrAlreadyExists if the name is in use.
func Create(name string, maxMessages, maxMessageSize int, opts ...Option) (*Channel, error) {
	o := buildOptions(opts)
	limits := Limits{MaxMessages: maxMessages, MaxMessageSize: maxMessageSize}
	if err := limits.validate(); err != nil {
		return nil, err
	}
	path, err := SocketPath(o.dir, name)
	if err != nil {
		return nil, err
	}

	ln, err := net.ListenUnix("unix", &net.UnixAddr{Name: path, Net: "unix"})
	if err != nil {
		if errors.Is(err, syscall.EADDRINUSE) {
			return nil, fmt.Errorf("create %q: %w", name, domain.ErrAlreadyExists)
		}
		return nil, fmt.Errorf("create %q: %w: %w", name, domain.ErrTransport, err)
	}
	ln.SetUnlinkOnClose(false)
	sock, err := os.Stat(path)
	if err != nil {
		ln.Close()
		return nil, fmt.Errorf("create %q: %w: %w", name, domain.ErrTransport, err)
	}

	c := newChannel(name, path, domain.Responder, limits, o.log)
	c.ln = ln
	c.sock = sock
	c.wg.Add(1)
	go c.acceptLoop()

	c.log.WithFields(logrus.Fields{
		"path":             path,
		"max_messages":     maxMessages,
		"max_message_size": maxMessageSize,
	}).Debug("channel created")
	return c, nil
}

// Open attaches to an existing channel. It fails with domain.ErrNotFound if
// nobody created name. The limits are taken from the creator; a creator
// announcing more than WithLimits allows is refused with domain.ErrTransport
// before anything is sized from its hello.
func Open(ctx context.Context, name string, opts ...Option) (*Channel, error) {
	o := buildOptions(opts)
	if err := o.limits.validate(); err != nil {
		return nil, err
	}
	path, err := SocketPath(o.dir, name)
	if err != nil {
		return nil, err
	}

	dialCtx, cancel := context.WithTimeout(ctx, o.dialTimeout)
	defer cancel()
	var d net.Dialer
	nc, err := d.DialContext(dialCtx, "unix", path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) || errors.Is(err, syscall.ECONNREFUSED) {
			return nil, fmt.Errorf("open %q: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("open %q: %w: %w", name, domain.ErrTransport, err)
	}
	conn := nc.(*net.UnixConn)

	r := bufio.NewReader(conn)
	if dl, ok := dialCtx.Deadline(); ok {
		_ = conn.SetReadDeadline(dl)
	}
	kind, body, err := readFrame(r, helloSize)
	if err != nil {
		conn.Close()
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("open %q: %w: channel already has a peer", name, domain.ErrTransport)
		}
		return nil, fmt.Errorf("open %q: %w: %w", name, domain.ErrTransport, err)
	}
	if kind != frameHello {
		conn.Close()
		return nil, fmt.Errorf("open %q: %w: expected hello, got %s", name, domain.ErrTransport, kind)
	}
	limits, err := parseHello(body)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open %q: %w", name, err)
	}
	if !limits.within(o.limits) {
		conn.Close()
		return nil, fmt.Errorf("open %q: %w: creator limits %d x %d exceed %d x %d", name, domain.ErrTransport,
			limits.MaxMessages, limits.MaxMessageSize, o.limits.MaxMessages, o.limits.MaxMessageSize)
	}
	_ = conn.SetReadDeadline(time.Time{})

	c := newChannel(name, path, domain.Initiator, limits, o.log)
	c.conn = conn
	c.attachedAny = true
	c.peerPID = c.lookupPeerPID(conn)
	close(c.attached)
	c.wg.Add(1)
	go c.readLoop(conn, r)

	c.log.WithFields(logrus.Fields{
		"pid":              c.peerPID,
		"max_messages":     limits.MaxMessages,
		"max_message_size": limits.MaxMessageSize,
	}).Debug("channel opened")
	return c, nil
}

// Remove deletes the socket file of a channel left behind by a creator that
// did not shut down cleanly.
func Remove(name string, opts ...Option) error {
	o := buildOptions(opts)
	path, err := SocketPath(o.dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove %q: %w", name, domain.ErrNotFound)
		}
		return fmt.Errorf("remove %q: %w: %w", name, domain.ErrTransport, err)
	}
	return nil
}

// Name returns the channel name.
func (c *Channel) Name() string { return c.name }

// Path returns the socket file path.
func (c *Channel) Path() string { return c.path }

// Side reports whether this end created (Responder) or opened (Initiator)
// the channel.
func (c *Channel) Side() domain.Side { return c.side }

// Limits returns the capacity parameters in force.
func (c *Channel) Limits() Limits { return c.limits }

// Attached is closed once a peer is connected. For the opener it is closed
// from the start.
func (c *Channel) Attached() <-chan struct{} { return c.attached }

// PeerGone is closed when the peer disconnects or breaks the framing rules.
func (c *Channel) PeerGone() <-chan struct{} { return c.peerGone }

// PeerPID returns the peer process id reported by the OS, or 0 when it is
// unknown.
func (c *Channel) PeerPID() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.peerPID
}

// Send queues msg for the peer and returns without waiting for it to be read.
// Messages sent by the creator before a peer attaches are held and delivered
// on attach.
func (c *Channel) Send(msg []byte) error {
	if len(msg) > c.limits.MaxMessageSize {
		return fmt.Errorf("send %d bytes (limit %d): %w", len(msg), c.limits.MaxMessageSize, domain.ErrMessageTooLarge)
	}
	select {
	case <-c.closed:
		return fmt.Errorf("send: %w", domain.ErrClosed)
	case <-c.peerGone:
		return fmt.Errorf("send: %w", c.goneErr())
	default:
	}

	c.wmu.Lock()
	defer c.wmu.Unlock()

	c.mu.Lock()
	if c.outstanding >= c.limits.MaxMessages {
		c.mu.Unlock()
		return fmt.Errorf("send: %d messages unread: %w", c.limits.MaxMessages, domain.ErrQueueFull)
	}
	c.outstanding++
	conn := c.conn
	c.mu.Unlock()

	if conn == nil {
		c.pending = append(c.pending, append([]byte(nil), msg...))
		c.log.WithField("len", len(msg)).Debug("held until peer attaches")
		return nil
	}
	if err := writeFrame(conn, frameData, msg); err != nil {
		c.mu.Lock()
		c.outstanding--
		c.mu.Unlock()
		if errors.Is(err, syscall.EPIPE) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, net.ErrClosed) {
			return fmt.Errorf("send: %w: %w", domain.ErrClosed, err)
		}
		return fmt.Errorf("send: %w: %w", domain.ErrTransport, err)
	}
	c.log.WithField("len", len(msg)).Debug("sent")
	return nil
}

// Receive blocks until a message arrives and returns it. Messages already
// queued are returned even after the peer has gone.
func (c *Channel) Receive(ctx context.Context) ([]byte, error) {
	select {
	case msg := <-c.inbound:
		return c.consumed(msg), nil
	default:
	}

	select {
	case msg := <-c.inbound:
		return c.consumed(msg), nil
	case <-c.peerGone:
		select {
		case msg := <-c.inbound:
			return c.consumed(msg), nil
		default:
		}
		return nil, fmt.Errorf("receive: %w", c.goneErr())
	case <-c.closed:
		return nil, fmt.Errorf("receive: %w", domain.ErrClosed)
	case <-ctx.Done():
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("receive: %w", domain.ErrTimeout)
		}
		return nil, fmt.Errorf("receive: %w", domain.ErrCanceled)
	}
}

// consumed returns a credit to the peer for msg.
func (c *Channel) consumed(msg []byte) []byte {
	c.wmu.Lock()
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn != nil {
		if err := writeFrame(conn, frameCredit, nil); err != nil {
			c.log.WithError(err).Debug("credit not delivered")
		}
	}
	c.wmu.Unlock()
	c.log.WithField("len", len(msg)).Debug("received")
	return msg
}

// Close tears the channel down. Calling it again returns the first result.
func (c *Channel) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		var err error
		if c.ln != nil {
			err = multierr.Append(err, ignoreClosed(c.ln.Close()))
		}
		c.mu.Lock()
		conn := c.conn
		c.mu.Unlock()
		if conn != nil {
			err = multierr.Append(err, ignoreClosed(conn.Close()))
		}
		if c.side == domain.Responder {
			err = multierr.Append(err, c.removeSocket())
		}
		c.wg.Wait()

		c.wmu.Lock()
		for _, msg := range c.pending {
			memzero.Zero(msg)
		}
		c.pending = nil
		c.wmu.Unlock()

		if err != nil {
			c.closeErr = fmt.Errorf("close %q: %w: %w", c.name, domain.ErrTransport, err)
		}
		c.log.Debug("channel closed")
	})
	return c.closeErr
}

func (c *Channel) acceptLoop() {
	defer c.wg.Done()
	for {
		conn, err := c.ln.AcceptUnix()
		if err != nil {
			select {
			case <-c.closed:
			default:
				c.log.WithError(err).Warn("accept failed")
			}
			return
		}
		if !c.handlePeer(conn) {
			return
		}
	}
}

// handlePeer attaches conn as the peer or refuses it. A peer that goes away
// before attach completes frees the slot for the next one. It reports false
// once the channel is closed.
func (c *Channel) handlePeer(conn *net.UnixConn) bool {
	c.mu.Lock()
	refuse := c.attachedAny
	c.attachedAny = true
	c.mu.Unlock()
	if refuse {
		c.log.Warn("refused extra peer")
		conn.Close()
		return true
	}

	if err := c.attach(conn); err != nil {
		conn.Close()
		if errors.Is(err, net.ErrClosed) {
			return false
		}
		c.log.WithError(err).Warn("peer left before attach")
		c.mu.Lock()
		c.attachedAny = false
		c.mu.Unlock()
		return true
	}
	c.wg.Add(1)
	go c.readLoop(conn, bufio.NewReader(conn))
	return true
}

// attach sends hello, flushes held messages and publishes conn to Send.
func (c *Channel) attach(conn *net.UnixConn) error {
	pid := c.lookupPeerPID(conn)

	c.wmu.Lock()
	defer c.wmu.Unlock()
	if err := writeFrame(conn, frameHello, marshalHello(c.limits)); err != nil {
		return err
	}
	for _, msg := range c.pending {
		if err := writeFrame(conn, frameData, msg); err != nil {
			return err
		}
	}

	c.mu.Lock()
	select {
	case <-c.closed:
		c.mu.Unlock()
		return net.ErrClosed
	default:
	}
	c.conn = conn
	c.peerPID = pid
	c.mu.Unlock()
	close(c.attached)

	for _, msg := range c.pending {
		memzero.Zero(msg)
	}
	c.pending = nil

	c.log.WithField("pid", pid).Info("peer attached")
	return nil
}

func (c *Channel) readLoop(conn *net.UnixConn, r *bufio.Reader) {
	defer c.wg.Done()
	for {
		kind, body, err := readFrame(r, c.limits.MaxMessageSize)
		if err != nil {
			select {
			case <-c.closed:
				c.fail(domain.ErrClosed)
				return
			default:
			}
			if errors.Is(err, io.EOF) {
				c.fail(domain.ErrClosed)
			} else {
				c.log.WithError(err).Warn("dropping peer")
				conn.Close()
				c.fail(err)
			}
			return
		}

		switch kind {
		case frameData:
			select {
			case c.inbound <- body:
			default:
				c.log.Warn("peer overran the message window")
				conn.Close()
				c.fail(fmt.Errorf("inbound window of %d exceeded: %w", c.limits.MaxMessages, domain.ErrQueueFull))
				return
			}
		case frameCredit:
			c.mu.Lock()
			if c.outstanding > 0 {
				c.outstanding--
			}
			c.mu.Unlock()
		default:
			c.log.WithField("type", kind.String()).Warn("unexpected frame")
			conn.Close()
			c.fail(fmt.Errorf("%w: unexpected %s frame", domain.ErrTransport, kind))
			return
		}
	}
}

// fail records why the peer is gone and wakes blocked receivers.
func (c *Channel) fail(err error) {
	c.goneOnce.Do(func() {
		c.mu.Lock()
		c.peerErr = err
		c.mu.Unlock()
		close(c.peerGone)
		c.log.WithError(err).Debug("peer gone")
	})
}

// goneErr is the error Send and Receive report once the peer is gone. It
// always matches domain.ErrClosed.
func (c *Channel) goneErr() error {
	c.mu.Lock()
	err := c.peerErr
	c.mu.Unlock()
	if err == nil || errors.Is(err, domain.ErrClosed) {
		return domain.ErrClosed
	}
	return fmt.Errorf("%w: %w", domain.ErrClosed, err)
}

func (c *Channel) lookupPeerPID(conn *net.UnixConn) int {
	pid, err := peerPID(conn)
	if err != nil {
		c.log.WithError(err).Debug("peer pid unavailable")
		return 0
	}
	return pid
}

// removeSocket unlinks the socket file if it is still the one this end bound.
// A name taken over by a newer creator is left alone.
func (c *Channel) removeSocket() error {
	cur, err := os.Stat(c.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	if !os.SameFile(cur, c.sock) {
		c.log.Debug("socket name reused; not removing")
		return nil
	}
	if err := os.Remove(c.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func ignoreClosed(err error) error {
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	return err
}
