package handshake_test

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"secchannel/internal/channel"
	"secchannel/internal/crypto"
	"secchannel/internal/domain"
	"secchannel/internal/protocol"
	"secchannel/internal/protocol/handshake"
	"secchannel/internal/securebuf"
)

type result struct {
	s   *handshake.Session
	err error
}

func channels(t *testing.T) (*channel.Channel, *channel.Channel) {
	t.Helper()
	dir := t.TempDir()
	creator, err := channel.Create(protocol.DefaultChannelName, protocol.MaxMessageNumber, protocol.MaxMessageSize, channel.WithDir(dir))
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	t.Cleanup(func() { creator.Close() })
	opener, err := channel.Open(context.Background(), protocol.DefaultChannelName, channel.WithDir(dir))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { opener.Close() })
	return creator, opener
}

func provider(t *testing.T, suite crypto.Suite) *crypto.Provider {
	t.Helper()
	p, err := crypto.NewProvider(suite)
	if err != nil {
		t.Fatalf("NewProvider: %v", err)
	}
	return p
}

func establish(t *testing.T, suite crypto.Suite, ropts, iopts []handshake.Option) (*handshake.Session, *handshake.Session, error, error) {
	t.Helper()
	creator, opener := channels(t)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	rp, ip := provider(t, suite), provider(t, suite)
	done := make(chan result, 1)
	go func() {
		s, err := handshake.Respond(ctx, creator, rp, ropts...)
		done <- result{s, err}
	}()
	ini, ierr := handshake.Initiate(ctx, opener, ip, iopts...)
	r := <-done
	return r.s, ini, r.err, ierr
}

func TestHandshake_EndToEnd(t *testing.T) {
	for _, suite := range []crypto.Suite{
		crypto.DefaultSuite(),
		{Exchange: crypto.AlgRSAOAEP, Signature: crypto.AlgECDSAP256, Cipher: crypto.AlgAES256CBC},
	} {
		t.Run(suite.String(), func(t *testing.T) {
			resp, ini, rerr, ierr := establish(t, suite, nil, nil)
			require.NoError(t, rerr)
			require.NoError(t, ierr)
			defer resp.Close()
			defer ini.Close()

			require.Equal(t, handshake.StateEstablished, resp.State())
			require.Equal(t, handshake.StateEstablished, ini.State())
			require.Equal(t, os.Getpid(), resp.PeerPID())
			require.NotEqual(t, resp.ID(), ini.ID())

			pt := securebuf.New(50)
			for i := range pt.Bytes() {
				pt.Bytes()[i] = byte(i + 1)
			}
			defer pt.Release()
			require.NoError(t, resp.Send(pt))

			got, err := ini.Receive(context.Background())
			require.NoError(t, err)
			defer got.Release()
			require.True(t, got.Equal(pt), "plaintext mismatch: %x", got.Bytes())
		})
	}
}

func TestHandshake_ManyPayloadsInOrder(t *testing.T) {
	resp, ini, rerr, ierr := establish(t, crypto.DefaultSuite(), nil, nil)
	require.NoError(t, rerr)
	require.NoError(t, ierr)
	defer resp.Close()
	defer ini.Close()

	for i := 0; i < 20; i++ {
		require.NoError(t, resp.Send(securebuf.From([]byte{byte(i)})))
	}
	for i := 0; i < 20; i++ {
		got, err := ini.Receive(context.Background())
		require.NoError(t, err)
		require.Equal(t, []byte{byte(i)}, got.Bytes())
		got.Release()
	}
}

func TestSession_InitiatorCannotSeal(t *testing.T) {
	resp, ini, rerr, ierr := establish(t, crypto.DefaultSuite(), nil, nil)
	require.NoError(t, rerr)
	require.NoError(t, ierr)
	defer resp.Close()
	defer ini.Close()

	_, err := ini.Seal(securebuf.From([]byte("x")))
	require.ErrorIs(t, err, domain.ErrCrypto)
	_, err = resp.Unseal(&crypto.SealedPayload{})
	require.ErrorIs(t, err, domain.ErrCrypto)
}

func TestSession_TamperedPayloadRejected(t *testing.T) {
	creator, opener := channels(t)
	ctx := context.Background()
	rp := provider(t, crypto.DefaultSuite())
	done := make(chan result, 1)
	go func() {
		s, err := handshake.Respond(ctx, creator, rp)
		done <- result{s, err}
	}()
	ini, err := handshake.Initiate(ctx, opener, provider(t, crypto.DefaultSuite()))
	require.NoError(t, err)
	r := <-done
	require.NoError(t, r.err)
	defer r.s.Close()
	defer ini.Close()

	sealed, err := r.s.Seal(securebuf.From([]byte("attack at dawn")))
	require.NoError(t, err)
	sealed.Data[len(sealed.Data)-1] ^= 0x01
	require.NoError(t, protocol.Send(creator, protocol.TypePayload, sealed.Data))
	require.NoError(t, protocol.Send(creator, protocol.TypePayload, sealed.Signature))

	got, err := ini.Receive(ctx)
	require.ErrorIs(t, err, domain.ErrAuthenticationFailed)
	require.Nil(t, got)
}

func TestRespond_WrongFirstMessageAborts(t *testing.T) {
	creator, opener := channels(t)
	path := creator.Path()

	// A public key where the pid message belongs.
	require.NoError(t, protocol.Send(opener, protocol.TypePublicKey, []byte{1, 2, 3, 4}))

	_, err := handshake.Respond(context.Background(), creator, provider(t, crypto.DefaultSuite()))
	require.ErrorIs(t, err, domain.ErrProtocolViolation)
	require.Equal(t, domain.KindProtocol, domain.KindOf(err))

	if _, statErr := os.Stat(path); !os.IsNotExist(statErr) {
		t.Fatalf("channel not torn down after abort: %v", statErr)
	}
	_, err = opener.Receive(context.Background())
	require.ErrorIs(t, err, domain.ErrClosed)
}

func TestRespond_RejectsSignatureKeyFromInitiator(t *testing.T) {
	creator, opener := channels(t)
	p := provider(t, crypto.DefaultSuite())

	pidMsg := make([]byte, 4)
	pidMsg[0] = 1
	require.NoError(t, protocol.Send(opener, protocol.TypePayload, pidMsg))
	sig, err := p.GenerateKeyPair(domain.RoleSignature)
	require.NoError(t, err)
	blob, err := p.ExportPublic(sig)
	require.NoError(t, err)
	require.NoError(t, protocol.Send(opener, protocol.TypePublicKey, blob))

	_, err = handshake.Respond(context.Background(), creator, p, handshake.WithPeerCheck(false))
	require.ErrorIs(t, err, domain.ErrProtocolViolation)
}

func TestRespond_BadPIDLength(t *testing.T) {
	creator, opener := channels(t)
	require.NoError(t, protocol.Send(opener, protocol.TypePayload, []byte{1, 2}))

	_, err := handshake.Respond(context.Background(), creator, provider(t, crypto.DefaultSuite()))
	require.ErrorIs(t, err, domain.ErrProtocolViolation)
}

func TestRespond_PIDMismatch(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("peer credentials are linux only")
	}
	_, _, rerr, ierr := establish(t, crypto.DefaultSuite(), nil,
		[]handshake.Option{handshake.WithPID(os.Getpid() + 1)})
	require.ErrorIs(t, rerr, domain.ErrProtocolViolation)
	require.ErrorIs(t, ierr, domain.ErrClosed)
}

func TestInitiate_Timeout(t *testing.T) {
	_, opener := channels(t)
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := handshake.Initiate(ctx, opener, provider(t, crypto.DefaultSuite()))
	require.ErrorIs(t, err, domain.ErrTimeout)
	require.Equal(t, domain.KindTransport, domain.KindOf(err))
}

func TestSession_CloseIsIdempotent(t *testing.T) {
	resp, ini, rerr, ierr := establish(t, crypto.DefaultSuite(), nil, nil)
	require.NoError(t, rerr)
	require.NoError(t, ierr)

	require.NoError(t, ini.Close())
	require.NoError(t, ini.Close())
	require.NoError(t, resp.Close())

	err := resp.Send(securebuf.From([]byte("late")))
	require.ErrorIs(t, err, domain.ErrClosed)
}

func TestSession_WatchPeerSeesExit(t *testing.T) {
	cmd := exec.Command(os.Args[0], "-test.run=^$")
	require.NoError(t, cmd.Run())
	deadPID := cmd.Process.Pid

	resp, ini, rerr, ierr := establish(t, crypto.DefaultSuite(),
		[]handshake.Option{handshake.WithPeerCheck(false)},
		[]handshake.Option{handshake.WithPID(deadPID)})
	require.NoError(t, rerr)
	require.NoError(t, ierr)
	defer resp.Close()
	defer ini.Close()

	select {
	case <-resp.WatchPeer(context.Background(), 10*time.Millisecond):
	case <-time.After(5 * time.Second):
		t.Fatal("exited peer not detected")
	}
}

func TestSession_WatchPeerAlive(t *testing.T) {
	resp, ini, rerr, ierr := establish(t, crypto.DefaultSuite(), nil, nil)
	require.NoError(t, rerr)
	require.NoError(t, ierr)
	defer resp.Close()
	defer ini.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	select {
	case <-resp.WatchPeer(ctx, 10*time.Millisecond):
		t.Fatal("live peer reported gone")
	case <-ctx.Done():
	}
}

func TestState_String(t *testing.T) {
	require.Equal(t, "established", handshake.StateEstablished.String())
	require.Equal(t, "aborted", handshake.StateAborted.String())
	require.Equal(t, "pid-sent", handshake.StatePIDSent.String())
}
