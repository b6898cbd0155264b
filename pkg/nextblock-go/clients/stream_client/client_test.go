package stream_client

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/1fge/nextblock-stream-monitor/ingest"
	nextblock_go "github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go"
	"github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go/pkg"
	"github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go/proto"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
)

type fakeRelay struct {
	proto.UnimplementedNextStreamServiceServer

	requests chan *proto.NextStreamSubscription
	handle   func(*proto.NextStreamSubscription, proto.NextStreamService_SubscribeNextStreamServer) error
}

func (r *fakeRelay) SubscribeNextStream(req *proto.NextStreamSubscription, stream proto.NextStreamService_SubscribeNextStreamServer) error {
	select {
	case r.requests <- req:
	default:
	}
	return r.handle(req, stream)
}

func startRelay(t *testing.T, handle func(*proto.NextStreamSubscription, proto.NextStreamService_SubscribeNextStreamServer) error) (*bufconn.Listener, *fakeRelay) {
	t.Helper()

	relay := &fakeRelay{requests: make(chan *proto.NextStreamSubscription, 1), handle: handle}
	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer(grpc.ForceServerCodec(proto.Codec{}))
	proto.RegisterNextStreamServiceServer(srv, relay)

	go func() {
		_ = srv.Serve(lis)
	}()
	t.Cleanup(srv.Stop)

	return lis, relay
}

func newTestClient(t *testing.T, lis *bufconn.Listener, opts ...Option) *Client {
	t.Helper()

	key, err := solana.NewRandomPrivateKey()
	require.NoError(t, err)
	cred, err := pkg.LoadCredential(key.String())
	require.NoError(t, err)

	dialer := func(ctx context.Context, _ string) (net.Conn, error) { return lis.DialContext(ctx) }
	opts = append([]Option{WithDialer(dialer), WithConnectTimeout(2 * time.Second)}, opts...)
	return New(nextblock_go.Frankfurt, cred, opts...)
}

// txPayload lays out an unsigned-message transaction carrying one signature.
func txPayload(t *testing.T, seed byte) []byte {
	t.Helper()

	message := solana.Message{
		AccountKeys: solana.PublicKeySlice{solana.NewWallet().PublicKey(), solana.SystemProgramID},
		Header: solana.MessageHeader{
			NumRequiredSignatures:       1,
			NumReadonlyUnsignedAccounts: 1,
		},
		RecentBlockhash: solana.Hash{seed},
		Instructions: []solana.CompiledInstruction{{
			ProgramIDIndex: 1,
			Accounts:       []uint16{0},
			Data:           solana.Base58{seed},
		}},
	}
	msg, err := message.MarshalBinary()
	require.NoError(t, err)

	var sig solana.Signature
	sig[0] = seed
	return append(append([]byte{1}, sig[:]...), msg...)
}

func packet(t *testing.T, slot uint64, seed byte) *proto.NextStreamNotification {
	return &proto.NextStreamNotification{Packet: &proto.Packet{Slot: slot, Transaction: txPayload(t, seed)}}
}

type collector struct {
	events chan ingest.Event
}

func newCollector() *collector {
	return &collector{events: make(chan ingest.Event, 16)}
}

func (c *collector) sink(ev ingest.Event) {
	c.events <- ev
}

func (c *collector) drain() []ingest.Event {
	var out []ingest.Event
	for {
		select {
		case ev := <-c.events:
			out = append(out, ev)
		default:
			return out
		}
	}
}

func TestSubscriptionRequestIsSigned(t *testing.T) {
	lis, relay := startRelay(t, func(_ *proto.NextStreamSubscription, _ proto.NextStreamService_SubscribeNextStreamServer) error {
		return nil
	})

	account := solana.NewWallet().PublicKey()
	client := newTestClient(t, lis, WithAccounts(account))

	stream, err := client.Subscribe(context.Background())
	require.NoError(t, err)
	defer stream.Close()

	req := <-relay.requests
	msg, err := pkg.ParseAuthMessage(req.AuthenticationMessage)
	require.NoError(t, err)

	pub := client.Auth.Credential.PublicKey()
	assert.Equal(t, pub.String(), req.AuthenticationPublickey)
	assert.Equal(t, pub.String(), msg.PublicKey)
	assert.Equal(t, "fra.stream.nextblock.io:22221", msg.Domain)
	assert.InDelta(t, time.Now().Unix(), msg.Timestamp, 5)
	assert.Equal(t, []string{account.String()}, req.Accounts)

	sig, err := solana.SignatureFromBase58(req.AuthenticationSignature)
	require.NoError(t, err)
	assert.True(t, sig.Verify(pub, []byte(req.AuthenticationMessage)))
}

func TestEachSubscribeUsesAFreshNonce(t *testing.T) {
	lis, relay := startRelay(t, func(_ *proto.NextStreamSubscription, _ proto.NextStreamService_SubscribeNextStreamServer) error {
		return nil
	})
	client := newTestClient(t, lis)

	var nonces []uint64
	for i := 0; i < 2; i++ {
		stream, err := client.Subscribe(context.Background())
		require.NoError(t, err)
		stream.Close()

		msg, err := pkg.ParseAuthMessage((<-relay.requests).AuthenticationMessage)
		require.NoError(t, err)
		nonces = append(nonces, msg.Nonce)
	}
	assert.NotEqual(t, nonces[0], nonces[1])
}

func TestLoopOverRelayDeliversInOrder(t *testing.T) {
	idx := uint64(4)
	notifications := []*proto.NextStreamNotification{
		packet(t, 100, 1),
		{}, // keep-alive style notification without packet
		{Packet: &proto.Packet{Slot: 101, Transaction: txPayload(t, 2), Index: &idx}},
		packet(t, 102, 3),
	}
	lis, _ := startRelay(t, func(_ *proto.NextStreamSubscription, stream proto.NextStreamService_SubscribeNextStreamServer) error {
		for _, n := range notifications {
			if err := stream.Send(n); err != nil {
				return err
			}
		}
		return nil
	})

	col := newCollector()
	err := ingest.NewLoop(newTestClient(t, lis), col.sink).Run(context.Background())
	require.NoError(t, err)

	events := col.drain()
	require.Len(t, events, 3)
	assert.Equal(t, uint64(100), events[0].Slot)
	assert.Equal(t, uint64(101), events[1].Slot)
	assert.Equal(t, uint64(102), events[2].Slot)
	assert.Nil(t, events[0].Index)
	require.NotNil(t, events[1].Index)
	assert.Equal(t, uint64(4), *events[1].Index)

	var want solana.Signature
	want[0] = 1
	assert.Equal(t, want.String(), events[0].Signature)
}

func TestLoopOverRelaySkipsBadPayload(t *testing.T) {
	first, last := packet(t, 1, 1), packet(t, 3, 3)
	lis, _ := startRelay(t, func(_ *proto.NextStreamSubscription, stream proto.NextStreamService_SubscribeNextStreamServer) error {
		_ = stream.Send(first)
		_ = stream.Send(&proto.NextStreamNotification{Packet: &proto.Packet{Slot: 2, Transaction: []byte{7, 7, 7}}})
		_ = stream.Send(last)
		return nil
	})

	col := newCollector()
	require.NoError(t, ingest.NewLoop(newTestClient(t, lis), col.sink).Run(context.Background()))

	events := col.drain()
	require.Len(t, events, 2)
	assert.Equal(t, uint64(1), events[0].Slot)
	assert.Equal(t, uint64(3), events[1].Slot)
}

func TestRejectedSubscription(t *testing.T) {
	lis, _ := startRelay(t, func(_ *proto.NextStreamSubscription, _ proto.NextStreamService_SubscribeNextStreamServer) error {
		return status.Error(codes.Unauthenticated, "signature verification failed")
	})
	client := newTestClient(t, lis)

	stream, err := client.Subscribe(context.Background())
	assert.Nil(t, stream)
	assert.True(t, errors.Is(err, ingest.ErrSubscriptionRejected))
	assert.False(t, errors.Is(err, ingest.ErrTransportUnavailable))

	col := newCollector()
	err = ingest.NewLoop(client, col.sink).Run(context.Background())
	assert.True(t, errors.Is(err, ingest.ErrSubscriptionRejected))
	assert.Empty(t, col.drain())
}

func TestSubscribeStatusClassification(t *testing.T) {
	for _, tc := range []struct {
		code      codes.Code
		rejected  bool
		transport bool
	}{
		{codes.Unauthenticated, true, false},
		{codes.PermissionDenied, true, false},
		{codes.ResourceExhausted, true, false},
		{codes.Unimplemented, true, false},
		{codes.Internal, true, false},
		{codes.Unknown, true, false},
		{codes.Aborted, true, false},
		{codes.NotFound, true, false},
		{codes.DataLoss, true, false},
		{codes.Unavailable, false, true},
	} {
		code := tc.code
		lis, _ := startRelay(t, func(_ *proto.NextStreamSubscription, _ proto.NextStreamService_SubscribeNextStreamServer) error {
			return status.Error(code, "refused")
		})

		stream, err := newTestClient(t, lis).Subscribe(context.Background())
		assert.Nil(t, stream, code.String())
		assert.Equal(t, tc.rejected, errors.Is(err, ingest.ErrSubscriptionRejected), code.String())
		assert.Equal(t, tc.transport, errors.Is(err, ingest.ErrTransportUnavailable), code.String())
	}
}

func TestTransportUnavailable(t *testing.T) {
	lis := bufconn.Listen(1024)
	require.NoError(t, lis.Close())

	client := newTestClient(t, lis, WithConnectTimeout(time.Second))
	stream, err := client.Subscribe(context.Background())
	assert.Nil(t, stream)
	assert.True(t, errors.Is(err, ingest.ErrTransportUnavailable))
	assert.False(t, errors.Is(err, ingest.ErrSubscriptionRejected))
}

func TestMidStreamUnavailableIsTransportError(t *testing.T) {
	first := packet(t, 1, 1)
	lis, _ := startRelay(t, func(_ *proto.NextStreamSubscription, stream proto.NextStreamService_SubscribeNextStreamServer) error {
		_ = stream.Send(first)
		return status.Error(codes.Unavailable, "relay draining")
	})

	col := newCollector()
	err := ingest.NewLoop(newTestClient(t, lis), col.sink).Run(context.Background())
	assert.True(t, errors.Is(err, ingest.ErrStreamTerminated))
	assert.True(t, errors.Is(err, ingest.ErrTransportUnavailable))
	assert.Len(t, col.drain(), 1)
}

func TestCancellationReleasesStream(t *testing.T) {
	released := make(chan struct{})
	first := packet(t, 1, 1)
	lis, _ := startRelay(t, func(_ *proto.NextStreamSubscription, stream proto.NextStreamService_SubscribeNextStreamServer) error {
		if err := stream.Send(first); err != nil {
			return err
		}
		<-stream.Context().Done()
		close(released)
		return nil
	})

	col := newCollector()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ingest.NewLoop(newTestClient(t, lis), col.sink).Run(ctx)
	}()

	select {
	case <-col.events:
	case <-time.After(2 * time.Second):
		t.Fatal("no event before cancellation")
	}
	cancel()

	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(2 * time.Second):
		t.Fatal("loop did not return after cancellation")
	}

	select {
	case <-released:
	case <-time.After(2 * time.Second):
		t.Fatal("relay never saw the stream end")
	}
}
