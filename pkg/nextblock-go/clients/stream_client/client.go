package stream_client

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"log"
	"net"
	"time"

	"github.com/1fge/nextblock-stream-monitor/ingest"
	nextblock_go "github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go"
	"github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go/pkg"
	"github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go/proto"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"
)

const (
	// DefaultKeepAlive is the relay's advertised interval. grpc-go raises any
	// client ping interval below 10s to 10s, so pings go out every 10s.
	DefaultKeepAlive      = 5 * time.Second
	DefaultConnectTimeout = 10 * time.Second
)

type Option func(*Client)

func WithAccounts(accounts ...solana.PublicKey) Option {
	return func(c *Client) {
		c.Accounts = accounts
	}
}

// WithSecure switches the transport to TLS. The relay is plaintext by default.
func WithSecure(secure bool) Option {
	return func(c *Client) {
		c.Secure = secure
	}
}

func WithKeepAlive(d time.Duration) Option {
	return func(c *Client) {
		c.KeepAlive = d
	}
}

func WithConnectTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.ConnectTimeout = d
	}
}

func WithLogger(logger *log.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithDialer replaces the network dialer. The endpoint address is then passed
// to it unresolved.
func WithDialer(dialer func(context.Context, string) (net.Conn, error)) Option {
	return func(c *Client) {
		c.dialer = dialer
	}
}

func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(c *Client) {
		c.dialOptions = append(c.dialOptions, opts...)
	}
}

// New creates a client for endpoint. The auth domain is the endpoint's host:port.
func New(endpoint nextblock_go.Endpoint, cred *pkg.Credential, opts ...Option) *Client {
	c := &Client{
		Endpoint:       endpoint,
		Auth:           pkg.NewAuthenticationService(endpoint.Address(), cred),
		KeepAlive:      DefaultKeepAlive,
		ConnectTimeout: DefaultConnectTimeout,
		logger:         log.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) status(msg string) {
	c.logger.Println("Stream Client", msg)
}

func (c *Client) statusr(msg string) {
	c.logger.Println("Stream Client (R)", msg)
}

// BuildSubscription turns a handshake into the request sent to the relay.
func (c *Client) BuildSubscription(hs *pkg.Handshake) *proto.NextStreamSubscription {
	req := &proto.NextStreamSubscription{
		AuthenticationPublickey: hs.Message.PublicKey,
		AuthenticationMessage:   hs.Message.String(),
		AuthenticationSignature: hs.Signature.String(),
	}
	for _, account := range c.Accounts {
		req.Accounts = append(req.Accounts, account.String())
	}
	return req
}

// Subscribe signs a fresh handshake, connects and opens the stream. The
// returned stream owns the connection.
func (c *Client) Subscribe(ctx context.Context) (ingest.Stream, error) {
	hs, err := c.Auth.Handshake()
	if err != nil {
		return nil, err
	}

	c.status("Connecting to " + c.Endpoint.Address())
	conn, err := Dial(ctx, c.target(), c.dialOpts())
	if err != nil {
		c.statusr(err.Error())
		return nil, err
	}

	sub, err := Subscribe(ctx, conn, c.BuildSubscription(hs))
	if err != nil {
		conn.Close()
		c.statusr(err.Error())
		return nil, err
	}
	sub.GrpcConn = conn

	c.status(fmt.Sprintf("Subscribed as %s (%d account filters)", hs.Message.PublicKey, len(c.Accounts)))
	return sub, nil
}

func (c *Client) target() string {
	if c.dialer != nil {
		return "passthrough:///" + c.Endpoint.Address()
	}
	return c.Endpoint.Address()
}

func (c *Client) dialOpts() DialOptions {
	extra := append([]grpc.DialOption(nil), c.dialOptions...)
	if c.dialer != nil {
		extra = append(extra, grpc.WithContextDialer(c.dialer))
	}
	return DialOptions{
		Secure:    c.Secure,
		KeepAlive: c.KeepAlive,
		Timeout:   c.ConnectTimeout,
		Extra:     extra,
	}
}

type DialOptions struct {
	// Secure selects TLS transport credentials.
	Secure bool

	// KeepAlive is the ping interval. Pings are only sent while a stream is
	// open, so an idle connection may be dropped by the relay.
	KeepAlive time.Duration

	// Timeout bounds the connection handshake when non-zero.
	Timeout time.Duration

	Extra []grpc.DialOption
}

// Dial connects to target and waits until the connection is ready. Failures
// wrap ingest.ErrTransportUnavailable; cancellation of ctx is returned as is.
func Dial(ctx context.Context, target string, opts DialOptions) (*grpc.ClientConn, error) {
	dialOpts := []grpc.DialOption{
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:                opts.KeepAlive,
			PermitWithoutStream: false,
		}),
	}
	if opts.Secure {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS12})))
	} else {
		dialOpts = append(dialOpts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}
	dialOpts = append(dialOpts, opts.Extra...)

	conn, err := grpc.NewClient(target, dialOpts...)
	if err != nil {
		return nil, errors.Wrap(ingest.ErrTransportUnavailable, err.Error())
	}

	waitCtx := ctx
	if opts.Timeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, opts.Timeout)
		defer cancel()
	}

	if err := waitReady(waitCtx, conn); err != nil {
		conn.Close()
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Wrapf(ingest.ErrTransportUnavailable, "connect %s: %v", target, err)
	}

	return conn, nil
}

func waitReady(ctx context.Context, conn *grpc.ClientConn) error {
	conn.Connect()
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.TransientFailure, connectivity.Shutdown:
			return errors.New(state.String())
		}
		if !conn.WaitForStateChange(ctx, state) {
			return ctx.Err()
		}
	}
}

// Subscribe sends req over conn and waits for the relay's first reply, so a
// refused subscription surfaces here rather than from the first Next.
// Refusals wrap ingest.ErrSubscriptionRejected.
func Subscribe(ctx context.Context, conn grpc.ClientConnInterface, req *proto.NextStreamSubscription) (*Subscription, error) {
	streamCtx, cancel := context.WithCancel(ctx)

	stream, err := proto.NewNextStreamServiceClient(conn).SubscribeNextStream(streamCtx, req)
	if err != nil {
		cancel()
		return nil, subscribeError(ctx, err)
	}

	first, err := stream.Recv()
	if err != nil && err != io.EOF {
		cancel()
		return nil, subscribeError(ctx, err)
	}

	return &Subscription{
		stream:   stream,
		cancel:   cancel,
		first:    first,
		firstErr: err,
	}, nil
}

// Next returns the next packet as an envelope. Notifications without a
// packet are skipped. io.EOF marks a graceful close.
func (s *Subscription) Next() (*ingest.Envelope, error) {
	for {
		var (
			n   *proto.NextStreamNotification
			err error
		)
		if s.first != nil || s.firstErr != nil {
			n, err = s.first, s.firstErr
			s.first, s.firstErr = nil, nil
		} else {
			n, err = s.stream.Recv()
		}
		if err != nil {
			return nil, streamError(err)
		}

		packet := n.GetPacket()
		if packet == nil {
			continue
		}

		env := &ingest.Envelope{Slot: packet.Slot, Payload: packet.Transaction}
		if idx, ok := packet.GetIndex(); ok {
			env.Index = &idx
		}
		return env, nil
	}
}

// Close cancels the call and closes the owned connection.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		if s.GrpcConn != nil {
			err = s.GrpcConn.Close()
		}
	})
	return err
}
