package stream_client

import (
	"context"
	"log"
	"net"
	"sync"
	"time"

	nextblock_go "github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go"
	"github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go/pkg"
	"github.com/1fge/nextblock-stream-monitor/pkg/nextblock-go/proto"
	"github.com/gagliardetto/solana-go"
	"google.golang.org/grpc"
)

// Client subscribes to a nextblock relay. Every Subscribe call performs a
// fresh handshake over a new connection, so one Client can serve any number
// of reconnects.
type Client struct {
	Endpoint nextblock_go.Endpoint

	Auth *pkg.AuthenticationService

	// Accounts filters the stream; empty streams every transaction.
	Accounts []solana.PublicKey

	Secure         bool
	KeepAlive      time.Duration
	ConnectTimeout time.Duration

	dialer      func(context.Context, string) (net.Conn, error)
	dialOptions []grpc.DialOption
	logger      *log.Logger
}

// Subscription is a live SubscribeNextStream call. It owns the connection it
// was opened on when obtained through Client.Subscribe.
type Subscription struct {
	GrpcConn *grpc.ClientConn

	stream proto.NextStreamService_SubscribeNextStreamClient
	cancel context.CancelFunc

	first    *proto.NextStreamNotification
	firstErr error

	closeOnce sync.Once
}
