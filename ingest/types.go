package ingest

import (
	"context"

	"github.com/gagliardetto/solana-go"
)

// NoSignature stands in for the signature of a transaction that carries none.
const NoSignature = "<no signatures>"

// Envelope is one unit received from a relay stream.
type Envelope struct {
	Slot    uint64
	Index   *uint64 // position within the slot, when the relay sends it
	Payload []byte  // serialized versioned transaction
}

// Event is the normalized form of a decoded envelope handed to a Sink.
type Event struct {
	Slot      uint64
	Index     *uint64
	Signature string // first signature, base58, or NoSignature

	Transaction *solana.Transaction
}

// Sink receives events in stream order. It runs on the loop goroutine and
// must not block for long.
type Sink func(Event)

// Feed is implemented by each relay vendor. Subscribe resolves the relay,
// signs a fresh subscription request, connects and opens the stream. Every
// call produces an independent stream that owns its own connection.
type Feed interface {
	Subscribe(ctx context.Context) (Stream, error)
}

// Stream yields envelopes in server send order. Next returns io.EOF when
// the relay closes the stream gracefully. Close releases the stream and its
// connection and is safe to call more than once.
type Stream interface {
	Next() (*Envelope, error)
	Close() error
}
