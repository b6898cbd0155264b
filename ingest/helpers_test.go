package ingest

import (
	"context"
	"io"
	"sync"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/require"
)

// encodeTx lays out a transaction by hand: compact-u16 signature count,
// the signatures, then the serialized message.
func encodeTx(t *testing.T, sigs []solana.Signature) []byte {
	t.Helper()
	require.Less(t, len(sigs), 0x80)

	// one signer key per signature keeps the header consistent with the count
	var keys solana.PublicKeySlice
	var accounts []uint16
	for i := range sigs {
		keys = append(keys, solana.NewWallet().PublicKey())
		accounts = append(accounts, uint16(i))
	}
	keys = append(keys, solana.SystemProgramID)

	message := solana.Message{
		AccountKeys: keys,
		Header: solana.MessageHeader{
			NumRequiredSignatures:       uint8(len(sigs)),
			NumReadonlySignedAccounts:   0,
			NumReadonlyUnsignedAccounts: 1,
		},
		RecentBlockhash: solana.Hash{1, 2, 3},
		Instructions: []solana.CompiledInstruction{{
			ProgramIDIndex: uint16(len(keys) - 1),
			Accounts:       accounts,
			Data:           solana.Base58{2, 0, 0, 0, 1, 0, 0, 0, 0, 0, 0, 0},
		}},
	}

	msg, err := message.MarshalBinary()
	require.NoError(t, err)

	out := []byte{byte(len(sigs))}
	for _, sig := range sigs {
		out = append(out, sig[:]...)
	}
	return append(out, msg...)
}

// encodeV0Tx lays out a v0 transaction with one signer, one static program
// key and a single address table lookup.
func encodeV0Tx(t *testing.T, sig solana.Signature, table solana.PublicKey) []byte {
	t.Helper()

	signer := solana.NewWallet().PublicKey()
	blockhash := solana.Hash{4, 5, 6}

	out := []byte{1}
	out = append(out, sig[:]...)

	out = append(out, 0x80)    // versioned, v0
	out = append(out, 1, 0, 1) // header
	out = append(out, 2)
	out = append(out, signer[:]...)
	out = append(out, solana.SystemProgramID[:]...)
	out = append(out, blockhash[:]...)

	// one instruction: program 1, accounts [0 2], where 2 is the first looked-up key
	out = append(out, 1, 1, 2, 0, 2, 4, 2, 0, 0, 0)

	// one lookup: writable [3], readonly [0 7]
	out = append(out, 1)
	out = append(out, table[:]...)
	out = append(out, 1, 3, 2, 0, 7)
	return out
}

func testSignature(seed byte) solana.Signature {
	var sig solana.Signature
	for i := range sig {
		sig[i] = seed + byte(i)
	}
	return sig
}

func validEnvelope(t *testing.T, slot uint64, seed byte) *Envelope {
	return &Envelope{Slot: slot, Payload: encodeTx(t, []solana.Signature{testSignature(seed)})}
}

// scriptedStream replays items then ends with end (io.EOF when nil). If
// block is set it waits for ctx after the script instead.
type scriptedStream struct {
	ctx   context.Context
	items []*Envelope
	end   error
	block bool

	mu     sync.Mutex
	closed int
	next   chan struct{} // signalled whenever Next is entered
}

func (s *scriptedStream) Next() (*Envelope, error) {
	if s.next != nil {
		select {
		case s.next <- struct{}{}:
		case <-s.ctx.Done():
		}
	}

	if len(s.items) > 0 {
		env := s.items[0]
		s.items = s.items[1:]
		return env, nil
	}
	if s.block {
		<-s.ctx.Done()
		return nil, s.ctx.Err()
	}
	if s.end != nil {
		return nil, s.end
	}
	return nil, io.EOF
}

func (s *scriptedStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed++
	return nil
}

func (s *scriptedStream) closeCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

type fakeFeed struct {
	stream *scriptedStream
	err    error
	calls  int
}

func (f *fakeFeed) Subscribe(ctx context.Context) (Stream, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	f.stream.ctx = ctx
	return f.stream, nil
}

type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) sink(ev Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
}

func (r *recorder) slots() []uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []uint64
	for _, ev := range r.events {
		out = append(out, ev.Slot)
	}
	return out
}
