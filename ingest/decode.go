package ingest

import (
	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"github.com/pkg/errors"
)

// DecodeTransaction deserializes a bincode VersionedTransaction, which for
// both legacy and v0 messages is the same layout as the solana wire format.
// Trailing bytes after the message are ignored.
func DecodeTransaction(payload []byte) (tx *solana.Transaction, err error) {
	if len(payload) == 0 {
		return nil, errors.WithMessage(ErrDecodeFailure, "empty payload")
	}

	// payloads come off the network; a hostile length prefix must not take the loop down
	defer func() {
		if r := recover(); r != nil {
			tx, err = nil, errors.WithMessagef(ErrDecodeFailure, "panic: %v", r)
		}
	}()

	tx, err = solana.TransactionFromDecoder(bin.NewBinDecoder(payload))
	if err != nil {
		return nil, errors.WithMessage(ErrDecodeFailure, err.Error())
	}

	return tx, nil
}

// NewEvent decodes env into an Event.
func NewEvent(env *Envelope) (Event, error) {
	tx, err := DecodeTransaction(env.Payload)
	if err != nil {
		return Event{}, err
	}

	sig := NoSignature
	if len(tx.Signatures) > 0 {
		sig = tx.Signatures[0].String()
	}

	return Event{
		Slot:        env.Slot,
		Index:       env.Index,
		Signature:   sig,
		Transaction: tx,
	}, nil
}
