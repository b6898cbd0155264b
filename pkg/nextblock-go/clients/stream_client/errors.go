package stream_client

import (
	"context"
	"io"

	"github.com/1fge/nextblock-stream-monitor/ingest"
	"github.com/pkg/errors"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// subscribeError classifies a failure while opening the stream.
func subscribeError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	st, ok := status.FromError(err)
	if !ok {
		return errors.Wrap(ingest.ErrTransportUnavailable, err.Error())
	}

	// any status other than Unavailable is an answer from the relay, so no
	// stream was ever established: bad signature, stale timestamp, unpaid
	// identity, bad filter, quota, unknown method
	if st.Code() == codes.Unavailable {
		return errors.Wrap(ingest.ErrTransportUnavailable, st.Message())
	}
	return errors.Wrapf(ingest.ErrSubscriptionRejected, "%s: %s", st.Code(), st.Message())
}

// streamError classifies a failure on an established stream.
func streamError(err error) error {
	if err == io.EOF {
		return err
	}

	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	switch st.Code() {
	case codes.Canceled:
		return errors.WithMessage(context.Canceled, st.Message())
	case codes.DeadlineExceeded:
		return errors.WithMessage(context.DeadlineExceeded, st.Message())
	case codes.Unavailable:
		return errors.Wrap(ingest.ErrTransportUnavailable, st.Message())
	}
	return err
}
