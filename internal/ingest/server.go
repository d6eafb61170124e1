package ingest

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"google.golang.org/grpc/status"
)

// Submitter accepts inbound units for the ingestion worker
type Submitter interface {
	Submit(ctx context.Context, u Unit) error
}

// Server implements the SampleIngestor gRPC service
type Server struct {
	submitter Submitter
	logger    *slog.Logger
}

// NewServer creates a new ingest server
func NewServer(submitter Submitter, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		submitter: submitter,
		logger:    logger,
	}
}

// StreamSamples handles the client streaming RPC. Samples are only
// queued here; validation happens on the ingestion worker.
func (s *Server) StreamSamples(stream SampleIngestor_StreamSamplesServer) error {
	ctx := stream.Context()
	var ack Ack

	for {
		batch, err := stream.Recv()
		if err == io.EOF {
			return stream.SendAndClose(&ack)
		}
		if err != nil {
			s.logger.Warn("error receiving batch", "error", err)
			return err
		}

		s.logger.Debug("received batch", "source", batch.Source, "samples", len(batch.Samples))

		source := "grpc:" + batch.Source
		for i := range batch.Samples {
			msg := batch.Samples[i]
			err := s.submitter.Submit(ctx, Unit{Message: &msg, Source: source})
			switch {
			case err == nil:
				ack.Queued++
			case errors.Is(err, ErrWorkerStopped):
				ack.Rejected++
			default:
				return status.FromContextError(err).Err()
			}
		}
	}
}

var _ SampleIngestorServer = (*Server)(nil)
