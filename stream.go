package llmroute

import (
	"context"
	"io"
	"sync"

	"github.com/blueberrycongee/llmroute/pkg/types"
)

// Stream is a routed streaming response. It wraps the upstream SSE
// reader and carries the routing metadata.
//
//	stream, err := r.ChatCompletionStream(ctx, req)
//	if err != nil {
//	    return err
//	}
//	defer stream.Close()
//
//	for {
//	    chunk, err := stream.Recv()
//	    if err == io.EOF {
//	        break
//	    }
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Print(chunk.Choices[0].Delta.Content)
//	}
type Stream struct {
	router   *Router
	reader   streamReader
	cancel   context.CancelFunc
	meta     ResponseMetadata
	estimate int64

	finishOnce sync.Once
}

// streamReader is the part of the upstream reader the Stream consumes.
type streamReader interface {
	Recv() (*types.StreamChunk, error)
	Usage() *types.Usage
	Close() error
}

func newStream(r *Router, reader streamReader, cancel context.CancelFunc, meta ResponseMetadata, estimate int64) *Stream {
	return &Stream{
		router:   r,
		reader:   reader,
		cancel:   cancel,
		meta:     meta,
		estimate: estimate,
	}
}

// Recv returns the next chunk. It returns io.EOF when the stream
// completes.
func (s *Stream) Recv() (*types.StreamChunk, error) {
	chunk, err := s.reader.Recv()
	if err == io.EOF {
		s.finish()
	}
	return chunk, err
}

// Metadata reports how the request was routed. Latency is not populated
// for streams.
func (s *Stream) Metadata() ResponseMetadata {
	return s.meta
}

// Close releases the stream. Safe to call multiple times.
func (s *Stream) Close() error {
	s.finish()
	err := s.reader.Close()
	if s.cancel != nil {
		s.cancel()
	}
	return err
}

// finish reconciles the estimate-based usage recording with the
// provider's usage block, when enabled and available.
func (s *Stream) finish() {
	s.finishOnce.Do(func() {
		if !s.router.cfg.ReconcileStreamUsage {
			return
		}
		usage := s.reader.Usage()
		if usage == nil {
			return
		}

		delta := int64(usage.TotalTokens) - s.estimate
		if delta == 0 {
			return
		}
		if err := s.router.tracker.ReconcileUsage(context.Background(), s.meta.Provider, s.meta.ModelID, delta); err != nil {
			s.router.logger.Warn("stream usage reconciliation failed",
				"provider", s.meta.Provider, "model", s.meta.ModelID, "error", err)
		}
	})
}
