package upstream

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/goccy/go-json"

	"github.com/blueberrycongee/llmroute/pkg/types"
)

var doneMarker = []byte("[DONE]")

// StreamReader iterates over the chunks of an SSE streaming response.
//
//	stream, err := client.ChatCompletionStream(ctx, prov, req)
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
type StreamReader struct {
	body    io.ReadCloser
	scanner *bufio.Scanner

	mu     sync.Mutex
	closed bool
	usage  *types.Usage
}

func newStreamReader(body io.ReadCloser) *StreamReader {
	scanner := bufio.NewScanner(body)
	// Room for large chunks; tool-call deltas can exceed the default.
	scanner.Buffer(make([]byte, 4096), 4096*4)

	return &StreamReader{body: body, scanner: scanner}
}

// Recv returns the next chunk from the stream. It returns io.EOF when
// the stream completes, after the [DONE] marker or on a clean close.
func (s *StreamReader) Recv() (*types.StreamChunk, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, io.EOF
	}

	for s.scanner.Scan() {
		line := bytes.TrimSpace(s.scanner.Bytes())
		if len(line) == 0 || bytes.HasPrefix(line, []byte(":")) {
			continue
		}

		data := bytes.TrimPrefix(line, []byte("data: "))
		if bytes.Equal(data, doneMarker) {
			s.close()
			return nil, io.EOF
		}

		var chunk types.StreamChunk
		if err := json.Unmarshal(data, &chunk); err != nil {
			return nil, fmt.Errorf("unmarshal chunk: %w", err)
		}
		if chunk.Usage != nil {
			s.usage = chunk.Usage
		}
		return &chunk, nil
	}

	if err := s.scanner.Err(); err != nil {
		s.close()
		return nil, err
	}

	s.close()
	return nil, io.EOF
}

// Usage returns the usage block reported by the final stream chunk, or
// nil when the provider sent none.
func (s *StreamReader) Usage() *types.Usage {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.usage
}

// Close releases the stream. Safe to call multiple times.
func (s *StreamReader) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.close()
}

func (s *StreamReader) close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
