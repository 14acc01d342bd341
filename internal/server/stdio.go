// Package server binds the dispatcher to transports. Both bindings are
// thin adapters: they frame raw request bytes in and response envelopes
// out without changing dispatcher behavior.
package server

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	"mcpd/internal/protocol"
)

// maxFrameBytes bounds a single request line. An oversized frame is
// answered with a parse error and discarded; the server keeps serving.
const maxFrameBytes = 4 * 1024 * 1024

var errFrameTooLong = errors.New("frame exceeds size limit")

// StdioServer reads one JSON request per line and writes one JSON
// response per line. Each request is dispatched on its own goroutine;
// writes are serialized.
type StdioServer struct {
	dispatcher *protocol.Dispatcher
	reader     io.Reader
	writer     io.Writer
	writeMu    sync.Mutex
	logger     *zap.Logger
}

// NewStdioServer constructs a stdio binding.
func NewStdioServer(dispatcher *protocol.Dispatcher, reader io.Reader, writer io.Writer, logger *zap.Logger) *StdioServer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StdioServer{dispatcher: dispatcher, reader: reader, writer: writer, logger: logger}
}

// Run serves until EOF or context cancellation. In-flight requests finish
// before Run returns. The read loop runs on its own goroutine so a
// canceled context is not stuck behind an idle stdin; that goroutine
// exits with its next read after the peer closes the stream.
func (s *StdioServer) Run(ctx context.Context) error {
	var inflight sync.WaitGroup
	defer inflight.Wait()

	frames := make(chan []byte)
	readErr := make(chan error, 1)
	go func() {
		defer close(frames)
		reader := bufio.NewReaderSize(s.reader, 64*1024)
		for {
			line, err := readFrame(reader, maxFrameBytes)
			if errors.Is(err, errFrameTooLong) {
				s.write(protocol.NewError(nil, protocol.CodeParseError, "Parse error: request exceeds frame limit"))
				continue
			}
			if len(line) > 0 {
				select {
				case frames <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					readErr <- fmt.Errorf("stdio read: %w", err)
				}
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case line, ok := <-frames:
			if !ok {
				select {
				case err := <-readErr:
					return err
				default:
					return nil
				}
			}
			inflight.Add(1)
			go func() {
				defer inflight.Done()
				s.write(s.dispatcher.HandleRaw(ctx, line))
			}()
		}
	}
}

// readFrame reads one newline-delimited frame, accumulating across the
// reader's buffer size. A frame past max is drained to its newline and
// reported as errFrameTooLong so the stream stays aligned.
func readFrame(r *bufio.Reader, max int) ([]byte, error) {
	var frame []byte
	for {
		chunk, err := r.ReadSlice('\n')
		if len(frame)+len(chunk) > max {
			if errors.Is(err, bufio.ErrBufferFull) {
				discardLine(r)
			}
			return nil, errFrameTooLong
		}
		frame = append(frame, chunk...)
		switch {
		case err == nil:
			return bytes.TrimRight(frame, "\r\n"), nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return bytes.TrimRight(frame, "\r\n"), err
		}
	}
}

// discardLine consumes the remainder of an oversized line.
func discardLine(r *bufio.Reader) {
	for {
		_, err := r.ReadSlice('\n')
		if err == nil || !errors.Is(err, bufio.ErrBufferFull) {
			return
		}
	}
}

func (s *StdioServer) write(resp *protocol.Response) {
	payload, err := json.Marshal(resp)
	if err != nil {
		s.logger.Error("marshal response", zap.Error(err))
		return
	}
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	if _, err := fmt.Fprintf(s.writer, "%s\n", payload); err != nil {
		s.logger.Error("write response", zap.Error(err))
	}
}
