package utils

import (
	"bytes"
	"io"
	"sync"

	"github.com/temirov/reposync/internal/gitrepo"
)

const (
	segmentTerminatorsConstant  = "\n\r"
	maximumPendingBytesConstant = 64 * 1024
)

// FlushingWriter forwards command and clone progress output with URL-embedded credentials masked.
// Output is released one terminated line at a time, so a credential split across writes is still masked.
type FlushingWriter struct {
	writer  io.Writer
	mutex   sync.Mutex
	pending []byte
}

// NewFlushingWriter wraps the provided writer. A nil writer yields io.Discard so callers can pass it straight to progress sinks.
func NewFlushingWriter(writer io.Writer) io.Writer {
	if writer == nil {
		return io.Discard
	}
	if _, alreadyWrapped := writer.(*FlushingWriter); alreadyWrapped {
		return writer
	}
	return &FlushingWriter{writer: writer}
}

// Write buffers data until a newline or carriage return arrives, then writes every completed segment masked and flushes
// the wrapped writer when possible. An unterminated tail stays pending until Flush or until it exceeds 64 KiB.
// The reported count refers to data, not to the masked bytes actually written.
func (flushingWriter *FlushingWriter) Write(data []byte) (int, error) {
	if flushingWriter == nil || flushingWriter.writer == nil {
		return len(data), nil
	}

	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()

	flushingWriter.pending = append(flushingWriter.pending, data...)
	segmentEnd := bytes.LastIndexAny(flushingWriter.pending, segmentTerminatorsConstant) + 1
	if segmentEnd == 0 {
		if len(flushingWriter.pending) < maximumPendingBytesConstant {
			return len(data), nil
		}
		segmentEnd = len(flushingWriter.pending)
	}

	emitError := flushingWriter.emit(flushingWriter.pending[:segmentEnd])
	flushingWriter.pending = append(flushingWriter.pending[:0], flushingWriter.pending[segmentEnd:]...)
	if emitError != nil {
		return 0, emitError
	}
	return len(data), nil
}

// Flush writes any pending unterminated output masked and flushes the wrapped writer.
func (flushingWriter *FlushingWriter) Flush() error {
	if flushingWriter == nil || flushingWriter.writer == nil {
		return nil
	}

	flushingWriter.mutex.Lock()
	defer flushingWriter.mutex.Unlock()

	emitError := flushingWriter.emit(flushingWriter.pending)
	flushingWriter.pending = flushingWriter.pending[:0]
	return emitError
}

func (flushingWriter *FlushingWriter) emit(segment []byte) error {
	if len(segment) > 0 {
		if _, writeError := io.WriteString(flushingWriter.writer, gitrepo.MaskCredentials(string(segment))); writeError != nil {
			return writeError
		}
	}

	switch flushableWriter := flushingWriter.writer.(type) {
	case interface{ Flush() error }:
		return flushableWriter.Flush()
	case interface{ Sync() error }:
		_ = flushableWriter.Sync()
	}
	return nil
}
