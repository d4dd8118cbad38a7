// Package wire implements the length-delimited framing for the file-exchange
// protocol: an unsigned varint payload length followed by that many raw
// bytes. There is no checksum and no type tag; whether a frame is a request
// or a response is determined by which side is reading.
package wire

import (
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-varint"
)

const (
	// MaxRequestSize bounds a request frame (a UTF-8 file identifier).
	MaxRequestSize = 1_000_000
	// MaxResponseSize bounds a response frame (a raw file body).
	MaxResponseSize = 500_000_000
)

// ErrSizeExceeded is returned when a frame declares a length above the
// bound for its direction. The stream is poisoned and must be closed.
var ErrSizeExceeded = errors.New("frame exceeds size limit")

// WriteFrame writes the varint length prefix followed by the payload.
func WriteFrame(w io.Writer, payload []byte) error {
	if _, err := w.Write(varint.ToUvarint(uint64(len(payload)))); err != nil {
		return fmt.Errorf("failed to write length prefix: %w", err)
	}
	if _, err := w.Write(payload); err != nil {
		return fmt.Errorf("failed to write payload: %w", err)
	}
	return nil
}

// ReadFrame reads one frame, enforcing max before any payload byte is
// consumed. A stream that ends before the first length byte yields
// (nil, nil): the empty-result signal. A stream that ends mid-varint or
// mid-payload yields an unexpected-end-of-stream error.
func ReadFrame(r io.Reader, max uint64) ([]byte, error) {
	l, err := varint.ReadUvarint(oneByteReader{r})
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read length prefix: %w", err)
	}
	if l > max {
		return nil, fmt.Errorf("%w: %d > %d", ErrSizeExceeded, l, max)
	}
	buf := make([]byte, l)
	if _, err := io.ReadFull(r, buf); err != nil {
		if errors.Is(err, io.EOF) {
			err = io.ErrUnexpectedEOF
		}
		return nil, fmt.Errorf("failed to read payload: %w", err)
	}
	return buf, nil
}

// WriteRequest writes one request frame carrying a file identifier.
func WriteRequest(w io.Writer, fileID string) error {
	return WriteFrame(w, []byte(fileID))
}

// ReadRequest reads one request frame. An empty stream yields "".
func ReadRequest(r io.Reader) (string, error) {
	payload, err := ReadFrame(r, MaxRequestSize)
	if err != nil {
		return "", err
	}
	return string(payload), nil
}

// WriteResponse writes one response frame carrying a file body.
func WriteResponse(w io.Writer, body []byte) error {
	return WriteFrame(w, body)
}

// ReadResponse reads one response frame. An empty stream yields nil.
func ReadResponse(r io.Reader) ([]byte, error) {
	return ReadFrame(r, MaxResponseSize)
}

// oneByteReader adapts an io.Reader so the varint decoder pulls exactly one
// byte at a time and never consumes past the prefix.
type oneByteReader struct {
	r io.Reader
}

func (b oneByteReader) ReadByte() (byte, error) {
	var buf [1]byte
	for {
		n, err := b.r.Read(buf[:])
		if n == 1 {
			return buf[0], nil
		}
		if err != nil {
			return 0, err
		}
	}
}
