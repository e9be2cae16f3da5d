package imu

import (
	"errors"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"
	"github.com/smallnest/ringbuffer"
)

const defaultStreamBufferSize = 4096

// StreamDecoder reassembles frames from a byte stream whose chunk boundaries
// do not line up with frame boundaries (notification payloads, capture files).
// Bytes before a sync byte are skipped. Not safe for concurrent use.
type StreamDecoder struct {
	buf     *ringbuffer.RingBuffer
	partial []byte
	skipped uint64
	logger  *logrus.Logger
}

// NewStreamDecoder creates a decoder with an internal buffer of bufSize bytes
// (0 selects the default).
func NewStreamDecoder(bufSize int, logger *logrus.Logger) *StreamDecoder {
	if bufSize <= 0 {
		bufSize = defaultStreamBufferSize
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &StreamDecoder{
		buf:     ringbuffer.New(bufSize),
		partial: make([]byte, 0, FrameSize),
		logger:  logger,
	}
}

// Feed pushes a chunk of bytes and calls emit for every complete frame, in order.
func (d *StreamDecoder) Feed(chunk []byte, emit func(Sample)) error {
	for len(chunk) > 0 {
		n, err := d.buf.Write(chunk)
		if err != nil && !errors.Is(err, ringbuffer.ErrIsFull) && !errors.Is(err, ringbuffer.ErrTooMuchDataToWrite) {
			return fmt.Errorf("stream buffer write: %w", err)
		}
		chunk = chunk[n:]

		if err := d.drain(emit); err != nil {
			return err
		}
		if n == 0 && len(chunk) > 0 {
			return fmt.Errorf("stream buffer stalled with %d bytes pending", len(chunk))
		}
	}
	return nil
}

// ReadFrom feeds the decoder from r until EOF.
func (d *StreamDecoder) ReadFrom(r io.Reader, emit func(Sample)) error {
	chunk := make([]byte, 512)
	for {
		n, err := r.Read(chunk)
		if n > 0 {
			if ferr := d.Feed(chunk[:n], emit); ferr != nil {
				return ferr
			}
		}
		if errors.Is(err, io.EOF) {
			if len(d.partial) > 0 {
				d.logger.WithField("bytes", len(d.partial)).Debug("Discarding truncated trailing frame")
			}
			return nil
		}
		if err != nil {
			return fmt.Errorf("read capture: %w", err)
		}
	}
}

// Skipped returns the number of bytes discarded while searching for a sync byte.
func (d *StreamDecoder) Skipped() uint64 {
	return d.skipped
}

func (d *StreamDecoder) drain(emit func(Sample)) error {
	for {
		b, err := d.buf.ReadByte()
		if errors.Is(err, ringbuffer.ErrIsEmpty) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("stream buffer read: %w", err)
		}

		if len(d.partial) == 0 && b != FrameSync {
			d.skipped++
			continue
		}
		d.partial = append(d.partial, b)
		if len(d.partial) < FrameSize {
			continue
		}

		s, err := DecodeFrame(d.partial)
		d.partial = d.partial[:0]
		if err != nil {
			d.logger.WithError(err).Warn("Dropping undecodable frame")
			continue
		}
		emit(s)
	}
}
