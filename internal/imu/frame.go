package imu

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// Frame layout, little-endian:
//
//	[0]     sync byte 0xA5
//	[1:5]   device time, ms (uint32)
//	[5]     flags: bit0 accel present, bit1 gyro present
//	[6:12]  accel x, y, z (int16)
//	[12:18] gyro x, y, z (int16)
const (
	FrameSize = 18
	FrameSync = 0xA5

	FlagAccel uint8 = 1 << 0
	FlagGyro  uint8 = 1 << 1
)

var (
	ErrInvalidFrameSize = errors.New("invalid frame size")
	ErrBadSync          = errors.New("frame does not start with sync byte")
)

// DecodeFrame parses a single frame into a Sample. Axes whose flag bit is clear
// are left nil regardless of the payload bytes.
func DecodeFrame(data []byte) (Sample, error) {
	if len(data) != FrameSize {
		return Sample{}, fmt.Errorf("%w: expected %d bytes, got %d", ErrInvalidFrameSize, FrameSize, len(data))
	}
	if data[0] != FrameSync {
		return Sample{}, fmt.Errorf("%w: got 0x%02x", ErrBadSync, data[0])
	}

	s := Sample{TimeMs: int64(binary.LittleEndian.Uint32(data[1:5]))}
	flags := data[5]

	if flags&FlagAccel != 0 {
		s.Accel = &Triple{
			X: int16(binary.LittleEndian.Uint16(data[6:8])),
			Y: int16(binary.LittleEndian.Uint16(data[8:10])),
			Z: int16(binary.LittleEndian.Uint16(data[10:12])),
		}
	}
	if flags&FlagGyro != 0 {
		s.Gyro = &Triple{
			X: int16(binary.LittleEndian.Uint16(data[12:14])),
			Y: int16(binary.LittleEndian.Uint16(data[14:16])),
			Z: int16(binary.LittleEndian.Uint16(data[16:18])),
		}
	}

	return s, nil
}

// EncodeFrame is the inverse of DecodeFrame. TimeMs is truncated to 32 bits.
func EncodeFrame(s Sample) []byte {
	buf := make([]byte, FrameSize)
	buf[0] = FrameSync
	binary.LittleEndian.PutUint32(buf[1:5], uint32(s.TimeMs))

	if s.Accel != nil {
		buf[5] |= FlagAccel
		putTriple(buf[6:12], *s.Accel)
	}
	if s.Gyro != nil {
		buf[5] |= FlagGyro
		putTriple(buf[12:18], *s.Gyro)
	}
	return buf
}

func putTriple(dst []byte, t Triple) {
	binary.LittleEndian.PutUint16(dst[0:2], uint16(t.X))
	binary.LittleEndian.PutUint16(dst[2:4], uint16(t.Y))
	binary.LittleEndian.PutUint16(dst[4:6], uint16(t.Z))
}
