// Package frame owns the command/telemetry wire format:
//
//	[SYNC][length u8][payload][CRC16 lo][CRC16 hi][SYNC]
//
// Little-endian throughout. The CRC covers the payload. Frames are
// self-delimited so a host parser can re-align byte streams after transport
// glitches; there is no byte stuffing, alignment relies on the SYNC byte
// plus checksum validation.
package frame

import "bytes"

const (
	// Sync delimits frames on the wire.
	Sync = 0x7E

	// MaxPayload bounds the length byte; anything larger is framing noise.
	MaxPayload = 64

	// frame overhead: sync + length + crc16 + sync.
	overhead = 5

	// decoder buffer bound. Inbound bytes beyond this without a parseable
	// frame are discarded rather than grown into.
	maxBuffer = 512
)

// Encode wraps payload in a frame. Payloads over MaxPayload are truncated by
// the caller's contract, not here; Encode panics on oversized payloads since
// that is a programming error.
func Encode(payload []byte) []byte {
	if len(payload) > MaxPayload {
		panic("frame: payload exceeds MaxPayload")
	}
	crc := crc16(payload)
	out := make([]byte, 0, len(payload)+overhead)
	out = append(out, Sync, byte(len(payload)))
	out = append(out, payload...)
	out = append(out, byte(crc&0xFF), byte(crc>>8))
	out = append(out, Sync)
	return out
}

// Decoder reassembles frames from an arbitrarily chunked byte stream. A
// partial frame persists in the buffer between Feed calls, so the same
// stream yields the same frames regardless of chunk boundaries.
//
// Not safe for concurrent use.
type Decoder struct {
	buf     []byte
	corrupt uint64
}

func NewDecoder() *Decoder {
	return &Decoder{buf: make([]byte, 0, maxBuffer)}
}

// Corrupt counts frames discarded for checksum or terminator failures, plus
// buffer overflows. Diagnostics only; the stream keeps going.
func (d *Decoder) Corrupt() uint64 { return d.corrupt }

// Feed consumes the next chunk and returns the payloads of every complete,
// valid frame found. Corrupt frames are dropped and scanning resumes at the
// next SYNC byte without disturbing later valid frames.
func (d *Decoder) Feed(p []byte) [][]byte {
	d.buf = append(d.buf, p...)
	if len(d.buf) > maxBuffer {
		// Unbounded garbage. Keep only the tail that could still hold a
		// frame and count the loss.
		d.corrupt++
		d.buf = append(d.buf[:0], d.buf[len(d.buf)-MaxPayload-overhead:]...)
	}

	var out [][]byte
	for {
		// Align to the next SYNC.
		i := bytes.IndexByte(d.buf, Sync)
		if i < 0 {
			d.buf = d.buf[:0]
			return out
		}
		if i > 0 {
			d.buf = append(d.buf[:0], d.buf[i:]...)
		}
		if len(d.buf) < 2 {
			return out
		}

		length := int(d.buf[1])
		if length > MaxPayload {
			// Not a frame start (likely a trailing SYNC or payload byte).
			d.buf = append(d.buf[:0], d.buf[1:]...)
			continue
		}
		total := length + overhead
		if len(d.buf) < total {
			return out
		}

		payload := d.buf[2 : 2+length]
		crcGot := uint16(d.buf[2+length]) | uint16(d.buf[3+length])<<8
		if d.buf[total-1] != Sync || crcGot != crc16(payload) {
			d.corrupt++
			d.buf = append(d.buf[:0], d.buf[1:]...)
			continue
		}

		out = append(out, append([]byte(nil), payload...))
		d.buf = append(d.buf[:0], d.buf[total:]...)
	}
}
