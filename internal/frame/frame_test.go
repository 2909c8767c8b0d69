package frame

import (
	"bytes"
	"testing"
)

func TestEncodeLayout(t *testing.T) {
	payload := []byte{0x01, 0x02, 0x03}
	f := Encode(payload)

	if len(f) != len(payload)+overhead {
		t.Fatalf("frame length=%d want %d", len(f), len(payload)+overhead)
	}
	if f[0] != Sync || f[len(f)-1] != Sync {
		t.Fatalf("frame not SYNC-delimited: % 02X", f)
	}
	if f[1] != byte(len(payload)) {
		t.Fatalf("length byte=%d want %d", f[1], len(payload))
	}
	if !bytes.Equal(f[2:2+len(payload)], payload) {
		t.Fatalf("payload mangled: % 02X", f)
	}
	crc := crc16(payload)
	if f[5] != byte(crc&0xFF) || f[6] != byte(crc>>8) {
		t.Fatalf("crc bytes=% 02X want %04X little-endian", f[5:7], crc)
	}
}

func TestEncode_PanicsOnOversize(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	Encode(make([]byte, MaxPayload+1))
}

func TestDecode_Roundtrip(t *testing.T) {
	payload := []byte{0x10, 0x20, 0x30, 0x40}
	d := NewDecoder()
	got := d.Feed(Encode(payload))
	if len(got) != 1 {
		t.Fatalf("frames=%d want 1", len(got))
	}
	if !bytes.Equal(got[0], payload) {
		t.Fatalf("payload=% 02X want % 02X", got[0], payload)
	}
	if d.Corrupt() != 0 {
		t.Fatalf("corrupt=%d want 0", d.Corrupt())
	}
}

func TestDecode_EmptyPayload(t *testing.T) {
	d := NewDecoder()
	got := d.Feed(Encode(nil))
	if len(got) != 1 || len(got[0]) != 0 {
		t.Fatalf("got %v, want one empty payload", got)
	}
}

func TestDecode_BackToBackFrames(t *testing.T) {
	stream := append(Encode([]byte{1}), Encode([]byte{2, 2})...)
	stream = append(stream, Encode([]byte{3, 3, 3})...)

	d := NewDecoder()
	got := d.Feed(stream)
	if len(got) != 3 {
		t.Fatalf("frames=%d want 3", len(got))
	}
	for i, want := range [][]byte{{1}, {2, 2}, {3, 3, 3}} {
		if !bytes.Equal(got[i], want) {
			t.Fatalf("frame %d=% 02X want % 02X", i, got[i], want)
		}
	}
}

// The decoder must produce the same frames no matter how the stream is
// chunked by the transport.
func TestDecode_ChunkBoundaryIndependent(t *testing.T) {
	stream := append(Encode([]byte{0xAA, 0xBB}), Encode([]byte{0xCC})...)

	for _, chunk := range []int{1, 2, 3, len(stream)} {
		d := NewDecoder()
		var got [][]byte
		for i := 0; i < len(stream); i += chunk {
			end := i + chunk
			if end > len(stream) {
				end = len(stream)
			}
			got = append(got, d.Feed(stream[i:end])...)
		}
		if len(got) != 2 {
			t.Fatalf("chunk=%d frames=%d want 2", chunk, len(got))
		}
		if !bytes.Equal(got[0], []byte{0xAA, 0xBB}) || !bytes.Equal(got[1], []byte{0xCC}) {
			t.Fatalf("chunk=%d got % 02X", chunk, got)
		}
		if d.Corrupt() != 0 {
			t.Fatalf("chunk=%d corrupt=%d want 0", chunk, d.Corrupt())
		}
	}
}

func TestDecode_CorruptFrameCountedOnce(t *testing.T) {
	bad := Encode([]byte{0x01, 0x02, 0x03})
	bad[2] ^= 0x03 // corrupt the payload, CRC now fails

	stream := append(bad, Encode([]byte{0x55})...)

	d := NewDecoder()
	got := d.Feed(stream)
	if len(got) != 1 {
		t.Fatalf("frames=%d want 1", len(got))
	}
	if !bytes.Equal(got[0], []byte{0x55}) {
		t.Fatalf("payload=% 02X want 55", got[0])
	}
	if d.Corrupt() != 1 {
		t.Fatalf("corrupt=%d want 1", d.Corrupt())
	}
}

func TestDecode_ResyncsAfterGarbage(t *testing.T) {
	stream := []byte{0x00, 0x11, 0x22, 0x33}
	stream = append(stream, Encode([]byte{0x42})...)

	d := NewDecoder()
	got := d.Feed(stream)
	if len(got) != 1 || !bytes.Equal(got[0], []byte{0x42}) {
		t.Fatalf("got %v, want one frame [42]", got)
	}
}

func TestDecode_OverflowBounded(t *testing.T) {
	d := NewDecoder()
	// A sync byte followed by noise that never completes a frame.
	junk := make([]byte, 2*maxBuffer)
	for i := range junk {
		junk[i] = 0x7E
	}
	got := d.Feed(junk)
	if len(got) != 0 {
		t.Fatalf("frames=%d want 0", len(got))
	}
	if d.Corrupt() == 0 {
		t.Fatalf("expected overflow to be counted")
	}
	// A valid frame still decodes afterwards.
	got = d.Feed(Encode([]byte{0x01}))
	if len(got) == 0 {
		t.Fatalf("expected decoder to recover after overflow")
	}
}
