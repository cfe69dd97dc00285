package wire

import (
	"encoding/binary"
	"fmt"
)

// BufferCapacity is the fixed capacity of a frame buffer. Requests and
// responses that would exceed it must be split by the caller (see the
// multi-op protocol in the client package).
const BufferCapacity = 2 * 1024 * 1024

// Buffer is a fixed-capacity frame buffer with a read/write cursor.
// All multi-byte integers are little-endian.
//
// The usage contract is rewind-before-write, rewind-before-read: callers
// must Reset() before marshalling a request and Rewind() before decoding
// a response. The first failed put or get sets a sticky error; all
// subsequent operations become no-ops (gets return zero values) so that
// marshalling code can chain calls and check Err() once.
//
// Thread-safety: a Buffer is not safe for concurrent use. Each session
// owns exactly one and serializes its calls.
type Buffer struct {
	data []byte
	pos  int
	end  int // high-water mark of written data
	err  error
}

// NewBuffer allocates a frame buffer with the standard capacity.
func NewBuffer() *Buffer {
	return NewBufferSize(BufferCapacity)
}

// NewBufferSize allocates a frame buffer with a custom capacity (used by
// tests to exercise the overflow paths with small frames).
func NewBufferSize(capacity int) *Buffer {
	return &Buffer{data: make([]byte, capacity)}
}

// View wraps an existing frame for decoding without copying it into a
// fresh 2 MiB allocation. Used on the service side where request frames
// are owned by the transport for the duration of one call.
func View(frame []byte) *Buffer {
	return &Buffer{data: frame, end: len(frame)}
}

// Reset rewinds the cursor and truncates previously written data.
func (b *Buffer) Reset() {
	b.pos = 0
	b.end = 0
	b.err = nil
}

// Rewind moves the cursor back to the start without discarding data.
// Used to switch from writing a frame to reading it (or vice versa on
// the service side).
func (b *Buffer) Rewind() {
	b.pos = 0
	b.err = nil
}

// Load replaces the buffer content with the given frame and rewinds.
// It fails if the frame exceeds the buffer capacity.
func (b *Buffer) Load(frame []byte) error {
	b.Reset()
	if len(frame) > len(b.data) {
		b.err = fmt.Errorf("frame of %d bytes exceeds buffer capacity %d", len(frame), len(b.data))
		return b.err
	}
	copy(b.data, frame)
	b.end = len(frame)
	return nil
}

// Bytes returns the written portion of the buffer. The slice aliases the
// buffer's backing storage and is only valid until the next Reset or Load.
func (b *Buffer) Bytes() []byte {
	return b.data[:b.end]
}

// Len returns the number of bytes written so far.
func (b *Buffer) Len() int { return b.end }

// Remaining returns the number of bytes that can still be written.
func (b *Buffer) Remaining() int { return len(b.data) - b.end }

// Err returns the sticky error, nil if all operations so far succeeded.
func (b *Buffer) Err() error { return b.err }

// --------------------------------------------------------------------------
// Write operations
// --------------------------------------------------------------------------

// grow checks capacity for n more bytes and advances the cursor.
// It returns the write offset, or -1 if the buffer overflowed.
func (b *Buffer) grow(n int) int {
	if b.err != nil {
		return -1
	}
	if b.pos+n > len(b.data) {
		b.err = fmt.Errorf("frame overflow: need %d bytes, %d available", n, len(b.data)-b.pos)
		return -1
	}
	off := b.pos
	b.pos += n
	if b.pos > b.end {
		b.end = b.pos
	}
	return off
}

// PutUint32 appends a little-endian uint32.
func (b *Buffer) PutUint32(v uint32) *Buffer {
	if off := b.grow(4); off >= 0 {
		binary.LittleEndian.PutUint32(b.data[off:], v)
	}
	return b
}

// PutUint64 appends a little-endian uint64.
func (b *Buffer) PutUint64(v uint64) *Buffer {
	if off := b.grow(8); off >= 0 {
		binary.LittleEndian.PutUint64(b.data[off:], v)
	}
	return b
}

// PutInt32 appends a little-endian int32 (used for status codes).
func (b *Buffer) PutInt32(v int32) *Buffer {
	return b.PutUint32(uint32(v))
}

// PutInt64 appends a little-endian int64 (used for deltas and the
// proxy-ping reply time).
func (b *Buffer) PutInt64(v int64) *Buffer {
	return b.PutUint64(uint64(v))
}

// PutBytes appends raw bytes without a length prefix.
func (b *Buffer) PutBytes(p []byte) *Buffer {
	if off := b.grow(len(p)); off >= 0 {
		copy(b.data[off:], p)
	}
	return b
}

// PutBytes32 appends a 32-bit length prefix followed by the raw bytes.
// A nil or empty slice round-trips as length 0.
func (b *Buffer) PutBytes32(p []byte) *Buffer {
	b.PutUint32(uint32(len(p)))
	return b.PutBytes(p)
}

// PutString0 appends the raw string bytes followed by a single NUL.
// Used for table names in create/drop/getTableId requests.
func (b *Buffer) PutString0(s string) *Buffer {
	if off := b.grow(len(s) + 1); off >= 0 {
		copy(b.data[off:], s)
		b.data[off+len(s)] = 0
	}
	return b
}

// --------------------------------------------------------------------------
// Read operations
// --------------------------------------------------------------------------

// take checks that n more bytes are readable and advances the cursor.
// It returns the read offset, or -1 on a truncated frame.
func (b *Buffer) take(n int) int {
	if b.err != nil {
		return -1
	}
	if b.pos+n > b.end {
		b.err = fmt.Errorf("truncated frame: need %d bytes at offset %d, frame is %d bytes", n, b.pos, b.end)
		return -1
	}
	off := b.pos
	b.pos += n
	return off
}

// Uint32 reads a little-endian uint32.
func (b *Buffer) Uint32() uint32 {
	if off := b.take(4); off >= 0 {
		return binary.LittleEndian.Uint32(b.data[off:])
	}
	return 0
}

// Uint64 reads a little-endian uint64.
func (b *Buffer) Uint64() uint64 {
	if off := b.take(8); off >= 0 {
		return binary.LittleEndian.Uint64(b.data[off:])
	}
	return 0
}

// Int32 reads a little-endian int32.
func (b *Buffer) Int32() int32 { return int32(b.Uint32()) }

// Int64 reads a little-endian int64.
func (b *Buffer) Int64() int64 { return int64(b.Uint64()) }

// Bytes32 reads a 32-bit length prefix and returns a copy of that many
// bytes. The copy keeps decoded values valid after the buffer is reused.
func (b *Buffer) Bytes32() []byte {
	n := int(b.Uint32())
	if b.err != nil {
		return nil
	}
	off := b.take(n)
	if off < 0 {
		return nil
	}
	out := make([]byte, n)
	copy(out, b.data[off:off+n])
	return out
}

// String0 reads bytes up to (and consuming) the next NUL.
func (b *Buffer) String0() string {
	if b.err != nil {
		return ""
	}
	for i := b.pos; i < b.end; i++ {
		if b.data[i] == 0 {
			s := string(b.data[b.pos:i])
			b.pos = i + 1
			return s
		}
	}
	b.err = fmt.Errorf("unterminated string at offset %d", b.pos)
	return ""
}

// Status reads the 4-byte signed status code that leads every response.
func (b *Buffer) Status() Status {
	return Status(b.Int32())
}
