package base

import (
	"encoding/binary"
	"io"
	"net"
)

// FrameHeaderLen is the size of the frame envelope preceding the payload.
const FrameHeaderLen = 20

// WriteFrame writes a frame to the connection with the format:
// - 8 bytes: opcode (uint64, big endian)
// - 8 bytes: requestID (uint64, big endian)
// - 4 bytes: payload length (uint32, big endian)
// - N bytes: payload
//
// It is exported so that components talking to a node outside a pooled
// transport (e.g. the server-side ping prober) can speak the same framing.
func WriteFrame(conn net.Conn, opcode uint64, requestID uint64, data []byte) error {
	header := make([]byte, FrameHeaderLen)
	binary.BigEndian.PutUint64(header[:8], opcode)
	binary.BigEndian.PutUint64(header[8:16], requestID)
	binary.BigEndian.PutUint32(header[16:20], uint32(len(data)))

	b := net.Buffers{header, data}
	_, err := b.WriteTo(conn)
	return err
}

// ReadFrame reads a frame from the connection using the provided buffer.
// If the buffer is too small, it allocates a new temporary buffer for the
// payload.
func ReadFrame(conn net.Conn, buf []byte) (opcode uint64, requestID uint64, data []byte, err error) {
	// Check if buffer is large enough for the header
	if buf == nil || len(buf) < FrameHeaderLen {
		buf = make([]byte, FrameHeaderLen)
	}

	// Read header
	if _, err := io.ReadFull(conn, buf[:FrameHeaderLen]); err != nil {
		return 0, 0, nil, err
	}

	// Parse header
	opcode = binary.BigEndian.Uint64(buf[:8])
	requestID = binary.BigEndian.Uint64(buf[8:16])
	contentLength := binary.BigEndian.Uint32(buf[16:20])

	// If no payload, return empty slice
	if contentLength == 0 {
		return opcode, requestID, []byte{}, nil
	}

	// Check if buffer is large enough for the payload
	if len(buf) < int(contentLength) {
		buf = make([]byte, contentLength)
	}

	// Read payload
	if _, err := io.ReadFull(conn, buf[:contentLength]); err != nil {
		return 0, 0, nil, err
	}

	return opcode, requestID, buf[:contentLength], nil
}
