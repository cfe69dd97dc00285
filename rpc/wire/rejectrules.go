package wire

import "encoding/binary"

// RejectRulesLen is the size of the encoded RejectRules structure.
const RejectRulesLen = 12

// RejectRules specifies preconditions under which a read, write or remove
// is rejected instead of executed. A nil *RejectRules (or the zero value)
// means the operation is unconditional.
type RejectRules struct {
	// GivenVersion is compared against the object's current version by the
	// VersionLeGiven and VersionNeGiven conditions.
	GivenVersion uint64

	DoesntExist    bool // reject if the object does not exist
	Exists         bool // reject if the object exists
	VersionLeGiven bool // reject if current version <= GivenVersion
	VersionNeGiven bool // reject if current version != GivenVersion
}

// IsZero reports whether the rules impose no preconditions.
func (r *RejectRules) IsZero() bool {
	return r == nil || *r == RejectRules{}
}

// Encode returns the canonical 12-byte encoding: bytes 0-7 hold the
// little-endian GivenVersion, bytes 8-11 hold the four condition flags.
// A nil receiver encodes as all zeros.
func (r *RejectRules) Encode() [RejectRulesLen]byte {
	var out [RejectRulesLen]byte
	if r == nil {
		return out
	}
	binary.LittleEndian.PutUint64(out[:8], r.GivenVersion)
	out[8] = boolByte(r.DoesntExist)
	out[9] = boolByte(r.Exists)
	out[10] = boolByte(r.VersionLeGiven)
	out[11] = boolByte(r.VersionNeGiven)
	return out
}

// DecodeRejectRules is the exact inverse of Encode.
func DecodeRejectRules(data [RejectRulesLen]byte) RejectRules {
	return RejectRules{
		GivenVersion:   binary.LittleEndian.Uint64(data[:8]),
		DoesntExist:    data[8] != 0,
		Exists:         data[9] != 0,
		VersionLeGiven: data[10] != 0,
		VersionNeGiven: data[11] != 0,
	}
}

// PutRejectRules appends the encoded rules to the frame.
func (b *Buffer) PutRejectRules(r *RejectRules) *Buffer {
	enc := r.Encode()
	return b.PutBytes(enc[:])
}

// RejectRules reads a 12-byte rules structure from the frame.
func (b *Buffer) RejectRules() RejectRules {
	off := b.take(RejectRulesLen)
	if off < 0 {
		return RejectRules{}
	}
	var enc [RejectRulesLen]byte
	copy(enc[:], b.data[off:])
	return DecodeRejectRules(enc)
}

func boolByte(v bool) byte {
	if v {
		return 1
	}
	return 0
}
