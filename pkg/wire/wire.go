// Package wire implements the heartbeat frame codec: a 4-byte big-endian
// length prefix followed by a tagged-field payload that tolerates unknown
// tags on decode.
package wire

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/Ramarajusairajesh/Distributed-File-Grid/pkg/models"
)

// MaxPayloadSize is the largest body a receiver will accept. Larger length
// prefixes are a decode error, per the wire protocol's oversized-length
// rejection rule.
const MaxPayloadSize = 1 << 20 // 1 MiB

// LengthPrefixSize is the width of the frame's length header in bytes.
const LengthPrefixSize = 4

// field tags for the heartbeat payload. Unknown tags are skipped on decode
// so the schema can grow without breaking older readers.
const (
	tagServerID uint8 = 1
	tagIP       uint8 = 2
	tagTimeSec  uint8 = 3
	tagTimeNsec uint8 = 4
	tagCPU      uint8 = 5
	tagStoreUse uint8 = 6
	tagStoreTot uint8 = 7
	tagNetBW    uint8 = 8
)

const (
	typeVarUint uint8 = 1
	typeString  uint8 = 2
	typeFloat64 uint8 = 3
)

// ParseError is returned by Decode when the payload cannot be interpreted
// as a heartbeat: a short read, a truncated body, or a schema violation.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("wire: parse error: %s", e.Reason)
}

// ErrOversizedLength is returned when a frame's length prefix exceeds
// MaxPayloadSize; the caller must drop the connection.
var ErrOversizedLength = errors.New("wire: frame length exceeds maximum payload size")

// Encode serializes a heartbeat into a complete frame: length prefix plus
// tagged-field body.
func Encode(hb models.Heartbeat) []byte {
	body := make([]byte, 0, 96)
	body = appendVarField(body, tagServerID, hb.ServerID)
	body = appendStringField(body, tagIP, hb.IP)
	body = appendVarField(body, tagTimeSec, uint64(hb.Timestamp.Unix())) //nolint:gosec // wire format, not a security boundary
	body = appendVarField(body, tagTimeNsec, uint64(hb.Timestamp.Nanosecond()))
	body = appendFloatField(body, tagCPU, hb.CPUUsage)
	body = appendFloatField(body, tagStoreUse, hb.StorageUsed)
	body = appendFloatField(body, tagStoreTot, hb.StorageTotal)
	body = appendFloatField(body, tagNetBW, hb.NetworkBandwidth)

	frame := make([]byte, LengthPrefixSize+len(body))
	binary.BigEndian.PutUint32(frame, uint32(len(body))) //nolint:gosec // body is bounded well under 1 MiB
	copy(frame[LengthPrefixSize:], body)
	return frame
}

// Decode parses a single frame body (without the length prefix) into a
// heartbeat. Required fields absent from the payload produce a ParseError.
func Decode(body []byte) (models.Heartbeat, error) {
	var (
		hb        models.Heartbeat
		sawServer bool
		sec, nsec uint64
	)

	pos := 0
	for pos < len(body) {
		if pos+2 > len(body) {
			return models.Heartbeat{}, &ParseError{Reason: "truncated field header"}
		}
		tag := body[pos]
		typ := body[pos+1]
		pos += 2

		switch typ {
		case typeVarUint:
			v, n, err := readVarUint(body[pos:])
			if err != nil {
				return models.Heartbeat{}, err
			}
			pos += n
			switch tag {
			case tagServerID:
				hb.ServerID = v
				sawServer = true
			case tagTimeSec:
				sec = v
			case tagTimeNsec:
				nsec = v
			}
		case typeString:
			s, n, err := readString(body[pos:])
			if err != nil {
				return models.Heartbeat{}, err
			}
			pos += n
			if tag == tagIP {
				hb.IP = s
			}
		case typeFloat64:
			if pos+8 > len(body) {
				return models.Heartbeat{}, &ParseError{Reason: "truncated float field"}
			}
			bits := binary.BigEndian.Uint64(body[pos : pos+8])
			f := math.Float64frombits(bits)
			pos += 8
			switch tag {
			case tagCPU:
				hb.CPUUsage = f
			case tagStoreUse:
				hb.StorageUsed = f
			case tagStoreTot:
				hb.StorageTotal = f
			case tagNetBW:
				hb.NetworkBandwidth = f
			}
		default:
			return models.Heartbeat{}, &ParseError{Reason: "unknown field type"}
		}
	}

	if !sawServer {
		return models.Heartbeat{}, &ParseError{Reason: "missing required field server_id"}
	}

	hb.Timestamp = time.Unix(int64(sec), int64(nsec)) //nolint:gosec // wire format, bounded by varint decode
	if !hb.Valid() {
		return models.Heartbeat{}, &ParseError{Reason: "storage_used exceeds storage_total or cpu_usage out of range"}
	}
	return hb, nil
}

// ReadFrame reads one length-prefixed frame from r, enforcing
// MaxPayloadSize, and returns the decoded heartbeat.
func ReadFrame(r io.Reader) (models.Heartbeat, error) {
	var lenBuf [LengthPrefixSize]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return models.Heartbeat{}, err
	}

	n := binary.BigEndian.Uint32(lenBuf[:])
	if n == 0 {
		return models.Heartbeat{}, &ParseError{Reason: "zero-length frame"}
	}
	if n > MaxPayloadSize {
		return models.Heartbeat{}, ErrOversizedLength
	}

	body := make([]byte, n)
	if _, err := io.ReadFull(r, body); err != nil {
		return models.Heartbeat{}, &ParseError{Reason: "truncated body: " + err.Error()}
	}

	return Decode(body)
}

func appendVarField(dst []byte, tag uint8, v uint64) []byte {
	dst = append(dst, tag, typeVarUint)
	return appendVarUint(dst, v)
}

func appendStringField(dst []byte, tag uint8, s string) []byte {
	dst = append(dst, tag, typeString)
	dst = appendVarUint(dst, uint64(len(s)))
	return append(dst, s...)
}

func appendFloatField(dst []byte, tag uint8, f float64) []byte {
	dst = append(dst, tag, typeFloat64)
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], math.Float64bits(f))
	return append(dst, buf[:]...)
}

func appendVarUint(dst []byte, v uint64) []byte {
	for v >= 0x80 {
		dst = append(dst, byte(v)|0x80)
		v >>= 7
	}
	return append(dst, byte(v))
}

func readVarUint(b []byte) (uint64, int, error) {
	var v uint64
	var shift uint
	for i, c := range b {
		if shift > 63 {
			return 0, 0, &ParseError{Reason: "varint too long"}
		}
		v |= uint64(c&0x7f) << shift
		if c&0x80 == 0 {
			return v, i + 1, nil
		}
		shift += 7
	}
	return 0, 0, &ParseError{Reason: "truncated varint"}
}

func readString(b []byte) (string, int, error) {
	length, n, err := readVarUint(b)
	if err != nil {
		return "", 0, err
	}
	// length is a full uint64 straight off the wire; a crafted value in
	// [2^63, 2^64) turns into a negative int on cast, which would make the
	// bounds check below pass and the slice expression below panic. Reject
	// anything that can't be a real string length before either happens.
	if length > math.MaxInt32 {
		return "", 0, &ParseError{Reason: "string field length exceeds maximum"}
	}
	l := int(length)
	if n+l > len(b) {
		return "", 0, &ParseError{Reason: "truncated string field"}
	}
	return string(b[n : n+l]), n + l, nil
}
