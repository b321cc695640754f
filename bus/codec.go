package bus

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// BusMsg is the tagged union of every message family carried on the bus:
// CtlMsg, InfoMsg, and SyncMsg. Each concrete payload type knows its own
// stable integer tag and family so the transport never needs a type
// switch outside this package.
type BusMsg interface {
	// Family reports which lane family this payload belongs to.
	Family() Family

	// Tag is the stable small integer identifying this variant on the
	// wire, e.g. Hello=0, GetInfo=100, Progress=1002.
	Tag() uint16

	// MarshalPayload encodes the variant's body (not the frame header).
	MarshalPayload() ([]byte, error)
}

// decoders maps a type tag to a function that parses a payload back into a
// BusMsg. Each family file registers its own variants in an init().
var decoders = map[uint16]func([]byte) (BusMsg, error){}

func registerTag(tag uint16, decode func([]byte) (BusMsg, error)) {
	if _, exists := decoders[tag]; exists {
		panic(fmt.Sprintf("bus: duplicate registration for tag %d", tag))
	}
	decoders[tag] = decode
}

// UnknownMsg is returned by Decode when a frame carries a tag this build
// does not recognize. Per the non_exhaustive request enum design note,
// receiving one is never fatal: callers log it and drop it, preserving
// forward compatibility with a newer peer or sibling service.
type UnknownMsg struct {
	Tag_  uint16
	Body  []byte
}

// Family returns FamilyCtl; UnknownMsg has no real family, but it must
// implement BusMsg, and treating it as the lowest-privilege family keeps it
// from ever being dispatched as Sync/Info traffic by accident.
func (u UnknownMsg) Family() Family { return FamilyCtl }

// Tag returns the unrecognized wire tag.
func (u UnknownMsg) Tag() uint16 { return u.Tag_ }

// MarshalPayload re-emits the original unparsed bytes verbatim.
func (u UnknownMsg) MarshalPayload() ([]byte, error) { return u.Body, nil }

// Encode writes msg as a single length-delimited frame: u16 type_tag || u32
// length || body, all little-endian, per spec section 6.
func Encode(w io.Writer, msg BusMsg) error {
	body, err := msg.MarshalPayload()
	if err != nil {
		return fmt.Errorf("bus: marshaling %T: %w", msg, err)
	}

	var header [6]byte
	binary.LittleEndian.PutUint16(header[0:2], msg.Tag())
	binary.LittleEndian.PutUint32(header[2:6], uint32(len(body)))

	if _, err := w.Write(header[:]); err != nil {
		return fmt.Errorf("bus: writing frame header: %w", err)
	}
	if _, err := w.Write(body); err != nil {
		return fmt.Errorf("bus: writing frame body: %w", err)
	}
	return nil
}

// EncodeBytes is a convenience wrapper returning the full encoded frame.
func EncodeBytes(msg BusMsg) ([]byte, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, msg); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decode reads a single frame from r and parses it. An unrecognized tag
// yields (UnknownMsg, nil), never an error, so the caller's forward-
// compatibility "log and drop" path can run uniformly.
func Decode(r io.Reader) (BusMsg, error) {
	var header [6]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("bus: reading frame header: %w", err)
	}
	tag := binary.LittleEndian.Uint16(header[0:2])
	length := binary.LittleEndian.Uint32(header[2:6])

	body := make([]byte, length)
	if _, err := io.ReadFull(r, body); err != nil {
		return nil, fmt.Errorf("bus: reading frame body: %w", err)
	}

	decode, ok := decoders[tag]
	if !ok {
		return UnknownMsg{Tag_: tag, Body: body}, nil
	}
	msg, err := decode(body)
	if err != nil {
		return nil, fmt.Errorf("bus: decoding tag %d: %w", tag, err)
	}
	return msg, nil
}

// DecodeBytes decodes a single frame from a byte slice containing exactly
// one frame.
func DecodeBytes(b []byte) (BusMsg, error) {
	return Decode(bytes.NewReader(b))
}

// --- small serialization helpers shared by ctl.go/info.go/sync.go ---

func putUint32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func putUint64(buf *bytes.Buffer, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	buf.Write(b[:])
}

func putBytes(buf *bytes.Buffer, b []byte) {
	putUint32(buf, uint32(len(b)))
	buf.Write(b)
}

func putString(buf *bytes.Buffer, s string) {
	putBytes(buf, []byte(s))
}

func readUint32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func readUint64(r *bytes.Reader) (uint64, error) {
	var b [8]byte
	if _, err := io.ReadFull(r, b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

func readBytes(r *bytes.Reader) ([]byte, error) {
	n, err := readUint32(r)
	if err != nil {
		return nil, err
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return b, nil
}

func readString(r *bytes.Reader) (string, error) {
	b, err := readBytes(r)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
