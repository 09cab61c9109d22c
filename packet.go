package wsftp

import (
	"encoding/binary"
	"errors"
	"fmt"
)

var (
	errShortPacket = errors.New("packet too short")

	bigEnd_ = binary.BigEndian
)

// packetWriter builds one outbound frame:
//
//	uint32  length  (bytes that follow, back-patched by finish)
//	uint8   type
//	uint32  id      (version for INIT)
//	...     payload
//
// The writer is sized by the engine so that a well-formed request can never
// outgrow it; exceeding the limit is a bug, and the writer panics.
type packetWriter struct {
	buf   []byte
	limit int // payload bound, not counting the frame header
}

func newPacketWriter(hint, limit int) *packetWriter {
	if hint > limit {
		hint = limit
	}
	return &packetWriter{
		buf:   make([]byte, frameHeaderLen, frameHeaderLen+hint),
		limit: limit,
	}
}

// newInnerWriter builds a headerless block, used for nested structures such
// as the metadata sub-block.
func newInnerWriter(hint, limit int) *packetWriter {
	return &packetWriter{
		buf:   make([]byte, 0, hint),
		limit: limit,
	}
}

func (w *packetWriter) checkRoom(amount int) {
	if len(w.buf)+amount > w.limit+frameHeaderLen {
		panic(fmt.Sprintf("sftp packet overflow: %d + %d exceeds %d",
			len(w.buf), amount, w.limit))
	}
}

func (w *packetWriter) writeUint8(v uint8) {
	w.checkRoom(1)
	w.buf = append(w.buf, v)
}

func (w *packetWriter) writeUint16(v uint16) {
	w.checkRoom(2)
	w.buf = bigEnd_.AppendUint16(w.buf, v)
}

func (w *packetWriter) writeUint32(v uint32) {
	w.checkRoom(4)
	w.buf = bigEnd_.AppendUint32(w.buf, v)
}

func (w *packetWriter) writeUint64(v uint64) {
	w.checkRoom(8)
	w.buf = bigEnd_.AppendUint64(w.buf, v)
}

func (w *packetWriter) writeInt32(v int32) { w.writeUint32(uint32(v)) }

func (w *packetWriter) writeInt64(v int64) { w.writeUint64(uint64(v)) }

func (w *packetWriter) writeString(v string) {
	w.checkRoom(4 + len(v))
	w.buf = bigEnd_.AppendUint32(w.buf, uint32(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *packetWriter) writeBytes(v []byte) {
	w.checkRoom(4 + len(v))
	w.buf = bigEnd_.AppendUint32(w.buf, uint32(len(v)))
	w.buf = append(w.buf, v...)
}

func (w *packetWriter) writeRaw(v []byte) {
	w.checkRoom(len(v))
	w.buf = append(w.buf, v...)
}

// bytes returns the accumulated payload of a headerless inner block.
func (w *packetWriter) bytes() []byte { return w.buf }

// finish back-patches the length prefix, stamps the type and request id
// (or version, for the handshake), and yields the completed frame.
// The frame must not be modified afterward.
func (w *packetWriter) finish(typ uint8, id uint32) []byte {
	bigEnd_.PutUint32(w.buf[:4], uint32(len(w.buf)-4))
	w.buf[4] = typ
	bigEnd_.PutUint32(w.buf[5:9], id)
	return w.buf
}

// packetReader walks one inbound frame.  All reads are bounds-checked;
// running off the end of the frame is a malformed packet, reported as
// errShortPacket and surfaced as SSH_FX_BAD_MESSAGE.
type packetReader struct {
	buf []byte
	pos int
	cmd *CommandInfo // attached by the dispatcher for error enrichment
}

func (r *packetReader) length() int    { return len(r.buf) }
func (r *packetReader) position() int  { return r.pos }
func (r *packetReader) remaining() int { return len(r.buf) - r.pos }

func (r *packetReader) readUint8() (v uint8, err error) {
	if r.remaining() < 1 {
		return 0, errShortPacket
	}
	v = r.buf[r.pos]
	r.pos++
	return
}

func (r *packetReader) readUint16() (v uint16, err error) {
	if r.remaining() < 2 {
		return 0, errShortPacket
	}
	v = bigEnd_.Uint16(r.buf[r.pos:])
	r.pos += 2
	return
}

func (r *packetReader) readUint32() (v uint32, err error) {
	if r.remaining() < 4 {
		return 0, errShortPacket
	}
	v = bigEnd_.Uint32(r.buf[r.pos:])
	r.pos += 4
	return
}

func (r *packetReader) readUint64() (v uint64, err error) {
	if r.remaining() < 8 {
		return 0, errShortPacket
	}
	v = bigEnd_.Uint64(r.buf[r.pos:])
	r.pos += 8
	return
}

func (r *packetReader) readInt32() (int32, error) {
	v, err := r.readUint32()
	return int32(v), err
}

func (r *packetReader) readInt64() (int64, error) {
	v, err := r.readUint64()
	return int64(v), err
}

func (r *packetReader) readString() (string, error) {
	b, err := r.readBytes()
	return string(b), err
}

// readBytes returns a length-prefixed run as a view into the frame.
func (r *packetReader) readBytes() (v []byte, err error) {
	n, err := r.readUint32()
	if err != nil {
		return
	}
	if uint64(n) > uint64(r.remaining()) {
		return nil, errShortPacket
	}
	v = r.buf[r.pos : r.pos+int(n)]
	r.pos += int(n)
	return
}

// readData returns either a length-prefixed run, or, when raw, the entire
// remainder of the frame.
func (r *packetReader) readData(raw bool) (v []byte, err error) {
	if raw {
		v = r.buf[r.pos:]
		r.pos = len(r.buf)
		return
	}
	return r.readBytes()
}

// readStructuredData peels a length-prefixed inner frame and returns a
// reader scoped to it.  The cursor advances past the inner frame.
func (r *packetReader) readStructuredData() (inner *packetReader, err error) {
	b, err := r.readBytes()
	if err != nil {
		return
	}
	return &packetReader{buf: b, cmd: r.cmd}, nil
}
