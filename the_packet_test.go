package wsftp

import (
	"testing"
	"testing/quick"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacketWriterFraming(t *testing.T) {
	w := newPacketWriter(64, maxWriteBlockLength)
	w.writeString("/some/path")
	w.writeUint32(7)
	frame := w.finish(sshFxpOpen, 42)

	require.True(t, len(frame) >= frameHeaderLen)
	assert.Equal(t, uint32(len(frame)-4), bigEnd_.Uint32(frame[:4]),
		"length prefix must count every byte that follows it")
	assert.Equal(t, uint8(sshFxpOpen), frame[4])
	assert.Equal(t, uint32(42), bigEnd_.Uint32(frame[5:9]))
}

func TestPacketRoundTrips(t *testing.T) {

	rt := func(write func(w *packetWriter), read func(r *packetReader) error) {
		w := newPacketWriter(64, maxWriteBlockLength)
		write(w)
		frame := w.finish(sshFxpData, 1)
		r := &packetReader{buf: frame, pos: frameHeaderLen}
		require.NoError(t, read(r))
		assert.Equal(t, 0, r.remaining())
	}

	err := quick.Check(func(v uint8) bool {
		var got uint8
		rt(func(w *packetWriter) { w.writeUint8(v) },
			func(r *packetReader) (err error) { got, err = r.readUint8(); return })
		return got == v
	}, nil)
	require.NoError(t, err)

	err = quick.Check(func(v uint16) bool {
		var got uint16
		rt(func(w *packetWriter) { w.writeUint16(v) },
			func(r *packetReader) (err error) { got, err = r.readUint16(); return })
		return got == v
	}, nil)
	require.NoError(t, err)

	err = quick.Check(func(v uint32) bool {
		var got uint32
		rt(func(w *packetWriter) { w.writeUint32(v) },
			func(r *packetReader) (err error) { got, err = r.readUint32(); return })
		return got == v
	}, nil)
	require.NoError(t, err)

	err = quick.Check(func(v int32) bool {
		var got int32
		rt(func(w *packetWriter) { w.writeInt32(v) },
			func(r *packetReader) (err error) { got, err = r.readInt32(); return })
		return got == v
	}, nil)
	require.NoError(t, err)

	err = quick.Check(func(v int64) bool {
		var got int64
		rt(func(w *packetWriter) { w.writeInt64(v) },
			func(r *packetReader) (err error) { got, err = r.readInt64(); return })
		return got == v
	}, nil)
	require.NoError(t, err)

	err = quick.Check(func(v []byte) bool {
		if len(v) > 1024 {
			v = v[:1024]
		}
		var got []byte
		rt(func(w *packetWriter) { w.writeBytes(v) },
			func(r *packetReader) (err error) { got, err = r.readBytes(); return })
		return string(got) == string(v)
	}, nil)
	require.NoError(t, err)
}

func TestPacketReaderBounds(t *testing.T) {
	r := &packetReader{buf: []byte{0, 0}}
	_, err := r.readUint32()
	assert.ErrorIs(t, err, errShortPacket)

	// a string length running past the frame is malformed, not a crash
	r = &packetReader{buf: []byte{0, 0, 0, 9, 'h', 'i'}}
	_, err = r.readString()
	assert.ErrorIs(t, err, errShortPacket)
}

func TestPacketReaderCursor(t *testing.T) {
	w := newPacketWriter(64, maxWriteBlockLength)
	w.writeUint32(99)
	w.writeString("abc")
	frame := w.finish(sshFxpData, 1)

	r := &packetReader{buf: frame, pos: frameHeaderLen}
	assert.Equal(t, len(frame), r.length())
	assert.Equal(t, frameHeaderLen, r.position())

	v, err := r.readUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(99), v)
	assert.Equal(t, frameHeaderLen+4, r.position())

	s, err := r.readString()
	require.NoError(t, err)
	assert.Equal(t, "abc", s)
	assert.Equal(t, 0, r.remaining())
}

func TestPacketStructuredData(t *testing.T) {
	inner := newInnerWriter(32, 1024)
	inner.writeString("nested")
	inner.writeUint32(7)

	w := newPacketWriter(64, maxWriteBlockLength)
	w.writeUint32(1) // leading field
	w.writeBytes(inner.bytes())
	w.writeString("trailing")
	frame := w.finish(sshFxpExtendedReply, 5)

	r := &packetReader{buf: frame, pos: frameHeaderLen}
	_, err := r.readUint32()
	require.NoError(t, err)

	nested, err := r.readStructuredData()
	require.NoError(t, err)
	s, err := nested.readString()
	require.NoError(t, err)
	assert.Equal(t, "nested", s)
	v, err := nested.readUint32()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), v)
	assert.Equal(t, 0, nested.remaining())

	// outer cursor skipped the whole inner frame
	s, err = r.readString()
	require.NoError(t, err)
	assert.Equal(t, "trailing", s)
}

func TestPacketReadDataRaw(t *testing.T) {
	w := newPacketWriter(64, maxWriteBlockLength)
	w.writeString("prefixed")
	w.writeRaw([]byte{1, 2, 3})
	frame := w.finish(sshFxpData, 1)

	r := &packetReader{buf: frame, pos: frameHeaderLen}
	b, err := r.readData(false)
	require.NoError(t, err)
	assert.Equal(t, "prefixed", string(b))

	b, err = r.readData(true)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, b)
	assert.Equal(t, 0, r.remaining())
}

func TestPacketWriterOverflowPanics(t *testing.T) {
	w := newPacketWriter(0, 16)
	assert.Panics(t, func() {
		w.writeString("this string does not fit in sixteen bytes of payload")
	})
}
