package wsftp

// The metadata sub-block rides in the extended attribute pair named by
// extMetadata.  It is a self-delimited sequence of typed entries:
//
//	string  key      (zero length terminates the block)
//	uint8   tag
//	...     value    (per tag)
//
// Unknown tags carry a single string value and are skipped.

// value tags on the wire
const (
	metaNull   = 0
	metaBool   = 1
	metaInt    = 2
	metaString = 3
	metaJson   = 4
)

// MetaKind discriminates the value held by a MetaValue.
type MetaKind uint8

const (
	MetaNull   MetaKind = metaNull
	MetaBool   MetaKind = metaBool
	MetaInt    MetaKind = metaInt
	MetaString MetaKind = metaString

	// MetaJson is a string the producer declared to be JSON.  The codec
	// does not parse it; consumers decide what to do with it.
	MetaJson MetaKind = metaJson
)

// A MetaValue is one tagged value from the metadata sub-block.
type MetaValue struct {
	Kind MetaKind
	Bool bool
	Int  int64
	Str  string // MetaString and MetaJson
}

// A MetaEntry pairs a key with its value.  Entry order is preserved.
type MetaEntry struct {
	Key   string
	Value MetaValue
}

// Metadata is the decoded extended metadata of a FileStat.
type Metadata []MetaEntry

// Get returns the value stored under key.
func (m Metadata) Get(key string) (v MetaValue, found bool) {
	for i := range m {
		if m[i].Key == key {
			return m[i].Value, true
		}
	}
	return
}

// Int returns the integer stored under key, if there is one.
func (m Metadata) Int(key string) (v int64, found bool) {
	mv, found := m.Get(key)
	if !found || MetaInt != mv.Kind {
		return 0, false
	}
	return mv.Int, true
}

// String returns the string (or JSON text) stored under key, if any.
func (m Metadata) String(key string) (v string, found bool) {
	mv, found := m.Get(key)
	if !found || (MetaString != mv.Kind && MetaJson != mv.Kind) {
		return "", false
	}
	return mv.Str, true
}

func encodeMetadata(m Metadata) []byte {
	w := newInnerWriter(256, maxWriteBlockLength)
	for i := range m {
		if 0 == len(m[i].Key) {
			continue // a blank key would terminate the block early
		}
		w.writeString(m[i].Key)
		w.writeUint8(uint8(m[i].Value.Kind))
		switch m[i].Value.Kind {
		case MetaNull:
		case MetaBool:
			if m[i].Value.Bool {
				w.writeUint8(1)
			} else {
				w.writeUint8(0)
			}
		case MetaInt:
			w.writeInt64(m[i].Value.Int)
		case MetaString, MetaJson:
			w.writeString(m[i].Value.Str)
		default:
			panic("unencodable metadata value kind")
		}
	}
	w.writeString("") // terminator
	return w.bytes()
}

func decodeMetadata(r *packetReader) (m Metadata, err error) {
	for {
		var key string
		key, err = r.readString()
		if err != nil || 0 == len(key) {
			return
		}
		var tag uint8
		tag, err = r.readUint8()
		if err != nil {
			return
		}
		v := MetaValue{Kind: MetaKind(tag)}
		switch tag {
		case metaNull:
		case metaBool:
			var b uint8
			if b, err = r.readUint8(); err != nil {
				return
			}
			v.Bool = 0 != b
		case metaInt:
			if v.Int, err = r.readInt64(); err != nil {
				return
			}
		case metaString, metaJson:
			if v.Str, err = r.readString(); err != nil {
				return
			}
		default:
			// tolerate values from newer producers
			if _, err = r.readString(); err != nil {
				return
			}
			continue
		}
		m = append(m, MetaEntry{Key: key, Value: v})
	}
}
