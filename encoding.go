package docstore

import (
	"bytes"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// encodeValue serializes v (an Item, a property value, or a store/
// collection/index descriptor) with msgpack, sorting map keys so two
// semantically equal items always produce identical bytes — required
// since item values can themselves become comparison keys in projections.
func encodeValue(buf []byte, v any) []byte {
	var bb bytesBuilder
	enc := msgpack.GetEncoder()
	enc.Reset(&bb)
	enc.SetSortMapKeys(true)
	err := enc.Encode(v)
	msgpack.PutEncoder(enc)
	if err != nil {
		panic(fmt.Errorf("failed to encode %T using msgpack: %w", v, err))
	}
	return appendRaw(buf, bb.Buf)
}

// decodeValue decodes buf into *out.
func decodeValue(buf []byte, out any) error {
	var r bytes.Reader
	r.Reset(buf)
	dec := msgpack.GetDecoder()
	dec.Reset(&r)
	err := dec.Decode(out)
	msgpack.PutDecoder(dec)
	if err != nil {
		return dataErrf(buf, 0, err, "failed to decode msgpack into %T", out)
	}
	return nil
}

// decodeItem decodes buf into a fresh Item (map[string]any), following
// msgpack's generic-interface decoding so arbitrary caller items round-trip
// without the caller needing to pre-declare a struct shape.
func decodeItem(buf []byte) (Item, error) {
	var m map[string]any
	if err := decodeValue(buf, &m); err != nil {
		return nil, err
	}
	return Item(m), nil
}

type bytesBuilder struct {
	Buf []byte
}

func (b *bytesBuilder) Write(p []byte) (int, error) {
	b.Buf = appendRaw(b.Buf, p)
	return len(p), nil
}
