package docstore

// Tuple keys are sequences of elements (string or int64), encoded so that
// whole-key byte comparison matches the declared tuple ordering. This is
// what every Find/Count/ForEach range scan relies on: the prefix and the
// upper bound of a scan are themselves encoded tuples, and bbolt/sqlite
// both do plain byte-wise ordering on keys.
//
// Each element is tagged so decoding never guesses a type:
//   - tagInt (0x01): 8 bytes big-endian of uint64(v) ^ (1<<63), the
//     classic sign-flip trick so negative integers sort before positive
//     ones under plain byte comparison.
//   - tagString (0x02): UTF-8 bytes with 0x00 escaped as 0x00 0xFF,
//     terminated by 0x00 0x00. Escaping keeps every string-tagged run
//     strictly less than the terminator, so concatenated elements still
//     compare correctly element-by-element.
//
// tagInt < tagString so within a single position, an int64 element always
// sorts before a string element, matching the declared element order.
const (
	tagInt    byte = 0x01
	tagString byte = 0x02
)

// appendTupleInt appends an int64 tuple element.
func appendTupleInt(buf []byte, v int64) []byte {
	buf = append(buf, tagInt)
	u := uint64(v) ^ (1 << 63)
	return append(buf,
		byte(u>>56), byte(u>>48), byte(u>>40), byte(u>>32),
		byte(u>>24), byte(u>>16), byte(u>>8), byte(u))
}

// appendTupleString appends a string tuple element.
func appendTupleString(buf []byte, s string) []byte {
	buf = append(buf, tagString)
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c == 0x00 {
			buf = append(buf, 0x00, 0xFF)
		} else {
			buf = append(buf, c)
		}
	}
	return append(buf, 0x00, 0x00)
}

// TupleElem is one element of an ordered key tuple: either a string or an
// int64, never both. The zero value is the empty string element.
type TupleElem struct {
	Str   string
	Int   int64
	IsInt bool
}

func StringElem(s string) TupleElem { return TupleElem{Str: s} }
func IntElem(v int64) TupleElem     { return TupleElem{Int: v, IsInt: true} }

// EncodeTuple appends the ordered encoding of elems to buf and returns the
// extended slice.
func EncodeTuple(buf []byte, elems ...TupleElem) []byte {
	for _, e := range elems {
		if e.IsInt {
			buf = appendTupleInt(buf, e.Int)
		} else {
			buf = appendTupleString(buf, e.Str)
		}
	}
	return buf
}

// DecodeTuple parses every element out of a tuple-encoded key. Used for
// diagnostics and for splitting an index key back into its declared
// property values.
func DecodeTuple(data []byte) ([]TupleElem, error) {
	var elems []TupleElem
	for len(data) > 0 {
		tag := data[0]
		data = data[1:]
		switch tag {
		case tagInt:
			if len(data) < 8 {
				return nil, dataErrf(data, 0, nil, "truncated int tuple element")
			}
			var u uint64
			for i := 0; i < 8; i++ {
				u = u<<8 | uint64(data[i])
			}
			elems = append(elems, IntElem(int64(u^(1<<63))))
			data = data[8:]
		case tagString:
			var out []byte
			i := 0
			for {
				if i+1 >= len(data) {
					return nil, dataErrf(data, i, nil, "unterminated string tuple element")
				}
				if data[i] == 0x00 {
					if data[i+1] == 0x00 {
						i += 2
						break
					}
					if data[i+1] == 0xFF {
						out = append(out, 0x00)
						i += 2
						continue
					}
					return nil, dataErrf(data, i, nil, "invalid escape in string tuple element")
				}
				out = append(out, data[i])
				i++
			}
			elems = append(elems, StringElem(string(out)))
			data = data[i:]
		default:
			return nil, dataErrf(data, -1, nil, "unknown tuple tag 0x%02x", tag)
		}
	}
	return elems, nil
}
