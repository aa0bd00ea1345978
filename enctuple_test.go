package docstore

import (
	"bytes"
	"sort"
	"testing"
)

func TestEncodeTupleOrderPreserving(t *testing.T) {
	elems := [][]TupleElem{
		{IntElem(-100)},
		{IntElem(-1)},
		{IntElem(0)},
		{IntElem(1)},
		{IntElem(100)},
		{StringElem("")},
		{StringElem("a")},
		{StringElem("aa")},
		{StringElem("b")},
	}
	var encoded [][]byte
	for _, e := range elems {
		encoded = append(encoded, EncodeTuple(nil, e...))
	}
	for i := 1; i < len(encoded); i++ {
		if bytes.Compare(encoded[i-1], encoded[i]) >= 0 {
			t.Fatalf("encoding %v did not sort before %v", elems[i-1], elems[i])
		}
	}
}

func TestEncodeTupleIntBeforeString(t *testing.T) {
	intEnc := EncodeTuple(nil, IntElem(1<<62))
	strEnc := EncodeTuple(nil, StringElem(""))
	if bytes.Compare(intEnc, strEnc) >= 0 {
		t.Fatalf("int element did not sort before string element")
	}
}

func TestTupleRoundTrip(t *testing.T) {
	elems := []TupleElem{StringElem("hello"), IntElem(-42), StringElem("wo\x00rld")}
	buf := EncodeTuple(nil, elems...)
	decoded, err := DecodeTuple(buf)
	if err != nil {
		t.Fatalf("DecodeTuple: %v", err)
	}
	deepEqual(t, decoded, elems)
}

func TestStringEscapingPreservesOrder(t *testing.T) {
	strs := []string{"a", "a\x00", "a\x00b", "ab", "b"}
	sorted := append([]string(nil), strs...)
	sort.Strings(sorted)

	var encoded [][]byte
	for _, s := range sorted {
		encoded = append(encoded, appendTupleString(nil, s))
	}
	for i := 1; i < len(encoded); i++ {
		if bytes.Compare(encoded[i-1], encoded[i]) > 0 {
			t.Fatalf("encoded order diverged from string order at %q vs %q", sorted[i-1], sorted[i])
		}
	}
}

func TestDecodeTupleTruncated(t *testing.T) {
	if _, err := DecodeTuple([]byte{tagInt, 0x01, 0x02}); err == nil {
		t.Fatalf("expected error decoding truncated int element")
	}
	if _, err := DecodeTuple([]byte{tagString, 'a'}); err == nil {
		t.Fatalf("expected error decoding unterminated string element")
	}
	if _, err := DecodeTuple([]byte{0xEE}); err == nil {
		t.Fatalf("expected error decoding unknown tag")
	}
}
