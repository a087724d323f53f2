package wire

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"
	"time"
)

func TestEncodeDecodeKeepsFields(t *testing.T) {
	exp := time.Unix(1700000000, 12345)
	cases := []struct {
		gen     uint64
		exp     time.Time
		payload []byte
	}{
		{0, time.Time{}, nil},
		{42, exp, []byte("hello")},
		{math.MaxUint64, exp, []byte{0, 1, 2, 3, 4}},
	}
	for _, tc := range cases {
		e, err := Decode(Encode(tc.gen, tc.exp, tc.payload))
		if err != nil {
			t.Fatalf("Decode: %v", err)
		}
		if e.Gen != tc.gen {
			t.Fatalf("gen mismatch: got %d want %d", e.Gen, tc.gen)
		}
		if !e.ExpiresAt.Equal(tc.exp) {
			t.Fatalf("expiry mismatch: got %v want %v", e.ExpiresAt, tc.exp)
		}
		if !bytes.Equal(e.Payload, tc.payload) {
			t.Fatalf("payload mismatch: got %x want %x", e.Payload, tc.payload)
		}
	}
}

func TestDecodeRejectsTrailingBytes(t *testing.T) {
	enc := Encode(7, time.Time{}, []byte("x"))
	enc = append(enc, 0xDE, 0xAD)
	if _, err := Decode(enc); err == nil {
		t.Fatalf("expected error on trailing bytes")
	}
}

func TestDecodeRejectsBadHeaders(t *testing.T) {
	good := Encode(1, time.Time{}, []byte("abc"))

	short := good[:headerLen-1]
	if _, err := Decode(short); err != ErrCorrupt {
		t.Fatalf("short header: got %v", err)
	}

	badMagic := append([]byte(nil), good...)
	badMagic[0] = 'X'
	if _, err := Decode(badMagic); err != ErrCorrupt {
		t.Fatalf("bad magic: got %v", err)
	}

	badVer := append([]byte(nil), good...)
	badVer[4] = 9
	if _, err := Decode(badVer); err != ErrCorrupt {
		t.Fatalf("bad version: got %v", err)
	}

	badLen := append([]byte(nil), good...)
	binary.BigEndian.PutUint32(badLen[headerLen-4:headerLen], 99)
	if _, err := Decode(badLen); err != ErrCorrupt {
		t.Fatalf("bad length: got %v", err)
	}
}

func TestExpired(t *testing.T) {
	now := time.Now()
	if (Entry{}).Expired(now) {
		t.Fatalf("zero expiry must never expire")
	}
	if !(Entry{ExpiresAt: now}).Expired(now) {
		t.Fatalf("entry at its expiry instant must be expired")
	}
	if (Entry{ExpiresAt: now.Add(time.Second)}).Expired(now) {
		t.Fatalf("future expiry must not be expired")
	}
}
