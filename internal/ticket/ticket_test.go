package ticket

import (
	"encoding/base64"
	"errors"
	"strings"
	"testing"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	original := Ticket{
		Hash:  "c0ffee00aa55",
		Size:  12345,
		Addrs: []string{"http://127.0.0.1:7411", "http://10.0.0.2:7411"},
	}

	encoded, err := Encode(original)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(encoded, "bd1") {
		t.Fatalf("expected bd1 prefix, got %q", encoded)
	}

	decoded, err := Decode(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.Hash != original.Hash {
		t.Fatalf("hash mismatch: got %q want %q", decoded.Hash, original.Hash)
	}
	if decoded.Size != original.Size {
		t.Fatalf("size mismatch: got %d want %d", decoded.Size, original.Size)
	}
	if len(decoded.Addrs) != 2 || decoded.Addrs[0] != original.Addrs[0] {
		t.Fatalf("addrs mismatch: %#v", decoded.Addrs)
	}
}

func TestEncodeDeterministic(t *testing.T) {
	tk := Ticket{Hash: "abcd", Size: 9, Addrs: []string{"http://a", "http://b"}}
	first, err := Encode(tk)
	if err != nil {
		t.Fatalf("encode first: %v", err)
	}
	second, err := Encode(tk)
	if err != nil {
		t.Fatalf("encode second: %v", err)
	}
	if first != second {
		t.Fatalf("encoding is not deterministic: %q vs %q", first, second)
	}
}

func TestEncodeRequiresHash(t *testing.T) {
	if _, err := Encode(Ticket{Size: 10}); err == nil {
		t.Fatal("expected error for empty hash")
	}
}

func TestDecodeMalformed(t *testing.T) {
	cases := map[string]string{
		"empty":        "",
		"wrong prefix": "zz1abcdef",
		"bad base64":   "bd1!!!not-base64!!!",
		"bad cbor":     "bd1AAAA",
	}
	for name, input := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(input)
			if !errors.Is(err, ErrInvalid) {
				t.Fatalf("expected ErrInvalid, got %v", err)
			}
		})
	}
}

func TestDecodeEmptyHash(t *testing.T) {
	raw, err := encMode.Marshal(Ticket{Size: 5})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	input := ticketPrefix + base64.RawURLEncoding.EncodeToString(raw)
	if _, err := Decode(input); !errors.Is(err, ErrInvalid) {
		t.Fatalf("expected ErrInvalid for hashless ticket, got %v", err)
	}
}
