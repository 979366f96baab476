// Package ticket implements the opaque capability string that resolves a
// shared blob: a content hash plus remote-location hints, encoded as
// deterministic CBOR wrapped in URL-safe base64. Possession of a ticket
// implies authorization to fetch the content it names.
package ticket

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// ticketPrefix versions the wire encoding. Changing the CBOR layout
// requires a new prefix.
const ticketPrefix = "bd1"

// ErrInvalid marks a ticket that cannot be decoded. Distinct from
// content-not-found: a well-formed ticket for missing content is not
// invalid.
var ErrInvalid = errors.New("invalid ticket")

// Ticket resolves to exactly one content hash. Addrs are origin base
// URLs a client may contact to make the content locally available.
type Ticket struct {
	Hash  string   `cbor:"1,keyasint"`
	Size  int64    `cbor:"2,keyasint,omitempty"`
	Addrs []string `cbor:"3,keyasint,omitempty"`
}

// encMode uses Core Deterministic Encoding so the same ticket always
// produces identical bytes.
var encMode cbor.EncMode

var decMode cbor.DecMode

func init() {
	var err error
	encMode, err = cbor.CoreDetEncOptions().EncMode()
	if err != nil {
		panic("ticket: CBOR encoder initialization failed: " + err.Error())
	}
	decMode, err = cbor.DecOptions{}.DecMode()
	if err != nil {
		panic("ticket: CBOR decoder initialization failed: " + err.Error())
	}
}

// Encode serializes a ticket to its opaque string form.
func Encode(t Ticket) (string, error) {
	if strings.TrimSpace(t.Hash) == "" {
		return "", fmt.Errorf("ticket hash is required")
	}
	raw, err := encMode.Marshal(t)
	if err != nil {
		return "", fmt.Errorf("encode ticket: %w", err)
	}
	return ticketPrefix + base64.RawURLEncoding.EncodeToString(raw), nil
}

// Decode parses an opaque ticket string. All malformations are reported
// as ErrInvalid so callers can distinguish bad capability from missing
// content.
func Decode(encoded string) (Ticket, error) {
	var zero Ticket
	encoded = strings.TrimSpace(encoded)
	if !strings.HasPrefix(encoded, ticketPrefix) {
		return zero, fmt.Errorf("%w: missing %q prefix", ErrInvalid, ticketPrefix)
	}
	raw, err := base64.RawURLEncoding.DecodeString(encoded[len(ticketPrefix):])
	if err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	var t Ticket
	if err := decMode.Unmarshal(raw, &t); err != nil {
		return zero, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if strings.TrimSpace(t.Hash) == "" {
		return zero, fmt.Errorf("%w: empty hash", ErrInvalid)
	}
	return t, nil
}
