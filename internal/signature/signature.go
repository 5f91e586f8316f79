// Package signature verifies telemetry integrity.
//
// A device signs every telemetry message with the secret it received at
// pairing time. The same secret identifies the device session, so a
// Scheme only ever sees it as an opaque key: separating the session
// credential from the signing key later means changing the key passed in
// by the caller, not the schemes.
package signature

import (
	"crypto/sha1" //nolint:gosec // firmware compatibility
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"strconv"

	"github.com/zeebo/blake3"
)

// Payload is the signed part of a telemetry message.
type Payload struct {
	Level  int
	Status string
	RSSI   *int
}

// Fields renders the payload in the stable pipe-delimited order.
// Absent values render as empty strings.
func (p Payload) Fields() string {
	rssi := ""
	if p.RSSI != nil {
		rssi = strconv.Itoa(*p.RSSI)
	}

	return strconv.Itoa(p.Level) + "|" + p.Status + "|" + rssi
}

// Scheme signs and verifies payloads.
type Scheme interface {
	Name() string
	Sign(key string, p Payload) string
	Verify(key string, p Payload, signature string) bool
}

// New returns scheme by name.
func New(name string) (Scheme, error) {
	switch name {
	case "", "sha1":
		return SHA1{}, nil
	case "blake3":
		return Blake3{}, nil
	default:
		return nil, fmt.Errorf("unknown signature scheme %q", name)
	}
}

// SHA1 is the digest deployed node firmware computes:
// hex(sha1(level|status|rssi|secret)).
type SHA1 struct{}

func (SHA1) Name() string { return "sha1" }

func (SHA1) Sign(key string, p Payload) string {
	sum := sha1.Sum([]byte(p.Fields() + "|" + key)) //nolint:gosec
	return hex.EncodeToString(sum[:])
}

func (s SHA1) Verify(key string, p Payload, signature string) bool {
	return equal(s.Sign(key, p), signature)
}

// Blake3 is a keyed BLAKE3 hash of level|status|rssi. The 32 byte key is
// derived from the secret.
type Blake3 struct{}

func (Blake3) Name() string { return "blake3" }

func (Blake3) Sign(key string, p Payload) string {
	k := blake3.Sum256([]byte(key))

	h, err := blake3.NewKeyed(k[:])
	if err != nil {
		// the key is always 32 bytes long.
		panic(err)
	}

	_, _ = h.WriteString(p.Fields())

	return hex.EncodeToString(h.Sum(nil))
}

func (s Blake3) Verify(key string, p Payload, signature string) bool {
	return equal(s.Sign(key, p), signature)
}

// equal compares hex digests in constant time. Mismatched or malformed
// input is never equal.
func equal(expected, got string) bool {
	want, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}

	have, err := hex.DecodeString(got)
	if err != nil || len(have) != len(want) {
		return false
	}

	return subtle.ConstantTimeCompare(want, have) == 1
}
