package models

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
)

const secretMask = "**********"

// Secret holds a plaintext value (password) that must never reach logs or responses.
// Every textual rendering is masked, use Value to read the plaintext.
type Secret struct {
	value string
}

func NewSecret(value string) Secret {
	return Secret{value: value}
}

func (s Secret) Value() string {
	return s.value
}

func (s Secret) IsEmpty() bool {
	return s.value == ""
}

// Equal compares plaintext values in constant time
func (s Secret) Equal(other Secret) bool {
	return subtle.ConstantTimeCompare([]byte(s.value), []byte(other.value)) == 1
}

func (s Secret) String() string {
	return secretMask
}

func (s Secret) GoString() string {
	return "Secret(" + secretMask + ")"
}

// Format masks the value for every verb, including %d, %x and %q that ignore String()
func (s Secret) Format(f fmt.State, verb rune) {
	switch {
	case verb == 'v' && f.Flag('#'):
		_, _ = f.Write([]byte(s.GoString()))
	default:
		_, _ = f.Write([]byte(secretMask))
	}
}

func (s Secret) LogValue() slog.Value {
	return slog.StringValue(secretMask)
}

func (s Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"` + secretMask + `"`), nil
}

func (s Secret) MarshalText() ([]byte, error) {
	return []byte(secretMask), nil
}
