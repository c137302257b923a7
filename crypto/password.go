package crypto

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// Algorithm prefixes understood by PasswordCodec, in "{alg}payload" form.
const (
	AlgorithmXOR = "xor"
	AlgorithmAES = "aes"
)

var (
	// ErrNotEncoded is returned for values without an "{alg}" prefix.
	ErrNotEncoded = errors.New("value is not encoded")
	// ErrUnsupportedAlgorithm is returned for an unknown prefix or for {aes} without a key.
	ErrUnsupportedAlgorithm = errors.New("unsupported encoding algorithm")
)

// xorKey is the byte every plaintext byte is XORed with by the {xor} encoding.
const xorKey = '_'

// Decoder turns an encoded secret back into plaintext.
type Decoder interface {
	Decode(encoded string) (string, error)
}

// PasswordCodec encodes and decodes "{xor}" and "{aes}" secrets. {xor} is obfuscation
// only; {aes} uses the AES-256-GCM Encryptor and needs a key.
type PasswordCodec struct {
	enc Encryptor
}

// NewPasswordCodec returns a codec. enc may be nil, which disables {aes}.
func NewPasswordCodec(enc Encryptor) *PasswordCodec {
	return &PasswordCodec{enc: enc}
}

// Decode reverses Encode.
func (c *PasswordCodec) Decode(encoded string) (string, error) {
	alg, payload, err := splitAlgorithm(strings.TrimSpace(encoded))
	if err != nil {
		return "", err
	}
	switch alg {
	case AlgorithmXOR:
		raw, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			return "", fmt.Errorf("base64 decode failed: %w", err)
		}
		return string(xorBytes(raw)), nil
	case AlgorithmAES:
		if c.enc == nil {
			return "", fmt.Errorf("%w: {aes} requires ENCRYPTION_KEY", ErrUnsupportedAlgorithm)
		}
		plain, err := DecryptString(c.enc, payload)
		if err != nil {
			return "", err
		}
		return plain, nil
	default:
		return "", fmt.Errorf("%w: {%s}", ErrUnsupportedAlgorithm, alg)
	}
}

// Encode produces "{alg}payload" for plaintext.
func (c *PasswordCodec) Encode(alg, plaintext string) (string, error) {
	if plaintext == "" {
		return "", fmt.Errorf("plaintext is empty")
	}
	switch strings.ToLower(alg) {
	case AlgorithmXOR:
		return "{xor}" + base64.StdEncoding.EncodeToString(xorBytes([]byte(plaintext))), nil
	case AlgorithmAES:
		if c.enc == nil {
			return "", fmt.Errorf("%w: {aes} requires ENCRYPTION_KEY", ErrUnsupportedAlgorithm)
		}
		ct, err := EncryptString(c.enc, plaintext)
		if err != nil {
			return "", err
		}
		return "{aes}" + ct, nil
	default:
		return "", fmt.Errorf("%w: {%s}", ErrUnsupportedAlgorithm, alg)
	}
}

func splitAlgorithm(s string) (alg, payload string, err error) {
	if !strings.HasPrefix(s, "{") {
		return "", "", ErrNotEncoded
	}
	end := strings.IndexByte(s, '}')
	if end < 0 {
		return "", "", ErrNotEncoded
	}
	return strings.ToLower(s[1:end]), s[end+1:], nil
}

func xorBytes(b []byte) []byte {
	out := make([]byte, len(b))
	for i, c := range b {
		out[i] = c ^ xorKey
	}
	return out
}
