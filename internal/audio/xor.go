package audio

import "errors"

// XORCipher is the reversible byte obfuscation clients apply to audio in transit.
// It is not encryption.
type XORCipher struct {
	key []byte
}

// NewXORCipher creates a cipher; the key must not be empty.
func NewXORCipher(key string) (*XORCipher, error) {
	if key == "" {
		return nil, errors.New("xor key must not be empty")
	}
	return &XORCipher{key: []byte(key)}, nil
}

// Apply XORs data with the repeating key. The same call encodes and decodes.
func (c *XORCipher) Apply(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[i] = b ^ c.key[i%len(c.key)]
	}
	return out
}
