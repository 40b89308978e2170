// Package textcodec converts plugin names to and from the game's local code page.
package textcodec

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/ianaindex"
)

// DefaultEncoding is the code page of Western builds of the game.
const DefaultEncoding = "windows-1252"

var aliases = map[string]string{
	"local":  DefaultEncoding,
	"cp1250": "windows-1250",
	"cp1251": "windows-1251",
	"cp1252": "windows-1252",
	"utf8":   "utf-8",
}

// Codec implements plugins.TextCodec for one x/text encoding.
type Codec struct {
	name string
	enc  encoding.Encoding
}

// New returns the codec for an IANA encoding name such as "windows-1252" or "utf-8".
func New(name string) (*Codec, error) {
	key := strings.ToLower(strings.TrimSpace(name))
	if alias, ok := aliases[key]; ok {
		key = alias
	}

	enc, err := ianaindex.IANA.Encoding(key)
	if err != nil {
		return nil, fmt.Errorf("unknown encoding %q: %w", name, err)
	}
	if enc == nil {
		return nil, fmt.Errorf("unsupported encoding %q", name)
	}

	return &Codec{name: key, enc: enc}, nil
}

// Local returns the Windows-1252 codec.
func Local() *Codec {
	return &Codec{name: DefaultEncoding, enc: charmap.Windows1252}
}

// Name returns the canonical encoding name.
func (c *Codec) Name() string {
	return c.name
}

// CanEncode reports whether every rune of s exists in the encoding.
func (c *Codec) CanEncode(s string) bool {
	if !utf8.ValidString(s) {
		return false
	}
	_, err := c.enc.NewEncoder().String(s)
	return err == nil
}

// Encode converts s to the encoding. It fails on runes the encoding cannot represent.
func (c *Codec) Encode(s string) ([]byte, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%s: invalid UTF-8 input", c.name)
	}
	b, err := c.enc.NewEncoder().Bytes([]byte(s))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", c.name, err)
	}
	return b, nil
}

// Decode converts b from the encoding.
func (c *Codec) Decode(b []byte) (string, error) {
	s, err := c.enc.NewDecoder().Bytes(b)
	if err != nil {
		return "", fmt.Errorf("%s: %w", c.name, err)
	}
	return string(s), nil
}
