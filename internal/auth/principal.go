package auth

import (
	"encoding/base32"
	"encoding/binary"
	"hash/crc32"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/blocktrace/blocktrace/internal/model"
)

// maxPrincipalBytes is the longest raw principal the network issues.
const maxPrincipalBytes = 29

var principalEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// FormatPrincipal renders raw principal bytes in textual form: lowercase
// base32 of a big-endian CRC32 followed by the bytes, in dash-separated
// groups of five.
func FormatPrincipal(raw []byte) string {
	buf := make([]byte, 4, 4+len(raw))
	binary.BigEndian.PutUint32(buf, crc32.ChecksumIEEE(raw))
	buf = append(buf, raw...)

	enc := strings.ToLower(principalEncoding.EncodeToString(buf))
	var b strings.Builder
	for i := 0; i < len(enc); i += 5 {
		if i > 0 {
			b.WriteByte('-')
		}
		b.WriteString(enc[i:min(i+5, len(enc))])
	}
	return b.String()
}

// ParsePrincipal decodes a textual principal and verifies its checksum and
// grouping.
func ParsePrincipal(text string) ([]byte, error) {
	if text == "" {
		return nil, eris.Wrap(model.ErrInvalidInput, "auth: empty principal")
	}
	if text != strings.ToLower(text) {
		return nil, eris.Wrapf(model.ErrInvalidInput, "auth: principal %q must be lowercase", text)
	}
	buf, err := principalEncoding.DecodeString(strings.ToUpper(strings.ReplaceAll(text, "-", "")))
	if err != nil {
		return nil, eris.Wrapf(model.ErrInvalidInput, "auth: principal %q is not base32", text)
	}
	if len(buf) < 4 || len(buf)-4 > maxPrincipalBytes {
		return nil, eris.Wrapf(model.ErrInvalidInput, "auth: principal %q has invalid length", text)
	}
	raw := buf[4:]
	if binary.BigEndian.Uint32(buf[:4]) != crc32.ChecksumIEEE(raw) {
		return nil, eris.Wrapf(model.ErrInvalidInput, "auth: principal %q checksum mismatch", text)
	}
	if FormatPrincipal(raw) != text {
		return nil, eris.Wrapf(model.ErrInvalidInput, "auth: principal %q is not canonically grouped", text)
	}
	return raw, nil
}

// ValidatePrincipal reports whether text is a well-formed principal.
func ValidatePrincipal(text string) error {
	_, err := ParsePrincipal(text)
	return err
}
