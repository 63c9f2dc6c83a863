package util

import (
	"encoding/base64"
	"errors"
	"strings"

	"github.com/gabriel-vasile/mimetype"
)

var ErrEmptyPayload = errors.New("empty payload")

// DecodeBase64MaybeDataURL decodes base64 and, for a data:URI, also returns
// the MIME type from its prefix.
func DecodeBase64MaybeDataURL(s string) ([]byte, string, error) {
	s = strings.TrimSpace(s)
	var hintMIME string
	if strings.HasPrefix(s, "data:") {
		// data:<mime>;base64,<payload>
		if idx := strings.IndexByte(s, ','); idx > 0 {
			meta := s[len("data:"):idx]
			if semi := strings.IndexByte(meta, ';'); semi >= 0 {
				hintMIME = meta[:semi]
			} else {
				hintMIME = meta
			}
			s = s[idx+1:]
		}
	}
	if s == "" {
		return nil, hintMIME, ErrEmptyPayload
	}
	// standard first, then URL-safe and unpadded variants
	var firstErr error
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.URLEncoding, base64.RawStdEncoding, base64.RawURLEncoding} {
		b, err := enc.DecodeString(s)
		if err == nil {
			if len(b) == 0 {
				return nil, hintMIME, ErrEmptyPayload
			}
			return b, hintMIME, nil
		}
		if firstErr == nil {
			firstErr = err
		}
	}
	return nil, "", firstErr
}

// PickMIME prefers the declared type, then the data:URI hint, then sniffs the bytes.
func PickMIME(declared, hint string, data []byte) string {
	if d := strings.TrimSpace(declared); d != "" {
		return strings.ToLower(d)
	}
	if h := strings.TrimSpace(hint); h != "" {
		return strings.ToLower(h)
	}
	if len(data) > 0 {
		m := mimetype.Detect(data).String()
		if semi := strings.IndexByte(m, ';'); semi >= 0 {
			m = m[:semi]
		}
		return strings.TrimSpace(m)
	}
	return "application/octet-stream"
}

func MakeDataURL(mime string, data []byte) string {
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(data)
}

func IsImageMIME(m string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(m)), "image/")
}
