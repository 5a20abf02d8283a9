package sanitize

import (
	"bytes"
	"designlink/core"
	"path/filepath"
	"strings"
)

var fontSignatures = []struct {
	magic    []byte
	format   string
	mimeType string
}{
	{[]byte("wOF2"), "woff2", "font/woff2"},
	{[]byte("wOFF"), "woff", "font/woff"},
	{[]byte("OTTO"), "otf", "font/otf"},
	{[]byte{0x00, 0x01, 0x00, 0x00}, "ttf", "font/ttf"},
	{[]byte("true"), "ttf", "font/ttf"},
}

// Font identifies raw font bytes. The family defaults to the file name
// without its extension.
func Font(raw []byte, filename string) (core.FontMeta, error) {
	for _, sig := range fontSignatures {
		if bytes.HasPrefix(raw, sig.magic) {
			return core.FontMeta{
				Family:   familyFromFilename(filename),
				Format:   sig.format,
				MimeType: sig.mimeType,
			}, nil
		}
	}
	return core.FontMeta{}, ErrUnknownFont
}

func familyFromFilename(name string) string {
	base := filepath.Base(strings.TrimSpace(name))
	if base == "." || base == "/" {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
