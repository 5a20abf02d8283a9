package core

import "fmt"

type (
	// AssetKind distinguishes the independent asset collections.
	AssetKind string

	// VectorMeta is extracted from an uploaded SVG during sanitization.
	VectorMeta struct {
		ViewBox string `json:"viewBox,omitempty"`
		Width   string `json:"width,omitempty"`
		Height  string `json:"height,omitempty"`
	}

	// FontMeta describes an uploaded font file.
	FontMeta struct {
		Family   string `json:"family"`
		Format   string `json:"format"`
		MimeType string `json:"mimeType"`
	}

	// AssetRecord is one uploaded asset. ID and CanonicalHash define its
	// identity and never change after creation; only Name may be edited.
	AssetRecord struct {
		ID            string      `json:"id"`
		CanonicalHash string      `json:"canonicalHash"`
		Name          string      `json:"name"`
		Content       string      `json:"content,omitempty"` // SVG markup, or base64 for fonts.
		SizeBytes     int         `json:"sizeBytes"`
		UploadedAt    int64       `json:"uploadedAt"` // Unix milliseconds.
		Vector        *VectorMeta `json:"vector,omitempty"`
		Font          *FontMeta   `json:"font,omitempty"`
	}
)

const (
	KindVector AssetKind = "vector"
	KindFont   AssetKind = "font"
)

// Kinds lists every known asset kind.
var Kinds = []AssetKind{KindVector, KindFont}

// Prefix is the literal placed before the digest in an asset id.
func (k AssetKind) Prefix() string {
	switch k {
	case KindVector:
		return "svg"
	case KindFont:
		return "font"
	}
	return ""
}

// StorageKey is the durable-storage entry holding the whole collection.
func (k AssetKind) StorageKey() string {
	return fmt.Sprintf("designlink:%s-assets", k)
}

// Valid reports whether k is a known kind.
func (k AssetKind) Valid() bool {
	return k.Prefix() != ""
}

// ParseAssetKind maps a route or config value to a kind.
func ParseAssetKind(s string) (AssetKind, error) {
	k := AssetKind(s)
	if !k.Valid() {
		return "", fmt.Errorf("unknown asset kind %q", s)
	}
	return k, nil
}

// Summary returns a copy of the record without its content, for list views.
func (r AssetRecord) Summary() AssetRecord {
	r.Content = ""
	return r
}
