package registry

import (
	"designlink/core"
	"designlink/sanitize"
	"encoding/base64"
)

type (
	// Limits are the per-kind quotas.
	Limits struct {
		MaxCount int
		MaxBytes int
	}

	// DuplicatePolicy decides what Add does with content already present.
	DuplicatePolicy int

	// Prepared is the outcome of validating an upload: a record with its
	// content and metadata filled in, plus the bytes that get hashed.
	Prepared struct {
		Record core.AssetRecord
		Hashed []byte
	}

	// Policy configures a Registry for one asset kind.
	Policy struct {
		Kind       core.AssetKind
		Label      string
		Limits     Limits
		Duplicates DuplicatePolicy
		Prepare    func(raw []byte, name string) (Prepared, error)
	}
)

const (
	// ReuseExisting returns the stored record and changes nothing.
	ReuseExisting DuplicatePolicy = iota
	// RejectDuplicate fails with ErrAlreadyUploaded.
	RejectDuplicate
)

var (
	DefaultVectorLimits = Limits{MaxCount: 50, MaxBytes: 512000}
	DefaultFontLimits   = Limits{MaxCount: 10, MaxBytes: 2 * 1024 * 1024}
)

// VectorPolicy silently dedupes: uploading a known icon again hands back
// the record that is already stored.
func VectorPolicy(limits Limits) Policy {
	return Policy{
		Kind:       core.KindVector,
		Label:      "SVG",
		Limits:     limits,
		Duplicates: ReuseExisting,
		Prepare:    prepareVector,
	}
}

// FontPolicy rejects duplicates so the caller can tell the user the font
// is already installed.
func FontPolicy(limits Limits) Policy {
	return Policy{
		Kind:       core.KindFont,
		Label:      "Font",
		Limits:     limits,
		Duplicates: RejectDuplicate,
		Prepare:    prepareFont,
	}
}

func prepareVector(raw []byte, name string) (Prepared, error) {
	clean, meta, err := sanitize.SVG(raw)
	if err != nil {
		return Prepared{}, err
	}
	return Prepared{
		Record: core.AssetRecord{
			Name:      name,
			Content:   clean,
			SizeBytes: len(clean),
			Vector:    &meta,
		},
		Hashed: []byte(clean),
	}, nil
}

func prepareFont(raw []byte, name string) (Prepared, error) {
	meta, err := sanitize.Font(raw, name)
	if err != nil {
		return Prepared{}, err
	}
	return Prepared{
		Record: core.AssetRecord{
			Name:      name,
			Content:   base64.StdEncoding.EncodeToString(raw),
			SizeBytes: len(raw),
			Font:      &meta,
		},
		Hashed: raw,
	}, nil
}

// decodeContent turns stored record content back into raw bytes.
func decodeContent(kind core.AssetKind, content string) ([]byte, error) {
	if kind == core.KindFont {
		return base64.StdEncoding.DecodeString(content)
	}
	return []byte(content), nil
}
