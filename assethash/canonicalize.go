package assethash

import (
	"bytes"
	"designlink/core"
	"regexp"
)

var (
	prologuePattern   = regexp.MustCompile(`(?is)^\s*<\?xml.*?\?>`)
	doctypePattern    = regexp.MustCompile(`(?is)<!DOCTYPE[^>\[]*(\[[^\]]*\])?\s*>`)
	commentPattern    = regexp.MustCompile(`(?s)<!--.*?-->`)
	betweenTags       = regexp.MustCompile(`>\s+<`)
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespaceRun     = regexp.MustCompile(`\s+`)
	spaceAroundEquals = regexp.MustCompile(` ?= ?`)
	spaceBeforeClose  = regexp.MustCompile(` ?(/?)>$`)
	spaceAfterOpen    = regexp.MustCompile(`^<(/?) `)
)

// Canonicalize normalizes raw asset content into the byte sequence that is
// hashed. Vector markup that differs only in formatting (prologue,
// comments, indentation, attribute spacing) yields identical output. Font
// data is returned unchanged.
func Canonicalize(kind core.AssetKind, raw []byte) []byte {
	if kind != core.KindVector {
		return raw
	}

	out := prologuePattern.ReplaceAll(raw, nil)
	out = doctypePattern.ReplaceAll(out, nil)
	out = commentPattern.ReplaceAll(out, nil)
	out = betweenTags.ReplaceAll(out, []byte("><"))
	out = tagPattern.ReplaceAllFunc(out, canonicalTag)
	return bytes.TrimSpace(out)
}

// canonicalTag collapses whitespace inside a single tag.
func canonicalTag(tag []byte) []byte {
	tag = whitespaceRun.ReplaceAll(tag, []byte(" "))
	tag = spaceAroundEquals.ReplaceAll(tag, []byte("="))
	tag = spaceBeforeClose.ReplaceAll(tag, []byte("$1>"))
	return spaceAfterOpen.ReplaceAll(tag, []byte("<$1"))
}
