// Package sanitize validates uploaded asset content before it enters a
// registry. SVG markup is checked for well-formedness and stripped of
// anything executable; font files are identified by their magic bytes.
package sanitize

import (
	"bytes"
	"designlink/core"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	ErrNotUTF8     = errors.New("content is not valid UTF-8")
	ErrMalformed   = errors.New("content is not well-formed XML")
	ErrNotSVG      = errors.New("root element is not <svg>")
	ErrUnknownFont = errors.New("unrecognized font format")
)

// Elements dropped together with everything inside them, matched on the
// local name whatever namespace prefix they carry.
var blockedElements = map[string]bool{
	"script":        true,
	"foreignobject": true,
	"iframe":        true,
	"embed":         true,
	"object":        true,
	"handler":       true,
	"listener":      true,
}

// Animation elements are dropped only when they rewrite a link or an event
// handler attribute.
var animationElements = map[string]bool{
	"set":              true,
	"animate":          true,
	"animatecolor":     true,
	"animatemotion":    true,
	"animatetransform": true,
}

var (
	textEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;")
	attrEscaper = strings.NewReplacer("&", "&amp;", "<", "&lt;", `"`, "&quot;", "\n", "&#xA;", "\r", "&#xD;", "\t", "&#x9;")
)

// SVG returns a sanitized copy of raw together with the dimensions found
// on the root element.
func SVG(raw []byte) (string, core.VectorMeta, error) {
	if !utf8.Valid(raw) {
		return "", core.VectorMeta{}, ErrNotUTF8
	}
	if _, err := inspect(raw); err != nil {
		return "", core.VectorMeta{}, err
	}

	clean, err := rewrite(raw)
	if err != nil {
		return "", core.VectorMeta{}, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	meta, err := inspect(clean)
	if err != nil {
		return "", core.VectorMeta{}, fmt.Errorf("after sanitizing: %w", err)
	}
	return string(bytes.TrimSpace(clean)), meta, nil
}

// rewrite re-serializes the token stream of an already validated document,
// leaving out comments, directives, blocked elements and unsafe
// attributes. Attribute values are judged after entity decoding.
func rewrite(data []byte) ([]byte, error) {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = xml.HTMLEntity

	var out bytes.Buffer
	open := false // a start tag is written but not yet closed
	skip := 0     // depth inside a dropped element

	closeTag := func() {
		if open {
			out.WriteByte('>')
			open = false
		}
	}

	for {
		tok, err := decoder.RawToken()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if skip > 0 {
			switch tok.(type) {
			case xml.StartElement:
				skip++
			case xml.EndElement:
				skip--
			}
			continue
		}

		switch t := tok.(type) {
		case xml.StartElement:
			if dropElement(t) {
				skip = 1
				continue
			}
			closeTag()
			out.WriteByte('<')
			out.WriteString(qualified(t.Name))
			for _, attr := range t.Attr {
				if dropAttr(attr) {
					continue
				}
				out.WriteByte(' ')
				out.WriteString(qualified(attr.Name))
				out.WriteString(`="`)
				attrEscaper.WriteString(&out, attr.Value)
				out.WriteByte('"')
			}
			open = true
		case xml.EndElement:
			if open {
				out.WriteString("/>")
				open = false
				continue
			}
			out.WriteString("</")
			out.WriteString(qualified(t.Name))
			out.WriteByte('>')
		case xml.CharData:
			closeTag()
			textEscaper.WriteString(&out, string(t))
		case xml.ProcInst:
			closeTag()
			out.WriteString("<?")
			out.WriteString(t.Target)
			if len(t.Inst) > 0 {
				out.WriteByte(' ')
				out.Write(t.Inst)
			}
			out.WriteString("?>")
		}
	}
	return out.Bytes(), nil
}

func qualified(name xml.Name) string {
	if name.Space == "" {
		return name.Local
	}
	return name.Space + ":" + name.Local
}

func dropElement(start xml.StartElement) bool {
	local := strings.ToLower(start.Name.Local)
	if blockedElements[local] {
		return true
	}
	if !animationElements[local] {
		return false
	}
	for _, attr := range start.Attr {
		if strings.ToLower(attr.Name.Local) != "attributename" {
			continue
		}
		target := strings.ToLower(strings.TrimSpace(attr.Value))
		if i := strings.LastIndexByte(target, ':'); i >= 0 {
			target = target[i+1:]
		}
		if target == "href" || target == "src" || strings.HasPrefix(target, "on") {
			return true
		}
	}
	return false
}

func dropAttr(attr xml.Attr) bool {
	if strings.HasPrefix(strings.ToLower(attr.Name.Local), "on") {
		return true
	}
	return unsafeURL(attr.Value)
}

// unsafeURL reports whether v names a script scheme. Browsers ignore
// whitespace and control characters inside the scheme, so those are
// removed before comparing.
func unsafeURL(v string) bool {
	compact := strings.Map(func(r rune) rune {
		if r <= ' ' || r == 0x7f {
			return -1
		}
		return unicode.ToLower(r)
	}, v)
	return strings.Contains(compact, "javascript:") || strings.Contains(compact, "vbscript:")
}

// inspect walks every token so malformed documents are rejected, and
// reads the root element's attributes.
func inspect(data []byte) (core.VectorMeta, error) {
	var meta core.VectorMeta
	sawRoot := false

	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Entity = xml.HTMLEntity

	for {
		tok, err := decoder.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return meta, fmt.Errorf("%w: %v", ErrMalformed, err)
		}

		start, ok := tok.(xml.StartElement)
		if !ok || sawRoot {
			continue
		}
		sawRoot = true
		if !strings.EqualFold(start.Name.Local, "svg") {
			return meta, ErrNotSVG
		}
		for _, attr := range start.Attr {
			switch attr.Name.Local {
			case "viewBox":
				meta.ViewBox = attr.Value
			case "width":
				meta.Width = attr.Value
			case "height":
				meta.Height = attr.Value
			}
		}
	}

	if !sawRoot {
		return meta, ErrNotSVG
	}
	return meta, nil
}
