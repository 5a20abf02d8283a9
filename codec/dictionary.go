package codec

import (
	"fmt"
	"strings"
)

// codePrefix marks a dictionary code inside a token. Verbatim values that
// happen to start with it are escaped by doubling it.
const codePrefix = "@"

// dictionary is a fixed, bidirectional value <-> code table. Changing the
// contents of any table requires bumping Version.
type dictionary struct {
	toCode  map[string]string
	toValue map[string]string
}

func newDictionary(values ...string) dictionary {
	d := dictionary{
		toCode:  make(map[string]string, len(values)),
		toValue: make(map[string]string, len(values)),
	}
	for i, v := range values {
		code := fmt.Sprintf("%s%x", codePrefix, i)
		d.toCode[v] = code
		d.toValue[code] = v
	}
	return d
}

var (
	fontFamilies = newDictionary(
		"Inter",
		"Roboto",
		"Open Sans",
		"Montserrat",
		"Lato",
		"Poppins",
		"Playfair Display",
		"Oswald",
	)

	colors = newDictionary(
		"#000000",
		"#ffffff",
		"#ff0000",
		"#00ff00",
		"#0000ff",
		"#ffff00",
		"#ff00ff",
		"#00ffff",
		"transparent",
		"none",
	)
)

func (d dictionary) compress(v *string) *string {
	if v == nil {
		return nil
	}
	if code, ok := d.toCode[*v]; ok {
		return &code
	}
	if strings.HasPrefix(*v, codePrefix) {
		escaped := codePrefix + *v
		return &escaped
	}
	return v
}

func (d dictionary) expand(v *string) (*string, error) {
	if v == nil || !strings.HasPrefix(*v, codePrefix) {
		return v, nil
	}
	rest := strings.TrimPrefix(*v, codePrefix)
	if strings.HasPrefix(rest, codePrefix) {
		return &rest, nil
	}
	value, ok := d.toValue[*v]
	if !ok {
		return nil, fmt.Errorf("unknown dictionary code %q", *v)
	}
	return &value, nil
}
