package codec

import (
	"designlink/core"
	"fmt"
)

// Minified wire form. Field order matters: the version marker is always
// the first key written.
type (
	wireState struct {
		Version    *int         `json:"v"`
		TemplateID *string      `json:"t,omitempty"`
		Layers     *[]wireLayer `json:"l"`
		Modified   *int64       `json:"m,omitempty"`
	}

	wireLayer struct {
		ID   string `json:"i"`
		Kind string `json:"k"`

		Text             *string  `json:"x,omitempty"`
		FontFamily       *string  `json:"f,omitempty"`
		FontSize         *float64 `json:"z,omitempty"`
		FontWeight       *string  `json:"w,omitempty"`
		Fill             *string  `json:"c,omitempty"`
		Stroke           *string  `json:"s,omitempty"`
		StrokeWidth      *float64 `json:"n,omitempty"`
		StrokeLinejoin   *string  `json:"j,omitempty"`
		StrokeOpacity    *float64 `json:"q,omitempty"`
		TextPath         *string  `json:"p,omitempty"`
		StartOffset      *float64 `json:"o,omitempty"`
		BaselineShift    *float64 `json:"d,omitempty"`
		DominantBaseline *string  `json:"b,omitempty"`
		AssetID          *string  `json:"a,omitempty"`
		Content          *string  `json:"g,omitempty"`
		Rotation         *float64 `json:"r,omitempty"`
		Scale            *float64 `json:"e,omitempty"`
		TransformOrigin  *string  `json:"u,omitempty"`
	}
)

const (
	kindText       = "t"
	kindShape      = "s"
	kindVectorIcon = "i"
)

func minifyLayer(layer core.LayerOverride) (wireLayer, error) {
	switch l := layer.(type) {
	case *core.TextLayer:
		return wireLayer{
			ID:               l.ID,
			Kind:             kindText,
			Text:             l.Text,
			FontFamily:       fontFamilies.compress(l.FontFamily),
			FontSize:         l.FontSize,
			FontWeight:       l.FontWeight,
			Fill:             colors.compress(l.Fill),
			Stroke:           colors.compress(l.Stroke),
			StrokeWidth:      l.StrokeWidth,
			StrokeLinejoin:   l.StrokeLinejoin,
			StrokeOpacity:    l.StrokeOpacity,
			TextPath:         l.TextPath,
			StartOffset:      l.StartOffset,
			BaselineShift:    l.BaselineShift,
			DominantBaseline: l.DominantBaseline,
		}, nil
	case *core.ShapeLayer:
		return wireLayer{
			ID:             l.ID,
			Kind:           kindShape,
			Fill:           colors.compress(l.Fill),
			Stroke:         colors.compress(l.Stroke),
			StrokeWidth:    l.StrokeWidth,
			StrokeLinejoin: l.StrokeLinejoin,
		}, nil
	case *core.VectorIconLayer:
		return wireLayer{
			ID:              l.ID,
			Kind:            kindVectorIcon,
			AssetID:         l.AssetID,
			Content:         l.Content,
			Fill:            colors.compress(l.Fill),
			Stroke:          colors.compress(l.Stroke),
			StrokeWidth:     l.StrokeWidth,
			StrokeLinejoin:  l.StrokeLinejoin,
			Rotation:        l.Rotation,
			Scale:           l.Scale,
			TransformOrigin: l.TransformOrigin,
		}, nil
	}
	return wireLayer{}, fmt.Errorf("unsupported layer type %T", layer)
}

// expandLayer is the inverse of minifyLayer. Keys that belong to another
// layer kind make the layer invalid.
func expandLayer(w wireLayer) (core.LayerOverride, error) {
	if w.ID == "" {
		return nil, fmt.Errorf("layer without id")
	}

	fill, err := colors.expand(w.Fill)
	if err != nil {
		return nil, err
	}
	stroke, err := colors.expand(w.Stroke)
	if err != nil {
		return nil, err
	}

	switch w.Kind {
	case kindText:
		if anySet(w.AssetID, w.Content, w.TransformOrigin) || anySetFloat(w.Rotation, w.Scale) {
			return nil, fmt.Errorf("layer %q: icon fields on a text layer", w.ID)
		}
		family, err := fontFamilies.expand(w.FontFamily)
		if err != nil {
			return nil, err
		}
		return &core.TextLayer{
			ID:               w.ID,
			Text:             w.Text,
			FontFamily:       family,
			FontSize:         w.FontSize,
			FontWeight:       w.FontWeight,
			Fill:             fill,
			Stroke:           stroke,
			StrokeWidth:      w.StrokeWidth,
			StrokeLinejoin:   w.StrokeLinejoin,
			StrokeOpacity:    w.StrokeOpacity,
			TextPath:         w.TextPath,
			StartOffset:      w.StartOffset,
			BaselineShift:    w.BaselineShift,
			DominantBaseline: w.DominantBaseline,
		}, nil

	case kindShape:
		if anySet(w.Text, w.FontFamily, w.FontWeight, w.TextPath, w.DominantBaseline, w.AssetID, w.Content, w.TransformOrigin) ||
			anySetFloat(w.FontSize, w.StrokeOpacity, w.StartOffset, w.BaselineShift, w.Rotation, w.Scale) {
			return nil, fmt.Errorf("layer %q: unexpected fields on a shape layer", w.ID)
		}
		return &core.ShapeLayer{
			ID:             w.ID,
			Fill:           fill,
			Stroke:         stroke,
			StrokeWidth:    w.StrokeWidth,
			StrokeLinejoin: w.StrokeLinejoin,
		}, nil

	case kindVectorIcon:
		if anySet(w.Text, w.FontFamily, w.FontWeight, w.TextPath, w.DominantBaseline) ||
			anySetFloat(w.FontSize, w.StrokeOpacity, w.StartOffset, w.BaselineShift) {
			return nil, fmt.Errorf("layer %q: text fields on an icon layer", w.ID)
		}
		return &core.VectorIconLayer{
			ID:              w.ID,
			AssetID:         w.AssetID,
			Content:         w.Content,
			Fill:            fill,
			Stroke:          stroke,
			StrokeWidth:     w.StrokeWidth,
			StrokeLinejoin:  w.StrokeLinejoin,
			Rotation:        w.Rotation,
			Scale:           w.Scale,
			TransformOrigin: w.TransformOrigin,
		}, nil
	}
	return nil, fmt.Errorf("layer %q: unknown kind %q", w.ID, w.Kind)
}

func anySet(values ...*string) bool {
	for _, v := range values {
		if v != nil {
			return true
		}
	}
	return false
}

func anySetFloat(values ...*float64) bool {
	for _, v := range values {
		if v != nil {
			return true
		}
	}
	return false
}
