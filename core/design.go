package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// LayerKind tags the variants of LayerOverride.
type LayerKind string

const (
	LayerText       LayerKind = "text"
	LayerShape      LayerKind = "shape"
	LayerVectorIcon LayerKind = "vectorIcon"
)

type (
	// DesignState holds only the overrides a user made on top of a
	// template's defaults. A nil field anywhere means "inherit".
	DesignState struct {
		SelectedTemplateID *string
		Layers             []LayerOverride
		LastModified       time.Time
	}

	// LayerOverride is implemented by TextLayer, ShapeLayer and
	// VectorIconLayer only.
	LayerOverride interface {
		LayerID() string
		Kind() LayerKind
		isLayerOverride()
	}

	TextLayer struct {
		ID               string   `json:"id"`
		Text             *string  `json:"text,omitempty"`
		FontFamily       *string  `json:"fontFamily,omitempty"`
		FontSize         *float64 `json:"fontSize,omitempty"`
		FontWeight       *string  `json:"fontWeight,omitempty"`
		Fill             *string  `json:"fill,omitempty"`
		Stroke           *string  `json:"stroke,omitempty"`
		StrokeWidth      *float64 `json:"strokeWidth,omitempty"`
		StrokeLinejoin   *string  `json:"strokeLinejoin,omitempty"`
		StrokeOpacity    *float64 `json:"strokeOpacity,omitempty"`
		TextPath         *string  `json:"textPath,omitempty"`
		StartOffset      *float64 `json:"startOffset,omitempty"`
		BaselineShift    *float64 `json:"baselineShift,omitempty"`
		DominantBaseline *string  `json:"dominantBaseline,omitempty"`
	}

	ShapeLayer struct {
		ID             string   `json:"id"`
		Fill           *string  `json:"fill,omitempty"`
		Stroke         *string  `json:"stroke,omitempty"`
		StrokeWidth    *float64 `json:"strokeWidth,omitempty"`
		StrokeLinejoin *string  `json:"strokeLinejoin,omitempty"`
	}

	// VectorIconLayer places an uploaded vector asset, referenced by its
	// content-derived AssetID, never by its bytes.
	VectorIconLayer struct {
		ID              string   `json:"id"`
		AssetID         *string  `json:"assetId,omitempty"`
		Content         *string  `json:"content,omitempty"`
		Fill            *string  `json:"fill,omitempty"`
		Stroke          *string  `json:"stroke,omitempty"`
		StrokeWidth     *float64 `json:"strokeWidth,omitempty"`
		StrokeLinejoin  *string  `json:"strokeLinejoin,omitempty"`
		Rotation        *float64 `json:"rotation,omitempty"`
		Scale           *float64 `json:"scale,omitempty"`
		TransformOrigin *string  `json:"transformOrigin,omitempty"`
	}
)

func (l *TextLayer) LayerID() string       { return l.ID }
func (l *ShapeLayer) LayerID() string      { return l.ID }
func (l *VectorIconLayer) LayerID() string { return l.ID }

func (*TextLayer) Kind() LayerKind       { return LayerText }
func (*ShapeLayer) Kind() LayerKind      { return LayerShape }
func (*VectorIconLayer) Kind() LayerKind { return LayerVectorIcon }

func (*TextLayer) isLayerOverride()       {}
func (*ShapeLayer) isLayerOverride()      {}
func (*VectorIconLayer) isLayerOverride() {}

// Ptr returns a pointer to v. Handy for building overrides.
func Ptr[T any](v T) *T {
	return &v
}

// isNilLayer also catches typed nil pointers stored in the interface.
func isNilLayer(layer LayerOverride) bool {
	switch l := layer.(type) {
	case nil:
		return true
	case *TextLayer:
		return l == nil
	case *ShapeLayer:
		return l == nil
	case *VectorIconLayer:
		return l == nil
	}
	return false
}

// Validate checks the structural invariants: no nil layers, and every
// layer id non-empty and unique within the list.
func (s *DesignState) Validate() error {
	seen := make(map[string]struct{}, len(s.Layers))
	for i, layer := range s.Layers {
		if isNilLayer(layer) {
			return fmt.Errorf("layer %d is nil", i)
		}
		id := layer.LayerID()
		if id == "" {
			return fmt.Errorf("layer %d has an empty id", i)
		}
		if _, dup := seen[id]; dup {
			return fmt.Errorf("duplicate layer id %q", id)
		}
		seen[id] = struct{}{}
	}
	return nil
}

type designStateJSON struct {
	SelectedTemplateID *string           `json:"selectedTemplateId"`
	Layers             []json.RawMessage `json:"layers"`
	LastModified       int64             `json:"lastModified,omitempty"`
}

// MarshalJSON writes the public (non-minified) form used by the HTTP API.
// Each layer carries a "kind" discriminator.
func (s DesignState) MarshalJSON() ([]byte, error) {
	out := designStateJSON{
		SelectedTemplateID: s.SelectedTemplateID,
		Layers:             make([]json.RawMessage, 0, len(s.Layers)),
	}
	if !s.LastModified.IsZero() {
		out.LastModified = s.LastModified.UnixMilli()
	}
	for i, layer := range s.Layers {
		if isNilLayer(layer) {
			return nil, fmt.Errorf("layer %d is nil", i)
		}
		var (
			raw []byte
			err error
		)
		switch l := layer.(type) {
		case *TextLayer:
			raw, err = json.Marshal(struct {
				Kind LayerKind `json:"kind"`
				*TextLayer
			}{LayerText, l})
		case *ShapeLayer:
			raw, err = json.Marshal(struct {
				Kind LayerKind `json:"kind"`
				*ShapeLayer
			}{LayerShape, l})
		case *VectorIconLayer:
			raw, err = json.Marshal(struct {
				Kind LayerKind `json:"kind"`
				*VectorIconLayer
			}{LayerVectorIcon, l})
		default:
			return nil, fmt.Errorf("layer %d: unsupported layer type %T", i, layer)
		}
		if err != nil {
			return nil, err
		}
		out.Layers = append(out.Layers, raw)
	}
	return json.Marshal(out)
}

func (s *DesignState) UnmarshalJSON(data []byte) error {
	var in designStateJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	state := DesignState{
		SelectedTemplateID: in.SelectedTemplateID,
		Layers:             make([]LayerOverride, 0, len(in.Layers)),
	}
	if in.LastModified != 0 {
		state.LastModified = time.UnixMilli(in.LastModified)
	}

	for i, raw := range in.Layers {
		var head struct {
			Kind LayerKind `json:"kind"`
		}
		if err := json.Unmarshal(raw, &head); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}

		var layer LayerOverride
		switch head.Kind {
		case LayerText:
			layer = &TextLayer{}
		case LayerShape:
			layer = &ShapeLayer{}
		case LayerVectorIcon:
			layer = &VectorIconLayer{}
		default:
			return fmt.Errorf("layer %d: unknown kind %q", i, head.Kind)
		}
		if err := json.Unmarshal(raw, layer); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
		state.Layers = append(state.Layers, layer)
	}

	*s = state
	return nil
}
