// Package codec turns a DesignState into a compact, URL-safe token and back.
//
// A token is the minified JSON form of the state (short keys, font and
// color values replaced by dictionary codes) encoded as unpadded base64url.
// The first key is always the version marker "v"; tokens without it, or
// with any other version, are rejected rather than guessed at.
//
// Template ids are written verbatim so that links keep working when the
// template catalog changes.
package codec

import (
	"bytes"
	"designlink/core"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"
)

// Version is bumped whenever the key table or a dictionary changes.
const Version = 2

// MaxTokenLength bounds the input Decode is willing to look at.
const MaxTokenLength = 1 << 20

// ErrInvalidToken wraps every decode failure.
var ErrInvalidToken = errors.New("invalid token")

// Encode serializes state into a token. It fails only for states that
// break the layer invariants or hold non-finite numbers.
func Encode(state *core.DesignState) (string, error) {
	payload, err := marshal(state)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(payload), nil
}

func marshal(state *core.DesignState) ([]byte, error) {
	if state == nil {
		return nil, fmt.Errorf("nil design state")
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}

	version := Version
	layers := make([]wireLayer, 0, len(state.Layers))
	for _, layer := range state.Layers {
		w, err := minifyLayer(layer)
		if err != nil {
			return nil, err
		}
		layers = append(layers, w)
	}

	wire := wireState{
		Version:    &version,
		TemplateID: state.SelectedTemplateID,
		Layers:     &layers,
	}
	if !state.LastModified.IsZero() {
		ms := state.LastModified.UnixMilli()
		wire.Modified = &ms
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(wire); err != nil {
		return nil, err
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Decode parses a token produced by Encode. Any malformed, foreign or
// outdated token yields a nil state and an error wrapping ErrInvalidToken.
func Decode(token string) (*core.DesignState, error) {
	payload, err := decodePayload(token)
	if err != nil {
		return nil, invalid(err)
	}
	state, err := unmarshal(payload)
	if err != nil {
		return nil, invalid(err)
	}
	return state, nil
}

func invalid(cause error) error {
	return fmt.Errorf("%w: %v", ErrInvalidToken, cause)
}

// decodePayload undoes the base64url and UTF-8 layers.
func decodePayload(token string) ([]byte, error) {
	if token == "" {
		return nil, errors.New("empty token")
	}
	if len(token) > MaxTokenLength {
		return nil, fmt.Errorf("token longer than %d bytes", MaxTokenLength)
	}
	payload, err := base64.RawURLEncoding.Strict().DecodeString(strings.TrimRight(token, "="))
	if err != nil {
		return nil, err
	}
	if !utf8.Valid(payload) {
		return nil, errors.New("payload is not valid UTF-8")
	}
	return payload, nil
}

func unmarshal(payload []byte) (*core.DesignState, error) {
	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.DisallowUnknownFields()

	var wire wireState
	if err := dec.Decode(&wire); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, errors.New("trailing data after payload")
	}

	if wire.Version == nil {
		return nil, errors.New("missing version marker")
	}
	if *wire.Version != Version {
		return nil, fmt.Errorf("unsupported version %d", *wire.Version)
	}
	if wire.Layers == nil {
		return nil, errors.New("missing layer list")
	}

	state := &core.DesignState{
		SelectedTemplateID: wire.TemplateID,
		Layers:             make([]core.LayerOverride, 0, len(*wire.Layers)),
	}
	if wire.Modified != nil {
		state.LastModified = time.UnixMilli(*wire.Modified)
	}
	for _, w := range *wire.Layers {
		layer, err := expandLayer(w)
		if err != nil {
			return nil, err
		}
		state.Layers = append(state.Layers, layer)
	}
	if err := state.Validate(); err != nil {
		return nil, err
	}
	return state, nil
}
