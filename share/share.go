// Package share resolves share tokens against the local asset registries.
package share

import (
	"designlink/assethash"
	"designlink/codec"
	"designlink/core"
	"designlink/registry"
	"net/url"
	"strings"

	"github.com/sirupsen/logrus"
)

type AssetStatus struct {
	ID       string         `json:"id"`
	Kind     core.AssetKind `json:"kind"`
	Found    bool           `json:"found"`
	Verified bool           `json:"verified"`
}

// Resolution is a decoded design plus the state of every asset it refers
// to. Missing lists ids that are absent here or whose content no longer
// hashes to the id.
type Resolution struct {
	State   *core.DesignState `json:"state"`
	Assets  []AssetStatus     `json:"assets"`
	Missing []string          `json:"missing"`
}

type Resolver struct {
	Vectors *registry.Registry
	Fonts   *registry.Registry
}

func NewResolver(vectors, fonts *registry.Registry) *Resolver {
	return &Resolver{Vectors: vectors, Fonts: fonts}
}

// Resolve decodes token and checks each referenced asset. Decode errors
// are returned as is and wrap codec.ErrInvalidToken.
func (s *Resolver) Resolve(token string) (Resolution, error) {
	state, err := codec.Decode(token)
	if err != nil {
		return Resolution{}, err
	}

	res := Resolution{
		State:   state,
		Assets:  []AssetStatus{},
		Missing: []string{},
	}
	seen := make(map[string]bool)
	for _, id := range referencedAssets(state) {
		if seen[id] {
			continue
		}
		seen[id] = true

		status := s.check(id)
		res.Assets = append(res.Assets, status)
		if !status.Verified {
			res.Missing = append(res.Missing, id)
		}
	}

	if len(res.Missing) > 0 {
		logrus.WithFields(logrus.Fields{
			"layers":  len(state.Layers),
			"missing": res.Missing,
		}).Warn("Shared design references unavailable assets")
	}
	return res, nil
}

func (s *Resolver) check(id string) AssetStatus {
	kind, _, err := assethash.ParseID(id)
	status := AssetStatus{ID: id, Kind: kind}
	if err != nil {
		return status
	}

	reg := s.registryFor(kind)
	if reg == nil {
		return status
	}
	content, ok := reg.GetContent(id)
	if !ok {
		return status
	}
	status.Found = true
	status.Verified = assethash.VerifyID(id, content)
	return status
}

func (s *Resolver) registryFor(kind core.AssetKind) *registry.Registry {
	switch kind {
	case core.KindVector:
		return s.Vectors
	case core.KindFont:
		return s.Fonts
	}
	return nil
}

// referencedAssets lists asset ids in layer order: icon asset ids, and
// font families that name an uploaded font rather than a built-in one.
func referencedAssets(state *core.DesignState) []string {
	var ids []string
	for _, layer := range state.Layers {
		switch l := layer.(type) {
		case *core.VectorIconLayer:
			if l.AssetID != nil && *l.AssetID != "" {
				ids = append(ids, *l.AssetID)
			}
		case *core.TextLayer:
			if l.FontFamily == nil {
				continue
			}
			if kind, _, err := assethash.ParseID(*l.FontFamily); err == nil && kind == core.KindFont {
				ids = append(ids, *l.FontFamily)
			}
		}
	}
	return ids
}

// Link appends token to base as the "d" query parameter. An empty base
// yields a relative link.
func Link(base, token string) (string, error) {
	if base == "" {
		return "?d=" + url.QueryEscape(token), nil
	}
	u, err := url.Parse(strings.TrimSpace(base))
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("d", token)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
