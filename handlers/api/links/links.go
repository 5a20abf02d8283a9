package links

import (
	"designlink/codec"
	"designlink/core"
	"designlink/share"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/sirupsen/logrus"
)

type (
	CreateShareResponse struct {
		Token string `json:"token"`
		URL   string `json:"url"`
	}
)

// HandleCreate encodes the posted design into a share token.
func HandleCreate(baseURL string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var state core.DesignState
		if err := json.NewDecoder(r.Body).Decode(&state); err != nil {
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid design state"})
			return
		}
		defer r.Body.Close()

		token, err := codec.Encode(&state)
		if err != nil {
			render.Status(r, http.StatusUnprocessableEntity)
			render.JSON(w, r, map[string]string{"error": err.Error()})
			return
		}

		link, err := share.Link(baseURL, token)
		if err != nil {
			logrus.WithError(err).WithField("baseURL", baseURL).Error("Failed to build share link")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to build share link"})
			return
		}

		logrus.WithFields(logrus.Fields{
			"layers":      len(state.Layers),
			"tokenLength": len(token),
		}).Info("Share token created")

		render.Status(r, http.StatusCreated)
		render.JSON(w, r, CreateShareResponse{Token: token, URL: link})
	}
}

// HandleResolve decodes a token and reports which referenced assets are
// available on this server.
func HandleResolve(resolver *share.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := chi.URLParam(r, "token")

		res, err := resolver.Resolve(token)
		if errors.Is(err, codec.ErrInvalidToken) {
			logrus.WithError(err).Warn("Rejected share token")
			render.Status(r, http.StatusBadRequest)
			render.JSON(w, r, map[string]string{"error": "Invalid share token"})
			return
		}
		if err != nil {
			logrus.WithError(err).Error("Failed to resolve share token")
			render.Status(r, http.StatusInternalServerError)
			render.JSON(w, r, map[string]string{"error": "Failed to resolve share token"})
			return
		}

		render.JSON(w, r, res)
	}
}
