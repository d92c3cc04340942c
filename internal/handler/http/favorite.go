package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/ddjsphere/craftsmen-marketplace/internal/service"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/httputil"
	"github.com/ddjsphere/craftsmen-marketplace/pkg/middleware"
)

// FavoriteHandler handles a buyer's saved items.
type FavoriteHandler struct {
	service *service.FavoriteService
	logger  *slog.Logger
}

// NewFavoriteHandler creates a new favorite HTTP handler.
func NewFavoriteHandler(svc *service.FavoriteService, logger *slog.Logger) *FavoriteHandler {
	return &FavoriteHandler{service: svc, logger: logger}
}

// ListFavorites handles GET /favorites
func (h *FavoriteHandler) ListFavorites(w http.ResponseWriter, r *http.Request) {
	favs, err := h.service.List(r.Context(), middleware.BuyerIDFromContext(r))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, httputil.Payload{"favorites": favs})
}

// AddFavorite handles POST /favorites/{itemId}
func (h *FavoriteHandler) AddFavorite(w http.ResponseWriter, r *http.Request) {
	fav, err := h.service.Add(r.Context(), middleware.BuyerIDFromContext(r), chi.URLParam(r, "itemId"))
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteSuccess(w, http.StatusCreated, httputil.Payload{"favorite": fav})
}

// RemoveFavorite handles DELETE /favorites/{itemId}
func (h *FavoriteHandler) RemoveFavorite(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Remove(r.Context(), middleware.BuyerIDFromContext(r), chi.URLParam(r, "itemId")); err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}
	httputil.WriteMessage(w, http.StatusOK, "Favorite removed")
}
