package api

import (
	"errors"
	"net/http"

	"github.com/shaiso/Conductor/internal/registry"
)

// ListCatalogPackages возвращает все пакеты каталога.
// GET /api/v1/catalog/packages
func (h *Handler) ListCatalogPackages(w http.ResponseWriter, r *http.Request) {
	defs := h.catalog.List()
	List(w, defs, len(defs))
}

// GetCatalogPackage возвращает пакет каталога со схемой параметров.
// GET /api/v1/catalog/packages/{name}
func (h *Handler) GetCatalogPackage(w http.ResponseWriter, r *http.Request) {
	def, err := h.catalog.Get(r.PathValue("name"))
	if err != nil {
		if errors.Is(err, registry.ErrUnknownPackage) {
			NotFound(w, "package not found")
			return
		}
		InternalError(w, h.logger, err)
		return
	}

	Success(w, def)
}
