package httpx

import (
	"encoding/json"
	"net/http"

	"github.com/ariefcatur/agri-marketplace/internal/auth"
	"github.com/ariefcatur/agri-marketplace/internal/catalog"
	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type CatalogHandler struct {
	Repo catalog.Repository
	Log  *zap.Logger
}

type CreateProductReq struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Unit        string          `json:"unit"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Active      *bool           `json:"is_active"`
}

func (h *CatalogHandler) Register(r chi.Router, authn *auth.Authenticator) {
	r.Get("/products", h.listActive)
	r.Get("/products/{id}", h.getProduct)

	r.Group(func(r chi.Router) {
		r.Use(authn.Middleware, auth.RequireVendor)
		r.Get("/vendor/products", h.listMine)
		r.Post("/vendor/products", h.create)
		r.Patch("/vendor/products/{id}", h.update)
		r.Delete("/vendor/products/{id}", h.delete)
	})
}

func (h *CatalogHandler) listActive(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Repo.ListActive(r.Context())
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, h.Log, catalog.ErrNotFound)
		return
	}
	p, err := h.Repo.Get(r.Context(), id)
	if err == nil && !p.Active {
		err = catalog.ErrNotFound
	}
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) listMine(w http.ResponseWriter, r *http.Request) {
	ps, err := h.Repo.ListByVendor(r.Context(), caller(r).UserID)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *CatalogHandler) create(w http.ResponseWriter, r *http.Request) {
	var req CreateProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}
	p := &catalog.Product{
		VendorID:    caller(r).UserID,
		Name:        req.Name,
		Description: req.Description,
		Unit:        req.Unit,
		Price:       req.Price,
		Stock:       req.Stock,
		Active:      req.Active == nil || *req.Active,
	}
	if err := h.Repo.Create(r.Context(), p); err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *CatalogHandler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, h.Log, catalog.ErrNotFound)
		return
	}
	var patch catalog.Patch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		writeProblem(w, http.StatusBadRequest, "invalid_request", "invalid json")
		return
	}
	p, err := h.Repo.Update(r.Context(), caller(r).UserID, id, patch)
	if err != nil {
		writeError(w, h.Log, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *CatalogHandler) delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(r, "id")
	if !ok {
		writeError(w, h.Log, catalog.ErrNotFound)
		return
	}
	if err := h.Repo.Delete(r.Context(), caller(r).UserID, id); err != nil {
		writeError(w, h.Log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
