package httpx

import (
	"errors"
	"net/http"

	"github.com/ariefcatur/agri-marketplace/internal/catalog"
	"github.com/ariefcatur/agri-marketplace/internal/orders"
	"go.uber.org/zap"
)

type errorBody struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Kind      string `json:"kind"`
	Detail    string `json:"detail"`
	ProductID *int64 `json:"product_id,omitempty"`
	Available *int   `json:"available,omitempty"`
}

func writeProblem(w http.ResponseWriter, code int, kind, detail string) {
	writeJSON(w, code, errorBody{Error: errorDetail{Kind: kind, Detail: detail}})
}

// writeError maps domain errors to status codes. Unknown errors are logged and
// reported without detail.
func writeError(w http.ResponseWriter, log *zap.Logger, err error) {
	switch {
	case errors.Is(err, catalog.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "not_found", err.Error())
		return
	case errors.Is(err, catalog.ErrInvalid):
		writeProblem(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	kind := orders.KindOf(err)
	body := errorBody{Error: errorDetail{Kind: kind, Detail: err.Error()}}
	var pe *orders.ProductError
	if errors.As(err, &pe) {
		body.Error.ProductID = &pe.ProductID
		if kind == "insufficient_stock" {
			body.Error.Available = &pe.Available
		}
	}

	code := http.StatusInternalServerError
	switch kind {
	case "invalid_request", "product_unavailable", "insufficient_stock", "invalid_transition":
		code = http.StatusBadRequest
	case "not_found":
		code = http.StatusNotFound
		body.Error.Detail = "order not found"
	case "lock_timeout":
		code = http.StatusServiceUnavailable
		w.Header().Set("Retry-After", "1")
	default:
		log.Error("request failed", zap.Error(err))
		body.Error.Detail = "internal error"
	}
	writeJSON(w, code, body)
}
