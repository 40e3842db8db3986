package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/divinahealthcare/site/internal/catalog"
)

// productsResponse is the JSON body of GET /api/products.
type productsResponse struct {
	Query    string            `json:"query"`
	Count    int               `json:"count"`
	Products []catalog.Product `json:"products"`
}

func (s *Server) handleAPIProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query().Get("q")
	products := catalog.FilterProducts(s.deps.Catalog.Products(), q)
	writeJSON(w, http.StatusOK, productsResponse{Query: q, Count: len(products), Products: products})
}

// serviceResponse is the JSON body of GET /api/services/{id}. Detail is the
// resolved content, including the default for services without any.
type serviceResponse struct {
	catalog.Service
	Detail catalog.ServiceDetail `json:"detail"`
}

func (s *Server) handleAPIService(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.deps.Catalog.Service(chi.URLParam(r, "id"))
	if !ok {
		s.respondError(w, r, errNotFound, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, serviceResponse{Service: svc, Detail: svc.Detail()})
}
