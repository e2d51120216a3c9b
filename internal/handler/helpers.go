package handler

import (
	"net/http"

	"parley/internal/domain/services"
	"parley/internal/httputil"
)

// identity returns the authenticated caller or writes 401
func identity(w http.ResponseWriter, r *http.Request) (services.Identity, bool) {
	id, ok := httputil.IdentityFrom(r)
	if !ok {
		httputil.RespondError(w, http.StatusUnauthorized, "authentication required")
	}
	return id, ok
}

// pathID parses {name} or writes 400
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := httputil.PathID(r, name)
	if err != nil {
		handleError(w, err)
		return 0, false
	}
	return id, true
}

// pageParams reads page, per_page and versions from the query string
func pageParams(r *http.Request) (*services.PageRequest, error) {
	page, err := httputil.QueryInt(r, "page")
	if err != nil {
		return nil, err
	}
	perPage, err := httputil.QueryInt(r, "per_page")
	if err != nil {
		return nil, err
	}
	versions, err := httputil.QueryBool(r, "versions")
	if err != nil {
		return nil, err
	}
	return &services.PageRequest{Page: page, PerPage: perPage, IncludeVersions: versions}, nil
}
