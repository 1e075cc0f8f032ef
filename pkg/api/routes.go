package api

import (
	"net/http"
	"slices"
)

// Patterns that answer for paths nothing else claims. When one of them
// is hit, allowedMethods decides between 404 and 405.
const fallbackPattern = "/"

func (s *Server) registerRoutes() {
	p := s.prefix

	s.mux.HandleFunc("GET /{$}", s.handleRoot)
	s.mux.HandleFunc("GET /health", s.handleHealth)
	s.mux.HandleFunc("GET /favicon.ico", s.handleFavicon)
	s.mux.HandleFunc("GET /openapi.json", s.handleOpenAPI)
	s.mux.Handle("GET /metrics", s.metrics.Registry.Handler())
	if s.settings.DocsURL != "" {
		s.mux.HandleFunc("GET "+s.settings.DocsURL, s.handleDocs)
	}
	if s.settings.RedocURL != "" && s.settings.RedocURL != s.settings.DocsURL {
		s.mux.HandleFunc("GET "+s.settings.RedocURL, s.handleDocs)
	}

	s.mux.HandleFunc("GET "+p+"/ping", s.handlePing)
	s.mux.HandleFunc("GET "+p+"/health", s.handleAPIHealth)

	s.mux.HandleFunc("GET "+p+"/database/status", s.handleDatabaseStatus)
	s.mux.HandleFunc("POST "+p+"/database/reset", s.handleDatabaseReset)
	s.mux.HandleFunc("GET "+p+"/database/export", s.handleDatabaseExport)
	s.mux.HandleFunc("POST "+p+"/database/import", s.handleDatabaseImport)

	s.mux.HandleFunc("GET "+p+"/listings/search", s.handleListingSearch)

	s.mux.HandleFunc("GET "+p+"/{collection}", s.handleList)
	s.mux.HandleFunc("POST "+p+"/{collection}", s.handleCreate)
	s.mux.HandleFunc("GET "+p+"/{collection}/{id}", s.handleGet)
	s.mux.HandleFunc("PUT "+p+"/{collection}/{id}", s.handleUpdate)
	s.mux.HandleFunc("PATCH "+p+"/{collection}/{id}", s.handleUpdate)
	s.mux.HandleFunc("DELETE "+p+"/{collection}/{id}", s.handleDelete)

	s.mux.HandleFunc(fallbackPattern, s.handleFallback)
}

// isCollectionPattern reports whether pattern is one of the generic
// {collection} routes.
func (s *Server) isCollectionPattern(pattern string) bool {
	p := s.prefix
	switch pattern {
	case "GET " + p + "/{collection}", "POST " + p + "/{collection}",
		"GET " + p + "/{collection}/{id}", "PUT " + p + "/{collection}/{id}",
		"PATCH " + p + "/{collection}/{id}", "DELETE " + p + "/{collection}/{id}":
		return true
	}
	return false
}

var probeMethods = []string{
	http.MethodGet,
	http.MethodPost,
	http.MethodPut,
	http.MethodPatch,
	http.MethodDelete,
}

// allowedMethods returns the methods with a dedicated route for r's path.
// The fallback never counts, and collection routes count only when
// includeCollections is set.
func (s *Server) allowedMethods(r *http.Request, includeCollections bool) []string {
	var allowed []string
	for _, method := range probeMethods {
		if method == r.Method {
			continue
		}
		probe := r.Clone(r.Context())
		probe.Method = method
		_, pattern := s.mux.Handler(probe)
		if pattern == "" || pattern == fallbackPattern {
			continue
		}
		if !includeCollections && s.isCollectionPattern(pattern) {
			continue
		}
		allowed = append(allowed, method)
	}
	if slices.Contains(allowed, http.MethodGet) {
		allowed = append(allowed, http.MethodHead)
	}
	return allowed
}
