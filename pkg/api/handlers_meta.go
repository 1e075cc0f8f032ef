package api

import (
	"net/http"

	"github.com/terranova-labs/listingd/pkg/httputil"
	"github.com/terranova-labs/listingd/pkg/schema"
)

// AppInfo is the body of GET /.
type AppInfo struct {
	AppName     string       `json:"app_name"`
	Version     string       `json:"version"`
	Description string       `json:"description"`
	Environment string       `json:"environment"`
	DocsURL     string       `json:"docs_url"`
	RedocURL    string       `json:"redoc_url"`
	APIPrefix   string       `json:"api_prefix"`
	Endpoints   AppEndpoints `json:"endpoints"`
}

// AppEndpoints lists the well-known URLs of the service.
type AppEndpoints struct {
	HealthCheck    string `json:"health_check"`
	DetailedHealth string `json:"detailed_health"`
	Documentation  string `json:"documentation"`
	Redoc          string `json:"redoc"`
}

func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, AppInfo{
		AppName:     s.settings.AppName,
		Version:     s.settings.AppVersion,
		Description: s.settings.AppDescription,
		Environment: s.settings.Environment,
		DocsURL:     s.settings.DocsURL,
		RedocURL:    s.settings.RedocURL,
		APIPrefix:   s.prefix,
		Endpoints: AppEndpoints{
			HealthCheck:    s.prefix + "/ping",
			DetailedHealth: s.prefix + "/health",
			Documentation:  s.settings.DocsURL,
			Redoc:          s.settings.RedocURL,
		},
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, map[string]string{"status": "ok"})
}

func (s *Server) handleFavicon(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, map[string]string{"message": "No favicon configured"})
}

func (s *Server) handlePing(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, schema.PingResponse{Message: "pong", Timestamp: s.timestamp()})
}

func (s *Server) handleAPIHealth(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, schema.PingResponse{Message: "healthy", Timestamp: s.timestamp()})
}
