package runtime

import (
	"net/http"
	"strings"

	jsoncodec "github.com/drblury/topicflow/internal/runtime/jsoncodec"
	loggingpkg "github.com/drblury/topicflow/internal/runtime/logging"
	"github.com/drblury/topicflow/internal/runtime/topic"
)

const defaultRoutesAPIPort = 8081

// RouteInfo is one entry of the dispatch table as served by /api/routes.
type RouteInfo struct {
	Message  string `json:"message"`
	ID       string `json:"id"`
	Service  string `json:"service"`
	Bus      string `json:"bus"`
	Channel  string `json:"channel"`
	Qos      string `json:"qos"`
	Ready    bool   `json:"ready"`
	Resolver string `json:"resolver,omitempty"`
}

// JoinInfo lists the channels a service joined.
type JoinInfo struct {
	Service  string   `json:"service"`
	Channels []string `json:"channels"`
}

// RoutesSnapshot is the body of /api/routes.
type RoutesSnapshot struct {
	Routes   []RouteInfo   `json:"routes"`
	Joins    []JoinInfo    `json:"joins"`
	Handlers []HandlerInfo `json:"handlers"`
	Backup   bool          `json:"backup"`
}

// Routes captures the current dispatch table.
func (s *Service) Routes() RoutesSnapshot {
	snap := RoutesSnapshot{
		Routes:   []RouteInfo{},
		Joins:    []JoinInfo{},
		Handlers: s.Handlers(),
		Backup:   s.IsBackup(),
	}
	for _, sc := range s.table.Contexts() {
		info := RouteInfo{
			Message: sc.MessageType,
			ID:      sc.ID.String(),
			Service: sc.Service,
			Bus:     sc.Bus,
			Channel: sc.Channel,
			Qos:     sc.Qos.String(),
			Ready:   sc.Ready(),
		}
		if sc.Resolver != nil {
			info.Resolver = topic.ProviderName(sc.Resolver)
		}
		snap.Routes = append(snap.Routes, info)
	}
	for _, svc := range s.table.JoinServices() {
		join := JoinInfo{Service: svc}
		for _, ch := range s.table.JoinSet(svc) {
			join.Channels = append(join.Channels, ch.QualifiedName())
		}
		snap.Joins = append(snap.Joins, join)
	}
	return snap
}

// StartRoutesAPIServer registers /api/routes when enabled in the config.
func (s *Service) StartRoutesAPIServer() {
	if !s.Conf.RoutesAPIEnabled {
		return
	}

	port := s.Conf.RoutesAPIPort
	if port == 0 {
		port = defaultRoutesAPIPort
	}

	s.RegisterHTTPHandler(port, "/api/routes", http.HandlerFunc(s.handleGetRoutes))
}

func (s *Service) handleGetRoutes(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	if s.Conf != nil && len(s.Conf.RoutesAPICORSAllowedOrigins) > 0 {
		if allowed := s.getAllowedCORSOrigin(r.Header.Get("Origin")); allowed != "" {
			w.Header().Set("Access-Control-Allow-Origin", allowed)
			w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		}
	}

	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodGet {
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}

	if err := jsoncodec.Encode(w, s.Routes()); err != nil {
		s.Logger.Error("Failed to encode routes", err, loggingpkg.LogFields{})
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
	}
}

// getAllowedCORSOrigin returns the Access-Control-Allow-Origin value for
// requestOrigin, or "" when it is not allowed.
func (s *Service) getAllowedCORSOrigin(requestOrigin string) string {
	if s.Conf == nil {
		return ""
	}
	for _, allowed := range s.Conf.RoutesAPICORSAllowedOrigins {
		if allowed == "*" {
			return "*"
		}
		if strings.EqualFold(allowed, requestOrigin) {
			return requestOrigin
		}
	}
	return ""
}
