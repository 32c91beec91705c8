package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/viper-hass/viper-hass/internal/coordinator"
	"github.com/viper-hass/viper-hass/internal/status"
)

// HTTPd exposes the control and observability surface: bulk and
// per-account refresh triggers, snapshot inspection, metrics and health.
type HTTPd struct {
	*http.Server
	registry *coordinator.Registry
	logger   *logrus.Logger
}

type route struct {
	Methods     []string
	Pattern     string
	HandlerFunc http.HandlerFunc
}

// accountResponse is the JSON shape of one account's published state.
type accountResponse struct {
	Account     string          `json:"account"`
	Vehicles    []status.Vehicle `json:"vehicles"`
	Snapshot    status.Snapshot `json:"snapshot"`
	LastUpdated *time.Time      `json:"last_updated,omitempty"`
	Boosted     bool            `json:"boosted"`
	IntervalSec int             `json:"interval_seconds"`
}

// NewHTTPd creates the HTTP server with all routes configured.
func NewHTTPd(addr string, registry *coordinator.Registry, logger *logrus.Logger) *HTTPd {
	s := &HTTPd{
		registry: registry,
		logger:   logger,
	}

	router := mux.NewRouter().StrictSlash(true)

	routes := []route{
		{[]string{http.MethodGet}, "/healthz", s.handleHealth},
		{[]string{http.MethodPost}, "/api/refresh", s.handleRefreshAll},
		{[]string{http.MethodGet}, "/api/accounts", s.handleAccounts},
		{[]string{http.MethodGet}, "/api/accounts/{account}", s.handleAccount},
		{[]string{http.MethodPost}, "/api/accounts/{account}/refresh", s.handleRefresh},
	}

	for _, r := range routes {
		router.Methods(r.Methods...).Path(r.Pattern).HandlerFunc(r.HandlerFunc)
	}

	router.Path("/metrics").Handler(promhttp.Handler())

	s.Server = &http.Server{
		Addr:         addr,
		Handler:      router,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	return s
}

func (s *HTTPd) handleHealth(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleRefreshAll requests a refresh on every registered coordinator -
// the "refresh all tracked accounts" boundary.
func (s *HTTPd) handleRefreshAll(w http.ResponseWriter, r *http.Request) {
	n := s.registry.RefreshAll()
	s.logger.WithField("accounts", n).Info("Bulk refresh requested")
	jsonResponse(w, http.StatusAccepted, map[string]int{"accounts": n})
}

func (s *HTTPd) handleAccounts(w http.ResponseWriter, r *http.Request) {
	jsonResponse(w, http.StatusOK, s.registry.Accounts())
}

func (s *HTTPd) handleAccount(w http.ResponseWriter, r *http.Request) {
	coord, ok := s.registry.Get(mux.Vars(r)["account"])
	if !ok {
		http.Error(w, "unknown account", http.StatusNotFound)
		return
	}

	resp := accountResponse{
		Account:     coord.Account(),
		Snapshot:    coord.Snapshot(),
		Boosted:     coord.Boosted(),
		IntervalSec: int(coord.Interval().Seconds()),
	}
	for _, id := range coord.VehicleIDs() {
		if v, ok := coord.Vehicle(id); ok {
			resp.Vehicles = append(resp.Vehicles, v)
		}
	}
	if t := coord.LastUpdated(); !t.IsZero() {
		resp.LastUpdated = &t
	}

	jsonResponse(w, http.StatusOK, resp)
}

func (s *HTTPd) handleRefresh(w http.ResponseWriter, r *http.Request) {
	account := mux.Vars(r)["account"]
	coord, ok := s.registry.Get(account)
	if !ok {
		http.Error(w, "unknown account", http.StatusNotFound)
		return
	}

	coord.RequestRefresh()
	s.logger.WithField("account", account).Debug("Manual refresh requested")
	jsonResponse(w, http.StatusAccepted, map[string]string{"account": account})
}

func jsonResponse(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}
