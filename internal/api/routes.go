package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

func (api *HTTP) setupRoutes() {
	router := mux.NewRouter()
	router.Use(middlewareRequestID(), middlewareLogger(api.logger))

	// websocket endpoints
	router.HandleFunc("/ws/device", api.handleDeviceWS).Methods(http.MethodGet)
	router.HandleFunc("/ws/dashboard", api.handleDashboardWS).Methods(http.MethodGet)

	// api/v1 base path handlers
	v1 := router.PathPrefix("/api/v1").Subrouter()
	v1.Use(middlewareCounter(api))
	v1.HandleFunc("/info", api.handleInfo).Methods(http.MethodGet)
	v1.HandleFunc("/tanks", api.handleTanks).Methods(http.MethodGet)
	v1.HandleFunc("/tanks/live", api.handleLive).Methods(http.MethodGet)
	v1.HandleFunc("/tanks/{id}", api.handleUpdateTank).Methods(http.MethodPatch)
	v1.HandleFunc("/tanks/{id}", api.handleDecommission).Methods(http.MethodDelete)
	v1.HandleFunc("/pair", api.handlePair).Methods(http.MethodPost)

	if !api.cfg.History.DisableAPI {
		v1.HandleFunc("/tanks/{id}/history", api.handleTankHistory).Methods(http.MethodGet)
		v1.HandleFunc("/history", api.handleFleetHistory).Methods(http.MethodGet)
	}

	api.srv.Handler = router
}
