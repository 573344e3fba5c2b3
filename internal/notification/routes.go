package notification

import (
	"github.com/gorilla/mux"

	"github.com/imadgeboyega/kiekky-matchcore/internal/auth"
)

func RegisterRoutes(router *mux.Router, handler *Handler, authMiddleware *auth.Middleware) {
	api := router.PathPrefix("/api/v1/notifications").Subrouter()
	api.Use(authMiddleware.Authenticate)

	api.HandleFunc("", handler.GetNotifications).Methods("GET")
}
