// Package server wires HTTP handlers into a ServeMux for the ratechat
// application via routing helpers.
package server

import (
	"log/slog"
	"net/http"
)

// SetupRoutes configures and returns an HTTP ServeMux with all application
// routes: health check, WebSocket endpoint, and the browser test page.
func SetupRoutes(hub *Hub, dispatcher *Dispatcher, log *slog.Logger) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("/", HealthHandler)
	mux.Handle("/ws", WebSocketHandler(hub, dispatcher, log))
	mux.HandleFunc("/test", TestPageHandler)
	return mux
}
