package server

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/net/netutil"

	"kestrel/internal/auth"
	"kestrel/internal/config"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, status int) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func OpenRoutes(port int) error {
	router := http.NewServeMux()

	router.HandleFunc("POST /register", registerUser)
	router.HandleFunc("POST /login", loginUser)
	router.Handle("GET /checkLogin", auth.RequireAuth(http.HandlerFunc(checkLogin)))

	router.Handle("POST /events", auth.RequireAuth(http.HandlerFunc(submitEvent)))
	router.HandleFunc("GET /blocked/{ip}", getBlockedStatus)

	router.Handle("GET /incidents", auth.RequireAdmin(http.HandlerFunc(getIncidents)))
	router.Handle("GET /incidents/{ip}", auth.RequireAdmin(http.HandlerFunc(getIncidentDetail)))
	router.Handle("GET /overview", auth.RequireAdmin(http.HandlerFunc(getOverview)))
	router.Handle("GET /audit/{ip}", auth.RequireAdmin(http.HandlerFunc(getAuditTrail)))

	router.Handle("POST /block", auth.RequireAdmin(http.HandlerFunc(blockIP)))
	router.Handle("POST /unblock", auth.RequireSuperadmin(http.HandlerFunc(unblockIP)))
	router.Handle("POST /resolve", auth.RequireAdmin(http.HandlerFunc(resolveBlock)))

	router.Handle("GET /settings", auth.RequireAdmin(http.HandlerFunc(getSettings)))
	router.Handle("POST /settings", auth.RequireAdmin(http.HandlerFunc(saveSettings)))

	router.Handle("GET /export/csv", auth.RequireAdmin(http.HandlerFunc(exportIncidentsCSV)))
	router.Handle("GET /export/audit/{ip}", auth.RequireAdmin(http.HandlerFunc(exportAuditCSV)))

	router.HandleFunc("GET /version", getVersion)

	log.Debug("Routes opened")

	cfg := config.GetConfig()
	server := http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: enableCORS(router),
	}
	if cfg.Server.RequestTimeoutS > 0 {
		timeout := time.Duration(cfg.Server.RequestTimeoutS) * time.Second
		server.ReadTimeout = timeout
		server.WriteTimeout = timeout
	}

	listener, err := net.Listen("tcp", server.Addr)
	if err != nil {
		return fmt.Errorf("api server failed to listen: %w", err)
	}
	if cfg.Server.MaxConnections > 0 {
		listener = netutil.LimitListener(listener, cfg.Server.MaxConnections)
	}

	log.Infof("Starting kestrel backend on port :%d", port)
	if err := server.Serve(listener); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("api server failed: %w", err)
	}
	return nil
}
