package router

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/BerylCAtieno/travel-extract/internal/handlers"
	"github.com/BerylCAtieno/travel-extract/internal/middleware"
	"github.com/BerylCAtieno/travel-extract/internal/utils"
)

func NewRouter(service handlers.ExtractionService, maxFileSize int64, logger *utils.Logger) http.Handler {
	r := mux.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS())
	r.Use(middleware.Recovery(logger))

	h := handlers.NewExtractionHandler(service, maxFileSize, logger)

	api := r.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"status":"healthy"}`))
	}).Methods(http.MethodGet)

	api.HandleFunc("/extractions/upload", h.UploadDocument).Methods(http.MethodPost, http.MethodOptions)
	api.HandleFunc("/inbound/email", h.InboundEmail).Methods(http.MethodPost, http.MethodOptions)

	api.HandleFunc("/bookings/{category}", h.ListBookings).Methods(http.MethodGet)
	api.HandleFunc("/bookings/{category}/{id}", h.GetBooking).Methods(http.MethodGet)

	return r
}
