package api

import (
	"billnotify/internal/config"
	"billnotify/internal/usecase"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type Server struct {
	router       *chi.Mux
	admin        *usecase.Admin
	origins      []string
	authRequired bool
}

func NewServer(admin *usecase.Admin, cfg config.Admin) *Server {
	s := &Server{
		router:       chi.NewRouter(),
		admin:        admin,
		origins:      cfg.CORSOrigins,
		authRequired: cfg.JWTSecret != "",
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "Invalid endpoint"})
	})
	s.router.Get("/", s.dashboard)

	s.router.Group(func(r chi.Router) {
		if s.authRequired {
			r.Use(RequireAuth(NewTokenAuth(cfg.JWTSecret)))
		}

		r.Get("/queues", s.listQueues)
		r.Get("/queues/{name}", s.queueDetail)
		r.Get("/tasks", s.listTasks)

		r.Group(func(r chi.Router) {
			r.Use(auditHandler)
			r.Post("/trigger", s.trigger)
			r.Post("/trigger-delayed", s.triggerDelayed)
			r.Post("/trigger-all-delayed", s.triggerAllDelayed)
			r.Post("/delete-job", s.deleteJob)
			r.Post("/delete-failed", s.deleteFailed)
			r.Post("/delete-completed", s.deleteCompleted)
		})
	})

	return s
}

// Handler is the router behind the full middleware chain.
func (s *Server) Handler() http.Handler {
	return chainMiddleware(
		s.router,
		recoverHandler,
		realIPHandler,
		requestIDHandler,
		loggerHandler(func(w http.ResponseWriter, r *http.Request) bool { return r.URL.Path == "/" }),
		corsHandler(s.origins),
	)
}

// Run method of the Server struct runs the HTTP server on the specified port
// and shuts it down gracefully on SIGINT or SIGTERM.
func (s *Server) Run(port int) {
	addr := fmt.Sprintf(":%d", port)

	httpServer := http.Server{
		Addr:         addr,
		Handler:      s.Handler(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	done := make(chan bool)
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-quit
		log.Info().Msg("Server is shutting down...")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := httpServer.Shutdown(ctx); err != nil {
			log.Fatal().Err(err).Msg("Server forced to shutdown")
		}

		close(done)
	}()

	log.Info().Msgf("server serving on port %d", port)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatal().Err(err).Msg("Failed to listen and serve")
	}

	<-done
	log.Info().Msg("Server stopped")
}
