package app

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	httpSwagger "github.com/swaggo/http-swagger"

	"tush00nka/phonechat/internal/handler"
)

type RouteRegistrar interface {
	RegisterRoutes(router *mux.Router)
}

type ServerOptions struct {
	AllowedOrigins []string
	// UploadDir is served under /uploads/ when media is kept on local disk.
	UploadDir string
}

type Server struct {
	router *mux.Router
	opts   ServerOptions
}

func NewServer(opts ServerOptions, health *handler.HealthHandler, registrars ...RouteRegistrar) *Server {
	router := mux.NewRouter()

	for _, r := range registrars {
		r.RegisterRoutes(router)
	}

	router.HandleFunc("/ping", handler.Ping).Methods("GET")
	if health != nil {
		router.HandleFunc("/health", health.Health).Methods("GET")
	}

	if opts.UploadDir != "" {
		router.PathPrefix("/uploads/").Handler(
			http.StripPrefix("/uploads/", http.FileServer(noDirListing{http.Dir(opts.UploadDir)})),
		).Methods("GET")
	}

	router.PathPrefix("/swagger/").Handler(httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))

	return &Server{router: router, opts: opts}
}

// Handler wraps the router with CORS and access logging.
func (s *Server) Handler() http.Handler {
	cors := handlers.CORS(
		handlers.AllowedOrigins(s.opts.AllowedOrigins),
		handlers.AllowedMethods([]string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"}),
		handlers.AllowedHeaders([]string{"Content-Type", "X-Requested-With"}),
		handlers.AllowCredentials(),
	)
	return handlers.CombinedLoggingHandler(os.Stdout, cors(s.router))
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Run(ctx context.Context, port string) error {
	srv := &http.Server{
		Handler:      s.Handler(),
		Addr:         ":" + port,
		WriteTimeout: 15 * time.Second,
		ReadTimeout:  15 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("Server starting on port %s", port)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Println("Shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

type noDirListing struct {
	fs http.FileSystem
}

func (n noDirListing) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	if info, err := f.Stat(); err == nil && info.IsDir() {
		f.Close()
		return nil, os.ErrNotExist
	}
	return f, nil
}
