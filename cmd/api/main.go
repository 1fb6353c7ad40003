// @title                       Event Check-in API
// @version                     1.0
// @description                 Student accounts, groups, events, registrations and photo check-ins.
// @BasePath                    /api/v1
// @securityDefinitions.apikey  BearerAuth
// @in                          header
// @name                        Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/fkhayef/eventcheckin/docs"
	"github.com/fkhayef/eventcheckin/internal/auth"
	"github.com/fkhayef/eventcheckin/internal/checkin"
	"github.com/fkhayef/eventcheckin/internal/config"
	"github.com/fkhayef/eventcheckin/internal/database"
	"github.com/fkhayef/eventcheckin/internal/event"
	"github.com/fkhayef/eventcheckin/internal/group"
	"github.com/fkhayef/eventcheckin/internal/identityimage"
	"github.com/fkhayef/eventcheckin/internal/location"
	"github.com/fkhayef/eventcheckin/internal/manager"
	"github.com/fkhayef/eventcheckin/internal/storage"
	"github.com/fkhayef/eventcheckin/internal/user"
	"github.com/fkhayef/eventcheckin/pkg/logger"
	mw "github.com/fkhayef/eventcheckin/pkg/middleware"
	"github.com/fkhayef/eventcheckin/pkg/password"
)

func main() {
	// Load .env file
	envErr := godotenv.Load()

	cfg := config.Load()

	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "eventcheckin")
	if err != nil {
		panic("failed to build logger: " + err.Error())
	}
	defer func() { _ = log.Sync() }()

	if envErr != nil {
		log.Info("no .env file found, using environment variables")
	}

	db, err := database.NewPostgresConnection(cfg.DatabaseURL)
	if err != nil {
		log.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()
	log.Info("connected to database")

	if cfg.AutoMigrate {
		if err := database.Migrate(db); err != nil {
			log.Fatal("failed to apply migrations", zap.Error(err))
		}
	}

	blobs, err := storage.NewLocalStore(cfg.StorageDir)
	if err != nil {
		log.Fatal("failed to prepare storage", zap.Error(err))
	}
	uploader := storage.NewUploader(blobs, log)
	hasher := password.NewBcryptHasher(0)
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.AccessTokenTTL)
	authn := mw.Authenticate(tokens)
	avatars := user.AvatarOptions{BaseURL: cfg.AvatarBaseURL, LimitKB: cfg.AvatarLimitKB}

	// Identity store
	userService := user.NewService(user.NewRepository(db), hasher, uploader, avatars, log)
	managerService := manager.NewService(manager.NewRepository(db), hasher, uploader,
		manager.AvatarOptions{BaseURL: cfg.AvatarBaseURL, LimitKB: cfg.AvatarLimitKB}, log)

	if cfg.AdminUsername != "" {
		if err := managerService.EnsureAdmin(context.Background(), cfg.AdminUsername, cfg.AdminPassword); err != nil {
			log.Fatal("failed to bootstrap admin", zap.Error(err))
		}
	}

	// Managers are tried before students
	authService := auth.NewService(tokens, hasher, log, managerService, userService)

	// Registries and engines
	locationService := location.NewService(location.NewRepository(db))
	groupService := group.NewService(group.NewRepository(db), log)
	eventService := event.NewService(event.NewRepository(db), groupService, locationService, log)
	checkinService := checkin.NewService(checkin.NewRepository(db), eventService, uploader,
		checkin.Options{Limit: cfg.CheckinLimit, ImageLimitKB: cfg.ImageLimitKB}, log)
	identityService := identityimage.NewService(identityimage.NewRepository(db), blobs, uploader, cfg.ImageLimitKB, log)

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(mw.RequestLogger(log))
	r.Use(chimw.Recoverer)
	r.Use(cors.New(cors.Options{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		ExposedHeaders: []string{"Content-Disposition"},
	}).Handler)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	avatarPrefix := "/" + strings.Trim(cfg.AvatarBaseURL, "/")
	avatarFiles := http.FileServer(http.Dir(filepath.Join(blobs.Root(), storage.AvatarDir)))
	r.Handle(avatarPrefix+"/*", http.StripPrefix(avatarPrefix, avatarFiles))

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/auth", auth.NewHandler(authService, log).Routes())
		r.Mount("/users", user.NewHandler(userService, authn, log).Routes())
		r.Mount("/managers", manager.NewHandler(managerService, authn, log).Routes())
		r.Mount("/locations", location.NewHandler(locationService, authn, log).Routes())
		r.Mount("/groups", group.NewHandler(groupService, authn, log).Routes())
		r.Mount("/events", event.NewHandler(eventService, authn, log).Routes())
		r.Mount("/checkins", checkin.NewHandler(checkinService, authn, log).Routes())
		r.Mount("/identity-images", identityimage.NewHandler(identityService, authn, log).Routes())
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Info("server starting", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", zap.Error(err))
	}
}
