package main

import (
	"net/http"
	"os"
	"time"

	"github.com/calder-wren/pagepermsbackend/config"
	"github.com/calder-wren/pagepermsbackend/database"
	"github.com/calder-wren/pagepermsbackend/handlers"
	"github.com/calder-wren/pagepermsbackend/permissions"
	"github.com/calder-wren/pagepermsbackend/repository"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"
	"github.com/rs/zerolog"
)

func main() {
	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()

	if err := godotenv.Load(); err != nil {
		logger.Info().Err(err).Msg("no .env file loaded")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warn().Str("log_level", cfg.LogLevel).Msg("unknown log level, using info")
		level = zerolog.InfoLevel
	}
	logger = logger.Level(level)

	policy, err := permissions.LoadRolePolicySet(cfg.RolePolicyPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load role policy")
	}
	namespaceLevels, err := config.LoadNamespaceLevels(cfg.NamespaceLevelsPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load namespace levels")
	}

	db, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize database")
	}
	if err := database.AutoMigrateModels(db); err != nil {
		logger.Fatal().Err(err).Msg("failed to migrate database schema")
	}
	sqlDB, err := db.DB()
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to get raw database handle")
	}
	defer sqlDB.Close()

	userRepo := repository.NewGormUserRepository(db)
	pageRepo := repository.NewGormPageRepository(db)
	assignmentRepo := repository.NewGormAssignmentRepository(db)
	changeLogRepo := repository.NewGormChangeLogRepository(db)

	assignmentReader := database.NewAssignmentReader(sqlDB)
	readOnly := database.NewReadOnlyMode(cfg.ReadOnlyLockPath)
	baseline := permissions.NewGroupOracle()
	resolver := permissions.NewResolver(policy, assignmentReader, baseline, logger)

	authHandler := handlers.NewAuthHandler(userRepo, []byte(cfg.JWTSecret), time.Duration(cfg.TokenTTLHours)*time.Hour)
	pageHandler := &handlers.PageHandler{
		PageRepo:       pageRepo,
		AssignmentRepo: assignmentRepo,
		Resolver:       resolver,
	}
	permissionsHandler := &handlers.PagePermissionsHandler{
		Policy:          policy,
		Resolver:        resolver,
		AssignmentRepo:  assignmentRepo,
		ChangeLogRepo:   changeLogRepo,
		UserRepo:        userRepo,
		PageRepo:        pageRepo,
		ReadOnly:        readOnly,
		NamespaceLevels: namespaceLevels,
	}

	logger.Info().
		Str("database", cfg.DatabasePath).
		Str("policy_mode", string(policy.Mode())).
		Strs("roles", policy.RoleNames()).
		Msg("page permissions service configured")

	r := chi.NewRouter()

	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	})

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(corsHandler.Handler)

	jwtSecret := []byte(cfg.JWTSecret)
	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/login", authHandler.Login)

		r.Route("/pages", func(r chi.Router) {
			r.Use(func(next http.Handler) http.Handler {
				return handlers.AuthMiddleware(userRepo, jwtSecret, next)
			})
			r.Post("/", pageHandler.CreatePage)
			r.Route("/{pageID}", func(r chi.Router) {
				r.Get("/", pageHandler.GetPage)
				r.Delete("/", pageHandler.DeletePage)
				r.Get("/permissions", permissionsHandler.GetPagePermissions)
				r.Put("/permissions", permissionsHandler.UpdatePagePermissions)
				r.Get("/permissions/log", permissionsHandler.GetPagePermissionsLog)
			})
		})
	})

	logger.Info().Str("addr", cfg.ListenAddr).Msg("starting HTTP server")
	if err := http.ListenAndServe(cfg.ListenAddr, r); err != nil {
		logger.Fatal().Err(err).Msg("server exited")
	}
}
