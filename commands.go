package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"hunt-publish-system/config"
	"hunt-publish-system/handlers"
	"hunt-publish-system/logger"
	"hunt-publish-system/middleware"
	"hunt-publish-system/services"
	"hunt-publish-system/store"
	"hunt-publish-system/utils"
	"hunt-publish-system/workers"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type app struct {
	cfg *config.Config
	log *logger.Logger
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:           "hunt-publish-system",
		Short:         "Hunt versioning and release service",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.Mode)
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			a.cfg, a.log = cfg, log
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				a.log.Sync()
			}
		},
	}
	root.AddCommand(a.serveCmd(), a.migrateCmd(), a.reindexCmd())
	return root
}

func (a *app) serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the asset reindex sweeper",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.cfg.RequireServe(); err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.serve(ctx)
		},
	}
}

func (a *app) migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			a.log.Info("✅ database migrated")
			return closeDB(db)
		},
	}
}

func (a *app) reindexCmd() *cobra.Command {
	var huntID int64
	cmd := &cobra.Command{
		Use:   "reindex",
		Short: "Rebuild asset usage for one hunt, or one sweep of stale hunts",
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := a.openDB()
			if err != nil {
				return err
			}
			defer closeDB(db)

			comp, err := a.wire(cmd.Context(), db)
			if err != nil {
				return err
			}
			if huntID > 0 {
				if err := comp.assets.Rebuild(cmd.Context(), huntID); err != nil {
					return err
				}
				a.log.Info("✅ asset usage rebuilt", "hunt_id", huntID)
				return nil
			}
			n, err := comp.sweeper.RunOnce(cmd.Context())
			if err != nil {
				return err
			}
			a.log.Info("✅ asset reindex sweep finished", "rebuilt", n)
			return nil
		},
	}
	cmd.Flags().Int64Var(&huntID, "hunt", 0, "rebuild only this hunt")
	return cmd
}

func (a *app) openDB() (*gorm.DB, error) {
	if err := a.cfg.RequireDatabase(); err != nil {
		return nil, err
	}
	db, err := store.OpenPostgres(a.cfg.DatabaseURL, a.log)
	if err != nil {
		return nil, err
	}
	if err := store.Migrate(db); err != nil {
		_ = closeDB(db)
		return nil, err
	}
	return db, nil
}

func closeDB(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

type components struct {
	drafts    *services.DraftService
	validator *services.VersionValidator
	publisher *services.VersionPublisher
	releases  *services.ReleaseManager
	assets    *services.AssetUsageService
	sweeper   *workers.AssetReindexWorker
}

func (a *app) wire(ctx context.Context, db *gorm.DB) (*components, error) {
	st := store.NewGormStore()
	runner := store.NewGormTxRunner(db)

	var prober services.AssetProber
	if a.cfg.R2.Enabled() {
		r2, err := utils.NewR2Prober(ctx, a.cfg.R2)
		if err != nil {
			return nil, err
		}
		prober = r2
	} else {
		a.log.Warn("⚠️ R2 not configured; asset presence will not be checked")
	}

	assets := services.NewAssetUsageService(db, st, runner, prober, a.log)
	validator := services.NewVersionValidator(st, runner)
	cloner := services.NewStepCloner(st, a.cfg.StepCloneBatchSize)
	return &components{
		drafts:    services.NewDraftService(st, runner, a.log),
		validator: validator,
		publisher: services.NewVersionPublisher(st, runner, validator, cloner, assets, a.log),
		releases:  services.NewReleaseManager(st, runner, assets, a.log),
		assets:    assets,
		sweeper:   workers.NewAssetReindexWorker(assets, a.cfg.AssetReindexInterval, a.log),
	}, nil
}

func (a *app) serve(ctx context.Context) error {
	db, err := a.openDB()
	if err != nil {
		return err
	}
	defer closeDB(db)

	comp, err := a.wire(ctx, db)
	if err != nil {
		return err
	}
	if err := comp.sweeper.Start(ctx); err != nil {
		return err
	}
	defer comp.sweeper.Stop()

	server := fiber.New(fiber.Config{
		AppName:      "hunt-publish-system",
		BodyLimit:    4 * 1024 * 1024,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	})
	server.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(a.cfg.AllowedOrigins, ","),
		AllowMethods:     "GET,POST,PATCH,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization, X-Requested-With, X-Request-ID, X-User-ID, X-User-Roles",
		AllowCredentials: true,
		MaxAge:           86400,
	}))

	// probes and metrics stay reachable without the gateway token
	handlers.SetupOpsRoutes(server, db)

	// 🔐❗ everything else must come through the gateway
	server.Use(middleware.GatewayAuthMiddleware(a.cfg.GatewayToken, a.log))
	server.Use(middleware.UserContextMiddleware(a.log))
	handlers.SetupHuntRoutes(server, handlers.NewHuntHandler(
		comp.drafts, comp.validator, comp.publisher, comp.releases, comp.assets, a.log,
	))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Listen(":" + a.cfg.Port)
	}()
	a.log.Info("✅ server running", "port", a.cfg.Port, "origins", a.cfg.AllowedOrigins, "reindex_interval", a.cfg.AssetReindexInterval.String())

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	a.log.Info("shutting down server...")
	return server.ShutdownWithTimeout(10 * time.Second)
}
