package main

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/stratahq/strata/internal/apiserver/cache"
	"github.com/stratahq/strata/internal/apiserver/database"
	"github.com/stratahq/strata/internal/apiserver/handler"
	"github.com/stratahq/strata/internal/apiserver/scheduler"
	"github.com/stratahq/strata/internal/auth/jwt"
	"github.com/stratahq/strata/internal/common/cnst"
	"github.com/stratahq/strata/internal/common/config"
	"github.com/stratahq/strata/internal/core/topology"
	"github.com/stratahq/strata/pkg/logger"
	"github.com/stratahq/strata/pkg/metrics"
	"github.com/stratahq/strata/pkg/version"
)

var (
	configPath string

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the version number of apiserver",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("apiserver version %s\n", version.Get())
		},
	}

	rootCmd = &cobra.Command{
		Use:   "apiserver",
		Short: "Strata API Server",
		Long:  `Strata API Server manages property topologies and visitor access for multi-tenant estates`,
		Run: func(cmd *cobra.Command, args []string) {
			run()
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "conf", cnst.ApiServerYaml, "path to configuration file or directory")
	rootCmd.AddCommand(versionCmd)
}

func run() {
	cfg, cfgPath, err := config.LoadConfig[config.APIServerConfig](configPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zlog, err := logger.NewLogger(&cfg.Logger)
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zlog.Sync()

	zlog.Info("starting apiserver",
		zap.String("version", version.Get()),
		zap.String("config", cfgPath))

	db, err := database.NewDatabase(&cfg.Database)
	if err != nil {
		zlog.Fatal("failed to open database", zap.Error(err))
	}
	if err := db.Init(context.Background()); err != nil {
		zlog.Fatal("failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	if err := seedSuperAdmin(context.Background(), db, cfg, zlog); err != nil {
		zlog.Fatal("failed to seed super admin", zap.Error(err))
	}

	jwtService, err := jwt.NewService(jwt.Config{
		SecretKey: cfg.JWT.SecretKey,
		Duration:  cfg.JWT.Duration,
	})
	if err != nil {
		zlog.Fatal("failed to initialize jwt service", zap.Error(err))
	}

	var (
		capacity    topology.CapacitySource = db
		invalidator handler.CapacityInvalidator
	)
	if cfg.Redis.Enabled {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer client.Close()
		capacityCache := cache.NewCapacityCache(cache.CapacityCacheConfig{
			Source: db,
			Client: client,
			Prefix: cfg.Redis.Prefix,
			TTL:    cfg.Redis.TTL,
			Logger: zlog,
		})
		capacity = capacityCache
		invalidator = capacityCache
		zlog.Info("capacity cache enabled", zap.String("addr", cfg.Redis.Addr))
	}

	var m *metrics.Metrics
	if cfg.Metrics.Enabled {
		m = metrics.New(cfg.Metrics)
	}

	if cfg.Sweeper.Enabled {
		sweeper := scheduler.NewSweeper(db, cfg.Sweeper.Interval, zlog)
		sweeper.Start()
		defer sweeper.Stop()
	}

	h := handler.NewHandler(handler.Deps{
		DB:          db,
		JWTService:  jwtService,
		Config:      cfg,
		Capacity:    capacity,
		Invalidator: invalidator,
		Metrics:     m,
		Logger:      zlog,
	})

	r := gin.New()
	r.Use(gin.Recovery())
	h.Register(r)

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	zlog.Info("listening", zap.String("addr", addr))
	if err := r.Run(addr); err != nil {
		zlog.Fatal("server stopped", zap.Error(err))
	}
}

// seedSuperAdmin creates the initial platform administrator when the
// configured username does not exist yet.
func seedSuperAdmin(ctx context.Context, db database.Database, cfg *config.APIServerConfig, zlog *zap.Logger) error {
	if cfg.SuperAdmin.Username == "" || cfg.SuperAdmin.Password == "" {
		return nil
	}
	if _, err := db.GetUserByUsername(ctx, cfg.SuperAdmin.Username); err == nil {
		return nil
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(cfg.SuperAdmin.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	user := &database.User{
		Username: cfg.SuperAdmin.Username,
		Password: string(hashed),
		Role:     cnst.RoleAdmin,
		IsActive: true,
	}
	if err := db.CreateUser(ctx, user); err != nil {
		return err
	}
	zlog.Info("seeded super admin account",
		zap.String("username", cfg.SuperAdmin.Username))
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
