package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"takas-go/internal/core/auth"
	"takas-go/internal/core/cache"
	"takas-go/internal/core/config"
	"takas-go/internal/core/database"
	"takas-go/internal/core/logger"
	"takas-go/internal/core/oauth"
	"takas-go/internal/core/realtime"
	"takas-go/internal/core/security"
	"takas-go/internal/core/server"
	"takas-go/internal/core/storage"
	"takas-go/internal/repo"
	"takas-go/internal/service"
	"takas-go/internal/transport/http/handler"
	mdw "takas-go/internal/transport/http/middleware"
	"takas-go/internal/transport/http/router"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	log, cleanup := logger.New(cfg.Log.Level, cfg.Log.JSON, logger.FileRotate{
		Filename:   cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
		Compress:   true,
	})
	defer cleanup()
	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 普通连接（失败直接 Fatal）
	db := mustOpenDB(cfg, cfg.DB.DSN, log)
	log.Info("database connected", zap.String("driver", cfg.DB.Driver))
	if cfg.DB.AutoMigrate {
		if err := repo.Migrate(ctx, db); err != nil {
			log.Fatal("automigrate failed", zap.Error(err))
		}
		log.Info("automigrate done")
	}

	// 特权连接可缺省，缺省时后台降级
	var backend *service.AdminBackend
	if cfg.AdminEnabled() {
		adb := mustOpenDB(cfg, cfg.DB.AdminDSN, log)
		backend = &service.AdminBackend{
			Store: repo.NewAdminStore(adb),
			Users: repo.NewUserRepo(adb),
			Items: repo.NewItemRepo(adb),
			Roles: repo.NewRoleRepo(adb),
		}
	} else {
		log.Warn("db.admin_dsn not set, admin features degraded")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer rdb.Close()
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		cancel()
		log.Fatal("redis ping", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
	}
	cancel()

	var objects storage.ObjectStore
	if cfg.Storage.Endpoint != "" {
		ms, err := storage.NewMinioStore(ctx, storage.MinioOpts{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			UseSSL:    cfg.Storage.UseSSL,
			PublicURL: cfg.Storage.PublicURL,
		})
		if err != nil {
			log.Fatal("object storage", zap.Error(err))
		}
		objects = ms
	} else {
		log.Warn("storage.endpoint not set, item images disabled")
	}

	var provider oauth.Provider
	if g := cfg.OAuth.Google; g.ClientID != "" {
		provider = oauth.NewGoogle(oauth.GoogleOpts{
			ClientID:     g.ClientID,
			ClientSecret: g.ClientSecret,
			RedirectURL:  g.RedirectURL,
		})
	}

	accessTTL := time.Duration(cfg.JWT.AccessTokenTTLMin) * time.Minute
	refreshTTL := time.Duration(cfg.JWT.RefreshTTLHours) * time.Hour
	jwter := &auth.JWTer{Secret: []byte(cfg.JWT.Secret), Issuer: cfg.JWT.Issuer, TTL: accessTTL}
	broker := realtime.NewBroker(rdb, log)
	cc := cache.New(rdb, "takas:cache:")
	clean := security.NewSanitizer()

	users := repo.NewUserRepo(db)
	roles := repo.NewRoleRepo(db)

	authSvc := service.NewAuthService(users, jwter, auth.NewRefreshStore(rdb, refreshTTL), provider, clean, log)
	catalogSvc := service.NewCatalogService(repo.NewCatalogRepo(db), cc)
	itemSvc := service.NewItemService(repo.NewItemRepo(db), catalogSvc, objects, clean, log)
	msgSvc := service.NewMessageService(repo.NewConversationRepo(db), repo.NewMessageRepo(db), users, broker, clean, log)
	adminSvc := service.NewAdminService(backend, roles, authSvc, objects, cc, log)

	ck := mdw.Cookies{
		Secure:     cfg.Cookie.Secure,
		Domain:     cfg.Cookie.Domain,
		AccessTTL:  accessTTL,
		RefreshTTL: refreshTTL,
	}
	engine := router.NewEngine(router.Deps{
		Log:         log,
		Sessions:    authSvc,
		Roles:       roles.Lookup,
		Cookies:     ck,
		CORSOrigins: cfg.App.CORSOrigins,
		Limits:      router.DefaultLimits(),
		Streams:     []string{handler.MessageStreamPath},
		Modules: []router.Module{
			handler.NewAuthHandler(authSvc, adminSvc, ck, log),
			handler.NewItemHandler(itemSvc, catalogSvc),
			handler.NewProfileHandler(authSvc, itemSvc, roles, ck),
			handler.NewMessageHandler(msgSvc, broker, log),
			handler.NewAdminHandler(adminSvc),
		},
	})

	addr := server.Addr(cfg.App.HTTP.Host, cfg.App.HTTP.Port)
	srv := server.BuildServer(addr, engine,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)
	log.Info("takas web starting",
		zap.String("addr", addr),
		zap.String("open", cfg.App.PublicURL),
		zap.Bool("admin", backend != nil),
		zap.Bool("oauth", provider != nil),
	)

	if err := server.Run(ctx, srv, log, 10*time.Second); err != nil {
		log.Fatal("takas web stopped with error", zap.Error(err))
	}
	log.Info("takas web stopped gracefully")
}

func mustOpenDB(cfg *config.Config, dsn string, l *zap.Logger) *gorm.DB {
	db, err := database.NewGorm(database.Opts{
		Driver:             cfg.DB.Driver,
		DSN:                dsn,
		Username:           cfg.DB.Username,
		Password:           cfg.DB.Password,
		MaxOpenConns:       cfg.DB.MaxOpenConns,
		MaxIdleConns:       cfg.DB.MaxIdleConns,
		ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
		LogLevel:           cfg.DB.LogLevel,
		Logger:             l,
	})
	if err != nil {
		l.Fatal("db open", zap.Error(err))
	}
	return db
}
