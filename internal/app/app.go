// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/shokal/postfeed/internal/auth"
	"github.com/shokal/postfeed/internal/comment"
	"github.com/shokal/postfeed/internal/config"
	"github.com/shokal/postfeed/internal/database"
	"github.com/shokal/postfeed/internal/favorite"
	"github.com/shokal/postfeed/internal/feed"
	"github.com/shokal/postfeed/internal/handler"
	"github.com/shokal/postfeed/internal/logger"
	"github.com/shokal/postfeed/internal/metrics"
	"github.com/shokal/postfeed/internal/middleware"
	"github.com/shokal/postfeed/internal/remote"
	"github.com/shokal/postfeed/internal/repository"
	"github.com/shokal/postfeed/internal/security"
	"github.com/shokal/postfeed/internal/session"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// マイグレーションを適用し、全依存関係をワイヤリングして
// フィードエンジンとHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. マイグレーション適用とDB接続
	if err := database.RunMigrations(cfg.DatabasePath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	db, err := database.Open(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("path", cfg.DatabasePath),
	)

	// 2. リポジトリの初期化
	postRepo := repository.NewSQLitePostRepo(db)
	favoriteRepo := repository.NewSQLiteFavoriteRepo(db)
	commentRepo := repository.NewSQLiteCommentRepo(db)
	userRepo := repository.NewSQLiteUserRepo(db)
	sessionRepo := repository.NewSQLiteSessionRepo(db)
	prefRepo := repository.NewSQLitePreferenceRepo(db)

	// 3. セキュリティサービスの初期化とリモートAPIのURL検証
	ssrfGuard := security.NewSSRFGuard()
	if err := ssrfGuard.ValidateBaseURL(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("invalid API base URL: %w", err)
	}
	sanitizer := security.NewContentSanitizer()

	// 4. リモートクライアントの初期化
	remoteClient := remote.NewClient(
		ssrfGuard.NewSafeClient(cfg.FetchTimeout),
		slog.Default(),
		sanitizer,
		cfg.APIBaseURL,
		cfg.FetchMaxSize,
	)

	// 5. セッションストアとドメインサービスの初期化
	sessionStore := session.NewStore(prefRepo)

	authService := auth.NewService(
		userRepo, sessionRepo, sessionStore,
		auth.ServiceConfig{SessionMaxAge: cfg.SessionMaxAge},
	)
	favoriteService := favorite.NewService(favoriteRepo, postRepo)
	commentService := comment.NewService(remoteClient, commentRepo, slog.Default())

	// 6. メトリクスとフィードエンジンの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	engine := feed.NewEngine(
		remoteClient, postRepo, favoriteRepo, sessionStore,
		collector, slog.Default(),
		feed.Config{
			PageSize:         cfg.PageSize,
			LoadMoreDebounce: cfg.LoadMoreDebounce,
		},
	)

	// 7. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		SessionFinder:     sessionRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthService: authService,
		AuthConfig: handler.AuthHandlerConfig{
			SessionMaxAge: cfg.SessionMaxAge,
		},

		Engine:         engine,
		CommentService: commentService,

		FavoriteService: favoriteService,

		MetricsHandler: metrics.Handler(registry),
	})

	// 8. エンジンの起動（初期リフレッシュとセッション監視）
	engineCtx, engineCancel := context.WithCancel(context.Background())
	defer engineCancel()
	engine.Start(engineCtx)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	engineCancel()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_path", cfg.DatabasePath),
	)

	if err := database.RunMigrations(cfg.DatabasePath); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}
