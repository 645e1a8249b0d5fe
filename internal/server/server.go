package server

import (
	"context"
	"fmt"
	"log"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/contentpilot/contentpilot/config"
	"github.com/contentpilot/contentpilot/internal/agent"
	"github.com/contentpilot/contentpilot/internal/publish"
	"github.com/contentpilot/contentpilot/internal/store"
	"github.com/contentpilot/contentpilot/provider"
)

func Run(cfg *config.Config, addr string) error {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())
	// Unified HTTP error handler with structured JSON and logging
	baseLogger := log.New(log.Writer(), "[HTTP] ", log.LstdFlags)
	e.HTTPErrorHandler = func(err error, c echo.Context) {
		code := http.StatusInternalServerError
		msg := err.Error()
		if he, ok := err.(*echo.HTTPError); ok {
			code = he.Code
			if he.Message != nil {
				msg = fmt.Sprint(he.Message)
			}
		}
		req := c.Request()
		baseLogger.Printf("%d %s %s from %s: %v", code, req.Method, req.URL.Path, c.RealIP(), err)
		if !c.Response().Committed {
			_ = c.JSON(code, map[string]interface{}{"error": msg})
		}
	}
	e.Use(middleware.CORSWithConfig(middleware.CORSConfig{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Content-Type", "Cookie"},
		AllowCredentials: true,
	}))

	e.GET("/healthz", func(c echo.Context) error { return c.String(200, "ok") })
	e.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	if err := cfg.Databases.Postgres.Validate(); err != nil {
		return err
	}
	dsn := cfg.Databases.Postgres.DSN()
	_ = Migrate("file://migrations", dsn, "up", 0)

	ctx := context.Background()
	st, err := store.NewWithDSN(ctx, dsn)
	if err != nil {
		return err
	}

	if cfg.Providers.OpenAI.APIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY not configured")
	}
	llm, err := provider.NewProvider(provider.OpenAI, cfg.Providers.OpenAI)
	if err != nil {
		return err
	}

	if err := cfg.Databases.Redis.Validate(); err != nil {
		return err
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Databases.Redis.Addr(), Password: cfg.Databases.Redis.Password, DB: cfg.Databases.Redis.DB})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed (%s): %w", cfg.Databases.Redis.Addr(), err)
	}

	dispatcher := publish.NewHTTPDispatcher(cfg.Publish.Timeout)
	orch := agent.NewOrchestrator(st, llm, dispatcher, rdb, cfg.Scheduler.RunHistoryLimit, cfg.Scheduler.PreviewTTL)

	// init auth and routes
	secret := cfg.General.JWTSecret
	if secret == "" {
		return fmt.Errorf("jwt secret not configured (general.jwt_secret)")
	}
	auth, err := initAuth(ctx, st, []byte(secret))
	if err != nil {
		return err
	}

	api := e.Group("/api")
	auth.Register(api.Group("/auth"))

	me := api.Group("/me")
	me.Use(func(next echo.HandlerFunc) echo.HandlerFunc { return withAuth(next, auth.Secret) })
	me.GET("", func(c echo.Context) error {
		return c.JSON(200, MeResponse{UserID: c.Get("user_id").(string)})
	})

	ph := &ProfileHandler{Store: st}
	ph.Register(api.Group("/profile"), auth.Secret)

	th := &TopicsHandler{Store: st, LLM: llm}
	th.Register(api.Group("/topics"), auth.Secret)

	sh := &ScheduleHandler{Store: st}
	sh.Register(api.Group("/schedule"), auth.Secret)

	ch := &ChannelHandler{Store: st}
	ch.Register(api.Group("/channel"), auth.Secret)

	cth := &ConnectorsHandler{Dispatcher: dispatcher}
	cth.Register(api.Group("/connectors"), auth.Secret)

	rh := &RunsHandler{Store: st, Orch: orch, Rdb: rdb, HistoryLimit: cfg.Scheduler.RunHistoryLimit}
	rh.Register(api.Group("/runs"), auth.Secret)

	sched := &Scheduler{Store: st, Stop: make(chan struct{}), Rdb: rdb, Orch: orch, Interval: cfg.Scheduler.PollInterval}
	sched.Start()

	// Note: Web UI is served by a separate container; backend only exposes APIs

	if addr == "" {
		addr = cfg.General.Listen
		if addr != "" && addr[0] != ':' {
			addr = ":" + addr
		}
		if addr == "" {
			addr = ":10001"
		}
	}
	log.Printf("listening on %s", addr)
	return e.Start(addr)
}
