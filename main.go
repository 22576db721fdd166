package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fasthttp/router"
	"github.com/joho/godotenv"
	"github.com/valyala/fasthttp"

	"contactops/internal/config"
	"contactops/internal/http/handlers"
	appmw "contactops/internal/http/middleware"
	"contactops/internal/orchestrator"
)

func main() {
	_ = godotenv.Load()
	cfg := config.Load()

	ctx := context.Background()
	orch, err := orchestrator.Start(ctx, cfg)
	if err != nil {
		log.Fatalf("failed to start: %v", err)
	}
	defer orch.Shutdown()

	tokenHash, err := appmw.HashOpsToken(cfg.OpsToken)
	if err != nil {
		log.Fatalf("failed to hash ops token: %v", err)
	}
	if tokenHash == nil {
		log.Printf("warning: APP_OPS_TOKEN not set, authenticated ops endpoints are disabled")
	}
	auth := appmw.OpsAuth(tokenHash)

	r := router.New()

	r.GET("/healthz", handlers.Healthz(orch))
	r.GET("/metrics", handlers.PrometheusMetrics())

	r.GET("/v1/stats", auth(handlers.StatsHandler(orch)))
	r.GET("/v1/queries/slow", auth(handlers.SlowQueries(orch)))
	r.POST("/v1/cache/invalidate", auth(handlers.InvalidateCache(orch)))
	r.POST("/v1/metrics/reset", auth(handlers.ResetMetrics(orch)))
	r.GET("/v1/advisor/analyze", auth(handlers.AdvisorAnalyze(orch)))
	r.POST("/v1/advisor/implement", auth(handlers.AdvisorImplement(orch)))
	r.POST("/v1/backup", auth(handlers.TriggerBackup(orch)))
	r.GET("/v1/backup/verify", auth(handlers.VerifyBackup()))

	server := &fasthttp.Server{Handler: r.Handler}

	go func() {
		sig := make(chan os.Signal, 1)
		signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
		<-sig
		log.Printf("shutting down")
		if err := server.Shutdown(); err != nil {
			log.Printf("server shutdown: %v", err)
		}
	}()

	log.Printf("contactops listening on %s (env %s)", cfg.ListenAddr, cfg.Environment)
	if err := server.ListenAndServe(cfg.ListenAddr); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
