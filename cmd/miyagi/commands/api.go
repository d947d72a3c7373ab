package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/miyagi/internal/api"
	"github.com/wonny/miyagi/internal/api/handlers"
)

// apiCmd represents the api command
var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "API 서버 시작",
	Long: `웹훅 수신과 조회 API 서버를 시작합니다.

이 명령어는:
- TradingView 웹훅 수신 엔드포인트 제공
- 비동기 처리 콜백 엔드포인트 제공
- 시그널/트레이드 조회 엔드포인트 제공

Endpoints:
  POST /webhooks/tradingview - 알림 수신
  POST /jobs/process         - 저장된 이벤트 처리 콜백
  POST /jobs/update-pnl      - 미결제 트레이드 PnL 갱신
  GET  /api/signals          - 시그널 목록
  GET  /api/signals/{id}     - 시그널 상세
  GET  /api/trades           - 트레이드 목록
  GET  /api/webhooks/{id}    - 원본 웹훅 디버그 조회
  GET  /health               - Health check

Example:
  go run ./cmd/miyagi api
  go run ./cmd/miyagi api --port 8090`,
	RunE: runAPIServer,
}

var (
	apiPort string
)

func init() {
	rootCmd.AddCommand(apiCmd)

	apiCmd.Flags().StringVar(&apiPort, "port", "", "API 서버 포트 (기본: PORT env)")
}

func runAPIServer(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Miyagi API Server ===")

	app, err := newAppRuntime()
	if err != nil {
		return err
	}
	defer app.Close()

	if apiPort != "" {
		app.cfg.Port = apiPort
	}

	app.log.WithFields(map[string]interface{}{
		"port":     app.cfg.Port,
		"env":      app.cfg.Env,
		"dispatch": app.cfg.Dispatch.Mode,
	}).Info("Initializing API server")

	// Handlers
	webhookHandler := handlers.NewWebhookHandler(app.events, app.newDispatcher(),
		app.newIngestLimiter(), app.cfg, app.log)
	jobsHandler := handlers.NewJobsHandler(app.processor, app.pnl, app.cfg, app.log)
	signalsHandler := handlers.NewSignalsHandler(app.signals, app.trades, app.events, app.log)

	// Router and server
	router := api.NewRouter(webhookHandler, jobsHandler, signalsHandler, app.log)
	server := api.New(app.cfg, app.log, router)

	go func() {
		if err := server.Start(); err != nil {
			app.log.WithError(err).Fatal("Failed to start server")
		}
	}()

	app.log.Info("API server started successfully")
	fmt.Printf("\n✅ Server running on http://localhost:%s\n", app.cfg.Port)
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	app.log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	app.log.Info("Server stopped")
	return nil
}
