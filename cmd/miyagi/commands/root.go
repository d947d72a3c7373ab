package commands

import (
	"github.com/spf13/cobra"
)

var (
	// Global flags
	verbose bool
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "miyagi",
	Short: "Miyagi - TradingView 알림 기반 옵션 트레이딩 파이프라인",
	Long: `Miyagi Unified CLI

TradingView 웹훅 알림을 받아 검증, 정규화, 시장 데이터 보강,
점수화, 옵션 계약 선택, 트레이드 기록까지 처리합니다.

Usage:
  go run ./cmd/miyagi [command]

Examples:
  go run ./cmd/miyagi api
  go run ./cmd/miyagi scheduler start
  go run ./cmd/miyagi process <event-id>`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
