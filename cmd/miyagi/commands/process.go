package commands

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process [event-id]",
	Short: "저장된 웹훅 이벤트 처리",
	Long: `저장된 웹훅 이벤트를 파이프라인으로 처리합니다.

디스패치 실패로 남은 이벤트를 수동으로 재처리할 때 사용합니다.
이미 처리된 이벤트는 기존 시그널을 반환합니다 (멱등).

Example:
  go run ./cmd/miyagi process 7f3a1c2e-...`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)
}

func runProcess(cmd *cobra.Command, args []string) error {
	eventID := args[0]

	app, err := newAppRuntime()
	if err != nil {
		return err
	}
	defer app.Close()

	out, err := app.processor.Process(cmd.Context(), eventID)
	if err != nil {
		return fmt.Errorf("process event %s: %w", eventID, err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}
