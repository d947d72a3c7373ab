package commands

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/wonny/miyagi/internal/scheduler"
	"github.com/wonny/miyagi/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 즉시 실행합니다.

등록되는 작업:
- pnl_update: 매분 (미결제 트레이드 PnL 갱신)

Subcommands:
  start - 스케줄러 시작
  run   - 특정 작업 즉시 실행

Example:
  go run ./cmd/miyagi scheduler start
  go run ./cmd/miyagi scheduler run pnl_update`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		RunE:  runScheduler,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runSchedulerJob,
	}
)

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)
}

func buildScheduler(app *appRuntime) (*scheduler.Scheduler, error) {
	sched := scheduler.New(app.log)

	if err := sched.AddJob(jobs.NewPnlUpdateJob(app.pnl, app.log)); err != nil {
		return nil, fmt.Errorf("register pnl job: %w", err)
	}

	return sched, nil
}

func runScheduler(cmd *cobra.Command, args []string) error {
	fmt.Println("=== Miyagi Scheduler ===")

	app, err := newAppRuntime()
	if err != nil {
		return err
	}
	defer app.Close()

	sched, err := buildScheduler(app)
	if err != nil {
		return err
	}

	sched.Start()

	fmt.Println("\n✅ Scheduler started successfully")
	fmt.Println("\nRegistered jobs:")
	fmt.Println("  - pnl_update (every minute)")
	fmt.Println("\nPress Ctrl+C to stop")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	return nil
}

func runSchedulerJob(cmd *cobra.Command, args []string) error {
	jobName := args[0]

	app, err := newAppRuntime()
	if err != nil {
		return err
	}
	defer app.Close()

	var job scheduler.Job
	switch jobName {
	case "pnl_update":
		job = jobs.NewPnlUpdateJob(app.pnl, app.log)
	default:
		return fmt.Errorf("job %s not found", jobName)
	}

	fmt.Printf("Running job %s...\n", jobName)

	start := time.Now()
	if err := job.Run(cmd.Context()); err != nil {
		return fmt.Errorf("job %s failed: %w", jobName, err)
	}

	fmt.Printf("✅ Job %s completed in %s\n", jobName, time.Since(start))
	return nil
}
