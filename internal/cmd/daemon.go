package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/agentops/overseer/internal/lock"
)

var daemonCmd = &cobra.Command{
	Use:     "daemon",
	GroupID: GroupServices,
	Short:   "Manage the polling daemon",
	Long: `Manage the background daemon that polls every session.

Each poll tick checks runtime liveness, classifies agent activity from
terminal output, and follows the pull request through CI and review.
Status changes trigger the configured reactions and notifications.`,
}

var daemonStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the daemon in the background",
	RunE:  runDaemonStart,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show whether the daemon is running",
	RunE:  runDaemonStatus,
}

var daemonRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the daemon in the foreground",
	Long: `Run the polling loop in the foreground until interrupted.

Called internally by 'ao daemon start'; also useful under systemd or for
debugging. With --once, runs a single poll tick and exits.`,
	RunE: runDaemonRun,
}

var daemonLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "View daemon logs",
	RunE:  runDaemonLogs,
}

var (
	daemonOnce      bool
	daemonLogLines  int
	daemonLogFollow bool
)

func init() {
	daemonRunCmd.Flags().BoolVar(&daemonOnce, "once", false, "run one poll tick and exit")
	daemonLogsCmd.Flags().IntVarP(&daemonLogLines, "lines", "n", 50, "number of lines to show")
	daemonLogsCmd.Flags().BoolVarP(&daemonLogFollow, "follow", "f", false, "follow log output")
	daemonCmd.AddCommand(daemonStartCmd, daemonStopCmd, daemonStatusCmd, daemonRunCmd, daemonLogsCmd)
	rootCmd.AddCommand(daemonCmd)
}

// runDir is where the daemon's lock, pidfile, and log live.
func (a *app) runDir() string {
	return filepath.Dir(a.cfg.DataDir)
}

func (a *app) logPath() string {
	if p := a.cfg.Logging.OutputPath; p != "" && p != "stdout" && p != "stderr" {
		return p
	}
	return filepath.Join(a.runDir(), "daemon.log")
}

func runDaemonStart(_ *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	if running, pid := lock.IsRunning(a.runDir()); running {
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable: %w", err)
	}
	logFile, err := os.OpenFile(a.logPath(), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("opening daemon log: %w", err)
	}
	defer logFile.Close()

	args := []string{"daemon", "run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	child := exec.Command(exe, args...)
	child.Stdout = logFile
	child.Stderr = logFile
	child.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
	if err := child.Start(); err != nil {
		return fmt.Errorf("starting daemon: %w", err)
	}
	_ = child.Process.Release()

	// The child writes its pidfile once it holds the lock.
	time.Sleep(500 * time.Millisecond)
	if running, pid := lock.IsRunning(a.runDir()); running {
		fmt.Printf("Daemon started (pid %d), logging to %s\n", pid, a.logPath())
		return nil
	}
	return fmt.Errorf("daemon did not start; check %s", a.logPath())
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	running, pid := lock.IsRunning(a.runDir())
	if !running {
		return errors.New("daemon is not running")
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("finding daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signaling daemon: %w", err)
	}
	for i := 0; i < 50; i++ {
		if alive, _ := lock.IsRunning(a.runDir()); !alive {
			fmt.Println("Daemon stopped.")
			return nil
		}
		time.Sleep(100 * time.Millisecond)
	}
	return fmt.Errorf("daemon (pid %d) did not exit; kill it manually", pid)
}

func runDaemonStatus(cmd *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	running, pid := lock.IsRunning(a.runDir())
	if !running {
		fmt.Println("Daemon: not running")
		return nil
	}
	fmt.Printf("Daemon: running (pid %d)\n", pid)

	sessions, err := a.sessions.List(cmd.Context(), "")
	if err != nil {
		return err
	}
	active := 0
	for _, s := range sessions {
		if !s.Status.IsTerminal() {
			active++
		}
	}
	fmt.Printf("Sessions: %d live, %d active\n", len(sessions), active)
	fmt.Printf("Poll interval: %s\n", a.cfg.PollInterval.Std())
	return nil
}

func runDaemonRun(cmd *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}

	if daemonOnce {
		a.lifecycle.Tick(cmd.Context())
		return nil
	}

	l, err := lock.Acquire(a.runDir())
	if err != nil {
		return err
	}
	defer l.Release()

	a.lifecycle.Start(a.cfg.PollInterval.Std())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	a.lifecycle.Stop()
	return nil
}

func runDaemonLogs(_ *cobra.Command, _ []string) error {
	a, err := getApp()
	if err != nil {
		return err
	}
	path := a.logPath()

	if daemonLogFollow {
		tail := exec.Command("tail", "-n", fmt.Sprint(daemonLogLines), "-f", path)
		tail.Stdout = os.Stdout
		tail.Stderr = os.Stderr
		return tail.Run()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			fmt.Println("No daemon log yet.")
			return nil
		}
		return err
	}
	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	if len(lines) > daemonLogLines {
		lines = lines[len(lines)-daemonLogLines:]
	}
	for _, line := range lines {
		fmt.Println(line)
	}
	return nil
}
