package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/theirongolddev/cbudget/internal/cli"
	"github.com/theirongolddev/cbudget/internal/daemon"
	"github.com/theirongolddev/cbudget/internal/pipeline"
	"github.com/theirongolddev/cbudget/internal/soql"

	"github.com/spf13/cobra"
)

type daemonRuntimeState struct {
	PID        int       `json:"pid"`
	Addr       string    `json:"addr"`
	StartedAt  time.Time `json:"started_at"`
	FiscalYear string    `json:"fiscal_year"`
}

var (
	flagDaemonAddr         string
	flagDaemonInterval     time.Duration
	flagDaemonDetach       bool
	flagDaemonPIDFile      string
	flagDaemonLogFile      string
	flagDaemonEventsBuffer int
	flagDaemonChild        bool
)

var daemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Keep the response cache warm and serve budget totals over HTTP",
	Long: `Polls every budget view on an interval through the response cache, so
entries older than the cache TTL are refetched in the background. Totals are
served as JSON at /v1/status and change events at /v1/events.`,
	RunE: runDaemon,
}

var daemonStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show daemon process and API status",
	RunE:  runDaemonStatus,
}

var daemonStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the running daemon",
	RunE:  runDaemonStop,
}

func init() {
	defaultPID := filepath.Join(pipeline.CacheDir(), "cbudgetd.pid")
	defaultLog := filepath.Join(pipeline.CacheDir(), "cbudgetd.log")

	daemonCmd.PersistentFlags().StringVar(&flagDaemonAddr, "addr", "127.0.0.1:8788", "HTTP listen address")
	daemonCmd.PersistentFlags().DurationVar(&flagDaemonInterval, "interval", 15*time.Minute, "Polling interval (minimum 1m)")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonPIDFile, "pid-file", defaultPID, "PID file path")
	daemonCmd.PersistentFlags().StringVar(&flagDaemonLogFile, "log-file", defaultLog, "Log file path for detached mode")
	daemonCmd.PersistentFlags().IntVar(&flagDaemonEventsBuffer, "events-buffer", 200, "Max in-memory events retained")

	daemonCmd.Flags().BoolVar(&flagDaemonDetach, "detach", false, "Run daemon as a background process")
	daemonCmd.Flags().BoolVar(&flagDaemonChild, "child", false, "Internal: mark detached child process")
	_ = daemonCmd.Flags().MarkHidden("child")

	daemonCmd.AddCommand(daemonStatusCmd)
	daemonCmd.AddCommand(daemonStopCmd)
	rootCmd.AddCommand(daemonCmd)
}

func runDaemon(cmd *cobra.Command, _ []string) error {
	if flagDaemonDetach && flagDaemonChild {
		return errors.New("invalid daemon launch mode")
	}

	if flagDaemonDetach {
		return startDaemonDetached()
	}

	return runDaemonForeground(cmd.Context())
}

// pidFile locates the daemon's pid file and the JSON state file beside it.
type pidFile string

func (p pidFile) statePath() string { return string(p) + ".json" }

func (p pidFile) read() (int, error) {
	//nolint:gosec // pid path is configured by the local user
	data, err := os.ReadFile(string(p))
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || pid <= 0 {
		return 0, fmt.Errorf("invalid pid in %s", p)
	}
	return pid, nil
}

func (p pidFile) write(pid int, st daemonRuntimeState) error {
	if err := os.MkdirAll(filepath.Dir(string(p)), 0o750); err != nil {
		return fmt.Errorf("create daemon directory: %w", err)
	}
	if err := os.WriteFile(string(p), []byte(strconv.Itoa(pid)+"\n"), 0o600); err != nil {
		return err
	}
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return err
	}
	// The state file only adds the listen address; status falls back to --addr.
	_ = os.WriteFile(p.statePath(), append(data, '\n'), 0o600)
	return nil
}

func (p pidFile) state() (daemonRuntimeState, error) {
	var st daemonRuntimeState
	//nolint:gosec // state path is derived from the pid path
	data, err := os.ReadFile(p.statePath())
	if err != nil {
		return st, err
	}
	err = json.Unmarshal(data, &st)
	return st, err
}

func (p pidFile) remove() {
	_ = os.Remove(string(p))
	_ = os.Remove(p.statePath())
}

// claim fails if a live daemon owns the pid file and clears a stale one.
func (p pidFile) claim() error {
	pid, err := p.read()
	switch {
	case errors.Is(err, os.ErrNotExist):
		return nil
	case err != nil:
		return err
	case processAlive(pid):
		return fmt.Errorf("daemon already running (pid %d)", pid)
	}
	p.remove()
	return nil
}

func processAlive(pid int) bool {
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	err = proc.Signal(syscall.Signal(0))
	return err == nil || errors.Is(err, syscall.EPERM)
}

func startDaemonDetached() error {
	pf := pidFile(flagDaemonPIDFile)
	if err := pf.claim(); err != nil {
		return err
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolve executable: %w", err)
	}

	args := make([]string, 0, len(os.Args))
	for _, a := range os.Args[1:] {
		if a != "--detach" && !strings.HasPrefix(a, "--detach=") {
			args = append(args, a)
		}
	}
	args = append(args, "--child")

	if err := os.MkdirAll(filepath.Dir(flagDaemonLogFile), 0o750); err != nil {
		return fmt.Errorf("create daemon log directory: %w", err)
	}
	//nolint:gosec // log path is configured by the local user
	logf, err := os.OpenFile(flagDaemonLogFile, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log file: %w", err)
	}
	defer func() { _ = logf.Close() }()

	child := exec.Command(exe, args...) //nolint:gosec // re-exec of the current binary
	child.Stdout = logf
	child.Stderr = logf
	child.Env = os.Environ()
	if err := child.Start(); err != nil {
		return fmt.Errorf("start detached daemon: %w", err)
	}

	fmt.Printf("  cbudget daemon started in the background (pid %d)\n", child.Process.Pid)
	fmt.Printf("  Status:  cbudget daemon status\n")
	fmt.Printf("  API:     http://%s/v1/status\n", flagDaemonAddr)
	fmt.Printf("  Log:     %s\n", flagDaemonLogFile)
	return nil
}

func runDaemonForeground(ctx context.Context) error {
	pf := pidFile(flagDaemonPIDFile)
	if err := pf.claim(); err != nil {
		return err
	}

	s, err := openSession()
	if err != nil {
		return err
	}
	defer s.Close()

	filter := filterContext(s.cfg)
	pid := os.Getpid()
	if err := pf.write(pid, daemonRuntimeState{
		PID:        pid,
		Addr:       flagDaemonAddr,
		StartedAt:  time.Now(),
		FiscalYear: filter.FiscalYear,
	}); err != nil {
		return err
	}
	defer pf.remove()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc := daemon.New(s.loader, daemon.Config{
		Filter:       filter,
		Interval:     flagDaemonInterval,
		Addr:         flagDaemonAddr,
		EventsBuffer: flagDaemonEventsBuffer,
	})

	fmt.Printf("  cbudget daemon listening on http://%s\n", flagDaemonAddr)
	fmt.Printf("  Warming %s every %s\n", filterLine(filter), flagDaemonInterval)
	if s.cache == nil {
		fmt.Printf("  Response cache disabled; polls only refresh the reported totals\n")
	}

	if err := svc.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func runDaemonStatus(cmd *cobra.Command, _ []string) error {
	pf := pidFile(flagDaemonPIDFile)
	pid, err := pf.read()
	switch {
	case err != nil:
		fmt.Println("  Daemon: not running")
		return nil
	case !processAlive(pid):
		fmt.Printf("  Daemon: not running (stale pid %d in %s)\n", pid, pf)
		return nil
	}

	addr := flagDaemonAddr
	if st, err := pf.state(); err == nil && st.Addr != "" {
		addr = st.Addr
	}
	fmt.Printf("  Daemon: running (pid %d) on http://%s\n", pid, addr)

	st, err := fetchDaemonStatus(cmd.Context(), addr)
	if err != nil {
		fmt.Printf("  API: %v\n", err)
		return nil
	}

	last := "pending"
	if !st.LastPollAt.IsZero() {
		last = st.LastPollAt.Local().Format(time.RFC3339)
	}
	fmt.Printf("  Last poll: %s (%d polls, %d events)\n", last, st.PollCount, st.EventCount)
	if st.LastError != "" {
		fmt.Printf("  Last error: %s\n", st.LastError)
	}
	fmt.Println()

	rows := make([][]string, 0, len(st.Summary.Views))
	for _, v := range st.Summary.Views {
		if v.Error != "" {
			rows = append(rows, []string{v.Title, "-", "-", "-", "-", "error"})
			continue
		}
		rows = append(rows, []string{
			v.Title,
			cli.FormatNumber(int64(v.Records)),
			cli.FormatMoney(v.Actual),
			cli.FormatMoney(v.Adopted),
			strconv.Itoa(v.Percent) + "%",
			strconv.Itoa(v.OverBudget),
		})
	}
	fmt.Print(cli.RenderTable(cli.Table{
		Title:   "Budget totals · " + filterLine(soql.Context{FiscalYear: st.FiscalYear, Entity: st.Entity, FundGroup: st.FundGroup}),
		Headers: []string{"View", "Records", "Actual", "Adopted", "Used", "Over"},
		Rows:    rows,
		Align:   []cli.Align{cli.AlignLeft, cli.AlignRight, cli.AlignRight, cli.AlignRight, cli.AlignRight, cli.AlignRight},
	}))
	return nil
}

func fetchDaemonStatus(ctx context.Context, addr string) (daemon.Status, error) {
	var st daemon.Status

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "http://"+addr+"/v1/status", nil)
	if err != nil {
		return st, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return st, fmt.Errorf("unreachable: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return st, fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return st, fmt.Errorf("malformed status: %w", err)
	}
	return st, nil
}

func runDaemonStop(_ *cobra.Command, _ []string) error {
	pf := pidFile(flagDaemonPIDFile)
	pid, err := pf.read()
	if err != nil {
		return errors.New("daemon is not running")
	}

	proc, err := os.FindProcess(pid)
	if err != nil {
		return fmt.Errorf("find daemon process: %w", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		return fmt.Errorf("signal daemon process: %w", err)
	}

	for deadline := time.Now().Add(8 * time.Second); time.Now().Before(deadline); time.Sleep(150 * time.Millisecond) {
		if !processAlive(pid) {
			pf.remove()
			fmt.Printf("  Stopped daemon (pid %d)\n", pid)
			return nil
		}
	}
	return fmt.Errorf("daemon (pid %d) did not exit in time", pid)
}
