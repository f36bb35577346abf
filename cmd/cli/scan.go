package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	apihandlers "github.com/anstrom/portward/internal/api/handlers"
	"github.com/anstrom/portward/internal/db"
	"github.com/anstrom/portward/internal/jobs"
	"github.com/anstrom/portward/internal/logging"
	"github.com/anstrom/portward/internal/scanning"
)

const pollInterval = 500 * time.Millisecond

var (
	scanPorts       string
	scanTimeout     time.Duration
	scanConcurrency int
	scanPersist     bool
	scanServer      string
	scanJSON        bool
	scanQuiet       bool
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan <target>",
	Short: "Scan a TCP port range on one target",
	Long: `Scan a contiguous range of TCP ports on a single host name or IP address
and report which ports are open.

By default the scan runs in this process. With --persist the results are
also recorded as a session in the configured database. With --server the
scan is submitted to a running portward server and polled until it ends.
Interrupting a running scan cancels it and prints the partial results.`,
	Example: `  portward scan 192.168.1.10
  portward scan scanme.example.com --ports 1-1024 --timeout 500ms
  portward scan 10.0.0.5 --ports 22 --json
  portward scan 10.0.0.5 --ports 1-65535 --concurrency 500 --persist
  portward scan 10.0.0.5 --server localhost:8080`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	rootCmd.AddCommand(scanCmd)

	scanCmd.Flags().StringVarP(&scanPorts, "ports", "p", "", "port or range to scan, e.g. '443' or '1-1024' (default from config)")
	scanCmd.Flags().DurationVarP(&scanTimeout, "timeout", "t", 0, "per-port connect timeout (default from config)")
	scanCmd.Flags().IntVarP(&scanConcurrency, "concurrency", "c", 0, "maximum simultaneous probes (default from config)")
	scanCmd.Flags().BoolVar(&scanPersist, "persist", false, "record the results as a session in the database")
	scanCmd.Flags().StringVar(&scanServer, "server", "", "submit the scan to a portward server at this address")
	scanCmd.Flags().BoolVar(&scanJSON, "json", false, "print the final job snapshot as JSON")
	scanCmd.Flags().BoolVarP(&scanQuiet, "quiet", "q", false, "do not print progress while scanning")

	scanCmd.MarkFlagsMutuallyExclusive("persist", "server")
}

func runScan(cmd *cobra.Command, args []string) error {
	req := scanning.ScanRequest{
		Target:      args[0],
		Timeout:     scanTimeout,
		Concurrency: scanConcurrency,
	}
	if scanPorts != "" {
		start, end, err := parsePortRange(scanPorts)
		if err != nil {
			return fmt.Errorf("invalid port specification '%s': %w", scanPorts, err)
		}
		req.StartPort, req.EndPort = start, end
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var progress io.Writer = os.Stderr
	if scanQuiet || scanJSON {
		progress = io.Discard
	}

	var (
		snap jobs.Snapshot
		err  error
	)
	if scanServer != "" {
		snap, err = scanRemote(ctx, scanServer, req, progress)
	} else {
		snap, err = scanLocal(ctx, req, progress)
	}
	if err != nil {
		return err
	}

	if scanJSON {
		return printJSON(os.Stdout, snap)
	}
	renderScanResult(os.Stdout, snap)
	if snap.Status == jobs.StatusFailed {
		return fmt.Errorf("scan failed: %s", snap.Error)
	}
	return nil
}

// scanLocal runs req on an in-process registry. Interrupting ctx cancels
// the scan and still returns its partial snapshot.
func scanLocal(ctx context.Context, req scanning.ScanRequest, progress io.Writer) (jobs.Snapshot, error) {
	cfg, err := loadConfig()
	if err != nil {
		return jobs.Snapshot{}, err
	}
	e := engine{
		notifier: progressNotifier(progress),
		logger:   logging.Component("scan"),
	}
	if scanPersist {
		database, err := openDatabase(ctx, cfg, true)
		if err != nil {
			return jobs.Snapshot{}, err
		}
		defer func() { _ = database.Close() }()
		e.store = db.NewSessionRepository(database)
	}

	registry := newRegistry(cfg, e)
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		_ = registry.Close(closeCtx)
	}()

	id, err := registry.Create(req)
	if err != nil {
		return jobs.Snapshot{}, err
	}

	snap, err := registry.Wait(ctx, id)
	if err == nil {
		return snap, nil
	}

	fmt.Fprintln(progress, "\nInterrupted, cancelling scan...")
	if _, cancelErr := registry.Cancel(id); cancelErr != nil {
		return snap, cancelErr
	}
	waitCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	return registry.Wait(waitCtx, id)
}

// scanRemote submits req to a server and polls it until the job ends.
func scanRemote(ctx context.Context, server string, req scanning.ScanRequest, progress io.Writer) (jobs.Snapshot, error) {
	body := apihandlers.ScanRequest{
		Target:      req.Target,
		StartPort:   req.StartPort,
		EndPort:     req.EndPort,
		TimeoutMS:   req.Timeout.Milliseconds(),
		Concurrency: req.Concurrency,
	}

	var snap jobs.Snapshot
	err := withAPIClient(server, "scan", func(client *APIClient) error {
		id, err := client.CreateScan(ctx, body)
		if err != nil {
			return err
		}
		fmt.Fprintf(progress, "Submitted job %s\n", id)

		snap, err = client.WaitScan(ctx, id, pollInterval, func(s jobs.Snapshot) {
			fmt.Fprintf(progress, "\r%s: %d/%d ports (%d%%), %d open",
				s.Status, s.ProgressDone, s.ProgressTotal, s.Percent(), s.Counts.Open)
		})
		fmt.Fprintln(progress)
		if err == nil || ctx.Err() == nil {
			return err
		}

		// Interrupted: cancel on the server and report what it has.
		cancelCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, cancelErr := client.CancelScan(cancelCtx, id); cancelErr != nil {
			return cancelErr
		}
		snap, err = client.WaitScan(cancelCtx, id, pollInterval, nil)
		return err
	})
	return snap, err
}

// progressNotifier prints open ports as they are found and the percentage
// as it advances.
func progressNotifier(w io.Writer) jobs.Notifier {
	return jobs.NotifierFunc(func(e jobs.Event) {
		switch e.Type {
		case jobs.EventPortOpen:
			if e.Port != nil {
				fmt.Fprintf(w, "\r%d/tcp open%s\n", e.Port.Port, serviceSuffix(e.Port.Service))
			}
		case jobs.EventProgress:
			fmt.Fprintf(w, "\r%d/%d ports (%d%%)", e.Job.ProgressDone, e.Job.ProgressTotal, e.Job.Percent())
		case jobs.EventStatus:
			if e.Job.Status == jobs.StatusRunning {
				target := e.Job.Target
				if e.Job.Address != "" && e.Job.Address != target {
					target += " (" + e.Job.Address + ")"
				}
				fmt.Fprintf(w, "Scanning %s ports %d-%d\n", target, e.Job.StartPort, e.Job.EndPort)
			} else if e.Job.Status.Terminal() {
				fmt.Fprintln(w)
			}
		case jobs.EventPersisted:
			if e.Job.SessionID != "" {
				fmt.Fprintf(w, "Saved as session %s\n", e.Job.SessionID)
			}
		}
	})
}

func serviceSuffix(service *string) string {
	if service == nil || *service == "" {
		return ""
	}
	return " (" + *service + ")"
}

// renderScanResult prints a summary and a table of open ports.
func renderScanResult(w io.Writer, snap jobs.Snapshot) {
	fmt.Fprintf(w, "\nScan of %s", snap.Target)
	if snap.Address != "" && snap.Address != snap.Target {
		fmt.Fprintf(w, " (%s)", snap.Address)
	}
	fmt.Fprintf(w, " %s\n", snap.Status)
	if snap.StartedAt != nil && snap.FinishedAt != nil {
		fmt.Fprintf(w, "Duration: %v\n", snap.FinishedAt.Sub(*snap.StartedAt).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Ports: %d/%d scanned, %d open, %d closed, %d filtered, %d errors\n",
		snap.ProgressDone, snap.ProgressTotal,
		snap.Counts.Open, snap.Counts.Closed, snap.Counts.Filtered, snap.Counts.Error)
	if snap.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", snap.Error)
	}
	if snap.SessionID != "" {
		fmt.Fprintf(w, "Session: %s\n", snap.SessionID)
	}

	if len(snap.OpenPorts) == 0 {
		fmt.Fprintln(w, "No open ports found.")
		return
	}

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.Header("PORT", "STATE", "SERVICE", "LATENCY")
	for _, p := range snap.OpenPorts {
		service := ""
		if p.Service != nil {
			service = *p.Service
		}
		_ = table.Append([]string{
			fmt.Sprintf("%d/tcp", p.Port),
			string(p.State),
			service,
			p.Latency.Round(time.Microsecond).String(),
		})
	}
	_ = table.Render()
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// parsePortRange parses a single port ("443") or an inclusive range
// ("1-1024").
func parsePortRange(spec string) (start, end int, err error) {
	spec = strings.TrimSpace(spec)
	if spec == "" {
		return 0, 0, fmt.Errorf("empty port specification")
	}

	parts := strings.Split(spec, "-")
	if len(parts) > 2 {
		return 0, 0, fmt.Errorf("invalid port range: %s", spec)
	}

	start, err = parsePort(parts[0])
	if err != nil {
		return 0, 0, err
	}
	end = start
	if len(parts) == 2 {
		if end, err = parsePort(parts[1]); err != nil {
			return 0, 0, err
		}
	}
	if start > end {
		return 0, 0, fmt.Errorf("start port cannot be greater than end port: %s", spec)
	}
	return start, end, nil
}

func parsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("invalid port: %s", s)
	}
	return port, nil
}
