package cli

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/portward/internal/jobs"
)

var (
	scansServer string
	scansStatus string
	scansJSON   bool
	scansWait   bool
)

// scansCmd groups the commands that manage jobs on a running server.
var scansCmd = &cobra.Command{
	Use:   "scans",
	Short: "Manage scan jobs on a portward server",
	Long: `Inspect, list and cancel scan jobs held by a running portward server.
Use 'portward scan --server' to submit new scans.`,
	Example: `  portward scans list
  portward scans list --status running
  portward scans status 3f0c9a2e-... --wait
  portward scans cancel 3f0c9a2e-...`,
}

var scansListCmd = &cobra.Command{
	Use:   "list",
	Short: "List jobs known to the server",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withAPIClient(scansServer, "list scans", func(client *APIClient) error {
			list, err := client.ListScans(cmd.Context(), scansStatus)
			if err != nil {
				return err
			}
			if scansJSON {
				return printJSON(os.Stdout, list)
			}
			renderJobTable(os.Stdout, list)
			return nil
		})
	},
}

var scansStatusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Show the status of a job",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAPIClient(scansServer, "get scan status", func(client *APIClient) error {
			var (
				snap jobs.Snapshot
				err  error
			)
			if scansWait {
				snap, err = client.WaitScan(cmd.Context(), args[0], pollInterval, nil)
			} else {
				snap, err = client.GetScan(cmd.Context(), args[0])
			}
			if err != nil {
				return err
			}
			if scansJSON {
				return printJSON(os.Stdout, snap)
			}
			fmt.Printf("Job: %s\n", snap.ID)
			fmt.Printf("Progress: %d/%d (%d%%)\n", snap.ProgressDone, snap.ProgressTotal, snap.Percent())
			renderScanResult(os.Stdout, snap)
			return nil
		})
	},
}

var scansCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a queued or running job",
	Long: `Request cancellation of a job. A queued job is cancelled immediately;
a running job stops dispatching probes and keeps the results already found.
Cancelling a finished job has no effect.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withAPIClient(scansServer, "cancel scan", func(client *APIClient) error {
			accepted, err := client.CancelScan(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if scansJSON {
				return printJSON(os.Stdout, accepted)
			}
			fmt.Printf("Job %s: %s (cancel requested: %t)\n", accepted.JobID, accepted.Status, accepted.CancelRequested)
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(scansCmd)
	scansCmd.AddCommand(scansListCmd, scansStatusCmd, scansCancelCmd)

	scansCmd.PersistentFlags().StringVar(&scansServer, "server", "localhost:8080", "address of the portward server")
	scansCmd.PersistentFlags().BoolVar(&scansJSON, "json", false, "print JSON instead of tables")
	scansListCmd.Flags().StringVar(&scansStatus, "status", "", "only list jobs with this status (queued, running, completed, cancelled, failed)")
	scansStatusCmd.Flags().BoolVar(&scansWait, "wait", false, "poll until the job finishes")
}

// renderJobTable prints one row per job.
func renderJobTable(w io.Writer, list []jobs.Snapshot) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No scan jobs found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("JOB ID", "TARGET", "PORTS", "STATUS", "PROGRESS", "OPEN", "CREATED")
	for _, s := range list {
		_ = table.Append([]string{
			s.ID,
			s.Target,
			fmt.Sprintf("%d-%d", s.StartPort, s.EndPort),
			string(s.Status),
			fmt.Sprintf("%d%%", s.Percent()),
			fmt.Sprintf("%d", s.Counts.Open),
			s.CreatedAt.Local().Format(time.DateTime),
		})
	}
	_ = table.Render()
	fmt.Fprintf(w, "\n%d job(s)\n", len(list))
}
