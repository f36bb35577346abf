package cli

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/anstrom/portward/internal/db"
	"github.com/anstrom/portward/internal/scanning"
)

var (
	sessionsType      string
	sessionsTarget    string
	sessionsSince     time.Duration
	sessionsLimit     int
	sessionsOffset    int
	sessionsJSON      bool
	sessionsOlderThan time.Duration
	sessionsYes       bool
)

// sessionsCmd groups access to stored scan sessions.
var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "Browse stored scan sessions",
	Long: `List, inspect and purge the scan sessions recorded in the database.
Every persisted scan is stored as a red team session with its findings.`,
	Example: `  portward sessions list
  portward sessions list --target 10.0.0 --since 24h
  portward sessions show 6f1f7c4e-0d5b-4b8e-9d7e-2f1f3b1c9a10
  portward sessions stats
  portward sessions purge --older-than 720h --yes`,
}

var sessionsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sessions, newest first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		filters := db.SessionFilters{
			Type:   scanning.SessionType(sessionsType),
			Target: sessionsTarget,
			Limit:  sessionsLimit,
			Offset: sessionsOffset,
		}
		if sessionsSince > 0 {
			since := time.Now().Add(-sessionsSince)
			filters.Since = &since
		}

		return withSessions(cmd.Context(), func(repo *db.SessionRepository) error {
			sessions, total, err := repo.SearchSessions(cmd.Context(), filters)
			if err != nil {
				return err
			}
			if sessionsJSON {
				return printJSON(os.Stdout, sessions)
			}
			renderSessionTable(os.Stdout, sessions, total)
			return nil
		})
	},
}

var sessionsShowCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Show a session and its findings",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := uuid.Parse(args[0])
		if err != nil {
			return fmt.Errorf("invalid session ID %q: %w", args[0], err)
		}

		return withSessions(cmd.Context(), func(repo *db.SessionRepository) error {
			session, err := repo.GetSession(cmd.Context(), id)
			if err != nil {
				return err
			}
			results, err := repo.GetSessionResults(cmd.Context(), id)
			if err != nil {
				return err
			}
			if sessionsJSON {
				return printJSON(os.Stdout, struct {
					*db.Session
					Results []*db.ScanResult `json:"results"`
				}{session, results})
			}
			renderSession(os.Stdout, session, results)
			return nil
		})
	},
}

var sessionsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show aggregate session statistics",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withSessions(cmd.Context(), func(repo *db.SessionRepository) error {
			stats, err := repo.GetStatistics(cmd.Context())
			if err != nil {
				return err
			}
			if sessionsJSON {
				return printJSON(os.Stdout, stats)
			}
			renderStatistics(os.Stdout, stats)
			return nil
		})
	},
}

var sessionsPurgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete sessions older than a given age",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if sessionsOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive")
		}
		cutoff := time.Now().Add(-sessionsOlderThan)
		if !sessionsYes {
			return fmt.Errorf("refusing to delete sessions started before %s without --yes",
				cutoff.Local().Format(time.DateTime))
		}

		return withSessions(cmd.Context(), func(repo *db.SessionRepository) error {
			n, err := repo.DeleteSessionsBefore(cmd.Context(), cutoff)
			if err != nil {
				return err
			}
			fmt.Printf("Deleted %d session(s) started before %s\n", n, cutoff.Local().Format(time.DateTime))
			return nil
		})
	},
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
	sessionsCmd.AddCommand(sessionsListCmd, sessionsShowCmd, sessionsStatsCmd, sessionsPurgeCmd)

	sessionsCmd.PersistentFlags().BoolVar(&sessionsJSON, "json", false, "print JSON instead of tables")

	sessionsListCmd.Flags().StringVar(&sessionsType, "type", "", "filter by session type (red_team, blue_team)")
	sessionsListCmd.Flags().StringVar(&sessionsTarget, "target", "", "filter by target substring")
	sessionsListCmd.Flags().DurationVar(&sessionsSince, "since", 0, "only sessions started within this duration")
	sessionsListCmd.Flags().IntVar(&sessionsLimit, "limit", 20, "maximum number of sessions to list")
	sessionsListCmd.Flags().IntVar(&sessionsOffset, "offset", 0, "number of sessions to skip")

	sessionsPurgeCmd.Flags().DurationVar(&sessionsOlderThan, "older-than", 30*24*time.Hour, "delete sessions started before this age")
	sessionsPurgeCmd.Flags().BoolVarP(&sessionsYes, "yes", "y", false, "confirm deletion")
}

func renderSessionTable(w io.Writer, sessions []*db.Session, total int64) {
	if len(sessions) == 0 {
		fmt.Fprintln(w, "No sessions found.")
		return
	}

	table := tablewriter.NewWriter(w)
	table.Header("SESSION ID", "TYPE", "TARGET", "STATUS", "SCANNED", "OPEN", "STARTED")
	for _, s := range sessions {
		_ = table.Append([]string{
			s.ID.String(),
			string(s.Type),
			s.Target,
			s.Status,
			strconv.Itoa(s.PortsScanned),
			strconv.Itoa(s.PortsOpen),
			s.StartTime.Local().Format(time.DateTime),
		})
	}
	_ = table.Render()
	fmt.Fprintf(w, "\nShowing %d of %d session(s)\n", len(sessions), total)
}

func renderSession(w io.Writer, s *db.Session, results []*db.ScanResult) {
	fmt.Fprintf(w, "Session: %s\n", s.ID)
	fmt.Fprintf(w, "Type:    %s\n", s.Type)
	fmt.Fprintf(w, "Target:  %s\n", s.Target)
	if s.JobID != nil {
		fmt.Fprintf(w, "Job:     %s\n", *s.JobID)
	}
	fmt.Fprintf(w, "Status:  %s\n", s.Status)
	fmt.Fprintf(w, "Started: %s\n", s.StartTime.Local().Format(time.DateTime))
	if s.EndTime != nil {
		fmt.Fprintf(w, "Ended:   %s (%v)\n", s.EndTime.Local().Format(time.DateTime),
			s.EndTime.Sub(s.StartTime).Round(time.Millisecond))
	}
	fmt.Fprintf(w, "Ports:   %d scanned, %d open\n", s.PortsScanned, s.PortsOpen)

	if len(results) == 0 {
		fmt.Fprintln(w, "\nNo findings recorded.")
		return
	}

	fmt.Fprintln(w)
	table := tablewriter.NewWriter(w)
	table.Header("PORT", "STATE", "SERVICE", "LATENCY (MS)", "RECORDED")
	for _, r := range results {
		service := ""
		if r.Service != nil {
			service = *r.Service
		}
		_ = table.Append([]string{
			fmt.Sprintf("%d/tcp", r.Port),
			r.State,
			service,
			strconv.FormatFloat(r.LatencyMS, 'f', 2, 64),
			r.RecordedAt.Local().Format(time.DateTime),
		})
	}
	_ = table.Render()
}

func renderStatistics(w io.Writer, stats *db.Statistics) {
	table := tablewriter.NewWriter(w)
	table.Header("METRIC", "VALUE")
	rows := [][]string{
		{"Total sessions", strconv.FormatInt(stats.TotalSessions, 10)},
		{"Red team sessions", strconv.FormatInt(stats.RedTeamSessions, 10)},
		{"Blue team sessions", strconv.FormatInt(stats.BlueTeamSessions, 10)},
		{"Active sessions", strconv.FormatInt(stats.ActiveSessions, 10)},
		{"Open findings", strconv.FormatInt(stats.OpenFindings, 10)},
	}
	last := "never"
	if stats.LastSession != nil {
		last = stats.LastSession.Local().Format(time.DateTime)
	}
	rows = append(rows, []string{"Last session", last})
	for _, row := range rows {
		_ = table.Append(row)
	}
	_ = table.Render()
}
