package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/bobmcallan/tickzen/internal/app"
	"github.com/bobmcallan/tickzen/internal/models"
)

var (
	runUser      string
	runProfiles  []string
	runCount     int
	runTickers   []string
	runFile      string
	runRepublish bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one publishing pass in the foreground",
	Long:  `Publishes for a user's profiles and prints per-ticker outcomes. Ctrl+C halts at the next checkpoint; in-flight calls finish first.`,
	RunE:  runPublish,
}

func init() {
	runCmd.Flags().StringVarP(&runUser, "user", "u", "", "Configured user id")
	runCmd.Flags().StringSliceVarP(&runProfiles, "profile", "p", nil, "Profile ids (default: all of the user's profiles)")
	runCmd.Flags().IntVarP(&runCount, "count", "n", 0, "Posts to attempt per profile (default: profile daily target)")
	runCmd.Flags().StringSliceVar(&runTickers, "tickers", nil, "Manual ticker list, comma separated")
	runCmd.Flags().StringVar(&runFile, "file", "", "CSV or XLSX ticker file to upload and publish from")
	runCmd.Flags().BoolVar(&runRepublish, "republish", false, "Allow already published tickers as variations")
	runCmd.MarkFlagRequired("user")
}

func runPublish(cmd *cobra.Command, args []string) error {
	a, err := app.NewApp(configPath)
	if err != nil {
		return fmt.Errorf("failed to initialize app: %w", err)
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := app.RunOptions{UserID: runUser, ProfileIDs: runProfiles}
	if len(opts.ProfileIDs) == 0 {
		user, ok := a.Config.User(runUser)
		if !ok {
			return fmt.Errorf("%w: %s", app.ErrUnknownUser, runUser)
		}
		for _, p := range user.Profiles {
			opts.ProfileIDs = append(opts.ProfileIDs, p.ProfileID)
		}
	}

	override := models.TickerOverride{Manual: runTickers, Republish: runRepublish}
	if runFile != "" {
		data, err := os.ReadFile(runFile)
		if err != nil {
			return fmt.Errorf("failed to read ticker file: %w", err)
		}
		ref, n, err := a.UploadTickerFile(ctx, filepath.Base(runFile), "", data)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Uploaded %s (%d tickers)\n", ref.Name, n)
		override.UploadedFile = ref
	}

	hasOverride := len(override.Manual) > 0 || override.UploadedFile != nil || override.Republish
	for _, id := range opts.ProfileIDs {
		if runCount > 0 {
			if opts.RequestedCounts == nil {
				opts.RequestedCounts = make(map[string]int)
			}
			opts.RequestedCounts[id] = runCount
		}
		if hasOverride {
			if opts.Overrides == nil {
				opts.Overrides = make(map[string]models.TickerOverride)
			}
			opts.Overrides[id] = override
		}
	}

	results, err := a.RunSync(ctx, opts)
	if err != nil {
		return err
	}
	printResults(cmd, results)
	return nil
}

func printResults(cmd *cobra.Command, results []*models.RunResult) {
	out := cmd.OutOrStdout()
	for _, r := range results {
		if r == nil {
			continue
		}
		fmt.Fprintf(out, "\n%s: %s\n", r.ProfileName, r.Summary)
		if len(r.Outcomes) > 0 {
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "TICKER\tSTATUS\tWRITER\tSCHEDULED\tURL")
			for _, o := range r.Outcomes {
				when := ""
				if o.ScheduledFor != nil {
					when = o.ScheduledFor.UTC().Format("2006-01-02 15:04")
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", o.Ticker, o.Status, o.Writer, when, o.PostURL)
			}
			tw.Flush()
		}
		if len(r.Warnings) > 0 {
			fmt.Fprintf(out, "warnings: %s\n", strings.Join(r.Warnings, "; "))
		}
	}
}
