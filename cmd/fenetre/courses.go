package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/nffu/fenetre"
	"github.com/spf13/cobra"
)

// coursesCmd runs discovery once and prints the classified courses.
var coursesCmd = &cobra.Command{
	Use:   "courses",
	Short: "Discover courses once and print their status",
	Long: `Ask the backend to discover your courses, wait for the result, and print
each course with its configuration status.

Discovery is polled with the backoff policy from the config file. The command
fails if the account has no lockbox credentials or discovery does not finish
within --timeout.

Example:
  fenetre courses -c config.yaml
  fenetre courses -c config.yaml --timeout 2m`,
	RunE: runCourses,
}

func init() {
	rootCmd.AddCommand(coursesCmd)

	coursesCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	coursesCmd.Flags().Duration("timeout", 5*time.Minute, "give up if discovery takes longer")
	_ = coursesCmd.MarkFlagRequired("config")
}

func runCourses(cmd *cobra.Command, args []string) error {
	app, _, err := newApp(cmd, newLogger())
	if err != nil {
		return err
	}

	timeout, _ := cmd.Flags().GetDuration("timeout")
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	report, err := app.Discover(ctx)
	switch {
	case errors.Is(err, fenetre.ErrNoCredentials):
		return fmt.Errorf("no lockbox credentials stored; add them from the dashboard first")
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("course discovery did not finish within %s", timeout)
	case err != nil:
		return fmt.Errorf("course discovery failed: %w", err)
	}

	printReport(cmd.OutOrStdout(), report)
	return nil
}

var (
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	boldStyle   = lipgloss.NewStyle().Bold(true)
	stateStyles = map[fenetre.DisplayState]lipgloss.Style{
		fenetre.Verified:          lipgloss.NewStyle().Foreground(lipgloss.Color("42")),
		fenetre.ConfiguredByOther: lipgloss.NewStyle().Foreground(lipgloss.Color("220")),
		fenetre.Unconfigured:      lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
	}
	statusStyles = map[fenetre.AggregateStatus]lipgloss.Style{
		fenetre.AllVerified:                 stateStyles[fenetre.Verified],
		fenetre.SomeUnverifiedButConfigured: stateStyles[fenetre.ConfiguredByOther],
		fenetre.SomeUnconfigured:            stateStyles[fenetre.Unconfigured],
	}
)

// printReport writes the aggregate message followed by one line per course.
func printReport(w io.Writer, report fenetre.Report) {
	fmt.Fprintln(w, statusStyles[report.Status].Render(report.Status.Message()))
	fmt.Fprintln(w)

	if len(report.Entries) == 0 {
		fmt.Fprintln(w, dimStyle.Render("No courses found."))
		return
	}

	width := len("Course")
	for _, e := range report.Entries {
		if n := len(e.Course.CourseCode); n > width {
			width = n
		}
	}

	fmt.Fprintf(w, "    %s  %s\n", boldStyle.Render(pad("Course", width)), boldStyle.Render("Status"))
	for _, e := range report.Entries {
		marker := stateStyles[e.State].Render(pad(e.State.Marker(), 2))
		line := fmt.Sprintf("%s  %s  %s", marker, pad(e.Course.CourseCode, width), e.State.Label())
		if len(e.Course.KnownSlots) > 0 {
			line += dimStyle.Render("  (" + strings.Join(e.Course.KnownSlots, ", ") + ")")
		}
		fmt.Fprintln(w, line)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, dimStyle.Render(fmt.Sprintf("%d verified, %d configured by others, %d unconfigured",
		report.Count(fenetre.Verified), report.Count(fenetre.ConfiguredByOther), report.Count(fenetre.Unconfigured))))
}

// pad right-pads s to width runes.
func pad(s string, width int) string {
	if n := len([]rune(s)); n < width {
		return s + strings.Repeat(" ", width-n)
	}
	return s
}
