package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/softcask/filetrack/internal/report"
)

var demoCmd = &cobra.Command{
	Use:   "demo [dir]",
	Short: "Run a scripted handle lifecycle and show the diagnostic report",
	Long: `Demo exercises the tracking registry end to end: it opens, reopens,
closes, and removes files in a scratch directory (a temporary one unless
dir is given), prints the diagnostic dump, deliberately leaks a handle,
and finishes with the shutdown sweep's leak report.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDemo,
}

func init() {
	rootCmd.AddCommand(demoCmd)
}

func runDemo(cmd *cobra.Command, args []string) error {
	s, err := newStack()
	if err != nil {
		return err
	}
	defer s.close()

	dir := ""
	if len(args) == 1 {
		dir = args[0]
	} else {
		dir, err = os.MkdirTemp("", "filetrack-demo-")
		if err != nil {
			return fmt.Errorf("failed to create scratch directory: %w", err)
		}
		defer os.RemoveAll(dir)
	}

	t := s.tracker
	a := filepath.Join(dir, "a.txt")
	b := filepath.Join(dir, "b.txt")

	// Open, write, close, remove: the clean lifecycle.
	f1, err := t.Open(a, "w")
	if err != nil {
		return err
	}
	fmt.Fprintln(f1, "hello")
	if err := t.Close(f1); err != nil {
		return err
	}
	if err := t.Remove(a); err != nil {
		return err
	}
	fmt.Printf("removed %s after closing it\n", a)

	// Reopen with a new name closes the old entry and tracks the new one.
	f2, err := t.Open(a, "w")
	if err != nil {
		return err
	}
	f3, err := t.Reopen(b, "w", f2)
	if err != nil {
		return err
	}

	// Mode change keeps the handle identity while updating the entry.
	if _, err := t.Reopen("", "a", f3); err != nil {
		return err
	}

	// Removing a file whose handle is still open is refused.
	if err := t.Remove(b); err != nil {
		fmt.Printf("remove of %s refused while its handle is open: %v\n", b, err)
	}

	// A second close is rejected with both provenance records.
	if err := t.Close(f3); err != nil {
		return err
	}
	if err := t.Close(f3); err != nil {
		fmt.Printf("double close rejected: %v\n", err)
	}

	// Leak one handle on purpose for the sweep to find.
	if _, err := t.TempFile(); err != nil {
		return err
	}

	patternOpt, err := report.WithPattern(s.cfg.Report.Pattern)
	if err != nil {
		return err
	}
	rep := report.New(os.Stdout, report.WithColor(s.cfg.Report.Color), patternOpt)

	fmt.Println("\ndiagnostic dump:")
	if err := rep.Render(s.reg.Snapshot()); err != nil {
		return err
	}

	fmt.Println("shutdown sweep:")
	return rep.RenderLeaks(t.Shutdown())
}
