package cmd

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/softcask/filetrack/internal/report"
	"github.com/softcask/filetrack/internal/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch <dir> <file>...",
	Short: "Hold tracked handles open and report external modifications",
	Long: `Watch opens the given files (relative to dir) through the tracking
façade, holds the handles open, and watches the directory for on-disk
changes to them. A write, remove, or rename of a file whose handle is
still open is reported as an external modification, the kind of change
that silently invalidates what the handle reads or writes.

Interrupt to stop; the shutdown sweep then reports the held handles.`,
	Args: cobra.MinimumNArgs(2),
	RunE: runWatch,
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	s, err := newStack()
	if err != nil {
		return err
	}
	defer s.close()

	dir, err := filepath.Abs(args[0])
	if err != nil {
		return err
	}

	ignoreOpt, err := watch.WithIgnorePatterns(s.cfg.Watch.IgnorePatterns)
	if err != nil {
		return err
	}
	det, err := watch.New(s.reg,
		watch.WithBus(s.bus),
		watch.WithLogger(s.log),
		watch.WithDebounce(time.Duration(s.cfg.Watch.DebounceMs)*time.Millisecond),
		ignoreOpt,
	)
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer det.Stop()

	det.SetChangeCallback(func(c watch.ExternalChange) {
		fmt.Printf("%s: external %s of %s while a tracked handle is open\n",
			c.Detected.Format("15:04:05"), c.Op, c.Path)
	})

	if err := det.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	// Hold the named files open so external changes to them are flagged.
	for _, name := range args[1:] {
		path := filepath.Join(dir, name)
		if _, err := s.tracker.Open(path, "r"); err != nil {
			return err
		}
		fmt.Printf("holding %s open\n", path)
	}

	det.Start()
	fmt.Println("watching; interrupt to stop")

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)
	<-sig

	fmt.Println("\nshutdown sweep:")
	rep := report.New(os.Stdout, report.WithColor(s.cfg.Report.Color))
	return rep.RenderLeaks(s.tracker.Shutdown())
}
