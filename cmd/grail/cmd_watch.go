package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"grail/internal/script"
)

const watchDebounce = 300 * time.Millisecond

// watchCmd re-checks scripts under a directory as they change, debouncing
// rapid saves the way the teacher's mangle file watcher does.
var watchCmd = &cobra.Command{
	Use:   "watch <dir>",
	Short: "watch a directory and re-check scripts on change",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dir := args[0]

		w, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("creating watcher: %w", err)
		}
		defer w.Close()

		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		logger.Info("watching directory", zap.String("dir", dir))

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var mu sync.Mutex
		pending := make(map[string]time.Time)
		ticker := time.NewTicker(100 * time.Millisecond)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return nil

			case ev, ok := <-w.Events:
				if !ok {
					return nil
				}
				if !isScriptFile(ev.Name) {
					continue
				}
				if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				mu.Lock()
				pending[ev.Name] = time.Now()
				mu.Unlock()

			case err, ok := <-w.Errors:
				if !ok {
					return nil
				}
				logger.Warn("watch error", zap.Error(err))

			case <-ticker.C:
				mu.Lock()
				due := make([]string, 0)
				now := time.Now()
				for path, at := range pending {
					if now.Sub(at) >= watchDebounce {
						due = append(due, path)
						delete(pending, path)
					}
				}
				mu.Unlock()
				for _, path := range due {
					recheckScript(path)
				}
			}
		}
	},
}

func isScriptFile(path string) bool {
	return strings.HasSuffix(path, ".pym")
}

func recheckScript(path string) {
	bundle, err := script.Load(path, script.LoadOptions{ArtifactDir: cfg.ArtifactDir, Logger: logger})
	if err != nil {
		fmt.Printf("%s: %v\n", filepath.Base(path), err)
		return
	}
	if bundle.CheckResult.Valid {
		fmt.Printf("%s: OK\n", filepath.Base(path))
		return
	}
	fmt.Printf("%s: INVALID\n", filepath.Base(path))
	for _, e := range bundle.CheckResult.Errors {
		fmt.Printf("  %s line %d: %s\n", e.Code, e.Line, e.Message)
	}
}
