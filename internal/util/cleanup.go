package util

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

// WithInterrupt returns a context cancelled on SIGINT/SIGTERM. Work in
// progress is left on disk so the next run can resume it. A second signal
// exits immediately.
func WithInterrupt(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)

	sig := make(chan os.Signal, 2)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sig)

		select {
		case <-sig:
		case <-ctx.Done():
			return
		}

		fmt.Println("\nInterrupt received. Finishing current writes, partial issues stay resumable...")
		cancel()

		<-sig
		fmt.Println("\nExiting due to second interrupt.")
		os.Exit(130)
	}()

	return ctx, cancel
}

// StrayDirs lists working directories under root that already have a
// finished archive next to them.
func StrayDirs(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}

	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}

		full := filepath.Join(root, e.Name())
		if Exists(full + ".cbz") {
			out = append(out, full)
		}
	}

	return out, nil
}

func CleanupFolder(folder string) error {
	return os.RemoveAll(folder)
}
