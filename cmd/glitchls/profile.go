package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"glitchls/internal/prof"
)

// startProfiling starts the profiles requested by the persistent profiling
// flags. The returned session must be stopped.
func startProfiling(cmd *cobra.Command) (*prof.Session, error) {
	root := cmd.Root()
	cpu, err := root.PersistentFlags().GetString("cpu-profile")
	if err != nil {
		return nil, fmt.Errorf("failed to get cpu-profile flag: %w", err)
	}
	heap, err := root.PersistentFlags().GetString("mem-profile")
	if err != nil {
		return nil, fmt.Errorf("failed to get mem-profile flag: %w", err)
	}
	session, err := prof.Start(prof.Options{CPU: cpu, Heap: heap})
	if err != nil {
		return nil, fmt.Errorf("failed to start profiling: %w", err)
	}
	return session, nil
}
