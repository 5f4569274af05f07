package main

import (
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"glitchls/internal/ui"
)

// runWithProgress runs work while rendering per-file progress on stderr.
// work reports through emit; the display ends when work returns.
func runWithProgress(title string, files []string, work func(emit func(ui.Event)) error) error {
	events := make(chan ui.Event, 256)
	workErr := make(chan error, 1)

	go func() {
		err := work(func(ev ui.Event) { events <- ev })
		workErr <- err
		close(events)
	}()

	program := tea.NewProgram(ui.NewProgressModel(title, files, events), tea.WithOutput(os.Stderr))
	_, uiErr := program.Run()
	// Drain so work never blocks if the display quit early.
	go func() {
		for range events {
		}
	}()
	err := <-workErr
	if uiErr != nil {
		return uiErr
	}
	return err
}
