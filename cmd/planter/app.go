package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/planterhq/planter/internal/config"
	"github.com/planterhq/planter/internal/filesystem"
	"github.com/planterhq/planter/internal/traversal"
)

// App wires the configuration, a filesystem backend and the traversal
// engine for one provisioning run.
type App struct {
	configHandler *config.Config
	fsHandler     filesystem.Filesystem
	applying      bool
}

// NewApp returns an [App] provisioning against the real filesystem when
// applying, against a fresh in-memory model otherwise.
func NewApp(configHandler *config.Config, applying bool) *App {
	var fsHandler filesystem.Filesystem
	if applying {
		fsHandler = filesystem.NewDiskFilesystem(&filesystem.OS{}, &filesystem.Unix{}, &filesystem.Users{})
	} else {
		fsHandler = filesystem.NewMemoryFilesystem()
	}

	return &App{
		configHandler: configHandler,
		fsHandler:     fsHandler,
		applying:      applying,
	}
}

// Run provisions one target path and returns the traversal's report.
// The report is returned even on error, holding whatever was settled
// before the run stopped.
func (app *App) Run(ctx context.Context, target string, vars map[string]string) (*traversal.Report, error) {
	if !app.applying {
		if err := app.seedRoots(); err != nil {
			return nil, err
		}
	}

	slog.Info("Starting a provisioning run.",
		"target", target,
		"apply", app.applying,
	)

	traversalHandler := traversal.NewHandler(app.configHandler, app.fsHandler)

	report, err := traversalHandler.Traverse(ctx, traversal.Params{
		Target: target,
		Vars:   vars,
	})
	if err != nil {
		return report, fmt.Errorf("(app) %w", err)
	}

	return report, nil
}

// seedRoots pre-creates the stem roots in the simulation backend, since
// a preview starts from an otherwise empty model.
func (app *App) seedRoots() error {
	for _, stem := range app.configHandler.Stems() {
		if err := filesystem.CreateDirectoryAll(app.fsHandler, stem.Root.Path()); err != nil {
			return fmt.Errorf("(app) %w", err)
		}
	}

	return nil
}
