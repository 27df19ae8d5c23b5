package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/mcostalima/trill/internal/api"
	"github.com/mcostalima/trill/internal/app"
	"github.com/mcostalima/trill/internal/profile"
	"github.com/mcostalima/trill/internal/tui"
	"github.com/mcostalima/trill/internal/tui/model"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	profileName := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(profileName); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	fxApp := fx.New(
		app.Module(app.Params{Profile: profileName}),
		fx.Provide(
			model.NewViewModel,
			func(vm *model.ViewModel, client *api.Client) *tui.App {
				return tui.NewApp(vm, client, profileName)
			},
		),
		fx.Invoke(runTUI),
		fx.NopLogger,
	)

	fxApp.Run()
}

// runTUI starts the TUI on the fx lifecycle and shuts the process down when
// the UI exits.
func runTUI(lc fx.Lifecycle, shutdowner fx.Shutdowner, a *tui.App, logger *zap.Logger) {
	lc.Append(fx.Hook{
		OnStart: func(_ context.Context) error {
			go func() {
				if err := a.Run(); err != nil {
					logger.Error("tui exited with error", zap.Error(err))
				}
				_ = shutdowner.Shutdown()
			}()
			return nil
		},
		OnStop: func(_ context.Context) error {
			a.Stop()
			return nil
		},
	})
}
