package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/matheus3301/parley/internal/api"
	"github.com/matheus3301/parley/internal/app"
	"github.com/matheus3301/parley/internal/auth"
	"github.com/matheus3301/parley/internal/bus"
	"github.com/matheus3301/parley/internal/chatsync"
	"github.com/matheus3301/parley/internal/lock"
	"github.com/matheus3301/parley/internal/profile"
	"github.com/matheus3301/parley/internal/tui"
)

const lifecycleTimeout = 15 * time.Second

func main() {
	profileFlag := flag.String("profile", "", "profile name (overrides config default)")
	flag.Parse()

	name := profile.Resolve(*profileFlag)
	if err := profile.ValidateName(name); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}

	var (
		syncer    *chatsync.Synchronizer
		client    *api.Client
		sessions  *auth.Provider
		connector *app.Connector
		events    *bus.Bus
		logger    *zap.Logger
	)
	core := fx.New(
		app.Module(app.Params{Profile: name}),
		fx.WithLogger(func(l *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: l.Named("fx")}
		}),
		fx.Populate(&syncer, &client, &sessions, &connector, &events, &logger),
	)
	if err := core.Err(); err != nil {
		var held *lock.LockHeldError
		if errors.As(err, &held) {
			fmt.Fprintf(os.Stderr, "error: profile %q is already open (PID %d)\n", name, held.PID)
		} else {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		os.Exit(1)
	}

	startCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	err := core.Start(startCtx)
	cancel()
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: start: %v\n", err)
		os.Exit(1)
	}

	ui := tui.NewApp(tui.Deps{
		Profile:   name,
		Core:      syncer,
		Directory: client,
		Sessions:  sessions,
		Realtime:  connector,
		Bus:       events,
		Logger:    logger,
	})
	runErr := ui.Run()

	stopCtx, cancel := context.WithTimeout(context.Background(), lifecycleTimeout)
	defer cancel()
	if err := core.Stop(stopCtx); err != nil {
		fmt.Fprintf(os.Stderr, "error: stop: %v\n", err)
	}
	if runErr != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", runErr)
		os.Exit(1)
	}
}
