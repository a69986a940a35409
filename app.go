// Copyright 2020-2022 The OS-NVR Authors.
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU General Public License as published by
// the Free Software Foundation; either version 2 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU General Public License for more details.
//
// You should have received a copy of the GNU General Public License
// along with this program.  If not, see <https://www.gnu.org/licenses/>.

package mjpegavi

import (
	"context"
	"errors"
	"fmt"
	"mjpegavi/pkg/catalog"
	"mjpegavi/pkg/config"
	"mjpegavi/pkg/ingest"
	"mjpegavi/pkg/log"
	"mjpegavi/pkg/system"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run starts the ingest server with the configuration at envPath
// and blocks until ctx is canceled or a component fails.
func Run(ctx context.Context, envPath string) error {
	env, err := config.ReadConfigEnv(envPath)
	if err != nil {
		return fmt.Errorf("could not get environment config: %w", err)
	}

	wg := &sync.WaitGroup{}
	app, err := newApp(env, wg)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	err = app.run(ctx)
	cancel()
	wg.Wait()
	return err
}

// App is the main application struct.
type App struct {
	WG     *sync.WaitGroup
	Logger *log.Logger
	Env    config.ConfigEnv

	catalog *catalog.DB
	system  *system.System
	server  *http.Server
}

func newApp(env *config.ConfigEnv, wg *sync.WaitGroup) (*App, error) {
	if err := env.PrepareEnvironment(); err != nil {
		return nil, err
	}

	db, err := catalog.Open(env.DBPath())
	if err != nil {
		return nil, fmt.Errorf("could not open catalog: %w", err)
	}

	logger := log.NewLogger(wg)
	sys := system.New(env.StorageDir, logger)
	srv := ingest.NewServer(*env, logger, db, sys.Status)

	return &App{
		WG:      wg,
		Logger:  logger,
		Env:     *env,
		catalog: db,
		system:  sys,
		server:  &http.Server{Addr: env.Addr, Handler: srv.Handler()},
	}, nil
}

func (app *App) run(ctx context.Context) error {
	defer app.catalog.Close()

	app.Logger.Start(ctx)
	go app.Logger.LogToStdout(ctx)
	time.Sleep(10 * time.Millisecond)

	g, ctx := errgroup.WithContext(ctx)

	// Recording sessions are canceled with the group.
	app.server.BaseContext = func(net.Listener) context.Context { return ctx }

	g.Go(func() error {
		app.system.StatusLoop(ctx)
		return nil
	})

	g.Go(func() error {
		app.Logger.Info().Src("app").Msgf("serving app on %v", app.Env.Addr)
		err := app.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return app.server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
