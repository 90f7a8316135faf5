package server

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"djc/state"
	"djc/store"
)

// Serve is "serve" subcommand: environment (and optional .env file) may
// override server configuration.
func Serve(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)
	log := env.Log.Named("serve")

	envFile := cmd.String("env-file")
	if err := godotenv.Load(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) || cmd.IsSet("env-file") {
			return fmt.Errorf("unable to load environment from %q: %w", envFile, err)
		}
	} else {
		log.Debug("Environment loaded", zap.String("file", envFile))
	}
	if err := env.Cfg.ApplyEnv(os.LookupEnv); err != nil {
		return fmt.Errorf("unable to apply environment: %w", err)
	}
	if listen := cmd.String("listen"); len(listen) > 0 {
		env.Cfg.Server.Listen = listen
	}

	engine, err := env.Engine()
	if err != nil {
		return fmt.Errorf("unable to prepare engine: %w", err)
	}

	st, err := store.Open(&env.Cfg.Server.Store, env.Log)
	if err != nil {
		return fmt.Errorf("unable to open artifact store: %w", err)
	}
	defer func() {
		if er := st.Close(); er != nil {
			err = multierr.Append(err, fmt.Errorf("unable to close artifact store: %w", er))
		}
	}()

	log.Info("Server starting",
		zap.String("listen", env.Cfg.Server.Listen),
		zap.Stringer("store", env.Cfg.Server.Store.Kind),
		zap.Duration("ttl", env.Cfg.Server.Store.TTL),
		zap.Bool("auth", len(env.Cfg.Server.AccessToken) > 0))

	srv := New(env.Cfg, Deps{Engine: engine, Renderer: env.Renderer(), Store: st}, env.Log)
	return srv.Run(ctx)
}
