// Package state defines shared program state.
package state

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/text/encoding"

	"djc/blocks"
	"djc/common"
	"djc/config"
	"djc/css"
)

type envKey struct{}

// LocalEnv keeps everything program needs in a single place.
type LocalEnv struct {
	Cfg *config.Config
	Rpt *config.Report
	Log *zap.Logger

	// used by convert subcommand
	NoDirs    bool
	Overwrite bool
	Output    common.OutputKind
	// forced code page for non UTF-8 names in archives
	CodePage encoding.Encoding
	// code page of input text without BOM, nil means UTF-8
	InputEncoding encoding.Encoding

	engineOnce sync.Once
	engine     *blocks.Engine
	engineErr  error

	start         time.Time
	restoreStdLog func()
}

func EnvFromContext(ctx context.Context) *LocalEnv {
	if env, ok := ctx.Value(envKey{}).(*LocalEnv); ok {
		return env
	}
	// this should never happen
	panic("localenv not found in context")
}

func ContextWithEnv(ctx context.Context) context.Context {
	return context.WithValue(ctx, envKey{}, newLocalEnv())
}

func (e *LocalEnv) Uptime() time.Duration {
	return time.Since(e.start)
}

// Engine returns block extraction engine built from current configuration.
// It is created on first use, configuration must be loaded by then.
func (e *LocalEnv) Engine() (*blocks.Engine, error) {
	e.engineOnce.Do(func() {
		opts := blocks.DefaultOptions()
		if e.Cfg != nil {
			opts = e.Cfg.Engine.Options()
		}
		e.engine, e.engineErr = blocks.New(opts, e.logger())
	})
	return e.engine, e.engineErr
}

// Renderer returns CSS renderer using program logger.
func (e *LocalEnv) Renderer() *css.Renderer {
	return css.NewRenderer(e.logger())
}

func (e *LocalEnv) logger() *zap.Logger {
	if e.Log == nil {
		return zap.NewNop()
	}
	return e.Log
}

func (e *LocalEnv) RedirectStdLog() {
	if e.Log == nil {
		return
	}
	e.restoreStdLog = zap.RedirectStdLog(e.Log)
}

func (e *LocalEnv) RestoreStdLog() {
	if e.Log != nil {
		_ = e.Log.Sync()
	}
	if e.restoreStdLog != nil {
		e.restoreStdLog()
		e.restoreStdLog = nil
	}
}
