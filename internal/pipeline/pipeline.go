// Package pipeline drives the hook manager the way a bundler would: it
// calls the manager's entry points around a build step, once per cycle.
package pipeline

import (
	"context"

	"github.com/lightfastai/buildhooks/internal/errors"
	"github.com/lightfastai/buildhooks/internal/hooks"
)

// Pipeline runs build cycles
type Pipeline struct {
	Hooks *hooks.Manager

	// Build is the build step. A zero Task means the cycle has no build of
	// its own and only fires hooks.
	Build hooks.Task

	// Exec runs the build step. Its error is the build error handed to the
	// BuildEnd entry point, so it should report non-zero exits.
	Exec hooks.Executor

	Log hooks.Logger
}

// Cycle performs one build: the start hooks, the build step, then the end
// hooks. A build failure fires buildError instead of buildEnd. afterDone
// fires either way; after a failed build its errors are logged and the build
// error is returned.
func (p *Pipeline) Cycle(ctx context.Context, watch bool) error {
	if err := p.Hooks.BuildStart(ctx, watch); err != nil {
		return err
	}
	if err := p.Hooks.ResolveID(ctx); err != nil {
		return err
	}

	buildErr := p.build(ctx)
	if err := p.Hooks.BuildEnd(ctx, buildErr); err != nil {
		if buildErr == nil {
			return err
		}
		p.log().Errorf("[buildhooks] %v", err)
	}
	if buildErr != nil {
		if err := p.Hooks.CloseBundle(ctx); err != nil {
			p.log().Errorf("[buildhooks] %v", err)
		}
		return buildErr
	}

	return p.Hooks.CloseBundle(ctx)
}

func (p *Pipeline) build(ctx context.Context) error {
	if !p.hasBuild() {
		return nil
	}
	p.log().Debugf("[buildhooks] building: %s", p.Build)

	var err error
	if p.Build.Kind == hooks.CallbackTask {
		err = p.Build.Func(ctx)
	} else {
		err = p.Exec.Run(ctx, p.Build)
	}
	if err != nil {
		return errors.BuildFailed(p.Build.String(), err)
	}
	return nil
}

func (p *Pipeline) hasBuild() bool {
	switch p.Build.Kind {
	case hooks.CallbackTask:
		return p.Build.Func != nil
	default:
		return p.Build.Script != nil || p.Build.Line != ""
	}
}

type nopLogger struct{}

func (nopLogger) Infof(string, ...interface{})  {}
func (nopLogger) Warnf(string, ...interface{})  {}
func (nopLogger) Errorf(string, ...interface{}) {}
func (nopLogger) Debugf(string, ...interface{}) {}

func (p *Pipeline) log() hooks.Logger {
	if p.Log == nil {
		return nopLogger{}
	}
	return p.Log
}
