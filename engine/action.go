package engine

import (
	"context"
	"time"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"

	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/maafocus"
	"github.com/MaaXYZ/MaaEnd/loopmacro/player"
)

const stopPoll = 200 * time.Millisecond

// PlayParam is the custom action param of LoopMacroPlay.
type PlayParam struct {
	Path   string `json:"path"`
	Loops  int    `json:"loops"`
	Verify *bool  `json:"verify,omitempty"`
	Return *bool  `json:"return,omitempty"`
}

func parsePlayParam(raw string) (PlayParam, error) {
	p := PlayParam{Loops: 1}
	if raw == "" {
		return p, nil
	}
	if err := sonic.UnmarshalString(raw, &p); err != nil {
		return p, err
	}
	if p.Loops == 0 {
		p.Loops = 1
	}
	return p, nil
}

// withOverrides applies the optional verify/return switches to o.
func (p PlayParam) withOverrides(o player.Options) player.Options {
	if p.Verify != nil {
		o.VerifyPosition = *p.Verify
	}
	if p.Return != nil {
		o.ReturnToStart = *p.Return
	}
	return o
}

// PlayAction replays a macro and blocks until playback ends or the task is
// stopped.
type PlayAction struct {
	engine *Engine
}

func (a *PlayAction) Run(ctx *maa.Context, arg *maa.CustomActionArg) bool {
	param, err := parsePlayParam(arg.CustomActionParam)
	if err != nil {
		log.Error().Err(err).Str("param", arg.CustomActionParam).Msg("[LoopMacroPlay] Failed to parse param")
		return false
	}

	if a.engine.onContext != nil {
		a.engine.onContext(ctx)
	}

	if param.Path != "" {
		if err := a.engine.Load(param.Path); err != nil {
			log.Error().Err(err).Str("path", param.Path).Msg("[LoopMacroPlay] Failed to load macro")
			return false
		}
	}

	p := a.engine.Player()
	saved := p.Options()
	p.SetOptions(param.withOverrides(saved))
	defer p.SetOptions(saved)

	if err := a.engine.StartPlayback(context.Background(), param.Loops); err != nil {
		log.Error().Err(err).Msg("[LoopMacroPlay] Failed to start playback")
		return false
	}

	focus := maafocus.NewReporter(ctx)
	st := a.wait(ctx, focus)

	log.Info().
		Str("state", st.State.String()).
		Int("loops", st.TotalLoops).
		Int("corrections", st.Corrections).
		Msg("[LoopMacroPlay] Playback finished")
	return st.State == player.StateCompleted || stopping(ctx)
}

func (a *PlayAction) wait(ctx *maa.Context, focus *maafocus.Reporter) player.Status {
	for {
		focus.Report(a.engine.Status().String())
		if stopping(ctx) {
			log.Info().Msg("[LoopMacroPlay] Task stopping, halting playback")
			a.engine.StopPlayback()
			return a.engine.Player().Status()
		}

		waitCtx, cancel := context.WithTimeout(context.Background(), stopPoll)
		err := a.engine.WaitPlayback(waitCtx)
		cancel()
		if err == nil {
			st := a.engine.Player().Status()
			focus.Report(a.engine.Status().String())
			return st
		}
	}
}

// StopAction stops recording or playback started by another node.
type StopAction struct {
	engine *Engine
}

func (a *StopAction) Run(_ *maa.Context, _ *maa.CustomActionArg) bool {
	a.engine.Stop()
	log.Info().Msg("[LoopMacroStop] Stopped")
	return true
}

func stopping(ctx *maa.Context) bool {
	if ctx == nil {
		return true
	}
	t := ctx.GetTasker()
	if t == nil {
		return true
	}
	return t.Stopping() || !t.Running()
}
