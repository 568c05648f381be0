package keymap

import (
	"time"

	maa "github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/bytedance/sonic"
	"github.com/rs/zerolog/log"
)

type keyParam struct {
	Key      string `json:"key"`
	Duration int32  `json:"duration,omitempty"`
}

func parseKeyParam(raw string) (int32, keyParam, bool) {
	var params keyParam
	if err := sonic.UnmarshalString(raw, &params); err != nil {
		log.Error().Err(err).Msg("Failed to parse CustomActionParam")
		return 0, params, false
	}
	code, err := GetKeyCode(Normalize(params.Key))
	if err != nil {
		log.Error().Err(err).Msg("Cannot resolve key")
		return 0, params, false
	}
	return code, params, true
}

// KeyDownAction asserts a logical key through the maa controller.
type KeyDownAction struct{}

func (a *KeyDownAction) Run(ctx *maa.Context, arg *maa.CustomActionArg) bool {
	code, _, ok := parseKeyParam(arg.CustomActionParam)
	if !ok {
		return false
	}
	return ctx.GetTasker().GetController().PostKeyDown(code).Wait().Done()
}

// KeyUpAction releases a logical key through the maa controller.
type KeyUpAction struct{}

func (a *KeyUpAction) Run(ctx *maa.Context, arg *maa.CustomActionArg) bool {
	code, _, ok := parseKeyParam(arg.CustomActionParam)
	if !ok {
		return false
	}
	return ctx.GetTasker().GetController().PostKeyUp(code).Wait().Done()
}

// KeyPulseAction holds a logical key for `duration` milliseconds.
type KeyPulseAction struct{}

func (a *KeyPulseAction) Run(ctx *maa.Context, arg *maa.CustomActionArg) bool {
	code, params, ok := parseKeyParam(arg.CustomActionParam)
	if !ok {
		return false
	}

	ctrl := ctx.GetTasker().GetController()
	if !ctrl.PostKeyDown(code).Wait().Done() {
		return false
	}
	time.Sleep(time.Duration(params.Duration) * time.Millisecond)
	return ctrl.PostKeyUp(code).Wait().Done()
}
