package main

import (
	"github.com/rs/zerolog/log"

	"github.com/MaaXYZ/MaaEnd/loopmacro/engine"
	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/maptracker"
)

func registerAll(e *engine.Engine) {
	// 按键动作
	keymap.Register()
	maptracker.Register(e.Tracker())
	engine.Register(e)

	log.Info().
		Msg("All custom components registered successfully")
}
