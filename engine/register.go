package engine

import "github.com/MaaXYZ/maa-framework-go/v4"

var (
	_ maa.CustomActionRunner = &PlayAction{}
	_ maa.CustomActionRunner = &StopAction{}
)

// Register registers the playback actions against e.
func Register(e *Engine) {
	maa.AgentServerRegisterCustomAction("LoopMacroPlay", &PlayAction{engine: e})
	maa.AgentServerRegisterCustomAction("LoopMacroStop", &StopAction{engine: e})
}
