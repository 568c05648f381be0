package keymap

import maa "github.com/MaaXYZ/maa-framework-go/v4"

var (
	_ maa.CustomActionRunner = &KeyDownAction{}
	_ maa.CustomActionRunner = &KeyUpAction{}
	_ maa.CustomActionRunner = &KeyPulseAction{}
)

// Register registers the key custom actions.
func Register() {
	maa.AgentServerRegisterCustomAction("km:KeyDown", &KeyDownAction{})
	maa.AgentServerRegisterCustomAction("km:KeyUp", &KeyUpAction{})
	maa.AgentServerRegisterCustomAction("km:KeyPulse", &KeyPulseAction{})
}
