package maptracker

import maa "github.com/MaaXYZ/maa-framework-go/v4"

var (
	_ maa.CustomRecognitionRunner = &LocateRecognition{}
)

// Register registers the tracker recognition against t.
func Register(t *Tracker) {
	maa.AgentServerRegisterCustomRecognition("MacroTrackerLocate", &LocateRecognition{tracker: t})
}
