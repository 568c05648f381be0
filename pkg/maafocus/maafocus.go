package maafocus

import (
	"errors"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/rs/zerolog/log"
)

const nodeName = "_LOOPMACRO_FOCUS_"

// ErrNilContext indicates the provided context is nil.
var ErrNilContext = errors.New("context is nil")

// NodeActionStarting shows content on the UI as a node action starting event.
func NodeActionStarting(ctx *maa.Context, content string) error {
	if ctx == nil {
		return ErrNilContext
	}

	pp := maa.NewPipeline()
	pp.AddNode(maa.NewNode(nodeName,
		maa.WithFocus(map[string]any{
			maa.EventNodeAction.Starting(): content,
		}),
		maa.WithPreDelay(0),
		maa.WithPostDelay(0),
	))
	_, err := ctx.RunTask(nodeName, pp)
	return err
}

// Reporter publishes status lines, skipping repeats of the last one.
type Reporter struct {
	ctx  *maa.Context
	last string
	send func(*maa.Context, string) error
}

func NewReporter(ctx *maa.Context) *Reporter {
	return &Reporter{ctx: ctx, send: NodeActionStarting}
}

// Report publishes content unless it equals the previous line. It reports
// whether something was sent.
func (r *Reporter) Report(content string) bool {
	if content == r.last {
		return false
	}
	r.last = content
	if err := r.send(r.ctx, content); err != nil {
		log.Debug().Err(err).Str("content", content).Msg("[Focus] Failed to publish status")
	}
	return true
}
