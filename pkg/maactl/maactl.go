// Package maactl adapts a maa controller to the macro collaborators, so the
// agent can record position and replay keys through MaaFramework.
package maactl

import (
	"errors"
	"fmt"
	"image"
	"sync"

	"github.com/MaaXYZ/maa-framework-go/v4"
	"github.com/rs/zerolog/log"

	"github.com/MaaXYZ/MaaEnd/loopmacro/keymap"
	"github.com/MaaXYZ/MaaEnd/loopmacro/pkg/geom"
)

var (
	ErrUnbound       = errors.New("no maa controller bound")
	ErrScreencap     = errors.New("screencap failed")
	ErrRegionOutside = errors.New("region outside screenshot")
	errNotCroppable  = errors.New("screenshot cannot be cropped")
)

// Binding holds the controller of the task currently running. Actions bind
// it from their context before playback starts.
type Binding struct {
	mu   sync.RWMutex
	ctrl *maa.Controller
}

func (b *Binding) Bind(ctrl *maa.Controller) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ctrl = ctrl
}

// BindContext binds the controller of ctx's tasker.
func (b *Binding) BindContext(ctx *maa.Context) {
	if ctx == nil {
		return
	}
	t := ctx.GetTasker()
	if t == nil {
		return
	}
	if ctrl := t.GetController(); ctrl != nil {
		b.Bind(ctrl)
	}
}

func (b *Binding) controller() (*maa.Controller, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.ctrl == nil {
		return nil, ErrUnbound
	}
	return b.ctrl, nil
}

// Press implements keymap.Injector.
func (b *Binding) Press(k keymap.Key) error {
	return b.post(k, true)
}

func (b *Binding) Release(k keymap.Key) error {
	return b.post(k, false)
}

func (b *Binding) post(k keymap.Key, down bool) error {
	ctrl, err := b.controller()
	if err != nil {
		return err
	}
	code, err := keymap.GetKeyCode(k)
	if err != nil {
		return err
	}
	var ok bool
	if down {
		ok = ctrl.PostKeyDown(code).Wait().Done()
	} else {
		ok = ctrl.PostKeyUp(code).Wait().Done()
	}
	if !ok {
		return fmt.Errorf("%w: %s (down=%v)", keymap.ErrInjection, k, down)
	}
	return nil
}

type subImager interface {
	SubImage(r image.Rectangle) image.Image
}

// Capture implements maptracker.FrameSource on a fresh screencap.
func (b *Binding) Capture(r geom.Rect) (image.Image, error) {
	ctrl, err := b.controller()
	if err != nil {
		return nil, err
	}
	if !ctrl.PostScreencap().Wait().Done() {
		return nil, ErrScreencap
	}
	img, err := ctrl.CacheImage()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrScreencap, err)
	}
	if img == nil {
		return nil, ErrScreencap
	}
	return crop(img, r)
}

func crop(img image.Image, r geom.Rect) (image.Image, error) {
	b := img.Bounds()
	want := image.Rect(r.X(), r.Y(), r.X()+r.Width(), r.Y()+r.Height()).Add(b.Min)
	if !want.In(b) {
		return nil, fmt.Errorf("%w: %v in %v", ErrRegionOutside, r, b)
	}
	si, ok := img.(subImager)
	if !ok {
		return nil, errNotCroppable
	}
	return si.SubImage(want), nil
}

// Activate is a no-op, the controller owns its window.
func (b *Binding) Activate() error {
	if _, err := b.controller(); err != nil {
		log.Warn().Err(err).Msg("[MaaCtl] Activate without controller")
		return err
	}
	return nil
}

// Focused is true while a controller is bound. maa controllers post input to
// the window regardless of focus.
func (b *Binding) Focused() bool {
	_, err := b.controller()
	return err == nil
}
