package main

import (
	"strconv"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"github.com/itohio/gotacho/pkg/tacho"
	"github.com/itohio/gotacho/pkg/velocity"
)

// statusBar shows the direction and position count of the latest report.
type statusBar struct {
	container *fyne.Container
	icon      *widget.Icon
	direction *widget.Label
	count     *widget.Label

	mu      sync.Mutex
	lastDir velocity.Direction
	lastCnt int32
	seen    bool
}

func newStatusBar() *statusBar {
	s := &statusBar{
		icon:      widget.NewIcon(theme.MediaStopIcon()),
		direction: widget.NewLabel(velocity.Stopped.String()),
		count:     widget.NewLabel("Count: -"),
	}
	s.container = container.NewHBox(s.icon, s.direction, s.count)
	return s
}

// update refreshes the status from an incoming report.
// Only touches the UI when direction or count actually changes.
func (s *statusBar) update(r tacho.Report) {
	s.mu.Lock()
	if s.seen && s.lastDir == r.Direction && s.lastCnt == r.Count {
		s.mu.Unlock()
		return
	}
	s.seen = true
	s.lastDir = r.Direction
	s.lastCnt = r.Count
	s.mu.Unlock()

	UpdateWidgetOnMainThread(func() {
		s.show(r.Direction, "Count: "+strconv.FormatInt(int64(r.Count), 10))
	})
}

// reset shows the disconnected state. Must be called on the main thread.
func (s *statusBar) reset() {
	s.mu.Lock()
	s.seen = false
	s.mu.Unlock()
	s.show(velocity.Stopped, "Count: -")
}

func (s *statusBar) show(dir velocity.Direction, count string) {
	s.icon.SetResource(directionIcon(dir))
	s.direction.SetText(dir.String())
	s.count.SetText(count)
}

func directionIcon(dir velocity.Direction) fyne.Resource {
	switch dir {
	case velocity.CW:
		return theme.MediaFastForwardIcon()
	case velocity.CCW:
		return theme.MediaFastRewindIcon()
	default:
		return theme.MediaStopIcon()
	}
}
