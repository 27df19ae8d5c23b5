package views

import (
	"fmt"
	"strings"
	"time"

	"github.com/mcostalima/trill/internal/bus"
	"github.com/mcostalima/trill/internal/status"
	"github.com/rivo/tview"
)

// StatusBar displays the profile, connection state, session flags, and
// transient flash messages.
type StatusBar struct {
	*tview.TextView
	profile string
	state   status.State
	flags   bus.Flags
	flash   string
}

// NewStatusBar creates a new status bar.
func NewStatusBar() *StatusBar {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	tv.SetBackgroundColor(tview.Styles.MoreContrastBackgroundColor)

	return &StatusBar{TextView: tv, state: status.Disconnected}
}

// SetProfile updates the profile name display.
func (sb *StatusBar) SetProfile(name string) {
	sb.profile = name
	sb.render()
}

// SetState updates the connection state display.
func (sb *StatusBar) SetState(s status.State) {
	sb.state = s
	sb.render()
}

// SetFlags updates the session flag indicators.
func (sb *StatusBar) SetFlags(f bus.Flags) {
	sb.flags = f
	sb.render()
}

// SetFlash sets a temporary message.
func (sb *StatusBar) SetFlash(msg string) {
	sb.flash = msg
	sb.render()
}

func (sb *StatusBar) render() {
	sb.Clear()

	stateColor := "red"
	switch sb.state {
	case status.Open:
		stateColor = "green"
	case status.Connecting, status.Reconnecting:
		stateColor = "yellow"
	}

	var indicators []string
	if sb.flags.Streaming {
		indicators = append(indicators, "[aqua]streaming[-]")
	}
	if sb.flags.Loading {
		indicators = append(indicators, "[::d]loading[-:-:-]")
	}
	if sb.flags.AwaitingConfirmation {
		indicators = append(indicators, "[orange]confirm?[-]")
	}

	line := fmt.Sprintf(" [::b]%s[-:-:-] | [%s]%s[-]", sb.profile, stateColor, sb.state)
	if len(indicators) > 0 {
		line += " | " + strings.Join(indicators, " ")
	}
	line += " | " + time.Now().Format("15:04")
	if sb.flash != "" {
		line += fmt.Sprintf(" | [yellow]%s[-]", sb.flash)
	}

	_, _ = fmt.Fprint(sb, line)
}
