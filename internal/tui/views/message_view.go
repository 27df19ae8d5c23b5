package views

import (
	"fmt"
	"strings"

	"github.com/gdamore/tcell/v2"
	"github.com/mcostalima/trill/internal/store"
	"github.com/mcostalima/trill/internal/wire"
	"github.com/rivo/tview"
)

// MessageView displays the messages of the active chat. Scrolling to the top
// asks the history loader for an older page; the scroll offset is preserved
// across the prepend so the view does not jump.
type MessageView struct {
	*tview.TextView
	chatTitle   string
	lineCount   int
	pinToBottom bool
	onLoadOlder func()
}

// NewMessageView creates a new message view.
func NewMessageView() *MessageView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true).
		SetWordWrap(true)
	tv.SetBorder(true).SetTitle(" Messages ")

	mv := &MessageView{TextView: tv, pinToBottom: true}

	tv.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyUp, tcell.KeyPgUp:
			row, _ := tv.GetScrollOffset()
			if row <= 1 && mv.onLoadOlder != nil {
				mv.onLoadOlder()
			}
			mv.pinToBottom = false
		case tcell.KeyDown, tcell.KeyPgDn, tcell.KeyEnd:
			// Re-evaluate pinning once the user heads back down.
			row, _ := tv.GetScrollOffset()
			_, _, _, height := tv.GetInnerRect()
			if row+height >= mv.lineCount-1 {
				mv.pinToBottom = true
			}
		}
		return event
	})

	return mv
}

// SetOnLoadOlder sets the callback fired when the view scrolls to the top.
func (mv *MessageView) SetOnLoadOlder(fn func()) {
	mv.onLoadOlder = fn
}

// SetChatTitle updates the border title.
func (mv *MessageView) SetChatTitle(title string) {
	mv.chatTitle = title
	mv.SetTitle(fmt.Sprintf(" %s ", sanitizeForTerminal(title)))
}

// Update re-renders the message list. prepended is the number of messages
// just inserted at the head (0 for tail updates); the scroll offset shifts
// by the lines they occupy so the reader stays on the same message.
func (mv *MessageView) Update(msgs []store.Message, prepended int) {
	row, col := mv.GetScrollOffset()
	mv.Clear()

	var prependedLines int
	var total int
	for i, m := range msgs {
		text := renderMessage(m)
		lines := strings.Count(text, "\n")
		if i < prepended {
			prependedLines += lines
		}
		total += lines
		_, _ = fmt.Fprint(mv, text)
	}
	mv.lineCount = total

	switch {
	case mv.pinToBottom:
		mv.ScrollToEnd()
	case prepended > 0:
		mv.ScrollTo(row+prependedLines, col)
	default:
		mv.ScrollTo(row, col)
	}
}

func renderMessage(m store.Message) string {
	var sb strings.Builder

	label := "You"
	color := "aqua"
	switch m.Role {
	case wire.RoleAssistant:
		label, color = "Assistant", "white"
	case wire.RoleSystem:
		label, color = "System", "grey"
	case wire.RoleError:
		label, color = "Error", "orangered"
	case wire.RoleConfirmation:
		label, color = "Confirmation", "orange"
	}

	marker := ""
	if m.IsProcessing {
		marker = " [::d]…[-:-:-]"
	}
	sb.WriteString(fmt.Sprintf("[%s::b]%s[-:-:-]%s\n", color, label, marker))

	if c := m.Content.Confirmation; c != nil {
		sb.WriteString(renderConfirmation(c))
	} else if m.Content.Text != "" {
		sb.WriteString(sanitizeForTerminal(m.Content.Text))
		sb.WriteString("\n")
	}

	for _, f := range m.UploadFiles {
		sb.WriteString(fmt.Sprintf("[::d]  ⎙ %s[-:-:-]\n", sanitizeForTerminal(f.Filename)))
	}

	sb.WriteString("\n")
	return sb.String()
}

func renderConfirmation(c *wire.Confirmation) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("[::b]%s[-:-:-]\n", c.Name))
	if len(c.Args.To) > 0 {
		sb.WriteString("  To: " + strings.Join(c.Args.To, ", ") + "\n")
	}
	if len(c.Args.Cc) > 0 {
		sb.WriteString("  Cc: " + strings.Join(c.Args.Cc, ", ") + "\n")
	}
	if c.Args.Subject != "" {
		sb.WriteString("  Subject: " + sanitizeForTerminal(c.Args.Subject) + "\n")
	}
	if c.Args.Body != "" {
		sb.WriteString("  " + sanitizeForTerminal(c.Args.Body) + "\n")
	}
	switch {
	case c.Approve == nil:
		sb.WriteString("  [orange]awaiting decision — press c[-]\n")
	case *c.Approve:
		sb.WriteString("  [green]approved[-]\n")
	default:
		sb.WriteString("  [red]denied[-]\n")
	}
	return sb.String()
}
