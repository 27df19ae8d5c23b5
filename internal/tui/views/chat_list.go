package views

import (
	"time"

	"github.com/mcostalima/trill/internal/store"
	"github.com/rivo/tview"
)

// ChatList is the sidebar chat table (K9s-inspired).
type ChatList struct {
	*tview.Table
	chats       []store.Chat
	onLoadOlder func()
	selectedFn  func() (int, int)
}

// NewChatList creates a new chat list table.
func NewChatList() *ChatList {
	table := tview.NewTable().
		SetSelectable(true, false).
		SetBorders(false)
	table.SetBorder(true).SetTitle(" Chats ")

	cl := &ChatList{Table: table}
	cl.selectedFn = table.GetSelection

	// Moving the cursor onto the first data row asks for older chats.
	table.SetSelectionChangedFunc(func(row, col int) {
		if row == 1 && cl.onLoadOlder != nil {
			cl.onLoadOlder()
		}
	})
	return cl
}

// SetOnLoadOlder sets the callback fired when the cursor reaches the top.
func (cl *ChatList) SetOnLoadOlder(fn func()) {
	cl.onLoadOlder = fn
}

// Update refreshes the chat list with new data, newest chats at the bottom.
func (cl *ChatList) Update(chats []store.Chat) {
	row, col := cl.selectedFn()
	grown := len(chats) - len(cl.chats)
	cl.chats = chats
	cl.Clear()

	cl.SetCell(0, 0, tview.NewTableCell(" Title").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))
	cl.SetCell(0, 1, tview.NewTableCell(" Time").SetSelectable(false).SetTextColor(tview.Styles.SecondaryTextColor))

	for i, chat := range chats {
		title := chat.Title
		if title == "" {
			title = chat.ID
		}
		if chat.IsProcessing {
			title += " …"
		}
		cl.SetCell(i+1, 0, tview.NewTableCell(" "+sanitizeForTerminal(title)).SetMaxWidth(48).SetExpansion(1))
		cl.SetCell(i+1, 1, tview.NewTableCell(" "+formatTimestamp(chat.Timestamp)).SetMaxWidth(12))
	}

	// Keep the cursor on the same chat after a prepend grows the table.
	if grown > 0 && row > 1 {
		cl.Select(row+grown, col)
	}
}

// SelectedChat returns the id of the currently selected chat.
func (cl *ChatList) SelectedChat() string {
	row, _ := cl.selectedFn()
	idx := row - 1 // account for header
	if idx >= 0 && idx < len(cl.chats) {
		return cl.chats[idx].ID
	}
	return ""
}

// formatTimestamp renders an epoch-seconds timestamp compactly: clock time
// for today, date otherwise.
func formatTimestamp(ts float64) string {
	if ts == 0 {
		return ""
	}
	t := time.Unix(int64(ts), 0)
	now := time.Now()
	if t.Year() == now.Year() && t.YearDay() == now.YearDay() {
		return t.Format("15:04")
	}
	return t.Format("01/02")
}
