package views

import (
	"fmt"

	"github.com/mcostalima/trill/internal/upload"
	"github.com/rivo/tview"
)

// UploadList shows the composer's pending attachments with progress.
type UploadList struct {
	*tview.TextView
}

// NewUploadList creates the attachment strip shown above the composer.
func NewUploadList() *UploadList {
	tv := tview.NewTextView().
		SetDynamicColors(true)
	return &UploadList{TextView: tv}
}

// Update re-renders the attachment strip. Returns whether anything is shown
// so the layout can collapse the strip when empty.
func (ul *UploadList) Update(items []upload.Attachment) bool {
	ul.Clear()
	if len(items) == 0 {
		return false
	}
	for _, item := range items {
		switch item.State {
		case upload.StateUploading:
			_, _ = fmt.Fprintf(ul, " [yellow]⇡ %s %d%%[-]", sanitizeForTerminal(item.Filename), int(item.Progress*100))
		case upload.StateUploaded:
			_, _ = fmt.Fprintf(ul, " [green]⎙ %s[-]", sanitizeForTerminal(item.Filename))
		case upload.StateDeleting:
			_, _ = fmt.Fprintf(ul, " [::d]… %s[-:-:-]", sanitizeForTerminal(item.Filename))
		}
	}
	return true
}
