package views

import (
	"fmt"
	"strings"

	"github.com/rivo/tview"
	qrcode "github.com/skip2/go-qrcode"
)

// ConnectorsView lists the backend's connectors and renders authorization
// URLs as scannable QR codes.
type ConnectorsView struct {
	*tview.TextView
}

// NewConnectorsView creates the connectors page.
func NewConnectorsView() *ConnectorsView {
	tv := tview.NewTextView().
		SetDynamicColors(true).
		SetScrollable(true)
	tv.SetBorder(true).SetTitle(" Connectors ")
	return &ConnectorsView{TextView: tv}
}

// ShowList renders the available connectors.
func (cv *ConnectorsView) ShowList(names []string) {
	cv.Clear()
	if len(names) == 0 {
		_, _ = fmt.Fprint(cv, "\n  No connectors available.")
		return
	}
	_, _ = fmt.Fprint(cv, "\n  Available connectors (press 1-9 to authorize):\n\n")
	for i, name := range names {
		_, _ = fmt.Fprintf(cv, "  [fuchsia::b]%d[-:-:-] %s\n", i+1, name)
	}
}

// ShowAuthURL renders an authorization URL plus its QR code.
func (cv *ConnectorsView) ShowAuthURL(name, url string) {
	cv.Clear()
	_, _ = fmt.Fprintf(cv, "\n  Authorize [::b]%s[-:-:-] by opening:\n\n  %s\n\n%s\n  [::d]Press Escape to go back.[-:-:-]", name, url, renderQR(url))
}

// ShowError renders a failure message.
func (cv *ConnectorsView) ShowError(err error) {
	cv.Clear()
	_, _ = fmt.Fprintf(cv, "\n  [red]%s[-]", err.Error())
}

// renderQR converts a string to a compact ASCII QR code using Unicode
// half-block characters.
func renderQR(content string) string {
	qr, err := qrcode.New(content, qrcode.Low)
	if err != nil {
		return "  (QR generation failed: " + err.Error() + ")"
	}

	bitmap := qr.Bitmap()
	rows := len(bitmap)
	cols := 0
	if rows > 0 {
		cols = len(bitmap[0])
	}

	var sb strings.Builder
	for y := 0; y < rows; y += 2 {
		sb.WriteString("  ")
		for x := 0; x < cols; x++ {
			top := bitmap[y][x]
			bot := false
			if y+1 < rows {
				bot = bitmap[y+1][x]
			}
			switch {
			case top && bot:
				sb.WriteRune('█')
			case top && !bot:
				sb.WriteRune('▀')
			case !top && bot:
				sb.WriteRune('▄')
			default:
				sb.WriteRune(' ')
			}
		}
		sb.WriteRune('\n')
	}
	return sb.String()
}
