package views

import (
	"strings"

	"github.com/mcostalima/trill/internal/confirm"
	"github.com/mcostalima/trill/internal/wire"
	"github.com/rivo/tview"
)

// ConfirmView renders a pending confirmation proposal as an editable form
// with Send / Deny actions. The form disables itself after the first
// decision.
type ConfirmView struct {
	*tview.Form
	form     *confirm.Form
	onDecide func(msgID string, d wire.Decision)
}

// NewConfirmView creates the confirmation form view.
func NewConfirmView() *ConfirmView {
	f := tview.NewForm()
	f.SetBorder(true).SetTitle(" Confirm action ")
	return &ConfirmView{Form: f}
}

// SetOnDecide sets the callback invoked with the decision to send.
func (cv *ConfirmView) SetOnDecide(fn func(msgID string, d wire.Decision)) {
	cv.onDecide = fn
}

// Load populates the form from a confirmation message.
func (cv *ConfirmView) Load(msgID string, c *wire.Confirmation) {
	cv.form = confirm.NewForm(msgID, c)
	cv.rebuild()
}

func (cv *ConfirmView) rebuild() {
	f := cv.form
	cv.Clear(true)
	cv.SetTitle(" Confirm: " + f.MsgID + " ")

	cv.AddInputField("To", strings.Join(f.To, ", "), 0, nil, func(text string) {
		f.To = confirm.ParseRecipients(text)
	})
	cv.AddInputField("Cc", strings.Join(f.Cc, ", "), 0, nil, func(text string) {
		f.Cc = confirm.ParseRecipients(text)
	})
	cv.AddInputField("Bcc", strings.Join(f.Bcc, ", "), 0, nil, func(text string) {
		f.Bcc = confirm.ParseRecipients(text)
	})
	cv.AddInputField("Subject", f.Subject, 0, nil, func(text string) {
		f.Subject = text
	})
	cv.AddTextArea("Body", f.Body, 0, 6, 0, func(text string) {
		f.Body = text
	})

	cv.AddButton("Send", func() {
		d, err := f.Submit()
		if err != nil {
			return
		}
		cv.disable()
		if cv.onDecide != nil {
			cv.onDecide(f.MsgID, d)
		}
	})
	cv.AddButton("Deny", func() {
		d, err := f.Deny()
		if err != nil {
			return
		}
		cv.disable()
		if cv.onDecide != nil {
			cv.onDecide(f.MsgID, d)
		}
	})
}

// disable greys the form out once a decision is in flight.
func (cv *ConfirmView) disable() {
	cv.SetTitle(" Confirm: decision sent ")
	for i := 0; i < cv.GetFormItemCount(); i++ {
		if item, ok := cv.GetFormItem(i).(*tview.InputField); ok {
			item.SetDisabled(true)
		}
		if item, ok := cv.GetFormItem(i).(*tview.TextArea); ok {
			item.SetDisabled(true)
		}
	}
}

// Decided reports whether the loaded proposal already has a decision.
func (cv *ConfirmView) Decided() bool {
	return cv.form == nil || cv.form.Decided()
}
