package confirm

import (
	"errors"
	"testing"

	"github.com/mcostalima/trill/internal/wire"
)

func proposal() *wire.Confirmation {
	return &wire.Confirmation{
		Name: "confirm-email-send",
		Args: wire.MailArgs{
			To:      wire.StringList{"a@example.com", "b@example.com"},
			Cc:      wire.StringList{"c@example.com"},
			Subject: "Quarterly report",
			Body:    "Please find the report attached.",
		},
	}
}

func TestSubmitUnchangedIsAccept(t *testing.T) {
	f := NewForm("m1", proposal())

	d, err := f.Submit()
	if err != nil {
		t.Fatal(err)
	}
	if d.Approve != wire.ApproveAccept {
		t.Errorf("approve = %q, want accept", d.Approve)
	}
	if d.Args == nil || d.Args.Subject != "Quarterly report" {
		t.Errorf("accept must carry the original proposal, got %+v", d.Args)
	}
}

func TestSubmitReorderedRecipientsIsStillAccept(t *testing.T) {
	f := NewForm("m1", proposal())
	f.To = []string{"b@example.com", "a@example.com"}

	d, err := f.Submit()
	if err != nil {
		t.Fatal(err)
	}
	if d.Approve != wire.ApproveAccept {
		t.Errorf("approve = %q, want accept (reorder is not an edit)", d.Approve)
	}
}

func TestSubmitEditedBodyIsEdit(t *testing.T) {
	f := NewForm("m1", proposal())
	f.Body = "Updated body."

	d, err := f.Submit()
	if err != nil {
		t.Fatal(err)
	}
	if d.Approve != wire.ApproveEdit {
		t.Errorf("approve = %q, want edit", d.Approve)
	}
	if d.Args == nil || d.Args.Body != "Updated body." {
		t.Errorf("edit must carry the edited fields, got %+v", d.Args)
	}
}

func TestSubmitChangedRecipientsIsEdit(t *testing.T) {
	f := NewForm("m1", proposal())
	f.To = []string{"a@example.com"}

	d, err := f.Submit()
	if err != nil {
		t.Fatal(err)
	}
	if d.Approve != wire.ApproveEdit {
		t.Errorf("approve = %q, want edit", d.Approve)
	}
	if len(d.Args.To) != 1 {
		t.Errorf("edited recipients = %+v", d.Args.To)
	}
}

func TestDenyCarriesNoArgs(t *testing.T) {
	f := NewForm("m1", proposal())

	d, err := f.Deny()
	if err != nil {
		t.Fatal(err)
	}
	if d.Approve != wire.ApproveDeny {
		t.Errorf("approve = %q, want deny", d.Approve)
	}
	if d.Args != nil {
		t.Errorf("deny must carry no payload, got %+v", d.Args)
	}
}

func TestFormAcceptsExactlyOneDecision(t *testing.T) {
	f := NewForm("m1", proposal())

	if _, err := f.Submit(); err != nil {
		t.Fatal(err)
	}
	if _, err := f.Submit(); !errors.Is(err, ErrDecided) {
		t.Errorf("second submit err = %v, want ErrDecided", err)
	}
	if _, err := f.Deny(); !errors.Is(err, ErrDecided) {
		t.Errorf("deny after submit err = %v, want ErrDecided", err)
	}
	if !f.Decided() {
		t.Error("form should report decided")
	}
}

func TestResetUnlocksForm(t *testing.T) {
	f := NewForm("m1", proposal())
	if _, err := f.Deny(); err != nil {
		t.Fatal(err)
	}
	f.Reset()
	if _, err := f.Submit(); err != nil {
		t.Errorf("submit after reset err = %v", err)
	}
}

func TestParseRecipients(t *testing.T) {
	got := ParseRecipients(" a@x.com, ,b@x.com,")
	if len(got) != 2 || got[0] != "a@x.com" || got[1] != "b@x.com" {
		t.Errorf("unexpected result: %+v", got)
	}
	if ParseRecipients("") != nil {
		t.Error("empty input should yield nil")
	}
}
