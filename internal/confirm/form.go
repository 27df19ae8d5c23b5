// Package confirm implements the decision flow for confirmation proposals:
// a mail-style form the user can accept as-is, edit before sending, or deny.
package confirm

import (
	"errors"
	"sort"
	"strings"
	"sync"

	"github.com/mcostalima/trill/internal/wire"
)

// ErrDecided is returned when a second decision is attempted on a proposal
// that already has one in flight.
var ErrDecided = errors.New("confirm: decision already submitted")

// Form holds the editable copy of one confirmation proposal. A form accepts
// exactly one decision; after Submit or Deny it locks, optimistically, so a
// slow server round-trip cannot produce duplicate replies.
type Form struct {
	MsgID    string
	proposal wire.MailArgs

	mu      sync.Mutex
	decided bool

	To      []string
	Cc      []string
	Bcc     []string
	Subject string
	Body    string
}

// NewForm seeds a form from a confirmation proposal.
func NewForm(msgID string, c *wire.Confirmation) *Form {
	return &Form{
		MsgID:    msgID,
		proposal: c.Args,
		To:       append([]string(nil), c.Args.To...),
		Cc:       append([]string(nil), c.Args.Cc...),
		Bcc:      append([]string(nil), c.Args.Bcc...),
		Subject:  c.Args.Subject,
		Body:     c.Args.Body,
	}
}

// Decided reports whether a decision has already been submitted.
func (f *Form) Decided() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.decided
}

// Reset unlocks the form so a new decision can be made. Used when the server
// rejects the reply and the proposal is still pending.
func (f *Form) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.decided = false
}

// Submit locks the form and returns the decision to send: "edit" with the
// edited fields when anything differs from the proposal, "accept" otherwise.
func (f *Form) Submit() (wire.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decided {
		return wire.Decision{}, ErrDecided
	}
	f.decided = true

	args := wire.MailArgs{
		To:      wire.StringList(f.To),
		Cc:      wire.StringList(f.Cc),
		Bcc:     wire.StringList(f.Bcc),
		Subject: f.Subject,
		Body:    f.Body,
	}
	if f.edited(args) {
		return wire.Decision{Approve: wire.ApproveEdit, Args: &args}, nil
	}
	return wire.Decision{Approve: wire.ApproveAccept, Args: &f.proposal}, nil
}

// Deny locks the form and returns a deny decision. Deny carries no payload.
func (f *Form) Deny() (wire.Decision, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.decided {
		return wire.Decision{}, ErrDecided
	}
	f.decided = true
	return wire.Decision{Approve: wire.ApproveDeny}, nil
}

// edited compares the form contents against the original proposal.
// Recipient lists compare order-insensitively; reordering addresses is not an
// edit.
func (f *Form) edited(args wire.MailArgs) bool {
	if args.Subject != f.proposal.Subject || args.Body != f.proposal.Body {
		return true
	}
	return !sameRecipients(args.To, f.proposal.To) ||
		!sameRecipients(args.Cc, f.proposal.Cc) ||
		!sameRecipients(args.Bcc, f.proposal.Bcc)
}

func sameRecipients(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := make([]string, len(a))
	bs := make([]string, len(b))
	for i, v := range a {
		as[i] = strings.TrimSpace(v)
	}
	for i, v := range b {
		bs[i] = strings.TrimSpace(v)
	}
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// ParseRecipients splits a comma-separated recipient field into a list,
// dropping empty entries.
func ParseRecipients(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
