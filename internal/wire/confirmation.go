package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Confirmation is a proposed side-effecting action (e.g. sending a mail)
// carried inside a confirmation message's content. Approve is nil while the
// decision is pending; the server patches it via end_confirmation.
type Confirmation struct {
	Name    string   `json:"name"`
	Args    MailArgs `json:"args"`
	Approve *bool    `json:"approve,omitempty"`
}

// MailArgs holds the editable fields of a mail-style confirmation proposal.
type MailArgs struct {
	To      StringList `json:"to,omitempty"`
	Cc      StringList `json:"cc,omitempty"`
	Bcc     StringList `json:"bcc,omitempty"`
	Subject string     `json:"subject,omitempty"`
	Body    string     `json:"body,omitempty"`
}

// StringList unmarshals from either a single string or an array of strings.
// The backend is inconsistent about which it sends for recipient fields.
type StringList []string

func (s *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*s = nil
		return nil
	}
	if data[0] == '"' {
		var one string
		if err := json.Unmarshal(data, &one); err != nil {
			return err
		}
		*s = StringList{one}
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	*s = many
	return nil
}

// Content is the message content union: plain text for most roles, a
// structured Confirmation for confirmation-role messages.
type Content struct {
	Text         string
	Confirmation *Confirmation
}

// TextContent wraps plain text as message content.
func TextContent(s string) Content {
	return Content{Text: s}
}

func (c *Content) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Content{}
		return nil
	}
	if data[0] == '"' {
		return json.Unmarshal(data, &c.Text)
	}
	if data[0] == '{' {
		c.Confirmation = &Confirmation{}
		return json.Unmarshal(data, c.Confirmation)
	}
	return fmt.Errorf("content: unsupported JSON value %q", string(data))
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.Confirmation != nil {
		return json.Marshal(c.Confirmation)
	}
	return json.Marshal(c.Text)
}
