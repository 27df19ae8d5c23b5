package wire

import "encoding/json"

// CommandType enumerates outbound client commands.
type CommandType string

const (
	CmdPing        CommandType = "ping"
	CmdResume      CommandType = "resume"
	CmdUserMessage CommandType = "user_message"
	CmdStop        CommandType = "stop"
)

// Approval is the decision verb sent back for a pending confirmation.
type Approval string

const (
	ApproveAccept Approval = "accept"
	ApproveEdit   Approval = "edit"
	ApproveDeny   Approval = "deny"
)

// Decision is a confirmation reply. Deny carries no payload; accept carries
// the original proposal unchanged; edit carries the edited fields.
type Decision struct {
	Approve Approval  `json:"approve"`
	Args    *MailArgs `json:"args,omitempty"`
}

// CommandBody is the outbound message field union: plain text for user
// messages, a Decision for confirmation replies.
type CommandBody struct {
	Text     string
	Decision *Decision
}

func (b CommandBody) MarshalJSON() ([]byte, error) {
	if b.Decision != nil {
		return json.Marshal(b.Decision)
	}
	return json.Marshal(b.Text)
}

func (b *CommandBody) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		b.Text = s
		b.Decision = nil
		return nil
	}
	var d Decision
	if err := json.Unmarshal(data, &d); err != nil {
		return err
	}
	b.Text = ""
	b.Decision = &d
	return nil
}

// Command is the outbound command envelope.
type Command struct {
	Type        CommandType  `json:"type"`
	Message     *CommandBody `json:"message,omitempty"`
	ChatID      string       `json:"chat_id,omitempty"`
	MsgID       string       `json:"msg_id,omitempty"`
	UploadFiles []FileRef    `json:"upload_files,omitempty"`
}

// Ping builds a keepalive command.
func Ping() Command {
	return Command{Type: CmdPing}
}

// Resume asks the server to replay in-flight state for a chat.
func Resume(chatID string) Command {
	return Command{Type: CmdResume, ChatID: chatID}
}

// Stop asks the server to halt generation for the active chat.
func Stop() Command {
	return Command{Type: CmdStop}
}

// UserMessage builds a user message command. chatID is empty for a chat that
// has not been created yet; the server answers with create_chat.
func UserMessage(text, chatID string, files []FileRef) Command {
	return Command{
		Type:        CmdUserMessage,
		Message:     &CommandBody{Text: text},
		ChatID:      chatID,
		UploadFiles: files,
	}
}

// ConfirmationReply builds a decision command tagged with the originating
// confirmation message id so the server can match it.
func ConfirmationReply(chatID, msgID string, d Decision) Command {
	return Command{
		Type:    CmdUserMessage,
		Message: &CommandBody{Decision: &d},
		ChatID:  chatID,
		MsgID:   msgID,
	}
}

// Encode serializes a command for the transport.
func (c Command) Encode() ([]byte, error) {
	return json.Marshal(c)
}
