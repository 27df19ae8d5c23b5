// trillctl is the headless companion to trill: one-shot commands against the
// backend, useful for scripting and debugging the deployment.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mcostalima/trill/internal/api"
	"github.com/mcostalima/trill/internal/config"
	"github.com/mcostalima/trill/internal/profile"
	"github.com/mcostalima/trill/internal/stream"
	"github.com/mcostalima/trill/internal/upload"
	"github.com/mcostalima/trill/internal/wire"
	"go.uber.org/zap"
)

func main() {
	jsonFlag := flag.Bool("json", false, "output in JSON format")
	flag.Parse()

	args := flag.Args()
	if len(args) == 0 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.LoadOrDefault(profile.ConfigPath())
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
	cfg.ApplyEnv()

	client := api.NewClient(cfg.APIBaseURL, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch args[0] {
	case "chats":
		cmdChats(ctx, client, cfg, *jsonFlag)
	case "messages":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: trillctl messages <chat-id>")
			os.Exit(1)
		}
		cmdMessages(ctx, client, cfg, args[1], *jsonFlag)
	case "send":
		if len(args) < 3 {
			fmt.Fprintln(os.Stderr, "usage: trillctl send <chat-id|new> <text>")
			os.Exit(1)
		}
		cmdSend(cfg, args[1], args[2], *jsonFlag)
	case "upload":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: trillctl upload <path>")
			os.Exit(1)
		}
		cmdUpload(ctx, client, args[1], *jsonFlag)
	case "connectors":
		cmdConnectors(ctx, client, *jsonFlag)
	case "delete":
		if len(args) < 2 {
			fmt.Fprintln(os.Stderr, "usage: trillctl delete <chat-id>")
			os.Exit(1)
		}
		cmdDelete(ctx, client, args[1])
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n", args[0])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: trillctl [--json] <command>")
	fmt.Fprintln(os.Stderr, "")
	fmt.Fprintln(os.Stderr, "commands:")
	fmt.Fprintln(os.Stderr, "  chats                  List chats")
	fmt.Fprintln(os.Stderr, "  messages <chat-id>     Show a chat's newest history page")
	fmt.Fprintln(os.Stderr, "  send <chat-id> <text>  Send a message and stream the reply ('new' creates a chat)")
	fmt.Fprintln(os.Stderr, "  upload <path>          Upload a file, print its file id")
	fmt.Fprintln(os.Stderr, "  connectors             List connectors")
	fmt.Fprintln(os.Stderr, "  delete <chat-id>       Delete a chat")
}

func fail(err error) {
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(1)
}

func outputJSON(v any) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func cmdChats(ctx context.Context, client *api.Client, cfg *config.Config, jsonOut bool) {
	page, err := client.Chats(ctx, "", cfg.ChatsPageLimit)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(page.Chats)
		return
	}
	for _, c := range page.Chats {
		title := c.Title
		if title == "" {
			title = "(untitled)"
		}
		fmt.Printf("%-36s  %s\n", c.ID, title)
	}
}

func cmdMessages(ctx context.Context, client *api.Client, cfg *config.Config, chatID string, jsonOut bool) {
	page, err := client.Messages(ctx, chatID, "", cfg.MessagesPageLimit)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(page.Messages)
		return
	}
	for _, m := range page.Messages {
		body := m.Content.Text
		if m.Content.Confirmation != nil {
			body = "[confirmation] " + m.Content.Confirmation.Name
		}
		fmt.Printf("%s: %s\n", m.Role, body)
	}
	if page.NextCursor != "" {
		fmt.Printf("(older messages available, cursor %s)\n", page.NextCursor)
	}
}

// cmdSend dials the stream directly, sends one message and prints reply
// events until the turn completes.
func cmdSend(cfg *config.Config, chatID, text string, jsonOut bool) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	conn, err := stream.WebSocketDialer{}.Dial(ctx, cfg.StreamURL())
	if err != nil {
		fail(err)
	}
	defer func() { _ = conn.Close() }()

	if chatID == "new" {
		chatID = ""
	}
	cmd := wire.UserMessage(text, chatID, nil)
	data, err := cmd.Encode()
	if err != nil {
		fail(err)
	}
	if err := conn.Write(ctx, data); err != nil {
		fail(err)
	}

	for {
		frame, err := conn.Read(ctx)
		if err != nil {
			fail(err)
		}
		evt, err := wire.DecodeEvent(frame)
		if err != nil {
			continue
		}
		if jsonOut {
			outputJSON(evt)
		} else {
			printEvent(evt)
		}
		switch evt.Type {
		case wire.EventComplete, wire.EventError:
			return
		}
	}
}

func printEvent(evt *wire.Event) {
	switch evt.Type {
	case wire.EventCreateChat:
		chatID := evt.ChatID
		if chatID == "" {
			chatID = evt.ID
		}
		fmt.Printf("chat created: %s\n", chatID)
	case wire.EventMessaging, wire.EventThinking:
		fmt.Printf("\r%s", evt.Content.Text)
	case wire.EventEndMessaging, wire.EventEndThinking:
		fmt.Println()
	case wire.EventError:
		fmt.Fprintf(os.Stderr, "error: %s\n", evt.Content.Text)
	case wire.EventConfirmation:
		fmt.Println("confirmation requested; use the TUI to decide")
	}
}

func cmdUpload(ctx context.Context, client *api.Client, path string, jsonOut bool) {
	data, err := os.ReadFile(path)
	if err != nil {
		fail(err)
	}

	mgr := upload.NewManager(client, zap.NewNop())
	fileID, err := mgr.Upload(ctx, filepath.Base(path), data, func(p upload.Progress) {
		if !jsonOut {
			fmt.Fprintf(os.Stderr, "\r%3.0f%% %s", p.Fraction*100, p.Status)
		}
	})
	if !jsonOut {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(map[string]string{"file_id": fileID})
		return
	}
	fmt.Println(fileID)
}

func cmdConnectors(ctx context.Context, client *api.Client, jsonOut bool) {
	names, err := client.Connectors(ctx)
	if err != nil {
		fail(err)
	}
	if jsonOut {
		outputJSON(names)
		return
	}
	for _, n := range names {
		fmt.Println(n)
	}
}

func cmdDelete(ctx context.Context, client *api.Client, chatID string) {
	if err := client.DeleteChat(ctx, chatID); err != nil {
		fail(err)
	}
	fmt.Println("deleted")
}
