package tui

import "strings"

// Command represents a parsed prompt command.
type Command struct {
	Name string
	Args string
}

// Prompt commands understood by the app. Aliases map to the canonical name.
var commandAliases = map[string]string{
	"q":          "quit",
	"quit":       "quit",
	"n":          "new",
	"new":        "new",
	"a":          "attach",
	"attach":     "attach",
	"d":          "delete",
	"delete":     "delete",
	"detach":     "detach",
	"c":          "connectors",
	"connectors": "connectors",
	"stop":       "stop",
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	parts := strings.SplitN(input, " ", 2)
	name := strings.ToLower(parts[0])
	if canonical, ok := commandAliases[name]; ok {
		name = canonical
	}
	cmd := Command{Name: name}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}
