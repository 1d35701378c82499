package tui

import "strings"

// Command represents a parsed command.
type Command struct {
	Name string
	Args string
}

// ParseCommand parses a command string (without the leading ':').
func ParseCommand(input string) Command {
	input = strings.TrimSpace(input)
	input = strings.TrimPrefix(input, ":")
	parts := strings.SplitN(input, " ", 2)
	cmd := Command{Name: strings.ToLower(parts[0])}
	if len(parts) > 1 {
		cmd.Args = strings.TrimSpace(parts[1])
	}
	return cmd
}

// Canonical command names; aliases resolve to these.
const (
	CmdPeer      = "peer"
	CmdPeers     = "peers"
	CmdResend    = "resend"
	CmdLogin     = "login"
	CmdLogout    = "logout"
	CmdReconnect = "reconnect"
	CmdDetails   = "details"
	CmdHelp      = "help"
	CmdQuit      = "quit"
)

var aliases = map[string]string{
	"p":    CmdPeer,
	"chat": CmdPeer,
	"open": CmdPeer,
	"r":    CmdResend,
	"h":    CmdHelp,
	"q":    CmdQuit,
	"q!":   CmdQuit,
	"exit": CmdQuit,
}

// Canonical returns the command with aliases resolved.
func (c Command) Canonical() string {
	if name, ok := aliases[c.Name]; ok {
		return name
	}
	return c.Name
}
