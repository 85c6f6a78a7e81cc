package discordbot

import (
	"strings"
	"sync"

	"github.com/bwmarrin/discordgo"
	shellquote "github.com/govau/go-shellquote"
	"github.com/thoas/go-funk"
)

// Privilege indicates who may use a command
type Privilege int

const (
	// EveryonePrivilege commands can be used by anyone who can talk to the bot
	EveryonePrivilege Privilege = iota
	// OperatorPrivilege commands change the fleet and can only be used by operators:
	// listed users, or anyone in the operators channel
	OperatorPrivilege
)

// Command represents a bot command
type Command struct {
	Name             string
	Usage            string
	RequirePrivilege Privilege
	MinArgs          int
	Handler          CommandHandler
}

// CommandHandler is a function capable of handling a bot commmand.
// args does not include the command name
type CommandHandler func(s *discordgo.Session, m *discordgo.MessageCreate, args []string)

// NewCommand returns a new Command with the specified name and handler, usable by everyone
func NewCommand(name string, handler CommandHandler) Command {
	return Command{
		Name:             name,
		RequirePrivilege: EveryonePrivilege,
		Handler:          handler,
	}
}

// WithRequirePrivilege sets the minimum privilege to use a command and returns
// the modified copy
func (c Command) WithRequirePrivilege(privilege Privilege) Command {
	c.RequirePrivilege = privilege
	return c
}

// WithArgs sets the usage text and the minimum number of arguments of a command and returns
// the modified copy
func (c Command) WithArgs(minArgs int, usage string) Command {
	c.MinArgs = minArgs
	c.Usage = usage
	return c
}

// CommandLibrary handles a set of commands
type CommandLibrary struct {
	mu                sync.Mutex
	commands          map[string]Command
	prefix            string
	operatorChannelID string
	operatorUserIDs   []string
	handledCount      int
	actedUponCount    int
	send              func(s *discordgo.Session, channelID, content string)
}

// NewCommandLibrary returns a new CommandLibrary with the specified prefix
func NewCommandLibrary(prefix string) *CommandLibrary {
	return &CommandLibrary{
		commands: make(map[string]Command),
		prefix:   prefix,
		send: func(s *discordgo.Session, channelID, content string) {
			s.ChannelMessageSend(channelID, content)
		},
	}
}

// WithOperators sets the channel and the users allowed to use OperatorPrivilege commands
func (l *CommandLibrary) WithOperators(channelID string, userIDs ...string) *CommandLibrary {
	l.operatorChannelID = channelID
	l.operatorUserIDs = userIDs
	return l
}

// Register registers a command in the library, replacing an existing command
// with the same name, if one exists
func (l *CommandLibrary) Register(command Command) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commands[command.Name] = command
}

// Handle attempts to handle the provided message; if it fails, it returns false
func (l *CommandLibrary) Handle(s *discordgo.Session, m *discordgo.MessageCreate) bool {
	l.mu.Lock()
	l.handledCount++
	l.mu.Unlock()

	args, err := shellquote.Split(m.Content)
	if err != nil {
		return false
	}

	if len(args) == 0 || !strings.HasPrefix(args[0], l.prefix) {
		return false
	}

	l.mu.Lock()
	command, present := l.commands[strings.TrimPrefix(args[0], l.prefix)]
	l.mu.Unlock()
	if !present {
		return false
	}

	if command.RequirePrivilege == OperatorPrivilege && !l.isOperator(m) {
		l.send(s, m.ChannelID, "⛔ "+l.prefix+command.Name+" is restricted to operators")
		return true
	}

	if len(args)-1 < command.MinArgs {
		l.send(s, m.ChannelID, "🆖 usage: "+l.prefix+command.Name+" "+command.Usage)
		return true
	}

	if command.Handler != nil {
		command.Handler(s, m, args[1:])
	}
	l.mu.Lock()
	l.actedUponCount++
	l.mu.Unlock()
	return true
}

// MessagesHandled returns the number of messages handled by this CommandLibrary
func (l *CommandLibrary) MessagesHandled() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.handledCount
}

// MessagesActedUpon returns the number of messages acted upon by this CommandLibrary
func (l *CommandLibrary) MessagesActedUpon() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.actedUponCount
}

func (l *CommandLibrary) isOperator(m *discordgo.MessageCreate) bool {
	if l.operatorChannelID != "" && m.ChannelID == l.operatorChannelID {
		return true
	}
	return m.Author != nil && funk.ContainsString(l.operatorUserIDs, m.Author.ID)
}
