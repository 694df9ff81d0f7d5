// Package yafilters provides the built-in filter set: command parsing, FSM
// state matching, chat categories, regex search, message-part checks and
// structured callback payloads. Every filter is a yadispatcher.Filter and
// composes with And/Or/Not.
package yafilters

import (
	"context"
	"regexp"
	"strings"

	"github.com/YaCodeDev/GoVKTeamsBot/yadispatcher"
	"github.com/YaCodeDev/GoVKTeamsBot/yatypes"
)

// DefaultCommandPrefix is the prefix Command assumes.
const DefaultCommandPrefix = "/"

// commandDataKey is the bag key CommandObject is injected under.
const commandDataKey = "command"

// CommandObject is the parsed form of a command message, injected by the
// command filters for the handler to pick up via CommandFromData.
type CommandObject struct {
	// Prefix is the leading marker, "/" by default.
	Prefix string

	// Command is the matched name without the prefix, lowercased.
	Command string

	// Args is the remainder after the command name, trimmed. Empty when
	// the message carried nothing but the command.
	Args string

	// RawText is the full original message text.
	RawText string

	// Match holds the submatches when the command was matched by
	// CommandRegexp, nil otherwise.
	Match []string
}

// CommandFromData returns the CommandObject a command filter injected.
func CommandFromData(data *yadispatcher.Data) (CommandObject, bool) {
	value, ok := data.Get(commandDataKey)
	if !ok {
		return CommandObject{}, false
	}

	command, ok := value.(CommandObject)

	return command, ok
}

// parseCommand splits message text into (command, args) under the given
// prefix. Returns ok=false when the text does not start with the prefix.
func parseCommand(text, prefix string) (string, string, bool) {
	text = strings.TrimSpace(text)

	if !strings.HasPrefix(text, prefix) || len(text) == len(prefix) {
		return "", "", false
	}

	rest := text[len(prefix):]

	name, args, _ := strings.Cut(rest, " ")
	if name == "" {
		return "", "", false
	}

	return name, strings.TrimSpace(args), true
}

// Command matches a message whose text is one of the given commands with the
// default "/" prefix, case-insensitively, and injects the parsed
// CommandObject. With no names given, any command under the prefix matches.
//
// Example:
//
//	router.Message().Register(startHandler, yafilters.Command("start"))
func Command(commands ...string) yadispatcher.Filter {
	return CommandWithPrefix(DefaultCommandPrefix, commands...)
}

// CommandWithPrefix is Command with a custom prefix marker.
func CommandWithPrefix(prefix string, commands ...string) yadispatcher.Filter {
	lowered := make([]string, len(commands))
	for i, command := range commands {
		lowered[i] = strings.ToLower(command)
	}

	return func(_ context.Context, event yatypes.Event, data *yadispatcher.Data) (bool, error) {
		message, ok := event.(*yatypes.Message)
		if !ok || message.Text == "" {
			return false, nil
		}

		name, args, ok := parseCommand(message.Text, prefix)
		if !ok {
			return false, nil
		}

		name = strings.ToLower(name)

		// No registered names means any command matches.
		matched := len(lowered) == 0

		for _, command := range lowered {
			if name == command {
				matched = true

				break
			}
		}

		if !matched {
			return false, nil
		}

		data.Set(commandDataKey, CommandObject{
			Prefix:  prefix,
			Command: name,
			Args:    args,
			RawText: message.Text,
		})

		return true, nil
	}
}

// CommandRegexp matches a message whose command name (default prefix)
// matches the pattern, injecting the CommandObject with the submatches.
func CommandRegexp(pattern *regexp.Regexp) yadispatcher.Filter {
	return func(_ context.Context, event yatypes.Event, data *yadispatcher.Data) (bool, error) {
		message, ok := event.(*yatypes.Message)
		if !ok || message.Text == "" {
			return false, nil
		}

		name, args, ok := parseCommand(message.Text, DefaultCommandPrefix)
		if !ok {
			return false, nil
		}

		match := pattern.FindStringSubmatch(name)
		if match == nil {
			return false, nil
		}

		data.Set(commandDataKey, CommandObject{
			Prefix:  DefaultCommandPrefix,
			Command: strings.ToLower(name),
			Args:    args,
			RawText: message.Text,
			Match:   match,
		})

		return true, nil
	}
}
