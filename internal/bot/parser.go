package bot

import "strings"

// CommandParser разбирает команды вида "/cmd@bot arg1 arg2".
type CommandParser struct {
	validPrefixes []string
	botUsername   string
}

// NewCommandParser создаёт парсер команд.
// botUsername нужен, чтобы отбрасывать суффикс "@bot" у команд.
func NewCommandParser(botUsername string) *CommandParser {
	return &CommandParser{
		validPrefixes: []string{"/"},
		botUsername:   strings.ToLower(strings.TrimPrefix(botUsername, "@")),
	}
}

// ParseCommand разбирает текст на команду и аргументы.
// Команда, адресованная другому боту, не считается командой.
func (p *CommandParser) ParseCommand(text string) (string, []string, bool) {
	text = strings.TrimSpace(text)

	hasPrefix := false
	for _, prefix := range p.validPrefixes {
		if strings.HasPrefix(text, prefix) {
			text = strings.TrimPrefix(text, prefix)
			hasPrefix = true
			break
		}
	}

	if !hasPrefix {
		return "", nil, false
	}

	parts := strings.Fields(text)
	if len(parts) == 0 {
		return "", nil, false
	}

	command := strings.ToLower(parts[0])
	if name, target, ok := strings.Cut(command, "@"); ok {
		if p.botUsername != "" && target != p.botUsername {
			return "", nil, false
		}
		command = name
	}
	if command == "" {
		return "", nil, false
	}

	var args []string
	if len(parts) > 1 {
		args = parts[1:]
	}

	return command, args, true
}
