package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestParseCommand(t *testing.T) {
	p := NewCommandParser("@Solium_Bot")

	tests := []struct {
		text  string
		cmd   string
		args  []string
		isCmd bool
	}{
		{"/start", "start", nil, true},
		{"  /START ref42  ", "start", []string{"ref42"}, true},
		{"/wallet 0xabc", "wallet", []string{"0xabc"}, true},
		{"/grant 10 50", "grant", []string{"10", "50"}, true},
		{"/menu@solium_bot", "menu", nil, true},
		{"/menu@other_bot", "", nil, false},
		{"/", "", nil, false},
		{"/@solium_bot", "", nil, false},
		{"@fan_handle", "", nil, false},
		{"!menu", "", nil, false},
		{"просто текст", "", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			cmd, args, ok := p.ParseCommand(tt.text)
			assert.Equal(t, tt.isCmd, ok)
			assert.Equal(t, tt.cmd, cmd)
			assert.Equal(t, tt.args, args)
		})
	}
}

func TestParseCommand_NoBotUsername(t *testing.T) {
	p := NewCommandParser("")

	cmd, _, ok := p.ParseCommand("/menu@anything")
	assert.True(t, ok)
	assert.Equal(t, "menu", cmd)
}
