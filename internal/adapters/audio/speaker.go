package audio

import (
	"context"
	"os/exec"
	"strings"

	"github.com/agrimitra/agrimitra/internal/domain"
)

// CommandSpeaker pipes assistant text to a text-to-speech command, e.g.
// "espeak-ng --stdin -v {lang}". The {lang} token is replaced with the
// active locale code.
type CommandSpeaker struct {
	command []string
}

func NewCommandSpeaker(command string) *CommandSpeaker {
	return &CommandSpeaker{command: strings.Fields(command)}
}

func (s *CommandSpeaker) Speak(ctx context.Context, text string, lang domain.LanguageCode) error {
	if len(s.command) == 0 {
		return domain.NewError(domain.ErrorDeviceUnavailable, "no_speak_command", nil)
	}

	args := make([]string, 0, len(s.command)-1)
	for _, arg := range s.command[1:] {
		args = append(args, strings.ReplaceAll(arg, "{lang}", string(lang)))
	}

	cmd := exec.CommandContext(ctx, s.command[0], args...)
	cmd.Stdin = strings.NewReader(text)
	if err := cmd.Run(); err != nil {
		return domain.NewError(domain.ErrorDeviceUnavailable, "speak_failed", err)
	}
	return nil
}
