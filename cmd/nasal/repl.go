package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/chazu/nasal/compiler"
)

const (
	prompt     = "nasal> "
	contPrompt = "...    "
)

var resultColor = color.New(color.FgGreen)

func (s *session) repl() error {
	cfg := &readline.Config{
		Prompt:          prompt,
		InterruptPrompt: "^C",
		EOFPrompt:       "exit",
	}
	if home, err := os.UserHomeDir(); err == nil {
		cfg.HistoryFile = filepath.Join(home, ".nasal_history")
	}
	rl, err := readline.NewEx(cfg)
	if err != nil {
		return err
	}
	defer rl.Close()

	fmt.Println("nasal REPL. Ctrl-D to exit.")
	var pending strings.Builder
	for {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			pending.Reset()
			rl.SetPrompt(prompt)
			continue
		}
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}

		pending.WriteString(line)
		pending.WriteByte('\n')
		src := pending.String()
		if strings.TrimSpace(src) == "" {
			pending.Reset()
			continue
		}

		v, err := s.run([]byte(src), "<repl>", nil)
		if incomplete(err) {
			rl.SetPrompt(contPrompt)
			continue
		}
		pending.Reset()
		rl.SetPrompt(prompt)
		if err != nil {
			report(err)
			continue
		}
		if !v.IsNil() {
			resultColor.Println(s.ctx.Format(v))
		}
	}
}

// incomplete reports whether err means the input stops mid-construct and
// more lines should be read.
func incomplete(err error) bool {
	var ce *compiler.Error
	if !errors.As(err, &ce) {
		return false
	}
	return strings.HasPrefix(ce.Message, "unterminated")
}
