package main

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/shrek82/projectdb/bindings"
)

// lineReader is the part of *readline.Instance the prompter uses.
type lineReader interface {
	ReadLine() (string, error)
	SetPrompt(prompt string)
}

// linePrompter answers message boxes on the terminal. The user picks a
// button by its number; an empty line picks the last button.
type linePrompter struct {
	rl     lineReader
	out    io.Writer
	prompt string
}

func (p *linePrompter) MessageBox(ctx context.Context, box bindings.MessageBox) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	if len(box.Buttons) == 0 {
		return 0, fmt.Errorf("message box %q has no buttons", box.Title)
	}

	_, _ = fmt.Fprintf(p.out, "  [%s] %s\n  %s\n", box.Type, box.Title, box.Message)
	for i, b := range box.Buttons {
		_, _ = fmt.Fprintf(p.out, "    %d) %s\n", i+1, b)
	}
	last := len(box.Buttons) - 1

	defer p.rl.SetPrompt(p.prompt)
	for {
		p.rl.SetPrompt(fmt.Sprintf("  Choice [%d]: ", last+1))
		line, err := p.rl.ReadLine()
		if err != nil {
			return last, nil
		}
		line = strings.TrimSpace(line)
		if line == "" {
			return last, nil
		}
		n, err := strconv.Atoi(line)
		if err == nil && n >= 1 && n <= len(box.Buttons) {
			return n - 1, nil
		}
		_, _ = fmt.Fprintf(p.out, "  Enter a number between 1 and %d\n", len(box.Buttons))
	}
}
