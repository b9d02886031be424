// Copyright (c) Jeff Berkowitz 2021, 2026. All rights reserved.

package console

// Line input for the console, with specific concessions for interactive
// terminal use. On a terminal we get line editing and history from
// readline; when stdin is a pipe or file we just scan lines.
//
// Reading input blocks indefinitely, so it happens on its own goroutine
// that feeds a channel the console selects on. That goroutine is not
// part of the console's tomb: a read blocked on the terminal can't be
// interrupted, and nobody should have to wait for it.

import (
	"bufio"
	"io"
	"os"
	"path/filepath"

	"github.com/ergochat/readline"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"
)

const historyFileName = ".romload_history"

// LineSource supplies lines without their terminating newline. It
// returns io.EOF when the user is done.
type LineSource interface {
	ReadLine() (string, error)
	Close() error
}

type TerminalInput struct {
	rl      *readline.Instance
	scanner *bufio.Scanner
}

// NewTerminalInput reads standard input, using readline if it's a terminal.
func NewTerminalInput() *TerminalInput {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return &TerminalInput{scanner: bufio.NewScanner(os.Stdin)}
	}

	var history string
	if home, err := os.UserHomeDir(); err == nil {
		history = filepath.Join(home, historyFileName)
	}
	rl, err := readline.NewFromConfig(&readline.Config{
		HistoryFile:  history,
		HistoryLimit: 500,
		Prompt:       "",
	})
	if err != nil {
		log.Warn().Err(err).Msg("readline init failed, using basic input")
		return &TerminalInput{scanner: bufio.NewScanner(os.Stdin)}
	}
	return &TerminalInput{rl: rl}
}

// ReadLine returns the next line. Ctrl-C at the prompt ends input the
// same way ^D does: the terminal is in raw mode, so no SIGINT arrives.
func (ti *TerminalInput) ReadLine() (string, error) {
	if ti.rl != nil {
		line, err := ti.rl.Readline()
		if err == readline.ErrInterrupt {
			return "", io.EOF
		}
		return line, err
	}
	if !ti.scanner.Scan() {
		if err := ti.scanner.Err(); err != nil {
			return "", err
		}
		return "", io.EOF
	}
	return ti.scanner.Text(), nil
}

func (ti *TerminalInput) Close() error {
	if ti.rl != nil {
		return ti.rl.Close()
	}
	return nil
}

// pump moves lines from in to the returned channel until input ends or
// done is closed. The channel is closed at end of input.
func pump(in LineSource, done <-chan struct{}) <-chan string {
	lines := make(chan string)
	go func() {
		defer close(lines)
		for {
			line, err := in.ReadLine()
			if err != nil {
				if err != io.EOF {
					// Report interesting errors
					log.Error().Err(err).Msg("reading input")
				}
				return
			}
			select {
			case lines <- line:
			case <-done:
				return
			}
		}
	}()
	return lines
}
