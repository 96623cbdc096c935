package main

import (
	"bufio"
	"context"
	"fmt"
	"io"

	"github.com/shaharia-lab/gptbot/relay"
)

// terminalKey is the single conversation the terminal talks to.
const terminalKey = "terminal"

// runREPL reads one message per line from in and writes each reply to out
// until in is exhausted or ctx is done.
func runREPL(ctx context.Context, hub *relay.Hub, in io.Reader, out io.Writer) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	fmt.Fprint(out, "> ")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, open := <-lines:
			if !open {
				fmt.Fprintln(out)
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}

			reply, ok, err := hub.Handle(ctx, relay.InboundMessage{
				Key:      terminalKey,
				AuthorID: terminalKey,
				Text:     line,
			})
			if err != nil {
				return err
			}
			if ok {
				fmt.Fprintln(out, reply)
			}
			fmt.Fprint(out, "> ")
		}
	}
}
