package runner

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"
)

// InputSource supplies human lines in interactive mode. io.EOF ends the
// conversation.
type InputSource interface {
	ReadLine(ctx context.Context) (string, error)
}

// LineReader reads lines from r on a background goroutine so that waiting
// for input can be abandoned through the context.
type LineReader struct {
	sc     *bufio.Scanner
	prompt string
	out    io.Writer

	once  sync.Once
	lines chan string
	err   error
}

// NewLineReader returns a reader over r. When out is non-nil, prompt is
// written to it before each read.
func NewLineReader(r io.Reader, out io.Writer, prompt string) *LineReader {
	return &LineReader{sc: bufio.NewScanner(r), out: out, prompt: prompt}
}

func (l *LineReader) start() {
	l.lines = make(chan string)
	go func() {
		defer close(l.lines)
		for l.sc.Scan() {
			l.lines <- l.sc.Text()
		}
		l.err = l.sc.Err()
	}()
}

func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	l.once.Do(l.start)
	if l.out != nil && l.prompt != "" {
		fmt.Fprint(l.out, l.prompt)
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-l.lines:
		if !ok {
			if l.err != nil {
				return "", fmt.Errorf("read input: %w", l.err)
			}
			return "", io.EOF
		}
		return line, nil
	}
}
