// Shared line input.
//
// Information Hiding:
// - Background scanning goroutine hidden
// - Cancellation of a pending read hidden

package cli

import (
	"bufio"
	"context"
	"io"
	"sync"
)

type line struct {
	text string
	err  error
}

// LineReader hands out lines of one input stream to the chat prompt and the
// permission prompt in turn. Reads are cancellable; a line that arrives
// after its reader gave up goes to the next ReadLine.
type LineReader struct {
	r     io.Reader
	once  sync.Once
	lines chan line
}

// NewLineReader wraps r.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{r: r, lines: make(chan line)}
}

func (l *LineReader) start() {
	go func() {
		scanner := bufio.NewScanner(l.r)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)
		for scanner.Scan() {
			l.lines <- line{text: scanner.Text()}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		l.lines <- line{err: err}
		close(l.lines)
	}()
}

// ReadLine returns the next line without its terminator. It returns io.EOF
// once the input is exhausted, and ctx.Err() if ctx ends first.
func (l *LineReader) ReadLine(ctx context.Context) (string, error) {
	l.once.Do(l.start)

	select {
	case ln, ok := <-l.lines:
		if !ok {
			return "", io.EOF
		}
		return ln.text, ln.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
