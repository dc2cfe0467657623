package output

import (
	"bufio"
	"io"
	"strings"

	"github.com/sourcegraph/conc"

	"github.com/Iron-Ham/claudelink/internal/logging"
)

// Observer is called with every line after it has been buffered.
type Observer func(s Stream, line string)

// Pump reads r to completion, appending each line to buf and mirroring it to
// sink. A read error ends the pump the same way end-of-stream does. A final
// line without a newline is still delivered. Invalid UTF-8 is replaced.
func Pump(r io.Reader, s Stream, buf *Buffer, sink Sink, observe Observer) {
	br := bufio.NewReader(r)
	for {
		raw, err := br.ReadString('\n')
		if raw != "" {
			line := strings.TrimRight(raw, "\r\n")
			line = strings.ToValidUTF8(line, "�")

			buf.Append(s, line)
			if sink != nil {
				sink.WriteLine(s, line)
			}
			if observe != nil {
				observe(s, line)
			}
		}
		if err != nil {
			return
		}
	}
}

// Pumps runs the stdout and stderr pumps of one session.
type Pumps struct {
	wg   conc.WaitGroup
	done chan struct{}
}

// StartPumps starts one pump per non-nil stream. The returned Pumps is done
// once every pump has returned.
func StartPumps(stdout, stderr io.Reader, buf *Buffer, sink Sink, observe Observer, logger *logging.Logger) *Pumps {
	if logger == nil {
		logger = logging.NopLogger()
	}
	p := &Pumps{done: make(chan struct{})}

	start := func(r io.Reader, s Stream) {
		if r == nil {
			return
		}
		p.wg.Go(func() {
			Pump(r, s, buf, sink, observe)
			logger.Debug("output stream closed", "stream", s.String())
		})
	}
	start(stdout, Stdout)
	start(stderr, Stderr)

	go func() {
		if r := p.wg.WaitAndRecover(); r != nil {
			logger.Error("output pump panicked", "panic", r.String())
		}
		close(p.done)
	}()
	return p
}

// Done is closed when every pump has returned.
func (p *Pumps) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until every pump has returned.
func (p *Pumps) Wait() {
	<-p.done
}
