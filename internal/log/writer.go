package log

import "bytes"

// Writer is an io.Writer that writes to the provided logger, splitting
// messages across newlines into new log entries.
//
// Child process output is piped through a Writer so that each line of the
// child's diagnostics becomes its own log entry.
type Writer struct {
	Log   *Logger
	Level Level

	// Prefix, if set, is prepended to every logged line.
	Prefix string

	partial bytes.Buffer // incomplete line from a previous Write
}

func (w *Writer) Write(bs []byte) (int, error) {
	n := len(bs)
	for len(bs) > 0 {
		idx := bytes.IndexByte(bs, '\n')
		if idx < 0 {
			// No newline: hold on to it until the rest of the line
			// shows up.
			w.partial.Write(bs)
			break
		}

		line := bs[:idx]
		bs = bs[idx+1:]

		if w.partial.Len() == 0 {
			w.logLine(line)
			continue
		}

		w.partial.Write(line)
		w.flush(true /* allowEmpty */)
	}
	return n, nil
}

// Close flushes any buffered partial line to the underlying log.
func (w *Writer) Close() error {
	// Empty trailing lines are not logged: most streams end with "\n".
	w.flush(false /* allowEmpty */)
	return nil
}

func (w *Writer) flush(allowEmpty bool) {
	if allowEmpty || w.partial.Len() > 0 {
		w.logLine(w.partial.Bytes())
	}
	w.partial.Reset()
}

func (w *Writer) logLine(b []byte) {
	w.Log.Log(w.Level, "%s%s", w.Prefix, b)
}
