package transcript

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"hooktrace/internal/event"
)

// ReadError reports a missing or unreadable transcript. The invocation
// aborts on it and the persisted offset is left alone.
type ReadError struct {
	Path string
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("TRS_READ: %s: %v", e.Path, e.Err)
}

func (e *ReadError) Unwrap() error { return e.Err }

// ReadResult is one incremental read over a transcript.
type ReadResult struct {
	Records []Record
	// Base is the offset the read actually started from. It equals the
	// requested offset unless the file shrank underneath it, which
	// means the session file was rotated and the cursor reset to 0.
	Base int64
	// End is the offset just past the last complete line. A trailing
	// line without its newline is still being written by the producing
	// tool and is excluded, so the next invocation re-attempts it.
	End int64
}

// ReadNew returns the complete records appended to path since offset.
// The line decoder is chosen by the tool identity the adapter registry
// established; it is never re-detected from content. Lines that decode
// to nothing (structural records, malformed JSON) are skipped but
// still advance End: only an absent newline holds the cursor back.
func ReadNew(tool, path string, offset int64) (ReadResult, error) {
	f, err := os.Open(path)
	if err != nil {
		return ReadResult{Base: offset, End: offset}, &ReadError{Path: path, Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return ReadResult{Base: offset, End: offset}, &ReadError{Path: path, Err: err}
	}
	if info.Size() < offset {
		offset = 0
	}
	if offset > 0 {
		if _, err := f.Seek(offset, io.SeekStart); err != nil {
			return ReadResult{Base: offset, End: offset}, &ReadError{Path: path, Err: err}
		}
	}

	decode := decoderFor(tool)
	res := ReadResult{Base: offset, End: offset}
	reader := bufio.NewReader(f)
	for {
		line, err := reader.ReadBytes('\n')
		if err != nil && err != io.EOF {
			return res, &ReadError{Path: path, Err: err}
		}
		if len(line) == 0 || line[len(line)-1] != '\n' {
			// Mid-write tail, left for the next invocation.
			break
		}
		res.End += int64(len(line))
		data := line[:len(line)-1]
		if len(data) == 0 {
			continue
		}
		if rec, ok := decode(data); ok {
			rec.EndOffset = res.End
			res.Records = append(res.Records, rec)
		}
		if err == io.EOF {
			break
		}
	}
	return res, nil
}

func decoderFor(tool string) func([]byte) (Record, bool) {
	if tool == event.ToolCodex {
		return decodeCodexLine
	}
	return decodeClaudeLine
}
