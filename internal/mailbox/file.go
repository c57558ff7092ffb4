package mailbox

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"strings"

	"github.com/eladdeutch/jobtracker/internal/errors"
	"github.com/eladdeutch/jobtracker/internal/tracker"
)

const maxLineBytes = 4 << 20

// File reads messages from a JSONL file, one tracker.Message per line.
// Lines starting with # are ignored. The file is reread on every fetch.
type File struct {
	Path string
}

// NewFile returns a mailbox backed by path.
func NewFile(path string) *File {
	return &File{Path: path}
}

// Fetch implements Mailbox.
func (f *File) Fetch(ctx context.Context, req FetchRequest) ([]tracker.Message, error) {
	msgs, err := f.load()
	if err != nil {
		return nil, errors.NewCollaboratorUnavailable("mailbox", err)
	}
	return Static(msgs).Fetch(ctx, req)
}

func (f *File) load() ([]tracker.Message, error) {
	file, err := os.Open(f.Path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var msgs []tracker.Message
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		var m tracker.Message
		if err := json.Unmarshal([]byte(text), &m); err != nil {
			return nil, errors.Wrapf(err, "%s:%d", f.Path, line)
		}
		if m.ID == "" {
			return nil, errors.Newf("%s:%d: message has no id", f.Path, line)
		}
		msgs = append(msgs, m)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "read %s", f.Path)
	}
	return msgs, nil
}
