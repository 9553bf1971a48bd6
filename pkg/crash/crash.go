// Package crash writes a record of an unrecovered panic before the process dies.
package crash

import (
	"fmt"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"github.com/fulmenhq/mirrorengine/pkg/buildinfo"
	"github.com/fulmenhq/mirrorengine/pkg/safeio"
)

// Recorder knows where crash records go and what to put in their header.
type Recorder struct {
	Dir   string
	RunID string
	Args  []string

	now   func() time.Time
	stack func() []byte
}

// NewRecorder returns a recorder writing to dir.
func NewRecorder(dir, runID string, args []string) *Recorder {
	return &Recorder{
		Dir:   dir,
		RunID: runID,
		Args:  args,
		now:   time.Now,
		stack: debug.Stack,
	}
}

// Write appends a crash record for value and returns its path.
func (r *Recorder) Write(value interface{}) (string, error) {
	p := filepath.Join(r.Dir, fmt.Sprintf("crash-%d.txt", r.now().UnixMilli()))

	var b strings.Builder
	b.WriteString("Go version: " + buildinfo.GoVersion() + "\n")
	b.WriteString("Mirror engine version: " + buildinfo.Version() + "\n")
	b.WriteString("Run: " + r.RunID + "\n")
	for _, a := range r.Args {
		b.WriteString("Argument: " + a + "\n")
	}
	b.WriteString(fmt.Sprintf("Panic: %v\n", value))
	b.Write(r.stack())
	b.WriteString("\n")

	if err := safeio.AppendFile(p, []byte(b.String())); err != nil {
		return "", err
	}
	return p, nil
}

// Guard records a panic in flight and re-panics with the same value.
// Use it as: defer recorder.Guard()
func (r *Recorder) Guard() {
	v := recover()
	if v == nil {
		return
	}
	_, _ = r.Write(v)
	panic(v)
}
