package datarecording

import (
	"os"
	"strings"
	"time"
)

// ExecTableName is the table ExecRecorder writes to.
const ExecTableName = "exec_info"

// ExecInfo is one property of a program execution.
type ExecInfo struct {
	Property string
	Value    string
}

// ExecRecorder records how the program was run next to the data it records.
type ExecRecorder struct {
	recorder DataRecorder
	entries  []ExecInfo
}

// NewExecRecorder creates an ExecRecorder and the table it writes to.
func NewExecRecorder(recorder DataRecorder) *ExecRecorder {
	recorder.CreateTable(ExecTableName, ExecInfo{})

	return &ExecRecorder{recorder: recorder}
}

// Start notes the start time, the command line, and the working directory.
func (e *ExecRecorder) Start() {
	e.Set("Start Time", formatTime(time.Now()))
	e.Set("Command", strings.Join(os.Args, " "))

	cwd, err := os.Getwd()
	if err != nil {
		panic(err)
	}

	e.Set("Working Directory", cwd)
}

// Set notes a property of the execution, such as a configuration value.
func (e *ExecRecorder) Set(property, value string) {
	e.entries = append(e.entries, ExecInfo{Property: property, Value: value})
}

// End writes every property along with the end time and flushes the
// recorder.
func (e *ExecRecorder) End() {
	e.Set("End Time", formatTime(time.Now()))

	for _, entry := range e.entries {
		e.recorder.InsertData(ExecTableName, entry)
	}

	e.entries = nil

	e.recorder.Flush()
}

func formatTime(t time.Time) string {
	return t.Format("2006-01-02 15:04:05.000000000")
}
