package logging

import (
	"io"
	"os"
)

// stdout is split out so tests can swap the log destination.
var stdout = func() io.Writer { return os.Stdout }
