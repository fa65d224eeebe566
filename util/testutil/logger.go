package testutil

import (
	"github.com/op/go-logging"
)

// Logger returns a logger for tests. Output goes to the default
// backend so failing tests come with context.
func Logger() *logging.Logger {
	return logging.MustGetLogger("test")
}
