package service

import (
	"fmt"
	"runtime"
)

type ProcessingError struct {
	AssetName string
	IsFatal   bool
	Message   string
	Source    string
	BatchID   string
}

// NewProcessingError returns a new ProcessingError. Param batchID
// identifies the batch run during which the error occurred. Param
// assetName names the asset whose pipeline hit the error. Fatal errors
// are those that will recur if we try the same asset again, such as a
// malformed asset or a key/algorithm mismatch. Non-fatal errors are
// transient, like a slow timestamp authority or a busy output sink.
// The batch orchestrator does not retry either kind automatically, but
// the distinction tells operators what is worth re-queueing.
func NewProcessingError(batchID, assetName, message string, isFatal bool) *ProcessingError {
	_, filename, line, ok := runtime.Caller(1)
	source := "unknown:0"
	if ok {
		source = fmt.Sprintf("%s:%d", filename, line)
	}
	return &ProcessingError{
		AssetName: assetName,
		IsFatal:   isFatal,
		Message:   message,
		Source:    source,
		BatchID:   batchID,
	}
}

func (e *ProcessingError) Error() string {
	severity := "non-fatal"
	if e.IsFatal {
		severity = "fatal"
	}
	return fmt.Sprintf("(batch %s) (asset: %s) (message: %s) (severity: %s) "+
		"(source: %s)", e.BatchID, e.AssetName, e.Message, severity, e.Source)
}
