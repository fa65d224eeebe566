package service

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/mediaprov/provenance-services/constants"
)

// SigningResult tracks one asset's progress through the signing
// pipeline. Status moves strictly forward through the order defined in
// constants.StatusOrder; Failed is reachable from any non-terminal
// status and is terminal. The status is the only externally observable
// progress signal per asset.
type SigningResult struct {
	// AssetName is the name of the asset this result describes,
	// unique within the batch.
	AssetName string `json:"asset_name"`

	// BatchID identifies the batch run this result belongs to.
	BatchID string `json:"batch_id"`

	// Status is the asset's current pipeline status.
	Status string `json:"status"`

	// StartedAt describes when the asset's pipeline started. If
	// StartedAt.IsZero(), processing has not begun.
	StartedAt time.Time `json:"started_at"`

	// FinishedAt describes when the asset's pipeline reached a
	// terminal status. Check Status to see whether it succeeded.
	FinishedAt time.Time `json:"finished_at"`

	// Errors is a list of ProcessingError objects describing what
	// went wrong, if anything. Don't write to this. It's public so we
	// can serialize it to/from JSON, but access is locked internally
	// with a mutex.
	Errors []*ProcessingError `json:"errors"`

	mutex *sync.RWMutex
}

func NewSigningResult(batchID, assetName string) *SigningResult {
	return &SigningResult{
		AssetName: assetName,
		BatchID:   batchID,
		Status:    constants.StatusNotStarted,
		Errors:    make([]*ProcessingError, 0),
		mutex:     &sync.RWMutex{},
	}
}

// AdvanceTo moves the result to the given status. It rejects backward
// moves, moves out of a terminal status, and unknown statuses. The
// first move out of NotStarted records the start time; a move into a
// terminal status records the finish time.
func (result *SigningResult) AdvanceTo(status string) error {
	result.mutex.Lock()
	defer result.mutex.Unlock()
	if !constants.NextStatusValid(result.Status, status) {
		return fmt.Errorf("invalid status transition %s -> %s for asset %s",
			result.Status, status, result.AssetName)
	}
	if result.StartedAt.IsZero() {
		result.StartedAt = time.Now().UTC()
	}
	if constants.StatusIsTerminal(status) {
		result.FinishedAt = time.Now().UTC()
	}
	result.Status = status
	return nil
}

// CurrentStatus returns the asset's current status.
func (result *SigningResult) CurrentStatus() string {
	result.mutex.RLock()
	status := result.Status
	result.mutex.RUnlock()
	return status
}

// Started returns true once the pipeline has begun work on this asset.
func (result *SigningResult) Started() bool {
	result.mutex.RLock()
	started := !result.StartedAt.IsZero()
	result.mutex.RUnlock()
	return started
}

// Finished returns true once the asset has reached a terminal status.
func (result *SigningResult) Finished() bool {
	result.mutex.RLock()
	finished := !result.FinishedAt.IsZero()
	result.mutex.RUnlock()
	return finished
}

// RunTime returns the elapsed time for this asset's pipeline. For an
// unfinished pipeline, it returns the time elapsed so far.
func (result *SigningResult) RunTime() time.Duration {
	result.mutex.RLock()
	defer result.mutex.RUnlock()
	if result.StartedAt.IsZero() {
		return time.Duration(0)
	}
	endTime := result.FinishedAt
	if endTime.IsZero() {
		endTime = time.Now()
	}
	return endTime.Sub(result.StartedAt)
}

// Succeeded returns true if the asset completed the full pipeline.
func (result *SigningResult) Succeeded() bool {
	return result.CurrentStatus() == constants.StatusCompleted
}

// AddError adds a ProcessingError to the result.
func (result *SigningResult) AddError(err *ProcessingError) {
	result.mutex.Lock()
	result.Errors = append(result.Errors, err)
	result.mutex.Unlock()
}

// HasErrors returns true if this result has any errors, fatal or not.
func (result *SigningResult) HasErrors() bool {
	result.mutex.RLock()
	hasErrors := len(result.Errors) > 0
	result.mutex.RUnlock()
	return hasErrors
}

// FatalErrors returns a list of all of this result's fatal errors.
func (result *SigningResult) FatalErrors() (errors []*ProcessingError) {
	result.mutex.RLock()
	for _, err := range result.Errors {
		if err.IsFatal {
			errors = append(errors, err)
		}
	}
	result.mutex.RUnlock()
	return errors
}

// HasFatalErrors returns true if this result has any fatal errors.
func (result *SigningResult) HasFatalErrors() bool {
	return len(result.FatalErrors()) > 0
}

// SigningResultFromJSON converts the JSON representation of a
// SigningResult into a full-fledged object. Note that this involves
// not only deserializing the JSON, but also initializing an internal
// mutex. If you deserialize without this function, you'll eventually
// run into nil pointer exceptions because the mutex won't exist.
func SigningResultFromJSON(jsonData string) (*SigningResult, error) {
	result := &SigningResult{}
	err := json.Unmarshal([]byte(jsonData), result)
	if err != nil {
		return nil, err
	}
	result.mutex = &sync.RWMutex{}
	return result, nil
}

func (result *SigningResult) ToJSON() (string, error) {
	result.mutex.RLock()
	defer result.mutex.RUnlock()
	data, err := json.Marshal(result)
	if err != nil {
		return "", err
	}
	return string(data), nil
}
