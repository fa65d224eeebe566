// Package pipeline implements per-asset processing: the signing run
// that carries one asset from raw bytes to a signed, persisted
// container, and the verification paths that read manifests back out.
// The batch orchestrator in the workers package fans these out.
package pipeline

import (
	"github.com/mediaprov/provenance-services/codec"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/op/go-logging"
)

// Runnable is the contract between the batch orchestrator and a
// per-asset processor.
type Runnable interface {
	Run() (int, []*service.ProcessingError)
}

// StatusFunc is called after each status transition on the asset's
// signing result. The orchestrator uses it to mirror transitions to
// listeners, Redis, and the status topic as they occur.
type StatusFunc func(result *service.SigningResult)

// Base is the base type for per-asset processors.
type Base struct {
	Logger *logging.Logger

	// CodecWorker is the isolated worker hosting the compiled codec
	// and scanner modules.
	CodecWorker *codec.Worker

	// ModuleID is the handle of the codec module to use, returned by
	// CodecWorker.LoadModule.
	ModuleID string

	// Asset is the asset being processed.
	Asset *service.Asset

	// Result tracks this asset's status and errors.
	Result *service.SigningResult

	// OnStatus, if set, is called after every status transition.
	OnStatus StatusFunc
}

// Error returns a ProcessingError attributed to this processor's asset.
func (b *Base) Error(err error, isFatal bool) *service.ProcessingError {
	return service.NewProcessingError(
		b.Result.BatchID,
		b.Asset.Name,
		err.Error(),
		isFatal,
	)
}

// advanceTo moves the result to the given status and notifies the
// status listener. A transition the status machine rejects is a
// programming error in the processor; it is logged and returned.
func (b *Base) advanceTo(status string) error {
	err := b.Result.AdvanceTo(status)
	if err != nil {
		b.Logger.Errorf("Asset %s: %v", b.Asset.Name, err)
		return err
	}
	if b.OnStatus != nil {
		b.OnStatus(b.Result)
	}
	return nil
}
