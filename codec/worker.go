package codec

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	"github.com/mediaprov/provenance-services/models/common"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/op/go-logging"
)

// Worker hosts compiled codec modules in its own goroutine and exposes
// a small request/response surface. All data crosses the boundary as
// copied byte buffers; the caller and the worker never share a
// mutable buffer. The worker goroutine is a serialization point:
// requests queue on its channel, which is the backpressure mechanism
// when callers outpace the codec.
//
// During Sign, the codec calls back into the request's own
// SigningInfo callbacks for digest/sign/random/timestamp. Those nested
// round trips run inside the worker goroutine against the one
// SigningInfo carried by the request, so concurrent sign calls can
// never route a nested call to another asset's key.
type Worker struct {
	loader   ModuleLoader
	logger   *logging.Logger
	requests chan *request
	done     chan struct{}
}

type opCode int

const (
	opLoadModule opCode = iota
	opReadManifest
	opReadDetached
	opScan
	opSign
)

type request struct {
	op          opCode
	moduleID    string
	moduleBytes []byte
	asset       []byte
	manifest    []byte
	mimeType    string
	info        *service.SigningInfo
	reply       chan *response
}

type response struct {
	moduleID string
	signed   []byte
	store    *service.ManifestStore
	scan     ScanResult
	err      error
}

// ErrWorkerStopped is returned for requests issued after Stop.
var ErrWorkerStopped = fmt.Errorf("codec worker is stopped")

// NewWorker starts a worker that compiles modules with the given
// loader. Param bufSize is the request queue depth; requests beyond it
// block the caller until the worker catches up.
func NewWorker(loader ModuleLoader, logger *logging.Logger, bufSize int) *Worker {
	worker := &Worker{
		loader:   loader,
		logger:   logger,
		requests: make(chan *request, bufSize),
		done:     make(chan struct{}),
	}
	go worker.serve()
	return worker
}

// Stop shuts the worker down. In-flight requests run to completion;
// later requests fail with ErrWorkerStopped.
func (w *Worker) Stop() {
	close(w.done)
}

// LoadModule compiles the module bytes and returns a handle for later
// calls. Modules are cached by content digest, so loading the same
// bytes twice compiles once and returns the same handle; compilation
// is idempotent and safe to repeat. Malformed bytes yield
// ModuleLoadFailure.
func (w *Worker) LoadModule(moduleBytes []byte) (string, error) {
	resp, err := w.send(&request{
		op:          opLoadModule,
		moduleBytes: copyBytes(moduleBytes),
	})
	if err != nil {
		return "", err
	}
	return resp.moduleID, resp.err
}

// ReadManifest extracts the manifest store embedded in the asset.
func (w *Worker) ReadManifest(moduleID string, asset []byte, mimeType string) (*service.ManifestStore, error) {
	resp, err := w.send(&request{
		op:       opReadManifest,
		moduleID: moduleID,
		asset:    copyBytes(asset),
		mimeType: mimeType,
	})
	if err != nil {
		return nil, err
	}
	return resp.store, resp.err
}

// ReadDetachedManifest validates a detached manifest against an asset.
func (w *Worker) ReadDetachedManifest(moduleID string, manifest, asset []byte, mimeType string) (*service.ManifestStore, error) {
	resp, err := w.send(&request{
		op:       opReadDetached,
		moduleID: moduleID,
		manifest: copyBytes(manifest),
		asset:    copyBytes(asset),
		mimeType: mimeType,
	})
	if err != nil {
		return nil, err
	}
	return resp.store, resp.err
}

// Scan looks for a watermark in the asset. Scan never fails the
// caller: internal scanner errors are logged and reported as
// Found=false, because the scanner cannot distinguish absence of a
// watermark from inability to find one, and absence is the common
// case. An unknown module handle is the one exception, since that is
// a caller bug rather than a scan outcome.
func (w *Worker) Scan(moduleID string, asset []byte) (ScanResult, error) {
	resp, err := w.send(&request{
		op:       opScan,
		moduleID: moduleID,
		asset:    copyBytes(asset),
	})
	if err != nil {
		return ScanResult{}, err
	}
	return resp.scan, resp.err
}

// Sign embeds a manifest into the asset per info and returns the
// signed asset bytes. The call fails with MissingKey if info carries
// no key-backed callback. Digest/sign/random/timestamp calls nest back
// through info.Callback while this call is in flight.
func (w *Worker) Sign(moduleID string, asset []byte, mimeType string, info *service.SigningInfo) ([]byte, error) {
	if info == nil || info.Callback == nil {
		return nil, fmt.Errorf("%w: sign request carries no signer callback", common.ErrMissingKey)
	}
	resp, err := w.send(&request{
		op:       opSign,
		moduleID: moduleID,
		asset:    copyBytes(asset),
		mimeType: mimeType,
		info:     info,
	})
	if err != nil {
		return nil, err
	}
	return resp.signed, resp.err
}

func (w *Worker) send(req *request) (*response, error) {
	req.reply = make(chan *response, 1)
	select {
	case <-w.done:
		return nil, ErrWorkerStopped
	case w.requests <- req:
	}
	select {
	case <-w.done:
		return nil, ErrWorkerStopped
	case resp := <-req.reply:
		return resp, nil
	}
}

func (w *Worker) serve() {
	modules := make(map[string]Module)
	for {
		select {
		case <-w.done:
			return
		case req := <-w.requests:
			req.reply <- w.handle(modules, req)
		}
	}
}

func (w *Worker) handle(modules map[string]Module, req *request) *response {
	if req.op == opLoadModule {
		return w.loadModule(modules, req)
	}
	module, ok := modules[req.moduleID]
	if !ok {
		return &response{err: fmt.Errorf("unknown codec module %q", req.moduleID)}
	}
	switch req.op {
	case opReadManifest:
		store, err := module.ReadManifest(req.asset, req.mimeType)
		return &response{store: store, err: err}
	case opReadDetached:
		store, err := module.ReadDetachedManifest(req.manifest, req.asset, req.mimeType)
		return &response{store: store, err: err}
	case opScan:
		return &response{scan: w.scan(module, req.asset)}
	case opSign:
		signed, err := module.Sign(req.asset, req.mimeType, req.info)
		return &response{signed: copyBytes(signed), err: err}
	}
	return &response{err: fmt.Errorf("unknown codec operation %d", req.op)}
}

func (w *Worker) loadModule(modules map[string]Module, req *request) *response {
	digest := sha256.Sum256(req.moduleBytes)
	moduleID := hex.EncodeToString(digest[:])
	if _, ok := modules[moduleID]; ok {
		return &response{moduleID: moduleID}
	}
	module, err := w.loader.Compile(req.moduleBytes)
	if err != nil {
		return &response{err: fmt.Errorf("%w: %v", common.ErrModuleLoadFailure, err)}
	}
	modules[moduleID] = module
	w.logger.Infof("Compiled codec module %s (%d bytes)", moduleID[:12], len(req.moduleBytes))
	return &response{moduleID: moduleID}
}

// scan wraps the scanner so its failures never escape. A panicking or
// erroring scanner is reported as not-found and logged.
func (w *Worker) scan(module Module, asset []byte) (result ScanResult) {
	defer func() {
		if r := recover(); r != nil {
			w.logger.Warningf("Scanner panicked, reporting not found: %v", r)
			result = ScanResult{Found: false}
		}
	}()
	found, offset, err := module.Scan(asset)
	if err != nil {
		w.logger.Warningf("Scanner failed, reporting not found: %v", err)
		return ScanResult{Found: false}
	}
	if !found {
		return ScanResult{Found: false}
	}
	return ScanResult{Found: true, Offset: offset}
}

func copyBytes(data []byte) []byte {
	if data == nil {
		return nil
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	return buf
}
