package pipeline

import (
	"encoding/json"
	"errors"

	"github.com/mediaprov/provenance-services/codec"
	"github.com/mediaprov/provenance-services/constants"
	"github.com/mediaprov/provenance-services/models/common"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/mediaprov/provenance-services/signer"
)

// AssetSigner carries one asset through the full signing pipeline:
// acquire the bytes, build the signing info, have the codec worker
// embed and sign the claim, and persist the signed container to the
// output sink. Each run owns its asset completely; a failure here
// fails this asset and nothing else.
type AssetSigner struct {
	Base

	// Certificates is the DER certificate chain from the trust
	// bootstrap, passed through to the codec.
	Certificates [][]byte

	// Algorithm is the signing algorithm the trust key is bound to.
	Algorithm string

	// Callback is the signer adapter for this batch. The codec
	// delegates all cryptographic operations to it.
	Callback signer.SigningCallback

	// Assertions and the thumbnail are embedded in this asset's
	// manifest. Assertions are asset specific, so these fields belong
	// here rather than on the batch.
	Assertions      map[string]json.RawMessage
	Thumbnail       []byte
	ThumbnailFormat string

	// Sink receives the signed asset. May be nil, in which case the
	// signed bytes are held on the signer only.
	Sink OutputSink

	// Load optionally fetches the asset bytes from a remote source
	// during the download phase. When nil, the asset's in-memory
	// bytes are used.
	Load func() ([]byte, error)

	// SignedBytes holds the signed container after a successful run.
	SignedBytes []byte

	// OutputLocation is where the sink stored the signed asset.
	OutputLocation string
}

// Run signs the asset. It returns the number of assets signed (0 or 1)
// and any errors hit along the way. The result's status lands on
// Completed or Failed, never anywhere in between.
func (a *AssetSigner) Run() (int, []*service.ProcessingError) {
	data, errs := a.download()
	if errs != nil {
		return 0, errs
	}
	info, errs := a.buildSigningInfo()
	if errs != nil {
		return 0, errs
	}
	signed, errs := a.sign(data, info)
	if errs != nil {
		return 0, errs
	}
	if errs = a.persist(signed); errs != nil {
		return 0, errs
	}
	if err := a.advanceTo(constants.StatusCompleted); err != nil {
		return 0, []*service.ProcessingError{a.Error(err, true)}
	}
	return 1, nil
}

func (a *AssetSigner) download() ([]byte, []*service.ProcessingError) {
	if err := a.advanceTo(constants.StatusDownloading); err != nil {
		return nil, []*service.ProcessingError{a.Error(err, true)}
	}
	if a.Load == nil {
		return a.Asset.Bytes(), nil
	}
	data, err := a.Load()
	if err != nil {
		return nil, a.fail(err)
	}
	return data, nil
}

func (a *AssetSigner) buildSigningInfo() (*service.SigningInfo, []*service.ProcessingError) {
	if err := a.advanceTo(constants.StatusGeneratingClaim); err != nil {
		return nil, []*service.ProcessingError{a.Error(err, true)}
	}
	info, err := service.NewSigningInfo(a.Algorithm, a.Certificates, a.Callback, a.Asset.Name)
	if err != nil {
		return nil, a.fail(err)
	}
	for label, payload := range a.Assertions {
		if err = info.AddAssertion(label, payload); err != nil {
			return nil, a.fail(err)
		}
	}
	if len(a.Thumbnail) > 0 {
		info.SetThumbnail(a.ThumbnailFormat, a.Thumbnail)
	}
	return info, nil
}

func (a *AssetSigner) sign(data []byte, info *service.SigningInfo) ([]byte, []*service.ProcessingError) {
	if err := a.advanceTo(constants.StatusSigningClaim); err != nil {
		return nil, []*service.ProcessingError{a.Error(err, true)}
	}
	// When the signer can reach a timestamp authority, the codec's
	// nested Timestamp call marks the transition into the
	// timestamping phase. Without that capability, the status goes
	// straight from SigningClaim to Completed.
	if _, ok := signer.HasTimestamp(info.Callback); ok {
		info.Callback = &timestampPhaseCallback{
			inner: info.Callback,
			enterPhase: func() {
				if a.Result.CurrentStatus() == constants.StatusSigningClaim {
					a.advanceTo(constants.StatusTimestamping)
				}
			},
		}
	}
	signed, err := a.CodecWorker.Sign(a.ModuleID, data, a.Asset.MimeType, info)
	if err != nil {
		return nil, a.fail(err)
	}
	return signed, nil
}

func (a *AssetSigner) persist(signed []byte) []*service.ProcessingError {
	a.SignedBytes = signed
	if a.Sink == nil {
		return nil
	}
	location, err := a.Sink.Save(a.Asset.Name, a.Asset.MimeType, signed)
	if err != nil {
		return a.fail(err)
	}
	a.OutputLocation = location
	a.Logger.Infof("Asset %s: signed container written to %s", a.Asset.Name, location)
	return nil
}

// fail records the error on the result, moves the asset to Failed, and
// returns the error list for the run.
func (a *AssetSigner) fail(err error) []*service.ProcessingError {
	procErr := a.Error(err, errorIsFatal(err))
	a.Result.AddError(procErr)
	a.advanceTo(constants.StatusFailed)
	a.Logger.Error(procErr.Error())
	return []*service.ProcessingError{procErr}
}

// errorIsFatal says whether retrying the same asset would hit the same
// error again. I/O failures and a stopped worker are transient;
// everything else in the taxonomy describes the asset or the
// configuration and will recur.
func errorIsFatal(err error) bool {
	if errors.Is(err, common.ErrIOFailure) || errors.Is(err, codec.ErrWorkerStopped) {
		return false
	}
	return true
}

// timestampPhaseCallback wraps a signing callback so the first nested
// Timestamp call flips the asset into the timestamping phase.
type timestampPhaseCallback struct {
	inner      signer.SigningCallback
	enterPhase func()
}

func (c *timestampPhaseCallback) Digest(data []byte) ([]byte, error) {
	return c.inner.Digest(data)
}

func (c *timestampPhaseCallback) Sign(data []byte) ([]byte, error) {
	return c.inner.Sign(data)
}

func (c *timestampPhaseCallback) Random(n int) ([]byte, error) {
	return c.inner.Random(n)
}

func (c *timestampPhaseCallback) Timestamp(message []byte) ([]byte, error) {
	c.enterPhase()
	ts, _ := signer.HasTimestamp(c.inner)
	return ts.Timestamp(message)
}
