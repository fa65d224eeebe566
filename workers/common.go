package workers

import (
	"os"
	"time"

	"github.com/mediaprov/provenance-services/codec"
	"github.com/mediaprov/provenance-services/codec/framed"
	"github.com/mediaprov/provenance-services/constants"
	"github.com/mediaprov/provenance-services/models/common"
	"github.com/mediaprov/provenance-services/pipeline"
	"github.com/mediaprov/provenance-services/trust"
)

// SettingsFromConfig builds worker settings from the loaded config.
func SettingsFromConfig(config *common.Config) *Settings {
	return &Settings{
		ChannelBufferSize:    config.ChannelBufferSize,
		MaxConcurrentSigners: config.MaxConcurrentSigners,
		MaxAttempts:          3,
		NSQTopic:             config.NsqBatchTopic,
		NSQChannel:           config.NsqChannel,
		StatusTopic:          config.NsqStatusTopic,
		RequeueTimeout:       1 * time.Minute,
	}
}

// NewBatchSignerFromContext assembles a ready-to-run BatchSigner from
// the app context: it starts a codec worker, loads the configured
// codec module, bootstraps the trust context, and selects the output
// sink. A failure here is fatal to the app; nothing can be signed
// without a codec and a key.
func NewBatchSignerFromContext(context *common.Context, settings *Settings) (*BatchSigner, error) {
	worker, moduleID, _, err := StartCodecWorker(context, settings.ChannelBufferSize)
	if err != nil {
		return nil, err
	}
	trustContext, err := bootstrapTrust(context)
	if err != nil {
		return nil, err
	}
	return &BatchSigner{
		Logger:      context.Logger,
		CodecWorker: worker,
		ModuleID:    moduleID,
		Trust:       trustContext,
		TsaURL:      context.Config.TsaURL,
		Sink:        sinkFromConfig(context),
		Settings:    settings,
		RedisClient: context.RedisClient,
		NSQClient:   context.NSQClient,
	}, nil
}

// NewVerifierFromContext assembles a Verifier over a fresh codec
// worker, for read-only tools that never sign.
func NewVerifierFromContext(context *common.Context, bufSize int) (*pipeline.Verifier, error) {
	worker, moduleID, scannerID, err := StartCodecWorker(context, bufSize)
	if err != nil {
		return nil, err
	}
	return pipeline.NewVerifier(context.Logger, worker, moduleID, scannerID), nil
}

// StartCodecWorker starts a codec worker and loads the configured
// codec and scanner modules, returning their handles. An empty codec
// module path selects the built-in framed reference codec. An empty
// scanner module path reuses the codec module for scans.
func StartCodecWorker(context *common.Context, bufSize int) (*codec.Worker, string, string, error) {
	worker := codec.NewWorker(framed.NewLoader(), context.Logger, bufSize)
	moduleBytes, err := moduleSource(context.Config.CodecModulePath)
	if err != nil {
		return nil, "", "", err
	}
	moduleID, err := worker.LoadModule(moduleBytes)
	if err != nil {
		return nil, "", "", err
	}
	scannerID := moduleID
	if context.Config.ScannerModulePath != "" {
		scannerBytes, err := os.ReadFile(context.Config.ScannerModulePath)
		if err != nil {
			return nil, "", "", err
		}
		scannerID, err = worker.LoadModule(scannerBytes)
		if err != nil {
			return nil, "", "", err
		}
	}
	return worker, moduleID, scannerID, nil
}

func bootstrapTrust(context *common.Context) (*trust.Context, error) {
	config := context.Config
	fetcher := trust.NewSourceFetcher(context.S3Clients, trustProvider(config))
	return trust.Bootstrap(
		config.TrustCertSource,
		config.TrustKeySource,
		config.SigningAlgorithm,
		fetcher)
}

func trustProvider(config *common.Config) string {
	if config.OutputProvider != "" {
		return config.OutputProvider
	}
	return constants.S3ClientAWS
}

func sinkFromConfig(context *common.Context) pipeline.OutputSink {
	config := context.Config
	if config.OutputBucket != "" {
		client := context.S3Clients[trustProvider(config)]
		if client != nil {
			return pipeline.NewS3Sink(client, config.OutputBucket)
		}
		context.Logger.Errorf("No S3 client for output provider %q, falling back to %s",
			config.OutputProvider, config.OutputDir)
	}
	if config.OutputDir != "" {
		return pipeline.NewFileSink(config.OutputDir)
	}
	return nil
}

func moduleSource(path string) ([]byte, error) {
	if path == "" {
		return framed.DescriptorBytes(), nil
	}
	return os.ReadFile(path)
}
