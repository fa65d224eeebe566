package main

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/mediaprov/provenance-services/models/common"
	"github.com/mediaprov/provenance-services/util"
	"github.com/mediaprov/provenance-services/util/cli"
	"github.com/mediaprov/provenance-services/workers"
)

func main() {
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		os.Exit(0)
	}

	context := common.NewContext()

	pidFile := filepath.Join(context.Config.BaseWorkingDir, "provenance_worker.pid")
	if util.IsRunningInOtherProcess(pidFile) {
		fmt.Fprintf(os.Stderr, "provenance_worker is already running (pid file %s)\n", pidFile)
		os.Exit(1)
	}
	if err := util.WritePidFile(pidFile); err != nil {
		fmt.Fprintf(os.Stderr, "Cannot write pid file %s: %v\n", pidFile, err)
		os.Exit(1)
	}
	defer util.DeletePidFile(pidFile)

	settings := workers.SettingsFromConfig(context.Config)
	settings.MaxAttempts = opts.MaxAttempts
	settings.RequeueTimeout = opts.RequeueTimeout
	if opts.NumWorkers > 0 {
		settings.MaxConcurrentSigners = opts.NumWorkers
	}

	batchSigner, err := workers.NewBatchSignerFromContext(context, settings)
	if err != nil {
		context.Logger.Errorf("Cannot start batch signer: %v", err)
		fmt.Fprintf(os.Stderr, "Cannot start batch signer: %v\n", err)
		os.Exit(1)
	}

	listener := workers.NewBatchListener(context, batchSigner, settings)
	if err = listener.RegisterAsNsqConsumer(); err != nil {
		context.Logger.Errorf("Cannot register NSQ consumer: %v", err)
		fmt.Fprintf(os.Stderr, "Cannot register NSQ consumer: %v\n", err)
		os.Exit(1)
	}

	killChannel := make(chan os.Signal, 1)
	signal.Notify(killChannel, syscall.SIGINT, syscall.SIGTERM)
	<-killChannel
	context.Logger.Info("Shutting down")
	batchSigner.CodecWorker.Stop()
}

func printHelp() {
	message := `
provenance_worker subscribes to the batch-sign topic in NSQ. For each
queued batch, it downloads the batch's assets from S3, signs each one
with an embedded provenance manifest, and writes the signed containers
to the configured output sink. Per-asset status is saved to Redis and
published to the status topic as each asset moves through the pipeline.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
