package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/mediaprov/provenance-services/models/common"
	"github.com/mediaprov/provenance-services/models/service"
	"github.com/mediaprov/provenance-services/util/cli"
	"github.com/mediaprov/provenance-services/workers"
)

func main() {
	inputDir := ""
	batchID := ""
	flag.StringVar(&inputDir, "input-dir", "", "Directory containing the assets to sign")
	flag.StringVar(&batchID, "batch-id", "", "Identifier for this batch run (generated if empty)")
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		os.Exit(0)
	}
	if inputDir == "" {
		fmt.Fprintln(os.Stderr, "-input-dir is required")
		os.Exit(2)
	}

	context := common.NewContext()
	settings := workers.SettingsFromConfig(context.Config)
	if opts.NumWorkers > 0 {
		settings.MaxConcurrentSigners = opts.NumWorkers
	}

	batchSigner, err := workers.NewBatchSignerFromContext(context, settings)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot start batch signer: %v\n", err)
		os.Exit(1)
	}
	defer batchSigner.CodecWorker.Stop()

	assets, err := loadAssets(inputDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read assets from %s: %v\n", inputDir, err)
		os.Exit(1)
	}
	if len(assets) == 0 {
		fmt.Fprintf(os.Stderr, "No assets found in %s\n", inputDir)
		os.Exit(1)
	}

	results, err := batchSigner.RunBatch(batchID, assets)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Batch was rejected: %v\n", err)
		os.Exit(1)
	}

	failed := 0
	for _, result := range results {
		printResult(result)
		if !result.Succeeded() {
			failed++
		}
	}
	fmt.Printf("\n%d of %d assets signed\n", len(results)-failed, len(results))
	if failed > 0 {
		os.Exit(1)
	}
}

func loadAssets(dir string) ([]*service.Asset, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	assets := make([]*service.Asset, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return nil, err
		}
		asset, err := service.NewAsset(entry.Name(), "", data)
		if err != nil {
			return nil, err
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func printResult(result *service.SigningResult) {
	fmt.Printf("%-40s %-16s %s\n", result.AssetName, result.Status, result.RunTime())
	for _, procErr := range result.Errors {
		fmt.Printf("    %s\n", procErr.Message)
	}
}

func printHelp() {
	message := `
batch_signer signs every asset in a directory in one batch. Each asset
gets an embedded provenance manifest signed with the configured trust
key, and the signed containers go to the configured output sink. The
exit code is non-zero if any asset failed.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
