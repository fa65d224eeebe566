package main

import (
	"errors"
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
	assetPath := ""
	manifestPath := ""
	scan := false
	flag.StringVar(&assetPath, "asset", "", "Path to the asset to read")
	flag.StringVar(&manifestPath, "manifest", "", "Path to a detached manifest to validate against the asset")
	flag.BoolVar(&scan, "scan", false, "Scan the asset for a watermark instead of reading a manifest")
	cli.Init()
	opts := cli.ParseOpts()
	if opts.PrintHelp {
		printHelp()
		os.Exit(0)
	}
	if assetPath == "" {
		fmt.Fprintln(os.Stderr, "-asset is required")
		os.Exit(2)
	}

	context := common.NewContext()
	verifier, err := workers.NewVerifierFromContext(context, opts.ChannelBufferSize)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot start codec worker: %v\n", err)
		os.Exit(1)
	}
	defer verifier.CodecWorker.Stop()

	asset, err := loadAsset(assetPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot read asset %s: %v\n", assetPath, err)
		os.Exit(1)
	}

	if scan {
		result, err := verifier.Scan(asset)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Scan failed: %v\n", err)
			os.Exit(1)
		}
		if result.Found {
			fmt.Printf("Watermark found at offset %d\n", result.Offset)
		} else {
			fmt.Println("No watermark found")
		}
		return
	}

	var store *service.ManifestStore
	if manifestPath != "" {
		manifest, err := os.ReadFile(manifestPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Cannot read manifest %s: %v\n", manifestPath, err)
			os.Exit(1)
		}
		store, err = verifier.ReadDetachedManifest(manifest, asset)
		exitOnReadError(err)
	} else {
		store, err = verifier.ReadManifest(asset)
		exitOnReadError(err)
	}

	jsonData, err := store.ToJSON()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Cannot serialize manifest store: %v\n", err)
		os.Exit(1)
	}
	fmt.Println(jsonData)
}

func loadAsset(path string) (*service.Asset, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return service.NewAsset(filepath.Base(path), "", data)
}

func exitOnReadError(err error) {
	if err == nil {
		return
	}
	switch {
	case errors.Is(err, common.ErrNoManifestFound):
		fmt.Fprintln(os.Stderr, "Asset carries no provenance manifest")
		os.Exit(3)
	case errors.Is(err, common.ErrMalformedManifest):
		fmt.Fprintf(os.Stderr, "Manifest is malformed: %v\n", err)
		os.Exit(4)
	case errors.Is(err, common.ErrAssetMismatch):
		fmt.Fprintln(os.Stderr, "Detached manifest does not match this asset")
		os.Exit(5)
	default:
		fmt.Fprintf(os.Stderr, "Cannot read manifest: %v\n", err)
		os.Exit(1)
	}
}

func printHelp() {
	message := `
manifest_reader reads the provenance manifest embedded in an asset and
prints the manifest store as JSON. With -manifest, it validates a
detached manifest against the asset instead. With -scan, it scans the
asset for a watermark.

Exit codes: 3 no manifest found, 4 malformed manifest, 5 detached
manifest does not match the asset.
`
	fmt.Println(message)
	fmt.Println(cli.EnvMessage)
}
