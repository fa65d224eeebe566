package common

import (
	"fmt"
	"os"

	"github.com/mediaprov/provenance-services/constants"
	"github.com/mediaprov/provenance-services/util"
	"github.com/op/go-logging"
	"github.com/spf13/viper"
)

type Config struct {
	BaseWorkingDir    string
	ConfigName        string
	LogDir            string
	LogLevel          logging.Level
	ChannelBufferSize int

	// MaxConcurrentSigners bounds how many asset pipelines run at
	// once. The default of 1 processes assets strictly sequentially,
	// which bounds codec worker memory pressure.
	MaxConcurrentSigners int

	// SigningAlgorithm is the algorithm the trust source's key is
	// bound to. One of constants.SigningAlgorithms.
	SigningAlgorithm string

	// TrustCertSource and TrustKeySource locate the PEM certificate
	// bundle and PEM private key: a file path, an http(s) URL, or an
	// s3://bucket/key URI.
	TrustCertSource string
	TrustKeySource  string

	// TsaURL is the RFC 3161 timestamp authority endpoint. Empty
	// disables timestamping.
	TsaURL string

	// CodecModulePath and ScannerModulePath locate the codec module
	// binaries loaded at startup. An empty codec path selects the
	// built-in framed reference codec.
	CodecModulePath   string
	ScannerModulePath string

	NsqLookupd     string
	NsqURL         string
	NsqBatchTopic  string
	NsqChannel     string
	NsqStatusTopic string

	RedisDefaultDB int
	RedisPassword  string
	RedisURL       string

	S3Credentials map[string]S3Credentials

	// OutputDir receives signed assets when no output bucket is set.
	// OutputBucket/OutputProvider select an S3 sink instead.
	OutputDir      string
	OutputBucket   string
	OutputProvider string
}

type S3Credentials struct {
	Host      string
	KeyID     string
	SecretKey string
}

var logLevels = map[string]logging.Level{
	"CRITICAL": logging.CRITICAL,
	"ERROR":    logging.ERROR,
	"WARNING":  logging.WARNING,
	"NOTICE":   logging.NOTICE,
	"INFO":     logging.INFO,
	"DEBUG":    logging.DEBUG,
}

// Returns a new config based on ENV var MEDIAPROV_ENV
func NewConfig() *Config {
	config := loadConfig()
	config.expandPaths()
	config.sanityCheck()
	config.makeDirs()
	return config
}

func loadConfig() *Config {
	configDir, envName := getEnvVars()
	v := viper.New()
	v.AddConfigPath(configDir)
	v.SetConfigName(".env." + envName)
	v.SetConfigType("env")
	v.SetDefault("CHANNEL_BUFFER_SIZE", 20)
	v.SetDefault("MAX_CONCURRENT_SIGNERS", 1)
	v.SetDefault("SIGNING_ALGORITHM", constants.AlgEs256)
	v.SetDefault("NSQ_BATCH_TOPIC", constants.TopicBatchSign)
	v.SetDefault("NSQ_STATUS_TOPIC", constants.TopicStatus)
	v.SetDefault("NSQ_CHANNEL", "provenance_worker")
	err := v.ReadInConfig()
	if err != nil {
		panic(fmt.Errorf("Fatal error config file: %s \n", err))
	}
	return &Config{
		BaseWorkingDir:       v.GetString("BASE_WORKING_DIR"),
		ConfigName:           envName,
		LogDir:               v.GetString("LOG_DIR"),
		LogLevel:             logLevels[v.GetString("LOG_LEVEL")],
		ChannelBufferSize:    v.GetInt("CHANNEL_BUFFER_SIZE"),
		MaxConcurrentSigners: v.GetInt("MAX_CONCURRENT_SIGNERS"),
		SigningAlgorithm:     v.GetString("SIGNING_ALGORITHM"),
		TrustCertSource:      v.GetString("TRUST_CERT_SOURCE"),
		TrustKeySource:       v.GetString("TRUST_KEY_SOURCE"),
		TsaURL:               v.GetString("TSA_URL"),
		CodecModulePath:      v.GetString("CODEC_MODULE_PATH"),
		ScannerModulePath:    v.GetString("SCANNER_MODULE_PATH"),
		NsqLookupd:           v.GetString("NSQ_LOOKUPD"),
		NsqURL:               v.GetString("NSQ_URL"),
		NsqBatchTopic:        v.GetString("NSQ_BATCH_TOPIC"),
		NsqChannel:           v.GetString("NSQ_CHANNEL"),
		NsqStatusTopic:       v.GetString("NSQ_STATUS_TOPIC"),
		RedisDefaultDB:       v.GetInt("REDIS_DEFAULT_DB"),
		RedisPassword:        v.GetString("REDIS_PASSWORD"),
		RedisURL:             v.GetString("REDIS_URL"),
		S3Credentials: map[string]S3Credentials{
			constants.S3ClientAWS: {
				Host:      v.GetString("S3_AWS_HOST"),
				KeyID:     v.GetString("S3_AWS_KEY"),
				SecretKey: v.GetString("S3_AWS_SECRET"),
			},
			constants.S3ClientLocal: {
				Host:      v.GetString("S3_LOCAL_HOST"),
				KeyID:     v.GetString("S3_LOCAL_KEY"),
				SecretKey: v.GetString("S3_LOCAL_SECRET"),
			},
		},
		OutputDir:      v.GetString("OUTPUT_DIR"),
		OutputBucket:   v.GetString("OUTPUT_BUCKET"),
		OutputProvider: v.GetString("OUTPUT_PROVIDER"),
	}
}

func getEnvVars() (string, string) {
	configDir := getRequiredEnvVar("MEDIAPROV_CONFIG_DIR")
	envName := getRequiredEnvVar("MEDIAPROV_ENV")
	return configDir, envName
}

func getRequiredEnvVar(varName string) string {
	value := os.Getenv(varName)
	if value == "" {
		panic(fmt.Sprintf("Required env var %s not set", varName))
	}
	return value
}

// Expand ~ to home dir in path settings.
func (c *Config) expandPaths() {
	c.BaseWorkingDir = expandPath(c.BaseWorkingDir)
	c.LogDir = expandPath(c.LogDir)
	c.OutputDir = expandPath(c.OutputDir)
}

func expandPath(dirName string) string {
	dir, err := util.ExpandTilde(dirName)
	if err != nil {
		panic(err)
	}
	return dir
}

func (c *Config) sanityCheck() {
	if !constants.AlgorithmIsSupported(c.SigningAlgorithm) {
		panic(fmt.Sprintf("Unsupported signing algorithm in config: %q", c.SigningAlgorithm))
	}
	if c.MaxConcurrentSigners < 1 {
		panic("MAX_CONCURRENT_SIGNERS must be at least 1")
	}
}

func (c *Config) makeDirs() {
	dirs := []string{
		c.BaseWorkingDir,
		c.LogDir,
	}
	if c.OutputDir != "" {
		dirs = append(dirs, c.OutputDir)
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		err := os.MkdirAll(dir, 0755)
		if err != nil {
			panic(err)
		}
	}
}
