package common

import (
	"github.com/mediaprov/provenance-services/network"
	"github.com/mediaprov/provenance-services/util/logger"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/op/go-logging"
)

// Context carries the connections every worker needs: config, logger,
// the Redis result store, the nsqd publisher, and S3 clients.
type Context struct {
	Config      *Config
	Logger      *logging.Logger
	NSQClient   *network.NSQClient
	RedisClient *network.RedisClient
	S3Clients   map[string]*minio.Client
}

func NewContext() *Context {
	config := NewConfig()
	_logger := getLogger(config)
	return &Context{
		Config:      config,
		Logger:      _logger,
		NSQClient:   getNsqClient(config),
		RedisClient: getRedisClient(config),
		S3Clients:   getS3Clients(config),
	}
}

func getLogger(config *Config) *logging.Logger {
	logger, _ := logger.InitLogger(config.LogDir, config.LogLevel)
	return logger
}

func getNsqClient(config *Config) *network.NSQClient {
	return network.NewNSQClient(config.NsqURL)
}

func getRedisClient(config *Config) *network.RedisClient {
	return network.NewRedisClient(
		config.RedisURL,
		config.RedisPassword,
		config.RedisDefaultDB)
}

func getS3Clients(config *Config) map[string]*minio.Client {
	s3Clients := make(map[string]*minio.Client, len(config.S3Credentials))
	useSSL := true
	if config.ConfigName == "dev" || config.ConfigName == "test" {
		useSSL = false // talking to localhost in dev and test
	}
	for provider, creds := range config.S3Credentials {
		if creds.Host == "" {
			continue
		}
		client, err := minio.New(
			creds.Host,
			&minio.Options{
				Creds:  credentials.NewStaticV4(creds.KeyID, creds.SecretKey, ""),
				Secure: useSSL,
			})
		if err != nil {
			panic(err)
		}
		s3Clients[provider] = client
	}
	return s3Clients
}
