package network

import (
	"fmt"

	"github.com/go-redis/redis/v7"
)

// RedisClient stores per-asset signing results so operators (and the
// presentation layer) can watch a batch progress and inspect outcomes
// after the fact. Results live in a hash keyed by batch ID, one field
// per asset. Values are the JSON form of service.SigningResult; this
// client deals only in JSON so it stays ignorant of model types.
type RedisClient struct {
	client *redis.Client
}

func NewRedisClient(address, password string, db int) *RedisClient {
	return &RedisClient{
		client: redis.NewClient(&redis.Options{
			Addr:     address,
			Password: password,
			DB:       db,
		}),
	}
}

func (c *RedisClient) Ping() (string, error) {
	return c.client.Ping().Result()
}

// SigningResultGet returns the JSON form of the signing result for
// one asset in one batch.
func (c *RedisClient) SigningResultGet(batchID, assetName string) (string, error) {
	data, err := c.client.HGet(batchKey(batchID), assetField(assetName)).Result()
	if err != nil {
		return "", fmt.Errorf("SigningResultGet (%s, %s): %s",
			batchID, assetName, err.Error())
	}
	return data, nil
}

// SigningResultSave stores the JSON form of one asset's signing result.
func (c *RedisClient) SigningResultSave(batchID, assetName, jsonData string) error {
	_, err := c.client.HSet(batchKey(batchID), assetField(assetName), jsonData).Result()
	return err
}

func (c *RedisClient) SigningResultDelete(batchID, assetName string) error {
	_, err := c.client.HDel(batchKey(batchID), assetField(assetName)).Result()
	return err
}

// BatchDelete removes all results for a batch.
func (c *RedisClient) BatchDelete(batchID string) error {
	_, err := c.client.Del(batchKey(batchID)).Result()
	return err
}

// BatchAssetNames returns the names of all assets with results in the
// given batch.
func (c *RedisClient) BatchAssetNames(batchID string) ([]string, error) {
	fields, err := c.client.HKeys(batchKey(batchID)).Result()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(fields))
	for _, field := range fields {
		if len(field) > 6 && field[:6] == "asset:" {
			names = append(names, field[6:])
		}
	}
	return names, nil
}

func batchKey(batchID string) string {
	return fmt.Sprintf("batch:%s", batchID)
}

func assetField(assetName string) string {
	return fmt.Sprintf("asset:%s", assetName)
}
