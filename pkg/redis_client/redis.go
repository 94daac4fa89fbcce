package redis_client

import (
	"context"
	"strconv"

	"github.com/redis/go-redis/v9"
	"github.com/travigo/punctuality/pkg/util"
)

var Client *redis.Client

const defaultConnectionAddress = "localhost:6379"
const defaultConnectionPassword = ""
const defaultDatabase = 0

func Connect() error {
	address := defaultConnectionAddress
	password := defaultConnectionPassword
	database := defaultDatabase

	env := util.GetEnvironmentVariables()

	if env["PUNCTUALITY_REDIS_ADDRESS"] != "" {
		address = env["PUNCTUALITY_REDIS_ADDRESS"]
	}

	if env["PUNCTUALITY_REDIS_PASSWORD"] != "" {
		password = env["PUNCTUALITY_REDIS_PASSWORD"]
	}

	if env["PUNCTUALITY_REDIS_DATABASE"] != "" {
		if n, err := strconv.Atoi(env["PUNCTUALITY_REDIS_DATABASE"]); err == nil {
			database = n
		} else {
			return err
		}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: password,
		DB:       database,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		client.Close()
		return err
	}

	Client = client

	return nil
}
