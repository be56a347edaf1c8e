package main

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type config struct {
	Server struct {
		Address string `default:":8080" required:"true"`
	}

	Database struct {
		URL            string        `required:"true"`
		ConnectTimeout time.Duration `default:"1m" split_words:"true"`
	}

	Subscription struct {
		Name          string `default:"catchup-projector"`
		QueueCapacity int    `default:"32" split_words:"true"`
		MaxRetries    uint64 `default:"5" split_words:"true"`
	}

	Kafka struct {
		Brokers []string
		Topic   string `default:"user-events"`
	}

	Mongo struct {
		URI      string
		Database string `default:"catchup"`
	}

	Firestore struct {
		ProjectID       string `split_words:"true"`
		Endpoint        string
		CredentialsFile string `split_words:"true"`
		Collection      string
	}
}

func parseConfig() (*config, error) {
	var config config

	if err := envconfig.Process("", &config); err != nil {
		return nil, fmt.Errorf("config: failed to parse from env, %w", err)
	}

	return &config, nil
}
