package connectors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Empty means the production IBKR endpoint.
	FlexBaseURL string `envconfig:"FLEX_BASE_URL" default:""`

	// How long to wait before the first statement download attempt, and
	// between attempts while generation is still in progress.
	FlexGenerationWait time.Duration `envconfig:"FLEX_GENERATION_WAIT" default:"20s"`

	// How many download attempts before giving up on a reference code.
	FlexStatementTries int `envconfig:"FLEX_STATEMENT_TRIES" default:"5"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
