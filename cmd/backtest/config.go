package backtest

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	StrategyParams string `envconfig:"STRATEGY_PARAMS" default:"strategy.yaml"`
	OutputDir      string `envconfig:"OUTPUT_DIR" default:"reports"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
