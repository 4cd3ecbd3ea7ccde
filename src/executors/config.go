package executors

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// How often to pull fresh Flex statements. IBKR regenerates trade
	// confirmation reports a handful of times per day, so short periods
	// only re-download the same window.
	LoopPeriod time.Duration `envconfig:"LOOP_PERIOD" default:"1h"`

	// Path to the YAML file describing the strategy the fills belong to.
	StrategyParams string `envconfig:"STRATEGY_PARAMS" default:"strategy.yaml"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
