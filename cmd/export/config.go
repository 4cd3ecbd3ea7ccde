package export

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Export from the local sqlite store instead of the main database.
	Local bool `envconfig:"EXPORT_LOCAL" default:"false"`

	OutputDir string `envconfig:"OUTPUT_DIR" default:"reports"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}
