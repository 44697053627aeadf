package directory

import (
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/quernstone/portcullis/internal/config"
	"github.com/quernstone/portcullis/internal/core"
)

// Build constructs the directory adapter named by cfg.Backend. Adapters
// holding connections implement io.Closer; the caller owns the close.
func Build(cfg config.DirectoryConfig) (core.Directory, error) {
	switch cfg.Backend {
	case config.BackendMemory:
		return NewMemory(cfg.Principals), nil

	case config.BackendRedis:
		var rc RedisConfig
		decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Metadata: nil,
			Result:   &rc,
		})
		if err != nil {
			return nil, fmt.Errorf("building decoder for redis directory options: %w", err)
		}
		if err := decoder.Decode(cfg.Options); err != nil {
			return nil, fmt.Errorf("decoding redis directory options: %w", err)
		}
		return NewRedis(rc)

	default:
		return nil, fmt.Errorf("unknown directory backend %q", cfg.Backend)
	}
}
