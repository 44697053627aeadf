// Package logging configures the process-wide zerolog logger.
package logging

import (
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Viper keys consumed by Init. The root command binds them to flags and
// PORTCULLIS_* environment variables.
const (
	LevelKey   = "log.level"
	FormatKey  = "log.format"
	NoColorKey = "log.no_color"
)

// Options overrides the viper-bound settings. Passing nil to Init reads
// everything from viper.
type Options struct {
	Level   string
	Format  string // console | json
	NoColor bool
}

// InitDefault installs a console logger at info level. It runs before
// flags are parsed so early startup problems are still readable.
func InitDefault() {
	Init(&Options{Level: "info", Format: "console"})
}

// Init configures the global logger. A nil opts reads level, format, and
// color handling from viper.
func Init(opts *Options) {
	if opts == nil {
		opts = &Options{
			Level:   viper.GetString(LevelKey),
			Format:  viper.GetString(FormatKey),
			NoColor: viper.GetBool(NoColorKey),
		}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(opts.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	switch opts.Format {
	case "json":
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	default:
		log.Logger = log.Output(zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: time.Kitchen,
			NoColor:    opts.NoColor,
		})
	}
}
