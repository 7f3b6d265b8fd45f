package main

import (
	"flag"

	"github.com/danmuck/rilctl/internal/config"
	"github.com/danmuck/rilctl/internal/logging"
	"github.com/rs/zerolog/log"
)

const defaultPath = "cmd/rilctl/config.toml"

func main() {
	logging.ConfigureRuntime()

	format := flag.String("format", "toml", "template format: toml|yaml")
	output := flag.String("output", "", "output path for config template")
	validate := flag.Bool("validate", false, "validate an existing config file")
	input := flag.String("input", defaultPath, "config path for validation")
	force := flag.Bool("force", false, "overwrite existing config file")
	flag.Parse()

	if *validate {
		cfg, err := config.Load(*input)
		if err != nil {
			log.Fatal().Err(err).Msg("config validation failed")
		}
		log.Info().Str("path", *input).Str("socket", cfg.Client.Address).Msg("validated config")
		return
	}

	target := *output
	if target == "" {
		target = defaultPath
		if *format == "yaml" || *format == "yml" {
			target = "cmd/rilctl/config.yaml"
		}
	}
	if err := config.WriteTemplate(target, *format, *force); err != nil {
		log.Fatal().Err(err).Msg("write config template")
	}
	log.Info().Str("format", *format).Str("path", target).Msg("wrote config template")
}
