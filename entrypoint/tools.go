package main

import (
	"context"
	"errors"

	"github.com/kelseyhightower/envconfig"
	"sglocations.io/ner/compose"
	"sglocations.io/ner/logger"
	"sglocations.io/ner/merge"
	"sglocations.io/ner/s3client"
)

type composeConfig struct {
	ModelsPath string `envconfig:"SGLOC_MODELS_PATH" required:"true"`
}

func runMerge(sources []string, dest string, dedupe bool) error {
	if len(dest) == 0 {
		return errors.New("-merge-locations needs -out")
	}
	if len(sources) == 0 {
		return errors.New("-merge-locations needs at least one source")
	}

	sglocLogger := logger.NewLogger("Main")
	storage := merge.Locations{}
	if merge.NeedsObjectStore(append([]string{dest}, sources...)...) {
		s3Client, err := s3client.New()
		if err != nil {
			return err
		}
		defer s3Client.Close()
		storage.Objects = s3Client
		sglocLogger = sglocLogger.With().Str("bucket", s3Client.Bucket()).Logger()
	}

	n, err := merge.Merge(context.Background(), storage, sources, dest, merge.Options{Dedupe: dedupe})
	if err != nil {
		return err
	}
	sglocLogger.Info().Int("elements", n).Str("dest", dest).Msg("Merged locations")
	return nil
}

func runCompose(base string, ruler string, name string, title string) error {
	if len(base) == 0 || len(ruler) == 0 || len(name) == 0 {
		return errors.New("-compose needs -base, -ruler and -name")
	}
	var config composeConfig
	if err := envconfig.Process("", &config); err != nil {
		return err
	}
	_, err := compose.ComposeDir(config.ModelsPath, base, ruler, name, title)
	return err
}
