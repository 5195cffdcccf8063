package main

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/rs/zerolog"
	"sglocations.io/ner/abbrev"
	"sglocations.io/ner/api"
	"sglocations.io/ner/logger"
	"sglocations.io/ner/pipeline"
	"sglocations.io/ner/types"
	"sglocations.io/ner/worker"
)

type Config struct {
	ModelsPath        string `envconfig:"SGLOC_MODELS_PATH" required:"true"`
	DataPath          string `envconfig:"SGLOC_DATA_PATH" required:"true"`
	AbbreviationsPath string `envconfig:"SGLOC_ABBREVIATIONS_PATH" required:"true"`
	DefaultModel      string `envconfig:"SGLOC_DEFAULT_MODEL" default:""`
	RestAPIActive     bool   `envconfig:"SGLOC_REST_API_ACTIVE" default:"true"`
	RestAPIPort       string `envconfig:"SGLOC_REST_API_PORT" default:"8000"`
	WorkerActive      bool   `envconfig:"SGLOC_WORKER_ACTIVE" default:"false"`
}

const modelsLoadMaxRetries = 5

func main() {
	mergeLocations := flag.Bool("merge-locations", false, "merge JSON location lists given as arguments and exit")
	mergeOut := flag.String("out", "", "destination of -merge-locations, a path or s3://key")
	dedupe := flag.Bool("dedupe", false, "drop repeated elements when merging")
	composeModels := flag.Bool("compose", false, "write a composite model config and exit")
	base := flag.String("base", "", "model the composed pipeline falls back to")
	ruler := flag.String("ruler", "", "dictionary model that runs first in the composed pipeline")
	name := flag.String("name", "", "name of the composed model")
	title := flag.String("title", "", "title of the composed model")
	flag.Parse()

	logger.SetupLogging()
	sglocLogger := logger.NewLogger("Main")
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		sglocLogger.Fatal().Caller().Err(err).Msg("Failed to read .env")
		os.Exit(1)
	}

	switch {
	case *mergeLocations:
		if err := runMerge(flag.Args(), *mergeOut, *dedupe); err != nil {
			sglocLogger.Fatal().Caller().Err(err).Msg("Failed to merge locations")
			os.Exit(1)
		}
		return
	case *composeModels:
		if err := runCompose(*base, *ruler, *name, *title); err != nil {
			sglocLogger.Fatal().Caller().Err(err).Msg("Failed to compose models")
			os.Exit(1)
		}
		return
	}

	var config Config
	if err := envconfig.Process("", &config); err != nil {
		sglocLogger.Fatal().Caller().Err(err).Msg("Failed to read environment")
		os.Exit(1)
	}
	serve(config, &sglocLogger)
}

func serve(config Config, sglocLogger *zerolog.Logger) {
	fatalErrLogger := sglocLogger.Fatal().Caller()

	table, err := abbrev.LoadTable(config.AbbreviationsPath)
	if err != nil {
		fatalErrLogger.Err(err).Msg("Failed to load abbreviation table")
		os.Exit(1)
	}
	expander := abbrev.NewExpander(table)
	sglocLogger.Info().Int("rows", len(table)).Int("abbreviations", expander.Len()).Msg("Loaded abbreviation table")

	registry, err := loadRegistry(config, sglocLogger)
	if err != nil {
		fatalErrLogger.Err(err).Msgf("Could not load models after %d retries, exiting", modelsLoadMaxRetries)
		os.Exit(1)
	}
	defaultModel, err := registry.Default(config.DefaultModel)
	if err != nil {
		fatalErrLogger.Err(err).Str("model", config.DefaultModel).Msg("Default model is not available")
		os.Exit(1)
	}
	sglocLogger.Info().Str("model", defaultModel.Config.Name).Msg("Using default model")

	comparer := pipeline.NewComparer(registry, expander)
	apiRequest := &api.Request{Comparer: comparer, Default: defaultModel}
	mux := http.NewServeMux()
	apiRequest.Routes(mux)
	host := fmt.Sprintf(":%s", config.RestAPIPort)

	switch {
	case config.WorkerActive:
		if config.RestAPIActive {
			go func() {
				sglocLogger.Info().Msgf("REST API on %s", host)
				err := http.ListenAndServe(host, mux)
				sglocLogger.Fatal().Caller().Err(err).Msg("REST API stopped with error")
				os.Exit(1)
			}()
		}
		runWorker(pipeline.New(comparer, defaultModel), sglocLogger)
	case config.RestAPIActive:
		sglocLogger.Info().Msgf("REST API on %s", host)
		err = http.ListenAndServe(host, mux)
		fatalErrLogger.Err(err).Msg("REST API stopped with error")
		os.Exit(1)
	default:
		fatalErrLogger.Msg("Neither the REST API nor the worker is active")
		os.Exit(1)
	}
}

func loadRegistry(config Config, sglocLogger *zerolog.Logger) (*pipeline.Registry, error) {
	var err error
	for retry := 0; retry < modelsLoadMaxRetries; retry++ {
		if retry > 0 {
			time.Sleep(5 * time.Second)
		}
		var cfgs []types.ModelConfig
		cfgs, err = types.LoadModelConfigs(config.ModelsPath)
		if err != nil {
			sglocLogger.Err(err).Msg("Failed to load model configs. Retrying in 5 sec")
			continue
		}
		sglocLogger.Info().Msgf("Loaded %d model configs", len(cfgs))

		var registry *pipeline.Registry
		registry, err = pipeline.NewRegistry(cfgs, config.DataPath)
		if err != nil {
			sglocLogger.Err(err).Msg("Failed to build models. Retrying in 5 sec")
			continue
		}
		return registry, nil
	}
	return nil, err
}

func runWorker(ppln pipeline.Pipeline, sglocLogger *zerolog.Logger) {
	sglocLogger.Info().Msg("Start locations worker")
	for {
		rmqWorker, err := worker.New(ppln)
		if err != nil {
			sglocLogger.Fatal().Err(err).Msg("Could not initialize RMQ worker")
			os.Exit(1)
		}
		if err = rmqWorker.StartWorker(); err != nil {
			sglocLogger.Err(err).Msg("Worker returned with error. Launching new in 5 seconds")
			time.Sleep(5 * time.Second)
		}
	}
}
