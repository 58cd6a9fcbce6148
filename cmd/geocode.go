package main

import (
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/darren-owldoor/owldoor-geocoder/internal/batch"
	"github.com/darren-owldoor/owldoor-geocoder/internal/cache"
	"github.com/darren-owldoor/owldoor-geocoder/pkg/geocode"
)

var (
	geocodeInput     string
	geocodeOutput    string
	geocodeProvider  string
	geocodeAPIKey    string
	geocodeAddress   string
	geocodeStreet    string
	geocodeCity      string
	geocodeState     string
	geocodeZip       string
	geocodeResume    bool
	geocodeChunkSize int
	geocodeDelimiter string
	geocodeEncoding  string
	geocodeCachePath string
	geocodeLimit     int
)

var geocodeCmd = &cobra.Command{
	Use:   "geocode",
	Short: "Geocode a CSV file row by row",
	Long: `Reads a CSV file, geocodes each row's address, and writes the input rows
plus four columns (latitude, longitude, geocode_status, geocode_address) to
the output file. Progress is checkpointed every chunk; an interrupted run
restarted with --resume continues from the last committed chunk.

Examples:
  # Free OSM provider, single address column
  owldoor-geocoder geocode --input agents.csv --output out.csv --address full_address

  # Component columns
  owldoor-geocoder geocode --input agents.csv --output out.csv \
    --street street --city city --state state --zip zip_code

  # Google with resume
  owldoor-geocoder geocode --input agents.csv --output out.csv \
    --address address --provider google --api-key "$KEY" --resume`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		providerName := geocodeProvider
		if providerName == "" {
			providerName = cfg.Provider.Name
		}
		apiKey := geocodeAPIKey
		if apiKey == "" {
			apiKey = cfg.Provider.APIKey
		}

		// Provider construction validates configuration (known name, key
		// present) before anything is read or written.
		provider, err := geocode.New(geocode.Config{
			Provider: providerName,
			APIKey:   apiKey,
			Endpoint: cfg.Provider.Endpoint,
		})
		if err != nil {
			return err
		}

		opts := batch.Options{
			InputPath:  geocodeInput,
			OutputPath: geocodeOutput,
			Mapping: batch.ColumnMapping{
				Address: geocodeAddress,
				Street:  geocodeStreet,
				City:    geocodeCity,
				State:   geocodeState,
				Zip:     geocodeZip,
			},
			Provider:  provider,
			ChunkSize: chunkSizeOrDefault(geocodeChunkSize, cfg.Batch.ChunkSize),
			Resume:    geocodeResume,
			Delimiter: delimiterRune(geocodeDelimiter, cfg.Batch.Delimiter),
			Encoding:  encodingOrDefault(geocodeEncoding, cfg.Batch.Encoding),
			Limit:     geocodeLimit,
		}

		cachePath := geocodeCachePath
		if cachePath == "" {
			cachePath = cfg.Batch.CachePath
		}
		if cachePath != "" {
			store, err := cache.Open(cachePath)
			if err != nil {
				return eris.Wrap(err, "geocode: open cache")
			}
			defer store.Close() //nolint:errcheck
			opts.Cache = store
			zap.L().Info("result cache enabled", zap.String("path", cachePath))
		}

		proc, err := batch.New(opts)
		if err != nil {
			return err
		}

		stats, err := proc.Run(ctx)
		if err != nil {
			return eris.Wrap(err, "geocode: run aborted")
		}

		zap.L().Info("run finished",
			zap.Int("succeeded", stats.Succeeded),
			zap.Int("failed", stats.Failed),
			zap.Int("skipped", stats.Skipped),
			zap.Int("cache_hits", stats.CacheHits),
			zap.Duration("elapsed", stats.Elapsed),
		)
		return nil
	},
}

func init() {
	geocodeCmd.Flags().StringVar(&geocodeInput, "input", "", "input CSV path (required)")
	geocodeCmd.Flags().StringVar(&geocodeOutput, "output", "", "output CSV path (required)")
	geocodeCmd.Flags().StringVarP(&geocodeProvider, "provider", "p", "", "provider: nominatim, google, or mapbox (default from config)")
	geocodeCmd.Flags().StringVarP(&geocodeAPIKey, "api-key", "k", "", "API key (required for google/mapbox)")
	geocodeCmd.Flags().StringVarP(&geocodeAddress, "address", "a", "", "single address column name")
	geocodeCmd.Flags().StringVar(&geocodeStreet, "street", "", "street column name")
	geocodeCmd.Flags().StringVar(&geocodeCity, "city", "", "city column name")
	geocodeCmd.Flags().StringVar(&geocodeState, "state", "", "state column name")
	geocodeCmd.Flags().StringVar(&geocodeZip, "zip", "", "zip code column name")
	geocodeCmd.Flags().BoolVarP(&geocodeResume, "resume", "r", false, "resume from the last committed checkpoint")
	geocodeCmd.Flags().IntVarP(&geocodeChunkSize, "chunk-size", "c", 0, "checkpoint interval in rows (default 1000)")
	geocodeCmd.Flags().StringVar(&geocodeDelimiter, "delimiter", "", "field delimiter (default ',')")
	geocodeCmd.Flags().StringVar(&geocodeEncoding, "encoding", "", "input encoding: utf8, latin1, windows-1252")
	geocodeCmd.Flags().StringVar(&geocodeCachePath, "cache", "", "SQLite result cache path (off when empty)")
	geocodeCmd.Flags().IntVar(&geocodeLimit, "limit", 0, "max rows to process this run (0 = all)")
	_ = geocodeCmd.MarkFlagRequired("input")
	_ = geocodeCmd.MarkFlagRequired("output")
	rootCmd.AddCommand(geocodeCmd)
}

// chunkSizeOrDefault picks the flag value, then config, then the built-in default.
func chunkSizeOrDefault(flag, configured int) int {
	if flag > 0 {
		return flag
	}
	if configured > 0 {
		return configured
	}
	return batch.DefaultChunkSize
}

// delimiterRune picks the first rune of the flag value, then config, then ','.
func delimiterRune(flag, configured string) rune {
	for _, s := range []string{flag, configured} {
		if s != "" {
			return []rune(s)[0]
		}
	}
	return ','
}

func encodingOrDefault(flag, configured string) string {
	if flag != "" {
		return flag
	}
	return configured
}
