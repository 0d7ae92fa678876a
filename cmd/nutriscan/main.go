// Package main provides the nutriscan binary entry point: a CLI front end
// for the nutrition analysis engine, useful for development and offline
// testing against the mock model server.
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"runtime"
	"strings"

	// Register model providers via init()
	_ "github.com/scanly/nutriengine/llm/providers"

	"github.com/spf13/cobra"

	"github.com/scanly/nutriengine/config"
	"github.com/scanly/nutriengine/llm"
	"github.com/scanly/nutriengine/nutrition"
	"github.com/scanly/nutriengine/storage"
)

const (
	Version = "0.1.0"
	appName = "nutriscan"
)

func main() {
	// Add panic recovery
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var (
		configPath string
		logLevel   string
	)

	cmd := &cobra.Command{
		Use:   appName,
		Short: "AI nutrition analysis engine CLI",
		Long: `Nutriscan analyzes food products with a generative model: structured
product metadata in text mode, or a product/meal photo in photo mode.
Results are validated, filtered and persisted locally.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file path (YAML)")
	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")

	cmd.AddCommand(analyzeCmd(&configPath, &logLevel))
	cmd.AddCommand(photoCmd(&configPath, &logLevel))
	cmd.AddCommand(ingredientCmd(&configPath, &logLevel))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func analyzeCmd(configPath, logLevel *string) *cobra.Command {
	var (
		productFile string
		userID      string
	)

	cmd := &cobra.Command{
		Use:   "analyze PRODUCT_ID",
		Short: "Analyze a product from structured metadata (text mode)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}
			defer env.close()

			data, err := os.ReadFile(productFile)
			if err != nil {
				return fmt.Errorf("read product file: %w", err)
			}
			var product productFileData
			if err := json.Unmarshal(data, &product); err != nil {
				return fmt.Errorf("parse product file: %w", err)
			}

			outcome, err := env.orchestrator.GetOrCreate(cmd.Context(), args[0], userID, product.toSource(), nutrition.ModeText)
			if err != nil {
				return err
			}
			return printOutcome(outcome)
		},
	}

	cmd.Flags().StringVar(&productFile, "product", "", "JSON file with product metadata (required)")
	cmd.Flags().StringVar(&userID, "user", "local", "User id for cache and ingredient scoping")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}

func photoCmd(configPath, logLevel *string) *cobra.Command {
	var (
		imageFile string
		hint      string
		userID    string
	)

	cmd := &cobra.Command{
		Use:   "photo PRODUCT_ID",
		Short: "Analyze a product or meal photo (photo mode)",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}
			defer env.close()

			imageData, err := os.ReadFile(imageFile)
			if err != nil {
				return fmt.Errorf("read image file: %w", err)
			}

			photo := &nutrition.PhotoData{
				ImageData: imageData,
				MIMEType:  detectMIME(imageFile),
				Hint:      hint,
			}
			outcome, err := env.orchestrator.GetOrCreate(cmd.Context(), args[0], userID, photo, nutrition.ModePhoto)
			if err != nil {
				return err
			}
			return printOutcome(outcome)
		},
	}

	cmd.Flags().StringVar(&imageFile, "image", "", "Image file to analyze (required)")
	cmd.Flags().StringVar(&hint, "hint", "", "Free-text hint about the photo")
	cmd.Flags().StringVar(&userID, "user", "local", "User id for cache and ingredient scoping")
	_ = cmd.MarkFlagRequired("image")
	return cmd
}

func ingredientCmd(configPath, logLevel *string) *cobra.Command {
	var grams float64

	cmd := &cobra.Command{
		Use:   "ingredient NAME",
		Short: "Estimate the nutrition of a single ingredient",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := setup(*configPath, *logLevel)
			if err != nil {
				return err
			}
			defer env.close()

			var weight *float64
			if cmd.Flags().Changed("grams") {
				weight = &grams
			}

			estimate := env.orchestrator.EstimateSingleIngredient(cmd.Context(), args[0], weight)
			if !estimate.Success {
				return fmt.Errorf("%s", estimate.ErrorMessage)
			}

			out, err := json.MarshalIndent(estimate, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}

	cmd.Flags().Float64Var(&grams, "grams", 0, "Ingredient weight in grams (omit to assume an average portion)")
	return cmd
}

// env bundles the wired engine for one command invocation.
type env struct {
	cfg          *config.Config
	store        *storage.SQLiteStore
	orchestrator *nutrition.Orchestrator
}

func (e *env) close() {
	if e.store != nil {
		_ = e.store.Close()
	}
}

func setup(configPath, logLevel string) (*env, error) {
	level := slog.LevelInfo
	switch strings.ToLower(logLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFromFile(configPath)
		if err == nil {
			err = cfg.Validate()
		}
	} else {
		cfg, err = config.NewLoader(logger).Load()
	}
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	store, err := storage.NewSQLiteStore(cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	client := llm.NewClient(llm.EndpointConfig{
		Provider: cfg.Model.Provider,
		Model:    cfg.Model.Name,
		URL:      cfg.Model.Endpoint,
	},
		llm.WithLogger(logger),
		llm.WithHTTPClient(&http.Client{Timeout: cfg.Model.Timeout}),
	)

	orchestrator := nutrition.NewOrchestrator(client, store,
		nutrition.WithOrchestratorLogger(logger),
		nutrition.WithCache(nutrition.NewCache(cfg.Cache.TTL, nil)),
		nutrition.WithTemperature(cfg.Model.Temperature),
	)

	return &env{cfg: cfg, store: store, orchestrator: orchestrator}, nil
}

// productFileData is the on-disk shape of a product metadata file.
type productFileData struct {
	Name       string            `json:"name"`
	Brand      string            `json:"brand"`
	Nutrients  map[string]string `json:"nutrients"`
	Additives  []string          `json:"additives"`
	Labels     []string          `json:"labels"`
	NutriScore string            `json:"nutriScore"`
	NovaGroup  int               `json:"novaGroup"`
	EcoScore   string            `json:"ecoScore"`
}

func (p productFileData) toSource() *nutrition.ProductData {
	return &nutrition.ProductData{
		Name:       p.Name,
		Brand:      p.Brand,
		Nutrients:  p.Nutrients,
		Additives:  p.Additives,
		Labels:     p.Labels,
		NutriScore: p.NutriScore,
		NovaGroup:  p.NovaGroup,
		EcoScore:   p.EcoScore,
	}
}

func detectMIME(path string) string {
	switch {
	case strings.HasSuffix(strings.ToLower(path), ".png"):
		return "image/png"
	case strings.HasSuffix(strings.ToLower(path), ".webp"):
		return "image/webp"
	default:
		return "image/jpeg"
	}
}

func printOutcome(outcome nutrition.Outcome) error {
	out, err := json.MarshalIndent(outcome.Result, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	if outcome.Fallback {
		fmt.Fprintln(os.Stderr, "note: response was unparseable, this is a fallback result")
	}
	return nil
}
