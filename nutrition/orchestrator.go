package nutrition

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/scanly/nutriengine/llm"
)

// ErrAnalysisInFlight is returned when a second analysis is requested for a
// (product, user) pair whose model call has not completed yet. Serializing
// per key prevents duplicate paid calls and races on which result persists.
var ErrAnalysisInFlight = errors.New("analysis already in flight for this product and user")

// ModelUnavailableError wraps a transport or HTTP failure of the model
// endpoint. It is propagated to the caller: fallback synthesis is reserved
// for unparseable responses, not failed calls.
type ModelUnavailableError struct {
	err error
}

func (e *ModelUnavailableError) Error() string {
	return fmt.Sprintf("model unavailable: %v", e.err)
}

func (e *ModelUnavailableError) Unwrap() error {
	return e.err
}

// IsModelUnavailable reports whether err is a model transport failure.
func IsModelUnavailable(err error) bool {
	var target *ModelUnavailableError
	return errors.As(err, &target)
}

// ModelClient is the single blocking call to the generative-AI endpoint.
// It returns raw, untrusted text on success.
type ModelClient interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// Store persists the canonical analysis record and the user-edited
// ingredient breakdown. Loads return (nil, nil) when no record exists.
// Implementations are external collaborators (see storage for the SQLite
// one).
type Store interface {
	LoadAnalysis(ctx context.Context, productID string) (*AnalysisResult, error)
	SaveAnalysis(ctx context.Context, productID string, result *AnalysisResult) error
	LoadIngredients(ctx context.Context, productID, userID string) ([]EstimatedIngredient, error)
	SaveIngredients(ctx context.Context, productID, userID string, items []EstimatedIngredient) error
}

// Orchestrator drives the analysis flow: cache check, persisted-record
// reuse, prompt build, model call, parse, filter, fallback and persistence.
type Orchestrator struct {
	model       ModelClient
	store       Store
	cache       *Cache
	parser      *Parser
	synthesizer *Synthesizer
	metrics     *Metrics
	logger      *slog.Logger
	temperature *float64

	mu       sync.Mutex
	inflight map[CacheKey]struct{}
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator)

// WithCache sets the result cache. Defaults to a 60s TTL cache.
func WithCache(c *Cache) OrchestratorOption {
	return func(o *Orchestrator) {
		o.cache = c
	}
}

// WithMetrics sets the metrics collector. Defaults to unregistered metrics.
func WithMetrics(m *Metrics) OrchestratorOption {
	return func(o *Orchestrator) {
		o.metrics = m
	}
}

// WithOrchestratorLogger sets the logger.
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) {
		o.logger = logger
	}
}

// WithTemperature sets an explicit sampling temperature for model calls.
func WithTemperature(t float64) OrchestratorOption {
	return func(o *Orchestrator) {
		o.temperature = &t
	}
}

// NewOrchestrator creates an orchestrator over the given model client and
// store.
func NewOrchestrator(model ModelClient, store Store, opts ...OrchestratorOption) *Orchestrator {
	o := &Orchestrator{
		model:    model,
		store:    store,
		logger:   slog.Default(),
		inflight: make(map[CacheKey]struct{}),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.cache == nil {
		o.cache = NewCache(DefaultCacheTTL, nil)
	}
	if o.metrics == nil {
		o.metrics = NewMetrics(nil)
	}
	o.parser = NewParser(o.logger)
	o.synthesizer = NewSynthesizer(o.logger)

	return o
}

// GetOrCreate returns the analysis for (productID, userID), reusing the
// cache or a complete persisted record when possible, and otherwise issuing
// a single model call. Transport failures surface as ModelUnavailableError;
// unparseable responses degrade to a fallback synthesis, never to an error.
func (o *Orchestrator) GetOrCreate(ctx context.Context, productID, userID string, source SourceData, mode Mode) (Outcome, error) {
	key := CacheKey{ProductID: productID, UserID: userID}

	if cached := o.cache.Get(key); cached != nil {
		o.metrics.CacheHits.Inc()
		o.logger.Debug("Analysis served from cache", "product_id", productID)
		return Outcome{Result: cached, Reused: true}, nil
	}

	if persisted := o.loadPersisted(ctx, productID); persisted.IsComplete() {
		// Respects user edits already saved and avoids a redundant paid
		// call; the result goes into the cache for the session.
		o.metrics.PersistedReuses.Inc()
		o.cache.Put(key, persisted)
		o.logger.Debug("Analysis served from store", "product_id", productID)
		return Outcome{Result: persisted, Reused: true}, nil
	}

	if !o.begin(key) {
		return Outcome{}, ErrAnalysisInFlight
	}
	defer o.finish(key)

	req, err := o.buildRequest(source, mode)
	if err != nil {
		return Outcome{}, err
	}

	resp, err := o.model.Complete(ctx, *req)
	if err != nil {
		o.metrics.ModelCalls.WithLabelValues(string(mode), "error").Inc()
		return Outcome{}, &ModelUnavailableError{err: err}
	}
	o.metrics.ModelCalls.WithLabelValues(string(mode), "ok").Inc()

	outcome := o.accept(resp.Content, mode)

	outcome.Result.Pros = FilterPoints(outcome.Result.Pros, mode)
	outcome.Result.Cons = FilterPoints(outcome.Result.Cons, mode)
	outcome.Result.SustainabilityPros = FilterPoints(outcome.Result.SustainabilityPros, mode)
	outcome.Result.SustainabilityCons = FilterPoints(outcome.Result.SustainabilityCons, mode)

	if err := o.store.SaveAnalysis(ctx, productID, outcome.Result); err != nil {
		// The accepted result stays usable in-session even when the write
		// fails; the next session will re-analyze.
		o.metrics.PersistFailures.Inc()
		o.logger.Error("Failed to persist analysis", "product_id", productID, "error", err)
	}

	o.cache.Put(key, outcome.Result)
	return outcome, nil
}

// accept parses the raw response, falling back to synthesis on any parse
// failure.
func (o *Orchestrator) accept(raw string, mode Mode) Outcome {
	result, failure := o.parser.Parse(raw, mode)
	if failure == nil {
		return Outcome{Result: result}
	}

	o.metrics.Fallbacks.WithLabelValues(string(mode)).Inc()
	o.logger.Warn("Model response unparseable, synthesizing fallback",
		"mode", mode, "reason", failure.Reason)
	return Outcome{Result: o.synthesizer.Synthesize(raw, mode), Fallback: true}
}

// loadPersisted fetches the stored analysis, treating load errors as
// absence.
func (o *Orchestrator) loadPersisted(ctx context.Context, productID string) *AnalysisResult {
	persisted, err := o.store.LoadAnalysis(ctx, productID)
	if err != nil {
		o.logger.Warn("Failed to load persisted analysis", "product_id", productID, "error", err)
		return nil
	}
	return persisted
}

// buildRequest assembles the mode-specific model request from the source
// data.
func (o *Orchestrator) buildRequest(source SourceData, mode Mode) (*llm.Request, error) {
	switch mode {
	case ModeText:
		product, ok := source.(*ProductData)
		if !ok || product == nil {
			return nil, fmt.Errorf("text mode requires ProductData source")
		}
		return &llm.Request{
			Messages:    []llm.Message{{Role: "user", Content: buildTextPrompt(product)}},
			Temperature: o.temperature,
		}, nil
	case ModePhoto:
		photo, ok := source.(*PhotoData)
		if !ok || photo == nil {
			return nil, fmt.Errorf("photo mode requires PhotoData source")
		}
		msg := llm.Message{
			Role:    "user",
			Content: buildPhotoPrompt(photo),
			Images: []llm.ImagePart{{
				MIMEType: photo.MIMEType,
				Data:     photo.ImageData,
			}},
		}
		return &llm.Request{
			Messages:    []llm.Message{msg},
			Temperature: o.temperature,
		}, nil
	default:
		return nil, fmt.Errorf("unknown analysis mode %q", mode)
	}
}

// begin marks key as in flight; it returns false if a call is already
// running for it.
func (o *Orchestrator) begin(key CacheKey) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	if _, busy := o.inflight[key]; busy {
		return false
	}
	o.inflight[key] = struct{}{}
	return true
}

func (o *Orchestrator) finish(key CacheKey) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.inflight, key)
}

// ingredientWire is the expected shape of a single-ingredient response.
type ingredientWire struct {
	CaloriesKcal  *float64 `json:"caloriesKcal"`
	WeightGrams   *float64 `json:"weightGrams"`
	ProteinsGrams *float64 `json:"proteinsGrams"`
	CarbsGrams    *float64 `json:"carbsGrams"`
	FatsGrams     *float64 `json:"fatsGrams"`
}

// EstimateSingleIngredient issues a narrow model call for one ingredient's
// nutrition. It never returns a Go error: failures come back with
// Success=false and a user-facing message.
func (o *Orchestrator) EstimateSingleIngredient(ctx context.Context, name string, weightGrams *float64) IngredientEstimate {
	req := llm.Request{
		Messages:    []llm.Message{{Role: "user", Content: buildIngredientPrompt(name, weightGrams)}},
		Temperature: o.temperature,
	}

	resp, err := o.model.Complete(ctx, req)
	if err != nil {
		o.logger.Warn("Single ingredient estimation call failed", "name", name, "error", err)
		return IngredientEstimate{
			Success:      false,
			ErrorMessage: "Impossibile contattare il servizio di stima. Riprova più tardi.",
		}
	}

	span := llm.ExtractJSON(resp.Content)
	if span == "" {
		return IngredientEstimate{
			Success:      false,
			ErrorMessage: fmt.Sprintf("Nessuna stima disponibile per \"%s\".", name),
		}
	}

	var wire ingredientWire
	if err := json.Unmarshal([]byte(span), &wire); err != nil || wire.CaloriesKcal == nil || *wire.CaloriesKcal < 0 {
		return IngredientEstimate{
			Success:      false,
			ErrorMessage: fmt.Sprintf("La stima per \"%s\" non conteneva un valore calorico valido.", name),
		}
	}

	return IngredientEstimate{
		Success:      true,
		CaloriesKcal: *wire.CaloriesKcal,
		WeightGrams:  wire.WeightGrams,
		ProteinsG:    wire.ProteinsGrams,
		CarbsG:       wire.CarbsGrams,
		FatsG:        wire.FatsGrams,
	}
}
