// Package ledger maintains the editable list of estimated ingredients for a
// breakdown analysis: add, remove, reweight and requantify operations with
// proportional calorie and macro recomputation, a single-checkpoint undo,
// and an unsaved-changes flag against the last persisted snapshot.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/google/uuid"

	"github.com/scanly/nutriengine/nutrition"
)

// maxWeightGrams bounds a single item weight edit. Edits above it are
// user-input errors, not estimates.
const maxWeightGrams = 999

// InputError is a user-facing rejection of an edit. The ledger state is
// unchanged when one is returned.
type InputError struct {
	msg string
}

func (e *InputError) Error() string {
	return e.msg
}

// EstimationError reports that the single-ingredient model call produced no
// usable number. Nothing was added to the ledger.
type EstimationError struct {
	msg string
}

func (e *EstimationError) Error() string {
	return e.msg
}

// Estimator is the narrow model call used by Add. The orchestrator
// implements it.
type Estimator interface {
	EstimateSingleIngredient(ctx context.Context, name string, weightGrams *float64) nutrition.IngredientEstimate
}

// original is the creation-time snapshot of an item. Reweights always scale
// from it, never from the current values, so repeated edits don't compound
// rounding drift.
type original struct {
	weightGrams  float64
	caloriesKcal float64
	proteins     *float64
	carbs        *float64
	fats         *float64
}

// Ledger holds the editable ingredient list for one (product, user) pair.
// All operations are synchronous over in-memory state; the ledger is meant
// for a single consumer and does no internal locking.
type Ledger struct {
	productID string
	userID    string
	estimator Estimator
	store     nutrition.Store
	logger    *slog.Logger

	items      []nutrition.EstimatedIngredient
	originals  map[string]original
	checkpoint []nutrition.EstimatedIngredient
	dirty      bool
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(l *Ledger) {
		l.logger = logger
	}
}

// New creates an empty ledger for (productID, userID). The estimator backs
// Add; the store backs Save.
func New(productID, userID string, estimator Estimator, store nutrition.Store, opts ...Option) *Ledger {
	l := &Ledger{
		productID: productID,
		userID:    userID,
		estimator: estimator,
		store:     store,
		logger:    slog.Default(),
		originals: make(map[string]original),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Initialize replaces the ledger contents with items, collapsing duplicates:
// entries whose names match after case and whitespace normalization merge
// into one item with summed quantity. Models often repeat an ingredient
// instead of quantifying it. The result becomes the undo checkpoint.
func (l *Ledger) Initialize(items []nutrition.EstimatedIngredient) {
	l.items = nil
	l.originals = make(map[string]original)

	index := make(map[string]int)
	for _, item := range items {
		if item.Quantity < 1 {
			item.Quantity = 1
		}
		key := normalizeName(item.Name)
		if pos, seen := index[key]; seen {
			l.items[pos].Quantity += item.Quantity
			continue
		}
		index[key] = len(l.items)
		l.items = append(l.items, item)
		l.recordOriginal(item)
	}

	l.checkpoint = cloneItems(l.items)
	l.dirty = false
}

// Items returns a copy of the current list in order.
func (l *Ledger) Items() []nutrition.EstimatedIngredient {
	return cloneItems(l.items)
}

// HasBreakdown reports whether the ledger holds any items. An emptied
// ledger reports no breakdown rather than an empty one: the UI switches
// back to the plain calories estimate.
func (l *Ledger) HasBreakdown() bool {
	return len(l.items) > 0
}

// HasUnsavedChanges reports whether edits are pending persistence.
func (l *Ledger) HasUnsavedChanges() bool {
	return l.dirty
}

// TotalCalories returns the live sum of per-item calories times quantity.
func (l *Ledger) TotalCalories() float64 {
	total := 0.0
	for _, item := range l.items {
		total += item.EstimatedCaloriesKcal * float64(item.Quantity)
	}
	return total
}

// Reweight sets a new weight for the item with the given id and recomputes
// its calories and macros proportionally from the creation-time snapshot.
// Weights outside (0, 999] or non-finite are rejected with the state
// unchanged. When the snapshot weight is 0 the ratio is undefined: only the
// weight updates and calories stay as they were.
func (l *Ledger) Reweight(id string, newWeightGrams float64) error {
	if math.IsNaN(newWeightGrams) || math.IsInf(newWeightGrams, 0) ||
		newWeightGrams <= 0 || newWeightGrams > maxWeightGrams {
		return &InputError{msg: fmt.Sprintf("Peso non valido: inserisci un valore tra 1 e %d grammi.", maxWeightGrams)}
	}

	pos := l.find(id)
	if pos < 0 {
		return &InputError{msg: "Ingrediente non trovato."}
	}

	item := &l.items[pos]
	orig, hasOrig := l.originals[id]
	if !hasOrig || orig.weightGrams == 0 {
		item.EstimatedWeightGrams = newWeightGrams
		l.dirty = true
		return nil
	}

	ratio := newWeightGrams / orig.weightGrams
	item.EstimatedWeightGrams = newWeightGrams
	item.EstimatedCaloriesKcal = math.Round(orig.caloriesKcal * ratio)
	item.EstimatedProteinsGrams = scaleMacro(orig.proteins, ratio)
	item.EstimatedCarbsGrams = scaleMacro(orig.carbs, ratio)
	item.EstimatedFatsGrams = scaleMacro(orig.fats, ratio)
	l.dirty = true
	return nil
}

// Requantify sets a new quantity for the item with the given id. Unit
// values stay fixed. Quantities below 1 are rejected with the state
// unchanged.
func (l *Ledger) Requantify(id string, newQuantity int) error {
	if newQuantity < 1 {
		return &InputError{msg: "Quantità non valida: inserisci un numero intero positivo."}
	}

	pos := l.find(id)
	if pos < 0 {
		return &InputError{msg: "Ingrediente non trovato."}
	}

	l.items[pos].Quantity = newQuantity
	l.dirty = true
	return nil
}

// Remove deletes the item with the given id.
func (l *Ledger) Remove(id string) error {
	pos := l.find(id)
	if pos < 0 {
		return &InputError{msg: "Ingrediente non trovato."}
	}

	l.items = append(l.items[:pos], l.items[pos+1:]...)
	l.dirty = true
	return nil
}

// Add estimates the nutrition of a named ingredient through the model and
// appends it. User-added items get ids in the "user-" namespace so later
// diffing against the model's original list can tell them apart. An
// estimation failure adds nothing and is reported as an EstimationError.
func (l *Ledger) Add(ctx context.Context, name string, weightGrams *float64, quantity int) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return &InputError{msg: "Inserisci il nome dell'ingrediente."}
	}
	if quantity < 1 {
		return &InputError{msg: "Quantità non valida: inserisci un numero intero positivo."}
	}
	if weightGrams != nil && (math.IsNaN(*weightGrams) || math.IsInf(*weightGrams, 0) ||
		*weightGrams <= 0 || *weightGrams > maxWeightGrams) {
		return &InputError{msg: fmt.Sprintf("Peso non valido: inserisci un valore tra 1 e %d grammi.", maxWeightGrams)}
	}

	estimate := l.estimator.EstimateSingleIngredient(ctx, name, weightGrams)
	if !estimate.Success {
		l.logger.Warn("Ingredient estimation failed", "name", name, "message", estimate.ErrorMessage)
		return &EstimationError{msg: estimate.ErrorMessage}
	}

	weight := 0.0
	switch {
	case weightGrams != nil:
		weight = *weightGrams
	case estimate.WeightGrams != nil && *estimate.WeightGrams > 0:
		weight = *estimate.WeightGrams
	}

	item := nutrition.EstimatedIngredient{
		ID:                     "user-" + uuid.New().String(),
		Name:                   name,
		Quantity:               quantity,
		EstimatedWeightGrams:   weight,
		EstimatedCaloriesKcal:  estimate.CaloriesKcal,
		EstimatedProteinsGrams: estimate.ProteinsG,
		EstimatedCarbsGrams:    estimate.CarbsG,
		EstimatedFatsGrams:     estimate.FatsG,
	}
	l.items = append(l.items, item)
	l.recordOriginal(item)
	l.dirty = true
	return nil
}

// Save persists the current list and makes it the new undo checkpoint.
func (l *Ledger) Save(ctx context.Context) error {
	if err := l.store.SaveIngredients(ctx, l.productID, l.userID, cloneItems(l.items)); err != nil {
		return fmt.Errorf("save ingredients: %w", err)
	}
	l.checkpoint = cloneItems(l.items)
	l.dirty = false
	return nil
}

// Undo restores the list to the last saved checkpoint and clears the dirty
// flag. Single checkpoint only, not a multi-level undo stack.
func (l *Ledger) Undo() {
	l.items = cloneItems(l.checkpoint)
	l.dirty = false
}

func (l *Ledger) find(id string) int {
	for i, item := range l.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (l *Ledger) recordOriginal(item nutrition.EstimatedIngredient) {
	l.originals[item.ID] = original{
		weightGrams:  item.EstimatedWeightGrams,
		caloriesKcal: item.EstimatedCaloriesKcal,
		proteins:     cloneFloat(item.EstimatedProteinsGrams),
		carbs:        cloneFloat(item.EstimatedCarbsGrams),
		fats:         cloneFloat(item.EstimatedFatsGrams),
	}
}

// normalizeName folds case and collapses whitespace for dedup matching.
func normalizeName(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// scaleMacro scales an optional macro from its original value, rounded to
// one decimal.
func scaleMacro(orig *float64, ratio float64) *float64 {
	if orig == nil {
		return nil
	}
	v := math.Round(*orig*ratio*10) / 10
	return &v
}

func cloneFloat(v *float64) *float64 {
	if v == nil {
		return nil
	}
	c := *v
	return &c
}

func cloneItems(items []nutrition.EstimatedIngredient) []nutrition.EstimatedIngredient {
	out := make([]nutrition.EstimatedIngredient, len(items))
	for i, item := range items {
		item.EstimatedProteinsGrams = cloneFloat(item.EstimatedProteinsGrams)
		item.EstimatedCarbsGrams = cloneFloat(item.EstimatedCarbsGrams)
		item.EstimatedFatsGrams = cloneFloat(item.EstimatedFatsGrams)
		out[i] = item
	}
	return out
}
