// Package storage provides the SQLite-backed persistence for analysis
// records and user-edited ingredient breakdowns. It implements
// nutrition.Store; the app's remote store is a drop-in replacement behind
// the same interface.
package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/scanly/nutriengine/nutrition"
)

// SQLiteStore persists analyses as JSON payloads and ingredient edits as
// rows, keeping the two independent so user edits survive a re-fetch of the
// analysis.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the database at dbPath and ensures the
// schema exists.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return store, nil
}

// Close releases the underlying database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) initSchema() error {
	schema := `
    CREATE TABLE IF NOT EXISTS analyses (
        product_id TEXT PRIMARY KEY,
        payload TEXT NOT NULL,
        updated_at DATETIME NOT NULL
    );

    CREATE TABLE IF NOT EXISTS ingredients (
        product_id TEXT NOT NULL,
        user_id TEXT NOT NULL,
        position INTEGER NOT NULL,
        id TEXT NOT NULL,
        name TEXT NOT NULL,
        quantity INTEGER NOT NULL,
        weight_grams REAL NOT NULL,
        calories_kcal REAL NOT NULL,
        proteins_grams REAL,
        carbs_grams REAL,
        fats_grams REAL,
        PRIMARY KEY (product_id, user_id, position)
    );

    CREATE INDEX IF NOT EXISTS idx_ingredients_owner ON ingredients(product_id, user_id);
    `

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}

	return nil
}

// LoadAnalysis returns the stored analysis for productID, or (nil, nil)
// when none exists.
func (s *SQLiteStore) LoadAnalysis(ctx context.Context, productID string) (*nutrition.AnalysisResult, error) {
	var payload string
	err := s.db.QueryRowContext(ctx,
		`SELECT payload FROM analyses WHERE product_id = ?`, productID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load analysis: %w", err)
	}

	var result nutrition.AnalysisResult
	if err := json.Unmarshal([]byte(payload), &result); err != nil {
		return nil, fmt.Errorf("decode analysis payload: %w", err)
	}
	return &result, nil
}

// SaveAnalysis upserts the analysis for productID.
func (s *SQLiteStore) SaveAnalysis(ctx context.Context, productID string, result *nutrition.AnalysisResult) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("encode analysis payload: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
        INSERT INTO analyses (product_id, payload, updated_at)
        VALUES (?, ?, ?)
        ON CONFLICT(product_id) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at
    `, productID, string(payload), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("save analysis: %w", err)
	}
	return nil
}

// LoadIngredients returns the saved breakdown for (productID, userID) in
// saved order, or (nil, nil) when none exists.
func (s *SQLiteStore) LoadIngredients(ctx context.Context, productID, userID string) ([]nutrition.EstimatedIngredient, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT id, name, quantity, weight_grams, calories_kcal, proteins_grams, carbs_grams, fats_grams
        FROM ingredients
        WHERE product_id = ? AND user_id = ?
        ORDER BY position
    `, productID, userID)
	if err != nil {
		return nil, fmt.Errorf("load ingredients: %w", err)
	}
	defer rows.Close()

	var items []nutrition.EstimatedIngredient
	for rows.Next() {
		var item nutrition.EstimatedIngredient
		var proteins, carbs, fats sql.NullFloat64
		if err := rows.Scan(&item.ID, &item.Name, &item.Quantity,
			&item.EstimatedWeightGrams, &item.EstimatedCaloriesKcal,
			&proteins, &carbs, &fats); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		item.EstimatedProteinsGrams = nullableFloat(proteins)
		item.EstimatedCarbsGrams = nullableFloat(carbs)
		item.EstimatedFatsGrams = nullableFloat(fats)
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ingredients: %w", err)
	}

	return items, nil
}

// SaveIngredients transactionally replaces the breakdown for
// (productID, userID).
func (s *SQLiteStore) SaveIngredients(ctx context.Context, productID, userID string, items []nutrition.EstimatedIngredient) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("start transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM ingredients WHERE product_id = ? AND user_id = ?`, productID, userID); err != nil {
		return fmt.Errorf("clear ingredients: %w", err)
	}

	query := `
        INSERT INTO ingredients (product_id, user_id, position, id, name, quantity, weight_grams, calories_kcal, proteins_grams, carbs_grams, fats_grams)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    `
	for i, item := range items {
		if _, err := tx.ExecContext(ctx, query,
			productID, userID, i, item.ID, item.Name, item.Quantity,
			item.EstimatedWeightGrams, item.EstimatedCaloriesKcal,
			floatValue(item.EstimatedProteinsGrams),
			floatValue(item.EstimatedCarbsGrams),
			floatValue(item.EstimatedFatsGrams)); err != nil {
			return fmt.Errorf("insert ingredient %q: %w", item.ID, err)
		}
	}

	return tx.Commit()
}

func nullableFloat(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}

func floatValue(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}
