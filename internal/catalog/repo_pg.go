package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	json "github.com/goccy/go-json"

	"moodfood-backend/internal/mood"
)

// PGRepo stores the catalog in the foods and catalog_meta tables.
type PGRepo struct {
	DB *sql.DB
}

func (r *PGRepo) Name() string {
	return "postgres"
}

// Load reads every food in position order plus the stored version.
func (r *PGRepo) Load(ctx context.Context) (Document, error) {
	const query = `
SELECT id, name, description, mood, category, difficulty, prep_time, price_range,
       tags, nutritional_benefits, ingredients, reason
FROM foods
ORDER BY position ASC, id ASC`
	rows, err := r.DB.QueryContext(ctx, query)
	if err != nil {
		return Document{}, fmt.Errorf("query foods: %w", err)
	}
	defer rows.Close()

	foods := []FoodItem{}
	for rows.Next() {
		var (
			item                        FoodItem
			moodRaw                     string
			difficulty, price, reason   sql.NullString
			prepTime                    sql.NullInt64
			tags, benefits, ingredients []byte
		)
		if err := rows.Scan(
			&item.ID,
			&item.Name,
			&item.Description,
			&moodRaw,
			&item.Category,
			&difficulty,
			&prepTime,
			&price,
			&tags,
			&benefits,
			&ingredients,
			&reason,
		); err != nil {
			return Document{}, fmt.Errorf("scan food: %w", err)
		}
		item.Mood = mood.Label(moodRaw)
		item.Difficulty = difficulty.String
		item.PriceRange = price.String
		item.Reason = reason.String
		item.PrepTime = int(prepTime.Int64)
		if item.Tags, err = decodeList(tags); err != nil {
			return Document{}, fmt.Errorf("food %s tags: %w", item.ID, err)
		}
		if item.NutritionalBenefits, err = decodeList(benefits); err != nil {
			return Document{}, fmt.Errorf("food %s nutritional_benefits: %w", item.ID, err)
		}
		if item.Ingredients, err = decodeList(ingredients); err != nil {
			return Document{}, fmt.Errorf("food %s ingredients: %w", item.ID, err)
		}
		foods = append(foods, item)
	}
	if err := rows.Err(); err != nil {
		return Document{}, err
	}

	version, err := r.version(ctx)
	if err != nil {
		return Document{}, err
	}
	return Document{Foods: foods, Metadata: Metadata{Version: version}}, nil
}

func (r *PGRepo) version(ctx context.Context) (string, error) {
	const query = `SELECT value FROM catalog_meta WHERE key = 'version'`
	var v string
	err := r.DB.QueryRowContext(ctx, query).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("query catalog version: %w", err)
	}
	return v, nil
}

// ReplaceAll swaps the stored catalog for doc in one transaction. doc must
// already be valid.
func (r *PGRepo) ReplaceAll(ctx context.Context, doc Document) (err error) {
	tx, err := r.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM foods`); err != nil {
		return fmt.Errorf("clear foods: %w", err)
	}

	const insert = `
INSERT INTO foods (id, position, name, description, mood, category, difficulty, prep_time,
                   price_range, tags, nutritional_benefits, ingredients, reason, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, now())`
	for i, item := range doc.Foods {
		tags, benefits, ingredients, encErr := encodeLists(item)
		if encErr != nil {
			return encErr
		}
		if _, err = tx.ExecContext(ctx, insert,
			item.ID,
			i,
			item.Name,
			item.Description,
			string(item.Mood),
			item.Category,
			nullableString(item.Difficulty),
			item.PrepTime,
			nullableString(item.PriceRange),
			tags,
			benefits,
			ingredients,
			nullableString(item.Reason),
		); err != nil {
			return fmt.Errorf("insert food %s: %w", item.ID, err)
		}
	}

	const upsertVersion = `
INSERT INTO catalog_meta (key, value, updated_at)
VALUES ('version', $1, now())
ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`
	version := doc.Metadata.Version
	if version == "" {
		version = defaultVersion
	}
	if _, err = tx.ExecContext(ctx, upsertVersion, version); err != nil {
		return fmt.Errorf("store catalog version: %w", err)
	}
	return tx.Commit()
}

func encodeLists(item FoodItem) ([]byte, []byte, []byte, error) {
	tags, err := encodeList(item.Tags)
	if err != nil {
		return nil, nil, nil, err
	}
	benefits, err := encodeList(item.NutritionalBenefits)
	if err != nil {
		return nil, nil, nil, err
	}
	ingredients, err := encodeList(item.Ingredients)
	if err != nil {
		return nil, nil, nil, err
	}
	return tags, benefits, ingredients, nil
}

func encodeList(values []string) ([]byte, error) {
	if values == nil {
		values = []string{}
	}
	return json.Marshal(values)
}

func decodeList(raw []byte) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var out []string
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, nil
	}
	return out, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}
