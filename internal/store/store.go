// Package store persists recipes and users. Every method runs in its own
// transaction; callers get no isolation across calls.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/m3rciful/recipebot/core/logger"
	"github.com/m3rciful/recipebot/internal/model"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidRecipe is returned for recipes failing model validation.
	ErrInvalidRecipe = model.ErrInvalidRecipe
)

// Store is the record store over a sqlx connection (sqlite or postgres).
type Store struct {
	db  *sqlx.DB
	now func() time.Time
}

// New wraps an opened and migrated database.
func New(db *sqlx.DB) *Store {
	return &Store{db: db, now: time.Now}
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// CreateRecipe inserts a new recipe and returns it with the assigned id.
func (s *Store) CreateRecipe(ctx context.Context, r model.Recipe) (model.Recipe, error) {
	if err := r.Validate(); err != nil {
		return model.Recipe{}, err
	}
	r.Video = normalizeVideo(r.Video)
	q := s.db.Rebind(`INSERT INTO recipes (title, text, image, video) VALUES (?, ?, ?, ?) RETURNING id`)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return tx.QueryRowxContext(ctx, q, r.Title, r.Text, r.Image, r.Video).Scan(&r.ID)
	})
	if err != nil {
		return model.Recipe{}, fmt.Errorf("create recipe: %w", err)
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "recipe.created",
		slog.Int64("recipe_id", r.ID),
		slog.Bool("video", r.HasVideo()),
	)
	return r, nil
}

// GetRecipe returns the recipe with id or ErrNotFound.
func (s *Store) GetRecipe(ctx context.Context, id int64) (model.Recipe, error) {
	var r model.Recipe
	q := s.db.Rebind(`SELECT id, title, text, image, video FROM recipes WHERE id = ?`)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &r, q, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return model.Recipe{}, ErrNotFound
	}
	if err != nil {
		return model.Recipe{}, fmt.Errorf("get recipe %d: %w", id, err)
	}
	return r, nil
}

// ListRecipes returns all recipes in insertion order.
func (s *Store) ListRecipes(ctx context.Context) ([]model.Recipe, error) {
	var out []model.Recipe
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &out, `SELECT id, title, text, image, video FROM recipes ORDER BY id`)
	})
	if err != nil {
		return nil, fmt.Errorf("list recipes: %w", err)
	}
	return out, nil
}

// UpdateRecipe replaces title, text, image and video of the recipe r.ID.
// Returns ErrNotFound when the row does not exist.
func (s *Store) UpdateRecipe(ctx context.Context, r model.Recipe) (model.Recipe, error) {
	if err := r.Validate(); err != nil {
		return model.Recipe{}, err
	}
	r.Video = normalizeVideo(r.Video)
	q := s.db.Rebind(`UPDATE recipes SET title = ?, text = ?, image = ?, video = ? WHERE id = ?`)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, r.Title, r.Text, r.Image, r.Video, r.ID)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return ErrNotFound
		}
		return nil
	})
	if errors.Is(err, ErrNotFound) {
		return model.Recipe{}, ErrNotFound
	}
	if err != nil {
		return model.Recipe{}, fmt.Errorf("update recipe %d: %w", r.ID, err)
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "recipe.updated", slog.Int64("recipe_id", r.ID))
	return r, nil
}

// DeleteRecipe removes the recipe and reports whether a row was deleted.
func (s *Store) DeleteRecipe(ctx context.Context, id int64) (bool, error) {
	var n int64
	q := s.db.Rebind(`DELETE FROM recipes WHERE id = ?`)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		res, err := tx.ExecContext(ctx, q, id)
		if err != nil {
			return err
		}
		n, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return false, fmt.Errorf("delete recipe %d: %w", id, err)
	}
	logger.LogEvent(ctx, logger.DB, slog.LevelDebug, "recipe.deleted",
		slog.Int64("recipe_id", id),
		slog.Bool("deleted", n > 0),
	)
	return n > 0, nil
}

// CountRecipes returns the number of stored recipes.
func (s *Store) CountRecipes(ctx context.Context) (int, error) {
	return s.count(ctx, "recipes")
}

// AddUser records userID with the current time as joined_at. A known user is left untouched.
func (s *Store) AddUser(ctx context.Context, userID int64) error {
	var created bool
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		var exists int
		err := tx.GetContext(ctx, &exists, s.db.Rebind(`SELECT 1 FROM users WHERE user_id = ?`), userID)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return err
		}
		res, err := tx.ExecContext(ctx,
			s.db.Rebind(`INSERT INTO users (user_id, joined_at) VALUES (?, ?) ON CONFLICT (user_id) DO NOTHING`),
			userID, s.now().UTC(),
		)
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		created = n > 0
		return err
	})
	if err != nil {
		return fmt.Errorf("add user %d: %w", userID, err)
	}
	if created {
		logger.LogEvent(ctx, logger.SVCUsers, slog.LevelInfo, "user.registered", slog.String("status", "ok"))
	}
	return nil
}

// GetUser returns the user or ErrNotFound.
func (s *Store) GetUser(ctx context.Context, userID int64) (model.User, error) {
	var u model.User
	q := s.db.Rebind(`SELECT user_id, joined_at FROM users WHERE user_id = ?`)
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &u, q, userID)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user %d: %w", userID, err)
	}
	return u, nil
}

// ListUserIDs returns every stored user id, oldest first.
func (s *Store) ListUserIDs(ctx context.Context) ([]int64, error) {
	var ids []int64
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return tx.SelectContext(ctx, &ids, `SELECT user_id FROM users ORDER BY joined_at, user_id`)
	})
	if err != nil {
		return nil, fmt.Errorf("list user ids: %w", err)
	}
	return ids, nil
}

// CountUsers returns the number of stored users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	return s.count(ctx, "users")
}

func (s *Store) count(ctx context.Context, table string) (int, error) {
	var n int
	err := s.inTx(ctx, func(tx *sqlx.Tx) error {
		return tx.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+table)
	})
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	return n, nil
}

func normalizeVideo(v *string) *string {
	if v == nil || *v == "" {
		return nil
	}
	return v
}
