package auth

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/meeting-copilot/server/internal/models"
)

// Repository handles user persistence.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository creates an auth repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Create inserts a new user with their platform API key and access token.
func (r *Repository) Create(ctx context.Context, name, apiKey, accessToken string) (*models.User, error) {
	const q = `INSERT INTO users (name, api_key, access_token) VALUES ($1, $2, $3)
		RETURNING id, name, api_key, access_token, created_at`
	var u models.User
	err := r.pool.QueryRow(ctx, q, name, apiKey, accessToken).
		Scan(&u.ID, &u.Name, &u.APIKey, &u.AccessToken, &u.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// GetByAccessToken returns the user presenting the given access token, or nil when unknown.
func (r *Repository) GetByAccessToken(ctx context.Context, token string) (*models.User, error) {
	const q = `SELECT id, name, api_key, access_token, created_at FROM users WHERE access_token = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, token).Scan(&u.ID, &u.Name, &u.APIKey, &u.AccessToken, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetByID returns a user by id, or nil when unknown.
func (r *Repository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	const q = `SELECT id, name, api_key, access_token, created_at FROM users WHERE id = $1`
	var u models.User
	err := r.pool.QueryRow(ctx, q, id).Scan(&u.ID, &u.Name, &u.APIKey, &u.AccessToken, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}

// GetLatest returns the most recently registered user, or nil when none
// exist. Used as the credential fallback for recordings that were first seen
// via webhook and carry no creating user.
func (r *Repository) GetLatest(ctx context.Context) (*models.User, error) {
	const q = `SELECT id, name, api_key, access_token, created_at FROM users ORDER BY id DESC LIMIT 1`
	var u models.User
	err := r.pool.QueryRow(ctx, q).Scan(&u.ID, &u.Name, &u.APIKey, &u.AccessToken, &u.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &u, nil
}
