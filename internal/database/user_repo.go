package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/victorivanov/retrostate/internal/models"
	"github.com/victorivanov/retrostate/internal/snowflake"
	"github.com/victorivanov/retrostate/internal/store"
)

type userRepo struct {
	pool *pgxpool.Pool
}

func NewUserRepository(pool *pgxpool.Pool) UserRepository {
	return &userRepo{pool: pool}
}

func (r *userRepo) Create(ctx context.Context, u *models.User) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO users (id, username, first_name, last_name, display_name, status)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		u.ID, u.Username, u.FirstName, u.LastName, u.DisplayName, string(u.Status),
	)
	return err
}

func (r *userRepo) List(ctx context.Context) ([]store.RawUser, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT id, username, first_name, last_name, display_name, status
		 FROM users ORDER BY id`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var users []store.RawUser
	for rows.Next() {
		var (
			u  store.RawUser
			id int64
		)
		if err := rows.Scan(&id, &u.Username, &u.FirstName, &u.LastName, &u.DisplayName, &u.Status); err != nil {
			return nil, err
		}
		u.ID = snowflake.ID(id)
		users = append(users, u)
	}
	return users, rows.Err()
}

func (r *userRepo) Delete(ctx context.Context, id int64) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	return err
}
