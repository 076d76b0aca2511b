package database

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/victorivanov/retrostate/internal/models"
)

type preferenceRepo struct {
	pool *pgxpool.Pool
}

func NewPreferenceRepository(pool *pgxpool.Pool) PreferenceRepository {
	return &preferenceRepo{pool: pool}
}

func (r *preferenceRepo) Set(ctx context.Context, userID, channelID int64, pref models.Preference) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO channel_preferences (user_id, channel_id, sidebar)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, channel_id) DO UPDATE SET sidebar = EXCLUDED.sidebar`,
		userID, channelID, pref.Sidebar,
	)
	return err
}

func (r *preferenceRepo) ForUser(ctx context.Context, userID int64) (map[int64]models.Preference, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT channel_id, sidebar FROM channel_preferences WHERE user_id = $1`, userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	prefs := make(map[int64]models.Preference)
	for rows.Next() {
		var (
			channelID int64
			p         models.Preference
		)
		if err := rows.Scan(&channelID, &p.Sidebar); err != nil {
			return nil, err
		}
		prefs[channelID] = p
	}
	return prefs, rows.Err()
}
