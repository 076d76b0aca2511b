package database

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type memberRepo struct {
	pool *pgxpool.Pool
}

func NewMemberRepository(pool *pgxpool.Pool) MemberRepository {
	return &memberRepo{pool: pool}
}

// Add appends userID to the channel's members. Adding an existing member is
// a no-op.
func (r *memberRepo) Add(ctx context.Context, channelID, userID int64, joinedAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO channel_members (channel_id, user_id, position, joined_at)
		 SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3
		 FROM channel_members WHERE channel_id = $1
		 ON CONFLICT (channel_id, user_id) DO NOTHING`,
		channelID, userID, joinedAt,
	)
	return err
}

// Remove deletes userID from the channel's members. An owner who leaves
// hands the channel to the remaining member with the lowest position, the
// same member the session store picks.
func (r *memberRepo) Remove(ctx context.Context, channelID, userID int64) error {
	return pgx.BeginFunc(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx,
			`DELETE FROM channel_members WHERE channel_id = $1 AND user_id = $2`,
			channelID, userID,
		); err != nil {
			return fmt.Errorf("removing member: %w", err)
		}
		if _, err := tx.Exec(ctx,
			`UPDATE channels SET owner_id = (
			     SELECT user_id FROM channel_members
			     WHERE channel_id = $1
			     ORDER BY position, user_id
			     LIMIT 1)
			 WHERE id = $1 AND owner_id = $2
			   AND EXISTS (SELECT 1 FROM channel_members WHERE channel_id = $1)`,
			channelID, userID,
		); err != nil {
			return fmt.Errorf("transferring ownership: %w", err)
		}
		return nil
	})
}
