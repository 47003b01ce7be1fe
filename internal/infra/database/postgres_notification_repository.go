package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"ramadan_companion_bot/internal/domain/calendar"
	"ramadan_companion_bot/internal/domain/notification"
)

type PostgresNotificationRepository struct {
	db *sql.DB
}

func NewPostgresNotificationRepository(db *sql.DB) *PostgresNotificationRepository {
	return &PostgresNotificationRepository{db: db}
}

func (r *PostgresNotificationRepository) MarkFired(ctx context.Context, cycle *notification.Cycle) error {
	query := `INSERT INTO notification_cycles (subscriber_id, cycle_date, boundary_at, fired_at)
               VALUES ($1, $2, $3, $4)
               ON CONFLICT ON CONSTRAINT notification_cycles_subscriber_boundary_key DO NOTHING
               RETURNING id, created_at`
	// cycle_date is a DATE column, so only the calendar day is passed
	cycleDate := calendar.StartOfDay(cycle.CycleDate).Format(calendar.DateLayout)
	err := r.db.QueryRowContext(ctx, query, cycle.SubscriberID, cycleDate, cycle.BoundaryAt, cycle.FiredAt).
		Scan(&cycle.ID, &cycle.CreatedAt)
	if err != nil {
		if err == sql.ErrNoRows { // already recorded
			return nil
		}
		return fmt.Errorf("error recording notification cycle: %w", err)
	}
	return nil
}

func (r *PostgresNotificationRepository) IsFired(ctx context.Context, subscriberID int64, boundaryAt time.Time) (bool, error) {
	query := `SELECT EXISTS (SELECT 1 FROM notification_cycles WHERE subscriber_id = $1 AND boundary_at = $2)`
	var fired bool
	if err := r.db.QueryRowContext(ctx, query, subscriberID, boundaryAt).Scan(&fired); err != nil {
		return false, fmt.Errorf("error checking notification cycle: %w", err)
	}
	return fired, nil
}

func (r *PostgresNotificationRepository) ListCyclesByDate(ctx context.Context, cycleDate time.Time) ([]*notification.Cycle, error) {
	query := `SELECT id, subscriber_id, cycle_date, boundary_at, fired_at, created_at
               FROM notification_cycles WHERE cycle_date = $1 ORDER BY fired_at`
	rows, err := r.db.QueryContext(ctx, query, cycleDate.Format(calendar.DateLayout))
	if err != nil {
		return nil, fmt.Errorf("error listing notification cycles by date: %w", err)
	}
	defer rows.Close()

	cycles := make([]*notification.Cycle, 0)
	for rows.Next() {
		c := &notification.Cycle{}
		if err := rows.Scan(&c.ID, &c.SubscriberID, &c.CycleDate, &c.BoundaryAt, &c.FiredAt, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("error scanning notification cycle: %w", err)
		}
		cycles = append(cycles, c)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating notification cycles: %w", err)
	}
	return cycles, nil
}
