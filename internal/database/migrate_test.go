package database_test

import (
	"context"
	"testing"

	"github.com/Shivanand-hulikatti/slot-booking/internal/database"
	"github.com/Shivanand-hulikatti/slot-booking/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrate_RecordsAndSkipsApplied(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()

	var count int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&count))
	assert.GreaterOrEqual(t, count, 2)

	applied, err := database.Migrate(ctx, pool)
	require.NoError(t, err)
	assert.Empty(t, applied)

	var again int
	require.NoError(t, pool.QueryRow(ctx, `SELECT COUNT(*) FROM schema_migrations`).Scan(&again))
	assert.Equal(t, count, again)
}

func TestSchema_RejectsOverbooking(t *testing.T) {
	pool := testutil.NewTestPool(t)
	ctx := context.Background()

	_, err := pool.Exec(ctx, `
INSERT INTO events (id, name, event_date) VALUES ('11111111-1111-1111-1111-111111111111', 'E', '2026-01-01');
INSERT INTO time_slots (id, event_id, start_time, end_time, max_capacity)
VALUES ('22222222-2222-2222-2222-222222222222', '11111111-1111-1111-1111-111111111111',
        '2026-01-01T10:00:00Z', '2026-01-01T10:30:00Z', 1)`)
	require.NoError(t, err)

	_, err = pool.Exec(ctx, `UPDATE time_slots SET current_bookings = 2 WHERE id = '22222222-2222-2222-2222-222222222222'`)
	assert.Error(t, err)

	_, err = pool.Exec(ctx, `
INSERT INTO time_slots (id, event_id, start_time, end_time, max_capacity)
VALUES ('33333333-3333-3333-3333-333333333333', '11111111-1111-1111-1111-111111111111',
        '2026-01-01T10:00:00Z', '2026-01-01T11:00:00Z', 1)`)
	assert.Error(t, err)
}
