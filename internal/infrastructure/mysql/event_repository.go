package mysql

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"auction-ledger/internal/domain"

	mysqldriver "github.com/go-sql-driver/mysql"
)

const errDuplicateEntry = 1062

type MySQLEventRepository struct {
	db *sql.DB
}

func NewMySQLEventRepository(db *sql.DB) *MySQLEventRepository {
	return &MySQLEventRepository{db: db}
}

// SaveEvent stores the event once; a redelivered event with a known id is ignored.
func (r *MySQLEventRepository) SaveEvent(ctx context.Context, event *domain.LedgerEvent) error {
	query := `
        INSERT INTO ledger_events (id, event_type, bidder, amount, deadline, timestamp, created_at)
        VALUES (?, ?, ?, ?, ?, ?, ?)
    `
	_, err := r.db.ExecContext(ctx, query,
		event.ID, string(event.Type), string(event.Bidder), int64(event.Amount),
		nullTime(event.Deadline), event.Timestamp, time.Now())
	if isDuplicateEntry(err) {
		return nil
	}
	return err
}

// GetEventHistory returns the most recent events, oldest first.
func (r *MySQLEventRepository) GetEventHistory(ctx context.Context, limit int) ([]*domain.LedgerEvent, error) {
	query := `
        SELECT id, event_type, bidder, amount, deadline, timestamp
        FROM (
            SELECT id, event_type, bidder, amount, deadline, timestamp, seq
            FROM ledger_events
            ORDER BY seq DESC
            LIMIT ?
        ) recent
        ORDER BY seq ASC
    `

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var events []*domain.LedgerEvent
	for rows.Next() {
		var event domain.LedgerEvent
		var eventType, bidder string
		var amount int64
		var deadline sql.NullTime

		err := rows.Scan(&event.ID, &eventType, &bidder, &amount, &deadline, &event.Timestamp)
		if err != nil {
			return nil, err
		}

		event.Type = domain.LedgerEventType(eventType)
		event.Bidder = domain.Bidder(bidder)
		event.Amount = domain.Money(amount)
		if deadline.Valid {
			event.Deadline = deadline.Time
		}
		events = append(events, &event)
	}

	return events, rows.Err()
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func isDuplicateEntry(err error) bool {
	var mysqlErr *mysqldriver.MySQLError
	return errors.As(err, &mysqlErr) && mysqlErr.Number == errDuplicateEntry
}
