package database

import (
	"context"
	"fmt"
	"time"

	"kestrel/internal/domain"

	"gorm.io/gorm/clause"
)

const eventInsertChunkSize = 200

// AggregateKey identifies one incident aggregate row.
type AggregateKey struct {
	IP   string
	Type domain.EventType
}

// AggregateUpdate carries the window state observed for a key within one
// persisted batch.
type AggregateUpdate struct {
	Count     uint32
	FirstSeen time.Time
	LastSeen  time.Time
}

// InsertSuspiciousEvents appends a batch of events. Events are immutable;
// this is the only insert path.
func InsertSuspiciousEvents(events []domain.SuspiciousEvent) error {
	if len(events) == 0 {
		return nil
	}
	if DB == nil {
		return fmt.Errorf("database not initialised")
	}

	return DB.CreateInBatches(events, eventInsertChunkSize).Error
}

// UpsertIncidentAggregates folds batch window state into the aggregate
// mirror. FirstSeen is kept from the existing row; count and last_seen take
// the newer value.
func UpsertIncidentAggregates(updates map[AggregateKey]AggregateUpdate) error {
	if len(updates) == 0 {
		return nil
	}
	if DB == nil {
		return fmt.Errorf("database not initialised")
	}

	rows := make([]domain.IncidentAggregate, 0, len(updates))
	for key, update := range updates {
		rows = append(rows, domain.IncidentAggregate{
			IP:            key.IP,
			Type:          key.Type,
			CountAttempts: update.Count,
			FirstSeen:     update.FirstSeen,
			LastSeen:      update.LastSeen,
		})
	}

	return DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "ip"}, {Name: "type"}},
		DoUpdates: clause.AssignmentColumns([]string{"count_attempts", "last_seen", "updated_at"}),
	}).CreateInBatches(rows, eventInsertChunkSize).Error
}

// PruneEventsBefore deletes events older than the cutoff. Aggregates and
// block records are never pruned.
func PruneEventsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialised")
	}

	res := DB.WithContext(ctx).
		Where("occurred_at < ?", cutoff).
		Delete(&domain.SuspiciousEvent{})
	return res.RowsAffected, res.Error
}

// CountEventsSince reports how many events arrived at or after the given
// time, optionally restricted to one IP.
func CountEventsSince(since time.Time, ip string) (int64, error) {
	if DB == nil {
		return 0, fmt.Errorf("database not initialised")
	}

	query := DB.Model(&domain.SuspiciousEvent{}).Where("occurred_at >= ?", since)
	if ip != "" {
		query = query.Where("ip = ?", ip)
	}

	var count int64
	err := query.Count(&count).Error
	return count, err
}

// TopEventTypesSince returns event counts per type since the given time, in
// descending order.
func TopEventTypesSince(since time.Time, limit int) (map[domain.EventType]int64, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialised")
	}
	if limit <= 0 {
		limit = len(domain.EventTypes())
	}

	var rows []struct {
		Type  domain.EventType
		Total int64
	}
	err := DB.Model(&domain.SuspiciousEvent{}).
		Select("type, COUNT(*) AS total").
		Where("occurred_at >= ?", since).
		Group("type").
		Order("total DESC").
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make(map[domain.EventType]int64, len(rows))
	for _, row := range rows {
		result[row.Type] = row.Total
	}
	return result, nil
}
