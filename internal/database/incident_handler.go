package database

import (
	"fmt"

	"kestrel/internal/api/dto"
	"kestrel/internal/domain"

	"gorm.io/gorm"
)

const (
	DefaultIncidentPageSize = 25
	MaxIncidentPageSize     = 200
	maxExportRows           = 10000
)

// IncidentFilters narrows the review list. Types carries the closed set of
// event types to match; severity filters are translated to types by the
// caller before they reach the database.
type IncidentFilters struct {
	IP     string
	Types  []domain.EventType
	Status string
}

type incidentRow struct {
	domain.IncidentAggregate
	Status string
}

// GetIncidentPage returns one page of aggregates ordered by most recent
// activity, each joined with its IP's current block status.
func GetIncidentPage(filters IncidentFilters, page, pageSize int) ([]dto.IncidentInfo, int64, error) {
	if DB == nil {
		return nil, 0, fmt.Errorf("database not initialised")
	}

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = DefaultIncidentPageSize
	}
	if pageSize > MaxIncidentPageSize {
		pageSize = MaxIncidentPageSize
	}

	var total int64
	if err := incidentQuery(filters).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []incidentRow
	err := incidentQuery(filters).
		Order("incident_aggregates.last_seen DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Scan(&rows).Error
	if err != nil {
		return nil, 0, err
	}

	return toIncidentInfos(rows), total, nil
}

// GetIncidentsForExport returns all matching aggregates up to a hard cap.
func GetIncidentsForExport(filters IncidentFilters) ([]dto.IncidentInfo, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialised")
	}

	var rows []incidentRow
	err := incidentQuery(filters).
		Order("incident_aggregates.last_seen DESC").
		Limit(maxExportRows).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	return toIncidentInfos(rows), nil
}

func incidentQuery(filters IncidentFilters) *gorm.DB {
	query := DB.Model(&domain.IncidentAggregate{}).
		Select("incident_aggregates.*, COALESCE(block_records.status, 'not_blocked') AS status").
		Joins("LEFT JOIN block_records ON block_records.ip = incident_aggregates.ip")

	if filters.IP != "" {
		query = query.Where("incident_aggregates.ip = ?", filters.IP)
	}
	if len(filters.Types) > 0 {
		query = query.Where("incident_aggregates.type IN ?", filters.Types)
	}

	switch filters.Status {
	case "":
	case domain.StatusNotBlocked:
		query = query.Where("block_records.status IS NULL OR block_records.status = ?", domain.StatusNotBlocked)
	default:
		query = query.Where("block_records.status = ?", filters.Status)
	}

	return query
}

func toIncidentInfos(rows []incidentRow) []dto.IncidentInfo {
	incidents := make([]dto.IncidentInfo, 0, len(rows))
	for _, row := range rows {
		incidents = append(incidents, dto.IncidentInfo{
			IP:            row.IP,
			Type:          string(row.Type),
			CountAttempts: row.CountAttempts,
			FirstSeen:     row.FirstSeen,
			LastSeen:      row.LastSeen,
			Status:        row.Status,
		})
	}
	return incidents
}
