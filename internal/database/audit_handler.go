package database

import (
	"fmt"

	"kestrel/internal/domain"
)

// AppendAuditEntry records a block/unblock attempt. Audit entries are
// append-only.
func AppendAuditEntry(entry domain.AuditEntry) error {
	if DB == nil {
		return fmt.Errorf("database not initialised")
	}
	return DB.Create(&entry).Error
}

// GetAuditPage returns audit entries for one IP, newest first.
func GetAuditPage(ip string, page, pageSize int) ([]domain.AuditEntry, int64, error) {
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
	if err := DB.Model(&domain.AuditEntry{}).Where("ip = ?", ip).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var entries []domain.AuditEntry
	err := DB.Model(&domain.AuditEntry{}).
		Where("ip = ?", ip).
		Order("created_at DESC").
		Offset((page - 1) * pageSize).
		Limit(pageSize).
		Find(&entries).Error
	return entries, total, err
}
