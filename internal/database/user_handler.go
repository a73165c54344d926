package database

import (
	"errors"
	"fmt"

	"kestrel/internal/domain"

	"gorm.io/gorm"
)

func GetUserByEmail(email string) (*domain.User, error) {
	if DB == nil {
		return nil, fmt.Errorf("database not initialised")
	}

	var user domain.User
	err := DB.Where("email = ?", email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func CreateUser(user *domain.User) error {
	if DB == nil {
		return fmt.Errorf("database not initialised")
	}
	return DB.Create(user).Error
}

func HasUsers() (bool, error) {
	if DB == nil {
		return false, fmt.Errorf("database not initialised")
	}

	var user domain.User
	err := DB.Select("id").Take(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}
