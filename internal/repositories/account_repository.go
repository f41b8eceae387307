package repositories

import (
	"errors"

	"gorm.io/gorm"

	"github.com/ITAMARV101/duowalk/internal/models"
)

var ErrAccountNotFound = errors.New("account not found")

// AccountRepository persists login credentials. Everything else about a user
// lives in the keyed store.
type AccountRepository struct {
	DB *gorm.DB
}

func (r *AccountRepository) Create(account *models.Account) error {
	return r.DB.Create(account).Error
}

func (r *AccountRepository) GetByUID(uid string) (*models.Account, error) {
	var account models.Account
	err := r.DB.First(&account, "uid = ?", uid).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	return &account, err
}

func (r *AccountRepository) GetByEmail(email string) (*models.Account, error) {
	var account models.Account
	err := r.DB.First(&account, "email = ?", email).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrAccountNotFound
	}
	return &account, err
}

func (r *AccountRepository) Delete(uid string) error {
	result := r.DB.Delete(&models.Account{}, "uid = ?", uid)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return ErrAccountNotFound
	}
	return nil
}
