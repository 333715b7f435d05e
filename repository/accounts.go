package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/ahmadzakiakmal/ecommerce/repository/models"
	"github.com/ahmadzakiakmal/ecommerce/shoperr"
	"gorm.io/gorm"
)

// Login registers the (name, role) account on first sight and opens its
// session. A second login while the session is open fails with
// AlreadyConnected.
func (r *Repository) Login(ctx context.Context, name string, role models.Role) (*models.Account, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, shoperr.New(shoperr.InvalidArgument, "Display name is required", "")
	}

	var account models.Account
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("display_name = ? AND role = ?", name, role).First(&account).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			account = models.Account{DisplayName: name, Role: role, SessionActive: true}
			return tx.Create(&account).Error
		}
		if err != nil {
			return err
		}

		result := tx.Model(&models.Account{}).
			Where("id = ? AND session_active = ?", account.ID, false).
			Update("session_active", true)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shoperr.Newf(shoperr.AlreadyConnected, "User already connected",
				"%s %q already has an open session", role, name)
		}
		account.SessionActive = true
		return nil
	})
	if err != nil {
		return nil, translate(err, "Failed to log in")
	}
	return &account, nil
}

// Logout closes the account's session
func (r *Repository) Logout(ctx context.Context, id int64, role models.Role) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		result := tx.Model(&models.Account{}).
			Where("id = ? AND role = ? AND session_active = ?", id, role, true).
			Update("session_active", false)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected > 0 {
			return nil
		}
		if _, err := findAccount(tx, id, role); err != nil {
			return err
		}
		return shoperr.Newf(shoperr.NotLoggedIn, "User not logged in", "%s %d has no open session", role, id)
	})
	return translate(err, "Failed to log out")
}

// GetAccount fetches an account by id within its role
func (r *Repository) GetAccount(ctx context.Context, id int64, role models.Role) (*models.Account, error) {
	account, err := findAccount(r.db.WithContext(ctx), id, role)
	if err != nil {
		return nil, translate(err, "Failed to get account")
	}
	return account, nil
}

// GetBalance returns the account's balance
func (r *Repository) GetBalance(ctx context.Context, id int64, role models.Role) (int64, error) {
	account, err := r.GetAccount(ctx, id, role)
	if err != nil {
		return 0, err
	}
	return account.Balance, nil
}

// SetBalance applies delta to the account's balance and returns the new
// balance. The change is rejected with InsufficientFunds when it would make
// the balance negative.
func (r *Repository) SetBalance(ctx context.Context, id int64, role models.Role, delta int64) (int64, error) {
	var balance int64
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var err error
		balance, err = adjustBalance(tx, id, role, delta)
		return err
	})
	if err != nil {
		return 0, translate(err, "Failed to update balance")
	}
	return balance, nil
}

// adjustBalance is a single guarded UPDATE so concurrent adjustments never
// lose an update and never cross zero
func adjustBalance(tx *gorm.DB, id int64, role models.Role, delta int64) (int64, error) {
	result := tx.Model(&models.Account{}).
		Where("id = ? AND role = ? AND balance + ? >= 0", id, role, delta).
		Update("balance", gorm.Expr("balance + ?", delta))
	if result.Error != nil {
		return 0, result.Error
	}

	account, err := findAccount(tx, id, role)
	if err != nil {
		return 0, err
	}
	if result.RowsAffected == 0 {
		return 0, shoperr.Newf(shoperr.InsufficientFunds, "Insufficient funds",
			"%s %d has %d, change of %d rejected", role, id, account.Balance, delta)
	}
	return account.Balance, nil
}

func findAccount(tx *gorm.DB, id int64, role models.Role) (*models.Account, error) {
	var account models.Account
	err := tx.Where("id = ? AND role = ?", id, role).First(&account).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, shoperr.Newf(shoperr.NotFound, "Account not found", "no %s with id %d", role, id)
	}
	if err != nil {
		return nil, err
	}
	return &account, nil
}
