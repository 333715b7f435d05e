package shop

import (
	"context"

	"github.com/ahmadzakiakmal/ecommerce/logging"
	"github.com/ahmadzakiakmal/ecommerce/repository/models"
)

// AccountDirectory handles sessions and balances
type AccountDirectory struct {
	store AccountStore
	logs  *logging.Loggers
}

func NewAccountDirectory(store AccountStore, logs *logging.Loggers) *AccountDirectory {
	return &AccountDirectory{store: store, logs: logs}
}

// Login opens a session for (name, role), registering the account with a
// zero balance the first time, and returns its id
func (d *AccountDirectory) Login(ctx context.Context, name string, role models.Role) (int64, error) {
	logger := roleLogger(d.logs, role)
	account, err := d.store.Login(ctx, name, role)
	if err != nil {
		return 0, reject(logger, err, "Failed to log in %q", name)
	}
	logger.Info().Int64("id", account.ID).Msgf("%s %q logged in", role, account.DisplayName)
	return account.ID, nil
}

// Logout closes the account's session
func (d *AccountDirectory) Logout(ctx context.Context, id int64, role models.Role) error {
	logger := roleLogger(d.logs, role)
	if err := d.store.Logout(ctx, id, role); err != nil {
		return reject(logger, err, "Failed to log out %s %d", role, id)
	}
	logger.Info().Int64("id", id).Msgf("%s %d logged out", role, id)
	return nil
}

func (d *AccountDirectory) GetBalance(ctx context.Context, id int64, role models.Role) (int64, error) {
	logger := roleLogger(d.logs, role)
	balance, err := d.store.GetBalance(ctx, id, role)
	if err != nil {
		return 0, reject(logger, err, "Failed to get balance")
	}
	logger.Debug().Int64("id", id).Int64("balance", balance).Msg("Balance read")
	return balance, nil
}

// AdjustBalance adds delta, negative to withdraw, and returns the new
// balance. It never lets the balance drop below zero.
func (d *AccountDirectory) AdjustBalance(ctx context.Context, id int64, role models.Role, delta int64) (int64, error) {
	logger := roleLogger(d.logs, role)
	balance, err := d.store.SetBalance(ctx, id, role, delta)
	if err != nil {
		return 0, reject(logger, err, "Failed to adjust balance by %d", delta)
	}
	logger.Info().Int64("id", id).Msgf("Balance adjusted by %d, now %d", delta, balance)
	return balance, nil
}
