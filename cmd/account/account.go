package account

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"tradeledger/src/model"
	"tradeledger/src/repository"
	"tradeledger/src/security"
)

// Manager maintains the flex accounts the sync loop pulls statements for.
// The token is encrypted before it ever reaches the database.
type Manager struct {
	Log *logrus.Entry
}

func (m *Manager) Set(ctx context.Context, name, accountID, token, queryID string) error {
	encrypted, err := security.EncryptString(token)
	if err != nil {
		m.Log.WithError(err).Error("Failed to encrypt flex token")
		return err
	}

	flexAccount := &model.FlexAccount{
		Name:      name,
		AccountID: accountID,
		TokenHash: encrypted,
		QueryID:   queryID,
		Active:    true,
	}

	if err := repository.NewFlexAccountRepository().Upsert(ctx, flexAccount); err != nil {
		return err
	}

	m.Log.WithField("account", name).Info("Flex account saved")
	return nil
}

func (m *Manager) SetActive(ctx context.Context, name string, active bool) error {
	if err := repository.NewFlexAccountRepository().SetActive(ctx, name, active); err != nil {
		return err
	}

	m.Log.WithFields(logrus.Fields{
		"account": name,
		"active":  active,
	}).Info("Flex account updated")
	return nil
}

func (m *Manager) List(ctx context.Context) error {
	accounts, err := repository.NewFlexAccountRepository().ListActive(ctx)
	if err != nil {
		return err
	}

	if len(accounts) == 0 {
		fmt.Println("no active flex accounts")
		return nil
	}

	for _, a := range accounts {
		fmt.Printf("%s\taccount_id=%s\tquery_id=%s\n", a.Name, a.AccountID, a.QueryID)
	}
	return nil
}
