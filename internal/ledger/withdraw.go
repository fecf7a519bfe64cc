package ledger

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"revenue-market/internal/domain"
)

// WithdrawProceeds pays out the pending withdrawal of account and zeroes it.
// The host transfers the returned amount.
func (l *Ledger) WithdrawProceeds(ctx context.Context, account string) (uint64, error) {
	if err := l.checkActor(account); err != nil {
		return 0, fmt.Errorf("withdraw proceeds: %w", err)
	}

	var amount uint64
	err := l.execute(ctx, "withdraw_proceeds", []string{accountKey(account)}, func(u *unit) error {
		pos, err := u.tx.Accounts().Get(u.ctx, account)
		if err != nil {
			return mapStorage(err, ErrNothingToWithdraw)
		}
		if pos.PendingWithdrawal == 0 {
			return ErrNothingToWithdraw
		}

		amount = pos.PendingWithdrawal
		pos.PendingWithdrawal = 0
		pos.UpdatedAt = u.now
		if err := u.tx.Accounts().Put(u.ctx, pos); err != nil {
			return fmt.Errorf("put account: %w", err)
		}

		return u.emit(domain.Event{
			Type:    domain.EventProceedsWithdrawn,
			Actor:   account,
			Payment: amount,
		})
	})
	if err != nil {
		return 0, err
	}

	l.log.WithFields(logrus.Fields{"account": account, "amount": amount}).Info("proceeds withdrawn")
	return amount, nil
}
