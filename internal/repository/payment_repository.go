package repository

import (
	"context"

	"github.com/spec-kit/shield-service/internal/domain"
)

// PaymentRepository records confirmed payments.
type PaymentRepository interface {
	Create(ctx context.Context, payment *domain.Payment) error
	ListByUser(ctx context.Context, userID string) ([]domain.Payment, error)
}

type paymentRepository struct {
	db DBTX
}

func (r *paymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	const query = `
        INSERT INTO payments (user_id, reference, plan, billing_cycle, amount, paid_at)
        VALUES ($1,$2,$3,$4,$5,$6)
        RETURNING id`
	return r.db.QueryRow(ctx, query,
		payment.UserID,
		payment.Reference,
		payment.Plan,
		payment.BillingCycle,
		payment.Amount,
		payment.PaidAt,
	).Scan(&payment.ID)
}

func (r *paymentRepository) ListByUser(ctx context.Context, userID string) ([]domain.Payment, error) {
	const query = `
        SELECT id, user_id, reference, plan, billing_cycle, amount, paid_at
        FROM payments WHERE user_id=$1 ORDER BY paid_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []domain.Payment
	for rows.Next() {
		var p domain.Payment
		if err := rows.Scan(&p.ID, &p.UserID, &p.Reference, &p.Plan, &p.BillingCycle, &p.Amount, &p.PaidAt); err != nil {
			return nil, err
		}
		result = append(result, p)
	}
	return result, rows.Err()
}
