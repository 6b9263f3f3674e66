package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/lib/pq"

	"loan-engine/internal/domain"
)

// LoanRepository persists loan aggregates. Loans are loaded whole and saved
// whole; serializing concurrent writers on the same loan is the database
// transaction's job, the aggregate itself holds no locks.
type LoanRepository interface {
	Save(ctx context.Context, loan *domain.Loan) error
	FindByID(ctx context.Context, id string) (*domain.Loan, error)
	FindIDsByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]string, error)
}

type postgresLoanRepository struct {
	db *sql.DB
}

func NewLoanRepository(db *sql.DB) LoanRepository {
	return &postgresLoanRepository{db: db}
}

// Save upserts the loan row and rewrites its child collections in one
// database transaction.
func (r *postgresLoanRepository) Save(ctx context.Context, loan *domain.Loan) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO loans (
			id, client_id, external_id, currency_code, currency_places,
			principal, arrears_tolerance, strategy_code, status,
			submitted_date, approved_date, expected_disbursement_date, disbursement_date,
			rejected_date, withdrawn_date, closed_date, written_off_date, rescheduled_date,
			maturity_date, updated_at
		) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,NOW())
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			approved_date = EXCLUDED.approved_date,
			disbursement_date = EXCLUDED.disbursement_date,
			rejected_date = EXCLUDED.rejected_date,
			withdrawn_date = EXCLUDED.withdrawn_date,
			closed_date = EXCLUDED.closed_date,
			written_off_date = EXCLUDED.written_off_date,
			rescheduled_date = EXCLUDED.rescheduled_date,
			maturity_date = EXCLUDED.maturity_date,
			updated_at = NOW()`,
		loan.ID, loan.ClientID, loan.ExternalID, loan.Currency.Code, loan.Currency.DecimalPlaces,
		loan.Principal, loan.ArrearsTolerance, loan.StrategyCode, string(loan.Status),
		loan.SubmittedDate, nullTime(loan.ApprovedDate), loan.ExpectedDisbursementDate, nullTime(loan.DisbursementDate),
		nullTime(loan.RejectedDate), nullTime(loan.WithdrawnDate), nullTime(loan.ClosedDate), nullTime(loan.WrittenOffDate), nullTime(loan.RescheduledDate),
		nullTime(loan.MaturityDate))
	if err != nil {
		return err
	}

	if err := r.saveInstallments(ctx, tx, loan); err != nil {
		return err
	}
	if err := r.saveCharges(ctx, tx, loan); err != nil {
		return err
	}
	if err := r.saveTransactions(ctx, tx, loan); err != nil {
		return err
	}
	return tx.Commit()
}

func (r *postgresLoanRepository) saveInstallments(ctx context.Context, tx *sql.Tx, loan *domain.Loan) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM loan_installments WHERE loan_id = $1`, loan.ID); err != nil {
		return err
	}
	for _, inst := range loan.Installments {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loan_installments (
				loan_id, installment_number, from_date, due_date,
				principal_due, interest_due, fee_due, penalty_due,
				principal_paid, interest_paid, fee_paid, penalty_paid,
				interest_waived, fee_waived, penalty_waived,
				principal_written_off, interest_written_off, fee_written_off, penalty_written_off,
				completed
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
			loan.ID, inst.Number, inst.FromDate, inst.DueDate,
			inst.PrincipalDue, inst.InterestDue, inst.FeeDue, inst.PenaltyDue,
			inst.PrincipalPaid, inst.InterestPaid, inst.FeePaid, inst.PenaltyPaid,
			inst.InterestWaived, inst.FeeWaived, inst.PenaltyWaived,
			inst.PrincipalWrittenOff, inst.InterestWrittenOff, inst.FeeWrittenOff, inst.PenaltyWrittenOff,
			inst.Completed)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresLoanRepository) saveCharges(ctx context.Context, tx *sql.Tx, loan *domain.Loan) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM loan_charges WHERE loan_id = $1`, loan.ID); err != nil {
		return err
	}
	for _, charge := range loan.Charges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loan_charges (
				id, loan_id, name, timing, calculation, is_penalty, due_date,
				percentage, amount, paid, waived, written_off, fully_paid, is_waived
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`,
			charge.ID, loan.ID, charge.Name, string(charge.Timing), string(charge.Calculation), charge.IsPenalty, charge.DueDate,
			charge.Percentage, charge.Amount, charge.Paid, charge.Waived, charge.WrittenOff, charge.FullyPaid, charge.IsWaived)
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *postgresLoanRepository) saveTransactions(ctx context.Context, tx *sql.Tx, loan *domain.Loan) error {
	if _, err := tx.ExecContext(ctx, `DELETE FROM loan_charge_payments WHERE loan_id = $1`, loan.ID); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM loan_transactions WHERE loan_id = $1`, loan.ID); err != nil {
		return err
	}
	for _, txn := range loan.Transactions {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO loan_transactions (
				id, loan_id, type, transaction_date, amount,
				principal_portion, interest_portion, fee_portion, penalty_portion, overpayment_portion,
				reversed, contra_id
			) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			txn.ID, loan.ID, string(txn.Type), txn.Date, txn.Amount,
			txn.PrincipalPortion, txn.InterestPortion, txn.FeePortion, txn.PenaltyPortion, txn.OverpaymentPortion,
			txn.Reversed, nullString(txn.ContraID))
		if err != nil {
			return err
		}
		for _, cp := range txn.ChargePayments {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO loan_charge_payments (loan_id, transaction_id, charge_id, amount)
				VALUES ($1,$2,$3,$4)`,
				loan.ID, txn.ID, cp.ChargeID, cp.Amount)
			if err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *postgresLoanRepository) FindByID(ctx context.Context, id string) (*domain.Loan, error) {
	loan := &domain.Loan{}
	var status string
	var approved, disbursed, rejected, withdrawn, closed, writtenOff, rescheduled, maturity sql.NullTime
	err := r.db.QueryRowContext(ctx, `
		SELECT id, client_id, external_id, currency_code, currency_places,
			principal, arrears_tolerance, strategy_code, status,
			submitted_date, approved_date, expected_disbursement_date, disbursement_date,
			rejected_date, withdrawn_date, closed_date, written_off_date, rescheduled_date, maturity_date
		FROM loans WHERE id = $1`, id).Scan(
		&loan.ID, &loan.ClientID, &loan.ExternalID, &loan.Currency.Code, &loan.Currency.DecimalPlaces,
		&loan.Principal, &loan.ArrearsTolerance, &loan.StrategyCode, &status,
		&loan.SubmittedDate, &approved, &loan.ExpectedDisbursementDate, &disbursed,
		&rejected, &withdrawn, &closed, &writtenOff, &rescheduled, &maturity)
	if err == sql.ErrNoRows {
		return nil, domain.ErrLoanNotFound
	}
	if err != nil {
		return nil, err
	}
	loan.Status = domain.LoanStatus(status)
	loan.ApprovedDate = fromNullTime(approved)
	loan.DisbursementDate = fromNullTime(disbursed)
	loan.RejectedDate = fromNullTime(rejected)
	loan.WithdrawnDate = fromNullTime(withdrawn)
	loan.ClosedDate = fromNullTime(closed)
	loan.WrittenOffDate = fromNullTime(writtenOff)
	loan.RescheduledDate = fromNullTime(rescheduled)
	loan.MaturityDate = fromNullTime(maturity)

	if loan.Installments, err = r.loadInstallments(ctx, id); err != nil {
		return nil, err
	}
	if loan.Charges, err = r.loadCharges(ctx, id); err != nil {
		return nil, err
	}
	if loan.Transactions, err = r.loadTransactions(ctx, id); err != nil {
		return nil, err
	}
	return loan, nil
}

func (r *postgresLoanRepository) loadInstallments(ctx context.Context, loanID string) ([]*domain.Installment, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT installment_number, from_date, due_date,
			principal_due, interest_due, fee_due, penalty_due,
			principal_paid, interest_paid, fee_paid, penalty_paid,
			interest_waived, fee_waived, penalty_waived,
			principal_written_off, interest_written_off, fee_written_off, penalty_written_off,
			completed
		FROM loan_installments WHERE loan_id = $1
		ORDER BY installment_number ASC`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var installments []*domain.Installment
	for rows.Next() {
		inst := &domain.Installment{}
		err := rows.Scan(&inst.Number, &inst.FromDate, &inst.DueDate,
			&inst.PrincipalDue, &inst.InterestDue, &inst.FeeDue, &inst.PenaltyDue,
			&inst.PrincipalPaid, &inst.InterestPaid, &inst.FeePaid, &inst.PenaltyPaid,
			&inst.InterestWaived, &inst.FeeWaived, &inst.PenaltyWaived,
			&inst.PrincipalWrittenOff, &inst.InterestWrittenOff, &inst.FeeWrittenOff, &inst.PenaltyWrittenOff,
			&inst.Completed)
		if err != nil {
			return nil, err
		}
		installments = append(installments, inst)
	}
	return installments, rows.Err()
}

func (r *postgresLoanRepository) loadCharges(ctx context.Context, loanID string) ([]*domain.Charge, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, timing, calculation, is_penalty, due_date,
			percentage, amount, paid, waived, written_off, fully_paid, is_waived
		FROM loan_charges WHERE loan_id = $1
		ORDER BY due_date ASC, id ASC`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var charges []*domain.Charge
	for rows.Next() {
		charge := &domain.Charge{}
		var timing, calculation string
		err := rows.Scan(&charge.ID, &charge.Name, &timing, &calculation, &charge.IsPenalty, &charge.DueDate,
			&charge.Percentage, &charge.Amount, &charge.Paid, &charge.Waived, &charge.WrittenOff, &charge.FullyPaid, &charge.IsWaived)
		if err != nil {
			return nil, err
		}
		charge.Timing = domain.ChargeTiming(timing)
		charge.Calculation = domain.ChargeCalculation(calculation)
		charges = append(charges, charge)
	}
	return charges, rows.Err()
}

func (r *postgresLoanRepository) loadTransactions(ctx context.Context, loanID string) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, type, transaction_date, amount,
			principal_portion, interest_portion, fee_portion, penalty_portion, overpayment_portion,
			reversed, contra_id
		FROM loan_transactions WHERE loan_id = $1
		ORDER BY transaction_date ASC, id ASC`, loanID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	index := make(map[string]*domain.Transaction)
	var transactions []*domain.Transaction
	for rows.Next() {
		txn := &domain.Transaction{}
		var txType string
		var contra sql.NullString
		err := rows.Scan(&txn.ID, &txType, &txn.Date, &txn.Amount,
			&txn.PrincipalPortion, &txn.InterestPortion, &txn.FeePortion, &txn.PenaltyPortion, &txn.OverpaymentPortion,
			&txn.Reversed, &contra)
		if err != nil {
			return nil, err
		}
		txn.Type = domain.TransactionType(txType)
		txn.ContraID = contra.String
		index[txn.ID] = txn
		transactions = append(transactions, txn)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	cpRows, err := r.db.QueryContext(ctx, `
		SELECT transaction_id, charge_id, amount
		FROM loan_charge_payments WHERE loan_id = $1`, loanID)
	if err != nil {
		return nil, err
	}
	defer cpRows.Close()
	for cpRows.Next() {
		var txID string
		var cp domain.ChargePayment
		if err := cpRows.Scan(&txID, &cp.ChargeID, &cp.Amount); err != nil {
			return nil, err
		}
		if txn, ok := index[txID]; ok {
			txn.ChargePayments = append(txn.ChargePayments, cp)
		}
	}
	return transactions, cpRows.Err()
}

func (r *postgresLoanRepository) FindIDsByStatus(ctx context.Context, statuses ...domain.LoanStatus) ([]string, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT id FROM loans WHERE status = ANY($1) ORDER BY id`, statusArray(statuses))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func statusArray(statuses []domain.LoanStatus) interface{} {
	values := make([]string, len(statuses))
	for i, s := range statuses {
		values[i] = string(s)
	}
	return pq.Array(values)
}

func nullTime(t time.Time) sql.NullTime {
	return sql.NullTime{Time: t, Valid: !t.IsZero()}
}

func fromNullTime(t sql.NullTime) time.Time {
	if !t.Valid {
		return time.Time{}
	}
	return domain.ToDate(t.Time)
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
