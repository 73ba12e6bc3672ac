package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrAccountNotFound signals that no account matches the lookup.
	ErrAccountNotFound = errors.New("auth: account not found")
	// ErrDuplicateAccount signals the email, registry number, or wallet
	// address is already registered.
	ErrDuplicateAccount = errors.New("auth: account already exists")
)

// Repository handles data access for accounts.
type Repository interface {
	CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error)
	GetByEmail(ctx context.Context, role Role, email string) (Account, error)
	GetByID(ctx context.Context, id string) (Account, error)
	ListPending(ctx context.Context) ([]Account, error)
	SetApproval(ctx context.Context, id string, approval Approval) (Account, error)
}

// CreateAccountParams contains write parameters for creating accounts.
type CreateAccountParams struct {
	ID            string
	Role          Role
	Name          string
	Email         string
	PasswordHash  string
	RegistryNo    *string
	WalletAddress *string
	City          string
	State         string
	Approval      Approval
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository creates a PostgreSQL-backed account repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const accountColumns = `id, role::text, name, email, password_hash, registry_no, wallet_address, city, state, approval::text, created_at, updated_at`

// CreateAccount inserts a new account with a hashed password.
func (r *PGRepository) CreateAccount(ctx context.Context, params CreateAccountParams) (Account, error) {
	const insertSQL = `
		INSERT INTO accounts (id, role, name, email, password_hash, registry_no, wallet_address, city, state, approval)
		VALUES ($1, $2::account_role, $3, $4, $5, $6, $7, $8, $9, $10::approval_status)
		RETURNING ` + accountColumns

	acct, err := scanAccount(r.pool.QueryRow(ctx, insertSQL,
		params.ID,
		params.Role,
		params.Name,
		params.Email,
		params.PasswordHash,
		params.RegistryNo,
		params.WalletAddress,
		params.City,
		params.State,
		params.Approval,
	))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Account{}, ErrDuplicateAccount
		}
		return Account{}, fmt.Errorf("auth: create account: %w", err)
	}

	return acct, nil
}

// GetByEmail retrieves an account by role and email address.
func (r *PGRepository) GetByEmail(ctx context.Context, role Role, email string) (Account, error) {
	const selectSQL = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE role = $1::account_role AND email = $2
	`

	acct, err := scanAccount(r.pool.QueryRow(ctx, selectSQL, role, email))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("auth: get account by email: %w", err)
	}

	return acct, nil
}

// GetByID retrieves an account by its identifier.
func (r *PGRepository) GetByID(ctx context.Context, id string) (Account, error) {
	const selectSQL = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE id = $1
	`

	acct, err := scanAccount(r.pool.QueryRow(ctx, selectSQL, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("auth: get account by id: %w", err)
	}

	return acct, nil
}

// ListPending returns all non-admin accounts awaiting admin review, oldest
// first.
func (r *PGRepository) ListPending(ctx context.Context) ([]Account, error) {
	const selectSQL = `
		SELECT ` + accountColumns + `
		FROM accounts
		WHERE approval = 'pending' AND role <> 'admin'
		ORDER BY created_at ASC
	`

	rows, err := r.pool.Query(ctx, selectSQL)
	if err != nil {
		return nil, fmt.Errorf("auth: list pending: %w", err)
	}
	defer rows.Close()

	out := make([]Account, 0, 8)
	for rows.Next() {
		acct, err := scanAccount(rows)
		if err != nil {
			return nil, fmt.Errorf("auth: scan pending account: %w", err)
		}
		out = append(out, acct)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("auth: iterate pending accounts: %w", err)
	}
	return out, nil
}

// SetApproval records the admin decision for an account.
func (r *PGRepository) SetApproval(ctx context.Context, id string, approval Approval) (Account, error) {
	const updateSQL = `
		UPDATE accounts
		SET approval = $2::approval_status, updated_at = now()
		WHERE id = $1
		RETURNING ` + accountColumns

	acct, err := scanAccount(r.pool.QueryRow(ctx, updateSQL, id, approval))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrAccountNotFound
		}
		return Account{}, fmt.Errorf("auth: set approval: %w", err)
	}

	return acct, nil
}

func scanAccount(row pgx.Row) (Account, error) {
	var acct Account
	err := row.Scan(
		&acct.ID,
		&acct.Role,
		&acct.Name,
		&acct.Email,
		&acct.PasswordHash,
		&acct.RegistryNo,
		&acct.WalletAddress,
		&acct.City,
		&acct.State,
		&acct.Approval,
		&acct.CreatedAt,
		&acct.UpdatedAt,
	)
	if err != nil {
		return Account{}, err
	}
	return acct, nil
}
