package quote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound signals the requested quote does not exist.
var ErrNotFound = errors.New("quote: not found")

// Repository defines the data access required by the quote service.
type Repository interface {
	CreateFarmerQuote(ctx context.Context, farmerID string, params CreateParams) (FarmerQuote, error)
	CreateFPOQuote(ctx context.Context, fpoID string, params CreateParams) (FPOQuote, error)
	ListFarmerQuotesByOwner(ctx context.Context, farmerID string) ([]FarmerQuote, error)
	ListFPOQuotesByOwner(ctx context.Context, fpoID string) ([]FPOQuote, error)
	ListOpenFarmerQuotes(ctx context.Context, excludingFPOID string) ([]FarmerQuote, error)
	ListOpenFPOQuotes(ctx context.Context, excludingRetailerID string) ([]FPOQuote, error)
	GetFarmerQuote(ctx context.Context, id string) (FarmerQuote, error)
	GetFPOQuote(ctx context.Context, id string) (FPOQuote, error)
	SetContractAddress(ctx context.Context, quoteID, address string, at time.Time) (FarmerQuote, error)
	GetContractDetails(ctx context.Context, address string) (ContractDetails, error)
	FarmerDashboard(ctx context.Context, farmerID string) (FarmerDashboard, error)
	FPODashboard(ctx context.Context, fpoID string) (FPODashboard, error)
	RetailerDashboard(ctx context.Context, retailerID string) (RetailerDashboard, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const farmerQuoteColumns = `
	fq.id, fq.farmer_id, fq.product_name, fq.category, fq.description,
	fq.quantity, fq.unit, fq.price_per_unit, fq.status::text, fq.deadline,
	fq.accepted_bid_id, fq.contract_address, fq.contract_created_at,
	fq.created_at, a.name, a.email`

const fpoQuoteColumns = `
	fq.id, fq.fpo_id, fq.product_name, fq.category, fq.description,
	fq.quantity, fq.unit, fq.price_per_unit, fq.status::text, fq.deadline,
	fq.accepted_bid_id, fq.created_at, a.name, a.email`

func (r *PGRepository) CreateFarmerQuote(ctx context.Context, farmerID string, params CreateParams) (FarmerQuote, error) {
	const insertSQL = `
		WITH inserted AS (
			INSERT INTO farmer_quotes (farmer_id, product_name, category, description, quantity, unit, price_per_unit, deadline)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING *
		)
		SELECT ` + farmerQuoteColumns + `
		FROM inserted fq
		JOIN accounts a ON a.id = fq.farmer_id
	`

	q, err := scanFarmerQuote(r.pool.QueryRow(ctx, insertSQL,
		farmerID,
		params.ProductName,
		params.Category,
		params.Description,
		params.Quantity,
		params.Unit,
		params.PricePerUnit,
		params.Deadline,
	))
	if err != nil {
		return FarmerQuote{}, fmt.Errorf("quote: create farmer quote: %w", err)
	}
	return q, nil
}

func (r *PGRepository) CreateFPOQuote(ctx context.Context, fpoID string, params CreateParams) (FPOQuote, error) {
	const insertSQL = `
		WITH inserted AS (
			INSERT INTO fpo_quotes (fpo_id, product_name, category, description, quantity, unit, price_per_unit, deadline)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			RETURNING *
		)
		SELECT ` + fpoQuoteColumns + `
		FROM inserted fq
		JOIN accounts a ON a.id = fq.fpo_id
	`

	q, err := scanFPOQuote(r.pool.QueryRow(ctx, insertSQL,
		fpoID,
		params.ProductName,
		params.Category,
		params.Description,
		params.Quantity,
		params.Unit,
		params.PricePerUnit,
		params.Deadline,
	))
	if err != nil {
		return FPOQuote{}, fmt.Errorf("quote: create fpo quote: %w", err)
	}
	return q, nil
}

func (r *PGRepository) ListFarmerQuotesByOwner(ctx context.Context, farmerID string) ([]FarmerQuote, error) {
	const query = `
		SELECT ` + farmerQuoteColumns + `
		FROM farmer_quotes fq
		JOIN accounts a ON a.id = fq.farmer_id
		WHERE fq.farmer_id = $1
		ORDER BY fq.created_at DESC
	`
	quotes, err := r.queryFarmerQuotes(ctx, query, farmerID)
	if err != nil {
		return nil, err
	}
	return r.attachFarmerBids(ctx, quotes)
}

func (r *PGRepository) ListFPOQuotesByOwner(ctx context.Context, fpoID string) ([]FPOQuote, error) {
	const query = `
		SELECT ` + fpoQuoteColumns + `
		FROM fpo_quotes fq
		JOIN accounts a ON a.id = fq.fpo_id
		WHERE fq.fpo_id = $1
		ORDER BY fq.created_at DESC
	`
	quotes, err := r.queryFPOQuotes(ctx, query, fpoID)
	if err != nil {
		return nil, err
	}
	return r.attachFPOBids(ctx, quotes)
}

func (r *PGRepository) ListOpenFarmerQuotes(ctx context.Context, excludingFPOID string) ([]FarmerQuote, error) {
	const query = `
		SELECT ` + farmerQuoteColumns + `
		FROM farmer_quotes fq
		JOIN accounts a ON a.id = fq.farmer_id
		WHERE fq.status = 'open'
		  AND NOT EXISTS (
			SELECT 1 FROM fpo_bids b
			WHERE b.quote_id = fq.id AND b.fpo_id = $1
		  )
		ORDER BY fq.created_at DESC
	`
	return r.queryFarmerQuotes(ctx, query, excludingFPOID)
}

func (r *PGRepository) ListOpenFPOQuotes(ctx context.Context, excludingRetailerID string) ([]FPOQuote, error) {
	const query = `
		SELECT ` + fpoQuoteColumns + `
		FROM fpo_quotes fq
		JOIN accounts a ON a.id = fq.fpo_id
		WHERE fq.status = 'open'
		  AND NOT EXISTS (
			SELECT 1 FROM retailer_bids b
			WHERE b.quote_id = fq.id AND b.retailer_id = $1
		  )
		ORDER BY fq.created_at DESC
	`
	return r.queryFPOQuotes(ctx, query, excludingRetailerID)
}

func (r *PGRepository) GetFarmerQuote(ctx context.Context, id string) (FarmerQuote, error) {
	const query = `
		SELECT ` + farmerQuoteColumns + `
		FROM farmer_quotes fq
		JOIN accounts a ON a.id = fq.farmer_id
		WHERE fq.id = $1
	`
	q, err := scanFarmerQuote(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FarmerQuote{}, ErrNotFound
		}
		return FarmerQuote{}, fmt.Errorf("quote: get farmer quote: %w", err)
	}

	quotes, err := r.attachFarmerBids(ctx, []FarmerQuote{q})
	if err != nil {
		return FarmerQuote{}, err
	}
	return quotes[0], nil
}

func (r *PGRepository) GetFPOQuote(ctx context.Context, id string) (FPOQuote, error) {
	const query = `
		SELECT ` + fpoQuoteColumns + `
		FROM fpo_quotes fq
		JOIN accounts a ON a.id = fq.fpo_id
		WHERE fq.id = $1
	`
	q, err := scanFPOQuote(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FPOQuote{}, ErrNotFound
		}
		return FPOQuote{}, fmt.Errorf("quote: get fpo quote: %w", err)
	}

	quotes, err := r.attachFPOBids(ctx, []FPOQuote{q})
	if err != nil {
		return FPOQuote{}, err
	}
	return quotes[0], nil
}

func (r *PGRepository) SetContractAddress(ctx context.Context, quoteID, address string, at time.Time) (FarmerQuote, error) {
	const updateSQL = `
		WITH updated AS (
			UPDATE farmer_quotes
			SET contract_address = $2,
			    status = 'contract_created',
			    contract_created_at = $3
			WHERE id = $1
			RETURNING *
		)
		SELECT ` + farmerQuoteColumns + `
		FROM updated fq
		JOIN accounts a ON a.id = fq.farmer_id
	`
	q, err := scanFarmerQuote(r.pool.QueryRow(ctx, updateSQL, quoteID, address, at))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FarmerQuote{}, ErrNotFound
		}
		return FarmerQuote{}, fmt.Errorf("quote: set contract address: %w", err)
	}
	return q, nil
}

func (r *PGRepository) GetContractDetails(ctx context.Context, address string) (ContractDetails, error) {
	const query = `
		SELECT ` + farmerQuoteColumns + `, a.city, a.state, fpo.name, fpo.email
		FROM farmer_quotes fq
		JOIN accounts a ON a.id = fq.farmer_id
		LEFT JOIN fpo_bids ab ON ab.id = fq.accepted_bid_id
		LEFT JOIN accounts fpo ON fpo.id = ab.fpo_id
		WHERE fq.contract_address = $1
	`

	var (
		q          FarmerQuote
		city       string
		state      string
		fpoName    *string
		fpoEmail   *string
	)
	row := r.pool.QueryRow(ctx, query, address)
	if err := row.Scan(
		&q.ID, &q.FarmerID, &q.ProductName, &q.Category, &q.Description,
		&q.Quantity, &q.Unit, &q.PricePerUnit, &q.Status, &q.Deadline,
		&q.AcceptedBidID, &q.ContractAddress, &q.ContractCreatedAt,
		&q.CreatedAt, &q.FarmerName, &q.FarmerEmail,
		&city, &state, &fpoName, &fpoEmail,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ContractDetails{}, ErrNotFound
		}
		return ContractDetails{}, fmt.Errorf("quote: get contract details: %w", err)
	}

	quotes, err := r.attachFarmerBids(ctx, []FarmerQuote{q})
	if err != nil {
		return ContractDetails{}, err
	}

	return ContractDetails{
		Quote:           quotes[0],
		ContractAddress: address,
		FarmerName:      q.FarmerName,
		FarmerLocation:  fmt.Sprintf("%s, %s", city, state),
		FPOName:         fpoName,
		FPOEmail:        fpoEmail,
	}, nil
}

func (r *PGRepository) FarmerDashboard(ctx context.Context, farmerID string) (FarmerDashboard, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM farmer_quotes WHERE farmer_id = $1),
			(SELECT COUNT(*) FROM fpo_bids b JOIN farmer_quotes q ON q.id = b.quote_id WHERE q.farmer_id = $1),
			(SELECT COUNT(*) FROM farmer_quotes WHERE farmer_id = $1 AND status = 'open'),
			(SELECT COUNT(*) FROM farmer_quotes WHERE farmer_id = $1 AND status = 'awarded')
	`
	var d FarmerDashboard
	if err := r.pool.QueryRow(ctx, query, farmerID).Scan(
		&d.MyQuotesCount, &d.BidsReceivedCount, &d.ActiveQuotes, &d.AwardedQuotes,
	); err != nil {
		return FarmerDashboard{}, fmt.Errorf("quote: farmer dashboard: %w", err)
	}
	return d, nil
}

func (r *PGRepository) FPODashboard(ctx context.Context, fpoID string) (FPODashboard, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM farmer_quotes WHERE status = 'open'),
			(SELECT COUNT(*) FROM fpo_bids WHERE fpo_id = $1),
			(SELECT COUNT(*) FROM fpo_quotes WHERE fpo_id = $1),
			(SELECT COUNT(*) FROM retailer_bids b JOIN fpo_quotes q ON q.id = b.quote_id WHERE q.fpo_id = $1)
	`
	var d FPODashboard
	if err := r.pool.QueryRow(ctx, query, fpoID).Scan(
		&d.AvailableFarmerQuotesCount, &d.MyBidsCount, &d.MyQuotesCount, &d.RetailerBidsCount,
	); err != nil {
		return FPODashboard{}, fmt.Errorf("quote: fpo dashboard: %w", err)
	}
	return d, nil
}

func (r *PGRepository) RetailerDashboard(ctx context.Context, retailerID string) (RetailerDashboard, error) {
	const query = `
		SELECT
			(SELECT COUNT(*) FROM fpo_quotes WHERE status = 'open'),
			(SELECT COUNT(*) FROM retailer_bids WHERE retailer_id = $1),
			(SELECT COUNT(*) FROM retailer_bids WHERE retailer_id = $1 AND status = 'accepted')
	`
	var d RetailerDashboard
	if err := r.pool.QueryRow(ctx, query, retailerID).Scan(
		&d.AvailableFPOQuotesCount, &d.MyBidsCount, &d.AcceptedBidsCount,
	); err != nil {
		return RetailerDashboard{}, fmt.Errorf("quote: retailer dashboard: %w", err)
	}
	return d, nil
}

func (r *PGRepository) queryFarmerQuotes(ctx context.Context, query string, args ...any) ([]FarmerQuote, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("quote: list farmer quotes: %w", err)
	}
	defer rows.Close()

	out := make([]FarmerQuote, 0, 8)
	for rows.Next() {
		q, err := scanFarmerQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("quote: scan farmer quote: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quote: iterate farmer quotes: %w", err)
	}
	return out, nil
}

func (r *PGRepository) queryFPOQuotes(ctx context.Context, query string, args ...any) ([]FPOQuote, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("quote: list fpo quotes: %w", err)
	}
	defer rows.Close()

	out := make([]FPOQuote, 0, 8)
	for rows.Next() {
		q, err := scanFPOQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("quote: scan fpo quote: %w", err)
		}
		out = append(out, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quote: iterate fpo quotes: %w", err)
	}
	return out, nil
}

// attachFarmerBids loads bid summaries for the given quotes in one query.
func (r *PGRepository) attachFarmerBids(ctx context.Context, quotes []FarmerQuote) ([]FarmerQuote, error) {
	if len(quotes) == 0 {
		return quotes, nil
	}
	ids := make([]string, len(quotes))
	for i, q := range quotes {
		ids[i] = q.ID
	}

	const query = `
		SELECT b.quote_id, b.id, a.name, b.bid_amount, b.delivery_time_days, b.status::text, b.submitted_at
		FROM fpo_bids b
		JOIN accounts a ON a.id = b.fpo_id
		WHERE b.quote_id = ANY($1)
		ORDER BY b.submitted_at ASC
	`
	byQuote, err := r.queryBidSummaries(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	for i := range quotes {
		quotes[i].Bids = byQuote[quotes[i].ID]
	}
	return quotes, nil
}

func (r *PGRepository) attachFPOBids(ctx context.Context, quotes []FPOQuote) ([]FPOQuote, error) {
	if len(quotes) == 0 {
		return quotes, nil
	}
	ids := make([]string, len(quotes))
	for i, q := range quotes {
		ids[i] = q.ID
	}

	const query = `
		SELECT b.quote_id, b.id, a.name, b.bid_amount, b.delivery_time_days, b.status::text, b.submitted_at
		FROM retailer_bids b
		JOIN accounts a ON a.id = b.retailer_id
		WHERE b.quote_id = ANY($1)
		ORDER BY b.submitted_at ASC
	`
	byQuote, err := r.queryBidSummaries(ctx, query, ids)
	if err != nil {
		return nil, err
	}
	for i := range quotes {
		quotes[i].Bids = byQuote[quotes[i].ID]
	}
	return quotes, nil
}

func (r *PGRepository) queryBidSummaries(ctx context.Context, query string, ids []string) (map[string][]BidSummary, error) {
	rows, err := r.pool.Query(ctx, query, ids)
	if err != nil {
		return nil, fmt.Errorf("quote: load bid summaries: %w", err)
	}
	defer rows.Close()

	byQuote := make(map[string][]BidSummary)
	for rows.Next() {
		var (
			quoteID string
			b       BidSummary
		)
		if err := rows.Scan(&quoteID, &b.ID, &b.BidderName, &b.BidAmount, &b.DeliveryTimeDays, &b.Status, &b.SubmittedAt); err != nil {
			return nil, fmt.Errorf("quote: scan bid summary: %w", err)
		}
		byQuote[quoteID] = append(byQuote[quoteID], b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("quote: iterate bid summaries: %w", err)
	}
	return byQuote, nil
}

func scanFarmerQuote(row pgx.Row) (FarmerQuote, error) {
	var q FarmerQuote
	err := row.Scan(
		&q.ID, &q.FarmerID, &q.ProductName, &q.Category, &q.Description,
		&q.Quantity, &q.Unit, &q.PricePerUnit, &q.Status, &q.Deadline,
		&q.AcceptedBidID, &q.ContractAddress, &q.ContractCreatedAt,
		&q.CreatedAt, &q.FarmerName, &q.FarmerEmail,
	)
	if err != nil {
		return FarmerQuote{}, err
	}
	return q, nil
}

func scanFPOQuote(row pgx.Row) (FPOQuote, error) {
	var q FPOQuote
	err := row.Scan(
		&q.ID, &q.FPOID, &q.ProductName, &q.Category, &q.Description,
		&q.Quantity, &q.Unit, &q.PricePerUnit, &q.Status, &q.Deadline,
		&q.AcceptedBidID, &q.CreatedAt, &q.FPOName, &q.FPOEmail,
	)
	if err != nil {
		return FPOQuote{}, err
	}
	return q, nil
}
