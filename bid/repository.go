package bid

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	// ErrNotFound signals the bid (or its quote) does not exist.
	ErrNotFound = errors.New("bid: not found")
	// ErrForbidden signals the caller does not own the quote the bid was
	// placed on.
	ErrForbidden = errors.New("bid: forbidden")
	// ErrQuoteNotOpen signals the quote has left the open state.
	ErrQuoteNotOpen = errors.New("bid: quote is not open")
	// ErrDuplicateBid signals this bidder already has a bid on the quote.
	ErrDuplicateBid = errors.New("bid: duplicate bid on quote")
)

// Repository defines the data access required by the bid service.
type Repository interface {
	InsertFPOBid(ctx context.Context, fpoID, quoteID string, params CreateParams) (FPOBid, error)
	InsertRetailerBid(ctx context.Context, retailerID, quoteID string, params CreateParams) (RetailerBid, error)
	AcceptFPOBid(ctx context.Context, farmerID, bidID string) (FPOBid, error)
	AcceptRetailerBid(ctx context.Context, fpoID, bidID string) (RetailerBid, error)
	ListRetailerBidsByBidder(ctx context.Context, retailerID string) ([]RetailerBid, error)
	GetFPOBid(ctx context.Context, id string) (Resolved, error)
	GetRetailerBid(ctx context.Context, id string) (Resolved, error)
}

// PGRepository implements Repository backed by PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewRepository wires a pgxpool-backed repository implementation.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const fpoBidColumns = `
	b.id, b.fpo_id, b.quote_id, b.bid_amount, b.delivery_time_days,
	b.comments, b.status::text, b.payment_status::text, b.transaction_hash,
	b.submitted_at, a.name, q.product_name`

const retailerBidColumns = `
	b.id, b.retailer_id, b.quote_id, b.bid_amount, b.delivery_time_days,
	b.comments, b.status::text, b.payment_status::text, b.transaction_hash,
	b.submitted_at, a.name, q.product_name`

// InsertFPOBid places a bid on a farmer quote. The quote row is locked for
// the duration of the transaction so the open check and the insert are one
// atomic step; the (fpo_id, quote_id) unique constraint closes the
// duplicate race.
func (r *PGRepository) InsertFPOBid(ctx context.Context, fpoID, quoteID string, params CreateParams) (FPOBid, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return FPOBid{}, fmt.Errorf("bid: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx, `SELECT status::text FROM farmer_quotes WHERE id = $1 FOR UPDATE`, quoteID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FPOBid{}, ErrNotFound
		}
		return FPOBid{}, fmt.Errorf("bid: lock farmer quote: %w", err)
	}
	if status != "open" {
		return FPOBid{}, ErrQuoteNotOpen
	}

	const insertSQL = `
		WITH inserted AS (
			INSERT INTO fpo_bids (fpo_id, quote_id, bid_amount, delivery_time_days, comments)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		)
		SELECT ` + fpoBidColumns + `
		FROM inserted b
		JOIN accounts a ON a.id = b.fpo_id
		JOIN farmer_quotes q ON q.id = b.quote_id
	`

	b, err := scanFPOBid(tx.QueryRow(ctx, insertSQL, fpoID, quoteID, params.BidAmount, params.DeliveryTimeDays, params.Comments))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return FPOBid{}, ErrDuplicateBid
		}
		return FPOBid{}, fmt.Errorf("bid: insert fpo bid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return FPOBid{}, fmt.Errorf("bid: commit fpo bid: %w", err)
	}
	return b, nil
}

// InsertRetailerBid places a bid on an FPO quote under the same locking and
// uniqueness discipline as InsertFPOBid.
func (r *PGRepository) InsertRetailerBid(ctx context.Context, retailerID, quoteID string, params CreateParams) (RetailerBid, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return RetailerBid{}, fmt.Errorf("bid: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var status string
	if err := tx.QueryRow(ctx, `SELECT status::text FROM fpo_quotes WHERE id = $1 FOR UPDATE`, quoteID).Scan(&status); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RetailerBid{}, ErrNotFound
		}
		return RetailerBid{}, fmt.Errorf("bid: lock fpo quote: %w", err)
	}
	if status != "open" {
		return RetailerBid{}, ErrQuoteNotOpen
	}

	const insertSQL = `
		WITH inserted AS (
			INSERT INTO retailer_bids (retailer_id, quote_id, bid_amount, delivery_time_days, comments)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING *
		)
		SELECT ` + retailerBidColumns + `
		FROM inserted b
		JOIN accounts a ON a.id = b.retailer_id
		JOIN fpo_quotes q ON q.id = b.quote_id
	`

	b, err := scanRetailerBid(tx.QueryRow(ctx, insertSQL, retailerID, quoteID, params.BidAmount, params.DeliveryTimeDays, params.Comments))
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return RetailerBid{}, ErrDuplicateBid
		}
		return RetailerBid{}, fmt.Errorf("bid: insert retailer bid: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return RetailerBid{}, fmt.Errorf("bid: commit retailer bid: %w", err)
	}
	return b, nil
}

// AcceptFPOBid marks the farmer's accepted bid and moves the quote to
// accepted. Sibling bids stay submitted: farmer acceptance is a soft
// commitment pending contract creation, not an award.
func (r *PGRepository) AcceptFPOBid(ctx context.Context, farmerID, bidID string) (FPOBid, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return FPOBid{}, fmt.Errorf("bid: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the quote row so concurrent accepts serialize on it.
	var (
		quoteID     string
		ownerID     string
		quoteStatus string
	)
	const lockSQL = `
		SELECT q.id, q.farmer_id, q.status::text
		FROM fpo_bids b
		JOIN farmer_quotes q ON q.id = b.quote_id
		WHERE b.id = $1
		FOR UPDATE OF q
	`
	if err := tx.QueryRow(ctx, lockSQL, bidID).Scan(&quoteID, &ownerID, &quoteStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return FPOBid{}, ErrNotFound
		}
		return FPOBid{}, fmt.Errorf("bid: lock quote for accept: %w", err)
	}
	if ownerID != farmerID {
		return FPOBid{}, ErrForbidden
	}
	if quoteStatus != "open" {
		return FPOBid{}, ErrQuoteNotOpen
	}

	const acceptSQL = `
		WITH updated AS (
			UPDATE fpo_bids SET status = 'accepted' WHERE id = $1
			RETURNING *
		)
		SELECT ` + fpoBidColumns + `
		FROM updated b
		JOIN accounts a ON a.id = b.fpo_id
		JOIN farmer_quotes q ON q.id = b.quote_id
	`
	b, err := scanFPOBid(tx.QueryRow(ctx, acceptSQL, bidID))
	if err != nil {
		return FPOBid{}, fmt.Errorf("bid: accept fpo bid: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE farmer_quotes SET status = 'accepted', accepted_bid_id = $2 WHERE id = $1
	`, quoteID, bidID); err != nil {
		return FPOBid{}, fmt.Errorf("bid: mark quote accepted: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return FPOBid{}, fmt.Errorf("bid: commit accept: %w", err)
	}
	return b, nil
}

// AcceptRetailerBid awards the FPO quote to one retailer bid and rejects
// every sibling in the same transaction. Awarding closes the market.
func (r *PGRepository) AcceptRetailerBid(ctx context.Context, fpoID, bidID string) (RetailerBid, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return RetailerBid{}, fmt.Errorf("bid: begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		quoteID     string
		ownerID     string
		quoteStatus string
	)
	const lockSQL = `
		SELECT q.id, q.fpo_id, q.status::text
		FROM retailer_bids b
		JOIN fpo_quotes q ON q.id = b.quote_id
		WHERE b.id = $1
		FOR UPDATE OF q
	`
	if err := tx.QueryRow(ctx, lockSQL, bidID).Scan(&quoteID, &ownerID, &quoteStatus); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return RetailerBid{}, ErrNotFound
		}
		return RetailerBid{}, fmt.Errorf("bid: lock quote for accept: %w", err)
	}
	if ownerID != fpoID {
		return RetailerBid{}, ErrForbidden
	}
	if quoteStatus != "open" {
		return RetailerBid{}, ErrQuoteNotOpen
	}

	const acceptSQL = `
		WITH updated AS (
			UPDATE retailer_bids SET status = 'accepted' WHERE id = $1
			RETURNING *
		)
		SELECT ` + retailerBidColumns + `
		FROM updated b
		JOIN accounts a ON a.id = b.retailer_id
		JOIN fpo_quotes q ON q.id = b.quote_id
	`
	b, err := scanRetailerBid(tx.QueryRow(ctx, acceptSQL, bidID))
	if err != nil {
		return RetailerBid{}, fmt.Errorf("bid: accept retailer bid: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE retailer_bids SET status = 'rejected' WHERE quote_id = $1 AND id <> $2
	`, quoteID, bidID); err != nil {
		return RetailerBid{}, fmt.Errorf("bid: reject sibling bids: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		UPDATE fpo_quotes SET status = 'awarded', accepted_bid_id = $2 WHERE id = $1
	`, quoteID, bidID); err != nil {
		return RetailerBid{}, fmt.Errorf("bid: mark quote awarded: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return RetailerBid{}, fmt.Errorf("bid: commit accept: %w", err)
	}
	return b, nil
}

// ListRetailerBidsByBidder returns the retailer's bids, newest first.
func (r *PGRepository) ListRetailerBidsByBidder(ctx context.Context, retailerID string) ([]RetailerBid, error) {
	const query = `
		SELECT ` + retailerBidColumns + `
		FROM retailer_bids b
		JOIN accounts a ON a.id = b.retailer_id
		JOIN fpo_quotes q ON q.id = b.quote_id
		WHERE b.retailer_id = $1
		ORDER BY b.submitted_at DESC
	`
	rows, err := r.pool.Query(ctx, query, retailerID)
	if err != nil {
		return nil, fmt.Errorf("bid: list retailer bids: %w", err)
	}
	defer rows.Close()

	out := make([]RetailerBid, 0, 8)
	for rows.Next() {
		b, err := scanRetailerBid(rows)
		if err != nil {
			return nil, fmt.Errorf("bid: scan retailer bid: %w", err)
		}
		out = append(out, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bid: iterate retailer bids: %w", err)
	}
	return out, nil
}

// GetFPOBid resolves an FPO bid into the kind-independent view: bidder is
// the FPO, owner is the farmer behind the quote.
func (r *PGRepository) GetFPOBid(ctx context.Context, id string) (Resolved, error) {
	const query = `
		SELECT b.id, b.quote_id, q.product_name, b.bid_amount, b.status::text,
		       owner.id, owner.name, bidder.id, bidder.name
		FROM fpo_bids b
		JOIN farmer_quotes q ON q.id = b.quote_id
		JOIN accounts owner ON owner.id = q.farmer_id
		JOIN accounts bidder ON bidder.id = b.fpo_id
		WHERE b.id = $1
	`
	var res Resolved
	res.Ref.Kind = KindFPOBid
	res.Owner.Role = "farmer"
	res.Bidder.Role = "fpo"
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&res.Ref.ID, &res.QuoteID, &res.Product, &res.BidAmount, &res.Status,
		&res.Owner.ID, &res.Owner.Name, &res.Bidder.ID, &res.Bidder.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Resolved{}, ErrNotFound
		}
		return Resolved{}, fmt.Errorf("bid: resolve fpo bid: %w", err)
	}
	return res, nil
}

// GetRetailerBid resolves a retailer bid: bidder is the retailer, owner is
// the FPO behind the quote.
func (r *PGRepository) GetRetailerBid(ctx context.Context, id string) (Resolved, error) {
	const query = `
		SELECT b.id, b.quote_id, q.product_name, b.bid_amount, b.status::text,
		       owner.id, owner.name, bidder.id, bidder.name
		FROM retailer_bids b
		JOIN fpo_quotes q ON q.id = b.quote_id
		JOIN accounts owner ON owner.id = q.fpo_id
		JOIN accounts bidder ON bidder.id = b.retailer_id
		WHERE b.id = $1
	`
	var res Resolved
	res.Ref.Kind = KindRetailerBid
	res.Owner.Role = "fpo"
	res.Bidder.Role = "retailer"
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&res.Ref.ID, &res.QuoteID, &res.Product, &res.BidAmount, &res.Status,
		&res.Owner.ID, &res.Owner.Name, &res.Bidder.ID, &res.Bidder.Name,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Resolved{}, ErrNotFound
		}
		return Resolved{}, fmt.Errorf("bid: resolve retailer bid: %w", err)
	}
	return res, nil
}

func scanFPOBid(row pgx.Row) (FPOBid, error) {
	var b FPOBid
	err := row.Scan(
		&b.ID, &b.FPOID, &b.QuoteID, &b.BidAmount, &b.DeliveryTimeDays,
		&b.Comments, &b.Status, &b.PaymentStatus, &b.TransactionHash,
		&b.SubmittedAt, &b.FPOName, &b.QuoteProductName,
	)
	if err != nil {
		return FPOBid{}, err
	}
	return b, nil
}

func scanRetailerBid(row pgx.Row) (RetailerBid, error) {
	var b RetailerBid
	err := row.Scan(
		&b.ID, &b.RetailerID, &b.QuoteID, &b.BidAmount, &b.DeliveryTimeDays,
		&b.Comments, &b.Status, &b.PaymentStatus, &b.TransactionHash,
		&b.SubmittedAt, &b.RetailerName, &b.QuoteProductName,
	)
	if err != nil {
		return RetailerBid{}, err
	}
	return b, nil
}
