package negotiation

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agrichain/bid"
)

var ErrNotFound = errors.New("negotiation: not found")

// Repository persists negotiation threads and their messages.
type Repository interface {
	// StartThread gets or creates the negotiation for ref. When this call
	// creates the row it also appends first as the thread's opening message,
	// atomically; a caller that loses the creation race gets the winner's
	// row back with created == false and first discarded.
	StartThread(ctx context.Context, ref bid.Ref, first Message) (Negotiation, bool, error)

	// AppendMessage adds msg to the end of the thread, assigning the next
	// sequence number under a row lock on the negotiation.
	AppendMessage(ctx context.Context, negotiationID string, msg Message) (Message, error)

	Get(ctx context.Context, id string) (Negotiation, error)
	ListMessages(ctx context.Context, negotiationID string) ([]Message, error)
}

type PGRepository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

const negotiationColumns = `id, bid_kind::text, bid_id, status::text, created_at`

const messageColumns = `id, negotiation_id, seq, sender_role::text, sender_id, sender_name,
	message, counter_amount, counter_delivery_time_days, created_at`

func (r *PGRepository) StartThread(ctx context.Context, ref bid.Ref, first Message) (Negotiation, bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Negotiation{}, false, fmt.Errorf("negotiation: begin start thread: %w", err)
	}
	defer tx.Rollback(ctx)

	// The insert blocks behind any concurrent creator holding the unique
	// index entry; once that commits, ON CONFLICT yields no row and the
	// follow-up select sees the winner.
	neg, err := scanNegotiation(tx.QueryRow(ctx, `
		INSERT INTO negotiations (bid_kind, bid_id)
		VALUES ($1::bid_kind, $2)
		ON CONFLICT (bid_kind, bid_id) DO NOTHING
		RETURNING `+negotiationColumns,
		string(ref.Kind), ref.ID,
	))
	created := true
	if errors.Is(err, pgx.ErrNoRows) {
		created = false
		neg, err = scanNegotiation(tx.QueryRow(ctx, `
			SELECT `+negotiationColumns+`
			FROM negotiations
			WHERE bid_kind = $1::bid_kind AND bid_id = $2`,
			string(ref.Kind), ref.ID,
		))
	}
	if err != nil {
		return Negotiation{}, false, fmt.Errorf("negotiation: start thread: %w", err)
	}

	if created {
		if _, err := appendMessageTx(ctx, tx, neg.ID, first); err != nil {
			return Negotiation{}, false, err
		}
	}
	if err := tx.Commit(ctx); err != nil {
		return Negotiation{}, false, fmt.Errorf("negotiation: commit start thread: %w", err)
	}
	return neg, created, nil
}

func (r *PGRepository) AppendMessage(ctx context.Context, negotiationID string, msg Message) (Message, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return Message{}, fmt.Errorf("negotiation: begin append message: %w", err)
	}
	defer tx.Rollback(ctx)

	// Serialize appends per thread so sequence numbers come out gapless
	// even under concurrent counter-offers.
	var id string
	err = tx.QueryRow(ctx, `
		SELECT id FROM negotiations WHERE id = $1 FOR UPDATE`,
		negotiationID,
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return Message{}, ErrNotFound
	}
	if err != nil {
		return Message{}, fmt.Errorf("negotiation: lock thread: %w", err)
	}

	out, err := appendMessageTx(ctx, tx, negotiationID, msg)
	if err != nil {
		return Message{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Message{}, fmt.Errorf("negotiation: commit append message: %w", err)
	}
	return out, nil
}

func appendMessageTx(ctx context.Context, tx pgx.Tx, negotiationID string, msg Message) (Message, error) {
	out, err := scanMessage(tx.QueryRow(ctx, `
		INSERT INTO negotiation_messages
			(negotiation_id, seq, sender_role, sender_id, sender_name,
			 message, counter_amount, counter_delivery_time_days)
		SELECT $1, COALESCE(MAX(seq), 0) + 1, $2::account_role, $3, $4, $5, $6, $7
		FROM negotiation_messages
		WHERE negotiation_id = $1
		RETURNING `+messageColumns,
		negotiationID, msg.SenderRole, msg.SenderID, msg.SenderName,
		msg.Text, msg.CounterAmount, msg.CounterDeliveryTimeDays,
	))
	if err != nil {
		return Message{}, fmt.Errorf("negotiation: append message: %w", err)
	}
	return out, nil
}

func (r *PGRepository) Get(ctx context.Context, id string) (Negotiation, error) {
	neg, err := scanNegotiation(r.pool.QueryRow(ctx, `
		SELECT `+negotiationColumns+`
		FROM negotiations
		WHERE id = $1`, id,
	))
	if errors.Is(err, pgx.ErrNoRows) {
		return Negotiation{}, ErrNotFound
	}
	if err != nil {
		return Negotiation{}, fmt.Errorf("negotiation: get: %w", err)
	}
	return neg, nil
}

func (r *PGRepository) ListMessages(ctx context.Context, negotiationID string) ([]Message, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+messageColumns+`
		FROM negotiation_messages
		WHERE negotiation_id = $1
		ORDER BY seq`, negotiationID,
	)
	if err != nil {
		return nil, fmt.Errorf("negotiation: list messages: %w", err)
	}
	defer rows.Close()

	var msgs []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("negotiation: scan message: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("negotiation: list messages: %w", err)
	}
	return msgs, nil
}

func scanNegotiation(row pgx.Row) (Negotiation, error) {
	var n Negotiation
	var kind string
	if err := row.Scan(&n.ID, &kind, &n.BidRef.ID, &n.Status, &n.CreatedAt); err != nil {
		return Negotiation{}, err
	}
	n.BidRef.Kind = bid.Kind(kind)
	return n, nil
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.NegotiationID, &m.Seq, &m.SenderRole, &m.SenderID,
		&m.SenderName, &m.Text, &m.CounterAmount, &m.CounterDeliveryTimeDays, &m.CreatedAt)
	if err != nil {
		return Message{}, err
	}
	return m, nil
}
