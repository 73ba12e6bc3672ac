package negotiation

import (
	"context"
	"errors"
	"fmt"

	"agrichain/auth"
	"agrichain/bid"
)

var (
	// ErrBadBidRef means the referenced bid does not exist or its kind is
	// outside the supported set.
	ErrBadBidRef = errors.New("negotiation: bid reference cannot be resolved")

	ErrForbidden    = errors.New("negotiation: caller may not act on this thread")
	ErrInvalidOffer = errors.New("negotiation: invalid counter offer")
)

// BidResolver turns a polymorphic bid reference into the concrete facts a
// negotiation needs: the product, the quote owner and the bidder.
type BidResolver interface {
	Resolve(ctx context.Context, ref bid.Ref) (bid.Resolved, error)
}

type Service struct {
	repo     Repository
	resolver BidResolver
}

func NewService(repo Repository, resolver BidResolver) *Service {
	return &Service{repo: repo, resolver: resolver}
}

// Start opens the negotiation thread for ref, or returns the existing one.
// Only the owner of the quote behind the bid may start; repeated calls by
// the owner are idempotent. The boolean reports whether this call created
// the thread.
func (s *Service) Start(ctx context.Context, caller auth.Principal, ref bid.Ref) (Thread, bool, error) {
	resolved, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, bid.ErrNotFound) {
			return Thread{}, false, ErrBadBidRef
		}
		return Thread{}, false, err
	}
	owner := resolved.Owner
	if owner.ID == "" {
		return Thread{}, false, ErrBadBidRef
	}
	if caller.ID != owner.ID {
		return Thread{}, false, ErrForbidden
	}

	neg, created, err := s.repo.StartThread(ctx, ref, Message{
		SenderRole: string(caller.Role),
		SenderID:   caller.ID,
		SenderName: caller.Name,
		Text:       fmt.Sprintf("Negotiation started for bid on '%s'.", resolved.Product),
	})
	if err != nil {
		return Thread{}, false, err
	}
	msgs, err := s.repo.ListMessages(ctx, neg.ID)
	if err != nil {
		return Thread{}, false, err
	}
	return Thread{Negotiation: neg, Messages: msgs}, created, nil
}

// GetDetail returns the thread with its messages in send order. Only the
// two participants, quote owner and bidder, may read it.
func (s *Service) GetDetail(ctx context.Context, caller auth.Principal, id string) (Thread, error) {
	neg, err := s.repo.Get(ctx, id)
	if err != nil {
		return Thread{}, err
	}
	if err := s.checkParticipant(ctx, caller, neg.BidRef); err != nil {
		return Thread{}, err
	}
	msgs, err := s.repo.ListMessages(ctx, neg.ID)
	if err != nil {
		return Thread{}, err
	}
	return Thread{Negotiation: neg, Messages: msgs}, nil
}

// PostCounterOffer appends a counter offer to the thread and returns the
// refreshed thread. Either participant may post; a thread never rejects
// offers based on the bid's current status.
func (s *Service) PostCounterOffer(ctx context.Context, caller auth.Principal, id string, offer CounterOffer) (Thread, error) {
	if !offer.CounterAmount.IsPositive() || offer.CounterAmount.Exponent() < -2 {
		return Thread{}, ErrInvalidOffer
	}
	if offer.CounterDeliveryTimeDays < 1 {
		return Thread{}, ErrInvalidOffer
	}

	neg, err := s.repo.Get(ctx, id)
	if err != nil {
		return Thread{}, err
	}
	if err := s.checkParticipant(ctx, caller, neg.BidRef); err != nil {
		return Thread{}, err
	}

	amount := offer.CounterAmount
	days := offer.CounterDeliveryTimeDays
	if _, err := s.repo.AppendMessage(ctx, neg.ID, Message{
		SenderRole:              string(caller.Role),
		SenderID:                caller.ID,
		SenderName:              caller.Name,
		Text:                    offer.Message,
		CounterAmount:           &amount,
		CounterDeliveryTimeDays: &days,
	}); err != nil {
		return Thread{}, err
	}
	msgs, err := s.repo.ListMessages(ctx, neg.ID)
	if err != nil {
		return Thread{}, err
	}
	return Thread{Negotiation: neg, Messages: msgs}, nil
}

func (s *Service) checkParticipant(ctx context.Context, caller auth.Principal, ref bid.Ref) error {
	resolved, err := s.resolver.Resolve(ctx, ref)
	if err != nil {
		if errors.Is(err, bid.ErrNotFound) {
			return ErrBadBidRef
		}
		return err
	}
	if caller.ID != resolved.Owner.ID && caller.ID != resolved.Bidder.ID {
		return ErrForbidden
	}
	return nil
}
