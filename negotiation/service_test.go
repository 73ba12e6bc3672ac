package negotiation

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"agrichain/auth"
	"agrichain/bid"
)

var (
	farmer   = auth.Principal{ID: "farmer-1", Role: auth.RoleFarmer, Name: "Ravi Kumar"}
	fpo      = auth.Principal{ID: "fpo-1", Role: auth.RoleFPO, Name: "Green Valley FPO"}
	retailer = auth.Principal{ID: "retailer-1", Role: auth.RoleRetailer, Name: "City Mart"}
	outsider = auth.Principal{ID: "stranger-1", Role: auth.RoleFarmer, Name: "Someone Else"}

	fpoBidRef      = bid.Ref{Kind: bid.KindFPOBid, ID: "fb-1"}
	retailerBidRef = bid.Ref{Kind: bid.KindRetailerBid, ID: "rb-1"}
)

func newTestService() (*Service, *fakeNegRepo) {
	repo := newFakeNegRepo()
	resolver := &fakeResolver{resolved: map[bid.Ref]bid.Resolved{
		fpoBidRef: {
			Ref:     fpoBidRef,
			QuoteID: "fq-1",
			Product: "Tomatoes",
			Owner:   bid.Participant{ID: farmer.ID, Role: "farmer", Name: farmer.Name},
			Bidder:  bid.Participant{ID: fpo.ID, Role: "fpo", Name: fpo.Name},
		},
		retailerBidRef: {
			Ref:     retailerBidRef,
			QuoteID: "pq-1",
			Product: "Onions",
			Owner:   bid.Participant{ID: fpo.ID, Role: "fpo", Name: fpo.Name},
			Bidder:  bid.Participant{ID: retailer.ID, Role: "retailer", Name: retailer.Name},
		},
	}}
	return NewService(repo, resolver), repo
}

func TestService_StartCreatesThreadWithNarration(t *testing.T) {
	svc, _ := newTestService()

	thread, created, err := svc.Start(context.Background(), farmer, fpoBidRef)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	if !created {
		t.Fatal("expected created=true on first start")
	}
	if thread.Negotiation.BidRef != fpoBidRef || thread.Negotiation.Status != StatusOpen {
		t.Fatalf("unexpected negotiation: %+v", thread.Negotiation)
	}
	if len(thread.Messages) != 1 {
		t.Fatalf("expected one opening message, got %d", len(thread.Messages))
	}

	first := thread.Messages[0]
	if first.Text != "Negotiation started for bid on 'Tomatoes'." {
		t.Fatalf("unexpected narration: %q", first.Text)
	}
	if first.SenderID != farmer.ID || first.SenderRole != "farmer" {
		t.Fatalf("narration should come from the caller: %+v", first)
	}
	if first.CounterAmount != nil || first.CounterDeliveryTimeDays != nil {
		t.Fatal("narration message must carry no counter offer")
	}
}

func TestService_StartIsIdempotent(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	first, created, err := svc.Start(ctx, farmer, fpoBidRef)
	if err != nil || !created {
		t.Fatalf("first start: created=%v err=%v", created, err)
	}

	second, created, err := svc.Start(ctx, farmer, fpoBidRef)
	if err != nil {
		t.Fatalf("second start: %v", err)
	}
	if created {
		t.Fatal("expected created=false on repeat start")
	}
	if second.Negotiation.ID != first.Negotiation.ID {
		t.Fatalf("expected same negotiation, got %s then %s", first.Negotiation.ID, second.Negotiation.ID)
	}
	if len(second.Messages) != 1 {
		t.Fatalf("repeat start must not add messages, got %d", len(second.Messages))
	}
}

func TestService_StartAuthz(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	// Only the quote owner may start, not the bidder.
	if _, _, err := svc.Start(ctx, fpo, fpoBidRef); !errors.Is(err, ErrForbidden) {
		t.Fatalf("bidder start: expected ErrForbidden, got %v", err)
	}
	if _, _, err := svc.Start(ctx, outsider, fpoBidRef); !errors.Is(err, ErrForbidden) {
		t.Fatalf("outsider start: expected ErrForbidden, got %v", err)
	}

	// On the retailer ladder the FPO is the owner.
	if _, _, err := svc.Start(ctx, fpo, retailerBidRef); err != nil {
		t.Fatalf("fpo start on retailer bid: %v", err)
	}
	if _, _, err := svc.Start(ctx, retailer, retailerBidRef); !errors.Is(err, ErrForbidden) {
		t.Fatalf("retailer start: expected ErrForbidden, got %v", err)
	}
}

func TestService_StartUnresolvableRef(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	missing := bid.Ref{Kind: bid.KindFPOBid, ID: "no-such-bid"}
	if _, _, err := svc.Start(ctx, farmer, missing); !errors.Is(err, ErrBadBidRef) {
		t.Fatalf("missing bid: expected ErrBadBidRef, got %v", err)
	}

	unknown := bid.Ref{Kind: bid.Kind("farmer.farmerquote"), ID: "fb-1"}
	if _, _, err := svc.Start(ctx, farmer, unknown); !errors.Is(err, ErrBadBidRef) {
		t.Fatalf("unknown kind: expected ErrBadBidRef, got %v", err)
	}
}

func TestService_ParticipantSymmetry(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	offer := CounterOffer{CounterAmount: decimal.RequireFromString("85.00"), CounterDeliveryTimeDays: 15}

	cases := []struct {
		name        string
		ref         bid.Ref
		starter     auth.Principal
		participant auth.Principal
	}{
		{"fpo bid / owner", fpoBidRef, farmer, farmer},
		{"fpo bid / bidder", fpoBidRef, farmer, fpo},
		{"retailer bid / owner", retailerBidRef, fpo, fpo},
		{"retailer bid / bidder", retailerBidRef, fpo, retailer},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			thread, _, err := svc.Start(ctx, tc.starter, tc.ref)
			if err != nil {
				t.Fatalf("start: %v", err)
			}
			id := thread.Negotiation.ID

			if _, err := svc.GetDetail(ctx, tc.participant, id); err != nil {
				t.Fatalf("detail: %v", err)
			}
			if _, err := svc.PostCounterOffer(ctx, tc.participant, id, offer); err != nil {
				t.Fatalf("counter offer: %v", err)
			}

			if _, err := svc.GetDetail(ctx, outsider, id); !errors.Is(err, ErrForbidden) {
				t.Fatalf("outsider detail: expected ErrForbidden, got %v", err)
			}
			if _, err := svc.PostCounterOffer(ctx, outsider, id, offer); !errors.Is(err, ErrForbidden) {
				t.Fatalf("outsider offer: expected ErrForbidden, got %v", err)
			}
		})
	}
}

func TestService_ThreadOrdering(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	thread, _, err := svc.Start(ctx, farmer, fpoBidRef)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := thread.Negotiation.ID

	if _, err := svc.PostCounterOffer(ctx, fpo, id, CounterOffer{
		Message:                 "Can do 18.00 if you cover transport.",
		CounterAmount:           decimal.RequireFromString("18.00"),
		CounterDeliveryTimeDays: 12,
	}); err != nil {
		t.Fatalf("first offer: %v", err)
	}
	final, err := svc.PostCounterOffer(ctx, farmer, id, CounterOffer{
		CounterAmount:           decimal.RequireFromString("19.50"),
		CounterDeliveryTimeDays: 10,
	})
	if err != nil {
		t.Fatalf("second offer: %v", err)
	}

	if len(final.Messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(final.Messages))
	}
	for i, m := range final.Messages {
		if m.Seq != i+1 {
			t.Fatalf("message %d has seq %d", i, m.Seq)
		}
	}
	if final.Messages[0].CounterAmount != nil {
		t.Fatal("opening narration must not carry an amount")
	}
	if got := final.Messages[1].CounterAmount; got == nil || !got.Equal(decimal.RequireFromString("18.00")) {
		t.Fatalf("unexpected second message amount: %v", got)
	}
	if final.Messages[1].SenderID != fpo.ID || final.Messages[2].SenderID != farmer.ID {
		t.Fatal("messages attributed to the wrong senders")
	}
}

func TestService_CounterOfferValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	thread, _, err := svc.Start(ctx, farmer, fpoBidRef)
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	id := thread.Negotiation.ID

	cases := []struct {
		name  string
		offer CounterOffer
	}{
		{"zero amount", CounterOffer{CounterAmount: decimal.Zero, CounterDeliveryTimeDays: 5}},
		{"negative amount", CounterOffer{CounterAmount: decimal.NewFromInt(-5), CounterDeliveryTimeDays: 5}},
		{"three decimal places", CounterOffer{CounterAmount: decimal.RequireFromString("10.505"), CounterDeliveryTimeDays: 5}},
		{"zero days", CounterOffer{CounterAmount: decimal.NewFromInt(10)}},
		{"negative days", CounterOffer{CounterAmount: decimal.NewFromInt(10), CounterDeliveryTimeDays: -1}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := svc.PostCounterOffer(ctx, farmer, id, tc.offer); !errors.Is(err, ErrInvalidOffer) {
				t.Fatalf("expected ErrInvalidOffer, got %v", err)
			}
		})
	}

	// Validation failures leave the thread untouched.
	detail, err := svc.GetDetail(ctx, farmer, id)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(detail.Messages) != 1 {
		t.Fatalf("expected thread unchanged, got %d messages", len(detail.Messages))
	}
}

func TestService_GetDetailNotFound(t *testing.T) {
	svc, _ := newTestService()
	if _, err := svc.GetDetail(context.Background(), farmer, "missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

type fakeResolver struct {
	resolved map[bid.Ref]bid.Resolved
}

func (f *fakeResolver) Resolve(_ context.Context, ref bid.Ref) (bid.Resolved, error) {
	res, ok := f.resolved[ref]
	if !ok {
		return bid.Resolved{}, bid.ErrNotFound
	}
	return res, nil
}

type fakeNegRepo struct {
	byRef    map[bid.Ref]Negotiation
	byID     map[string]Negotiation
	messages map[string][]Message
	nextID   int
}

func newFakeNegRepo() *fakeNegRepo {
	return &fakeNegRepo{
		byRef:    make(map[bid.Ref]Negotiation),
		byID:     make(map[string]Negotiation),
		messages: make(map[string][]Message),
	}
}

func (f *fakeNegRepo) StartThread(_ context.Context, ref bid.Ref, first Message) (Negotiation, bool, error) {
	if neg, ok := f.byRef[ref]; ok {
		return neg, false, nil
	}

	f.nextID++
	neg := Negotiation{
		ID:        fmt.Sprintf("neg-%d", f.nextID),
		BidRef:    ref,
		Status:    StatusOpen,
		CreatedAt: time.Now().UTC(),
	}
	f.byRef[ref] = neg
	f.byID[neg.ID] = neg
	f.append(neg.ID, first)
	return neg, true, nil
}

func (f *fakeNegRepo) AppendMessage(_ context.Context, negotiationID string, msg Message) (Message, error) {
	if _, ok := f.byID[negotiationID]; !ok {
		return Message{}, ErrNotFound
	}
	return f.append(negotiationID, msg), nil
}

func (f *fakeNegRepo) append(negotiationID string, msg Message) Message {
	msg.ID = fmt.Sprintf("msg-%d-%d", len(f.messages[negotiationID])+1, f.nextID)
	msg.NegotiationID = negotiationID
	msg.Seq = len(f.messages[negotiationID]) + 1
	msg.CreatedAt = time.Now().UTC()
	f.messages[negotiationID] = append(f.messages[negotiationID], msg)
	return msg
}

func (f *fakeNegRepo) Get(_ context.Context, id string) (Negotiation, error) {
	neg, ok := f.byID[id]
	if !ok {
		return Negotiation{}, ErrNotFound
	}
	return neg, nil
}

func (f *fakeNegRepo) ListMessages(_ context.Context, negotiationID string) ([]Message, error) {
	msgs := f.messages[negotiationID]
	out := make([]Message, len(msgs))
	copy(out, msgs)
	return out, nil
}
