package test

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"agrichain/auth"
	"agrichain/bid"
	"agrichain/negotiation"
	"agrichain/quote"
	"agrichain/test/infra"
)

var (
	containerOnce sync.Once
	containerDSN  string
	containerErr  error
)

// services bundles everything a scenario needs against one database schema.
type services struct {
	auth        *auth.Service
	quotes      *quote.Service
	bids        *bid.Service
	negotiation *negotiation.Service
}

func setup(t *testing.T) (context.Context, *services) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	t.Cleanup(cancel)

	containerOnce.Do(func() {
		if !dockerAvailable(ctx) {
			containerErr = errors.New("docker unavailable")
			return
		}
		var pgC *infra.PGContainer
		pgC, containerDSN, containerErr = infra.StartPostgres16(ctx)
		if containerErr == nil && pgC != nil {
			// The container outlives individual tests; terminated when the
			// process exits.
			_ = pgC
		}
	})
	if containerErr != nil {
		t.Skipf("postgres unavailable: %v (set AGRICHAIN_TEST_PG_DSN to reuse a database)", containerErr)
	}

	pool, teardown, err := infra.ApplyMigrations(ctx, containerDSN, true)
	if err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	t.Cleanup(func() {
		pool.Close()
		_ = teardown(context.Background())
	})

	bidRepo := bid.NewRepository(pool)
	return ctx, &services{
		auth:        auth.NewService(auth.NewRepository(pool), "test-secret", 24*time.Hour),
		quotes:      quote.NewService(quote.NewRepository(pool)),
		bids:        bid.NewService(bidRepo),
		negotiation: negotiation.NewService(negotiation.NewRepository(pool), bid.NewResolver(bidRepo)),
	}
}

func dockerAvailable(ctx context.Context) bool {
	return exec.CommandContext(ctx, "docker", "info").Run() == nil
}

var adminPrincipal = auth.Principal{ID: "00000000-0000-0000-0000-000000000000", Role: auth.RoleAdmin, Name: "Admin"}

func registerApproved(ctx context.Context, t *testing.T, svc *services, role auth.Role, name, email, registryNo string) auth.Account {
	t.Helper()
	acct, err := svc.auth.Register(ctx, auth.RegisterRequest{
		Role:       role,
		Name:       name,
		Email:      email,
		Password:   "strongpassword",
		RegistryNo: registryNo,
		City:       "Nashik",
		State:      "Maharashtra",
	})
	if err != nil {
		t.Fatalf("register %s: %v", email, err)
	}
	if _, err := svc.auth.SetApproval(ctx, adminPrincipal, acct.ID, auth.ApprovalApproved); err != nil {
		t.Fatalf("approve %s: %v", email, err)
	}
	return acct
}

func quoteParams(product string, deadlineDays int) quote.CreateParams {
	return quote.CreateParams{
		ProductName: product,
		Category:    "Vegetables",
		Quantity:    decimal.NewFromInt(500),
		Unit:        "kg",
		Deadline:    time.Now().AddDate(0, 0, deadlineDays),
	}
}

// TestMarketplaceEndToEnd walks both rungs of the ladder: farmer quote with
// a soft FPO acceptance, FPO quote with a hard retailer award, a negotiation
// thread with a counter offer, and the contract annotation at the end.
func TestMarketplaceEndToEnd(t *testing.T) {
	ctx, svc := setup(t)

	farmer := registerApproved(ctx, t, svc, auth.RoleFarmer, "Ravi Kumar", "ravi@example.com", "123412341234")
	fpoA := registerApproved(ctx, t, svc, auth.RoleFPO, "Green Valley FPO", "green@example.com", "U01100MH2020PTC000001")
	fpoB := registerApproved(ctx, t, svc, auth.RoleFPO, "Sunrise FPO", "sunrise@example.com", "U01100MH2020PTC000002")
	retailerA := registerApproved(ctx, t, svc, auth.RoleRetailer, "City Mart", "mart@example.com", "27AAACC1234A1Z5")
	retailerB := registerApproved(ctx, t, svc, auth.RoleRetailer, "Fresh Basket", "basket@example.com", "27AAACC1234A1Z6")

	// Farmer rung: quote, two competing FPO bids.
	q1, err := svc.quotes.CreateFarmerQuote(ctx, farmer.ID, quoteParams("Tomatoes", 7))
	if err != nil {
		t.Fatalf("create farmer quote: %v", err)
	}

	open, err := svc.quotes.ListOpenFarmerQuotes(ctx, fpoA.ID)
	if err != nil {
		t.Fatalf("list open farmer quotes: %v", err)
	}
	if len(open) != 1 || open[0].ID != q1.ID {
		t.Fatalf("expected q1 visible to fpo, got %+v", open)
	}

	bidA, err := svc.bids.CreateFPOBid(ctx, fpoA.ID, q1.ID, bid.CreateParams{
		BidAmount:        decimal.RequireFromString("20.50"),
		DeliveryTimeDays: 15,
	})
	if err != nil {
		t.Fatalf("fpo A bid: %v", err)
	}
	bidB, err := svc.bids.CreateFPOBid(ctx, fpoB.ID, q1.ID, bid.CreateParams{
		BidAmount:        decimal.RequireFromString("19.75"),
		DeliveryTimeDays: 20,
	})
	if err != nil {
		t.Fatalf("fpo B bid: %v", err)
	}

	// Once bid, the quote drops out of the FPO's open listing.
	open, err = svc.quotes.ListOpenFarmerQuotes(ctx, fpoA.ID)
	if err != nil {
		t.Fatalf("list open after bid: %v", err)
	}
	if len(open) != 0 {
		t.Fatalf("expected no open quotes for fpo A after bidding, got %d", len(open))
	}

	// Non-owner cannot accept.
	if _, err := svc.bids.AcceptFPOBid(ctx, fpoA.ID, bidA.ID); !errors.Is(err, bid.ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-owner accept, got %v", err)
	}

	// Farmer acceptance is soft: sibling bids stay submitted.
	accepted, err := svc.bids.AcceptFPOBid(ctx, farmer.ID, bidA.ID)
	if err != nil {
		t.Fatalf("farmer accept: %v", err)
	}
	if accepted.Status != bid.StatusAccepted {
		t.Fatalf("expected accepted, got %s", accepted.Status)
	}

	q1Detail, err := svc.quotes.GetFarmerQuote(ctx, q1.ID)
	if err != nil {
		t.Fatalf("get q1: %v", err)
	}
	if q1Detail.Status != quote.FarmerQuoteAccepted {
		t.Fatalf("expected quote accepted, got %s", q1Detail.Status)
	}
	if q1Detail.AcceptedBidID == nil || *q1Detail.AcceptedBidID != bidA.ID {
		t.Fatalf("expected accepted_bid = %s, got %v", bidA.ID, q1Detail.AcceptedBidID)
	}
	for _, b := range q1Detail.Bids {
		if b.ID == bidB.ID && b.Status != string(bid.StatusSubmitted) {
			t.Fatalf("sibling bid should stay submitted, got %s", b.Status)
		}
	}

	// A second accept hits the no-longer-open quote.
	if _, err := svc.bids.AcceptFPOBid(ctx, farmer.ID, bidB.ID); !errors.Is(err, bid.ErrQuoteNotOpen) {
		t.Fatalf("expected ErrQuoteNotOpen, got %v", err)
	}

	// FPO rung: award is hard, siblings get rejected.
	q2, err := svc.quotes.CreateFPOQuote(ctx, fpoA.ID, quoteParams("Tomatoes (graded)", 10))
	if err != nil {
		t.Fatalf("create fpo quote: %v", err)
	}
	rbA, err := svc.bids.CreateRetailerBid(ctx, retailerA.ID, q2.ID, bid.CreateParams{
		BidAmount:        decimal.RequireFromString("150.00"),
		DeliveryTimeDays: 10,
	})
	if err != nil {
		t.Fatalf("retailer A bid: %v", err)
	}
	rbB, err := svc.bids.CreateRetailerBid(ctx, retailerB.ID, q2.ID, bid.CreateParams{
		BidAmount:        decimal.RequireFromString("145.00"),
		DeliveryTimeDays: 8,
	})
	if err != nil {
		t.Fatalf("retailer B bid: %v", err)
	}

	if _, err := svc.bids.AcceptRetailerBid(ctx, fpoA.ID, rbA.ID); err != nil {
		t.Fatalf("fpo award: %v", err)
	}

	q2Detail, err := svc.quotes.GetFPOQuote(ctx, q2.ID)
	if err != nil {
		t.Fatalf("get q2: %v", err)
	}
	if q2Detail.Status != quote.FPOQuoteAwarded {
		t.Fatalf("expected awarded, got %s", q2Detail.Status)
	}
	for _, b := range q2Detail.Bids {
		switch b.ID {
		case rbA.ID:
			if b.Status != string(bid.StatusAccepted) {
				t.Fatalf("winner should be accepted, got %s", b.Status)
			}
		case rbB.ID:
			if b.Status != string(bid.StatusRejected) {
				t.Fatalf("sibling should be rejected, got %s", b.Status)
			}
		}
	}

	// Negotiation on the farmer-side bid.
	farmerPrincipal := auth.Principal{ID: farmer.ID, Role: auth.RoleFarmer, Name: farmer.Name}
	fpoPrincipal := auth.Principal{ID: fpoA.ID, Role: auth.RoleFPO, Name: fpoA.Name}
	ref := bid.Ref{Kind: bid.KindFPOBid, ID: bidA.ID}

	thread, created, err := svc.negotiation.Start(ctx, farmerPrincipal, ref)
	if err != nil || !created {
		t.Fatalf("start negotiation: created=%v err=%v", created, err)
	}
	if len(thread.Messages) != 1 || thread.Messages[0].Text != "Negotiation started for bid on 'Tomatoes'." {
		t.Fatalf("unexpected opening thread: %+v", thread.Messages)
	}

	again, created, err := svc.negotiation.Start(ctx, farmerPrincipal, ref)
	if err != nil || created {
		t.Fatalf("repeat start: created=%v err=%v", created, err)
	}
	if again.Negotiation.ID != thread.Negotiation.ID {
		t.Fatal("repeat start returned a different thread")
	}

	updated, err := svc.negotiation.PostCounterOffer(ctx, fpoPrincipal, thread.Negotiation.ID, negotiation.CounterOffer{
		Message:                 "We can close at this price.",
		CounterAmount:           decimal.RequireFromString("85.00"),
		CounterDeliveryTimeDays: 15,
	})
	if err != nil {
		t.Fatalf("counter offer: %v", err)
	}
	if len(updated.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(updated.Messages))
	}
	last := updated.Messages[1]
	if last.Seq != 2 || last.SenderID != fpoA.ID || last.CounterAmount == nil || !last.CounterAmount.Equal(decimal.RequireFromString("85.00")) {
		t.Fatalf("unexpected counter message: %+v", last)
	}

	// Contract annotation closes the loop.
	addr := "0x1234567890abcdef1234567890abcdef12345678"
	annotated, err := svc.quotes.RecordContractAddress(ctx, farmer.ID, q1.ID, addr)
	if err != nil {
		t.Fatalf("record contract: %v", err)
	}
	if annotated.Status != quote.FarmerQuoteContractCreated {
		t.Fatalf("expected contract_created, got %s", annotated.Status)
	}

	details, err := svc.quotes.GetContractDetails(ctx, addr)
	if err != nil {
		t.Fatalf("contract details: %v", err)
	}
	if details.FarmerName != farmer.Name || details.FPOName == nil || *details.FPOName != fpoA.Name {
		t.Fatalf("unexpected contract details: %+v", details)
	}
}

// TestConcurrentDuplicateBids drives the same (bidder, quote) pair from many
// goroutines; the unique constraint must let exactly one through.
func TestConcurrentDuplicateBids(t *testing.T) {
	ctx, svc := setup(t)

	farmer := registerApproved(ctx, t, svc, auth.RoleFarmer, "Ravi Kumar", "ravi2@example.com", "123412341235")
	fpo := registerApproved(ctx, t, svc, auth.RoleFPO, "Green Valley FPO", "green2@example.com", "U01100MH2020PTC000003")

	q, err := svc.quotes.CreateFarmerQuote(ctx, farmer.ID, quoteParams("Onions", 7))
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}

	const attempts = 8
	var g errgroup.Group
	results := make([]error, attempts)
	for i := 0; i < attempts; i++ {
		i := i
		g.Go(func() error {
			_, err := svc.bids.CreateFPOBid(ctx, fpo.ID, q.ID, bid.CreateParams{
				BidAmount:        decimal.NewFromInt(int64(100 + i)),
				DeliveryTimeDays: 10,
			})
			results[i] = err
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	var ok, dup int
	for _, err := range results {
		switch {
		case err == nil:
			ok++
		case errors.Is(err, bid.ErrDuplicateBid):
			dup++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if ok != 1 || dup != attempts-1 {
		t.Fatalf("expected 1 success and %d conflicts, got %d/%d", attempts-1, ok, dup)
	}
}

// TestConcurrentNegotiationStart races thread creation for one bid ref;
// everyone must end up in the same thread with a single opening message.
func TestConcurrentNegotiationStart(t *testing.T) {
	ctx, svc := setup(t)

	farmer := registerApproved(ctx, t, svc, auth.RoleFarmer, "Ravi Kumar", "ravi3@example.com", "123412341236")
	fpo := registerApproved(ctx, t, svc, auth.RoleFPO, "Green Valley FPO", "green3@example.com", "U01100MH2020PTC000004")

	q, err := svc.quotes.CreateFarmerQuote(ctx, farmer.ID, quoteParams("Potatoes", 7))
	if err != nil {
		t.Fatalf("create quote: %v", err)
	}
	b, err := svc.bids.CreateFPOBid(ctx, fpo.ID, q.ID, bid.CreateParams{
		BidAmount:        decimal.RequireFromString("12.00"),
		DeliveryTimeDays: 5,
	})
	if err != nil {
		t.Fatalf("create bid: %v", err)
	}

	principal := auth.Principal{ID: farmer.ID, Role: auth.RoleFarmer, Name: farmer.Name}
	ref := bid.Ref{Kind: bid.KindFPOBid, ID: b.ID}

	const racers = 6
	var g errgroup.Group
	threads := make([]negotiation.Thread, racers)
	createds := make([]bool, racers)
	for i := 0; i < racers; i++ {
		i := i
		g.Go(func() error {
			thread, created, err := svc.negotiation.Start(ctx, principal, ref)
			if err != nil {
				return fmt.Errorf("racer %d: %w", i, err)
			}
			threads[i] = thread
			createds[i] = created
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("wait: %v", err)
	}

	var createdCount int
	for i := 0; i < racers; i++ {
		if createds[i] {
			createdCount++
		}
		if threads[i].Negotiation.ID != threads[0].Negotiation.ID {
			t.Fatalf("racer %d got a different thread", i)
		}
	}
	if createdCount != 1 {
		t.Fatalf("expected exactly one creator, got %d", createdCount)
	}

	final, err := svc.negotiation.GetDetail(ctx, principal, threads[0].Negotiation.ID)
	if err != nil {
		t.Fatalf("detail: %v", err)
	}
	if len(final.Messages) != 1 {
		t.Fatalf("expected a single opening message, got %d", len(final.Messages))
	}
}
