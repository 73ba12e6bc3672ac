package quote

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidInput signals malformed or out-of-range quote data.
	ErrInvalidInput = errors.New("quote: invalid input")
	// ErrForbidden signals the caller does not own the quote.
	ErrForbidden = errors.New("quote: forbidden")
	// ErrBadAddress signals a contract address that is not a 0x-prefixed
	// 42-character string.
	ErrBadAddress = errors.New("quote: invalid contract address format")
)

// Service exposes quote ledger operations for both quote variants.
type Service struct {
	repo Repository
	now  func() time.Time
}

// NewService builds a Service using the provided repository.
func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

// WithClock overrides the time source. Intended for tests.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func (s *Service) validateCreate(params CreateParams) error {
	if params.ProductName == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidInput)
	}
	if params.Unit == "" {
		return fmt.Errorf("%w: unit is required", ErrInvalidInput)
	}
	if !params.Quantity.IsPositive() {
		return fmt.Errorf("%w: quantity must be greater than zero", ErrInvalidInput)
	}
	// Date granularity: a deadline later today is still too soon.
	today := s.now().Truncate(24 * time.Hour)
	if !params.Deadline.Truncate(24 * time.Hour).After(today) {
		return fmt.Errorf("%w: deadline must be after today", ErrInvalidInput)
	}
	if params.PricePerUnit != nil && !params.PricePerUnit.IsPositive() {
		return fmt.Errorf("%w: price per unit must be greater than zero", ErrInvalidInput)
	}
	return nil
}

// CreateFarmerQuote opens a new farmer quote.
func (s *Service) CreateFarmerQuote(ctx context.Context, farmerID string, params CreateParams) (FarmerQuote, error) {
	if farmerID == "" {
		return FarmerQuote{}, fmt.Errorf("quote: missing farmer id")
	}
	if err := s.validateCreate(params); err != nil {
		return FarmerQuote{}, err
	}
	return s.repo.CreateFarmerQuote(ctx, farmerID, params)
}

// CreateFPOQuote opens a new FPO sourcing quote.
func (s *Service) CreateFPOQuote(ctx context.Context, fpoID string, params CreateParams) (FPOQuote, error) {
	if fpoID == "" {
		return FPOQuote{}, fmt.Errorf("quote: missing fpo id")
	}
	if err := s.validateCreate(params); err != nil {
		return FPOQuote{}, err
	}
	return s.repo.CreateFPOQuote(ctx, fpoID, params)
}

// ListFarmerQuotesByOwner returns the farmer's own quotes with embedded bid
// summaries, newest first.
func (s *Service) ListFarmerQuotesByOwner(ctx context.Context, farmerID string) ([]FarmerQuote, error) {
	return s.repo.ListFarmerQuotesByOwner(ctx, farmerID)
}

// ListFPOQuotesByOwner returns the FPO's own quotes with embedded bid
// summaries, newest first.
func (s *Service) ListFPOQuotesByOwner(ctx context.Context, fpoID string) ([]FPOQuote, error) {
	return s.repo.ListFPOQuotesByOwner(ctx, fpoID)
}

// ListOpenFarmerQuotes returns open farmer quotes the given FPO has not yet
// bid on.
func (s *Service) ListOpenFarmerQuotes(ctx context.Context, excludingFPOID string) ([]FarmerQuote, error) {
	return s.repo.ListOpenFarmerQuotes(ctx, excludingFPOID)
}

// ListOpenFPOQuotes returns open FPO quotes the given retailer has not yet
// bid on.
func (s *Service) ListOpenFPOQuotes(ctx context.Context, excludingRetailerID string) ([]FPOQuote, error) {
	return s.repo.ListOpenFPOQuotes(ctx, excludingRetailerID)
}

// GetFarmerQuote returns a farmer quote with its bid thread. The owner gate
// is applied by callers that need one; quote detail itself is visible to
// any authenticated participant role.
func (s *Service) GetFarmerQuote(ctx context.Context, id string) (FarmerQuote, error) {
	return s.repo.GetFarmerQuote(ctx, id)
}

// GetFPOQuote returns an FPO quote with its bid thread.
func (s *Service) GetFPOQuote(ctx context.Context, id string) (FPOQuote, error) {
	return s.repo.GetFPOQuote(ctx, id)
}

// RecordContractAddress annotates a farmer quote with the externally
// created settlement address. Only the owning farmer may record it, and the
// quote is left untouched when the address fails the format check.
func (s *Service) RecordContractAddress(ctx context.Context, farmerID, quoteID, address string) (FarmerQuote, error) {
	q, err := s.repo.GetFarmerQuote(ctx, quoteID)
	if err != nil {
		return FarmerQuote{}, err
	}
	if q.FarmerID != farmerID {
		return FarmerQuote{}, ErrForbidden
	}

	// Ownership is settled before the address is inspected, so a non-owner
	// never learns whether their payload was well formed.
	if address == "" {
		return FarmerQuote{}, fmt.Errorf("%w: contract address is required", ErrBadAddress)
	}
	if len(address) != 42 || address[:2] != "0x" {
		return FarmerQuote{}, ErrBadAddress
	}

	return s.repo.SetContractAddress(ctx, quoteID, address, s.now())
}

// GetContractDetails resolves a farmer quote by its recorded contract
// address. Public: no caller identity is involved.
func (s *Service) GetContractDetails(ctx context.Context, address string) (ContractDetails, error) {
	return s.repo.GetContractDetails(ctx, address)
}

// DashboardForFarmer returns the farmer's landing-page counts.
func (s *Service) DashboardForFarmer(ctx context.Context, farmerID string) (FarmerDashboard, error) {
	return s.repo.FarmerDashboard(ctx, farmerID)
}

// DashboardForFPO returns the FPO's landing-page counts.
func (s *Service) DashboardForFPO(ctx context.Context, fpoID string) (FPODashboard, error) {
	return s.repo.FPODashboard(ctx, fpoID)
}

// DashboardForRetailer returns the retailer's landing-page counts.
func (s *Service) DashboardForRetailer(ctx context.Context, retailerID string) (RetailerDashboard, error) {
	return s.repo.RetailerDashboard(ctx, retailerID)
}
