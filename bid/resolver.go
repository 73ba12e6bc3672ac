package bid

import "context"

// Resolver turns a Ref into the kind-independent Resolved view. It is the
// single source of truth for who owns a bid's quote and who placed the bid;
// consumers never branch on Kind themselves.
type Resolver struct {
	repo Repository
}

// NewResolver builds a Resolver over the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo}
}

// Resolve dispatches on the closed Kind set. An unknown kind or a missing
// row both fail with ErrNotFound; callers cannot tell the two apart, and
// need not.
func (r *Resolver) Resolve(ctx context.Context, ref Ref) (Resolved, error) {
	switch ref.Kind {
	case KindFPOBid:
		return r.repo.GetFPOBid(ctx, ref.ID)
	case KindRetailerBid:
		return r.repo.GetRetailerBid(ctx, ref.ID)
	default:
		return Resolved{}, ErrNotFound
	}
}
