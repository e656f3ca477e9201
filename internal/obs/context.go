package obs

import "context"

// annotations is filled by inner middleware and read by outer middleware
// after the handler returned. Requests are served by one goroutine, so no
// locking is needed.
type annotations struct {
	storeID string
	userID  string
}

type annotationsKey struct{}

// annotate returns the request's annotations, attaching new ones when no
// outer middleware did.
func annotate(ctx context.Context) (context.Context, *annotations) {
	if a := annotationsFrom(ctx); a != nil {
		return ctx, a
	}
	a := &annotations{}
	return context.WithValue(ctx, annotationsKey{}, a), a
}

func annotationsFrom(ctx context.Context) *annotations {
	a, _ := ctx.Value(annotationsKey{}).(*annotations)
	return a
}
