package cart

import (
	"context"
	"log"
	"strings"

	"scanline/backend/internal/domain"
)

// Resolver turns raw scan text into a classified ScanResult.
type Resolver struct {
	lookup Lookup
}

func NewResolver(lookup Lookup) *Resolver {
	return &Resolver{lookup: lookup}
}

// Resolve trims the raw text and classifies it. Blank input never reaches
// the lookup. A lookup failure degrades to "no match": an unreadable scan
// must not abort the session, the operator just scans again.
func (r *Resolver) Resolve(ctx context.Context, rawText string, scanCtx domain.ScanContext) domain.ScanResult {
	search := strings.TrimSpace(rawText)
	if search == "" {
		return domain.ScanResult{Kind: domain.ScanKindNone}
	}

	result, err := r.lookup.ClassifyScan(ctx, search, scanCtx)
	if err != nil {
		log.Printf("[cart] WARN: classify scan %q failed: %v", search, err)
		return domain.ScanResult{Kind: domain.ScanKindNone}
	}
	return result
}
