// Package verification audits persisted ledger state against the
// conservation rules every operation must preserve. It reads the store
// directly, so it can check a ledger written by another process.
package verification

import (
	"context"
	"fmt"
)

// FieldDivergence represents a mismatch between the expected and stored value.
type FieldDivergence struct {
	Field    string      // checked quantity
	Expected interface{} // value implied by related state
	Actual   interface{} // value found in the store
}

// VerificationResult contains the result of verifying one subject.
type VerificationResult struct {
	Subject     string            // "listing:<id>" or "token:<id>"
	Match       bool              // true if every check held
	Divergences []FieldDivergence // failed checks
}

// VerificationReport contains results for a full audit.
type VerificationReport struct {
	TotalSubjects     int                  // listings and tokens checked
	MatchedSubjects   int                  // subjects with no divergence
	DivergentSubjects int                  // subjects with at least one divergence
	Results           []VerificationResult // individual results
}

// OK reports whether every subject matched.
func (r *VerificationReport) OK() bool {
	return r.DivergentSubjects == 0
}

func (r *VerificationReport) add(res VerificationResult) {
	r.TotalSubjects++
	r.Results = append(r.Results, res)
	if res.Match {
		r.MatchedSubjects++
	} else {
		r.DivergentSubjects++
	}
}

// Verifier interface for ledger verification.
type Verifier interface {
	// VerifyListing checks a single listing and its escrow positions.
	VerifyListing(ctx context.Context, listingID uint64) (*VerificationResult, error)

	// VerifyAll checks every listing and every minted token.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// checker accumulates divergences for one subject.
type checker struct {
	divergences []FieldDivergence
}

func (c *checker) equal(field string, expected, actual uint64) {
	if expected != actual {
		c.divergences = append(c.divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
	}
}

func (c *checker) fail(field string, expected, actual interface{}) {
	c.divergences = append(c.divergences, FieldDivergence{Field: field, Expected: expected, Actual: actual})
}

func (c *checker) result(subject string) VerificationResult {
	return VerificationResult{
		Subject:     subject,
		Match:       len(c.divergences) == 0,
		Divergences: c.divergences,
	}
}

func listingSubject(id uint64) string {
	return fmt.Sprintf("listing:%d", id)
}

func tokenSubject(id uint64) string {
	return fmt.Sprintf("token:%d", id)
}
