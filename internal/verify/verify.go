// Package verify grades correction claims against public web evidence. The
// grade is advisory: it annotates the correction but never changes its
// status, which only confirmations or manual review can do.
package verify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/provider"
	"github.com/sells-group/utility-cli/internal/store"
	"github.com/sells-group/utility-cli/pkg/jina"
)

// Evidence is the outcome of grading one correction.
type Evidence struct {
	Positive   int    `json:"positive"`
	Negative   int    `json:"negative"`
	Confidence int    `json:"confidence"`
	Note       string `json:"note"`
}

// Verifier searches the web for service-territory evidence and annotates
// corrections with a confidence grade.
type Verifier struct {
	search  jina.Client
	store   store.Store
	limiter *rate.Limiter
	timeout time.Duration
}

// New builds a Verifier. rps bounds outbound search traffic; timeout caps the
// time spent on any single correction.
func New(search jina.Client, st store.Store, rps float64, timeout time.Duration) *Verifier {
	if rps <= 0 {
		rps = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Verifier{
		search:  search,
		store:   st,
		limiter: rate.NewLimiter(rate.Limit(rps), 1),
		timeout: timeout,
	}
}

// VerifyCorrection grades one correction and persists the result. A failed
// search is not fatal: the correction is graded at the unverified baseline so
// a downstream reader never mistakes an ungraded claim for a graded one.
func (v *Verifier) VerifyCorrection(ctx context.Context, c model.Correction) (*Evidence, error) {
	if err := v.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "verify: rate limit wait")
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	var ev Evidence
	query := buildQuery(c)
	resp, err := v.search.Search(ctx, query)
	if err != nil {
		zap.L().Warn("correction search failed, grading unverified",
			zap.String("id", c.ID),
			zap.Error(err))
		ev = Grade(0, 0)
		ev.Note = "unverified: search unavailable"
	} else {
		pos, neg := CountSignals(resp.Data, c.CorrectProvider, c.IncorrectProvider, c.ZipCode, c.City, c.State)
		ev = Grade(pos, neg)
	}

	if err := v.store.SetCorrectionEvidence(ctx, c.ID, ev.Confidence, ev.Note); err != nil {
		return nil, eris.Wrapf(err, "verify: persist evidence for correction %s", c.ID)
	}

	zap.L().Debug("correction evidence graded",
		zap.String("id", c.ID),
		zap.Int("positive", ev.Positive),
		zap.Int("negative", ev.Negative),
		zap.Int("confidence", ev.Confidence))
	return &ev, nil
}

// VerifyPending grades up to limit pending corrections. Failures on
// individual corrections are logged and skipped so one bad row does not
// stall the batch.
func (v *Verifier) VerifyPending(ctx context.Context, limit int) (int, error) {
	pending, err := v.store.ListCorrections(ctx, store.CorrectionFilter{
		Status: model.CorrectionPending,
		Limit:  limit,
	})
	if err != nil {
		return 0, eris.Wrap(err, "verify: list pending")
	}

	graded := 0
	for _, c := range pending {
		if ctx.Err() != nil {
			return graded, ctx.Err()
		}
		if _, err := v.VerifyCorrection(ctx, c); err != nil {
			zap.L().Warn("correction verification failed",
				zap.String("id", c.ID),
				zap.Error(err))
			continue
		}
		graded++
	}
	return graded, nil
}

func buildQuery(c model.Correction) string {
	parts := []string{c.CorrectProvider, string(c.UtilityType), "service area"}
	if c.City != "" {
		parts = append(parts, c.City)
	}
	parts = append(parts, c.State, c.ZipCode)
	return strings.Join(parts, " ")
}

// CountSignals tallies how many search results support or contradict the
// claimed provider. A result supports the claim when it mentions the claimed
// provider alongside the location; it contradicts when it mentions only the
// provider being corrected away from, alongside the location.
func CountSignals(results []jina.SearchResult, claimed, incorrect, zipCode, city, state string) (positive, negative int) {
	claimedClean := provider.CleanName(claimed)
	incorrectClean := provider.CleanName(incorrect)

	for _, r := range results {
		text := strings.ToUpper(r.Title + " " + r.Description + " " + r.Content)

		if !mentionsLocation(text, zipCode, city, state) {
			continue
		}

		mentionsClaimed := claimedClean != "" && strings.Contains(text, claimedClean)
		mentionsIncorrect := incorrectClean != "" && strings.Contains(text, incorrectClean)

		switch {
		case mentionsClaimed:
			positive++
		case mentionsIncorrect:
			negative++
		}
	}
	return positive, negative
}

func mentionsLocation(upperText, zipCode, city, state string) bool {
	if zipCode != "" && strings.Contains(upperText, zipCode) {
		return true
	}
	if city != "" && strings.Contains(upperText, strings.ToUpper(city)) {
		return true
	}
	return state != "" && strings.Contains(upperText, strings.ToUpper(state))
}

// Grade converts signal counts into an advisory confidence. Strong support
// grades high, uncontradicted support grades medium, mixed evidence is noted,
// and no evidence leaves the claim unverified at baseline.
func Grade(positive, negative int) Evidence {
	ev := Evidence{Positive: positive, Negative: negative}
	switch {
	case positive >= 3:
		ev.Confidence = 95
		ev.Note = fmt.Sprintf("verified: %d supporting results", positive)
	case positive >= 1 && negative == 0:
		ev.Confidence = 85
		ev.Note = fmt.Sprintf("supported: %d result(s), no contradictions", positive)
	case positive >= 1:
		ev.Confidence = 75
		ev.Note = fmt.Sprintf("mixed evidence: %d supporting, %d contradicting", positive, negative)
	default:
		ev.Confidence = 70
		ev.Note = "unverified: no supporting results found"
	}
	return ev
}
