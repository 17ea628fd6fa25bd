// Package correction implements the crowd-sourced correction lifecycle:
// submissions accumulate confirmations until a pending claim auto-promotes
// to verified, with manual approve/reject as the escape hatch.
package correction

import (
	"context"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/utility-cli/internal/model"
	"github.com/sells-group/utility-cli/internal/provider"
	"github.com/sells-group/utility-cli/internal/store"
)

// SubmitRequest is one user claim that a lookup result was wrong.
type SubmitRequest struct {
	UtilityType       model.Category `json:"utility_type"`
	CorrectProvider   string         `json:"correct_provider"`
	IncorrectProvider string         `json:"incorrect_provider,omitempty"`
	State             string         `json:"state"`
	ZipCode           string         `json:"zip_code"`
	City              string         `json:"city,omitempty"`
	Street            string         `json:"street,omitempty"`
	Address           string         `json:"address,omitempty"`
	Source            string         `json:"source,omitempty"`
}

// SubmitResult reports what happened to the claim.
type SubmitResult struct {
	Correction    model.Correction `json:"correction"`
	Created       bool             `json:"created"`
	NewlyVerified bool             `json:"newly_verified"`
}

// Workflow coordinates correction submissions against the store. Submissions
// for the same natural key are serialized so the lookup-then-create step
// cannot race with itself; the count increment itself is atomic in SQL.
type Workflow struct {
	store store.Store
	canon *provider.Canonicalizer

	mu    sync.Mutex
	locks map[model.NaturalKey]*sync.Mutex
}

func NewWorkflow(st store.Store, canon *provider.Canonicalizer) *Workflow {
	return &Workflow{
		store: st,
		canon: canon,
		locks: make(map[model.NaturalKey]*sync.Mutex),
	}
}

func (w *Workflow) keyLock(key model.NaturalKey) *sync.Mutex {
	w.mu.Lock()
	defer w.mu.Unlock()
	l, ok := w.locks[key]
	if !ok {
		l = &sync.Mutex{}
		w.locks[key] = l
	}
	return l
}

// Submit records a correction claim. The first submission for a natural key
// creates a pending row; repeats confirm the existing row, and the row
// auto-promotes to verified once it reaches the confirmation threshold.
// Rejected rows do not match the key, so a re-submitted rejected claim starts
// a fresh pending record.
func (w *Workflow) Submit(ctx context.Context, req SubmitRequest) (*SubmitResult, error) {
	if err := validateSubmit(req); err != nil {
		return nil, err
	}

	canonical := w.canon.Canonicalize(req.CorrectProvider, req.UtilityType)
	key := model.NaturalKey{
		UtilityType:       req.UtilityType,
		State:             strings.ToUpper(strings.TrimSpace(req.State)),
		ZipCode:           strings.TrimSpace(req.ZipCode),
		CanonicalProvider: canonical,
	}

	lock := w.keyLock(key)
	lock.Lock()
	defer lock.Unlock()

	existing, err := w.store.GetCorrectionByKey(ctx, key)
	if err != nil {
		return nil, eris.Wrap(err, "correction: lookup by key")
	}

	var result SubmitResult
	if existing == nil {
		c := &model.Correction{
			UtilityType:       key.UtilityType,
			CorrectProvider:   strings.TrimSpace(req.CorrectProvider),
			CanonicalProvider: key.CanonicalProvider,
			State:             key.State,
			ZipCode:           key.ZipCode,
			City:              strings.TrimSpace(req.City),
			Street:            strings.TrimSpace(req.Street),
			IncorrectProvider: strings.TrimSpace(req.IncorrectProvider),
		}
		if err := w.store.CreateCorrection(ctx, c); err != nil {
			return nil, eris.Wrap(err, "correction: create")
		}
		result = SubmitResult{Correction: *c, Created: true}
	} else {
		wasPending := existing.Status == model.CorrectionPending
		updated, err := w.store.ConfirmCorrection(ctx, existing.ID, model.VerifyThreshold)
		if err != nil {
			return nil, eris.Wrap(err, "correction: confirm")
		}
		result = SubmitResult{
			Correction:    *updated,
			NewlyVerified: wasPending && updated.Status == model.CorrectionVerified,
		}
	}

	if err := w.store.AppendConfirmation(ctx, model.Confirmation{
		CorrectionID: result.Correction.ID,
		Address:      strings.TrimSpace(req.Address),
		Source:       req.Source,
	}); err != nil {
		return nil, eris.Wrap(err, "correction: append confirmation")
	}

	if result.NewlyVerified {
		zap.L().Info("correction verified by confirmation threshold",
			zap.String("id", result.Correction.ID),
			zap.String("provider", result.Correction.CanonicalProvider),
			zap.String("zip", result.Correction.ZipCode),
			zap.Int("confirmations", result.Correction.ConfirmationCount))
	}
	return &result, nil
}

// Approve force-verifies a pending correction regardless of its count.
func (w *Workflow) Approve(ctx context.Context, id string) error {
	c, err := w.store.GetCorrection(ctx, id)
	if err != nil {
		return eris.Wrap(err, "correction: approve")
	}
	if c.Status == model.CorrectionVerified {
		return nil
	}
	return eris.Wrap(w.store.UpdateCorrectionStatus(ctx, id, model.CorrectionVerified), "correction: approve")
}

// Reject marks a correction rejected. The row stays for audit but stops
// matching key lookups, so future submissions start over.
func (w *Workflow) Reject(ctx context.Context, id string) error {
	return eris.Wrap(w.store.UpdateCorrectionStatus(ctx, id, model.CorrectionRejected), "correction: reject")
}

// ConfirmResult bumps the "users agreed with this lookup" counter. It is a
// positive signal with its own lifecycle, unrelated to corrections.
func (w *Workflow) ConfirmResult(ctx context.Context, category model.Category, providerName, state, zipCode string) error {
	if !category.Valid() {
		return eris.Errorf("correction: invalid category %q", category)
	}
	canonical := w.canon.Canonicalize(providerName, category)
	return eris.Wrap(w.store.IncrementVerified(ctx, model.VerifiedUtility{
		UtilityType:  category,
		ProviderName: canonical,
		State:        strings.ToUpper(strings.TrimSpace(state)),
		ZipCode:      strings.TrimSpace(zipCode),
	}), "correction: confirm result")
}

// Pending lists pending corrections for review, newest first.
func (w *Workflow) Pending(ctx context.Context, limit int) ([]model.Correction, error) {
	return w.store.ListCorrections(ctx, store.CorrectionFilter{
		Status: model.CorrectionPending,
		Limit:  limit,
	})
}

func validateSubmit(req SubmitRequest) error {
	if !req.UtilityType.Valid() {
		return eris.Errorf("correction: invalid utility type %q", req.UtilityType)
	}
	if strings.TrimSpace(req.CorrectProvider) == "" {
		return eris.New("correction: correct_provider is required")
	}
	if strings.TrimSpace(req.State) == "" {
		return eris.New("correction: state is required")
	}
	zip := strings.TrimSpace(req.ZipCode)
	if len(zip) != 5 {
		return eris.Errorf("correction: zip_code must be 5 digits, got %q", req.ZipCode)
	}
	for _, r := range zip {
		if r < '0' || r > '9' {
			return eris.Errorf("correction: zip_code must be numeric, got %q", req.ZipCode)
		}
	}
	return nil
}
