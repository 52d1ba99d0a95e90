package ledger

import (
	"context"
	"fmt"
	"time"

	"contabil/internal/core/apperror"
	"contabil/internal/core/id"
	"contabil/internal/core/retry"
	"contabil/internal/domain/audit"
	"contabil/pkg/logger"
)

// Reconcile groups lines of one account under reconciliationID, typically an
// invoice line with the payment lines that settle it. Amounts need not net
// to zero; partial reconciliation is allowed. Reconciling lines already in
// the same group is a no-op.
func (s *Service) Reconcile(ctx context.Context, companyID id.ID, lineIDs []id.ID, reconciliationID id.ID) error {
	if id.IsNil(companyID) {
		return apperror.NewValidation("company_id is required")
	}
	if id.IsNil(reconciliationID) {
		return apperror.NewValidation("reconciliation id is required")
	}
	ids := uniqueIDs(lineIDs)
	if len(ids) == 0 {
		return apperror.NewValidation("at least one line is required")
	}

	var account string
	err := retry.InTransaction(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		lines, err := s.repo.GetLinesForUpdate(ctx, ids)
		if err != nil {
			return fmt.Errorf("load lines: %w", err)
		}
		if missing := missingLine(ids, lines); !id.IsNil(missing) {
			return apperror.NewNotFound("ledger line", missing)
		}

		account = lines[0].AccountCode
		for _, l := range lines {
			if l.CompanyID != companyID {
				return apperror.NewReconciliationMismatch("lines belong to different companies").
					WithDetail("line_id", l.ID)
			}
			if l.AccountCode != account {
				return apperror.NewReconciliationMismatch("lines belong to different accounts").
					WithDetail("accounts", []string{account, l.AccountCode})
			}
			if !l.EntryStatus.InLedger() {
				return apperror.NewValidation("draft lines cannot be reconciled").
					WithDetail("line_id", l.ID)
			}
			if l.Reconciled && l.ReconciliationID != nil && *l.ReconciliationID != reconciliationID {
				return apperror.NewConflict("line is already reconciled in another group").
					WithDetail("line_id", l.ID).
					WithDetail("reconciliation_id", *l.ReconciliationID)
			}
		}

		now := time.Now().UTC()
		if err := s.repo.SetReconciliation(ctx, ids, &reconciliationID, &now); err != nil {
			return fmt.Errorf("set reconciliation: %w", err)
		}
		if err := s.audit.Record(ctx, audit.Stamp(ctx, audit.Record{
			CompanyID:  companyID,
			EntityType: "reconciliation",
			EntityID:   reconciliationID,
			Action:     audit.ActionReconcile,
			Changes: map[string]any{
				"account_code": account,
				"lines":        ids,
			},
		})); err != nil {
			return fmt.Errorf("record audit: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	logger.Info(ctx, "ledger lines reconciled",
		"reconciliation_id", reconciliationID,
		"account_code", account,
		"lines", len(ids),
	)
	return nil
}

// Unreconcile dissolves a reconciliation group.
func (s *Service) Unreconcile(ctx context.Context, companyID, reconciliationID id.ID) error {
	return retry.InTransaction(ctx, s.txManager, s.retry, func(ctx context.Context) error {
		lines, err := s.repo.LinesByReconciliation(ctx, companyID, reconciliationID)
		if err != nil {
			return fmt.Errorf("load reconciliation: %w", err)
		}
		if len(lines) == 0 {
			return apperror.NewNotFound("reconciliation", reconciliationID)
		}
		ids := make([]id.ID, len(lines))
		for i, l := range lines {
			ids[i] = l.ID
		}
		if err := s.repo.SetReconciliation(ctx, ids, nil, nil); err != nil {
			return fmt.Errorf("clear reconciliation: %w", err)
		}
		return s.audit.Record(ctx, audit.Stamp(ctx, audit.Record{
			CompanyID:  companyID,
			EntityType: "reconciliation",
			EntityID:   reconciliationID,
			Action:     audit.ActionUnreconcile,
			Changes:    map[string]any{"lines": ids},
		}))
	})
}

func uniqueIDs(in []id.ID) []id.ID {
	seen := make(map[id.ID]struct{}, len(in))
	out := make([]id.ID, 0, len(in))
	for _, v := range in {
		if id.IsNil(v) {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

func missingLine(want []id.ID, got []Line) id.ID {
	found := make(map[id.ID]struct{}, len(got))
	for _, l := range got {
		found[l.ID] = struct{}{}
	}
	for _, v := range want {
		if _, ok := found[v]; !ok {
			return v
		}
	}
	return id.Nil()
}
