package deal

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-commissions/internal/common"
	"github.com/noah-isme/backend-commissions/internal/events"
	"github.com/noah-isme/backend-commissions/internal/obs"
)

// ErrInvalidTransition is returned when a status change would move a deal
// backwards through the pipeline.
var ErrInvalidTransition = errors.New("deal: invalid status transition")

// TeamDirectory verifies that assigned team members belong to the
// organization and are active.
type TeamDirectory interface {
	MemberActive(ctx context.Context, orgID, memberID uuid.UUID) (bool, error)
}

// RecalcRequest identifies the commission period to recalculate after a deal
// was marked paid.
type RecalcRequest struct {
	OrganizationID uuid.UUID `json:"organization_id"`
	BDMID          uuid.UUID `json:"bdm_id"`
	Month          int       `json:"month"`
	Year           int       `json:"year"`
	TriggeredBy    uuid.UUID `json:"triggered_by"`
}

// RecalcScheduler triggers a BDM commission recalculation. Implementations
// either run it synchronously or enqueue a task; either way a scheduling
// failure is surfaced to the caller rather than dropped.
type RecalcScheduler interface {
	ScheduleRecalc(ctx context.Context, req RecalcRequest) error
}

// EventEmitter publishes domain events.
type EventEmitter interface {
	Emit(ctx context.Context, topic string, aggregateID uuid.UUID, payload any) error
}

// Service coordinates deal writes, the derived profit split, and the
// commission recalculation trigger on paid transitions.
type Service struct {
	Store  Store
	Team   TeamDirectory
	Events EventEmitter
	Recalc RecalcScheduler
	Now    func() time.Time
}

func (s *Service) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now()
	}
	return time.Now().UTC()
}

// CreateInput carries the settable fields for a new deal. Monetary values
// are pence, already converted at the parsing boundary.
type CreateInput struct {
	CustomerName     string
	Financials       Financials
	TelesalesAgentID uuid.UUID
	BDMID            uuid.UUID
	Notes            string
}

// UpdateInput carries a partial deal update. Nil pointers leave the field
// unchanged; any present financial field forces a full recomputation of the
// derived profit split.
type UpdateInput struct {
	CustomerName     *string
	DealValue        *int64
	BuyInCost        *int64
	InstallationCost *int64
	MiscCosts        *int64
	TelesalesAgentID *uuid.UUID
	BDMID            *uuid.UUID
	Notes            *string
}

// TransitionInput moves a deal to a new pipeline status. PaidAt overrides
// the paid timestamp when entering paid; otherwise the transition time is
// used the first time the status is reached.
type TransitionInput struct {
	Status Status
	PaidAt *time.Time
}

// Create validates assignments, derives the profit split and persists the
// deal in to_do.
func (s *Service) Create(ctx context.Context, actor common.Actor, input CreateInput) (Deal, error) {
	if s == nil || s.Store == nil {
		return Deal{}, ErrStoreUnavailable
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return Deal{}, common.NewNotFoundError("organization not found")
	}
	memberID, err := uuid.Parse(actor.MemberID)
	if err != nil {
		return Deal{}, common.NewNotFoundError("member not found")
	}
	if input.CustomerName == "" {
		return Deal{}, common.NewValidationError("customer name is required", nil)
	}
	if err := s.checkAssignments(ctx, orgID, input.TelesalesAgentID, input.BDMID); err != nil {
		return Deal{}, err
	}
	split, err := ComputeFinancials(input.Financials)
	if err != nil {
		return Deal{}, common.NewValidationError("costs cannot exceed deal value", err)
	}
	created, err := s.Store.Insert(ctx, Deal{
		OrganizationID:      orgID,
		CustomerName:        input.CustomerName,
		DealValue:           input.Financials.DealValue,
		BuyInCost:           input.Financials.BuyInCost,
		InstallationCost:    input.Financials.InstallationCost,
		MiscCosts:           input.Financials.MiscCosts,
		InitialProfit:       split.InitialProfit,
		TelesalesCommission: split.TelesalesCommission,
		RemainingProfit:     split.RemainingProfit,
		TelesalesAgentID:    input.TelesalesAgentID,
		BDMID:               input.BDMID,
		Status:              StatusToDo,
		Notes:               input.Notes,
		CreatedBy:           memberID,
	})
	if err != nil {
		return Deal{}, common.NewStorageError("failed to create deal", err)
	}
	return created, nil
}

// Update applies a partial edit. Financial edits recompute all four derived
// fields atomically; reassignments are verified against the team directory.
func (s *Service) Update(ctx context.Context, actor common.Actor, id uuid.UUID, input UpdateInput) (Deal, error) {
	if s == nil || s.Store == nil {
		return Deal{}, ErrStoreUnavailable
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return Deal{}, common.NewNotFoundError("organization not found")
	}
	existing, err := s.Store.Get(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Deal{}, common.NewNotFoundError("deal not found")
		}
		return Deal{}, common.NewStorageError("failed to load deal", err)
	}

	if input.CustomerName != nil {
		existing.CustomerName = *input.CustomerName
	}
	if input.Notes != nil {
		existing.Notes = *input.Notes
	}
	if input.TelesalesAgentID != nil {
		existing.TelesalesAgentID = *input.TelesalesAgentID
	}
	if input.BDMID != nil {
		existing.BDMID = *input.BDMID
	}
	if input.TelesalesAgentID != nil || input.BDMID != nil {
		if err := s.checkAssignments(ctx, orgID, existing.TelesalesAgentID, existing.BDMID); err != nil {
			return Deal{}, err
		}
	}

	if input.DealValue != nil || input.BuyInCost != nil || input.InstallationCost != nil || input.MiscCosts != nil {
		fin := Financials{
			DealValue:        existing.DealValue,
			BuyInCost:        existing.BuyInCost,
			InstallationCost: existing.InstallationCost,
			MiscCosts:        existing.MiscCosts,
		}
		if input.DealValue != nil {
			fin.DealValue = *input.DealValue
		}
		if input.BuyInCost != nil {
			fin.BuyInCost = *input.BuyInCost
		}
		if input.InstallationCost != nil {
			fin.InstallationCost = *input.InstallationCost
		}
		if input.MiscCosts != nil {
			fin.MiscCosts = *input.MiscCosts
		}
		split, err := ComputeFinancials(fin)
		if err != nil {
			return Deal{}, common.NewValidationError("costs cannot exceed deal value", err)
		}
		existing.DealValue = fin.DealValue
		existing.BuyInCost = fin.BuyInCost
		existing.InstallationCost = fin.InstallationCost
		existing.MiscCosts = fin.MiscCosts
		existing.InitialProfit = split.InitialProfit
		existing.TelesalesCommission = split.TelesalesCommission
		existing.RemainingProfit = split.RemainingProfit
	}

	updated, err := s.Store.Update(ctx, existing)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Deal{}, common.NewNotFoundError("deal not found")
		}
		return Deal{}, common.NewStorageError("failed to update deal", err)
	}
	return updated, nil
}

// Transition moves a deal forward through the pipeline, stamping the
// per-status timestamp on first arrival. Entering paid triggers the BDM
// commission recalculation for the paid month.
func (s *Service) Transition(ctx context.Context, actor common.Actor, id uuid.UUID, input TransitionInput) (Deal, error) {
	if s == nil || s.Store == nil {
		return Deal{}, ErrStoreUnavailable
	}
	if !ValidStatus(input.Status) {
		return Deal{}, common.NewValidationError(fmt.Sprintf("unknown status %q", input.Status), nil)
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return Deal{}, common.NewNotFoundError("organization not found")
	}
	existing, err := s.Store.Get(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Deal{}, common.NewNotFoundError("deal not found")
		}
		return Deal{}, common.NewStorageError("failed to load deal", err)
	}
	if statusRank(input.Status) < statusRank(existing.Status) {
		return Deal{}, common.NewValidationError("deal cannot move backwards in the pipeline", ErrInvalidTransition)
	}

	now := s.now()
	becamePaid := input.Status == StatusPaid && existing.Status != StatusPaid
	var previousPaidAt *time.Time
	if existing.PaidAt != nil {
		prev := *existing.PaidAt
		previousPaidAt = &prev
	}
	existing.Status = input.Status
	switch input.Status {
	case StatusSigned:
		if existing.SignedAt == nil {
			existing.SignedAt = &now
		}
	case StatusInstalled:
		if existing.InstalledAt == nil {
			existing.InstalledAt = &now
		}
	case StatusInvoiced:
		if existing.InvoicedAt == nil {
			existing.InvoicedAt = &now
		}
	case StatusPaid:
		if input.PaidAt != nil {
			paidAt := input.PaidAt.UTC()
			existing.PaidAt = &paidAt
		} else if existing.PaidAt == nil {
			existing.PaidAt = &now
		}
	}

	updated, err := s.Store.Update(ctx, existing)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Deal{}, common.NewNotFoundError("deal not found")
		}
		return Deal{}, common.NewStorageError("failed to update deal", err)
	}
	if obs.DealTransitionsTotal != nil {
		obs.DealTransitionsTotal.WithLabelValues(string(updated.Status)).Inc()
	}

	if becamePaid {
		if err := s.onPaid(ctx, actor, updated); err != nil {
			return updated, err
		}
	} else if updated.Status == StatusPaid && previousPaidAt != nil && updated.PaidAt != nil {
		if err := s.onPaidMoved(ctx, actor, updated, *previousPaidAt); err != nil {
			return updated, err
		}
	}
	return updated, nil
}

func (s *Service) onPaid(ctx context.Context, actor common.Actor, d Deal) error {
	if s.Events != nil {
		payload := map[string]any{
			"dealId":     d.ID.String(),
			"dealNumber": d.DealNumber,
			"bdmId":      d.BDMID.String(),
			"paidAt":     d.PaidAt,
		}
		if err := s.Events.Emit(ctx, events.TopicDealPaid, d.ID, payload); err != nil {
			return common.NewStorageError("failed to record deal.paid event", err)
		}
	}
	paidAt := s.now()
	if d.PaidAt != nil {
		paidAt = d.PaidAt.UTC()
	}
	return s.scheduleRecalc(ctx, actor, d, paidAt)
}

// onPaidMoved handles an explicit paid-date override on a deal that was
// already paid. The deal leaves one commission month and enters another, so
// both stored records are stale until recalculated.
func (s *Service) onPaidMoved(ctx context.Context, actor common.Actor, d Deal, previous time.Time) error {
	paidAt := d.PaidAt.UTC()
	previous = previous.UTC()
	if paidAt.Year() == previous.Year() && paidAt.Month() == previous.Month() {
		return nil
	}
	if err := s.scheduleRecalc(ctx, actor, d, previous); err != nil {
		return err
	}
	return s.scheduleRecalc(ctx, actor, d, paidAt)
}

func (s *Service) scheduleRecalc(ctx context.Context, actor common.Actor, d Deal, at time.Time) error {
	if s.Recalc == nil {
		return nil
	}
	triggeredBy, _ := uuid.Parse(actor.MemberID)
	req := RecalcRequest{
		OrganizationID: d.OrganizationID,
		BDMID:          d.BDMID,
		Month:          int(at.Month()),
		Year:           at.Year(),
		TriggeredBy:    triggeredBy,
	}
	if err := s.Recalc.ScheduleRecalc(ctx, req); err != nil {
		return common.NewStorageError("failed to schedule commission recalculation", err)
	}
	return nil
}

// Delete removes a deal that has not yet had financial consequences. Deals
// past done stay, preserving the commission audit trail.
func (s *Service) Delete(ctx context.Context, actor common.Actor, id uuid.UUID) error {
	if s == nil || s.Store == nil {
		return ErrStoreUnavailable
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return common.NewNotFoundError("organization not found")
	}
	existing, err := s.Store.Get(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return common.NewNotFoundError("deal not found")
		}
		return common.NewStorageError("failed to load deal", err)
	}
	if existing.Status != StatusToDo && existing.Status != StatusDone {
		return common.NewAppError("CONFLICT", "deal can only be deleted while in to_do or done", http.StatusConflict, nil)
	}
	if err := s.Store.Delete(ctx, orgID, id); err != nil {
		if errors.Is(err, ErrNotFound) {
			return common.NewNotFoundError("deal not found")
		}
		return common.NewStorageError("failed to delete deal", err)
	}
	return nil
}

// Get fetches a deal scoped to the actor's organization.
func (s *Service) Get(ctx context.Context, actor common.Actor, id uuid.UUID) (Deal, error) {
	if s == nil || s.Store == nil {
		return Deal{}, ErrStoreUnavailable
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return Deal{}, common.NewNotFoundError("organization not found")
	}
	d, err := s.Store.Get(ctx, orgID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return Deal{}, common.NewNotFoundError("deal not found")
		}
		return Deal{}, common.NewStorageError("failed to load deal", err)
	}
	return d, nil
}

// List returns the organization's deals, optionally filtered by status.
func (s *Service) List(ctx context.Context, actor common.Actor, status *Status) ([]Deal, error) {
	if s == nil || s.Store == nil {
		return nil, ErrStoreUnavailable
	}
	orgID, err := uuid.Parse(actor.OrganizationID)
	if err != nil {
		return nil, common.NewNotFoundError("organization not found")
	}
	if status != nil && !ValidStatus(*status) {
		return nil, common.NewValidationError(fmt.Sprintf("unknown status %q", *status), nil)
	}
	deals, err := s.Store.List(ctx, orgID, status)
	if err != nil {
		return nil, common.NewStorageError("failed to list deals", err)
	}
	return deals, nil
}

func (s *Service) checkAssignments(ctx context.Context, orgID, agentID, bdmID uuid.UUID) error {
	if agentID == uuid.Nil {
		return common.NewValidationError("telesales agent is required", nil)
	}
	if bdmID == uuid.Nil {
		return common.NewValidationError("bdm is required", nil)
	}
	if s.Team == nil {
		return nil
	}
	for _, check := range []struct {
		id   uuid.UUID
		name string
	}{{agentID, "telesales agent"}, {bdmID, "bdm"}} {
		active, err := s.Team.MemberActive(ctx, orgID, check.id)
		if err != nil {
			return common.NewStorageError("failed to verify team member", err)
		}
		if !active {
			return common.NewNotFoundError(check.name + " not found in organization")
		}
	}
	return nil
}
