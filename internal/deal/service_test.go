package deal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-commissions/internal/common"
)

type stubStore struct {
	deals    map[uuid.UUID]Deal
	nextNum  int64
	insertFn func(Deal) error
}

func newStubStore() *stubStore {
	return &stubStore{deals: map[uuid.UUID]Deal{}}
}

func (s *stubStore) Insert(_ context.Context, d Deal) (Deal, error) {
	if s.insertFn != nil {
		if err := s.insertFn(d); err != nil {
			return Deal{}, err
		}
	}
	s.nextNum++
	d.ID = uuid.New()
	d.DealNumber = s.nextNum
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	s.deals[d.ID] = d
	return d, nil
}

func (s *stubStore) Get(_ context.Context, orgID, id uuid.UUID) (Deal, error) {
	d, ok := s.deals[id]
	if !ok || d.OrganizationID != orgID {
		return Deal{}, ErrNotFound
	}
	return d, nil
}

func (s *stubStore) List(_ context.Context, orgID uuid.UUID, status *Status) ([]Deal, error) {
	var out []Deal
	for _, d := range s.deals {
		if d.OrganizationID != orgID {
			continue
		}
		if status != nil && d.Status != *status {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func (s *stubStore) Update(_ context.Context, d Deal) (Deal, error) {
	if _, ok := s.deals[d.ID]; !ok {
		return Deal{}, ErrNotFound
	}
	d.UpdatedAt = time.Now().UTC()
	s.deals[d.ID] = d
	return d, nil
}

func (s *stubStore) Delete(_ context.Context, orgID, id uuid.UUID) error {
	d, ok := s.deals[id]
	if !ok || d.OrganizationID != orgID {
		return ErrNotFound
	}
	delete(s.deals, id)
	return nil
}

func (s *stubStore) ListPaidInPeriod(_ context.Context, orgID uuid.UUID, from, to time.Time) ([]Deal, error) {
	return nil, nil
}

func (s *stubStore) ListPaidByBDMInPeriod(_ context.Context, orgID, bdmID uuid.UUID, from, to time.Time) ([]Deal, error) {
	return nil, nil
}

type stubRecalc struct {
	calls []RecalcRequest
	err   error
}

func (s *stubRecalc) ScheduleRecalc(_ context.Context, req RecalcRequest) error {
	if s.err != nil {
		return s.err
	}
	s.calls = append(s.calls, req)
	return nil
}

type stubEmitter struct {
	topics []string
}

func (s *stubEmitter) Emit(_ context.Context, topic string, _ uuid.UUID, _ any) error {
	s.topics = append(s.topics, topic)
	return nil
}

func testActor(orgID uuid.UUID) common.Actor {
	return common.Actor{
		MemberID:       uuid.New().String(),
		OrganizationID: orgID.String(),
		Role:           "manager",
	}
}

func TestServiceCreateComputesSplit(t *testing.T) {
	orgID := uuid.New()
	store := newStubStore()
	svc := &Service{Store: store}

	created, err := svc.Create(context.Background(), testActor(orgID), CreateInput{
		CustomerName: "Acme Ltd",
		Financials: Financials{
			DealValue:        100000,
			BuyInCost:        40000,
			InstallationCost: 10000,
			MiscCosts:        5000,
		},
		TelesalesAgentID: uuid.New(),
		BDMID:            uuid.New(),
	})
	require.NoError(t, err)
	require.Equal(t, int64(1), created.DealNumber)
	require.Equal(t, StatusToDo, created.Status)
	require.Equal(t, int64(45000), created.InitialProfit)
	require.Equal(t, int64(4500), created.TelesalesCommission)
	require.Equal(t, int64(40500), created.RemainingProfit)
}

func TestServiceCreateRejectsCostsExceedingValue(t *testing.T) {
	svc := &Service{Store: newStubStore()}
	_, err := svc.Create(context.Background(), testActor(uuid.New()), CreateInput{
		CustomerName: "Acme Ltd",
		Financials: Financials{
			DealValue: 1000,
			BuyInCost: 600, InstallationCost: 300, MiscCosts: 101,
		},
		TelesalesAgentID: uuid.New(),
		BDMID:            uuid.New(),
	})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestServiceUpdateRecomputesDerivedFields(t *testing.T) {
	orgID := uuid.New()
	store := newStubStore()
	svc := &Service{Store: store}
	actor := testActor(orgID)

	created, err := svc.Create(context.Background(), actor, CreateInput{
		CustomerName: "Acme Ltd",
		Financials: Financials{
			DealValue: 100000, BuyInCost: 40000, InstallationCost: 10000, MiscCosts: 5000,
		},
		TelesalesAgentID: uuid.New(),
		BDMID:            uuid.New(),
	})
	require.NoError(t, err)

	newValue := int64(200000)
	updated, err := svc.Update(context.Background(), actor, created.ID, UpdateInput{DealValue: &newValue})
	require.NoError(t, err)
	require.Equal(t, int64(145000), updated.InitialProfit)
	require.Equal(t, int64(14500), updated.TelesalesCommission)
	require.Equal(t, int64(130500), updated.RemainingProfit)
}

func TestServiceTransitionForwardOnly(t *testing.T) {
	orgID := uuid.New()
	store := newStubStore()
	svc := &Service{Store: store}
	actor := testActor(orgID)

	created, err := svc.Create(context.Background(), actor, CreateInput{
		CustomerName:     "Acme Ltd",
		Financials:       Financials{DealValue: 1000},
		TelesalesAgentID: uuid.New(),
		BDMID:            uuid.New(),
	})
	require.NoError(t, err)

	signed, err := svc.Transition(context.Background(), actor, created.ID, TransitionInput{Status: StatusSigned})
	require.NoError(t, err)
	require.Equal(t, StatusSigned, signed.Status)
	require.NotNil(t, signed.SignedAt)

	_, err = svc.Transition(context.Background(), actor, created.ID, TransitionInput{Status: StatusToDo})
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
}

func TestServiceTransitionPaidSchedulesRecalc(t *testing.T) {
	orgID := uuid.New()
	store := newStubStore()
	recalc := &stubRecalc{}
	emitter := &stubEmitter{}
	now := time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)
	svc := &Service{Store: store, Events: emitter, Recalc: recalc, Now: func() time.Time { return now }}
	actor := testActor(orgID)
	bdmID := uuid.New()

	created, err := svc.Create(context.Background(), actor, CreateInput{
		CustomerName:     "Acme Ltd",
		Financials:       Financials{DealValue: 1000},
		TelesalesAgentID: uuid.New(),
		BDMID:            bdmID,
	})
	require.NoError(t, err)

	paid, err := svc.Transition(context.Background(), actor, created.ID, TransitionInput{Status: StatusPaid})
	require.NoError(t, err)
	require.NotNil(t, paid.PaidAt)
	require.Equal(t, now, *paid.PaidAt)

	require.Len(t, recalc.calls, 1)
	require.Equal(t, orgID, recalc.calls[0].OrganizationID)
	require.Equal(t, bdmID, recalc.calls[0].BDMID)
	require.Equal(t, 3, recalc.calls[0].Month)
	require.Equal(t, 2025, recalc.calls[0].Year)
	require.Contains(t, emitter.topics, "deal.paid")

	// Paying again is a no-op for the recalc trigger.
	_, err = svc.Transition(context.Background(), actor, created.ID, TransitionInput{Status: StatusPaid})
	require.NoError(t, err)
	require.Len(t, recalc.calls, 1)
}

func TestServiceTransitionPaidHonorsExplicitPaidAt(t *testing.T) {
	orgID := uuid.New()
	store := newStubStore()
	recalc := &stubRecalc{}
	svc := &Service{Store: store, Recalc: recalc}
	actor := testActor(orgID)

	created, err := svc.Create(context.Background(), actor, CreateInput{
		CustomerName:     "Acme Ltd",
		Financials:       Financials{DealValue: 1000},
		TelesalesAgentID: uuid.New(),
		BDMID:            uuid.New(),
	})
	require.NoError(t, err)

	paidAt := time.Date(2024, time.December, 31, 23, 59, 0, 0, time.UTC)
	paid, err := svc.Transition(context.Background(), actor, created.ID, TransitionInput{Status: StatusPaid, PaidAt: &paidAt})
	require.NoError(t, err)
	require.Equal(t, paidAt, *paid.PaidAt)
	require.Len(t, recalc.calls, 1)
	require.Equal(t, 12, recalc.calls[0].Month)
	require.Equal(t, 2024, recalc.calls[0].Year)
}

func TestServiceTransitionPaidAtOverrideRecalculatesBothPeriods(t *testing.T) {
	orgID := uuid.New()
	store := newStubStore()
	recalc := &stubRecalc{}
	now := time.Date(2025, time.March, 14, 9, 0, 0, 0, time.UTC)
	svc := &Service{Store: store, Recalc: recalc, Now: func() time.Time { return now }}
	actor := testActor(orgID)
	bdmID := uuid.New()

	created, err := svc.Create(context.Background(), actor, CreateInput{
		CustomerName:     "Acme Ltd",
		Financials:       Financials{DealValue: 1000},
		TelesalesAgentID: uuid.New(),
		BDMID:            bdmID,
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), actor, created.ID, TransitionInput{Status: StatusPaid})
	require.NoError(t, err)
	require.Len(t, recalc.calls, 1)

	// Moving the paid date to another month leaves both that month's and
	// the original month's stored records stale; both get recalculated.
	february := time.Date(2025, time.February, 3, 0, 0, 0, 0, time.UTC)
	moved, err := svc.Transition(context.Background(), actor, created.ID, TransitionInput{Status: StatusPaid, PaidAt: &february})
	require.NoError(t, err)
	require.Equal(t, february, *moved.PaidAt)
	require.Len(t, recalc.calls, 3)
	require.Equal(t, 3, recalc.calls[1].Month)
	require.Equal(t, 2025, recalc.calls[1].Year)
	require.Equal(t, 2, recalc.calls[2].Month)
	require.Equal(t, 2025, recalc.calls[2].Year)
	require.Equal(t, bdmID, recalc.calls[2].BDMID)

	// An override within the same month changes nothing to recalculate.
	sameMonth := time.Date(2025, time.February, 20, 0, 0, 0, 0, time.UTC)
	_, err = svc.Transition(context.Background(), actor, created.ID, TransitionInput{Status: StatusPaid, PaidAt: &sameMonth})
	require.NoError(t, err)
	require.Len(t, recalc.calls, 3)
}

func TestServiceTransitionSurfacesRecalcFailure(t *testing.T) {
	orgID := uuid.New()
	store := newStubStore()
	recalc := &stubRecalc{err: errors.New("queue down")}
	svc := &Service{Store: store, Recalc: recalc}
	actor := testActor(orgID)

	created, err := svc.Create(context.Background(), actor, CreateInput{
		CustomerName:     "Acme Ltd",
		Financials:       Financials{DealValue: 1000},
		TelesalesAgentID: uuid.New(),
		BDMID:            uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), actor, created.ID, TransitionInput{Status: StatusPaid})
	require.Error(t, err)

	// The status change itself persisted.
	got, err := svc.Get(context.Background(), actor, created.ID)
	require.NoError(t, err)
	require.Equal(t, StatusPaid, got.Status)
}

func TestServiceDeleteOnlyBeforeSigned(t *testing.T) {
	orgID := uuid.New()
	store := newStubStore()
	svc := &Service{Store: store}
	actor := testActor(orgID)

	created, err := svc.Create(context.Background(), actor, CreateInput{
		CustomerName:     "Acme Ltd",
		Financials:       Financials{DealValue: 1000},
		TelesalesAgentID: uuid.New(),
		BDMID:            uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.Transition(context.Background(), actor, created.ID, TransitionInput{Status: StatusSigned})
	require.NoError(t, err)

	err = svc.Delete(context.Background(), actor, created.ID)
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "CONFLICT", appErr.Code)

	other, err := svc.Create(context.Background(), actor, CreateInput{
		CustomerName:     "Beta Ltd",
		Financials:       Financials{DealValue: 1000},
		TelesalesAgentID: uuid.New(),
		BDMID:            uuid.New(),
	})
	require.NoError(t, err)
	require.NoError(t, svc.Delete(context.Background(), actor, other.ID))
}

func TestServiceCrossTenantGetRejected(t *testing.T) {
	store := newStubStore()
	svc := &Service{Store: store}
	orgA := uuid.New()

	created, err := svc.Create(context.Background(), testActor(orgA), CreateInput{
		CustomerName:     "Acme Ltd",
		Financials:       Financials{DealValue: 1000},
		TelesalesAgentID: uuid.New(),
		BDMID:            uuid.New(),
	})
	require.NoError(t, err)

	_, err = svc.Get(context.Background(), testActor(uuid.New()), created.ID)
	require.Error(t, err)
	var appErr *common.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, "NOT_FOUND", appErr.Code)
}
