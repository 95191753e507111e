package commission

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-commissions/internal/deal"
	"github.com/noah-isme/backend-commissions/internal/org"
	"github.com/noah-isme/backend-commissions/internal/team"
)

type memRecords struct {
	records map[string]Record
	getErr  error
	upserts int
}

func newMemRecords() *memRecords {
	return &memRecords{records: map[string]Record{}}
}

func recordKey(orgID, bdmID uuid.UUID, year, month int) string {
	return fmt.Sprintf("%s|%s|%d|%d", orgID, bdmID, year, month)
}

func (m *memRecords) GetPeriod(_ context.Context, orgID, bdmID uuid.UUID, year, month int) (Record, error) {
	if m.getErr != nil {
		return Record{}, m.getErr
	}
	rec, ok := m.records[recordKey(orgID, bdmID, year, month)]
	if !ok {
		return Record{}, ErrNotFound
	}
	return rec, nil
}

func (m *memRecords) Upsert(_ context.Context, rec Record) (Record, error) {
	m.upserts++
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	rec.CalculatedAt = time.Now().UTC()
	m.records[recordKey(rec.OrganizationID, rec.BDMID, rec.Year, rec.Month)] = rec
	return rec, nil
}

func (m *memRecords) ListPeriod(_ context.Context, orgID uuid.UUID, year, month int) ([]Record, error) {
	var out []Record
	for _, rec := range m.records {
		if rec.OrganizationID == orgID && rec.Year == year && rec.Month == month {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (m *memRecords) ListByBDM(_ context.Context, orgID, bdmID uuid.UUID) ([]Record, error) {
	var out []Record
	for _, rec := range m.records {
		if rec.OrganizationID == orgID && rec.BDMID == bdmID {
			out = append(out, rec)
		}
	}
	return out, nil
}

type memDeals struct {
	deals []deal.Deal
	err   error
}

func (m *memDeals) ListPaidInPeriod(_ context.Context, orgID uuid.UUID, from, to time.Time) ([]deal.Deal, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []deal.Deal
	for _, d := range m.deals {
		if d.OrganizationID == orgID && d.Status == deal.StatusPaid && d.PaidAt != nil &&
			!d.PaidAt.Before(from) && d.PaidAt.Before(to) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (m *memDeals) ListPaidByBDMInPeriod(ctx context.Context, orgID, bdmID uuid.UUID, from, to time.Time) ([]deal.Deal, error) {
	all, err := m.ListPaidInPeriod(ctx, orgID, from, to)
	if err != nil {
		return nil, err
	}
	var out []deal.Deal
	for _, d := range all {
		if d.BDMID == bdmID {
			out = append(out, d)
		}
	}
	return out, nil
}

type memSettings struct {
	settings org.Settings
	err      error
}

func (m *memSettings) EffectiveSettings(_ context.Context, orgID uuid.UUID) (org.Settings, error) {
	if m.err != nil {
		return org.Settings{}, m.err
	}
	s := m.settings
	s.OrganizationID = orgID
	return s, nil
}

type memTeam struct {
	bdms  []team.Member
	names map[uuid.UUID]string
}

func (m *memTeam) ListActiveBDMs(_ context.Context, orgID uuid.UUID) ([]team.Member, error) {
	var out []team.Member
	for _, b := range m.bdms {
		if b.OrganizationID == orgID {
			out = append(out, b)
		}
	}
	return out, nil
}

func (m *memTeam) MemberNames(_ context.Context, orgID uuid.UUID, ids []uuid.UUID) (map[uuid.UUID]string, error) {
	out := make(map[uuid.UUID]string, len(ids))
	for _, id := range ids {
		if name, ok := m.names[id]; ok {
			out[id] = name
			continue
		}
		for _, b := range m.bdms {
			if b.OrganizationID == orgID && b.ID == id {
				out[id] = b.Name
			}
		}
	}
	return out, nil
}

func paidDeal(orgID, bdmID uuid.UUID, remaining, telesales int64, paidAt time.Time) deal.Deal {
	return deal.Deal{
		ID:                  uuid.New(),
		OrganizationID:      orgID,
		BDMID:               bdmID,
		TelesalesAgentID:    uuid.New(),
		Status:              deal.StatusPaid,
		RemainingProfit:     remaining,
		TelesalesCommission: telesales,
		PaidAt:              &paidAt,
	}
}

func newTestService(records *memRecords, deals *memDeals, settings *memSettings, bdms *memTeam) *Service {
	return &Service{
		Records:  records,
		Deals:    deals,
		Settings: settings,
		Team:     bdms,
	}
}

func defaultSettings() *memSettings {
	return &memSettings{settings: org.Settings{
		BDMThresholdPence:    350000,
		BDMCommissionRateBps: 10000,
	}}
}

func TestCalculateSumsRemainingProfitForPeriod(t *testing.T) {
	orgID := uuid.New()
	bdmID := uuid.New()
	march := time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)
	april := time.Date(2025, time.April, 2, 12, 0, 0, 0, time.UTC)

	deals := &memDeals{deals: []deal.Deal{
		paidDeal(orgID, bdmID, 200000, 0, march),
		paidDeal(orgID, bdmID, 300000, 0, march),
		// Outside the period and outside the organization.
		paidDeal(orgID, bdmID, 999999, 0, april),
		paidDeal(uuid.New(), bdmID, 999999, 0, march),
		// Another BDM's deal in the same month.
		paidDeal(orgID, uuid.New(), 999999, 0, march),
	}}
	records := newMemRecords()
	svc := newTestService(records, deals, defaultSettings(), &memTeam{})

	rec, err := svc.CalculateMonthlyBDMCommission(context.Background(), orgID, bdmID, 2025, 3, uuid.New())
	require.NoError(t, err)
	require.Equal(t, int64(500000), rec.MonthlyProfit)
	require.Equal(t, 2, rec.DealCount)
	require.True(t, rec.ThresholdMet)
	require.Equal(t, int64(150000), rec.Commission)
	require.Equal(t, int64(0), rec.DeficitToNext)
}

func TestCalculateCarriesDeficitFromPreviousRecord(t *testing.T) {
	orgID := uuid.New()
	bdmID := uuid.New()
	records := newMemRecords()
	records.records[recordKey(orgID, bdmID, 2025, 2)] = Record{
		OrganizationID: orgID, BDMID: bdmID, Year: 2025, Month: 2, DeficitToNext: 150000,
	}
	march := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	deals := &memDeals{deals: []deal.Deal{paidDeal(orgID, bdmID, 400000, 0, march)}}
	svc := newTestService(records, deals, defaultSettings(), &memTeam{})

	rec, err := svc.CalculateMonthlyBDMCommission(context.Background(), orgID, bdmID, 2025, 3, uuid.New())
	require.NoError(t, err)
	require.Equal(t, int64(150000), rec.PreviousDeficit)
	require.Equal(t, int64(500000), rec.ThresholdNeeded)
	require.False(t, rec.ThresholdMet)
	require.Equal(t, int64(100000), rec.DeficitToNext)
}

func TestCalculateJanuaryReadsPriorDecember(t *testing.T) {
	orgID := uuid.New()
	bdmID := uuid.New()
	records := newMemRecords()
	records.records[recordKey(orgID, bdmID, 2024, 12)] = Record{
		OrganizationID: orgID, BDMID: bdmID, Year: 2024, Month: 12, DeficitToNext: 50000,
	}
	svc := newTestService(records, &memDeals{}, defaultSettings(), &memTeam{})

	rec, err := svc.CalculateMonthlyBDMCommission(context.Background(), orgID, bdmID, 2025, 1, uuid.New())
	require.NoError(t, err)
	require.Equal(t, int64(50000), rec.PreviousDeficit)
	require.Equal(t, int64(400000), rec.ThresholdNeeded)
}

func TestCalculateMissingHistoryMeansNoDeficit(t *testing.T) {
	orgID := uuid.New()
	bdmID := uuid.New()
	svc := newTestService(newMemRecords(), &memDeals{}, defaultSettings(), &memTeam{})

	rec, err := svc.CalculateMonthlyBDMCommission(context.Background(), orgID, bdmID, 2025, 6, uuid.New())
	require.NoError(t, err)
	require.Equal(t, int64(0), rec.PreviousDeficit)
	require.Equal(t, int64(350000), rec.ThresholdNeeded)
}

func TestCalculateIsIdempotent(t *testing.T) {
	orgID := uuid.New()
	bdmID := uuid.New()
	march := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	deals := &memDeals{deals: []deal.Deal{paidDeal(orgID, bdmID, 400000, 0, march)}}
	records := newMemRecords()
	svc := newTestService(records, deals, defaultSettings(), &memTeam{})

	first, err := svc.CalculateMonthlyBDMCommission(context.Background(), orgID, bdmID, 2025, 3, uuid.New())
	require.NoError(t, err)
	second, err := svc.CalculateMonthlyBDMCommission(context.Background(), orgID, bdmID, 2025, 3, uuid.New())
	require.NoError(t, err)

	require.Equal(t, first.Commission, second.Commission)
	require.Equal(t, first.DeficitToNext, second.DeficitToNext)
	require.Len(t, records.records, 1)
	require.Equal(t, 2, records.upserts)
}

func TestCalculateAbortsBeforeWriteOnReadFailure(t *testing.T) {
	orgID := uuid.New()
	bdmID := uuid.New()
	records := newMemRecords()
	records.getErr = errors.New("connection reset")
	svc := newTestService(records, &memDeals{}, defaultSettings(), &memTeam{})

	_, err := svc.CalculateMonthlyBDMCommission(context.Background(), orgID, bdmID, 2025, 3, uuid.New())
	require.Error(t, err)
	require.Equal(t, 0, records.upserts)

	deals := &memDeals{err: errors.New("connection reset")}
	svc = newTestService(newMemRecords(), deals, defaultSettings(), &memTeam{})
	_, err = svc.CalculateMonthlyBDMCommission(context.Background(), orgID, bdmID, 2025, 3, uuid.New())
	require.Error(t, err)
}

func TestCalculateReadsSettingsFresh(t *testing.T) {
	orgID := uuid.New()
	bdmID := uuid.New()
	march := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	deals := &memDeals{deals: []deal.Deal{paidDeal(orgID, bdmID, 400000, 0, march)}}
	settings := defaultSettings()
	svc := newTestService(newMemRecords(), deals, settings, &memTeam{})

	first, err := svc.CalculateMonthlyBDMCommission(context.Background(), orgID, bdmID, 2025, 3, uuid.New())
	require.NoError(t, err)
	require.Equal(t, int64(50000), first.Commission)

	// Halving the rate changes the next run, not the stored record.
	settings.settings.BDMCommissionRateBps = 5000
	second, err := svc.CalculateMonthlyBDMCommission(context.Background(), orgID, bdmID, 2025, 3, uuid.New())
	require.NoError(t, err)
	require.Equal(t, int64(25000), second.Commission)
}

func TestCalculateRejectsInvalidPeriod(t *testing.T) {
	svc := newTestService(newMemRecords(), &memDeals{}, defaultSettings(), &memTeam{})
	_, err := svc.CalculateMonthlyBDMCommission(context.Background(), uuid.New(), uuid.New(), 2025, 13, uuid.New())
	require.Error(t, err)
	_, err = svc.CalculateMonthlyBDMCommission(context.Background(), uuid.New(), uuid.New(), 2025, 0, uuid.New())
	require.Error(t, err)
}

func TestRecalculatePeriodCoversAllActiveBDMs(t *testing.T) {
	orgID := uuid.New()
	bdmA := uuid.New()
	bdmB := uuid.New()
	march := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	deals := &memDeals{deals: []deal.Deal{
		paidDeal(orgID, bdmA, 500000, 0, march),
	}}
	bdms := &memTeam{bdms: []team.Member{
		{ID: bdmA, OrganizationID: orgID, Name: "Ada", Role: team.RoleBDM, Active: true},
		{ID: bdmB, OrganizationID: orgID, Name: "Bob", Role: team.RoleBDM, Active: true},
	}}
	records := newMemRecords()
	svc := newTestService(records, deals, defaultSettings(), bdms)

	out, err := svc.RecalculatePeriod(context.Background(), orgID, 2025, 3, uuid.New())
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Len(t, records.records, 2)
}

func TestSummarizeIncludesZeroDealBDMs(t *testing.T) {
	orgID := uuid.New()
	bdmA := uuid.New()
	bdmB := uuid.New()
	march := time.Date(2025, time.March, 20, 0, 0, 0, 0, time.UTC)
	deals := &memDeals{deals: []deal.Deal{
		paidDeal(orgID, bdmA, 500000, 10000, march),
		paidDeal(orgID, bdmA, 100000, 5000, march),
	}}
	bdms := &memTeam{bdms: []team.Member{
		{ID: bdmA, OrganizationID: orgID, Name: "Ada", Role: team.RoleBDM, Active: true},
		{ID: bdmB, OrganizationID: orgID, Name: "Bob", Role: team.RoleBDM, Active: true},
	}}
	records := newMemRecords()
	svc := newTestService(records, deals, defaultSettings(), bdms)

	summary, err := svc.Summarize(context.Background(), orgID, 2025, 3)
	require.NoError(t, err)
	require.Equal(t, 2, summary.DealCount)
	require.Equal(t, int64(600000), summary.TotalRemainingProfit)
	require.Equal(t, int64(15000), summary.TotalTelesalesCommission)
	require.Len(t, summary.BDMs, 2)

	var ada, bob *BDMSummary
	for i := range summary.BDMs {
		switch summary.BDMs[i].BDMID {
		case bdmA:
			ada = &summary.BDMs[i]
		case bdmB:
			bob = &summary.BDMs[i]
		}
	}
	require.NotNil(t, ada)
	require.NotNil(t, bob)
	require.Equal(t, int64(600000), ada.MonthlyProfit)
	require.Equal(t, int64(250000), ada.Commission)
	require.Equal(t, int64(0), bob.MonthlyProfit)
	require.False(t, bob.ThresholdMet)
	require.Equal(t, int64(350000), bob.DeficitToNext)

	// Summaries never write records.
	require.Empty(t, records.records)
	require.Equal(t, 0, records.upserts)
}

func TestSummarizePrefersStoredRecords(t *testing.T) {
	orgID := uuid.New()
	bdmID := uuid.New()
	records := newMemRecords()
	records.records[recordKey(orgID, bdmID, 2025, 3)] = Record{
		OrganizationID: orgID, BDMID: bdmID, Year: 2025, Month: 3,
		MonthlyProfit: 777777, ThresholdNeeded: 350000, ThresholdMet: true,
		Commission: 427777, DealCount: 3,
	}
	bdms := &memTeam{bdms: []team.Member{
		{ID: bdmID, OrganizationID: orgID, Name: "Ada", Role: team.RoleBDM, Active: true},
	}}
	svc := newTestService(records, &memDeals{}, defaultSettings(), bdms)

	summary, err := svc.Summarize(context.Background(), orgID, 2025, 3)
	require.NoError(t, err)
	require.Len(t, summary.BDMs, 1)
	require.True(t, summary.BDMs[0].Persisted)
	require.Equal(t, int64(777777), summary.BDMs[0].MonthlyProfit)
	require.Equal(t, int64(427777), summary.BDMs[0].Commission)
	require.Equal(t, int64(427777), summary.TotalBDMCommission)
}

func TestSummarizeReportsAgentNamesProfitAndGrandTotal(t *testing.T) {
	orgID := uuid.New()
	bdmID := uuid.New()
	agentID := uuid.New()
	march := time.Date(2025, time.March, 12, 0, 0, 0, 0, time.UTC)

	d := paidDeal(orgID, bdmID, 450000, 50000, march)
	d.TelesalesAgentID = agentID
	d.InitialProfit = 500000
	deals := &memDeals{deals: []deal.Deal{d}}
	bdms := &memTeam{
		bdms: []team.Member{
			{ID: bdmID, OrganizationID: orgID, Name: "Ada", Role: team.RoleBDM, Active: true},
		},
		names: map[uuid.UUID]string{agentID: "Tess"},
	}
	svc := newTestService(newMemRecords(), deals, defaultSettings(), bdms)

	summary, err := svc.Summarize(context.Background(), orgID, 2025, 3)
	require.NoError(t, err)
	require.Len(t, summary.Telesales, 1)
	require.Equal(t, agentID, summary.Telesales[0].AgentID)
	require.Equal(t, "Tess", summary.Telesales[0].AgentName)
	require.Equal(t, int64(500000), summary.Telesales[0].TotalProfit)
	require.Equal(t, int64(50000), summary.Telesales[0].TotalCommission)
	require.Equal(t, 1, summary.Telesales[0].DealsCount)

	// 450000 profit over the 350000 threshold at 100% pays 100000.
	require.Equal(t, int64(100000), summary.TotalBDMCommission)
	require.Equal(t, int64(50000), summary.TotalTelesalesCommission)
	require.Equal(t, int64(150000), summary.TotalCommissions)
}

func TestScheduleRecalcRunsSynchronously(t *testing.T) {
	orgID := uuid.New()
	bdmID := uuid.New()
	march := time.Date(2025, time.March, 5, 0, 0, 0, 0, time.UTC)
	deals := &memDeals{deals: []deal.Deal{paidDeal(orgID, bdmID, 400000, 0, march)}}
	records := newMemRecords()
	svc := newTestService(records, deals, defaultSettings(), &memTeam{})

	err := svc.ScheduleRecalc(context.Background(), deal.RecalcRequest{
		OrganizationID: orgID,
		BDMID:          bdmID,
		Month:          3,
		Year:           2025,
		TriggeredBy:    uuid.New(),
	})
	require.NoError(t, err)
	require.Len(t, records.records, 1)
}
