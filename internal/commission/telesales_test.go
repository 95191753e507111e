package commission

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-commissions/internal/deal"
)

func TestAggregateTelesalesGroupsByAgent(t *testing.T) {
	orgID := uuid.New()
	agentA := uuid.New()
	agentB := uuid.New()
	paid := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)

	mk := func(agent uuid.UUID, commission int64) deal.Deal {
		d := paidDeal(orgID, uuid.New(), 0, commission, paid)
		d.TelesalesAgentID = agent
		d.InitialProfit = commission * 10
		return d
	}
	totals := AggregateTelesales([]deal.Deal{
		mk(agentA, 4500),
		mk(agentA, 1500),
		mk(agentB, 2000),
	})

	require.Len(t, totals, 2)
	require.Equal(t, agentA, totals[0].AgentID)
	require.Equal(t, int64(60000), totals[0].TotalProfit)
	require.Equal(t, int64(6000), totals[0].TotalCommission)
	require.Equal(t, 2, totals[0].DealsCount)
	require.Equal(t, agentB, totals[1].AgentID)
	require.Equal(t, int64(20000), totals[1].TotalProfit)
	require.Equal(t, int64(2000), totals[1].TotalCommission)
	require.Equal(t, 1, totals[1].DealsCount)
}

func TestAggregateTelesalesOmitsIdleAgents(t *testing.T) {
	totals := AggregateTelesales(nil)
	require.Empty(t, totals)
}

func TestAggregateTelesalesDeterministicOrder(t *testing.T) {
	orgID := uuid.New()
	paid := time.Date(2025, time.March, 10, 0, 0, 0, 0, time.UTC)
	agents := []uuid.UUID{uuid.New(), uuid.New(), uuid.New()}

	var deals []deal.Deal
	for _, a := range agents {
		d := paidDeal(orgID, uuid.New(), 0, 1000, paid)
		d.TelesalesAgentID = a
		deals = append(deals, d)
	}
	first := AggregateTelesales(deals)
	second := AggregateTelesales(deals)
	require.Equal(t, first, second)
}
