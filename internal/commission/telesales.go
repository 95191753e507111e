package commission

import (
	"sort"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-commissions/internal/deal"
)

// TelesalesTotal is one agent's aggregate over the paid deals of a period.
// TotalProfit sums the initial profit of the agent's deals; TotalCommission
// sums the 10% cut recorded on each deal at write time. AgentName is filled
// in by Summarize from the team roster.
type TelesalesTotal struct {
	AgentID         uuid.UUID `json:"agentId"`
	AgentName       string    `json:"agentName"`
	TotalProfit     int64     `json:"totalProfit"`
	TotalCommission int64     `json:"totalCommission"`
	DealsCount      int       `json:"dealsCount"`
}

// AggregateTelesales sums the per-deal telesales commission and initial
// profit of the given paid deals by agent. Agents with no paid deals simply
// do not appear. The result is ordered by commission, highest first, with
// the agent id as a deterministic tie-break.
func AggregateTelesales(deals []deal.Deal) []TelesalesTotal {
	byAgent := make(map[uuid.UUID]*TelesalesTotal)
	for _, d := range deals {
		total, ok := byAgent[d.TelesalesAgentID]
		if !ok {
			total = &TelesalesTotal{AgentID: d.TelesalesAgentID}
			byAgent[d.TelesalesAgentID] = total
		}
		total.TotalProfit += d.InitialProfit
		total.TotalCommission += d.TelesalesCommission
		total.DealsCount++
	}
	out := make([]TelesalesTotal, 0, len(byAgent))
	for _, total := range byAgent {
		out = append(out, *total)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalCommission != out[j].TotalCommission {
			return out[i].TotalCommission > out[j].TotalCommission
		}
		return out[i].AgentID.String() < out[j].AgentID.String()
	})
	return out
}
