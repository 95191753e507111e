package deal

import (
	"time"

	"github.com/google/uuid"
)

// Status is a deal's position in the sales pipeline.
type Status string

// Pipeline states in order. A deal only moves forward.
const (
	StatusToDo      Status = "to_do"
	StatusDone      Status = "done"
	StatusSigned    Status = "signed"
	StatusInstalled Status = "installed"
	StatusInvoiced  Status = "invoiced"
	StatusPaid      Status = "paid"
)

// ValidStatus reports whether the value names a pipeline state.
func ValidStatus(s Status) bool {
	return statusRank(s) >= 0
}

func statusRank(s Status) int {
	switch s {
	case StatusToDo:
		return 0
	case StatusDone:
		return 1
	case StatusSigned:
		return 2
	case StatusInstalled:
		return 3
	case StatusInvoiced:
		return 4
	case StatusPaid:
		return 5
	default:
		return -1
	}
}

// Deal is a sale owned by an organization. All monetary fields are integer
// pence; the derived fields are recomputed whenever a financial input changes.
type Deal struct {
	ID             uuid.UUID `json:"id"`
	OrganizationID uuid.UUID `json:"organization_id"`
	DealNumber     int64     `json:"deal_number"`
	CustomerName   string    `json:"customer_name"`

	DealValue        int64 `json:"deal_value"`
	BuyInCost        int64 `json:"buy_in_cost"`
	InstallationCost int64 `json:"installation_cost"`
	MiscCosts        int64 `json:"misc_costs"`

	InitialProfit       int64 `json:"initial_profit"`
	TelesalesCommission int64 `json:"telesales_commission"`
	RemainingProfit     int64 `json:"remaining_profit"`

	TelesalesAgentID uuid.UUID `json:"telesales_agent_id"`
	BDMID            uuid.UUID `json:"bdm_id"`

	Status Status `json:"status"`
	Notes  string `json:"notes,omitempty"`

	SignedAt    *time.Time `json:"signed_at,omitempty"`
	InstalledAt *time.Time `json:"installed_at,omitempty"`
	InvoicedAt  *time.Time `json:"invoiced_at,omitempty"`
	// PaidAt buckets the deal into a calendar month for commission purposes.
	PaidAt *time.Time `json:"paid_at,omitempty"`

	CreatedBy uuid.UUID `json:"created_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
