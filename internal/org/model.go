// Package org holds the tenant record and the per-organization commission
// settings used by the BDM threshold engine.
package org

import (
	"time"

	"github.com/google/uuid"
)

// Default commission settings applied when an organization has never saved
// its own.
const (
	DefaultBDMThresholdPence    int64 = 350000
	DefaultBDMCommissionRateBps int32 = 10000
)

// Organization is a tenant. Every deal, member and commission record hangs
// off one of these.
type Organization struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Settings are the tunables of the BDM deficit-threshold engine. The
// threshold is pence per month; the rate is basis points of the excess.
type Settings struct {
	OrganizationID       uuid.UUID `json:"organizationId"`
	BDMThresholdPence    int64     `json:"bdmThresholdPence"`
	BDMCommissionRateBps int32     `json:"bdmCommissionRateBps"`
	UpdatedBy            uuid.UUID `json:"updatedBy"`
	UpdatedAt            time.Time `json:"updatedAt"`
}
