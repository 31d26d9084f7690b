// Package domain provides core business rules for the lead routing bounded context.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// LeadSource identifies the acquisition channel of a lead.
type LeadSource string

const (
	SourceReferral        LeadSource = "Referral"
	SourcePartner         LeadSource = "Partner"
	SourceWebinar         LeadSource = "Webinar"
	SourceContentDownload LeadSource = "ContentDownload"
	SourceWebsite         LeadSource = "Website"
	SourceEmailCampaign   LeadSource = "EmailCampaign"
	SourceTradeShow       LeadSource = "TradeShow"
	SourceSocialMedia     LeadSource = "SocialMedia"
	SourceAdvertisement   LeadSource = "Advertisement"
	SourceColdCall        LeadSource = "ColdCall"
	SourceOther           LeadSource = "Other"
)

// LeadStatus identifies where a lead sits in the qualification funnel.
type LeadStatus string

const (
	StatusNew         LeadStatus = "New"
	StatusContacted   LeadStatus = "Contacted"
	StatusNurturing   LeadStatus = "Nurturing"
	StatusQualified   LeadStatus = "Qualified"
	StatusUnqualified LeadStatus = "Unqualified"
	StatusConverted   LeadStatus = "Converted"
)

// Lead is an immutable snapshot of a lead for one routing/scoring cycle.
// The lead record itself is owned by the external lead store; the routing
// core only writes back OwnerUserID as its primary side effect.
type Lead struct {
	ID            uuid.UUID
	TenantID      uuid.UUID
	Email         string
	Phone         string
	Company       string
	JobTitle      string
	Source        LeadSource
	Status        LeadStatus
	Score         int
	EmployeeCount int
	AnnualRevenue int64
	Industry      string
	Notes         string
	OwnerUserID   *uuid.UUID
	CreatedAt     time.Time
}

// HasOwner reports whether the lead currently has an owning user.
func (l Lead) HasOwner() bool {
	return l.OwnerUserID != nil && *l.OwnerUserID != uuid.Nil
}
