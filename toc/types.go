// Package toc streams CMS Table of Contents (TOC) files.
//
// Types follow the CMS Price Transparency Guide schema for the
// table-of-contents file. Only the reporting_structure array is streamed;
// everything else at the top level is either captured as Metadata or skipped.
package toc

// ReportingStructure maps plans to their in-network and allowed amount files
type ReportingStructure struct {
	ReportingPlans    []ReportingPlan `json:"reporting_plans"`
	InNetworkFiles    []FileLocation  `json:"in_network_files,omitempty"`
	AllowedAmountFile *FileLocation   `json:"allowed_amount_file,omitempty"`
}

// ReportingPlan contains plan information
type ReportingPlan struct {
	PlanName        string `json:"plan_name"`
	IssuerName      string `json:"issuer_name,omitempty"`
	PlanIDType      string `json:"plan_id_type"` // "EIN" or "HIOS"
	PlanID          string `json:"plan_id"`
	PlanSponsorName string `json:"plan_sponsor_name,omitempty"`
	PlanMarketType  string `json:"plan_market_type,omitempty"` // "group" or "individual"
}

// FileLocation contains file description and URL
type FileLocation struct {
	Description string `json:"description,omitempty"`
	Location    string `json:"location"`
}

// Metadata contains the top-level TOC file metadata
type Metadata struct {
	ReportingEntityName string `json:"reporting_entity_name"`
	ReportingEntityType string `json:"reporting_entity_type"`
	LastUpdatedOn       string `json:"last_updated_on"`
	Version             string `json:"version"`
}

// Stats tracks how much of the file has been decoded so far
type Stats struct {
	Structures int64
	Plans      int64
	Files      int64
}
