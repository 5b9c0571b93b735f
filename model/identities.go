// File: model/identities.go
package model

import "time"

// CallerInfo describes the identity invoking a transaction.
type CallerInfo struct {
	FullID          string `json:"fullId"`          // Full X.509 identity string
	OrganizationMSP string `json:"organizationMsp"` // MSP ID of the organization
	Alias           string `json:"alias,omitempty" metadata:",optional"`
	IsLedgerAdmin   bool   `json:"isLedgerAdmin"`
}

// IdentityInfo maps a full identity to its registered display alias.
type IdentityInfo struct {
	ObjectType      string    `json:"objectType"` // "Identity"
	FullID          string    `json:"fullId"`
	ShortName       string    `json:"shortName"` // Alias, unique across the ledger
	OrganizationMSP string    `json:"organizationMsp"`
	RegisteredAt    time.Time `json:"registeredAt"`
	LastUpdatedAt   time.Time `json:"lastUpdatedAt"`
}

// AdminRecord stores a ledger administrator allowed to issue assets and credit payments.
type AdminRecord struct {
	ObjectType      string    `json:"objectType"` // Set to the composite key object type (AdminFlag)
	FullID          string    `json:"fullId"`
	OrganizationMSP string    `json:"organizationMsp"`
	GrantedBy       string    `json:"grantedBy"` // Full ID of the admin that granted this record
	GrantedAt       time.Time `json:"grantedAt"`
}
