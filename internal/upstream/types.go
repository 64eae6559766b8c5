// Package upstream wraps the external agency-portal REST API. Every entity
// the portal shows lives behind this API; the portal itself persists nothing
// beyond the session.
package upstream

import "encoding/json"

// Envelope is the response wrapper the agency API uses on every endpoint.
type Envelope struct {
	Success bool            `json:"success"`
	Status  int             `json:"status,omitempty"`
	Message string          `json:"message,omitempty"`
	Error   string          `json:"error,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

// Profile is the User/GetUser payload. It is untrusted input: UserRoleID is
// a pointer so a missing field reaches the normalizer as such instead of
// defaulting to zero.
type Profile struct {
	ID             string `json:"id"`
	EmployeeID     string `json:"employeeId,omitempty"`
	Email          string `json:"email"`
	DisplayName    string `json:"displayName"`
	GivenName      string `json:"givenName,omitempty"`
	Surname        string `json:"surename,omitempty"`
	UserRoleID     *int   `json:"userRoleID"`
	UserRoleName   string `json:"userRoleName,omitempty"`
	DepartmentID   int    `json:"departmentID,omitempty"`
	DepartmentName string `json:"departmentName,omitempty"`
	JobTitle       string `json:"jobTitle,omitempty"`
	AgencyID       string `json:"agencyId,omitempty"`
	ProjectIDs     []int  `json:"projectIDs,omitempty"`
}

// AccessGrant is the Agency/GetAgencyAPIAccessToken payload.
type AccessGrant struct {
	AgencyID    json.Number `json:"agencyID"`
	AccessToken string      `json:"accessToken,omitempty"`
}

// AgencyType describes the agency classification record.
type AgencyType struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
	IsActive    bool   `json:"isActive"`
}

// Agency is the Agency/GetAgencyByID payload.
type Agency struct {
	ID           json.Number `json:"id"`
	RefCode      string      `json:"refCode"`
	Name         string      `json:"name"`
	Description  string      `json:"description"`
	Email        string      `json:"email"`
	Tel          string      `json:"tel"`
	AgencyTypeID int         `json:"agencyTypeID"`
	FirstName    string      `json:"firstName"`
	LastName     string      `json:"lastName"`
	AgencyType   AgencyType  `json:"agencyType"`
	ProjectIDs   []int       `json:"projectIDs"`
	IsActive     bool        `json:"isActive"`
}

// CreateAgencyInput carries the form fields of Agency/CreateAgency.
type CreateAgencyInput struct {
	Name         string
	Email        string
	Tel          string
	FirstName    string
	LastName     string
	AgencyTypeID int
}

// CreateAgentInput carries the form fields of Agent/CreateAgent.
type CreateAgentInput struct {
	Email     string
	FirstName string
	LastName  string
	AgencyID  string
}

// Lead is forwarded verbatim to Lead/SaveLead. The upstream field casing is
// preserved from the lead capture API.
type Lead struct {
	ProjectID          int    `json:"ProjectID"`
	ContactChannelID   int    `json:"ContactChannelID"`
	ContactTypeID      int    `json:"ContactTypeID"`
	RefID              int    `json:"RefID"`
	FirstName          string `json:"Fname"`
	LastName           string `json:"Lname"`
	Tel                string `json:"Tel"`
	Email              string `json:"Email"`
	Ref                string `json:"Ref"`
	RefDate            string `json:"RefDate,omitempty"`
	FollowUpID         int    `json:"FollowUpID,omitempty"`
	UTMSource          string `json:"utm_source,omitempty"`
	UTMCampaign        string `json:"utm_campaign,omitempty"`
	UTMMedium          string `json:"utm_medium,omitempty"`
	UTMTerm            string `json:"utm_term,omitempty"`
	UTMContent         string `json:"utm_content,omitempty"`
	PriceInterest      string `json:"PriceInterest,omitempty"`
	PurchasePurpose    string `json:"PurchasePurpose,omitempty"`
	FlagPersonalAccept bool   `json:"FlagPersonalAccept"`
	FlagContactAccept  bool   `json:"FlagContactAccept"`
}
