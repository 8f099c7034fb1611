package enums

import "fmt"

// RequestStatus maps to the request_status enum in Postgres.
type RequestStatus string

const (
	RequestStatusPending     RequestStatus = "pending"
	RequestStatusQuestion    RequestStatus = "question"
	RequestStatusApproved    RequestStatus = "approved"
	RequestStatusNotApproved RequestStatus = "not_approved"
	RequestStatusSent        RequestStatus = "sent"
	RequestStatusInvalid     RequestStatus = "invalid"
)

var validRequestStatuses = []RequestStatus{
	RequestStatusPending,
	RequestStatusQuestion,
	RequestStatusApproved,
	RequestStatusNotApproved,
	RequestStatusSent,
	RequestStatusInvalid,
}

// String implements fmt.Stringer.
func (r RequestStatus) String() string {
	return string(r)
}

// IsValid reports whether the value matches the canonical request_status enum.
func (r RequestStatus) IsValid() bool {
	for _, candidate := range validRequestStatuses {
		if candidate == r {
			return true
		}
	}
	return false
}

// ParseRequestStatus converts raw input into RequestStatus.
func ParseRequestStatus(value string) (RequestStatus, error) {
	for _, candidate := range validRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid request status %q", value)
}

// IsFinal reports whether the status closes the request. date_closed and
// days_open are stamped on the first transition into a final status.
func (r RequestStatus) IsFinal() bool {
	switch r {
	case RequestStatusApproved, RequestStatusNotApproved, RequestStatusSent, RequestStatusInvalid:
		return true
	}
	return false
}

// IsOpen reports whether the request still awaits a decision.
func (r RequestStatus) IsOpen() bool {
	return r == RequestStatusPending || r == RequestStatusQuestion
}
