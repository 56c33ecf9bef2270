// Package account models the caller identity handed to the engine by the
// identity/profile provider. The engine trusts it for authorization.
package account

import (
	"github.com/google/uuid"
)

type Role int

const (
	RoleUnknown Role = iota
	RoleCustomer
	RolePrinter
)

func (r Role) String() string {
	switch r {
	case RoleCustomer:
		return "CUSTOMER"
	case RolePrinter:
		return "PRINTER"
	default:
		return "unknown"
	}
}

// ParseRole converts the provider's role name to a Role
func ParseRole(s string) Role {
	switch s {
	case "CUSTOMER":
		return RoleCustomer
	case "PRINTER":
		return RolePrinter
	default:
		return RoleUnknown
	}
}

// Principal is the authenticated caller.
//
// UserID identifies a printer (bids reference it). CustomerProfileID is the
// customer profile that owns jobs and is only set for customers.
type Principal struct {
	UserID            uuid.UUID `json:"user_id"`
	Role              Role      `json:"role"`
	CustomerProfileID uuid.UUID `json:"customer_profile_id,omitempty"`
}

// NewCustomer builds a customer principal
func NewCustomer(userID, customerProfileID uuid.UUID) Principal {
	return Principal{UserID: userID, Role: RoleCustomer, CustomerProfileID: customerProfileID}
}

// NewPrinter builds a printer principal
func NewPrinter(userID uuid.UUID) Principal {
	return Principal{UserID: userID, Role: RolePrinter}
}

func (p Principal) IsCustomer() bool {
	return p.Role == RoleCustomer && p.CustomerProfileID != uuid.Nil
}

func (p Principal) IsPrinter() bool {
	return p.Role == RolePrinter && p.UserID != uuid.Nil
}

// Owns reports whether the principal is the customer profile owning a resource
func (p Principal) Owns(customerProfileID uuid.UUID) bool {
	return p.IsCustomer() && p.CustomerProfileID == customerProfileID
}
