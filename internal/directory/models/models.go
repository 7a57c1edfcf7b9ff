// Package models defines the authoritative ERF to street-address mapping.
package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Mapping is one ERF's street address. erf_number is unique; imports upsert
// on it.
type Mapping struct {
	ID           uuid.UUID `json:"id"`
	ErfNumber    string    `json:"erf_number"`
	StreetNumber string    `json:"street_number"`
	StreetName   string    `json:"street_name"`
	Suburb       string    `json:"suburb,omitempty"`
	PostalCode   string    `json:"postal_code,omitempty"`
	FullAddress  string    `json:"full_address"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FormatAddress renders the single-line address from its parts.
func FormatAddress(streetNumber, streetName string) string {
	return strings.TrimSpace(streetNumber + " " + streetName)
}

// ParseAddress splits a single-line address back into (street_number,
// street_name). For delimiter-free pairs, ParseAddress(FormatAddress(n, s))
// returns (n, s) unchanged.
func ParseAddress(full string) (streetNumber, streetName string) {
	full = strings.TrimSpace(full)
	if full == "" {
		return "", ""
	}
	parts := strings.SplitN(full, " ", 2)
	// Street numbers start with a digit ("12", "3A"); a leading word is
	// part of the street name.
	if len(parts) == 2 && parts[0] != "" && parts[0][0] >= '0' && parts[0][0] <= '9' {
		return parts[0], strings.TrimSpace(parts[1])
	}
	return "", full
}
