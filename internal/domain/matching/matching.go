// Package matching decides which printers may see and bid on a job.
package matching

import (
	"strings"

	"github.com/printexchange/print-exchange-backend/internal/domain/job"
	"github.com/printexchange/print-exchange-backend/internal/domain/printer"
)

// Matches reports whether the printer's profile can serve the job.
// A profile whose capabilities cannot be parsed never matches.
func Matches(j *job.Job, p *printer.Profile) bool {
	if j == nil || p == nil {
		return false
	}
	caps, err := p.ParseCapabilities()
	if err != nil {
		return false
	}
	return MatchesCapabilities(j, caps)
}

// MatchesCapabilities applies the rules to already-parsed capabilities
func MatchesCapabilities(j *job.Job, caps printer.Capabilities) bool {
	if !caps.Supports(j.ProductType) {
		return false
	}
	if !caps.AcceptsQuantity(j.Quantity) {
		return false
	}
	return servesLocation(j.DeliveryLocation, caps.ServiceAreas)
}

// servesLocation skips geography unless both sides declare something
func servesLocation(location string, areas []string) bool {
	if location == "" || len(areas) == 0 {
		return true
	}
	loc := strings.ToLower(location)
	for _, area := range areas {
		a := strings.ToLower(area)
		if strings.Contains(loc, a) || strings.Contains(a, loc) {
			return true
		}
	}
	return false
}

// Filter keeps the jobs the profile matches, preserving order. The profile is
// parsed once.
func Filter(jobs []*job.Job, p *printer.Profile) []*job.Job {
	if p == nil {
		return nil
	}
	caps, err := p.ParseCapabilities()
	if err != nil {
		return []*job.Job{}
	}
	out := make([]*job.Job, 0, len(jobs))
	for _, j := range jobs {
		if MatchesCapabilities(j, caps) {
			out = append(out, j)
		}
	}
	return out
}
