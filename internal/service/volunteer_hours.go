package service

import "github.com/noah-isme/coop-registration-api/internal/models"

// ComputeVolunteerHours applies the co-op volunteer-hour rule. Preflight and commit both call it.
//
// Required hours are the distinct periods the batch registers children into, lunch excluded.
// Fulfilled hours are one per batch assignment in a real period, one per non_period job, plus one per
// distinct non-lunch period in which the guardian already teaches an approved class.
func ComputeVolunteerHours(registrationPeriods, assignmentPeriods, teachingPeriods []models.Period) models.VolunteerHours {
	required := make(map[models.Period]struct{})
	for _, period := range registrationPeriods {
		if period.CountsTowardHours() {
			required[period] = struct{}{}
		}
	}

	var periodAssignments, jobAssignments int
	for _, period := range assignmentPeriods {
		if period == models.PeriodNonPeriod {
			jobAssignments++
			continue
		}
		periodAssignments++
	}

	taught := make(map[models.Period]struct{})
	for _, period := range teachingPeriods {
		if period.CountsTowardHours() {
			taught[period] = struct{}{}
		}
	}

	hours := models.VolunteerHours{
		RequiredHours:  len(required),
		FulfilledHours: periodAssignments + jobAssignments + len(taught),
	}
	hours.Met = hours.FulfilledHours >= hours.RequiredHours
	return hours
}
