package service

import (
	"fmt"
	"time"

	"github.com/noah-isme/coop-registration-api/internal/models"
	appErrors "github.com/noah-isme/coop-registration-api/pkg/errors"
)

const windowDateLayout = "January 2, 2006"

// CheckRegistrationWindow allows registration inside [start, end], and earlier for session teachers
// once the teacher window has opened.
func CheckRegistrationWindow(now time.Time, session *models.Session, teachesInSession bool) error {
	if now.After(session.RegistrationEnd) {
		return appErrors.Clone(appErrors.ErrRegistrationClosed,
			fmt.Sprintf("registration closed on %s", session.RegistrationEnd.Format(windowDateLayout)))
	}
	if !now.Before(session.RegistrationStart) {
		return nil
	}
	if teachesInSession && session.TeacherRegistrationStart != nil {
		if !now.Before(*session.TeacherRegistrationStart) {
			return nil
		}
		return appErrors.Clone(appErrors.ErrRegistrationClosed,
			fmt.Sprintf("teacher registration opens on %s", session.TeacherRegistrationStart.Format(windowDateLayout)))
	}
	return appErrors.Clone(appErrors.ErrRegistrationClosed,
		fmt.Sprintf("registration opens on %s", session.RegistrationStart.Format(windowDateLayout)))
}
