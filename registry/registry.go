// Package registry looks up event registrants and decides which
// certificate template, if any, each of them is entitled to.
package registry

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when no registrant matches.
	ErrNotFound = errors.New("registry: registrant not found")

	// ErrNoAttendance is returned by TemplateFor when the registrant
	// attended neither day.
	ErrNoAttendance = errors.New("registry: no attendance recorded")
)

// Registrant is a row of the registrants table.
type Registrant struct {
	ID             int64     `json:"id"`
	Name           string    `json:"name"`
	Designation    string    `json:"designation"`
	Organization   string    `json:"organization"`
	Email          string    `json:"email"`
	Mobile         string    `json:"mobile"`
	City           string    `json:"city"`
	Mode           string    `json:"mode"`
	AttendanceDay1 bool      `json:"attendanceDay1"`
	AttendanceDay2 bool      `json:"attendanceDay2"`
	RegisteredAt   time.Time `json:"registeredAt"`
}

// Store finds registrants.
type Store interface {
	FindByID(ctx context.Context, id int64) (*Registrant, error)
	// FindByIdentifier returns every registrant whose id, mobile number or
	// email equals identifier. No match is ErrNotFound.
	FindByIdentifier(ctx context.Context, identifier string) ([]Registrant, error)
}

// Certificate template file names, relative to the template directory.
const (
	TemplateBothDays = "0.pdf"
	TemplateDay1     = "1.pdf"
	TemplateDay2     = "2.pdf"
)

// TemplateFor returns the template file for r's attendance.
func TemplateFor(r *Registrant) (string, error) {
	switch {
	case r.AttendanceDay1 && r.AttendanceDay2:
		return TemplateBothDays, nil
	case r.AttendanceDay1:
		return TemplateDay1, nil
	case r.AttendanceDay2:
		return TemplateDay2, nil
	}
	return "", ErrNoAttendance
}
