package patient

import (
	"time"

	"github.com/google/uuid"
)

const (
	GenderMale   = "male"
	GenderFemale = "female"
	GenderOther  = "other"
)

var ValidGenders = map[string]bool{
	GenderMale: true, GenderFemale: true, GenderOther: true,
}

// Patient is a registered patient record. PatientNumber is the human-facing
// hospital number printed on documents; ID is the internal key.
type Patient struct {
	ID            uuid.UUID `db:"id" json:"id"`
	PatientNumber string    `db:"patient_number" json:"patient_number"`
	FirstName     string    `db:"first_name" json:"first_name"`
	LastName      string    `db:"last_name" json:"last_name"`
	DateOfBirth   time.Time `db:"date_of_birth" json:"date_of_birth"`
	Gender        string    `db:"gender" json:"gender"`
	Phone         string    `db:"phone" json:"phone"`
	Email         string    `db:"email" json:"email"`
	Address       string    `db:"address" json:"address"`
	Active        bool      `db:"active" json:"active"`
	RegisteredAt  time.Time `db:"registered_at" json:"registered_at"`
	UpdatedAt     time.Time `db:"updated_at" json:"updated_at"`
}

// Age returns whole years at the reference time.
func (p *Patient) Age(at time.Time) int {
	years := at.Year() - p.DateOfBirth.Year()
	anniversary := p.DateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}

func (p *Patient) FullName() string {
	return p.FirstName + " " + p.LastName
}

// Filter narrows patient listings.
type Filter struct {
	Search     string // matches name or patient number
	Gender     string
	ActiveOnly bool
}
