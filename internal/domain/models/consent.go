// internal/domain/models/consent.go
package models

// ConsentStatus tracks whether a student's real name may be shown publicly.
type ConsentStatus string

const (
	ConsentNotConsented    ConsentStatus = "not_consented"
	ConsentPendingGuardian ConsentStatus = "pending_guardian_approval"
	ConsentConsented       ConsentStatus = "consented"
)

func (c ConsentStatus) Label() string {
	switch c {
	case ConsentPendingGuardian:
		return "Pending Guardian Approval"
	case ConsentConsented:
		return "Consented"
	default:
		return "Not Consented"
	}
}

// Normalize maps the zero value to ConsentNotConsented.
func (c ConsentStatus) Normalize() ConsentStatus {
	switch c {
	case ConsentPendingGuardian, ConsentConsented:
		return c
	default:
		return ConsentNotConsented
	}
}
