package audit

import (
	"time"

	"github.com/google/uuid"
)

// Action kinds recorded in the ledger. The set is closed: writes carrying
// anything else are rejected.
const (
	ActionCreate       = "create"
	ActionRead         = "read"
	ActionUpdate       = "update"
	ActionDelete       = "delete"
	ActionLogin        = "login"
	ActionLogout       = "logout"
	ActionExport       = "export"
	ActionPrint        = "print"
	ActionAccessDenied = "access_denied"
)

var ValidActions = map[string]bool{
	ActionCreate: true, ActionRead: true, ActionUpdate: true, ActionDelete: true,
	ActionLogin: true, ActionLogout: true, ActionExport: true, ActionPrint: true,
	ActionAccessDenied: true,
}

const (
	SeverityLow      = "low"
	SeverityMedium   = "medium"
	SeverityHigh     = "high"
	SeverityCritical = "critical"
)

var ValidSeverities = map[string]bool{
	SeverityLow: true, SeverityMedium: true, SeverityHigh: true, SeverityCritical: true,
}

// Entry is one immutable record of a significant system action. Once written
// it is never mutated or deleted; the repositories expose no update path.
type Entry struct {
	ID            uuid.UUID      `db:"id" json:"id"`
	ActorID       *uuid.UUID     `db:"actor_id" json:"actor_id,omitempty"` // nil for system or deleted principals
	ActorName     string         `db:"actor_name" json:"actor_name"`
	SessionID     string         `db:"session_id" json:"session_id"`
	Action        string         `db:"action" json:"action"`
	ResourceType  string         `db:"resource_type" json:"resource_type"`
	ResourceID    string         `db:"resource_id" json:"resource_id"`
	OldValues     map[string]any `db:"old_values" json:"old_values,omitempty"`
	NewValues     map[string]any `db:"new_values" json:"new_values,omitempty"`
	IPAddress     string         `db:"ip_address" json:"ip_address"`
	UserAgent     string         `db:"user_agent" json:"user_agent"`
	RequestMethod string         `db:"request_method" json:"request_method"`
	RequestPath   string         `db:"request_path" json:"request_path"`
	Description   string         `db:"description" json:"description"`
	Severity      string         `db:"severity" json:"severity"`
	GDPRRelevant  bool           `db:"gdpr_relevant" json:"gdpr_relevant"`
	HIPAARelevant bool           `db:"hipaa_relevant" json:"hipaa_relevant"`
	Success       bool           `db:"success" json:"success"`
	RecordedAt    time.Time      `db:"recorded_at" json:"recorded_at"`
}

// EntryFilter narrows ledger queries. Zero values mean "any".
type EntryFilter struct {
	ActorID      *uuid.UUID
	Action       string
	Severity     string
	ResourceType string
	From         *time.Time
	To           *time.Time
}

// Summary aggregates the ledger content matching a filter.
type Summary struct {
	TotalEvents        int `json:"total_events"`
	EventsLast24h      int `json:"events_last_24h"`
	FailedLogins       int `json:"failed_logins"`
	DataExports        int `json:"data_exports"`
	HighSeverityEvents int `json:"high_severity_events"`
	CriticalEvents     int `json:"critical_events"`
}

// Patient access kinds.
const (
	AccessViewProfile        = "view_profile"
	AccessViewMedicalHistory = "view_medical_history"
	AccessViewPrescriptions  = "view_prescriptions"
	AccessViewTestResults    = "view_test_results"
	AccessEditProfile        = "edit_profile"
	AccessAddConsultation    = "add_consultation"
	AccessAddPrescription    = "add_prescription"
	AccessAddTestResult      = "add_test_result"
	AccessExportData         = "export_data"
	AccessPrintReport        = "print_report"
)

var ValidAccessTypes = map[string]bool{
	AccessViewProfile: true, AccessViewMedicalHistory: true,
	AccessViewPrescriptions: true, AccessViewTestResults: true,
	AccessEditProfile: true, AccessAddConsultation: true,
	AccessAddPrescription: true, AccessAddTestResult: true,
	AccessExportData: true, AccessPrintReport: true,
}

// PatientAccess records one touch of protected patient data. The external
// access layer must produce exactly one entry before data leaves the system
// boundary; this package only stores and serves them.
type PatientAccess struct {
	ID                 uuid.UUID `db:"id" json:"id"`
	PatientID          uuid.UUID `db:"patient_id" json:"patient_id"`
	AccessedByID       uuid.UUID `db:"accessed_by_id" json:"accessed_by_id"`
	AccessType         string    `db:"access_type" json:"access_type"`
	DataAccessed       string    `db:"data_accessed" json:"data_accessed"`
	Reason             string    `db:"reason" json:"reason"`
	IPAddress          string    `db:"ip_address" json:"ip_address"`
	SessionID          string    `db:"session_id" json:"session_id"`
	UserAgent          string    `db:"user_agent" json:"user_agent"`
	DeviceSummary      string    `db:"device_summary" json:"device_summary"`
	LegitimateInterest bool      `db:"legitimate_interest" json:"legitimate_interest"`
	PatientConsent     bool      `db:"patient_consent" json:"patient_consent"`
	AccessedAt         time.Time `db:"accessed_at" json:"accessed_at"`
	SessionDurationSec *int      `db:"session_duration_seconds" json:"session_duration_seconds,omitempty"`
}

// PatientAccessFilter narrows patient access queries.
type PatientAccessFilter struct {
	PatientID    *uuid.UUID
	AccessedByID *uuid.UUID
	AccessType   string
	From         *time.Time
	To           *time.Time
}

// Medication action kinds.
const (
	MedActionPrescribed      = "prescribed"
	MedActionAdministered    = "administered"
	MedActionDispensed       = "dispensed"
	MedActionDiscontinued    = "discontinued"
	MedActionModified        = "modified"
	MedActionAdverseReaction = "adverse_reaction"
	MedActionAllergyRecorded = "allergy_recorded"
	MedActionStockUpdated    = "stock_updated"
)

var ValidMedicationActions = map[string]bool{
	MedActionPrescribed: true, MedActionAdministered: true, MedActionDispensed: true,
	MedActionDiscontinued: true, MedActionModified: true, MedActionAdverseReaction: true,
	MedActionAllergyRecorded: true, MedActionStockUpdated: true,
}

// MedicationAction records one drug-safety-relevant event. The safety-check
// booleans are advisory: the ledger stores them as reported and the
// unverified-prescriptions report flags entries where they are false.
type MedicationAction struct {
	ID                       uuid.UUID  `db:"id" json:"id"`
	PatientID                uuid.UUID  `db:"patient_id" json:"patient_id"`
	MedicationID             uuid.UUID  `db:"medication_id" json:"medication_id"`
	PrescriptionID           *uuid.UUID `db:"prescription_id" json:"prescription_id,omitempty"`
	Action                   string     `db:"action" json:"action"`
	PerformedByID            uuid.UUID  `db:"performed_by_id" json:"performed_by_id"`
	Dosage                   string     `db:"dosage" json:"dosage"`
	Frequency                string     `db:"frequency" json:"frequency"`
	Duration                 string     `db:"duration" json:"duration"`
	InteractionsChecked      bool       `db:"interactions_checked" json:"interactions_checked"`
	AllergiesChecked         bool       `db:"allergies_checked" json:"allergies_checked"`
	ContraindicationsReviewed bool      `db:"contraindications_reviewed" json:"contraindications_reviewed"`
	Indication               string     `db:"indication" json:"indication"`
	ClinicalNotes            string     `db:"clinical_notes" json:"clinical_notes"`
	VerifiedByID             *uuid.UUID `db:"verified_by_id" json:"verified_by_id,omitempty"`
	VerifiedAt               *time.Time `db:"verified_at" json:"verified_at,omitempty"`
	RecordedAt               time.Time  `db:"recorded_at" json:"recorded_at"`
}

// MedicationActionFilter narrows medication audit queries.
type MedicationActionFilter struct {
	PatientID    *uuid.UUID
	MedicationID *uuid.UUID
	Action       string
	From         *time.Time
	To           *time.Time
}
