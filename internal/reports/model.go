package reports

import (
	"time"

	"github.com/google/uuid"
)

// PrescriptionRecord is the slice of a prescription the aggregator reads.
type PrescriptionRecord struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	MedicationID   uuid.UUID
	MedicationName string
	PrescribedAt   time.Time
}

// Measurement is one qualifying IOP session: both eyes present, already
// reduced to the two-eye mean.
type Measurement struct {
	PatientID uuid.UUID
	TestDate  time.Time
	MeanIOP   float64
}

// BucketPoint is one point of the per-medication trend series.
type BucketPoint struct {
	AverageIOP       float64 `json:"averageIOP"`
	Baseline         bool    `json:"baseline"`
	MeasurementCount int     `json:"measurementCount"`
}

// MedicationEffectiveness summarizes one medication over the query window.
// A medication with no qualifying patients reports zero improvement with
// PatientCount 0, which is distinguishable from a measured zero.
type MedicationEffectiveness struct {
	AverageImprovement float64 `json:"averageImprovement"`
	PatientCount       int     `json:"patientCount"`
	PrescriptionCount  int     `json:"prescriptionCount"`
}

type TimeRange struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

type Summary struct {
	TotalMedications        int     `json:"totalMedications"`
	TotalQualifyingPatients int     `json:"totalQualifyingPatients"`
	AvgImprovement          float64 `json:"avgImprovement"`
}

// Result is the full effectiveness report. IOPData is keyed by medication
// name, then by bucket start date (YYYY-MM-DD).
type Result struct {
	Medications   []string                           `json:"medications"`
	TimeRange     TimeRange                          `json:"timeRange"`
	IOPData       map[string]map[string]BucketPoint  `json:"iopData"`
	Effectiveness map[string]MedicationEffectiveness `json:"effectiveness"`
	Summary       Summary                            `json:"summary"`
}

// EmptyResult is the zero-shaped payload returned alongside errors so
// clients always see the same structure.
func EmptyResult() *Result {
	return &Result{
		Medications:   []string{},
		IOPData:       map[string]map[string]BucketPoint{},
		Effectiveness: map[string]MedicationEffectiveness{},
	}
}

// Patient progress report types.

type ProgressPoint struct {
	Date  string  `json:"date"`
	Value float64 `json:"value"`
}

type ProgressSeries struct {
	Points           []ProgressPoint `json:"points"`
	InsufficientData bool            `json:"insufficientData"`
}

type ProgressPrescription struct {
	MedicationName string `json:"medication_name"`
	Dosage         string `json:"dosage"`
	Frequency      string `json:"frequency"`
	Status         string `json:"status"`
	PrescribedAt   string `json:"prescribed_at"`
}

type PatientProgress struct {
	PatientID     uuid.UUID              `json:"patient_id"`
	TimeRange     TimeRange              `json:"timeRange"`
	IOP           ProgressSeries         `json:"iop"`
	VisualAcuity  ProgressSeries         `json:"visualAcuity"`
	Prescriptions []ProgressPrescription `json:"prescriptions"`
}
