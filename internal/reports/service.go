package reports

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Defaults are the deployment-level window settings, loaded from config.
type Defaults struct {
	LookbackDays int
	MinLagDays   int
	MaxLagDays   int
	BucketDays   int
	BaselineIOP  float64
}

type Service struct {
	repo     Repository
	defaults Defaults
	logger   zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, defaults Defaults, logger zerolog.Logger) *Service {
	if defaults.LookbackDays <= 0 {
		defaults.LookbackDays = DefaultLookbackDays
	}
	if defaults.MinLagDays <= 0 {
		defaults.MinLagDays = DefaultMinLagDays
	}
	if defaults.MaxLagDays <= 0 {
		defaults.MaxLagDays = DefaultMaxLagDays
	}
	if defaults.BucketDays <= 0 {
		defaults.BucketDays = DefaultBucketDays
	}
	if defaults.BaselineIOP <= 0 {
		defaults.BaselineIOP = DefaultBaselineIOP
	}
	return &Service{
		repo:     repo,
		defaults: defaults,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// NewQuery returns a query prefilled with the deployment defaults.
func (s *Service) NewQuery() EffectivenessQuery {
	return EffectivenessQuery{
		LookbackDays: s.defaults.LookbackDays,
		MinLagDays:   s.defaults.MinLagDays,
		MaxLagDays:   s.defaults.MaxLagDays,
		BucketDays:   s.defaults.BucketDays,
		BaselineIOP:  s.defaults.BaselineIOP,
	}
}

// Effectiveness runs the full aggregation. A patient qualifies for a
// medication only when a complete two-eye measurement exists both before
// the prescription and inside the post-treatment lag window; everyone else
// is excluded from the average rather than counted as zero.
func (s *Service) Effectiveness(ctx context.Context, q *EffectivenessQuery) (*Result, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}

	prescriptions, err := s.repo.PrescriptionsInWindow(ctx, q)
	if err != nil {
		return nil, err
	}

	byMed := map[string][]PrescriptionRecord{}
	patientSet := map[uuid.UUID]bool{}
	for _, rec := range prescriptions {
		byMed[rec.MedicationName] = append(byMed[rec.MedicationName], rec)
		patientSet[rec.PatientID] = true
	}

	patientIDs := make([]uuid.UUID, 0, len(patientSet))
	for id := range patientSet {
		patientIDs = append(patientIDs, id)
	}

	from, to := q.measurementWindow()
	assessments, err := s.repo.AssessmentsBetween(ctx, patientIDs, from, to)
	if err != nil {
		return nil, err
	}

	// only complete two-eye sessions participate
	byPatient := map[uuid.UUID][]Measurement{}
	for _, g := range assessments {
		if mean, ok := g.MeanIOP(); ok {
			byPatient[g.PatientID] = append(byPatient[g.PatientID],
				Measurement{PatientID: g.PatientID, TestDate: g.TestDate, MeanIOP: mean})
		}
	}
	for _, ms := range byPatient {
		sort.Slice(ms, func(i, j int) bool { return ms[i].TestDate.Before(ms[j].TestDate) })
	}

	result := &Result{
		Medications: make([]string, 0, len(byMed)),
		TimeRange: TimeRange{
			Start: q.StartDate.Format("2006-01-02"),
			End:   q.EndDate.Format("2006-01-02"),
		},
		IOPData:       map[string]map[string]BucketPoint{},
		Effectiveness: map[string]MedicationEffectiveness{},
	}
	for med := range byMed {
		result.Medications = append(result.Medications, med)
	}
	sort.Strings(result.Medications)

	qualifying := map[uuid.UUID]bool{}
	allImprovements := []float64{}
	for _, med := range result.Medications {
		recs := byMed[med]

		// one observation per patient, anchored at their earliest prescription
		firstRx := map[uuid.UUID]time.Time{}
		for _, rec := range recs {
			if t, ok := firstRx[rec.PatientID]; !ok || rec.PrescribedAt.Before(t) {
				firstRx[rec.PatientID] = rec.PrescribedAt
			}
		}

		improvements := []float64{}
		for pid, rxAt := range firstRx {
			before, okBefore := latestIn(byPatient[pid],
				rxAt.AddDate(0, 0, -q.LookbackDays), rxAt)
			after, okAfter := earliestIn(byPatient[pid],
				rxAt.AddDate(0, 0, q.MinLagDays), rxAt.AddDate(0, 0, q.MaxLagDays))
			if !okBefore || !okAfter || before <= 0 {
				continue
			}
			improvements = append(improvements, (before-after)/before*100)
			qualifying[pid] = true
		}

		eff := MedicationEffectiveness{
			PrescriptionCount: len(recs),
			PatientCount:      len(improvements),
		}
		if len(improvements) > 0 {
			eff.AverageImprovement = round1(mean(improvements))
		}
		result.Effectiveness[med] = eff
		result.IOPData[med] = s.trendBuckets(q, firstRx, byPatient)
		allImprovements = append(allImprovements, improvements...)
	}

	result.Summary = Summary{
		TotalMedications:        len(result.Medications),
		TotalQualifyingPatients: len(qualifying),
	}
	if len(allImprovements) > 0 {
		result.Summary.AvgImprovement = round1(mean(allImprovements))
	}
	return result, nil
}

// trendBuckets builds the per-medication series. Buckets with no qualifying
// measurement carry the configured baseline, explicitly labeled, so charts
// stay continuous without pretending the value was observed.
func (s *Service) trendBuckets(q *EffectivenessQuery, firstRx map[uuid.UUID]time.Time, byPatient map[uuid.UUID][]Measurement) map[string]BucketPoint {
	buckets := map[string]BucketPoint{}
	for bucketStart := q.StartDate; !bucketStart.After(q.EndDate); bucketStart = bucketStart.AddDate(0, 0, q.BucketDays) {
		bucketEnd := bucketStart.AddDate(0, 0, q.BucketDays)
		label := bucketStart.Format("2006-01-02")

		values := []float64{}
		for pid, rxAt := range firstRx {
			if rxAt.After(bucketStart) {
				continue // not yet on treatment at bucket start
			}
			for _, m := range byPatient[pid] {
				if !m.TestDate.Before(bucketStart) && m.TestDate.Before(bucketEnd) {
					values = append(values, m.MeanIOP)
				}
			}
		}

		if len(values) == 0 {
			buckets[label] = BucketPoint{AverageIOP: q.BaselineIOP, Baseline: true}
			continue
		}
		buckets[label] = BucketPoint{
			AverageIOP:       round1(mean(values)),
			MeasurementCount: len(values),
		}
	}
	return buckets
}

var progressRanges = map[string]int{
	"3m": 90, "6m": 180, "1y": 365, "all": 0,
}

// PatientProgress assembles the per-patient dashboard series from stored
// data only. Sections without data say so instead of inventing values.
func (s *Service) PatientProgress(ctx context.Context, patientID uuid.UUID, timeRange string) (*PatientProgress, error) {
	days, ok := progressRanges[timeRange]
	if timeRange == "" {
		days, ok = progressRanges["6m"], true
	}
	if !ok {
		return nil, &ValidationError{msg: "invalid time_range: expected 3m, 6m, 1y or all"}
	}

	now := s.now()
	from := time.Time{}
	if days > 0 {
		from = now.AddDate(0, 0, -days)
	}

	assessments, err := s.repo.PatientAssessments(ctx, patientID, from)
	if err != nil {
		return nil, err
	}
	acuity, err := s.repo.PatientAcuityTests(ctx, patientID, from)
	if err != nil {
		return nil, err
	}
	prescriptions, medNames, err := s.repo.PatientPrescriptions(ctx, patientID)
	if err != nil {
		return nil, err
	}

	progress := &PatientProgress{
		PatientID:     patientID,
		TimeRange:     TimeRange{End: now.Format("2006-01-02")},
		IOP:           ProgressSeries{Points: []ProgressPoint{}},
		VisualAcuity:  ProgressSeries{Points: []ProgressPoint{}},
		Prescriptions: []ProgressPrescription{},
	}
	if days > 0 {
		progress.TimeRange.Start = from.Format("2006-01-02")
	}

	for _, g := range assessments {
		if iop, ok := g.MeanIOP(); ok {
			progress.IOP.Points = append(progress.IOP.Points, ProgressPoint{
				Date:  g.TestDate.Format("2006-01-02"),
				Value: round1(iop),
			})
		}
	}
	progress.IOP.InsufficientData = len(progress.IOP.Points) == 0

	for _, v := range acuity {
		var sum float64
		var n int
		if v.RightEyeDistance != nil {
			sum += *v.RightEyeDistance
			n++
		}
		if v.LeftEyeDistance != nil {
			sum += *v.LeftEyeDistance
			n++
		}
		if n == 0 {
			continue
		}
		progress.VisualAcuity.Points = append(progress.VisualAcuity.Points, ProgressPoint{
			Date:  v.TestDate.Format("2006-01-02"),
			Value: math.Round(sum/float64(n)*100) / 100,
		})
	}
	progress.VisualAcuity.InsufficientData = len(progress.VisualAcuity.Points) == 0

	for _, p := range prescriptions {
		progress.Prescriptions = append(progress.Prescriptions, ProgressPrescription{
			MedicationName: medNames[p.MedicationID],
			Dosage:         p.Dosage,
			Frequency:      p.Frequency,
			Status:         p.Status,
			PrescribedAt:   p.PrescribedAt.Format("2006-01-02"),
		})
	}
	return progress, nil
}

// latestIn returns the newest measurement with a test date in [from, to].
func latestIn(ms []Measurement, from, to time.Time) (float64, bool) {
	var value float64
	found := false
	for _, m := range ms {
		if m.TestDate.Before(from) || m.TestDate.After(to) {
			continue
		}
		value = m.MeanIOP
		found = true
	}
	return value, found
}

// earliestIn returns the oldest measurement with a test date in [from, to].
func earliestIn(ms []Measurement, from, to time.Time) (float64, bool) {
	for _, m := range ms {
		if m.TestDate.Before(from) || m.TestDate.After(to) {
			continue
		}
		return m.MeanIOP, true
	}
	return 0, false
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// round1 rounds to one decimal. Applied only at the output boundary;
// intermediate math keeps full precision.
func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
