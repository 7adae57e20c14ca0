package timeline

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/clinical"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/medication"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/domain/scheduling"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

var base = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func record(date string, created time.Time) *clinical.MedicalRecord {
	return &clinical.MedicalRecord{VisitDate: calendar.MustParse(date), CreatedAt: created}
}

func prescription(date string, created time.Time) *medication.Prescription {
	return &medication.Prescription{Date: calendar.MustParse(date), CreatedAt: created}
}

func appointment(date string, created time.Time) *scheduling.Appointment {
	return &scheduling.Appointment{Date: calendar.MustParse(date), CreatedAt: created}
}

func kinds(events []Event) []string {
	out := make([]string, len(events))
	for i, e := range events {
		out[i] = e.EventDate.String() + " " + string(e.Kind)
	}
	return out
}

func TestAggregate_OrderAndTieBreak(t *testing.T) {
	records := []*clinical.MedicalRecord{
		record("2024-01-10", base.Add(time.Hour)),
		record("2024-02-01", base),
	}
	prescriptions := []*medication.Prescription{prescription("2024-01-15", base)}
	// Same date as the first record but created earlier.
	appointments := []*scheduling.Appointment{appointment("2024-01-10", base.Add(-24*time.Hour))}

	got := Aggregate(records, prescriptions, appointments)
	assert.Equal(t, []string{
		"2024-02-01 medical_record",
		"2024-01-15 prescription",
		"2024-01-10 medical_record",
		"2024-01-10 appointment",
	}, kinds(got))

	assert.Same(t, records[1], got[0].MedicalRecord)
	assert.Same(t, prescriptions[0], got[1].Prescription)
	assert.Same(t, appointments[0], got[3].Appointment)
	assert.Nil(t, got[3].MedicalRecord)
}

func TestAggregate_NoDeduplication(t *testing.T) {
	r := record("2024-01-10", base)
	got := Aggregate([]*clinical.MedicalRecord{r, r}, nil, []*scheduling.Appointment{appointment("2024-01-10", base)})
	assert.Len(t, got, 3)
}

func TestAggregate_IdenticalKeysKeepInputOrder(t *testing.T) {
	got := Aggregate(
		[]*clinical.MedicalRecord{record("2024-01-10", base)},
		[]*medication.Prescription{prescription("2024-01-10", base)},
		[]*scheduling.Appointment{appointment("2024-01-10", base)},
	)
	assert.Equal(t, []Kind{KindMedicalRecord, KindPrescription, KindAppointment},
		[]Kind{got[0].Kind, got[1].Kind, got[2].Kind})
}

func TestAggregate_Empty(t *testing.T) {
	got := Aggregate(nil, nil, nil)
	require.NotNil(t, got)
	assert.Empty(t, got)
}

func TestElapsedSince(t *testing.T) {
	cases := []struct {
		from, now string
		want      Elapsed
	}{
		{"2024-01-10", "2024-01-10", Elapsed{0, UnitDays}},
		{"2024-01-10", "2024-01-25", Elapsed{15, UnitDays}},
		{"2024-01-31", "2024-02-29", Elapsed{29, UnitDays}},
		{"2024-01-10", "2024-02-10", Elapsed{1, UnitMonths}},
		{"2024-01-10", "2024-12-09", Elapsed{10, UnitMonths}},
		{"2024-01-10", "2025-01-10", Elapsed{1, UnitYears}},
		{"2020-06-15", "2025-06-14", Elapsed{4, UnitYears}},
		{"2025-06-10", "2025-06-01", Elapsed{0, UnitDays}},
	}
	for _, tc := range cases {
		t.Run(tc.from+"_"+tc.now, func(t *testing.T) {
			got := ElapsedSince(calendar.MustParse(tc.from), calendar.MustParse(tc.now))
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestElapsed_String(t *testing.T) {
	assert.Equal(t, "1 year", Elapsed{1, UnitYears}.String())
	assert.Equal(t, "3 months", Elapsed{3, UnitMonths}.String())
	assert.Equal(t, "0 days", Elapsed{0, UnitDays}.String())
}

func TestComputeStats(t *testing.T) {
	records := []*clinical.MedicalRecord{
		record("2024-02-01", base),
		record("2024-01-10", base),
	}
	// Earlier prescriptions and appointments do not move the first visit.
	prescriptions := []*medication.Prescription{prescription("2023-12-01", base)}
	appointments := []*scheduling.Appointment{
		appointment("2023-11-01", base),
		appointment("2024-03-01", base),
	}

	st := ComputeStats(records, prescriptions, appointments, calendar.MustParse("2024-04-15"))
	assert.Equal(t, 2, st.MedicalRecords)
	assert.Equal(t, 1, st.Prescriptions)
	assert.Equal(t, 2, st.Appointments)
	require.NotNil(t, st.FirstVisit)
	assert.Equal(t, "2024-01-10", st.FirstVisit.String())
	require.NotNil(t, st.SinceFirstVisit)
	assert.Equal(t, Elapsed{3, UnitMonths}, *st.SinceFirstVisit)
}

func TestComputeStats_NoRecords(t *testing.T) {
	st := ComputeStats(nil, nil, []*scheduling.Appointment{appointment("2024-01-10", base)}, calendar.MustParse("2024-04-15"))
	assert.Equal(t, 1, st.Appointments)
	assert.Nil(t, st.FirstVisit)
	assert.Nil(t, st.SinceFirstVisit)
}
