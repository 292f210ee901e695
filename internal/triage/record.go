package triage

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrTriageNotFound = errors.New("triage not found")
	ErrInvalidTriage  = errors.New("invalid triage")
	ErrNotInClinic    = errors.New("triage requires a waiting or in-progress booking")
)

type Record struct {
	BookingID      uuid.UUID        `json:"booking_id"`
	ChiefComplaint string           `json:"chief_complaint"`
	Notes          string           `json:"notes"`
	WeightKg       *decimal.Decimal `json:"weight_kg,omitempty"`
	HeightCm       *int             `json:"height_cm,omitempty"`
	Systolic       *int             `json:"systolic,omitempty"`
	Diastolic      *int             `json:"diastolic,omitempty"`
	BMI            *decimal.Decimal `json:"bmi,omitempty"`
	BMIClass       string           `json:"bmi_class,omitempty"`
	ObesityGrade   string           `json:"obesity_grade,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
	UpdatedAt      time.Time        `json:"updated_at"`
}

type Input struct {
	ChiefComplaint string           `json:"chief_complaint"`
	Notes          string           `json:"notes"`
	WeightKg       *decimal.Decimal `json:"weight_kg"`
	HeightCm       *int             `json:"height_cm"`
	Systolic       *int             `json:"systolic"`
	Diastolic      *int             `json:"diastolic"`
}

func (in Input) Validate() error {
	if in.WeightKg != nil && !in.WeightKg.IsPositive() {
		return fmt.Errorf("%w: weight must be positive", ErrInvalidTriage)
	}
	if in.HeightCm != nil && *in.HeightCm <= 0 {
		return fmt.Errorf("%w: height must be positive", ErrInvalidTriage)
	}
	if in.Systolic != nil && *in.Systolic <= 0 {
		return fmt.Errorf("%w: systolic must be positive", ErrInvalidTriage)
	}
	if in.Diastolic != nil && *in.Diastolic <= 0 {
		return fmt.Errorf("%w: diastolic must be positive", ErrInvalidTriage)
	}
	if in.Systolic != nil && in.Diastolic != nil && *in.Diastolic >= *in.Systolic {
		return fmt.Errorf("%w: diastolic must be below systolic", ErrInvalidTriage)
	}
	return nil
}

// BMI classes.
const (
	ClassUnderweight = "underweight"
	ClassNormal      = "normal"
	ClassOverweight  = "overweight"
	ClassObesityI    = "obesity_i"
	ClassObesityII   = "obesity_ii"
	ClassObesityIII  = "obesity_iii"
)

// Obesity grades.
const (
	GradeNone = "none"
	GradeI    = "I"
	GradeII   = "II"
	GradeIII  = "III"
)

var (
	bmi185 = decimal.RequireFromString("18.5")
	bmi25  = decimal.NewFromInt(25)
	bmi30  = decimal.NewFromInt(30)
	bmi35  = decimal.NewFromInt(35)
	bmi40  = decimal.NewFromInt(40)
)

// ComputeBMI returns kg/m² rounded half-up to two places.
func ComputeBMI(weightKg decimal.Decimal, heightCm int) decimal.Decimal {
	m := decimal.NewFromInt(int64(heightCm)).Div(decimal.NewFromInt(100))
	return weightKg.Div(m.Mul(m)).Round(2)
}

func Classify(bmi decimal.Decimal) (class, grade string) {
	switch {
	case bmi.LessThan(bmi185):
		return ClassUnderweight, GradeNone
	case bmi.LessThan(bmi25):
		return ClassNormal, GradeNone
	case bmi.LessThan(bmi30):
		return ClassOverweight, GradeNone
	case bmi.LessThan(bmi35):
		return ClassObesityI, GradeI
	case bmi.LessThan(bmi40):
		return ClassObesityII, GradeII
	default:
		return ClassObesityIII, GradeIII
	}
}

// Build turns an input into a record with the derived BMI fields filled in.
// BMI stays empty unless both weight and height are known.
func Build(bookingID uuid.UUID, in Input) Record {
	r := Record{
		BookingID:      bookingID,
		ChiefComplaint: in.ChiefComplaint,
		Notes:          in.Notes,
		WeightKg:       in.WeightKg,
		HeightCm:       in.HeightCm,
		Systolic:       in.Systolic,
		Diastolic:      in.Diastolic,
	}
	if in.WeightKg != nil && in.HeightCm != nil {
		bmi := ComputeBMI(*in.WeightKg, *in.HeightCm)
		r.BMI = &bmi
		r.BMIClass, r.ObesityGrade = Classify(bmi)
	}
	return r
}
