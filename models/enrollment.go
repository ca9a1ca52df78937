package models

// Enrollment controls whether applications covered by a service instance
// are put under the autosleep policy automatically.
type Enrollment string

const (
	EnrollmentStandard Enrollment = "standard"
	EnrollmentForced   Enrollment = "forced"
)

func EnrollmentValues() []string {
	return []string{string(EnrollmentStandard), string(EnrollmentForced)}
}

// EnrollmentState is the per-binding enrollment status.
type EnrollmentState string

const (
	EnrollmentStateEnrolled           EnrollmentState = "enrolled"
	EnrollmentStateBackofficeEnrolled EnrollmentState = "backoffice_enrolled"
)

func EnrollmentStateValues() []string {
	return []string{string(EnrollmentStateEnrolled), string(EnrollmentStateBackofficeEnrolled)}
}
