package models

import "time"

// ServiceInstance holds the autosleep policy attached to a provisioned
// service instance. The policy fields are produced by the parameter
// readers in api/parameters.
type ServiceInstance struct {
	InstanceId                string        `json:"instance_id"`
	ServiceId                 string        `json:"service_id"`
	PlanId                    string        `json:"plan_id"`
	OrgGuid                   string        `json:"org_guid"`
	SpaceGuid                 string        `json:"space_guid"`
	IdleDuration              time.Duration `json:"idle_duration"`
	AutoEnrollment            Enrollment    `json:"auto_enrollment"`
	ExcludeFromAutoEnrollment string        `json:"exclude_from_auto_enrollment"`
	Secret                    string        `json:"secret"`
	IgnoreRouteServiceError   bool          `json:"ignore_route_service_error"`
}
