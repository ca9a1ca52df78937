package models

// ApplicationBinding links a service instance to the application it puts
// to sleep. BindingId is the primary key; saving an existing id overwrites
// the stored record.
type ApplicationBinding struct {
	BindingId         string  `json:"binding_id"`
	ServiceInstanceId string  `json:"service_instance_id"`
	RouteServiceUrl   *string `json:"route_service_url,omitempty"`
	SyslogDrainUrl    *string `json:"syslog_drain_url,omitempty"`
	AppGuid           string  `json:"app_guid"`
}
