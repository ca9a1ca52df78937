package models

type BrokerCommonRequestBody struct {
	ServiceID string `json:"service_id"`
	PlanID    string `json:"plan_id"`
}

type InstanceCreationRequestBody struct {
	BrokerCommonRequestBody
	OrgGUID    string                 `json:"organization_guid"`
	SpaceGUID  string                 `json:"space_guid"`
	Parameters map[string]interface{} `json:"parameters"`
}

type InstanceUpdateRequestBody struct {
	BrokerCommonRequestBody
	Parameters map[string]interface{} `json:"parameters"`
}

type BindingRequestBody struct {
	BrokerCommonRequestBody
	AppGUID    string                 `json:"app_guid"`
	Parameters map[string]interface{} `json:"parameters"`
}

type ErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
