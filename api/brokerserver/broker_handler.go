package brokerserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"strings"

	"code.cloudfoundry.org/cfhttp/handlers"
	"code.cloudfoundry.org/lager"

	"autosleep/api/config"
	"autosleep/api/parameters"
	"autosleep/db"
	"autosleep/models"
)

type BrokerHandler struct {
	logger       lager.Logger
	conf         *config.Config
	bindingdb    db.BindingDB
	instancedb   db.InstanceDB
	paramReaders *parameters.Registry
}

func NewBrokerHandler(logger lager.Logger, conf *config.Config, bindingdb db.BindingDB, instancedb db.InstanceDB, paramReaders *parameters.Registry) *BrokerHandler {
	return &BrokerHandler{
		logger:       logger,
		conf:         conf,
		bindingdb:    bindingdb,
		instancedb:   instancedb,
		paramReaders: paramReaders,
	}
}

func writeErrorResponse(w http.ResponseWriter, statusCode int, message string) {
	handlers.WriteJSONResponse(w, statusCode, models.ErrorResponse{
		Code:    http.StatusText(statusCode),
		Message: message})
}

func (h *BrokerHandler) GetBrokerCatalog(w http.ResponseWriter, _ *http.Request, _ map[string]string) {
	catalog, err := ioutil.ReadFile(h.conf.CatalogPath)
	if err != nil {
		h.logger.Error("failed to read catalog file", err)
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to load catalog")
		return
	}
	_, err = w.Write(catalog)
	if err != nil {
		h.logger.Error("unable to write body", err)
	}
}

func (h *BrokerHandler) CreateServiceInstance(w http.ResponseWriter, r *http.Request, vars map[string]string) {
	instanceId := vars["instanceId"]

	body := &models.InstanceCreationRequestBody{}
	bodyBytes, err := ioutil.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read service provision request body", err, lager.Data{"instanceId": instanceId})
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to read request body")
		return
	}
	err = json.Unmarshal(bodyBytes, body)
	if err != nil {
		h.logger.Error("failed to unmarshal service provision body", err, lager.Data{"instanceId": instanceId, "body": string(bodyBytes)})
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body format")
		return
	}

	if instanceId == "" || body.OrgGUID == "" || body.SpaceGUID == "" || body.ServiceID == "" || body.PlanID == "" {
		h.logger.Error("failed to create service instance when trying to get mandatory data", nil, lager.Data{"instanceId": instanceId, "orgGuid": body.OrgGUID, "spaceGuid": body.SpaceGUID, "serviceId": body.ServiceID, "planId": body.PlanID})
		writeErrorResponse(w, http.StatusBadRequest, "Malformed or missing mandatory data")
		return
	}

	instance, paramErrors := h.resolveInstanceParameters(instanceId, body.Parameters, true)
	if len(paramErrors) > 0 {
		writeErrorResponse(w, http.StatusBadRequest, strings.Join(paramErrors, "; "))
		return
	}
	instance.InstanceId = instanceId
	instance.ServiceId = body.ServiceID
	instance.PlanId = body.PlanID
	instance.OrgGuid = body.OrgGUID
	instance.SpaceGuid = body.SpaceGUID

	successResponse := func() {
		if h.conf.DashboardRedirectURI == "" {
			_, err = w.Write([]byte("{}"))
			if err != nil {
				h.logger.Error("unable to write body", err)
			}
		} else {
			_, err = w.Write([]byte(fmt.Sprintf("{\"dashboard_url\":\"%s\"}", GetDashboardURL(h.conf, instanceId))))
			if err != nil {
				h.logger.Error("unable to write body", err)
			}
		}
	}

	err = h.instancedb.CreateInstance(instance)
	switch {
	case err == nil:
		w.WriteHeader(http.StatusCreated)
		successResponse()
	case errors.Is(err, db.ErrAlreadyExists):
		h.logger.Info("service instance already exists", lager.Data{"instanceId": instanceId})
		successResponse()
	case errors.Is(err, db.ErrConflict):
		h.logger.Error("failed to create service instance: conflicting service instance exists", err, lager.Data{"instanceId": instanceId})
		writeErrorResponse(w, http.StatusConflict, fmt.Sprintf("Service instance with instance_id \"%s\" already exists with different parameters", instanceId))
	default:
		h.logger.Error("failed to create service instance", err, lager.Data{"instanceId": instanceId})
		writeErrorResponse(w, http.StatusInternalServerError, "Error creating service instance")
	}
}

func (h *BrokerHandler) UpdateServiceInstance(w http.ResponseWriter, r *http.Request, vars map[string]string) {
	instanceId := vars["instanceId"]

	body := &models.InstanceUpdateRequestBody{}
	bodyBytes, err := ioutil.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read service update request body", err, lager.Data{"instanceId": instanceId})
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to read request body")
		return
	}
	err = json.Unmarshal(bodyBytes, body)
	if err != nil {
		h.logger.Error("failed to unmarshal service update body", err, lager.Data{"instanceId": instanceId, "body": string(bodyBytes)})
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body format")
		return
	}

	instance, err := h.instancedb.GetInstance(instanceId)
	if err != nil {
		h.logger.Error("failed to retrieve service instance", err, lager.Data{"instanceId": instanceId})
		writeErrorResponse(w, http.StatusInternalServerError, "Error retrieving service instance")
		return
	}
	if instance == nil {
		writeErrorResponse(w, http.StatusNotFound, "Service instance not found")
		return
	}

	// withDefault is off so parameters the request leaves out keep their
	// stored value.
	updates, paramErrors := h.resolveInstanceParameters(instanceId, body.Parameters, false)
	if len(paramErrors) > 0 {
		writeErrorResponse(w, http.StatusBadRequest, strings.Join(paramErrors, "; "))
		return
	}
	if updates.IdleDuration != 0 {
		instance.IdleDuration = updates.IdleDuration
	}
	if updates.AutoEnrollment != "" {
		instance.AutoEnrollment = updates.AutoEnrollment
	}
	if _, present := body.Parameters[parameters.ExcludeFromAutoEnrollment]; present {
		instance.ExcludeFromAutoEnrollment = updates.ExcludeFromAutoEnrollment
	}
	if updates.Secret != "" {
		instance.Secret = updates.Secret
	}
	if _, present := body.Parameters[parameters.IgnoreRouteServiceError]; present {
		instance.IgnoreRouteServiceError = updates.IgnoreRouteServiceError
	}

	err = h.instancedb.SaveInstance(instance)
	if err != nil {
		h.logger.Error("failed to update service instance", err, lager.Data{"instanceId": instanceId})
		writeErrorResponse(w, http.StatusInternalServerError, "Error updating service instance")
		return
	}
	_, err = w.Write([]byte("{}"))
	if err != nil {
		h.logger.Error("unable to write body", err)
	}
}

func (h *BrokerHandler) DeleteServiceInstance(w http.ResponseWriter, r *http.Request, vars map[string]string) {
	instanceId := vars["instanceId"]

	bindings, err := h.bindingdb.GetBindings()
	if err != nil {
		h.logger.Error("failed to list bindings for deprovision", err, lager.Data{"instanceId": instanceId})
		writeErrorResponse(w, http.StatusInternalServerError, "Error deleting service instance")
		return
	}
	bindingIds := []string{}
	for _, binding := range bindings {
		if binding.ServiceInstanceId == instanceId {
			bindingIds = append(bindingIds, binding.BindingId)
		}
	}
	if len(bindingIds) > 0 {
		err = h.bindingdb.DeleteBindings(bindingIds)
		if err != nil {
			h.logger.Error("failed to delete bindings for deprovision", err, lager.Data{"instanceId": instanceId, "bindingIds": bindingIds})
			writeErrorResponse(w, http.StatusInternalServerError, "Error deleting service instance")
			return
		}
	}

	err = h.instancedb.DeleteInstance(instanceId)
	if err != nil {
		if errors.Is(err, db.ErrDoesNotExist) {
			h.logger.Error("failed to delete service instance: service instance does not exist", err, lager.Data{"instanceId": instanceId})
			writeErrorResponse(w, http.StatusGone, "Service Instance Doesn't Exist")
			return
		}
		h.logger.Error("failed to delete service instance", err, lager.Data{"instanceId": instanceId})
		writeErrorResponse(w, http.StatusInternalServerError, "Error deleting service instance")
		return
	}
	_, err = w.Write([]byte("{}"))
	if err != nil {
		h.logger.Error("unable to write body", err)
	}
}

func (h *BrokerHandler) BindServiceInstance(w http.ResponseWriter, r *http.Request, vars map[string]string) {
	instanceId := vars["instanceId"]
	bindingId := vars["bindingId"]

	body := &models.BindingRequestBody{}
	bodyBytes, err := ioutil.ReadAll(r.Body)
	if err != nil {
		h.logger.Error("failed to read bind request body", err, lager.Data{"instanceId": instanceId, "bindingId": bindingId})
		writeErrorResponse(w, http.StatusInternalServerError, "Failed to read request body")
		return
	}
	err = json.Unmarshal(bodyBytes, body)
	if err != nil {
		h.logger.Error("failed to unmarshal bind body", err, lager.Data{"instanceId": instanceId, "bindingId": bindingId, "body": string(bodyBytes)})
		writeErrorResponse(w, http.StatusBadRequest, "Invalid request body format")
		return
	}

	if instanceId == "" || bindingId == "" || body.AppGUID == "" || body.ServiceID == "" || body.PlanID == "" {
		h.logger.Error("failed to create service binding when trying to get mandatory data", nil, lager.Data{"instanceId": instanceId, "bindingId": bindingId, "appGuid": body.AppGUID})
		writeErrorResponse(w, http.StatusBadRequest, "Malformed or missing mandatory data")
		return
	}

	instance, err := h.instancedb.GetInstance(instanceId)
	if err != nil {
		h.logger.Error("failed to retrieve service instance for bind", err, lager.Data{"instanceId": instanceId, "bindingId": bindingId})
		writeErrorResponse(w, http.StatusInternalServerError, "Error creating service binding")
		return
	}
	if instance == nil {
		writeErrorResponse(w, http.StatusNotFound, "Service instance not found")
		return
	}

	state, err := h.paramReaders.ReadState(body.Parameters[parameters.State], true)
	if err != nil {
		writeErrorResponse(w, http.StatusBadRequest, err.Error())
		return
	}
	h.logger.Info("binding-enrollment-state", lager.Data{"instanceId": instanceId, "bindingId": bindingId, "state": state})

	existing, err := h.bindingdb.GetBinding(bindingId)
	if err != nil {
		h.logger.Error("failed to retrieve service binding", err, lager.Data{"bindingId": bindingId})
		writeErrorResponse(w, http.StatusInternalServerError, "Error creating service binding")
		return
	}
	if existing != nil && existing.AppGuid != body.AppGUID {
		writeErrorResponse(w, http.StatusConflict, fmt.Sprintf("Service binding with binding_id \"%s\" already exists for a different application", bindingId))
		return
	}

	err = h.bindingdb.SaveBinding(&models.ApplicationBinding{
		BindingId:         bindingId,
		ServiceInstanceId: instanceId,
		AppGuid:           body.AppGUID,
	})
	if err != nil {
		h.logger.Error("failed to save service binding", err, lager.Data{"instanceId": instanceId, "bindingId": bindingId})
		writeErrorResponse(w, http.StatusInternalServerError, "Error creating service binding")
		return
	}
	w.WriteHeader(http.StatusCreated)
	_, err = w.Write([]byte("{}"))
	if err != nil {
		h.logger.Error("unable to write body", err)
	}
}

func (h *BrokerHandler) UnbindServiceInstance(w http.ResponseWriter, r *http.Request, vars map[string]string) {
	bindingId := vars["bindingId"]

	exists, err := h.bindingdb.BindingExists(bindingId)
	if err != nil {
		h.logger.Error("failed to check service binding", err, lager.Data{"bindingId": bindingId})
		writeErrorResponse(w, http.StatusInternalServerError, "Error deleting service binding")
		return
	}
	if !exists {
		writeErrorResponse(w, http.StatusGone, "Service Binding Doesn't Exist")
		return
	}

	err = h.bindingdb.DeleteBinding(bindingId)
	if err != nil {
		h.logger.Error("failed to delete service binding", err, lager.Data{"bindingId": bindingId})
		writeErrorResponse(w, http.StatusInternalServerError, "Error deleting service binding")
		return
	}
	_, err = w.Write([]byte("{}"))
	if err != nil {
		h.logger.Error("unable to write body", err)
	}
}

// resolveInstanceParameters runs every recognized parameter reader over the
// raw request parameters and collects each rejection, so the response names
// all offending fields at once.
func (h *BrokerHandler) resolveInstanceParameters(instanceId string, raw map[string]interface{}, withDefault bool) (*models.ServiceInstance, []string) {
	instance := &models.ServiceInstance{}
	paramErrors := []string{}

	idleDuration, err := h.paramReaders.ReadIdleDuration(raw[parameters.IdleDuration], withDefault)
	if err != nil {
		paramErrors = append(paramErrors, err.Error())
	} else {
		instance.IdleDuration = idleDuration
	}

	autoEnrollment, err := h.paramReaders.ReadAutoEnrollment(raw[parameters.AutoEnrollment], withDefault)
	if err != nil {
		paramErrors = append(paramErrors, err.Error())
	} else {
		instance.AutoEnrollment = autoEnrollment
	}

	excludePattern, err := h.paramReaders.ReadExcludeFromAutoEnrollment(raw[parameters.ExcludeFromAutoEnrollment], withDefault)
	if err != nil {
		paramErrors = append(paramErrors, err.Error())
	} else if excludePattern != nil {
		instance.ExcludeFromAutoEnrollment = excludePattern.String()
	}

	secret, err := h.paramReaders.ReadSecret(raw[parameters.Secret], withDefault)
	if err != nil {
		paramErrors = append(paramErrors, err.Error())
	} else {
		instance.Secret = secret
	}

	ignoreRouteServiceError, err := h.paramReaders.ReadIgnoreRouteServiceError(raw[parameters.IgnoreRouteServiceError], withDefault)
	if err != nil {
		paramErrors = append(paramErrors, err.Error())
	} else {
		instance.IgnoreRouteServiceError = ignoreRouteServiceError
	}

	if len(paramErrors) > 0 {
		h.logger.Error("failed to resolve service instance parameters", nil, lager.Data{"instanceId": instanceId, "errors": paramErrors})
		return nil, paramErrors
	}
	return instance, nil
}
