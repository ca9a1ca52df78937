package routes

import (
	"net/http"

	"github.com/gorilla/mux"
)

const (
	BrokerCatalogPath      = "/v2/catalog"
	BrokerCatalogRouteName = "GetCatalog"

	BrokerInstancePath            = "/v2/service_instances/{instanceId}"
	BrokerCreateInstanceRouteName = "CreateInstance"
	BrokerUpdateInstanceRouteName = "UpdateInstance"
	BrokerDeleteInstanceRouteName = "DeleteInstance"

	BrokerBindingPath            = "/v2/service_instances/{instanceId}/service_bindings/{bindingId}"
	BrokerCreateBindingRouteName = "CreateBinding"
	BrokerDeleteBindingRouteName = "DeleteBinding"
)

type AutoSleepRoute struct {
	brokerRoutes *mux.Router
}

var autoSleepRouteInstance = newRouters()

func newRouters() *AutoSleepRoute {
	instance := &AutoSleepRoute{
		brokerRoutes: mux.NewRouter(),
	}

	instance.brokerRoutes.Path(BrokerCatalogPath).Methods(http.MethodGet).Name(BrokerCatalogRouteName)

	instance.brokerRoutes.Path(BrokerInstancePath).Methods(http.MethodPut).Name(BrokerCreateInstanceRouteName)
	instance.brokerRoutes.Path(BrokerInstancePath).Methods(http.MethodPatch).Name(BrokerUpdateInstanceRouteName)
	instance.brokerRoutes.Path(BrokerInstancePath).Methods(http.MethodDelete).Name(BrokerDeleteInstanceRouteName)

	instance.brokerRoutes.Path(BrokerBindingPath).Methods(http.MethodPut).Name(BrokerCreateBindingRouteName)
	instance.brokerRoutes.Path(BrokerBindingPath).Methods(http.MethodDelete).Name(BrokerDeleteBindingRouteName)

	return instance
}

func BrokerRoutes() *mux.Router {
	return autoSleepRouteInstance.brokerRoutes
}
