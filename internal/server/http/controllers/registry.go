package controllers

import (
	"net/http"

	"github.com/rzbill/logcache/internal/runtime"
	"github.com/rzbill/logcache/pkg/log"
)

// ControllerRegistry manages all HTTP controllers.
type ControllerRegistry struct {
	general  *GeneralController
	services *ServicesController
}

// NewControllerRegistry initializes all controllers with the provided runtime.
func NewControllerRegistry(rt *runtime.Runtime, logger log.Logger) *ControllerRegistry {
	return &ControllerRegistry{
		general:  NewGeneralController(rt),
		services: NewServicesController(rt, logger),
	}
}

// RegisterAllRoutes registers all controller routes with the given mux.
func (r *ControllerRegistry) RegisterAllRoutes(mux *http.ServeMux) {
	r.general.RegisterRoutes(mux)
	r.services.RegisterRoutes(mux)
}
