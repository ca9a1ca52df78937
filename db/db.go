package db

import (
	"fmt"
	"time"

	"code.cloudfoundry.org/clock"

	"autosleep/healthendpoint"
	"autosleep/models"
)

const PostgresDriverName = "postgres"

var ErrAlreadyExists = fmt.Errorf("already exists")
var ErrConflict = fmt.Errorf("conflicting entry exists")
var ErrDoesNotExist = fmt.Errorf("doesn't exist")

type DatabaseConfig struct {
	URL                   string        `yaml:"url"`
	MaxOpenConnections    int           `yaml:"max_open_connections"`
	MaxIdleConnections    int           `yaml:"max_idle_connections"`
	ConnectionMaxLifetime time.Duration `yaml:"connection_max_lifetime"`
}

// BindingDB stores application bindings keyed by binding id. Save is an
// upsert; deleting an unknown id is a no-op.
type BindingDB interface {
	SaveBinding(binding *models.ApplicationBinding) error
	SaveBindings(bindings []*models.ApplicationBinding) error
	GetBinding(bindingId string) (*models.ApplicationBinding, error)
	GetBindings() ([]*models.ApplicationBinding, error)
	GetBindingsByIds(bindingIds []string) ([]*models.ApplicationBinding, error)
	BindingExists(bindingId string) (bool, error)
	CountBindings() (int, error)
	DeleteBinding(bindingId string) error
	DeleteBindingRecord(binding *models.ApplicationBinding) error
	DeleteBindings(bindingIds []string) error
	DeleteAllBindings() error
	Close() error
	EmitHealthMetrics(h healthendpoint.Health, cclock clock.Clock, interval time.Duration)
}

// InstanceDB stores provisioned service instances and their resolved
// autosleep policies.
type InstanceDB interface {
	CreateInstance(instance *models.ServiceInstance) error
	SaveInstance(instance *models.ServiceInstance) error
	GetInstance(instanceId string) (*models.ServiceInstance, error)
	DeleteInstance(instanceId string) error
	CountInstances() (int, error)
	DeleteAllInstances() error
	Close() error
}
