package config

import (
	"fmt"
	"io"
	"io/ioutil"
	"strings"
	"time"

	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v2"

	"autosleep/db"
	"autosleep/helpers"
	"autosleep/models"
)

const (
	DefaultLoggingLevel = "info"

	DefaultIdleDuration = 24 * time.Hour
)

type ServerConfig struct {
	Port int             `yaml:"port"`
	TLS  models.TLSCerts `yaml:"tls"`
}

var defaultBrokerServerConfig = ServerConfig{
	Port: 8080,
}

var defaultHealthServerConfig = ServerConfig{
	Port: 8081,
}

var defaultLoggingConfig = helpers.LoggingConfig{
	Level: DefaultLoggingLevel,
}

type DBConfig struct {
	BindingDB  db.DatabaseConfig `yaml:"binding_db"`
	InstanceDB db.DatabaseConfig `yaml:"instance_db"`
}

// DefaultParametersConfig holds the fallback values applied when a
// provisioning request leaves a parameter out.
type DefaultParametersConfig struct {
	IdleDuration            time.Duration `yaml:"idle_duration"`
	IgnoreRouteServiceError bool          `yaml:"ignore_route_service_error"`
}

type Config struct {
	Logging              helpers.LoggingConfig   `yaml:"logging"`
	BrokerServer         ServerConfig            `yaml:"broker_server"`
	HealthServer         ServerConfig            `yaml:"health_server"`
	DB                   DBConfig                `yaml:"db"`
	BrokerUsername       string                  `yaml:"broker_username"`
	BrokerPassword       string                  `yaml:"broker_password"`
	CatalogPath          string                  `yaml:"catalog_path"`
	CatalogSchemaPath    string                  `yaml:"catalog_schema_path"`
	DashboardRedirectURI string                  `yaml:"dashboard_redirect_uri"`
	DefaultParameters    DefaultParametersConfig `yaml:"default_parameters"`
	UseBuildInMode       bool                    `yaml:"use_buildin_mode"`
}

func LoadConfig(reader io.Reader) (*Config, error) {
	conf := &Config{
		Logging:      defaultLoggingConfig,
		BrokerServer: defaultBrokerServerConfig,
		HealthServer: defaultHealthServerConfig,
		DefaultParameters: DefaultParametersConfig{
			IdleDuration: DefaultIdleDuration,
		},
		UseBuildInMode: false,
	}

	bytes, err := ioutil.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	err = yaml.Unmarshal(bytes, conf)
	if err != nil {
		return nil, err
	}

	conf.Logging.Level = strings.ToLower(conf.Logging.Level)

	return conf, nil
}

func (c *Config) Validate() error {
	if c.BrokerUsername == "" {
		return fmt.Errorf("Configuration error: BrokerUsername is empty")
	}
	if c.BrokerPassword == "" {
		return fmt.Errorf("Configuration error: BrokerPassword is empty")
	}
	if c.CatalogPath == "" {
		return fmt.Errorf("Configuration error: CatalogPath is empty")
	}
	if c.CatalogSchemaPath == "" {
		return fmt.Errorf("Configuration error: CatalogSchemaPath is empty")
	}
	if c.DefaultParameters.IdleDuration <= 0 {
		return fmt.Errorf("Configuration error: default_parameters.idle_duration is not positive")
	}
	if !c.UseBuildInMode {
		if c.DB.BindingDB.URL == "" {
			return fmt.Errorf("Configuration error: BindingDB URL is empty")
		}
		if c.DB.InstanceDB.URL == "" {
			return fmt.Errorf("Configuration error: InstanceDB URL is empty")
		}
	}

	catalogSchemaLoader := gojsonschema.NewReferenceLoader("file://" + c.CatalogSchemaPath)
	catalogLoader := gojsonschema.NewReferenceLoader("file://" + c.CatalogPath)

	result, err := gojsonschema.Validate(catalogSchemaLoader, catalogLoader)
	if err != nil {
		return err
	}
	if !result.Valid() {
		errString := "{"
		for index, desc := range result.Errors() {
			if index == len(result.Errors())-1 {
				errString += fmt.Sprintf("\"%s\"", desc.Description())
			} else {
				errString += fmt.Sprintf("\"%s\",", desc.Description())
			}
		}
		errString += "}"
		return fmt.Errorf(errString)
	}

	return nil
}
