package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/tedsuo/ifrit"
	"github.com/tedsuo/ifrit/grouper"
	"github.com/tedsuo/ifrit/sigmon"

	"autosleep/api/brokerserver"
	"autosleep/api/config"
	"autosleep/api/parameters"
	"autosleep/db"
	"autosleep/db/memdb"
	"autosleep/db/sqldb"
	"autosleep/healthendpoint"
	"autosleep/helpers"
)

const healthMetricsInterval = 30 * time.Second

func main() {
	var path string
	flag.StringVar(&path, "c", "", "config file")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "missing config file")
		os.Exit(1)
	}

	configFile, err := os.Open(path)
	if err != nil {
		fmt.Fprintf(os.Stdout, "failed to open config file '%s' : %s\n", path, err.Error())
		os.Exit(1)
	}

	var conf *config.Config
	conf, err = config.LoadConfig(configFile)
	if err != nil {
		fmt.Fprintf(os.Stdout, "failed to read config file '%s' : %s\n", path, err.Error())
		os.Exit(1)
	}
	configFile.Close()

	err = conf.Validate()
	if err != nil {
		fmt.Fprintf(os.Stdout, "failed to validate configuration : %s\n", err.Error())
		os.Exit(1)
	}

	logger := helpers.InitLoggerFromConfig(&conf.Logging, "autosleep")

	httpStatusCollector := healthendpoint.NewHTTPStatusCollector("autosleep", "broker")
	storeGauges := healthendpoint.NewGaugeCollector("autosleep", "broker")
	prometheusCollectors := []prometheus.Collector{
		httpStatusCollector,
		storeGauges,
	}

	var bindingDB db.BindingDB
	var instanceDB db.InstanceDB
	if conf.UseBuildInMode {
		bindingDB = memdb.NewBindingMemDB(logger.Session("binding-memdb"))
		instanceDB = memdb.NewInstanceMemDB(logger.Session("instance-memdb"))
	} else {
		bindingSQLDB, err := sqldb.NewBindingSQLDB(conf.DB.BindingDB, logger.Session("binding-sqldb"))
		if err != nil {
			logger.Error("failed to connect binding database", err, lager.Data{"dbConfig": conf.DB.BindingDB})
			os.Exit(1)
		}
		instanceSQLDB, err := sqldb.NewInstanceSQLDB(conf.DB.InstanceDB, logger.Session("instance-sqldb"))
		if err != nil {
			logger.Error("failed to connect instance database", err, lager.Data{"dbConfig": conf.DB.InstanceDB})
			os.Exit(1)
		}
		prometheusCollectors = append(prometheusCollectors,
			healthendpoint.NewDatabaseStatusCollector("autosleep", "broker", "bindingDB", bindingSQLDB),
			healthendpoint.NewDatabaseStatusCollector("autosleep", "broker", "instanceDB", instanceSQLDB))
		bindingDB = bindingSQLDB
		instanceDB = instanceSQLDB
	}
	defer bindingDB.Close()
	defer instanceDB.Close()

	bindingDB.EmitHealthMetrics(storeGauges, clock.NewClock(), healthMetricsInterval)

	promRegistry := prometheus.NewRegistry()
	healthendpoint.RegisterCollectors(promRegistry, prometheusCollectors, true, logger.Session("broker-prometheus"))

	paramReaders := parameters.NewRegistry(conf.DefaultParameters.IdleDuration,
		conf.DefaultParameters.IgnoreRouteServiceError, logger.Session("parameters"))

	brokerHttpServer, err := brokerserver.NewBrokerServer(logger.Session("broker_http_server"), conf,
		bindingDB, instanceDB, httpStatusCollector, paramReaders)
	if err != nil {
		logger.Error("failed to create broker http server", err)
		os.Exit(1)
	}
	healthServer, err := healthendpoint.NewServer(logger.Session("health-server"), conf.HealthServer.Port, promRegistry)
	if err != nil {
		logger.Error("failed to create health server", err)
		os.Exit(1)
	}

	members := grouper.Members{
		{Name: "broker_http_server", Runner: brokerHttpServer},
		{Name: "health_server", Runner: healthServer},
	}

	monitor := ifrit.Invoke(sigmon.New(grouper.NewOrdered(os.Interrupt, members)))

	logger.Info("started")

	err = <-monitor.Wait()
	if err != nil {
		logger.Error("exited-with-failure", err)
		os.Exit(1)
	}
	logger.Info("exited")
}
