package sqldb

import (
	"database/sql"
	"time"

	"code.cloudfoundry.org/lager"
	_ "github.com/lib/pq"

	"autosleep/db"
	"autosleep/models"
)

type InstanceSQLDB struct {
	dbConfig db.DatabaseConfig
	logger   lager.Logger
	sqldb    *sql.DB
}

func NewInstanceSQLDB(dbConfig db.DatabaseConfig, logger lager.Logger) (*InstanceSQLDB, error) {
	sqldb, err := sql.Open(db.PostgresDriverName, dbConfig.URL)
	if err != nil {
		logger.Error("open-instance-db", err, lager.Data{"dbConfig": dbConfig})
		return nil, err
	}

	err = sqldb.Ping()
	if err != nil {
		sqldb.Close()
		logger.Error("ping-instance-db", err, lager.Data{"dbConfig": dbConfig})
		return nil, err
	}

	sqldb.SetConnMaxLifetime(dbConfig.ConnectionMaxLifetime)
	sqldb.SetMaxIdleConns(dbConfig.MaxIdleConnections)
	sqldb.SetMaxOpenConns(dbConfig.MaxOpenConnections)

	return &InstanceSQLDB{
		dbConfig: dbConfig,
		logger:   logger,
		sqldb:    sqldb,
	}, nil
}

func (idb *InstanceSQLDB) Close() error {
	err := idb.sqldb.Close()
	if err != nil {
		idb.logger.Error("close-instance-db", err, lager.Data{"dbConfig": idb.dbConfig})
		return err
	}
	return nil
}

// CreateInstance fails with db.ErrAlreadyExists when an identical instance
// is already stored and db.ErrConflict when the stored instance carries
// different parameters.
func (idb *InstanceSQLDB) CreateInstance(instance *models.ServiceInstance) error {
	existing, err := idb.GetInstance(instance.InstanceId)
	if err != nil {
		return err
	}
	if existing != nil {
		if *existing == *instance {
			return db.ErrAlreadyExists
		}
		return db.ErrConflict
	}

	query := "INSERT INTO service_instance" +
		"(instance_id, service_id, plan_id, org_guid, space_guid, idle_duration, auto_enrollment, exclude_from_auto_enrollment, secret, ignore_route_service_error) " +
		"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)"
	_, err = idb.sqldb.Exec(query, instance.InstanceId, instance.ServiceId, instance.PlanId,
		instance.OrgGuid, instance.SpaceGuid, int64(instance.IdleDuration), string(instance.AutoEnrollment),
		instance.ExcludeFromAutoEnrollment, instance.Secret, instance.IgnoreRouteServiceError)
	if err != nil {
		idb.logger.Error("create-instance", err, lager.Data{"query": query, "instanceid": instance.InstanceId})
	}
	return err
}

func (idb *InstanceSQLDB) SaveInstance(instance *models.ServiceInstance) error {
	query := "INSERT INTO service_instance" +
		"(instance_id, service_id, plan_id, org_guid, space_guid, idle_duration, auto_enrollment, exclude_from_auto_enrollment, secret, ignore_route_service_error) " +
		"VALUES($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) " +
		"ON CONFLICT(instance_id) DO UPDATE SET " +
		"service_id = EXCLUDED.service_id, " +
		"plan_id = EXCLUDED.plan_id, " +
		"org_guid = EXCLUDED.org_guid, " +
		"space_guid = EXCLUDED.space_guid, " +
		"idle_duration = EXCLUDED.idle_duration, " +
		"auto_enrollment = EXCLUDED.auto_enrollment, " +
		"exclude_from_auto_enrollment = EXCLUDED.exclude_from_auto_enrollment, " +
		"secret = EXCLUDED.secret, " +
		"ignore_route_service_error = EXCLUDED.ignore_route_service_error"
	_, err := idb.sqldb.Exec(query, instance.InstanceId, instance.ServiceId, instance.PlanId,
		instance.OrgGuid, instance.SpaceGuid, int64(instance.IdleDuration), string(instance.AutoEnrollment),
		instance.ExcludeFromAutoEnrollment, instance.Secret, instance.IgnoreRouteServiceError)
	if err != nil {
		idb.logger.Error("save-instance", err, lager.Data{"query": query, "instanceid": instance.InstanceId})
	}
	return err
}

func (idb *InstanceSQLDB) GetInstance(instanceId string) (*models.ServiceInstance, error) {
	instance := &models.ServiceInstance{}
	var idleDuration int64
	var autoEnrollment string
	query := "SELECT instance_id, service_id, plan_id, org_guid, space_guid, idle_duration, auto_enrollment, exclude_from_auto_enrollment, secret, ignore_route_service_error " +
		"FROM service_instance WHERE instance_id = $1"
	err := idb.sqldb.QueryRow(query, instanceId).Scan(&instance.InstanceId, &instance.ServiceId,
		&instance.PlanId, &instance.OrgGuid, &instance.SpaceGuid, &idleDuration, &autoEnrollment,
		&instance.ExcludeFromAutoEnrollment, &instance.Secret, &instance.IgnoreRouteServiceError)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		idb.logger.Error("get-instance", err, lager.Data{"query": query, "instanceid": instanceId})
		return nil, err
	}
	instance.IdleDuration = time.Duration(idleDuration)
	instance.AutoEnrollment = models.Enrollment(autoEnrollment)
	return instance, nil
}

func (idb *InstanceSQLDB) DeleteInstance(instanceId string) error {
	query := "SELECT instance_id FROM service_instance WHERE instance_id = $1"
	rows, err := idb.sqldb.Query(query, instanceId)
	if err != nil {
		idb.logger.Error("delete-instance", err, lager.Data{"query": query, "instanceid": instanceId})
		return err
	}

	if rows.Next() {
		rows.Close()
		query = "DELETE FROM service_instance WHERE instance_id = $1"
		_, err = idb.sqldb.Exec(query, instanceId)

		if err != nil {
			idb.logger.Error("delete-instance", err, lager.Data{"query": query, "instanceid": instanceId})
		}
		return err
	}
	rows.Close()
	return db.ErrDoesNotExist
}

func (idb *InstanceSQLDB) CountInstances() (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM service_instance"
	err := idb.sqldb.QueryRow(query).Scan(&count)
	if err != nil {
		idb.logger.Error("count-instances", err, lager.Data{"query": query})
		return 0, err
	}
	return count, nil
}

func (idb *InstanceSQLDB) DeleteAllInstances() error {
	query := "DELETE FROM service_instance"
	_, err := idb.sqldb.Exec(query)
	if err != nil {
		idb.logger.Error("delete-all-instances", err, lager.Data{"query": query})
	}
	return err
}

func (idb *InstanceSQLDB) GetDBStatus() sql.DBStats {
	return idb.sqldb.Stats()
}
