package sqldb

import (
	"database/sql"
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager"
	"github.com/lib/pq"

	"autosleep/db"
	"autosleep/healthendpoint"
	"autosleep/models"
)

type BindingSQLDB struct {
	dbConfig db.DatabaseConfig
	logger   lager.Logger
	sqldb    *sql.DB
}

func NewBindingSQLDB(dbConfig db.DatabaseConfig, logger lager.Logger) (*BindingSQLDB, error) {
	sqldb, err := sql.Open(db.PostgresDriverName, dbConfig.URL)
	if err != nil {
		logger.Error("open-binding-db", err, lager.Data{"dbConfig": dbConfig})
		return nil, err
	}

	err = sqldb.Ping()
	if err != nil {
		sqldb.Close()
		logger.Error("ping-binding-db", err, lager.Data{"dbConfig": dbConfig})
		return nil, err
	}

	sqldb.SetConnMaxLifetime(dbConfig.ConnectionMaxLifetime)
	sqldb.SetMaxIdleConns(dbConfig.MaxIdleConnections)
	sqldb.SetMaxOpenConns(dbConfig.MaxOpenConnections)

	return &BindingSQLDB{
		dbConfig: dbConfig,
		logger:   logger,
		sqldb:    sqldb,
	}, nil
}

func (bdb *BindingSQLDB) Close() error {
	err := bdb.sqldb.Close()
	if err != nil {
		bdb.logger.Error("close-binding-db", err, lager.Data{"dbConfig": bdb.dbConfig})
		return err
	}
	return nil
}

func (bdb *BindingSQLDB) SaveBinding(binding *models.ApplicationBinding) error {
	query := "INSERT INTO binding" +
		"(binding_id, service_instance_id, app_guid, route_service_url, syslog_drain_url, created_at) " +
		"VALUES($1, $2, $3, $4, $5, $6) " +
		"ON CONFLICT(binding_id) DO UPDATE SET " +
		"service_instance_id = EXCLUDED.service_instance_id, " +
		"app_guid = EXCLUDED.app_guid, " +
		"route_service_url = EXCLUDED.route_service_url, " +
		"syslog_drain_url = EXCLUDED.syslog_drain_url"
	_, err := bdb.sqldb.Exec(query, binding.BindingId, binding.ServiceInstanceId, binding.AppGuid,
		binding.RouteServiceUrl, binding.SyslogDrainUrl, time.Now())

	if err != nil {
		bdb.logger.Error("save-binding", err, lager.Data{"query": query, "bindingid": binding.BindingId, "serviceinstanceid": binding.ServiceInstanceId, "appguid": binding.AppGuid})
	}
	return err
}

func (bdb *BindingSQLDB) SaveBindings(bindings []*models.ApplicationBinding) error {
	tx, err := bdb.sqldb.Begin()
	if err != nil {
		bdb.logger.Error("save-bindings-begin", err)
		return err
	}
	query := "INSERT INTO binding" +
		"(binding_id, service_instance_id, app_guid, route_service_url, syslog_drain_url, created_at) " +
		"VALUES($1, $2, $3, $4, $5, $6) " +
		"ON CONFLICT(binding_id) DO UPDATE SET " +
		"service_instance_id = EXCLUDED.service_instance_id, " +
		"app_guid = EXCLUDED.app_guid, " +
		"route_service_url = EXCLUDED.route_service_url, " +
		"syslog_drain_url = EXCLUDED.syslog_drain_url"
	for _, binding := range bindings {
		_, err = tx.Exec(query, binding.BindingId, binding.ServiceInstanceId, binding.AppGuid,
			binding.RouteServiceUrl, binding.SyslogDrainUrl, time.Now())
		if err != nil {
			bdb.logger.Error("save-bindings", err, lager.Data{"query": query, "bindingid": binding.BindingId})
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func (bdb *BindingSQLDB) GetBinding(bindingId string) (*models.ApplicationBinding, error) {
	binding := &models.ApplicationBinding{}
	query := "SELECT binding_id, service_instance_id, app_guid, route_service_url, syslog_drain_url FROM binding WHERE binding_id = $1"
	err := bdb.sqldb.QueryRow(query, bindingId).Scan(&binding.BindingId, &binding.ServiceInstanceId,
		&binding.AppGuid, &binding.RouteServiceUrl, &binding.SyslogDrainUrl)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		bdb.logger.Error("get-binding", err, lager.Data{"query": query, "bindingid": bindingId})
		return nil, err
	}
	return binding, nil
}

func (bdb *BindingSQLDB) GetBindings() ([]*models.ApplicationBinding, error) {
	query := "SELECT binding_id, service_instance_id, app_guid, route_service_url, syslog_drain_url FROM binding"
	rows, err := bdb.sqldb.Query(query)
	if err != nil {
		bdb.logger.Error("get-bindings", err, lager.Data{"query": query})
		return nil, err
	}
	defer rows.Close()
	return scanBindings(rows, bdb.logger)
}

func (bdb *BindingSQLDB) GetBindingsByIds(bindingIds []string) ([]*models.ApplicationBinding, error) {
	query := "SELECT binding_id, service_instance_id, app_guid, route_service_url, syslog_drain_url FROM binding WHERE binding_id = ANY($1)"
	rows, err := bdb.sqldb.Query(query, pq.Array(bindingIds))
	if err != nil {
		bdb.logger.Error("get-bindings-by-ids", err, lager.Data{"query": query, "bindingids": bindingIds})
		return nil, err
	}
	defer rows.Close()
	return scanBindings(rows, bdb.logger)
}

func scanBindings(rows *sql.Rows, logger lager.Logger) ([]*models.ApplicationBinding, error) {
	bindings := []*models.ApplicationBinding{}
	for rows.Next() {
		binding := &models.ApplicationBinding{}
		err := rows.Scan(&binding.BindingId, &binding.ServiceInstanceId, &binding.AppGuid,
			&binding.RouteServiceUrl, &binding.SyslogDrainUrl)
		if err != nil {
			logger.Error("scan-binding", err)
			return nil, err
		}
		bindings = append(bindings, binding)
	}
	return bindings, rows.Err()
}

func (bdb *BindingSQLDB) BindingExists(bindingId string) (bool, error) {
	var count int
	query := "SELECT COUNT(*) FROM binding WHERE binding_id = $1"
	err := bdb.sqldb.QueryRow(query, bindingId).Scan(&count)
	if err != nil {
		bdb.logger.Error("binding-exists", err, lager.Data{"query": query, "bindingid": bindingId})
		return false, err
	}
	return count > 0, nil
}

func (bdb *BindingSQLDB) CountBindings() (int, error) {
	var count int
	query := "SELECT COUNT(*) FROM binding"
	err := bdb.sqldb.QueryRow(query).Scan(&count)
	if err != nil {
		bdb.logger.Error("count-bindings", err, lager.Data{"query": query})
		return 0, err
	}
	return count, nil
}

func (bdb *BindingSQLDB) DeleteBinding(bindingId string) error {
	query := "DELETE FROM binding WHERE binding_id = $1"
	_, err := bdb.sqldb.Exec(query, bindingId)
	if err != nil {
		bdb.logger.Error("delete-binding", err, lager.Data{"query": query, "bindingid": bindingId})
	}
	return err
}

func (bdb *BindingSQLDB) DeleteBindingRecord(binding *models.ApplicationBinding) error {
	return bdb.DeleteBinding(binding.BindingId)
}

func (bdb *BindingSQLDB) DeleteBindings(bindingIds []string) error {
	query := "DELETE FROM binding WHERE binding_id = ANY($1)"
	_, err := bdb.sqldb.Exec(query, pq.Array(bindingIds))
	if err != nil {
		bdb.logger.Error("delete-bindings", err, lager.Data{"query": query, "bindingids": bindingIds})
	}
	return err
}

func (bdb *BindingSQLDB) DeleteAllBindings() error {
	query := "DELETE FROM binding"
	_, err := bdb.sqldb.Exec(query)
	if err != nil {
		bdb.logger.Error("delete-all-bindings", err, lager.Data{"query": query})
	}
	return err
}

func (bdb *BindingSQLDB) EmitHealthMetrics(h healthendpoint.Health, cclock clock.Clock, interval time.Duration) {
	go func() {
		ticker := cclock.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C() {
			h.Set("openConnection_bindingDB", float64(bdb.sqldb.Stats().OpenConnections))
		}
	}()
}

func (bdb *BindingSQLDB) GetDBStatus() sql.DBStats {
	return bdb.sqldb.Stats()
}
