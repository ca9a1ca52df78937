package memdb

import (
	"code.cloudfoundry.org/lager"
	cache "github.com/patrickmn/go-cache"

	"autosleep/db"
	"autosleep/models"
)

// InstanceMemDB is the in-memory counterpart of InstanceSQLDB, used in
// built-in mode.
type InstanceMemDB struct {
	cache  *cache.Cache
	logger lager.Logger
}

func NewInstanceMemDB(logger lager.Logger) *InstanceMemDB {
	return &InstanceMemDB{
		cache:  cache.New(cache.NoExpiration, 0),
		logger: logger,
	}
}

func (mdb *InstanceMemDB) Close() error {
	mdb.cache.Flush()
	return nil
}

func (mdb *InstanceMemDB) CreateInstance(instance *models.ServiceInstance) error {
	item, found := mdb.cache.Get(instance.InstanceId)
	if found {
		existing := item.(models.ServiceInstance)
		if existing == *instance {
			return db.ErrAlreadyExists
		}
		return db.ErrConflict
	}
	mdb.cache.Set(instance.InstanceId, *instance, cache.NoExpiration)
	return nil
}

func (mdb *InstanceMemDB) SaveInstance(instance *models.ServiceInstance) error {
	mdb.cache.Set(instance.InstanceId, *instance, cache.NoExpiration)
	return nil
}

func (mdb *InstanceMemDB) GetInstance(instanceId string) (*models.ServiceInstance, error) {
	item, found := mdb.cache.Get(instanceId)
	if !found {
		return nil, nil
	}
	instance := item.(models.ServiceInstance)
	return &instance, nil
}

func (mdb *InstanceMemDB) DeleteInstance(instanceId string) error {
	if _, found := mdb.cache.Get(instanceId); !found {
		return db.ErrDoesNotExist
	}
	mdb.cache.Delete(instanceId)
	return nil
}

func (mdb *InstanceMemDB) CountInstances() (int, error) {
	return mdb.cache.ItemCount(), nil
}

func (mdb *InstanceMemDB) DeleteAllInstances() error {
	mdb.cache.Flush()
	return nil
}
