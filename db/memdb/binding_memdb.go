package memdb

import (
	"time"

	"code.cloudfoundry.org/clock"
	"code.cloudfoundry.org/lager"
	cache "github.com/patrickmn/go-cache"

	"autosleep/healthendpoint"
	"autosleep/models"
)

// BindingMemDB keeps application bindings in process memory. It backs the
// broker's built-in mode and the store conformance tests. Records are
// stored by value so callers never share memory with the store.
type BindingMemDB struct {
	cache  *cache.Cache
	logger lager.Logger
}

func NewBindingMemDB(logger lager.Logger) *BindingMemDB {
	return &BindingMemDB{
		cache:  cache.New(cache.NoExpiration, 0),
		logger: logger,
	}
}

func (mdb *BindingMemDB) Close() error {
	mdb.cache.Flush()
	return nil
}

func (mdb *BindingMemDB) SaveBinding(binding *models.ApplicationBinding) error {
	mdb.cache.Set(binding.BindingId, *binding, cache.NoExpiration)
	return nil
}

func (mdb *BindingMemDB) SaveBindings(bindings []*models.ApplicationBinding) error {
	for _, binding := range bindings {
		if err := mdb.SaveBinding(binding); err != nil {
			return err
		}
	}
	return nil
}

func (mdb *BindingMemDB) GetBinding(bindingId string) (*models.ApplicationBinding, error) {
	item, found := mdb.cache.Get(bindingId)
	if !found {
		return nil, nil
	}
	binding := item.(models.ApplicationBinding)
	return &binding, nil
}

func (mdb *BindingMemDB) GetBindings() ([]*models.ApplicationBinding, error) {
	items := mdb.cache.Items()
	bindings := make([]*models.ApplicationBinding, 0, len(items))
	for _, item := range items {
		binding := item.Object.(models.ApplicationBinding)
		bindings = append(bindings, &binding)
	}
	return bindings, nil
}

func (mdb *BindingMemDB) GetBindingsByIds(bindingIds []string) ([]*models.ApplicationBinding, error) {
	bindings := []*models.ApplicationBinding{}
	for _, bindingId := range bindingIds {
		binding, err := mdb.GetBinding(bindingId)
		if err != nil {
			return nil, err
		}
		if binding != nil {
			bindings = append(bindings, binding)
		}
	}
	return bindings, nil
}

func (mdb *BindingMemDB) BindingExists(bindingId string) (bool, error) {
	_, found := mdb.cache.Get(bindingId)
	return found, nil
}

func (mdb *BindingMemDB) CountBindings() (int, error) {
	return mdb.cache.ItemCount(), nil
}

func (mdb *BindingMemDB) DeleteBinding(bindingId string) error {
	mdb.cache.Delete(bindingId)
	return nil
}

func (mdb *BindingMemDB) DeleteBindingRecord(binding *models.ApplicationBinding) error {
	return mdb.DeleteBinding(binding.BindingId)
}

func (mdb *BindingMemDB) DeleteBindings(bindingIds []string) error {
	for _, bindingId := range bindingIds {
		if err := mdb.DeleteBinding(bindingId); err != nil {
			return err
		}
	}
	return nil
}

func (mdb *BindingMemDB) DeleteAllBindings() error {
	mdb.cache.Flush()
	return nil
}

func (mdb *BindingMemDB) EmitHealthMetrics(h healthendpoint.Health, cclock clock.Clock, interval time.Duration) {
	go func() {
		ticker := cclock.NewTicker(interval)
		defer ticker.Stop()
		for range ticker.C() {
			h.Set("records_bindingMemDB", float64(mdb.cache.ItemCount()))
		}
	}()
}
