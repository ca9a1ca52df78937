package testhelpers

import (
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	"autosleep/db"
	"autosleep/models"
)

const conformanceAppGuid = "2F5A0947-6468-401B-B12A-963405121937"

// BindingStoreConformance registers the contract suite every BindingDB
// engine must satisfy: upsert-by-key saves, lookups, counting, and
// delete-is-a-no-op-when-absent semantics.
func BindingStoreConformance(description string, newStore func() db.BindingDB) bool {
	return Describe(description, func() {
		var store db.BindingDB

		newBinding := func(bindingId string, serviceInstanceId string) *models.ApplicationBinding {
			return &models.ApplicationBinding{
				BindingId:         bindingId,
				ServiceInstanceId: serviceInstanceId,
				AppGuid:           conformanceAppGuid,
			}
		}

		countBindings := func() int {
			count, err := store.CountBindings()
			Expect(err).NotTo(HaveOccurred())
			return count
		}

		BeforeEach(func() {
			store = newStore()
			Expect(store.DeleteAllBindings()).To(Succeed())
		})

		AfterEach(func() {
			Expect(store.DeleteAllBindings()).To(Succeed())
			Expect(store.Close()).To(Succeed())
		})

		It("starts empty", func() {
			Expect(countBindings()).To(Equal(0))
		})

		It("counts a saved binding", func() {
			Expect(store.SaveBinding(newBinding("testInsert", "testInsert"))).To(Succeed())
			Expect(countBindings()).To(Equal(1))
		})

		It("saves and retrieves multiple bindings", func() {
			ids := []string{"testInsert1", "testInsert2"}
			initial := []*models.ApplicationBinding{}
			for _, id := range ids {
				initial = append(initial, newBinding(id, "testServiceId"))
			}

			Expect(store.SaveBindings(initial)).To(Succeed())
			Expect(countBindings()).To(Equal(len(initial)))

			for _, id := range ids {
				exists, err := store.BindingExists(id)
				Expect(err).NotTo(HaveOccurred())
				Expect(exists).To(BeTrue(), "each element should exist in the store")
			}

			stored, err := store.GetBindings()
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(len(initial)))

			stored, err = store.GetBindingsByIds(append(ids, "never-stored"))
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(HaveLen(len(initial)))
			for _, binding := range stored {
				Expect(initial).To(ContainElement(binding))
			}
		})

		It("overwrites instead of duplicating on re-save", func() {
			Expect(store.SaveBinding(newBinding("upsertId", "firstService"))).To(Succeed())
			Expect(store.SaveBinding(newBinding("upsertId", "secondService"))).To(Succeed())

			Expect(countBindings()).To(Equal(1))
			binding, err := store.GetBinding("upsertId")
			Expect(err).NotTo(HaveOccurred())
			Expect(binding.ServiceInstanceId).To(Equal("secondService"))
		})

		It("retrieves a binding structurally equal to the saved one", func() {
			original := newBinding("bindingIdEquality", "serviceIdEquality")

			Expect(store.SaveBinding(original)).To(Succeed())
			binding, err := store.GetBinding("bindingIdEquality")
			Expect(err).NotTo(HaveOccurred())
			Expect(binding).NotTo(BeNil())
			Expect(binding.ServiceInstanceId).To(Equal("serviceIdEquality"))
			Expect(binding.AppGuid).To(Equal(conformanceAppGuid))
			Expect(binding).To(Equal(original))

			binding, err = store.GetBinding("testGetServiceFail")
			Expect(err).NotTo(HaveOccurred())
			Expect(binding).To(BeNil())
		})

		It("deletes by id, by record, in batch and entirely", func() {
			deleteByIdSuccess := "deleteByIdSuccess"
			deleteByRecordSuccess := "deleteByRecordSuccess"
			deleteByMass1 := "deleteByMass1"
			deleteByMass2 := "deleteByMass2"
			for _, id := range []string{deleteByIdSuccess, deleteByRecordSuccess, deleteByMass1, deleteByMass2} {
				Expect(store.SaveBinding(newBinding(id, "service"))).To(Succeed())
			}
			Expect(countBindings()).To(Equal(4))

			// unknown id shouldn't raise anything
			Expect(store.DeleteBinding("testDeleteServiceFail")).To(Succeed())
			Expect(countBindings()).To(Equal(4))

			Expect(store.DeleteBinding(deleteByIdSuccess)).To(Succeed())
			Expect(countBindings()).To(Equal(3))

			binding, err := store.GetBinding(deleteByRecordSuccess)
			Expect(err).NotTo(HaveOccurred())
			Expect(store.DeleteBindingRecord(binding)).To(Succeed())
			Expect(countBindings()).To(Equal(2))

			Expect(store.DeleteBindings([]string{deleteByMass1, deleteByMass2})).To(Succeed())
			Expect(countBindings()).To(Equal(0))

			Expect(store.SaveBinding(newBinding("lastOne", "service"))).To(Succeed())
			Expect(store.DeleteAllBindings()).To(Succeed())
			Expect(countBindings()).To(Equal(0))
		})
	})
}
