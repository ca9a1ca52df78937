package brokerserver_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"time"

	"code.cloudfoundry.org/lager/lagertest"
	. "github.com/onsi/ginkgo"
	. "github.com/onsi/gomega"

	. "autosleep/api/brokerserver"
	"autosleep/api/parameters"
	"autosleep/db/memdb"
	"autosleep/models"
)

var _ = Describe("BrokerHandler", func() {
	var (
		bindingdb  *memdb.BindingMemDB
		instancedb *memdb.InstanceMemDB

		handler *BrokerHandler
		resp    *httptest.ResponseRecorder
		req     *http.Request
	)

	BeforeEach(func() {
		logger := lagertest.NewTestLogger("broker-handler-test")
		bindingdb = memdb.NewBindingMemDB(logger)
		instancedb = memdb.NewInstanceMemDB(logger)
		resp = httptest.NewRecorder()
		conf.DashboardRedirectURI = ""

		paramReaders := parameters.NewRegistry(conf.DefaultParameters.IdleDuration, conf.DefaultParameters.IgnoreRouteServiceError, logger)
		handler = NewBrokerHandler(logger, conf, bindingdb, instancedb, paramReaders)
	})

	AfterEach(func() {
		Expect(bindingdb.Close()).To(Succeed())
		Expect(instancedb.Close()).To(Succeed())
	})

	Describe("GetBrokerCatalog", func() {
		JustBeforeEach(func() {
			handler.GetBrokerCatalog(resp, req, map[string]string{})
		})
		It("gets the catalog json", func() {
			Expect(resp.Code).To(Equal(http.StatusOK))
			Expect(resp.Body.Bytes()).To(Equal(catalogBytes))
		})
	})

	Describe("CreateServiceInstance", func() {
		var err error
		var instanceCreationReqBody *models.InstanceCreationRequestBody
		var body []byte
		JustBeforeEach(func() {
			req, err = http.NewRequest(http.MethodPut, "", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			handler.CreateServiceInstance(resp, req, map[string]string{"instanceId": testInstanceId})
		})
		BeforeEach(func() {
			instanceCreationReqBody = &models.InstanceCreationRequestBody{
				OrgGUID:   "an-org-guid",
				SpaceGUID: "a-space-guid",
				BrokerCommonRequestBody: models.BrokerCommonRequestBody{
					ServiceID: "autosleep-guid",
					PlanID:    "autosleep-default-plan-id",
				},
			}
		})

		Context("when the request body is not valid json", func() {
			BeforeEach(func() {
				body = []byte("")
			})
			It("fails with 400", func() {
				Expect(resp.Code).To(Equal(http.StatusBadRequest))
				Expect(resp.Body.String()).To(Equal(`{"code":"Bad Request","message":"Invalid request body format"}`))
			})
		})

		Context("when OrgGUID is not provided", func() {
			BeforeEach(func() {
				instanceCreationReqBody.OrgGUID = ""
				body, err = json.Marshal(instanceCreationReqBody)
				Expect(err).NotTo(HaveOccurred())
			})
			It("fails with 400", func() {
				Expect(resp.Code).To(Equal(http.StatusBadRequest))
				Expect(resp.Body.String()).To(Equal(`{"code":"Bad Request","message":"Malformed or missing mandatory data"}`))
			})
		})

		Context("when parameters are invalid", func() {
			BeforeEach(func() {
				instanceCreationReqBody.Parameters = map[string]interface{}{
					"idle-duration":   "not-a-duration",
					"auto-enrollment": "automatic",
				}
				body, err = json.Marshal(instanceCreationReqBody)
				Expect(err).NotTo(HaveOccurred())
			})
			It("fails with 400 naming every offending parameter", func() {
				Expect(resp.Code).To(Equal(http.StatusBadRequest))
				Expect(resp.Body.String()).To(ContainSubstring("idle-duration"))
				Expect(resp.Body.String()).To(ContainSubstring("auto-enrollment"))
				Expect(resp.Body.String()).To(ContainSubstring("choose one between: standard, forced"))
			})
			It("does not store the instance", func() {
				count, e := instancedb.CountInstances()
				Expect(e).NotTo(HaveOccurred())
				Expect(count).To(Equal(0))
			})
		})

		Context("when all mandatory data is present", func() {
			BeforeEach(func() {
				instanceCreationReqBody.Parameters = map[string]interface{}{
					"idle-duration":                "PT30M",
					"exclude-from-auto-enrollment": "^prod-.*$",
				}
				body, err = json.Marshal(instanceCreationReqBody)
				Expect(err).NotTo(HaveOccurred())
			})
			It("succeeds with 201 and stores the instance with defaults applied", func() {
				Expect(resp.Code).To(Equal(http.StatusCreated))
				Expect(resp.Body.String()).To(Equal(`{}`))

				stored, e := instancedb.GetInstance(testInstanceId)
				Expect(e).NotTo(HaveOccurred())
				Expect(stored).NotTo(BeNil())
				Expect(stored.IdleDuration).To(Equal(30 * time.Minute))
				Expect(stored.ExcludeFromAutoEnrollment).To(Equal("^prod-.*$"))
				Expect(stored.AutoEnrollment).To(Equal(models.EnrollmentStandard))
				Expect(stored.OrgGuid).To(Equal("an-org-guid"))
				Expect(stored.SpaceGuid).To(Equal("a-space-guid"))
			})
		})

		Context("when the dashboard redirect uri is configured", func() {
			BeforeEach(func() {
				conf.DashboardRedirectURI = "https://service-dashboard-url.com"
				body, err = json.Marshal(instanceCreationReqBody)
				Expect(err).NotTo(HaveOccurred())
			})
			It("succeeds with 201 and returns dashboard_url", func() {
				Expect(resp.Code).To(Equal(http.StatusCreated))
				Expect(resp.Body.String()).To(Equal(`{"dashboard_url":"https://service-dashboard-url.com/manage/` + testInstanceId + `"}`))
			})
		})

		Context("when an identical instance already exists", func() {
			BeforeEach(func() {
				body, err = json.Marshal(instanceCreationReqBody)
				Expect(err).NotTo(HaveOccurred())
				Expect(instancedb.CreateInstance(&models.ServiceInstance{
					InstanceId:     testInstanceId,
					ServiceId:      "autosleep-guid",
					PlanId:         "autosleep-default-plan-id",
					OrgGuid:        "an-org-guid",
					SpaceGuid:      "a-space-guid",
					IdleDuration:   conf.DefaultParameters.IdleDuration,
					AutoEnrollment: models.EnrollmentStandard,
				})).To(Succeed())
			})
			It("succeeds with 200", func() {
				Expect(resp.Code).To(Equal(http.StatusOK))
				Expect(resp.Body.String()).To(Equal(`{}`))
			})
		})

		Context("when a conflicting instance already exists", func() {
			BeforeEach(func() {
				body, err = json.Marshal(instanceCreationReqBody)
				Expect(err).NotTo(HaveOccurred())
				Expect(instancedb.CreateInstance(&models.ServiceInstance{
					InstanceId:     testInstanceId,
					ServiceId:      "autosleep-guid",
					PlanId:         "autosleep-default-plan-id",
					OrgGuid:        "an-org-guid",
					SpaceGuid:      "a-space-guid",
					IdleDuration:   time.Hour,
					AutoEnrollment: models.EnrollmentForced,
				})).To(Succeed())
			})
			It("fails with 409", func() {
				Expect(resp.Code).To(Equal(http.StatusConflict))
				Expect(resp.Body.String()).To(Equal(`{"code":"Conflict","message":"Service instance with instance_id \"` + testInstanceId + `\" already exists with different parameters"}`))
			})
		})
	})

	Describe("UpdateServiceInstance", func() {
		var err error
		var updateReqBody *models.InstanceUpdateRequestBody
		var body []byte
		JustBeforeEach(func() {
			req, err = http.NewRequest(http.MethodPatch, "", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			handler.UpdateServiceInstance(resp, req, map[string]string{"instanceId": testInstanceId})
		})
		BeforeEach(func() {
			updateReqBody = &models.InstanceUpdateRequestBody{
				BrokerCommonRequestBody: models.BrokerCommonRequestBody{
					ServiceID: "autosleep-guid",
					PlanID:    "autosleep-default-plan-id",
				},
			}
		})

		Context("when the instance does not exist", func() {
			BeforeEach(func() {
				body, err = json.Marshal(updateReqBody)
				Expect(err).NotTo(HaveOccurred())
			})
			It("fails with 404", func() {
				Expect(resp.Code).To(Equal(http.StatusNotFound))
				Expect(resp.Body.String()).To(Equal(`{"code":"Not Found","message":"Service instance not found"}`))
			})
		})

		Context("when the instance exists", func() {
			BeforeEach(func() {
				Expect(instancedb.CreateInstance(&models.ServiceInstance{
					InstanceId:                testInstanceId,
					ServiceId:                 "autosleep-guid",
					PlanId:                    "autosleep-default-plan-id",
					OrgGuid:                   "an-org-guid",
					SpaceGuid:                 "a-space-guid",
					IdleDuration:              conf.DefaultParameters.IdleDuration,
					AutoEnrollment:            models.EnrollmentStandard,
					ExcludeFromAutoEnrollment: "^prod-.*$",
				})).To(Succeed())
			})

			Context("and only the idle duration is updated", func() {
				BeforeEach(func() {
					updateReqBody.Parameters = map[string]interface{}{
						"idle-duration": "PT45M",
					}
					body, err = json.Marshal(updateReqBody)
					Expect(err).NotTo(HaveOccurred())
				})
				It("changes only that field", func() {
					Expect(resp.Code).To(Equal(http.StatusOK))
					Expect(resp.Body.String()).To(Equal(`{}`))

					stored, e := instancedb.GetInstance(testInstanceId)
					Expect(e).NotTo(HaveOccurred())
					Expect(stored.IdleDuration).To(Equal(45 * time.Minute))
					Expect(stored.AutoEnrollment).To(Equal(models.EnrollmentStandard))
					Expect(stored.ExcludeFromAutoEnrollment).To(Equal("^prod-.*$"))
				})
			})

			Context("and the exclusion is reset to blank", func() {
				BeforeEach(func() {
					updateReqBody.Parameters = map[string]interface{}{
						"exclude-from-auto-enrollment": "",
					}
					body, err = json.Marshal(updateReqBody)
					Expect(err).NotTo(HaveOccurred())
				})
				It("clears the stored exclusion", func() {
					Expect(resp.Code).To(Equal(http.StatusOK))

					stored, e := instancedb.GetInstance(testInstanceId)
					Expect(e).NotTo(HaveOccurred())
					Expect(stored.ExcludeFromAutoEnrollment).To(BeEmpty())
				})
			})

			Context("and a parameter is invalid", func() {
				BeforeEach(func() {
					updateReqBody.Parameters = map[string]interface{}{
						"ignore-route-service-error": "maybe",
					}
					body, err = json.Marshal(updateReqBody)
					Expect(err).NotTo(HaveOccurred())
				})
				It("fails with 400 and leaves the instance untouched", func() {
					Expect(resp.Code).To(Equal(http.StatusBadRequest))
					Expect(resp.Body.String()).To(ContainSubstring("must be a boolean value"))

					stored, e := instancedb.GetInstance(testInstanceId)
					Expect(e).NotTo(HaveOccurred())
					Expect(stored.IdleDuration).To(Equal(conf.DefaultParameters.IdleDuration))
				})
			})
		})
	})

	Describe("DeleteServiceInstance", func() {
		JustBeforeEach(func() {
			req = httptest.NewRequest(http.MethodDelete, "/v2/service_instances/"+testInstanceId, nil)
			handler.DeleteServiceInstance(resp, req, map[string]string{"instanceId": testInstanceId})
		})

		Context("when the instance does not exist", func() {
			It("fails with 410", func() {
				Expect(resp.Code).To(Equal(http.StatusGone))
				Expect(resp.Body.String()).To(Equal(`{"code":"Gone","message":"Service Instance Doesn't Exist"}`))
			})
		})

		Context("when the instance exists with bindings", func() {
			BeforeEach(func() {
				Expect(instancedb.CreateInstance(&models.ServiceInstance{
					InstanceId:     testInstanceId,
					ServiceId:      "autosleep-guid",
					PlanId:         "autosleep-default-plan-id",
					OrgGuid:        "an-org-guid",
					SpaceGuid:      "a-space-guid",
					IdleDuration:   conf.DefaultParameters.IdleDuration,
					AutoEnrollment: models.EnrollmentStandard,
				})).To(Succeed())
				Expect(bindingdb.SaveBinding(&models.ApplicationBinding{
					BindingId:         testBindingId,
					ServiceInstanceId: testInstanceId,
					AppGuid:           testAppId,
				})).To(Succeed())
				Expect(bindingdb.SaveBinding(&models.ApplicationBinding{
					BindingId:         "binding-of-another-instance",
					ServiceInstanceId: "another-instance-id",
					AppGuid:           testAppId,
				})).To(Succeed())
			})
			It("removes the instance and its bindings only", func() {
				Expect(resp.Code).To(Equal(http.StatusOK))
				Expect(resp.Body.String()).To(Equal(`{}`))

				stored, e := instancedb.GetInstance(testInstanceId)
				Expect(e).NotTo(HaveOccurred())
				Expect(stored).To(BeNil())

				exists, e := bindingdb.BindingExists(testBindingId)
				Expect(e).NotTo(HaveOccurred())
				Expect(exists).To(BeFalse())

				exists, e = bindingdb.BindingExists("binding-of-another-instance")
				Expect(e).NotTo(HaveOccurred())
				Expect(exists).To(BeTrue())
			})
		})
	})

	Describe("BindServiceInstance", func() {
		var err error
		var bindingReqBody *models.BindingRequestBody
		var body []byte
		JustBeforeEach(func() {
			req, err = http.NewRequest(http.MethodPut, "", bytes.NewReader(body))
			Expect(err).NotTo(HaveOccurred())
			handler.BindServiceInstance(resp, req, map[string]string{"instanceId": testInstanceId, "bindingId": testBindingId})
		})
		BeforeEach(func() {
			bindingReqBody = &models.BindingRequestBody{
				AppGUID: testAppId,
				BrokerCommonRequestBody: models.BrokerCommonRequestBody{
					ServiceID: "autosleep-guid",
					PlanID:    "autosleep-default-plan-id",
				},
			}
		})

		Context("when the request body is not valid json", func() {
			BeforeEach(func() {
				body = []byte("")
			})
			It("fails with 400", func() {
				Expect(resp.Code).To(Equal(http.StatusBadRequest))
				Expect(resp.Body.String()).To(Equal(`{"code":"Bad Request","message":"Invalid request body format"}`))
			})
		})

		Context("when AppGUID is not provided", func() {
			BeforeEach(func() {
				bindingReqBody.AppGUID = ""
				body, err = json.Marshal(bindingReqBody)
				Expect(err).NotTo(HaveOccurred())
			})
			It("fails with 400", func() {
				Expect(resp.Code).To(Equal(http.StatusBadRequest))
				Expect(resp.Body.String()).To(Equal(`{"code":"Bad Request","message":"Malformed or missing mandatory data"}`))
			})
		})

		Context("when the instance does not exist", func() {
			BeforeEach(func() {
				body, err = json.Marshal(bindingReqBody)
				Expect(err).NotTo(HaveOccurred())
			})
			It("fails with 404", func() {
				Expect(resp.Code).To(Equal(http.StatusNotFound))
				Expect(resp.Body.String()).To(Equal(`{"code":"Not Found","message":"Service instance not found"}`))
			})
		})

		Context("when the instance exists", func() {
			BeforeEach(func() {
				Expect(instancedb.CreateInstance(&models.ServiceInstance{
					InstanceId:     testInstanceId,
					ServiceId:      "autosleep-guid",
					PlanId:         "autosleep-default-plan-id",
					OrgGuid:        "an-org-guid",
					SpaceGuid:      "a-space-guid",
					IdleDuration:   conf.DefaultParameters.IdleDuration,
					AutoEnrollment: models.EnrollmentStandard,
				})).To(Succeed())
			})

			Context("and the request is well formed", func() {
				BeforeEach(func() {
					body, err = json.Marshal(bindingReqBody)
					Expect(err).NotTo(HaveOccurred())
				})
				It("succeeds with 201 and stores the binding", func() {
					Expect(resp.Code).To(Equal(http.StatusCreated))
					Expect(resp.Body.String()).To(Equal(`{}`))

					stored, e := bindingdb.GetBinding(testBindingId)
					Expect(e).NotTo(HaveOccurred())
					Expect(stored).NotTo(BeNil())
					Expect(stored.ServiceInstanceId).To(Equal(testInstanceId))
					Expect(stored.AppGuid).To(Equal(testAppId))
				})
			})

			Context("and the state parameter is invalid", func() {
				BeforeEach(func() {
					bindingReqBody.Parameters = map[string]interface{}{
						"state": "retired",
					}
					body, err = json.Marshal(bindingReqBody)
					Expect(err).NotTo(HaveOccurred())
				})
				It("fails with 400 listing the accepted states", func() {
					Expect(resp.Code).To(Equal(http.StatusBadRequest))
					Expect(resp.Body.String()).To(ContainSubstring("choose one between: enrolled, backoffice_enrolled"))
				})
			})

			Context("and the binding already exists for another application", func() {
				BeforeEach(func() {
					Expect(bindingdb.SaveBinding(&models.ApplicationBinding{
						BindingId:         testBindingId,
						ServiceInstanceId: testInstanceId,
						AppGuid:           "another-app-guid",
					})).To(Succeed())
					body, err = json.Marshal(bindingReqBody)
					Expect(err).NotTo(HaveOccurred())
				})
				It("fails with 409", func() {
					Expect(resp.Code).To(Equal(http.StatusConflict))
					Expect(resp.Body.String()).To(Equal(`{"code":"Conflict","message":"Service binding with binding_id \"` + testBindingId + `\" already exists for a different application"}`))
				})
			})

			Context("and the binding already exists for the same application", func() {
				BeforeEach(func() {
					Expect(bindingdb.SaveBinding(&models.ApplicationBinding{
						BindingId:         testBindingId,
						ServiceInstanceId: testInstanceId,
						AppGuid:           testAppId,
					})).To(Succeed())
					body, err = json.Marshal(bindingReqBody)
					Expect(err).NotTo(HaveOccurred())
				})
				It("succeeds with 201", func() {
					Expect(resp.Code).To(Equal(http.StatusCreated))

					count, e := bindingdb.CountBindings()
					Expect(e).NotTo(HaveOccurred())
					Expect(count).To(Equal(1))
				})
			})
		})
	})

	Describe("UnbindServiceInstance", func() {
		JustBeforeEach(func() {
			req = httptest.NewRequest(http.MethodDelete, "/v2/service_instances/"+testInstanceId+"/service_bindings/"+testBindingId, nil)
			handler.UnbindServiceInstance(resp, req, map[string]string{"instanceId": testInstanceId, "bindingId": testBindingId})
		})

		Context("when the binding does not exist", func() {
			It("fails with 410", func() {
				Expect(resp.Code).To(Equal(http.StatusGone))
				Expect(resp.Body.String()).To(Equal(`{"code":"Gone","message":"Service Binding Doesn't Exist"}`))
			})
		})

		Context("when the binding exists", func() {
			BeforeEach(func() {
				Expect(bindingdb.SaveBinding(&models.ApplicationBinding{
					BindingId:         testBindingId,
					ServiceInstanceId: testInstanceId,
					AppGuid:           testAppId,
				})).To(Succeed())
			})
			It("succeeds with 200 and removes the binding", func() {
				Expect(resp.Code).To(Equal(http.StatusOK))
				Expect(resp.Body.String()).To(Equal(`{}`))

				exists, e := bindingdb.BindingExists(testBindingId)
				Expect(e).NotTo(HaveOccurred())
				Expect(exists).To(BeFalse())
			})
		})
	})
})
