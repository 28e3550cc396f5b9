// internal/handlers/renewal_test.go
package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/assetops/license-inventory/internal/database"
	"github.com/assetops/license-inventory/internal/models"
	"github.com/assetops/license-inventory/internal/services"
)

type RenewalHandlerTestSuite struct {
	suite.Suite
	db     *gorm.DB
	router *gin.Engine
}

func (suite *RenewalHandlerTestSuite) SetupTest() {
	gin.SetMode(gin.TestMode)

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	suite.Require().NoError(err)
	suite.Require().NoError(database.Migrate(db))
	suite.db = db

	audit := services.NewAuditService(db)
	compliance := services.NewComplianceService(db, audit)
	renewalService := services.NewRenewalService(db, audit, compliance)
	handler := NewRenewalHandler(renewalService)

	suite.router = gin.New()
	// Stand-in for the JWT middleware
	suite.router.Use(func(c *gin.Context) {
		c.Set("username", "finance-user")
		c.Set("role", string(models.RoleFinance))
	})
	suite.router.GET("/renewals", handler.GetRenewals)
	suite.router.POST("/renewals", handler.CreateRenewal)
	suite.router.PUT("/renewals/:id/status", handler.DecideRenewal)
	suite.router.DELETE("/renewals/:id", handler.DeleteRenewal)
}

func (suite *RenewalHandlerTestSuite) seedRenewal() *models.Renewal {
	license := &models.License{
		ProductName:       "Photoshop",
		Vendor:            "Adobe",
		LicenseType:       models.LicenseTypePerUser,
		TotalEntitlements: 10,
		PurchaseDate:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Cost:              1200,
		Currency:          "USD",
	}
	suite.Require().NoError(suite.db.Create(license).Error)

	renewal := &models.Renewal{
		LicenseID:    license.ID,
		SoftwareName: "Photoshop",
		Status:       models.RenewalStatusPending,
		DueDate:      time.Now().UTC().Add(14 * 24 * time.Hour),
		Cost:         1200,
	}
	suite.Require().NoError(suite.db.Create(renewal).Error)
	return renewal
}

func (suite *RenewalHandlerTestSuite) decide(id, status string) *httptest.ResponseRecorder {
	body, _ := json.Marshal(map[string]string{"status": status})
	req, _ := http.NewRequest("PUT", "/renewals/"+id+"/status", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	return w
}

func (suite *RenewalHandlerTestSuite) TestDecideRenewal_Approve() {
	renewal := suite.seedRenewal()

	w := suite.decide(renewal.ID.String(), "approved")
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	assert.True(suite.T(), response["success"].(bool))

	var updated models.Renewal
	suite.Require().NoError(suite.db.First(&updated, "id = ?", renewal.ID).Error)
	assert.Equal(suite.T(), models.RenewalStatusApproved, updated.Status)
}

func (suite *RenewalHandlerTestSuite) TestDecideRenewal_ConflictOnFlip() {
	renewal := suite.seedRenewal()

	suite.decide(renewal.ID.String(), "approved")
	w := suite.decide(renewal.ID.String(), "rejected")
	assert.Equal(suite.T(), http.StatusConflict, w.Code)
}

func (suite *RenewalHandlerTestSuite) TestDecideRenewal_NotFound() {
	w := suite.decide("7f9c8d3e-0000-4000-8000-000000000000", "approved")
	assert.Equal(suite.T(), http.StatusNotFound, w.Code)
}

func (suite *RenewalHandlerTestSuite) TestDecideRenewal_InvalidID() {
	w := suite.decide("not-a-uuid", "approved")
	assert.Equal(suite.T(), http.StatusBadRequest, w.Code)
}

func (suite *RenewalHandlerTestSuite) TestCreateAndListRenewals() {
	license := &models.License{
		ProductName:       "Slack",
		Vendor:            "Salesforce",
		LicenseType:       models.LicenseTypeSubscription,
		TotalEntitlements: 50,
		PurchaseDate:      time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC),
		Cost:              800,
		Currency:          "USD",
	}
	suite.Require().NoError(suite.db.Create(license).Error)

	body, _ := json.Marshal(map[string]interface{}{
		"license_id":    license.ID.String(),
		"software_name": "Slack",
		"due_date":      time.Now().UTC().Add(30 * 24 * time.Hour).Format(time.RFC3339),
		"cost":          960,
	})
	req, _ := http.NewRequest("POST", "/renewals", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")

	w := httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(suite.T(), http.StatusCreated, w.Code)

	req, _ = http.NewRequest("GET", "/renewals", nil)
	w = httptest.NewRecorder()
	suite.router.ServeHTTP(w, req)
	assert.Equal(suite.T(), http.StatusOK, w.Code)

	var response map[string]interface{}
	suite.Require().NoError(json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Len(suite.T(), data["renewals"], 1)
}

func TestRenewalHandlerSuite(t *testing.T) {
	suite.Run(t, new(RenewalHandlerTestSuite))
}
