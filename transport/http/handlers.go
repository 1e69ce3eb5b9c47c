package http

import (
	"context"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/openfleet/fleetd/core"
	"github.com/openfleet/fleetd/service"
)

// Handlers contains HTTP handlers for the fleet console endpoints
type Handlers struct {
	onboarding *service.Onboarding
	jobs       *service.JobRegistry
	directory  *service.Directory
	settings   *service.Settings
	fleet      *service.Fleet
	identity   *service.Identity
	log        *zap.Logger
}

// NewHandlers creates the handler set
func NewHandlers(
	onboarding *service.Onboarding,
	jobs *service.JobRegistry,
	directory *service.Directory,
	settings *service.Settings,
	fleet *service.Fleet,
	identity *service.Identity,
	logger *zap.Logger,
) *Handlers {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handlers{
		onboarding: onboarding,
		jobs:       jobs,
		directory:  directory,
		settings:   settings,
		fleet:      fleet,
		identity:   identity,
		log:        logger,
	}
}

type sacdRequest struct {
	Grantee     string   `json:"grantee" binding:"required"`
	Permissions []string `json:"permissions"`
	Expiration  int64    `json:"expiration"`
	Source      string   `json:"source"`
}

type onboardRequest struct {
	VINs        []string      `json:"vins" binding:"required"`
	CountryCode string        `json:"countryCode"`
	Definition  string        `json:"definition"`
	OracleOwner bool          `json:"oracleOwner"`
	Sacd        []sacdRequest `json:"sacd"`
}

// Onboard starts an onboarding job for a VIN batch
func (h *Handlers) Onboard(c *gin.Context) {
	var req onboardRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	grants, err := buildGrants(req.Sacd)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vins := make([]core.VIN, len(req.VINs))
	for i, v := range req.VINs {
		vins[i] = core.VIN(v)
	}

	h.start(c, "onboard", func(ctx context.Context, job *service.Job) error {
		return h.onboarding.OnboardVINs(ctx, job, service.OnboardRequest{
			VINs:        vins,
			Sacd:        grants,
			CountryCode: req.CountryCode,
			Definition:  req.Definition,
			OracleOwner: req.OracleOwner,
		})
	})
}

type transferRequest struct {
	IMEI                string `json:"imei" binding:"required"`
	TargetWalletAddress string `json:"targetWalletAddress" binding:"required"`
}

// Transfer starts a transfer job for a single vehicle
func (h *Handlers) Transfer(c *gin.Context) {
	var req transferRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if !common.IsHexAddress(req.TargetWalletAddress) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid target wallet address"})
		return
	}

	h.start(c, "transfer", func(ctx context.Context, job *service.Job) error {
		return h.onboarding.TransferVehicle(ctx, job, service.TransferRequest{
			IMEI:                req.IMEI,
			TargetWalletAddress: common.HexToAddress(req.TargetWalletAddress),
		})
	})
}

type vinsRequest struct {
	VINs []string `json:"vins" binding:"required"`
}

// Disconnect starts a disconnect job for a VIN batch
func (h *Handlers) Disconnect(c *gin.Context) {
	h.startRemoval(c, "disconnect", h.onboarding.DisconnectVINs)
}

// Delete starts a delete job for a VIN batch
func (h *Handlers) Delete(c *gin.Context) {
	h.startRemoval(c, "delete", h.onboarding.DeleteVINs)
}

func (h *Handlers) startRemoval(c *gin.Context, operation string, run func(context.Context, *service.Job, []core.VIN) error) {
	var req vinsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}

	vins := make([]core.VIN, len(req.VINs))
	for i, v := range req.VINs {
		vins[i] = core.VIN(v)
	}

	h.start(c, operation, func(ctx context.Context, job *service.Job) error {
		return run(ctx, job, vins)
	})
}

// start registers a job and runs the workflow in the background. A job
// runs to completion once started; the detached context preserves that.
func (h *Handlers) start(c *gin.Context, operation string, run func(context.Context, *service.Job) error) {
	job := service.NewJob(operation)
	h.jobs.Add(job)

	go func() {
		err := run(context.Background(), job)
		job.Finish(err)
		if err != nil {
			h.log.Warn("workflow job failed",
				zap.String("job_id", job.ID), zap.String("operation", operation), zap.Error(err))
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"job_id": job.ID})
}

// JobStatus returns a job's current state and per-vehicle statuses
func (h *Handlers) JobStatus(c *gin.Context) {
	job, ok := h.jobs.Get(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Job not found"})
		return
	}
	c.JSON(http.StatusOK, job.Snapshot())
}

// Oracles lists the available oracles
func (h *Handlers) Oracles(c *gin.Context) {
	oracles, err := h.directory.FetchOracles(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, oracles)
}

// SelectOracle selects the oracle for subsequent calls
func (h *Handlers) SelectOracle(c *gin.Context) {
	var req struct {
		OracleID string `json:"oracleId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	if err := h.directory.SelectOracle(c.Request.Context(), req.OracleID); err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
		return
	}
	c.Status(http.StatusOK)
}

// Tenants lists tenants under the selected oracle
func (h *Handlers) Tenants(c *gin.Context) {
	tenants, err := h.directory.FetchTenants(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, tenants)
}

// SelectTenant selects the tenant scope
func (h *Handlers) SelectTenant(c *gin.Context) {
	var req struct {
		TenantID string `json:"tenantId" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request"})
		return
	}
	h.directory.SelectTenant(c.Request.Context(), req.TenantID)
	c.Status(http.StatusOK)
}

// PublicSettings returns the unauthenticated application settings
func (h *Handlers) PublicSettings(c *gin.Context) {
	settings, err := h.settings.FetchPublicSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// Settings returns the environment settings for the selected oracle
func (h *Handlers) Settings(c *gin.Context) {
	settings, err := h.settings.FetchPrivateSettings(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, settings)
}

// Account returns the account record for an email address
func (h *Handlers) Account(c *gin.Context) {
	account, err := h.settings.FetchAccountInfo(c.Request.Context(), c.Param("email"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, account)
}

// Groups lists the fleet groups for the selected tenant
func (h *Handlers) Groups(c *gin.Context) {
	groups, err := h.fleet.Groups(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, groups)
}

// VehicleIdentity returns the on-chain identity record for a vehicle
func (h *Handlers) VehicleIdentity(c *gin.Context) {
	identity, err := h.identity.Vehicle(c.Request.Context(), c.Param("tokenId"))
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, identity)
}

// buildGrants converts the request's grant descriptions into domain
// grants, defaulting permissions and expiry when unspecified.
func buildGrants(requests []sacdRequest) ([]core.SacdGrant, error) {
	grants := make([]core.SacdGrant, 0, len(requests))
	for _, r := range requests {
		if !common.IsHexAddress(r.Grantee) {
			return nil, &core.APIError{Message: "Invalid grantee address: " + r.Grantee}
		}

		permissions := core.DefaultPermissions()
		if len(r.Permissions) > 0 {
			permissions = make(map[core.Permission]bool, len(r.Permissions))
			for _, name := range r.Permissions {
				p, err := core.ParsePermission(name)
				if err != nil {
					return nil, err
				}
				permissions[p] = true
			}
		}

		expiration := time.Unix(r.Expiration, 0)
		if r.Expiration == 0 {
			expiration = time.Now().AddDate(1, 0, 0)
		}

		grants = append(grants, core.NewSacdGrant(common.HexToAddress(r.Grantee), permissions, expiration, r.Source))
	}
	return grants, nil
}
