// Package service contains the workflow coordinator: it drives batches
// of vehicles through the onboarding, transfer, disconnect and delete
// pipelines, aggregating per-vehicle outcomes and retrying transient
// not-yet-complete states with bounded polling.
package service

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/openfleet/fleetd/core"
	"github.com/openfleet/fleetd/ports"
)

// DefaultCountryCode is applied to verification requests that do not
// specify one.
const DefaultCountryCode = "USA"

// authOracle scopes a call to the selected oracle with bearer auth, the
// scoping used by every workflow endpoint.
var authOracle = ports.CallOptions{Auth: true, Oracle: true}

// Onboarding coordinates the vehicle workflows. Phases run strictly in
// order and each phase's failure stops the job; the only tolerated
// partial failure is the mint flow's per-item signing drop.
type Onboarding struct {
	api    ports.APIClient
	signer ports.Signer
	events ports.Publisher
	log    *zap.Logger

	sleep sleepFunc
}

// NewOnboarding creates a workflow coordinator. events may be nil when
// no progress consumers exist.
func NewOnboarding(api ports.APIClient, signer ports.Signer, events ports.Publisher, logger *zap.Logger) *Onboarding {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Onboarding{
		api:    api,
		signer: signer,
		events: events,
		log:    logger,
		sleep:  sleepContext,
	}
}

// OnboardRequest describes one onboarding job.
type OnboardRequest struct {
	VINs        []core.VIN
	Sacd        []core.SacdGrant
	CountryCode string
	Definition  string
	OracleOwner bool
}

type verifyVehicle struct {
	VIN         core.VIN `json:"vin"`
	CountryCode string   `json:"countryCode"`
	Definition  string   `json:"definition,omitempty"`
}

type verifyRequest struct {
	Vins []verifyVehicle `json:"vins"`
}

type statusesResult struct {
	Statuses []core.VehicleStatus `json:"statuses"`
}

type mintDataResult struct {
	VinMintingData []core.MintData `json:"vinMintingData"`
}

type mintRequest struct {
	VinMintingData    []core.MintData  `json:"vinMintingData"`
	Sacd              []core.SacdGrant `json:"sacd,omitempty"`
	EnableOracleOwner bool             `json:"enableOracleOwner"`
}

// OnboardVINs drives a batch through validate, verify, mint-data fetch,
// signing and mint submission. Returns nil when every vehicle reached
// terminal success.
func (s *Onboarding) OnboardVINs(ctx context.Context, job *Job, req OnboardRequest) error {
	if req.CountryCode == "" {
		req.CountryCode = DefaultCountryCode
	}

	// Validation is local and fail-fast: no network call happens when
	// any VIN has the wrong length.
	allValid := true
	for _, vin := range req.VINs {
		details := "Valid VIN"
		if vin.Validate() != nil {
			details = "Invalid VIN"
			allValid = false
		}
		job.Table().Add(vin, core.StatusUnknown, details)
	}
	if !allValid {
		return ErrInvalidVINs
	}

	s.progress(ctx, job, "verify", 0, "", "Verifying vehicles")
	if err := s.verifyVehicles(ctx, job, req); err != nil {
		return err
	}

	s.progress(ctx, job, "mint-data", 0, "", "Fetching minting data")
	mintData, err := s.getMintingData(ctx, req)
	if err != nil {
		return err
	}
	if len(mintData) == 0 {
		return ErrNoMintData
	}

	s.progress(ctx, job, "sign", 0, "", "Signing minting data")
	signed := s.signMintingData(ctx, mintData)

	s.progress(ctx, job, "mint", 0, "", "Minting vehicles")
	return s.submitMintingData(ctx, job, signed, req.Sacd, req.OracleOwner)
}

// verifyVehicles submits the batch for verification and polls until
// every vehicle reports terminal success.
func (s *Onboarding) verifyVehicles(ctx context.Context, job *Job, req OnboardRequest) error {
	payload := verifyRequest{Vins: make([]verifyVehicle, len(req.VINs))}
	for i, vin := range req.VINs {
		payload.Vins[i] = verifyVehicle{VIN: vin, CountryCode: req.CountryCode, Definition: req.Definition}
	}

	if err := s.api.Call(ctx, http.MethodPost, "/vehicle/verify", payload, nil, authOracle); err != nil {
		return err
	}

	path := "/vehicle/verify?" + vinsQuery(req.VINs)
	err := pollUntil(ctx, verifyPoll, s.sleep, func(ctx context.Context, attempt int) (bool, error) {
		var status statusesResult
		if err := s.api.Call(ctx, http.MethodGet, path, nil, &status, authOracle); err != nil {
			return false, err
		}
		job.Table().Update(status.Statuses)
		return core.AllSuccess(status.Statuses), nil
	})
	if errors.Is(err, errPollExhausted) {
		return ErrVerifyFailed
	}
	return err
}

func (s *Onboarding) getMintingData(ctx context.Context, req OnboardRequest) ([]core.MintData, error) {
	q := url.Values{}
	q.Set("enableOracleOwner", strconv.FormatBool(req.OracleOwner))
	q.Set("vins", core.JoinVINs(req.VINs))

	var result mintDataResult
	if err := s.api.Call(ctx, http.MethodGet, "/vehicle/mint?"+q.Encode(), nil, &result, authOracle); err != nil {
		return nil, err
	}
	return result.VinMintingData, nil
}

// signMintingData signs every item carrying a typed-data payload. Items
// whose signing fails are dropped from the batch rather than failing it;
// items without typed data belong to the oracle-owner flow and pass
// through unsigned.
func (s *Onboarding) signMintingData(ctx context.Context, mintData []core.MintData) []core.MintData {
	signed := make([]core.MintData, 0, len(mintData))
	for _, d := range mintData {
		if !d.HasTypedData() {
			signed = append(signed, d)
			continue
		}

		signature, err := s.signer.SignTypedData(ctx, d.TypedData)
		if err != nil {
			s.log.Warn("dropping vehicle from mint batch, signing failed",
				zap.String("vin", string(d.VIN)), zap.Error(err))
			continue
		}
		d.Signature = signature
		signed = append(signed, d)
	}
	return signed
}

// submitMintingData posts the signed batch and polls mint status.
func (s *Onboarding) submitMintingData(ctx context.Context, job *Job, mintData []core.MintData, sacd []core.SacdGrant, oracleOwner bool) error {
	payload := mintRequest{VinMintingData: mintData, EnableOracleOwner: oracleOwner}
	if len(sacd) > 0 {
		payload.Sacd = sacd
	}

	if err := s.api.Call(ctx, http.MethodPost, "/vehicle/mint", payload, nil, authOracle); err != nil {
		return err
	}

	vins := make([]core.VIN, len(mintData))
	for i, d := range mintData {
		vins[i] = d.VIN
	}

	path := "/vehicle/mint/status?" + vinsQuery(vins)
	err := pollUntil(ctx, mintPoll, s.sleep, func(ctx context.Context, attempt int) (bool, error) {
		var status statusesResult
		if err := s.api.Call(ctx, http.MethodGet, path, nil, &status, authOracle); err != nil {
			return false, err
		}
		job.Table().Update(status.Statuses)
		return core.AllSuccess(status.Statuses), nil
	})
	if errors.Is(err, errPollExhausted) {
		return ErrMintFailed
	}
	return err
}

// progress records the job's current message and, when a publisher is
// wired, emits a progress event. Publish failures are logged only.
func (s *Onboarding) progress(ctx context.Context, job *Job, phase string, attempt int, vin core.VIN, message string) {
	job.SetMessage(message)
	if s.events == nil {
		return
	}
	event := core.ProgressEvent{
		JobID:     job.ID,
		Operation: job.Operation,
		Phase:     phase,
		Attempt:   attempt,
		VIN:       vin,
		Message:   message,
		At:        time.Now(),
	}
	if err := s.events.PublishProgress(ctx, event); err != nil {
		s.log.Warn("failed to publish progress event", zap.String("job_id", job.ID), zap.Error(err))
	}
}

func vinsQuery(vins []core.VIN) string {
	return url.Values{"vins": []string{core.JoinVINs(vins)}}.Encode()
}
