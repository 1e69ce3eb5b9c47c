package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/openfleet/fleetd/core"
)

// removal parameterizes the two vehicle-removal pipelines, which share
// shape but differ in endpoints, payload keys and verdicts.
type removal struct {
	operation  string
	dataKey    string
	emptyErr   error
	timeoutErr error
}

var (
	disconnectRemoval = removal{
		operation:  "disconnect",
		dataKey:    "vinDisconnectData",
		emptyErr:   ErrNoDisconnectData,
		timeoutErr: ErrDisconnectTimeout,
	}
	deleteRemoval = removal{
		operation:  "delete",
		dataKey:    "vinDeleteData",
		emptyErr:   ErrNoDeleteData,
		timeoutErr: ErrDeleteTimeout,
	}
)

// DisconnectVINs detaches the vehicles from their devices. Unlike the
// mint flow, a single signing failure aborts the whole batch.
func (s *Onboarding) DisconnectVINs(ctx context.Context, job *Job, vins []core.VIN) error {
	return s.removeVehicles(ctx, job, vins, disconnectRemoval)
}

// DeleteVINs removes the vehicles entirely. Same strict signing policy
// as DisconnectVINs.
func (s *Onboarding) DeleteVINs(ctx context.Context, job *Job, vins []core.VIN) error {
	return s.removeVehicles(ctx, job, vins, deleteRemoval)
}

func (s *Onboarding) removeVehicles(ctx context.Context, job *Job, vins []core.VIN, r removal) error {
	for _, vin := range vins {
		job.Table().Add(vin, core.StatusUnknown, core.StatusUnknown)
	}

	s.progress(ctx, job, r.operation+"-data", 0, "", "Fetching "+r.operation+" data")
	data, err := s.getRemovalData(ctx, vins, r)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return r.emptyErr
	}

	s.progress(ctx, job, "sign", 0, "", "Signing "+r.operation+" data")
	signed, err := s.signRemovalData(ctx, data, r)
	if err != nil {
		return err
	}

	s.progress(ctx, job, r.operation, 0, "", "Submitting "+r.operation+" data")
	return s.submitRemovalData(ctx, job, signed, r)
}

func (s *Onboarding) getRemovalData(ctx context.Context, vins []core.VIN, r removal) ([]core.UserOperationData, error) {
	var result map[string]json.RawMessage
	if err := s.api.Call(ctx, http.MethodGet, "/vehicle/"+r.operation+"?"+vinsQuery(vins), nil, &result, authOracle); err != nil {
		return nil, err
	}

	var data []core.UserOperationData
	if raw, ok := result[r.dataKey]; ok {
		if err := json.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to decode %s data: %w", r.operation, err)
		}
	}
	return data, nil
}

// signRemovalData signs the user operations sequentially. The first
// failure aborts the batch with a VIN-specific error and nothing is
// submitted.
func (s *Onboarding) signRemovalData(ctx context.Context, data []core.UserOperationData, r removal) ([]core.UserOperationData, error) {
	signed := make([]core.UserOperationData, 0, len(data))
	for _, d := range data {
		signature, err := s.signer.SignUserOperation(ctx, d.UserOperation)
		if err != nil {
			return nil, fmt.Errorf("failed to sign %s data for VIN %s: %w", r.operation, d.VIN, err)
		}
		d.Signature = signature
		signed = append(signed, d)
	}
	return signed, nil
}

func (s *Onboarding) submitRemovalData(ctx context.Context, job *Job, data []core.UserOperationData, r removal) error {
	payload := map[string][]core.UserOperationData{r.dataKey: data}
	if err := s.api.Call(ctx, http.MethodPost, "/vehicle/"+r.operation, payload, nil, authOracle); err != nil {
		return err
	}

	vins := make([]core.VIN, len(data))
	for i, d := range data {
		vins[i] = d.VIN
	}

	path := "/vehicle/" + r.operation + "/status?" + vinsQuery(vins)
	err := pollUntil(ctx, removalPoll, s.sleep, func(ctx context.Context, attempt int) (bool, error) {
		var status statusesResult
		if err := s.api.Call(ctx, http.MethodGet, path, nil, &status, authOracle); err != nil {
			return false, err
		}
		job.Table().Update(status.Statuses)
		return core.AllSuccess(status.Statuses), nil
	})
	if errors.Is(err, errPollExhausted) {
		return r.timeoutErr
	}
	return err
}
