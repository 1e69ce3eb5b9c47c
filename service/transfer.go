package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/ethereum/go-ethereum/common"

	"github.com/openfleet/fleetd/core"
)

// TransferRequest moves a single vehicle to a new owner wallet.
type TransferRequest struct {
	IMEI                string
	TargetWalletAddress common.Address
}

type transferSubmitResult struct {
	JobID string `json:"jobId"`
}

type transferStatus struct {
	VIN     core.VIN `json:"vin"`
	IMEI    string   `json:"imei"`
	Status  string   `json:"status"`
	Details string   `json:"details"`
}

// TransferVehicle fetches the transfer user operation, signs it, submits
// it and polls the resulting backend job until terminal success. Each
// phase failure short-circuits with that phase's error; earlier phases
// are never retried.
func (s *Onboarding) TransferVehicle(ctx context.Context, job *Job, req TransferRequest) error {
	s.progress(ctx, job, "transfer-data", 0, "", "Fetching transfer data")
	data, err := s.getTransferData(ctx, req)
	if err != nil {
		return err
	}
	job.Table().Add(data.VIN, core.StatusUnknown, "Transfer pending")

	s.progress(ctx, job, "sign", 0, data.VIN, "Signing transfer data")
	signature, err := s.signer.SignUserOperation(ctx, data.UserOperation)
	if err != nil {
		return fmt.Errorf("failed to sign transfer data: %w", err)
	}
	data.Signature = signature

	return s.submitTransferData(ctx, job, data)
}

func (s *Onboarding) getTransferData(ctx context.Context, req TransferRequest) (core.UserOperationData, error) {
	q := url.Values{}
	q.Set("imei", req.IMEI)
	q.Set("targetWalletAddress", req.TargetWalletAddress.Hex())

	var data core.UserOperationData
	if err := s.api.Call(ctx, http.MethodGet, "/vehicle/transfer?"+q.Encode(), nil, &data, authOracle); err != nil {
		return core.UserOperationData{}, err
	}
	return data, nil
}

// submitTransferData posts the signed operation and polls its status by
// the returned job id, publishing a progress event on every attempt.
func (s *Onboarding) submitTransferData(ctx context.Context, job *Job, data core.UserOperationData) error {
	var submitted transferSubmitResult
	if err := s.api.Call(ctx, http.MethodPost, "/vehicle/transfer", data, &submitted, authOracle); err != nil {
		return err
	}

	path := "/vehicle/transfer/status?" + url.Values{"jobId": []string{submitted.JobID}}.Encode()
	err := pollUntil(ctx, transferPoll, s.sleep, func(ctx context.Context, attempt int) (bool, error) {
		var status transferStatus
		if err := s.api.Call(ctx, http.MethodGet, path, nil, &status, authOracle); err != nil {
			return false, err
		}

		if status.VIN != "" {
			job.Table().Update([]core.VehicleStatus{{VIN: status.VIN, Status: status.Status, Details: status.Details}})
		}

		current := status.Status
		if current == "" {
			current = core.StatusUnknown
		}
		s.progress(ctx, job, "transfer", attempt, status.VIN,
			fmt.Sprintf("Transfer attempt %d of %d: %s", attempt, transferPoll.MaxAttempts, current))

		return status.Status == core.StatusSuccess, nil
	})
	if errors.Is(err, errPollExhausted) {
		return ErrTransferTimeout
	}
	return err
}
