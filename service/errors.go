package service

import "errors"

// Workflow verdicts displayed verbatim by the console. Transport errors
// from individual calls propagate with their own messages; these cover
// the coordinator-level failures.
var (
	// ErrInvalidVINs is returned when validation rejects the batch before any network call
	ErrInvalidVINs = errors.New("Some of the VINs are not valid")

	// ErrVerifyFailed is returned when the verify poll budget is exhausted
	ErrVerifyFailed = errors.New("Failed to verify at least one VIN")

	// ErrNoMintData is returned when the mint-data fetch yields nothing
	ErrNoMintData = errors.New("Failed to fetch minting data")

	// ErrMintFailed is returned when the mint poll budget is exhausted
	ErrMintFailed = errors.New("Failed to onboard at least one VIN")

	// ErrNoDisconnectData is returned when the disconnect-data fetch yields nothing
	ErrNoDisconnectData = errors.New("Failed to fetch disconnect data")

	// ErrNoDeleteData is returned when the delete-data fetch yields nothing
	ErrNoDeleteData = errors.New("Failed to fetch delete data")

	// ErrTransferTimeout is returned when transfer polling exhausts its budget
	ErrTransferTimeout = errors.New("Transfer operation timed out")

	// ErrDisconnectTimeout is returned when disconnect polling exhausts its budget
	ErrDisconnectTimeout = errors.New("Disconnect operation timed out")

	// ErrDeleteTimeout is returned when delete polling exhausts its budget
	ErrDeleteTimeout = errors.New("Delete operation timed out")
)
