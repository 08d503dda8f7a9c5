package influx

import "errors"

// Sentinel errors for InfluxDB operations.
//
// These errors can be checked using errors.Is() for specific handling:
//
//	if errors.Is(res.Err, influx.ErrUnauthorized) {
//	    // Fix the credentials
//	}
var (
	// ErrUnauthorized indicates the server rejected the credentials.
	ErrUnauthorized = errors.New("influx: invalid credentials")

	// ErrNotFound indicates the database or bucket does not exist.
	ErrNotFound = errors.New("influx: database not found")

	// ErrUnexpectedResponse indicates a response that is neither a success nor a known failure.
	ErrUnexpectedResponse = errors.New("influx: unexpected response")

	// ErrCreateFailed indicates the database or bucket could not be created.
	ErrCreateFailed = errors.New("influx: create database failed")
)
