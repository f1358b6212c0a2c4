//nolint:lll
package api

import (
	"fmt"
	"net/http"
)

// The custom Error type satisfies the error interface.
// Error() returns a human-readable description of the error.
//
// Error codes in the 40001-49999 range are the caller's fault,
// and they return HTTP Status 400, 403, 404 or 409, whatever is most appropriate.
//
// Error codes 50001-59999 are the server's fault
// and they return HTTP Status 500 or 503, or something else if appropriate.
//
// NEVER change any of the current error codes, only append new errors after the current last 4XXX or 5XXX.
// If you notice there's a gap (say, error code 40010, 40011 and 40013 exist, 40012 is missing) DON'T fill
// in the gap, that code was used in the past for some error (not anymore) and shouldn't be reused.
// There's no correlation between Code and HTTP Status.
var (
	ErrMalformedBody     = Error{Code: 40001, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("malformed JSON body")}
	ErrMalformedVoterID  = Error{Code: 40002, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("voter ID contains characters outside [A-Za-z0-9_]")}
	ErrNotEligible       = Error{Code: 40003, HTTPstatus: http.StatusForbidden, Err: fmt.Errorf("voter is not on the eligibility roll")}
	ErrAlreadyIssued     = Error{Code: 40004, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("a credential has already been issued to this voter")}
	ErrInvalidChoice     = Error{Code: 40005, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("choice is not a member of the candidate set")}
	ErrInvalidCredential = Error{Code: 40006, HTTPstatus: http.StatusBadRequest, Err: fmt.Errorf("credential does not verify against the issuer public key")}
	ErrDoubleVote        = Error{Code: 40007, HTTPstatus: http.StatusConflict, Err: fmt.Errorf("this credential has already been used to vote")}
	ErrBlockNotFound     = Error{Code: 40008, HTTPstatus: http.StatusNotFound, Err: fmt.Errorf("block not found")}
	// 40009 retired: voter-status lookups never 404, they report an
	// all-false StatusRecord for an unknown voter ID. Per the rule above,
	// that code is not reused.

	ErrKeystoreUninitialized      = Error{Code: 50001, HTTPstatus: http.StatusServiceUnavailable, Err: fmt.Errorf("issuer keys are not yet initialized")}
	ErrMarshalingServerJSONFailed = Error{Code: 50002, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("marshaling (server-side) JSON failed")}
	ErrGenericInternalServerError = Error{Code: 50003, HTTPstatus: http.StatusInternalServerError, Err: fmt.Errorf("internal server error")}
)
