package server

import (
	"errors"
	"net/http"

	"steamswitch/internal/core"
	"steamswitch/internal/library"
	"steamswitch/internal/process"
	"steamswitch/internal/steamid"
)

var (
	badRequestErrors = []error{
		steamid.ErrInvalidSteamID,
		library.ErrInvalidAppID,
		core.ErrInvalidUsername,
		core.ErrInvalidMode,
		core.ErrSameAccount,
		core.ErrInvalidWindow,
	}
	notFoundErrors = []error{
		core.ErrUserdataNotFound,
		library.ErrNotFound,
	}
)

// statusFor maps an operation error to the HTTP status reported for it.
func statusFor(err error) int {
	for _, target := range badRequestErrors {
		if errors.Is(err, target) {
			return http.StatusBadRequest
		}
	}
	for _, target := range notFoundErrors {
		if errors.Is(err, target) {
			return http.StatusNotFound
		}
	}
	if errors.Is(err, process.ErrStopTimeout) || errors.Is(err, process.ErrProcessList) {
		return http.StatusConflict
	}
	return http.StatusInternalServerError
}
