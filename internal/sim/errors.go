package sim

import (
	"errors"

	"journey-simulator/internal/route"
)

var (
	ErrRouteNotFound        = route.ErrNotFound
	ErrJourneyNotFound      = errors.New("journey not found")
	ErrJourneyAlreadyExists = errors.New("journey already exists")
	ErrInvalidArgument      = errors.New("invalid argument")
	ErrInvalidState         = errors.New("invalid journey state")
)
