package errors

import "errors"

var (
	ErrJobNotFound      = errors.New("job not found")
	ErrJobNotActive     = errors.New("job is not active")
	ErrArtifactNotFound = errors.New("artifact not found")
	ErrDomainNotAllowed = errors.New("domain not allowed")
	ErrShuttingDown     = errors.New("engine is shutting down")
)
