package domain

import "errors"

var (
	ErrInvalidParameters = errors.New("invalid option parameters")
	ErrUnsupportedModel  = errors.New("unsupported pricing model")
	ErrUnstableScheme    = errors.New("explicit scheme unstable: alpha exceeds 0.5")
	ErrSingularSystem    = errors.New("singular tridiagonal system")
	ErrSpotOutsideGrid   = errors.New("spot outside finite difference grid")
	ErrNoConvergence     = errors.New("implied volatility did not converge")
	ErrNonFinite         = errors.New("pricing produced a non-finite value")
	ErrNotFound          = errors.New("pricing result not found")
)

// IsClientError 判断错误是否由调用方输入导致
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidParameters) ||
		errors.Is(err, ErrUnsupportedModel) ||
		errors.Is(err, ErrSpotOutsideGrid) ||
		errors.Is(err, ErrUnstableScheme)
}
