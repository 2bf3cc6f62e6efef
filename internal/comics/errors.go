package comics

import "errors"

// Error kinds shared by every stage. Callers wrap them with fmt.Errorf and
// classify with errors.Is.
var (
	// ErrConnectivity means the host could not be reached at all.
	ErrConnectivity = errors.New("host unreachable")

	// ErrContentShape means a fetched page lacks an expected element.
	ErrContentShape = errors.New("unexpected page layout")

	// ErrDiscoveryExhausted means not even the first page of an issue could
	// be established.
	ErrDiscoveryExhausted = errors.New("could not discover first page")

	ErrPageFetch        = errors.New("page fetch failed")
	ErrInvalidDirectory = errors.New("invalid issue directory")
	ErrCacheCorrupt     = errors.New("cache file corrupt")
)

// Fatal reports whether err should stop the whole run rather than a single
// item.
func Fatal(err error) bool {
	return errors.Is(err, ErrConnectivity)
}
