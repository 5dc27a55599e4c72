package resilience

// FallbackFunc produces a substitute value when the primary operation fails.
type FallbackFunc[T any] func(err error) (T, error)

// WithFallback swallows a failing primary call and substitutes a value
// from fallback, recording a degraded-service flag on the given manager.
func WithFallback[T any](dm *DegradationManager, service string, primary func() (T, error), fallback FallbackFunc[T]) (T, error) {
	v, err := primary()
	if err == nil {
		dm.Recover(service)
		return v, nil
	}
	dm.MarkDegraded(service, err.Error())
	return fallback(err)
}

// WithDefault is WithFallback specialised to a fixed default value.
func WithDefault[T any](dm *DegradationManager, service string, primary func() (T, error), def T) (T, error) {
	return WithFallback(dm, service, primary, func(error) (T, error) { return def, nil })
}
