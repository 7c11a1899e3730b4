package service

// LoadFailedMessage is shown to the user when no catalog source succeeds.
const LoadFailedMessage = "No se pudieron cargar los productos. Verifica tu conexión y recarga la página."

// A LoadError is a terminal catalog load failure. Message is safe to show to
// the user; Err carries the per-source failures.
type LoadError struct {
	Message string
	Err     error
}

func (e *LoadError) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

func (e *LoadError) Unwrap() error {
	return e.Err
}
