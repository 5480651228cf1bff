package ai_processing

import (
	"errors"

	"github.com/FelipeVegaEsparza/hostbot-sub000/internal/inference/router"
)

const (
	apologyConfiguration = "Lo siento, este asistente no está configurado correctamente en este momento. Por favor, contacta con el administrador del servicio."
	apologyTransient     = "Lo siento, tuve un problema al procesar tu mensaje. Estoy reintentando, por favor espera un momento."
)

var errEmptyReply = errors.New("AI provider returned an empty reply")

// apologyFor picks the text shown to the end user when generation fails.
func apologyFor(err error) string {
	var unavailable *router.ServiceUnavailableError
	switch {
	case errors.As(err, &unavailable) && unavailable.Fallback != "":
		return unavailable.Fallback
	case router.IsConfigurationError(err):
		return apologyConfiguration
	default:
		return apologyTransient
	}
}
