package provider

import (
	"context"
	"strings"
)

// Mock simulates answers for demos and tests without network or cost.
// Answers are deterministic and carry citation markers like a compliant
// backend would.
type Mock struct{}

func NewMock() *Mock { return &Mock{} }

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Enabled() bool { return true }

func (m *Mock) Chat(ctx context.Context, messages []Message, opts Options) (string, error) {
	var userMessage string
	for _, msg := range messages {
		if msg.Role == RoleUser {
			userMessage = msg.Content
		}
	}
	lower := strings.ToLower(userMessage)

	switch {
	case strings.Contains(lower, "matricula") || strings.Contains(lower, "matrícula"):
		return `Según el Reglamento de Admisión, "la matrícula es el acto académico mediante el cual el estudiante se incorpora oficialmente a la institución y a una carrera específica" [fragmento:1].

El proceso incluye la presentación de documentos, el pago de aranceles y la inscripción de asignaturas [fragmento:2].`, nil

	case strings.Contains(lower, "nota") || strings.Contains(lower, "calificacion") || strings.Contains(lower, "calificación"):
		return `De acuerdo al Reglamento de Régimen de Estudios, "la escala de calificaciones va de 1.0 a 7.0". La nota mínima de aprobación es 4.0 [fragmento:1].

Las calificaciones se expresan con un decimal [fragmento:2].`, nil

	case strings.Contains(lower, "arancel") || strings.Contains(lower, "pago"):
		return `Según el Reglamento de Obligaciones Financieras, "los aranceles y derechos deben cancelarse en los plazos establecidos" [fragmento:1].`, nil

	case strings.Contains(lower, "titulo") || strings.Contains(lower, "título") || strings.Contains(lower, "titulacion") || strings.Contains(lower, "titulación"):
		return `El Reglamento de Actividad de Titulación establece que "para obtener el título profesional, el estudiante debe completar satisfactoriamente una actividad de titulación" [fragmento:1].`, nil

	default:
		return `No encontré esta información específica en la normativa disponible. Revisa los reglamentos del área correspondiente [fragmento:1].`, nil
	}
}

func (m *Mock) EstimateCost(inputTokens, outputTokens int) float64 { return 0 }
