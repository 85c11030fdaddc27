package provider

import (
	"fmt"
	"strings"

	"normativa-rag/internal/models"
)

// Checked in order; the first area with a keyword hit wins.
var queryTypeKeywords = []struct {
	queryType string
	words     []string
}{
	{"matricula", []string{"matricula", "matrícula", "inscripcion", "inscripción", "admision", "admisión", "postular", "ingreso"}},
	{"notas", []string{"nota", "notas", "calificacion", "calificación", "promedio", "examen", "evaluacion", "evaluación", "aprobar", "reprobar"}},
	{"financiero", []string{"arancel", "pago", "beca", "beneficio", "financiero", "costo", "precio", "descuento"}},
	{"titulo", []string{"titulo", "título", "titulacion", "titulación", "tesis", "memoria", "graduacion", "graduación", "grado"}},
}

// DetectQueryType classifies a query into one of the regulation areas so
// the system prompt can be specialized.
func DetectQueryType(query string) string {
	lower := strings.ToLower(query)
	for _, entry := range queryTypeKeywords {
		for _, w := range entry.words {
			if strings.Contains(lower, w) {
				return entry.queryType
			}
		}
	}
	return "general"
}

// SystemPrompt returns the base system prompt, specialized when the query
// maps to a known regulation area.
func SystemPrompt(queryType string) string {
	if focus, ok := models.SpecializedPrompts[queryType]; ok {
		return models.SystemPromptTemplate + "\n\nENFOQUE ESPECIALIZADO:\n" + focus
	}
	return models.SystemPromptTemplate
}

// BuildUserPrompt renders the numbered fragment blocks the citation
// markers refer back to.
func BuildUserPrompt(query string, fragments []models.RetrievedFragment) string {
	if len(fragments) == 0 {
		return fmt.Sprintf(models.NoContextPromptTemplate, query)
	}

	var sb strings.Builder
	for i, rf := range fragments {
		fmt.Fprintf(&sb, "FRAGMENTO %d:\nFuente: %s\nRelevancia: %.3f\nContenido exacto:\n%q\n\n",
			i+1, rf.Fragment.DocumentID, rf.Score, rf.Fragment.Text)
	}
	return fmt.Sprintf(models.UserPromptTemplate, query, sb.String())
}

// BuildMessages assembles the full chat exchange for one query.
func BuildMessages(query string, fragments []models.RetrievedFragment) []Message {
	return []Message{
		{Role: RoleSystem, Content: SystemPrompt(DetectQueryType(query))},
		{Role: RoleUser, Content: BuildUserPrompt(query, fragments)},
	}
}
