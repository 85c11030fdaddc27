package models

const (
	DefaultChunkSize    = 800
	DefaultChunkOverlap = 120
	MinChunkSize        = 100
	MaxChunkSize        = 2000

	// CitationPattern matches the citation markers the providers are
	// instructed to emit, e.g. "[fragmento:3]".
	CitationPattern = `\[fragmento:(\d+)\]`
)

var SystemPromptTemplate = `Eres un asistente especializado en normativa y reglamentos institucionales.

INSTRUCCIONES:
1. Responde UNICAMENTE basandote en los fragmentos oficiales proporcionados
2. Si la informacion esta en los fragmentos, cita TEXTUALMENTE las partes relevantes
3. NO inventes ni supongas informacion que no este en los fragmentos
4. Si no encuentras la respuesta exacta, responde: "No encontre esta informacion especifica en la normativa disponible"

FORMATO OBLIGATORIO:
- Respuesta directa y concisa
- Citas textuales entre comillas
- Marca cada fragmento utilizado con su referencia [fragmento:N], donde N es el numero del fragmento

Prioriza siempre la exactitud sobre la completitud.`

var UserPromptTemplate = `CONSULTA DEL USUARIO: %s

FRAGMENTOS OFICIALES ENCONTRADOS:
%s
INSTRUCCIONES:
- Analiza cada fragmento cuidadosamente
- Responde basandote SOLO en el contenido exacto mostrado arriba
- Marca cada fragmento que uses con [fragmento:N]

RESPUESTA:`

var NoContextPromptTemplate = `Pregunta: %s

No se encontraron fragmentos relevantes en la base de normativa.

Respuesta: No encontre esta informacion especifica en la normativa disponible.`

// SpecializedPrompts narrow the system prompt by query topic, mirroring
// the four regulation areas the corpus covers.
var SpecializedPrompts = map[string]string{
	"matricula":  `Especializate en matricula y admision: proceso de matricula, fechas, requisitos, documentacion y plazos.`,
	"notas":      `Especializate en notas y evaluaciones: escala de calificaciones, requisitos de aprobacion, promedios y examenes.`,
	"financiero": `Especializate en aspectos financieros: aranceles, becas, formas de pago y obligaciones financieras.`,
	"titulo":     `Especializate en titulacion: requisitos para obtener el titulo, actividades de titulacion y plazos.`,
}
