package render

import (
	"strings"

	"github.com/abadojack/whatlanggo"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/MimeLyc/study-assistant/internal/jobs"
	"github.com/MimeLyc/study-assistant/internal/transfer"
)

// LanguageAuto picks the label language from the rendered content.
const LanguageAuto = "auto"

var supported = []language.Tag{language.Spanish, language.English}

var matcher = language.NewMatcher(supported)

// Label keys are English; Spanish translations live in the catalog below.
var spanish = map[string]string{
	// navigation
	"Home":         "Inicio",
	"Upload PDF":   "Subir PDF",
	"How it works": "¿Cómo funciona?",
	"History":      "Historial",

	// home
	"Study smarter with your PDFs": "Estudia mejor con tus PDF",
	"Upload your study material and get a summary, quiz questions and flashcards.": "Sube tu material de estudio y obtén un resumen, preguntas de repaso y tarjetas de memoria.",
	"Get started": "Empezar",

	// how it works
	"Upload your PDF":  "Sube tu PDF",
	"We process it":    "Lo procesamos",
	"Study the result": "Estudia el resultado",
	"Choose one or more PDF files with your notes or textbook chapters.":    "Elige uno o varios archivos PDF con tus apuntes o capítulos.",
	"The document is analysed and turned into study material.":              "El documento se analiza y se convierte en material de estudio.",
	"Review the key points, test yourself with the quiz and use the cards.": "Repasa los puntos clave, ponte a prueba con el cuestionario y usa las tarjetas.",

	// upload
	"Upload PDF files":              "Subir archivos PDF",
	"Select one or more PDF files.": "Selecciona uno o más archivos PDF.",
	"Upload and process":            "Subir y procesar",

	// pending
	"Processing your document...":        "Procesando tu documento...",
	"This page refreshes automatically.": "Esta página se actualiza automáticamente.",
	"Job %s":                             "Trabajo %s",

	// result
	"Summary":            "Resumen",
	"Quiz":               "Cuestionario",
	"Flashcards":         "Tarjetas de memoria",
	"Question %d":        "Pregunta %d",
	"Card %d":            "Tarjeta %d",
	"Correct answer: %s": "Respuesta correcta: %s",
	"Explanation: %s":    "Explicación: %s",
	"Importance: %s":     "Importancia: %s",
	"Category: %s":       "Categoría: %s",
	"Download as Excel":  "Descargar en Excel",
	"No items.":          "Sin elementos.",
	"Show answer":        "Ver respuesta",

	// error
	"Something went wrong": "Algo salió mal",
	"Try again":            "Intentar de nuevo",

	// history
	"Processed documents": "Documentos procesados",
	"Status":              "Estado",
	"Files":               "Archivos",
	"Created":             "Creado",
	"Delete":              "Eliminar",
	"View":                "Ver",
	"All":                 "Todos",
	"Filter":              "Filtrar",
	"No documents yet.":   "Todavía no hay documentos.",
	"Deleted: %s":         "Eliminado: %s",

	// statuses
	"Pending":  "Pendiente",
	"Finished": "Completado",
	"Error":    "Error",

	// export
	"Point":          "Punto",
	"Importance":     "Importancia",
	"Question":       "Pregunta",
	"Option A":       "Opción A",
	"Option B":       "Opción B",
	"Option C":       "Opción C",
	"Option D":       "Opción D",
	"Correct answer": "Respuesta correcta",
	"Explanation":    "Explicación",
	"Front":          "Anverso",
	"Back":           "Reverso",
	"Category":       "Categoría",

	// errors
	jobs.MsgNoIdentifier:           "No se encontró UUID. Por favor sube un archivo primero.",
	jobs.MsgConnection:             "Error al conectar con el servidor.",
	jobs.MsgPollLimit:              "El procesamiento está tardando demasiado. Inténtalo más tarde.",
	jobs.MsgProcessing:             "Error en el procesamiento: %s",
	jobs.DefaultProcessingMessage:  "Error en el procesamiento.",
	transfer.MsgNoFiles:            "Por favor selecciona al menos un archivo PDF.",
	transfer.MsgNotPDF:             "Solo se aceptan archivos PDF.",
	transfer.MsgServerDetail:       "Error del servidor: %s",
	"Too many uploads, slow down.": "Demasiadas subidas, espera un momento.",
}

func init() {
	for key, msg := range spanish {
		_ = message.SetString(language.Spanish, key, msg)
	}
}

// Labels localizes UI strings for one language.
type Labels struct {
	tag     language.Tag
	printer *message.Printer
}

// NewLabels returns labels for the closest supported language.
func NewLabels(tag language.Tag) *Labels {
	_, idx, _ := matcher.Match(tag)
	matched := supported[idx]
	return &Labels{tag: matched, printer: message.NewPrinter(matched)}
}

// LabelsFor resolves a language setting. LanguageAuto detects the language
// of result, falling back to Spanish when there is nothing to detect.
func LabelsFor(setting string, result *jobs.Result) *Labels {
	setting = strings.ToLower(strings.TrimSpace(setting))
	if setting == LanguageAuto || setting == "" {
		if tag, ok := DetectLanguage(result); ok {
			return NewLabels(tag)
		}
		return NewLabels(language.Spanish)
	}
	tag, err := language.Parse(setting)
	if err != nil {
		return NewLabels(language.Spanish)
	}
	return NewLabels(tag)
}

// DetectLanguage votes over every text item of result.
func DetectLanguage(result *jobs.Result) (language.Tag, bool) {
	if result == nil {
		return language.Und, false
	}

	texts := make([]string, 0, len(result.BulletPoints)+len(result.QuizQuestions)+len(result.Flashcards))
	for _, bp := range result.BulletPoints {
		texts = append(texts, bp.Point)
	}
	for _, q := range result.QuizQuestions {
		texts = append(texts, q.Question+" "+q.Explanation)
	}
	for _, fc := range result.Flashcards {
		texts = append(texts, fc.Front+" "+fc.Back)
	}

	langMap := make(map[string]int)
	for _, text := range texts {
		if strings.TrimSpace(text) == "" {
			continue
		}
		info := whatlanggo.Detect(text)
		if !info.IsReliable() && len(texts) > 1 {
			continue
		}
		langMap[info.Lang.Iso6391()]++
	}

	var topLang string
	var topCount int
	for lang, count := range langMap {
		if count > topCount || (count == topCount && lang < topLang) {
			topLang = lang
			topCount = count
		}
	}
	if topLang == "" {
		return language.Und, false
	}
	return language.All.Make(topLang), true
}

func (l *Labels) Tag() language.Tag {
	return l.tag
}

// Lang is the base language code, for the html lang attribute.
func (l *Labels) Lang() string {
	base, _ := l.tag.Base()
	return base.String()
}

// T translates key and formats it with args.
func (l *Labels) T(key string, args ...any) string {
	return l.printer.Sprintf(key, args...)
}

// Error returns the single user-visible message for err.
func (l *Labels) Error(err error) string {
	format, args := jobs.UserMessage(err)
	if format == "" {
		return ""
	}
	return l.printer.Sprintf(format, args...)
}

func (l *Labels) Status(s jobs.Status) string {
	switch s {
	case jobs.StatusFinished:
		return l.T("Finished")
	case jobs.StatusError:
		return l.T("Error")
	default:
		return l.T("Pending")
	}
}
