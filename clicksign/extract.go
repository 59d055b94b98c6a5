package clicksign

import (
	"crypto/sha256"
	"encoding/hex"
)

// Os webhooks da Clicksign chegam em formatos diferentes conforme a versão
// da API. Em vez de ifs espalhados, cada campo tem uma lista ordenada de
// caminhos tentados em prioridade; o primeiro que existir vence.

var eventIDPaths = [][]string{
	{"id"},
	{"event_id"},
	{"eventId"},
	{"event", "id"},
	{"data", "id"},
}

var eventTypePaths = [][]string{
	{"event_type"},
	{"eventType"},
	{"event", "name"},
	{"event", "type"},
	{"data", "attributes", "event_type"},
	{"data", "attributes", "name"},
}

var envelopeIDPaths = [][]string{
	{"envelope_id"},
	{"envelopeId"},
	{"document_key"},
	{"event", "envelope_id"},
	{"event", "data", "envelope_id"},
	{"data", "attributes", "envelope_id"},
	{"data", "attributes", "key"},
}

// lookupString navega um caminho num JSON genérico e devolve a string no
// fim dele, se existir (ids da Clicksign são UUIDs, só string interessa).
func lookupString(payload map[string]any, path []string) (string, bool) {
	current := any(payload)
	for _, key := range path {
		obj, ok := current.(map[string]any)
		if !ok {
			return "", false
		}
		current, ok = obj[key]
		if !ok {
			return "", false
		}
	}
	s, ok := current.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func firstMatch(payload map[string]any, paths [][]string) string {
	for _, path := range paths {
		if v, ok := lookupString(payload, path); ok {
			return v
		}
	}
	return ""
}

// ExtractEventID resolve o identificador do evento; sem nenhum campo de id
// no payload cai num id sintético determinístico (SHA-256 do corpo cru),
// que ainda deduplica reentregas byte a byte.
func ExtractEventID(payload map[string]any, rawBody []byte) string {
	if id := firstMatch(payload, eventIDPaths); id != "" {
		return id
	}
	sum := sha256.Sum256(rawBody)
	return hex.EncodeToString(sum[:])
}

func ExtractEventType(payload map[string]any) string {
	return firstMatch(payload, eventTypePaths)
}

func ExtractEnvelopeID(payload map[string]any) string {
	return firstMatch(payload, envelopeIDPaths)
}
