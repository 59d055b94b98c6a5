package social

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var (
	ErrInvalidState = errors.New("state inválido")
	ErrExpiredState = errors.New("state expirado")
)

// StatePayload é o conteúdo do state assinado do fluxo OAuth. Stateless: o
// servidor não guarda nada entre o authorize e o callback.
type StatePayload struct {
	V          int    `json:"v"`
	Provider   string `json:"provider"`
	ProposalID int64  `json:"proposalId"`
	IssuedAt   int64  `json:"issuedAt"`
}

// SignState monta base64url(JSON) + "." + base64url(HMAC-SHA256).
func SignState(secret []byte, provider string, proposalID int64, now time.Time) string {
	payload := StatePayload{V: 1, Provider: provider, ProposalID: proposalID, IssuedAt: now.Unix()}
	body, _ := json.Marshal(payload)
	encoded := base64.RawURLEncoding.EncodeToString(body)

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(encoded))
	sig := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))

	return encoded + "." + sig
}

// VerifyState recomputa o HMAC (comparação em tempo constante) e checa o
// TTL. Falha fechado: qualquer defeito vira ErrInvalidState/ErrExpiredState.
func VerifyState(secret []byte, token string, ttl time.Duration, now time.Time) (StatePayload, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 2 {
		return StatePayload{}, ErrInvalidState
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(parts[0]))
	expected := base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
	if !hmac.Equal([]byte(expected), []byte(parts[1])) {
		return StatePayload{}, ErrInvalidState
	}

	body, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return StatePayload{}, ErrInvalidState
	}
	var payload StatePayload
	if err := json.Unmarshal(body, &payload); err != nil {
		return StatePayload{}, ErrInvalidState
	}
	if payload.V != 1 || payload.Provider == "" || payload.ProposalID <= 0 {
		return StatePayload{}, ErrInvalidState
	}

	issued := time.Unix(payload.IssuedAt, 0)
	if now.After(issued.Add(ttl)) {
		return StatePayload{}, ErrExpiredState
	}
	return payload, nil
}
