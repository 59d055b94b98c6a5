package tools

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode"
)

const (
	gcmNonceSize = 12
	gcmTagSize   = 16
)

// EncryptField criptografa um campo de PII com AES-256-GCM.
// Saída: base64(nonce ∥ tag ∥ ciphertext), com nonce novo a cada chamada.
func EncryptField(key []byte, plaintext string) (string, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcmNonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}

	// Seal devolve ciphertext∥tag; realocamos a tag para logo após o nonce.
	sealed := gcm.Seal(nil, nonce, []byte(plaintext), nil)
	ctLen := len(sealed) - gcmTagSize
	out := make([]byte, 0, gcmNonceSize+len(sealed))
	out = append(out, nonce...)
	out = append(out, sealed[ctLen:]...)
	out = append(out, sealed[:ctLen]...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// DecryptField desfaz EncryptField. Falha fechado: qualquer entrada malformada
// ou tag inválida retorna erro, nunca texto parcialmente decifrado.
func DecryptField(key []byte, encoded string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("invalid ciphertext encoding: %w", err)
	}
	if len(raw) < gcmNonceSize+gcmTagSize {
		return "", fmt.Errorf("ciphertext too short: %d bytes", len(raw))
	}

	nonce := raw[:gcmNonceSize]
	tag := raw[gcmNonceSize : gcmNonceSize+gcmTagSize]
	ct := raw[gcmNonceSize+gcmTagSize:]

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	sealed := make([]byte, 0, len(ct)+len(tag))
	sealed = append(sealed, ct...)
	sealed = append(sealed, tag...)

	plain, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt failed: %w", err)
	}
	return string(plain), nil
}

// SearchHash calcula o hash de busca (HMAC-SHA256, hex) do texto já
// normalizado. Escrita e consulta precisam passar pelo mesmo normalizador,
// senão a busca por igualdade silenciosamente não acha nada.
func SearchHash(key []byte, normalized string) string {
	mac := hmac.New(sha256.New, key)
	mac.Write([]byte(normalized))
	return hex.EncodeToString(mac.Sum(nil))
}

// NormalizeDigits mantém só os dígitos (CPF e telefone).
func NormalizeDigits(raw string) string {
	var b strings.Builder
	b.Grow(len(raw))
	for _, r := range raw {
		if unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeEmail baixa caixa e remove espaços das pontas.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}
