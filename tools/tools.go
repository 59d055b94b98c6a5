package tools

import (
	"crypto/sha256"
	"encoding/hex"
	"math/rand"
	"time"

	"github.com/google/uuid"
)

const numbers = "0123456789"

var seededRand = rand.New(rand.NewSource(time.Now().UnixNano()))

// RandomNumbers gera uma sequência numérica (usada no protocolo público).
// O primeiro dígito nunca é zero para o protocolo manter o comprimento.
func RandomNumbers(length int) string {
	b := make([]byte, length)
	for i := range b {
		b[i] = numbers[seededRand.Intn(len(numbers))]
	}
	if b[0] == '0' {
		b[0] = numbers[1+seededRand.Intn(9)]
	}
	return string(b)
}

// HashToken devolve o SHA-256 (hex) de um token opaco. É o que vai pro banco
// no lugar do token cru (drafts e admin users).
func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// NewAccessToken gera um token opaco de acesso (rascunhos e admins). Só o
// hash é persistido.
func NewAccessToken() string {
	return uuid.NewString() + uuid.NewString()
}
