package tools

import "regexp"

var emailRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

func ValidateEmail(email string) bool {
	return emailRe.MatchString(email)
}

// ValidateCPF aceita CPF com 11 dígitos (pontuação é ignorada).
// Não checa dígito verificador: isso fica no OCR/validação cadastral.
func ValidateCPF(cpf string) bool {
	return len(NormalizeDigits(cpf)) == 11
}
