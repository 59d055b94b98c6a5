package lifecycle

import (
	"errors"
	"fmt"
)

// Taxonomia de erros do núcleo. Controllers mapeiam com errors.Is:
// NotFound→404, Validation→400, Unauthorized→401, Conflict→409, External→502.
var (
	ErrNotFound     = errors.New("não encontrado")
	ErrValidation   = errors.New("inválido")
	ErrUnauthorized = errors.New("não autorizado")
	ErrConflict     = errors.New("conflito de concorrência")
	ErrExternal     = errors.New("falha externa")
)

func notFoundf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
}

func validationf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrValidation)...)
}

func unauthorizedf(format string, args ...any) error {
	return fmt.Errorf(format+": %w", append(args, ErrUnauthorized)...)
}
