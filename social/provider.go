package social

import (
	"context"
	"net/http"

	"filiacao/config"
)

// Token é o resultado da troca de código.
type Token struct {
	AccessToken string
	ExpiresIn   int64 // segundos; 0 = provedor não informou
}

// Profile é o perfil público mínimo que buscamos depois da troca. Buscar o
// perfil é best-effort: link sem perfil ainda é link.
type Profile struct {
	ID         string
	Name       string
	ProfileURL string
}

// Provider encapsula as manias de cada rede: separador de escopo, troca de
// código via GET ou POST, e o passo extra de token de longa duração do
// Instagram. Cada variante mora atrás desta interface em vez de ifs por
// nome espalhados pelo código.
type Provider interface {
	Name() string
	BuildAuthorizeURL(creds config.OAuthProvider, state string) string
	ExchangeCode(ctx context.Context, client *http.Client, creds config.OAuthProvider, code string) (Token, error)
	FetchProfile(ctx context.Context, client *http.Client, accessToken string) (Profile, error)
}
