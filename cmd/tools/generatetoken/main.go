package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/lfardo/api-engine-go/pkg/security"
)

func main() {
	var (
		userID   string
		username string
		role     string
		duration time.Duration
	)

	flag.StringVar(&userID, "user_id", "", "ID do usuário admin")
	flag.StringVar(&username, "username", "admin", "Nome do usuário")
	flag.StringVar(&role, "role", "admin", "Papel do usuário (admin, viewer)")
	flag.DurationVar(&duration, "duration", 24*time.Hour, "Validade do token")
	flag.Parse()

	// Verifica se o userID foi fornecido
	if userID == "" {
		fmt.Println("Erro: O ID do usuário admin não pode ser vazio.")
		fmt.Println("Uso: go run ./cmd/tools/generatetoken -user_id=<ID do usuário>")
		os.Exit(1)
	}

	// Obter a chave secreta do arquivo config.yaml ou das variáveis de ambiente
	secretKey := security.GetJWTSecret()
	if len(secretKey) == 0 {
		fmt.Println("Erro: nenhum segredo JWT configurado.")
		fmt.Println("Configure JWT_SECRET_KEY ou AE_AUTH_JWTSECRET ou defina auth.jwtsecret no config.yaml")
		os.Exit(1)
	}

	// Criar os claims no mesmo formato que o KeyManager emite
	now := time.Now()
	claims := &security.Claims{
		UserID:   userID,
		Username: username,
		Role:     role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(now.Add(duration)),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	// Assinar o token com a chave secreta
	tokenString, err := token.SignedString(secretKey)
	if err != nil {
		fmt.Printf("Erro ao gerar token: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\nToken JWT gerado:")
	fmt.Println("------------------------------------------")
	fmt.Println(tokenString)
	fmt.Println("------------------------------------------")
	fmt.Printf("\nDetalhes do token:\n")
	fmt.Printf("ID do usuário: %s\n", userID)
	fmt.Printf("Papel: %s\n", role)
	fmt.Printf("Expira em: %s\n", now.Add(duration).Format(time.RFC3339))
	fmt.Println("\nUse este token no cabeçalho Authorization:")
	fmt.Printf("Authorization: Bearer %s\n", tokenString)

	// Dica adicional sobre configuração
	fmt.Println("\nPara configurar sua própria chave secreta:")
	fmt.Println("1. Como variável de ambiente: export JWT_SECRET_KEY=sua-chave-secreta")
	fmt.Println("2. No arquivo config.yaml: jwtsecret: sua-chave-secreta")
	fmt.Println("3. Via variável AE: export AE_AUTH_JWTSECRET=sua-chave-secreta")
}
