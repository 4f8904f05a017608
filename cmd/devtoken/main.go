// Command devtoken prints a signed access token for local testing. It reads
// the same JWT_* environment as the server.
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	_ "github.com/joho/godotenv/autoload"

	jwttoken "juntas/internal/jwt_token"
	"juntas/internal/platform/config"
	id "juntas/pkg/domain"
)

func main() {
	userFlag := flag.String("user", "", "user id (uuid) placed in the token subject")
	roleFlag := flag.String("role", "", "EVALUATING_PHYSICIAN, MEDICAL_DIRECTOR, HR or ADMIN")
	name := flag.String("name", "", "display name claim")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime")
	flag.Parse()

	userID, err := id.ParseUserID(*userFlag)
	if err != nil {
		fail(err)
	}
	role, err := id.ParseRole(*roleFlag)
	if err != nil {
		fail(err)
	}

	cfg := config.FromEnv()
	token, err := jwttoken.NewJWTService(cfg.JWTSigningKey, cfg.JWTIssuer, cfg.JWTAudience).
		GenerateAccessToken(userID, role, *name, *ttl)
	if err != nil {
		fail(err)
	}
	fmt.Println(token)
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "devtoken:", err)
	os.Exit(2)
}
