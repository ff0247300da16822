// Command devbroker runs a local notification broker for development.
//
//	devbroker -addr :8080
//	devbroker -mint alice   # print a session token for user "alice"
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/nhle/portal-inbox/internal/devbroker"
)

func main() {
	_ = godotenv.Load()

	addr := flag.String("addr", ":8080", "listen address")
	secret := flag.String("secret", os.Getenv("JWT_SECRET"), "HS256 signing secret (default $JWT_SECRET)")
	mint := flag.String("mint", "", "print a session token for this user id and exit")
	ttl := flag.Duration("ttl", 24*time.Hour, "lifetime of minted tokens")
	flag.Parse()

	if *secret == "" {
		*secret = "dev-secret-key"
	}

	if *mint != "" {
		token, err := devbroker.GenerateToken(*secret, *mint, "", *ttl)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println(token)
		return
	}

	srv := devbroker.NewServer(devbroker.Config{Secret: *secret})
	if err := srv.Run(*addr); err != nil {
		log.Fatalf("devbroker: %v", err)
	}
}
