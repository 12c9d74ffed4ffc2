// Command issue-token prints a bearer token for local testing of the
// booking API.
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/joho/godotenv"

	"github.com/iliyamo/ticket-booking/internal/utils"
)

func main() {
	_ = godotenv.Load()

	user := flag.String("user", "", "subject (user id) of the token")
	role := flag.String("role", "CUSTOMER", "role claim, e.g. CUSTOMER, PAYMENT or ADMIN")
	ttl := flag.Duration("ttl", time.Hour, "token lifetime; 0 for no expiry")
	flag.Parse()

	tok, err := utils.NewAccessToken(os.Getenv("JWT_SECRET"), *user, *role, *ttl)
	if err != nil {
		log.Fatalf("issue token: %v", err)
	}
	fmt.Println(tok.Token)
}
