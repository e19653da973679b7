package main

import (
	"context"
	"database/sql"
	"flag"
	"log"
	"os"

	"github.com/honeynil/RentalOrderService/internal/migrations"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
)

func main() {
	flag.Parse()
	command := "up"
	var args []string
	if flag.NArg() > 0 {
		command = flag.Arg(0)
		args = flag.Args()[1:]
	}

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using default env vars")
	}

	db, err := sql.Open("postgres", os.Getenv("POSTGRES_DSN"))
	if err != nil {
		log.Fatalf("Failed to connect to Postgres: %v", err)
	}
	defer db.Close()

	if err := migrations.Run(context.Background(), db, command, args...); err != nil {
		log.Fatalf("Migration failed: %v", err)
	}
	log.Printf("Migration %q finished", command)
}
