package main

import (
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/kdimtricp/crackscan/internal/database"
)

func main() {
	var (
		dbType         = flag.String("db", "sqlite", "Database type (postgres or sqlite)")
		path           = flag.String("path", "./crackscan.db", "SQLite database file")
		host           = flag.String("host", "localhost", "Database host")
		port           = flag.Int("port", 5432, "Database port")
		user           = flag.String("user", "crackscan", "Database user")
		password       = flag.String("password", "crackscan_dev", "Database password")
		dbName         = flag.String("name", "crackscan", "Database name")
		migrationsPath = flag.String("migrations", "", "Migrations directory (embedded schema when empty)")
		status         = flag.Bool("status", false, "Show migration status only")
	)
	flag.Parse()

	config := database.Config{
		Type:       *dbType,
		Host:       *host,
		Port:       *port,
		User:       *user,
		Password:   *password,
		Name:       *dbName,
		SQLitePath: *path,
	}

	// Environment overrides flags.
	if env := os.Getenv("DB_TYPE"); env != "" {
		config.Type = env
	}
	if env := os.Getenv("DB_PATH"); env != "" {
		config.SQLitePath = env
	}
	if env := os.Getenv("DB_HOST"); env != "" {
		config.Host = env
	}
	if env := os.Getenv("DB_USER"); env != "" {
		config.User = env
	}
	if env := os.Getenv("DB_PASSWORD"); env != "" {
		config.Password = env
	}
	if env := os.Getenv("DB_NAME"); env != "" {
		config.Name = env
	}

	db, err := database.NewDB(config)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer db.Close()

	source := database.MigrationSource(*migrationsPath)
	migrator := database.NewMigrator(db.Conn(), nil)

	if !*status {
		fmt.Printf("Running migrations against %s...\n", config)
		applied, err := migrator.Run(source)
		if err != nil {
			log.Fatal("Failed to run migrations:", err)
		}
		fmt.Printf("Migrations completed successfully (%d applied)\n", applied)
		return
	}

	if err := migrator.Initialize(); err != nil {
		log.Fatal("Failed to initialize migrator:", err)
	}
	applied, err := migrator.GetAppliedMigrations()
	if err != nil {
		log.Fatal("Failed to get applied migrations:", err)
	}
	migrations, err := migrator.LoadMigrations(source)
	if err != nil {
		log.Fatal("Failed to load migrations:", err)
	}

	fmt.Println("Migration Status:")
	fmt.Println("=================")
	for _, m := range migrations {
		state := "pending"
		if applied[m.Version] {
			state = "applied"
		}
		fmt.Printf("%s - %s [%s]\n", m.Version, m.Name, state)
	}
}
