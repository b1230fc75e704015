package main

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/lib/pq"
	"github.com/safar/boutique-store/internal/config"
	"github.com/sirupsen/logrus"
)

func main() {
	log := logrus.New()

	if len(os.Args) < 2 {
		log.Fatal("Usage: go run scripts/run_migrations.go [up|down]")
	}

	direction := os.Args[1]
	if direction != "up" && direction != "down" {
		log.Fatal("Direction must be 'up' or 'down'")
	}

	cfg, err := config.Load()
	if err != nil {
		log.WithError(err).Fatal("load config")
	}

	db, err := sql.Open("postgres", cfg.Database.URL)
	if err != nil {
		log.WithError(err).Fatal("connect to database")
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.WithError(err).Fatal("ping database")
	}

	migrationDir := "migrations"
	files, err := os.ReadDir(migrationDir)
	if err != nil {
		log.WithError(err).Fatal("read migration directory")
	}

	var migrationFiles []string
	for _, file := range files {
		if !file.IsDir() && strings.HasSuffix(file.Name(), fmt.Sprintf(".%s.sql", direction)) {
			migrationFiles = append(migrationFiles, file.Name())
		}
	}

	sort.Strings(migrationFiles)
	if direction == "down" {
		sort.Sort(sort.Reverse(sort.StringSlice(migrationFiles)))
	}

	for _, filename := range migrationFiles {
		content, err := os.ReadFile(filepath.Join(migrationDir, filename))
		if err != nil {
			log.WithError(err).WithField("file", filename).Fatal("read migration file")
		}

		log.WithField("file", filename).Info("running migration")
		if _, err := db.Exec(string(content)); err != nil {
			log.WithError(err).WithField("file", filename).Fatal("execute migration")
		}
	}

	log.Infof("Successfully ran %d migration(s) %s", len(migrationFiles), direction)
}
