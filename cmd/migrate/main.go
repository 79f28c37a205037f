package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/Clegivaldo/medmanager-fiscal/pkg/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("carregar configuração: %v", err)
	}

	m, err := migrate.New("file://db/migrations", cfg.DB.ConnectionString())
	if err != nil {
		log.Fatalf("criar instância de migração: %v", err)
	}
	defer m.Close()

	if len(os.Args) < 2 {
		fmt.Println("Uso: migrate [up|down|steps N|version]")
		os.Exit(1)
	}

	switch cmd := os.Args[1]; cmd {
	case "up":
		if err := m.Up(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("migração up falhou: %v", err)
		}
		log.Println("migrações aplicadas")

	case "down":
		if err := m.Down(); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("migração down falhou: %v", err)
		}
		log.Println("migrações revertidas")

	case "steps":
		if len(os.Args) < 3 {
			log.Fatal("steps exige um argumento numérico")
		}
		n, err := strconv.Atoi(os.Args[2])
		if err != nil {
			log.Fatalf("argumento de steps inválido: %v", err)
		}
		if err := m.Steps(n); err != nil && err != migrate.ErrNoChange {
			log.Fatalf("migração steps falhou: %v", err)
		}
		log.Printf("%d passos de migração aplicados", n)

	case "version":
		version, dirty, err := m.Version()
		if err != nil {
			log.Fatalf("obter versão: %v", err)
		}
		fmt.Printf("versão: %d, dirty: %v\n", version, dirty)

	default:
		fmt.Printf("comando desconhecido: %s\n", cmd)
		fmt.Println("Uso: migrate [up|down|steps N|version]")
		os.Exit(1)
	}
}
