package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm/logger"

	"github.com/lfardo/api-engine-go/internal/adapter/database"
	"github.com/lfardo/api-engine-go/pkg/logging"
)

func main() {
	// Configurações
	var (
		action       string
		name         string
		driver       string
		dsn          string
		migrationDir string
	)

	flag.StringVar(&action, "action", "migrate", "Ação (migrate, create)")
	flag.StringVar(&name, "name", "", "Nome da migração (apenas para action=create)")
	flag.StringVar(&driver, "driver", "sqlite", "Driver de banco de dados (sqlite, mysql, postgres)")
	flag.StringVar(&dsn, "dsn", "./apiengine.db", "DSN do banco de definições")
	flag.StringVar(&migrationDir, "dir", "./migrations", "Diretório de migrações")
	flag.Parse()

	// Inicializar logger
	zapLogger, err := logging.NewLogger()
	if err != nil {
		fmt.Printf("Erro ao inicializar logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	// Configurar banco de dados
	dbConfig := database.Config{
		Driver:          driver,
		DSN:             dsn,
		MaxIdleConns:    5,
		MaxOpenConns:    10,
		ConnMaxLifetime: 5 * time.Minute,
		LogLevel:        logger.Info,
		SlowThreshold:   200 * time.Millisecond,
		MigrationDir:    migrationDir,
	}

	ctx := context.Background()

	switch action {
	case "migrate":
		// Executar migrações
		db, err := database.NewDatabase(ctx, dbConfig, zapLogger)
		if err != nil {
			zapLogger.Fatal("Falha ao inicializar banco de dados", zap.Error(err))
		}
		defer db.Close()

		zapLogger.Info("Migrações aplicadas com sucesso")

	case "create":
		if name == "" {
			zapLogger.Fatal("Nome da migração é obrigatório para action=create")
		}

		// Criar nova migração
		db, err := database.NewDatabase(ctx, dbConfig, zapLogger)
		if err != nil {
			zapLogger.Fatal("Falha ao inicializar banco de dados", zap.Error(err))
		}
		defer db.Close()

		filepath, err := db.CreateMigration(name)
		if err != nil {
			zapLogger.Fatal("Falha ao criar migração", zap.Error(err))
		}

		zapLogger.Info("Migração criada", zap.String("path", filepath))

	default:
		zapLogger.Fatal("Ação desconhecida", zap.String("action", action))
	}
}
