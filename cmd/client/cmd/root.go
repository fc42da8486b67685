package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/exp/slog"

	"studysync/cmd/client/cmd/types"
	"studysync/internal/app/client"
	"studysync/internal/app/client/config"
	"studysync/internal/utils/logger"
)

var (
	cfgFile   string
	cfg       *config.Config
	log       *slog.Logger
	app       *client.App
	debug     bool
	serverURL string
)

var rootCmd = &cobra.Command{
	Use:   "studysync",
	Short: "StudySync - учет учебного времени, оценок и событий",
	Long: `StudySync хранит учебные сессии, результаты тестов и запланированные
события локально и работает без сети.

После входа данные синхронизируются с сервером между устройствами,
события можно связать с Google Calendar.`,
	PersistentPreRunE: setupApp,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

func Execute() {
	err := rootCmd.Execute()
	if app != nil {
		if cerr := app.Close(); cerr != nil {
			log.Warn("Ошибка закрытия приложения", "error", cerr)
		}
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Ошибка: %v\n", err)
		os.Exit(1)
	}
}

func setupApp(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("ошибка загрузки конфигурации: %w", err)
	}

	// Переопределяем настройки из флагов командной строки
	if serverURL != "" {
		cfg.ServerAddress = serverURL
	}
	level := cfg.LogLevel
	if debug {
		level = "debug"
	}
	log = logger.NewWithLevel(level)

	app, err = client.New(cfg, log)
	if err != nil {
		return fmt.Errorf("ошибка инициализации приложения: %w", err)
	}
	if err := app.Open(cmd.Context()); err != nil {
		return err
	}

	cmd.SetContext(context.WithValue(cmd.Context(), types.ClientAppKey, app))
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "конфигурационный файл (YAML)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "включить отладочный режим")
	rootCmd.PersistentFlags().Bool("json", false, "вывод в формате JSON")
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "адрес сервера StudySync")
}
