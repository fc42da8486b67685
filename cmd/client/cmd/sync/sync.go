package sync

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
	"studysync/internal/app/client"
)

var syncStatus bool

var SyncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизировать данные с сервером",
	Long: `Синхронизация данных между клиентом и сервером.

Загружает данные с сервера, сливает их с локальными (побеждает более поздняя
правка), сохраняет результат и отправляет изменения обратно.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		if syncStatus {
			return showSyncStatus(cmd, app)
		}
		return runSync(cmd, app)
	},
}

var DaemonCmd = &cobra.Command{
	Use:   "daemon",
	Short: "Синхронизировать в фоне по расписанию",
	Long: `Запускает периодическую синхронизацию с интервалом SYNC_INTERVAL_SECONDS.
Останавливается по Ctrl+C.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if !app.IsAuthenticated() {
			return fmt.Errorf("требуется аутентификация. Выполните: studysync auth login")
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return app.RunDaemon(ctx)
	},
}

func runSync(cmd *cobra.Command, app *client.App) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
	defer cancel()

	result, err := app.Sync(ctx, client.TriggerManual)
	if types.JSONOutput(cmd) {
		if perr := types.PrintJSON(result); perr != nil {
			return perr
		}
		return err
	}

	switch result.Outcome {
	case client.OutcomeSkipped:
		color.Yellow("⚠️  Синхронизация пропущена: %s", result.Reason)
		if !app.IsAuthenticated() {
			fmt.Println("Выполните вход: studysync auth login")
		}
		return nil
	case client.OutcomeDropped:
		fmt.Println("Синхронизация уже выполняется")
		return nil
	case client.OutcomeFailed:
		return fmt.Errorf("ошибка синхронизации: %w", err)
	}
	if err != nil {
		return err
	}

	fmt.Println()
	if result.Outcome == client.OutcomePartial {
		color.Yellow("⚠️  Синхронизация завершена частично")
	} else {
		color.Green("✅ Синхронизация завершена!")
	}
	fmt.Printf("Время выполнения: %v\n", result.Duration.Round(time.Millisecond))
	fmt.Printf("Получено с сервера: %d записей\n", result.Added)
	fmt.Printf("Удалено (удалены на других устройствах): %d\n", result.Dropped)
	fmt.Printf("Отправлено на сервер: %d записей\n", result.Pushed)
	if result.Conflicts > 0 {
		fmt.Printf("Разрешено конфликтов: %d\n", result.Conflicts)
	}
	if result.Deleted > 0 {
		fmt.Printf("Удалено на сервере: %d\n", result.Deleted)
	}

	if len(result.Errors) > 0 {
		fmt.Printf("Ошибок при синхронизации: %d\n", len(result.Errors))
		for i, e := range result.Errors {
			if i == 3 {
				fmt.Printf("  ... и еще %d ошибок\n", len(result.Errors)-3)
				break
			}
			fmt.Printf("  • %v\n", e)
		}
	}
	return nil
}

func showSyncStatus(cmd *cobra.Command, app *client.App) error {
	status, last, stats := app.SyncStatus()
	if types.JSONOutput(cmd) {
		return types.PrintJSON(map[string]any{
			"status": status.Status,
			"last":   last,
			"stats":  stats,
		})
	}

	fmt.Println("=== Статус синхронизации ===")

	fmt.Println("📊 Статистика:")
	fmt.Printf("  Всего синхронизаций: %d\n", stats.TotalSyncs)
	fmt.Printf("  С ошибками: %d\n", stats.TotalErrors)
	fmt.Printf("  Отправлено на сервер: %d записей\n", stats.TotalUploaded)
	fmt.Printf("  Получено с сервера: %d записей\n", stats.TotalDownloaded)
	fmt.Printf("  Удалено по данным сервера: %d\n", stats.TotalDropped)
	fmt.Printf("  Разрешено конфликтов: %d\n", stats.TotalConflicts)
	fmt.Printf("  Среднее время: %.2f сек\n", stats.AvgSyncDuration)

	if !stats.LastSuccessful.IsZero() {
		fmt.Printf("\n⏰ Последняя успешная: %s\n", stats.LastSuccessful.Local().Format("2006-01-02 15:04:05"))
	}
	if !stats.LastFailed.IsZero() {
		fmt.Printf("⏰ Последняя неудачная: %s\n", stats.LastFailed.Local().Format("2006-01-02 15:04:05"))
	}
	if last != nil {
		fmt.Printf("\nПоследний цикл: %s (%s)\n", last.Outcome, last.Trigger)
	}

	fmt.Printf("\n🔐 Аутентификация: ")
	if app.IsAuthenticated() {
		color.Green("выполнена (%s)", app.UserLogin())
	} else {
		color.Red("требуется вход")
	}
	return nil
}

func init() {
	SyncCmd.Flags().BoolVar(&syncStatus, "status", false, "показать статус синхронизации")
}
