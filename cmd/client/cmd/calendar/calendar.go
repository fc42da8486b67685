package calendar

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
	cal "studysync/internal/app/client/calendar"
)

var mode string

// CalendarCmd - связь с Google Calendar
var CalendarCmd = &cobra.Command{
	Use:   "calendar",
	Short: "Синхронизация событий с Google Calendar",
}

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Выдать доступ к календарю",
	Long: `Печатает ссылку для выдачи доступа и ждет код авторизации.

Файл учетных данных OAuth (credentials.json) задается CALENDAR_CREDENTIALS_PATH.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		url, err := app.CalendarAuthURL()
		if err != nil {
			return err
		}

		fmt.Println("Откройте ссылку в браузере и разрешите доступ:")
		fmt.Println()
		fmt.Println(url)
		fmt.Println()
		fmt.Print("Код авторизации: ")
		code, err := bufio.NewReader(os.Stdin).ReadString('\n')
		if err != nil && code == "" {
			return fmt.Errorf("ошибка чтения кода: %w", err)
		}

		if err := app.CalendarAuthorize(cmd.Context(), strings.TrimSpace(code)); err != nil {
			return err
		}
		color.Green("✅ Доступ к календарю получен")
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Синхронизировать события",
	Long: `Режимы:
  two-way - изменения переносятся в обе стороны, побеждает более позднее;
  master  - календарь главный для активных событий, выполненные события
            удаляются из календаря и остаются только локально.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		var m cal.Mode
		if mode != "" {
			if m, err = cal.ParseMode(mode); err != nil {
				return err
			}
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), 5*time.Minute)
		defer cancel()

		res, err := app.SyncCalendar(ctx, m)
		if res != nil && types.JSONOutput(cmd) {
			if perr := types.PrintJSON(res); perr != nil {
				return perr
			}
		}
		if err != nil {
			return fmt.Errorf("ошибка синхронизации календаря: %w", err)
		}
		if types.JSONOutput(cmd) {
			return nil
		}

		if res.Failed > 0 {
			color.Yellow("⚠️  Календарь синхронизирован с ошибками (%d)", res.Failed)
			for _, e := range res.Errors {
				fmt.Printf("  • %v\n", e)
			}
		} else {
			color.Green("✅ Календарь синхронизирован")
		}
		fmt.Printf("Создано: %d, обновлено: %d, удалено: %d\n", res.Created, res.Updated, res.Deleted)
		fmt.Printf("Импортировано: %d, получено изменений: %d, снято: %d\n", res.Imported, res.Pulled, res.Dropped)
		return nil
	},
}

func init() {
	syncCmd.Flags().StringVarP(&mode, "mode", "m", "", "режим: two-way или master (по умолчанию из настроек)")
	CalendarCmd.AddCommand(authCmd, syncCmd)
}
