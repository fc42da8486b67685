package auth

import (
	"fmt"

	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
)

var LogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Выйти из системы",
	Long:  `Отзывает токен на сервере и удаляет его локально. Локальные данные сохраняются.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		login := app.UserLogin()
		if err := app.Logout(cmd.Context()); err != nil {
			return fmt.Errorf("ошибка выхода: %w", err)
		}

		if login != "" {
			fmt.Printf("✓ Пользователь %s вышел из системы\n", login)
		} else {
			fmt.Println("✓ Выход выполнен")
		}
		return nil
	},
}
