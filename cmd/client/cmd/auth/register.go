package auth

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
)

var RegisterCmd = &cobra.Command{
	Use:   "register",
	Short: "Зарегистрировать нового пользователя",
	Long: `Регистрация нового пользователя на сервере StudySync.

После регистрации вы сможете синхронизировать данные между устройствами.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		fmt.Println("=== Регистрация нового пользователя ===")
		fmt.Println()

		login, err := readLogin("Логин: ")
		if err != nil {
			return err
		}
		password, err := readPassword("Пароль: ")
		if err != nil {
			return err
		}
		passwordConfirm, err := readPassword("Повторите пароль: ")
		if err != nil {
			return err
		}

		if password != passwordConfirm {
			return fmt.Errorf("пароли не совпадают")
		}
		if len(password) < 8 {
			return fmt.Errorf("пароль должен содержать минимум 8 символов")
		}

		fmt.Println("Регистрация...")
		if err := app.Register(cmd.Context(), login, password); err != nil {
			return fmt.Errorf("ошибка регистрации: %w", err)
		}

		fmt.Println()
		color.Green("✅ Регистрация успешно завершена!")
		fmt.Println("Теперь вы можете войти в систему: studysync auth login")
		return nil
	},
}
