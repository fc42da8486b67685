package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
	"studysync/internal/app/client"
)

var LoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Войти в систему StudySync",
	Long: `Аутентификация на сервере StudySync.

После входа токен сохраняется локально, и сразу выполняется синхронизация:
локальные записи отправляются на сервер, записи с других устройств загружаются.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		fmt.Println("=== Вход в систему ===")
		fmt.Println()

		login, err := readLogin("Логин: ")
		if err != nil {
			return err
		}
		password, err := readPassword("Пароль: ")
		if err != nil {
			return err
		}

		fmt.Println("Аутентификация...")
		ctx, cancel := context.WithTimeout(cmd.Context(), 2*time.Minute)
		defer cancel()

		result, err := app.Login(ctx, login, password)
		if result == nil && err != nil {
			return fmt.Errorf("ошибка аутентификации: %w", err)
		}

		fmt.Println()
		color.Green("✅ Вход выполнен успешно!")

		switch {
		case err != nil:
			color.Yellow("⚠️  Ошибка синхронизации: %v", err)
			fmt.Println("Вы можете продолжить работу в офлайн-режиме")
		case result.Outcome == client.OutcomePartial:
			color.Yellow("⚠️  Синхронизация завершена с ошибками (%d)", result.Failed)
		case result.Outcome == client.OutcomeSynced:
			fmt.Println("✓ Данные синхронизированы")
		}
		return nil
	},
}
