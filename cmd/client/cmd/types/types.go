// Package types содержит общие для команд клиента ключи и хелперы вывода.
package types

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"studysync/internal/app/client"
)

type ctxKey string

// ClientAppKey - ключ приложения в контексте команды
const ClientAppKey ctxKey = "app"

// App достает приложение из контекста команды.
func App(cmd *cobra.Command) (*client.App, error) {
	app, ok := cmd.Context().Value(ClientAppKey).(*client.App)
	if !ok || app == nil {
		return nil, fmt.Errorf("приложение не инициализировано")
	}
	return app, nil
}

// JSONOutput сообщает, запрошен ли вывод в JSON (глобальный флаг --json).
func JSONOutput(cmd *cobra.Command) bool {
	v, err := cmd.Flags().GetBool("json")
	return err == nil && v
}

func PrintJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
