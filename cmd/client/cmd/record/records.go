package record

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
	"studysync/internal/domain/dataset"
)

// deleteCmd строит команду удаления записи коллекции по id.
func deleteCmd(c dataset.Collection) *cobra.Command {
	return &cobra.Command{
		Use:     "rm <id>",
		Aliases: []string{"delete"},
		Short:   "Удалить запись",
		Long: `Удаляет запись локально. Удаление отправляется на сервер при
следующей синхронизации.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := types.App(cmd)
			if err != nil {
				return err
			}
			if err := app.DeleteRecord(cmd.Context(), c, args[0]); err != nil {
				return fmt.Errorf("ошибка удаления: %w", err)
			}
			fmt.Printf("✓ Запись %s удалена\n", args[0])
			return nil
		},
	}
}

func newTable() *tabwriter.Writer {
	return tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
}

// formatSaved выводит метку записи в локальном времени.
func formatSaved(m dataset.Meta) string {
	t := m.Modified()
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}

func formatSeconds(seconds int) string {
	return (time.Duration(seconds) * time.Second).String()
}

func matchCourse(filter, course string) bool {
	return filter == "" || strings.EqualFold(filter, course)
}
