package data

import (
	"fmt"

	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
)

// DataCmd - резервные копии
var DataCmd = &cobra.Command{
	Use:   "data",
	Short: "Выгрузка и загрузка резервной копии",
}

var exportCmd = &cobra.Command{
	Use:   "export <file>",
	Short: "Сохранить все данные в JSON-файл",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		b, err := app.ExportData(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Выгружено: %d сессий, %d результатов, %d событий, %d курсов\n",
			len(b.Sessions), len(b.Scores), len(b.Events), len(b.Courses))
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Заменить локальные данные резервной копией",
	Long: `Заменяет все локальные данные содержимым файла.

Записи, которых нет на сервере, будут отправлены при следующей синхронизации.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		ds, skipped, err := app.ImportData(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("✓ Загружено: %d сессий, %d результатов, %d событий, %d курсов\n",
			len(ds.Sessions), len(ds.Scores), len(ds.Events), len(ds.Courses))
		if skipped > 0 {
			fmt.Printf("Пропущено поврежденных записей: %d\n", skipped)
		}
		return nil
	},
}

func init() {
	DataCmd.AddCommand(exportCmd, importCmd)
}
