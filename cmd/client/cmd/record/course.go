package record

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
	"studysync/internal/domain/dataset"
)

// CourseCmd - список курсов
var CourseCmd = &cobra.Command{
	Use:   "course",
	Short: "Курсы",
}

var courseAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Добавить курс",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		added, err := app.AddCourse(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !added {
			fmt.Printf("Курс %q уже есть\n", args[0])
			return nil
		}
		fmt.Printf("✓ Курс %q добавлен\n", args[0])
		return nil
	},
}

var courseListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список курсов",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		courses := app.Dataset().Courses
		if types.JSONOutput(cmd) {
			return types.PrintJSON(courses)
		}
		if len(courses) == 0 {
			fmt.Println("Курсы не найдены")
			return nil
		}
		for _, c := range courses {
			fmt.Println(c)
		}
		return nil
	},
}

// PrefsCmd - пользовательские настройки
var PrefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Настройки",
	Long: `Настройки синхронизируются целиком: побеждает набор, измененный позже.

Значение разбирается как JSON (true, 25, "text"), иначе сохраняется строкой.`,
}

var prefsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Изменить настройку",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		var value any
		if err := json.Unmarshal([]byte(args[1]), &value); err != nil {
			value = args[1]
		}
		if err := app.SetPreference(cmd.Context(), args[0], value); err != nil {
			return err
		}
		fmt.Printf("✓ %s = %v\n", args[0], value)
		return nil
	},
}

var prefsGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Показать настройки",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		prefs := app.Dataset().Preferences

		if len(args) == 1 {
			v, ok := prefs[args[0]]
			if !ok {
				return fmt.Errorf("настройка %q не задана", args[0])
			}
			if types.JSONOutput(cmd) {
				return types.PrintJSON(v)
			}
			fmt.Println(v)
			return nil
		}

		if types.JSONOutput(cmd) {
			return types.PrintJSON(prefs)
		}
		keys := make([]string, 0, len(prefs))
		for k := range prefs {
			if k != dataset.PreferencesUpdatedAtKey {
				keys = append(keys, k)
			}
		}
		sort.Strings(keys)
		for _, k := range keys {
			fmt.Printf("%s = %v\n", k, prefs[k])
		}
		return nil
	},
}

func init() {
	CourseCmd.AddCommand(courseAddCmd, courseListCmd)
	PrefsCmd.AddCommand(prefsSetCmd, prefsGetCmd)
}
