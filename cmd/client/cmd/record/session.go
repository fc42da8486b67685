package record

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
	"studysync/internal/domain/dataset"
)

var (
	sessionNotes  string
	sessionCourse string
)

// SessionCmd - учебные сессии
var SessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Учебные сессии",
}

var sessionAddCmd = &cobra.Command{
	Use:   "add <course> <duration>",
	Short: "Записать учебную сессию",
	Long: `Записывает завершенную учебную сессию.

Длительность задается в формате Go: 25m, 1h30m.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		d, err := time.ParseDuration(args[1])
		if err != nil || d < 0 {
			return fmt.Errorf("некорректная длительность: %s", args[1])
		}

		s, err := app.AddSession(cmd.Context(), args[0], int(d.Seconds()), sessionNotes)
		if err != nil {
			return fmt.Errorf("ошибка сохранения сессии: %w", err)
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(s)
		}
		fmt.Printf("✓ Сессия записана (ID: %s)\n", s.ID)
		return nil
	},
}

var sessionListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список учебных сессий",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		var sessions []dataset.Session
		for _, s := range app.Dataset().Sessions {
			if matchCourse(sessionCourse, s.Course) {
				sessions = append(sessions, s)
			}
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(sessions)
		}
		if len(sessions) == 0 {
			fmt.Println("Сессии не найдены")
			return nil
		}

		w := newTable()
		fmt.Fprintln(w, "ID\tКУРС\tДЛИТЕЛЬНОСТЬ\tИЗМЕНЕНА\tЗАМЕТКИ")
		var total int
		for _, s := range sessions {
			total += s.Seconds
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", s.Key(), s.Course, formatSeconds(s.Seconds), formatSaved(s.Meta), s.Notes)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\nВсего: %d сессий, %s\n", len(sessions), formatSeconds(total))
		return nil
	},
}

func init() {
	sessionAddCmd.Flags().StringVarP(&sessionNotes, "notes", "n", "", "заметки к сессии")
	sessionListCmd.Flags().StringVarP(&sessionCourse, "course", "c", "", "фильтр по курсу")

	SessionCmd.AddCommand(sessionAddCmd, sessionListCmd, deleteCmd(dataset.CollectionSessions))
}
