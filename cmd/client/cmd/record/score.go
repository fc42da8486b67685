package record

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
	"studysync/internal/domain/dataset"
)

var (
	scoreNotes  string
	scoreCourse string
)

// ScoreCmd - результаты тестов
var ScoreCmd = &cobra.Command{
	Use:   "score",
	Short: "Результаты тестов",
}

var scoreAddCmd = &cobra.Command{
	Use:   "add <course> <score>",
	Short: "Записать результат теста (0-100)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		value, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("результат должен быть числом: %s", args[1])
		}

		sc, err := app.AddScore(cmd.Context(), args[0], value, scoreNotes)
		if err != nil {
			return fmt.Errorf("ошибка сохранения результата: %w", err)
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(sc)
		}
		fmt.Printf("✓ Результат записан (ID: %s)\n", sc.ID)
		return nil
	},
}

var scoreListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список результатов",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		var scores []dataset.Score
		for _, sc := range app.Dataset().Scores {
			if matchCourse(scoreCourse, sc.Course) {
				scores = append(scores, sc)
			}
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(scores)
		}
		if len(scores) == 0 {
			fmt.Println("Результаты не найдены")
			return nil
		}

		w := newTable()
		fmt.Fprintln(w, "ID\tКУРС\tРЕЗУЛЬТАТ\tИЗМЕНЕН\tЗАМЕТКИ")
		var sum int
		for _, sc := range scores {
			sum += sc.Score
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", sc.Key(), sc.Course, sc.Score, formatSaved(sc.Meta), sc.Notes)
		}
		if err := w.Flush(); err != nil {
			return err
		}
		fmt.Printf("\nСредний результат: %.1f\n", float64(sum)/float64(len(scores)))
		return nil
	},
}

func init() {
	scoreAddCmd.Flags().StringVarP(&scoreNotes, "notes", "n", "", "заметки")
	scoreListCmd.Flags().StringVarP(&scoreCourse, "course", "c", "", "фильтр по курсу")

	ScoreCmd.AddCommand(scoreAddCmd, scoreListCmd, deleteCmd(dataset.CollectionScores))
}
