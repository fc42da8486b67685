package record

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
	"studysync/internal/domain/dataset"
)

var (
	eventPriority string
	eventUndo     bool
	eventAll      bool
)

// EventCmd - запланированные события
var EventCmd = &cobra.Command{
	Use:   "event",
	Short: "Экзамены, дедлайны и другие события",
}

var eventAddCmd = &cobra.Command{
	Use:   "add <title> <date>",
	Short: "Запланировать событие",
	Long:  `Добавляет событие на дату в формате 2006-01-02.`,
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		p := dataset.Priority(eventPriority)
		if err := p.Validate(); err != nil {
			return err
		}

		e, err := app.AddEvent(cmd.Context(), args[0], args[1], p)
		if err != nil {
			return fmt.Errorf("ошибка сохранения события: %w", err)
		}
		if types.JSONOutput(cmd) {
			return types.PrintJSON(e)
		}
		fmt.Printf("✓ Событие запланировано (ID: %s)\n", e.ID)
		return nil
	},
}

var eventDoneCmd = &cobra.Command{
	Use:   "done <id>",
	Short: "Отметить событие выполненным",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		if err := app.SetEventDone(cmd.Context(), args[0], !eventUndo); err != nil {
			return err
		}
		if eventUndo {
			fmt.Println("✓ Событие возвращено в работу")
		} else {
			fmt.Println("✓ Событие выполнено")
		}
		return nil
	},
}

var eventListCmd = &cobra.Command{
	Use:   "list",
	Short: "Список событий",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		var events []dataset.Event
		for _, e := range app.Dataset().Events {
			if eventAll || !e.IsDone {
				events = append(events, e)
			}
		}
		sort.SliceStable(events, func(i, j int) bool { return events[i].Date < events[j].Date })

		if types.JSONOutput(cmd) {
			return types.PrintJSON(events)
		}
		if len(events) == 0 {
			fmt.Println("События не найдены")
			return nil
		}

		high := color.New(color.FgRed).SprintFunc()
		w := newTable()
		fmt.Fprintln(w, "ID\tДАТА\tСОБЫТИЕ\tПРИОРИТЕТ\tСТАТУС")
		for _, e := range events {
			status := "-"
			if e.IsDone {
				status = "✓"
			}
			priority := string(e.Priority.OrDefault())
			if e.Priority == dataset.PriorityHigh {
				priority = high(priority)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", e.Key(), e.Date, e.Title, priority, status)
		}
		return w.Flush()
	},
}

func init() {
	eventAddCmd.Flags().StringVarP(&eventPriority, "priority", "p", string(dataset.PriorityMedium), "приоритет: low, medium, high")
	eventDoneCmd.Flags().BoolVar(&eventUndo, "undo", false, "вернуть событие в работу")
	eventListCmd.Flags().BoolVarP(&eventAll, "all", "a", false, "показать и выполненные")

	EventCmd.AddCommand(eventAddCmd, eventDoneCmd, eventListCmd, deleteCmd(dataset.CollectionEvents))
}
