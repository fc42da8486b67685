package timer

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"studysync/cmd/client/cmd/types"
	"studysync/internal/app/client"
)

var (
	course   string
	duration time.Duration
	isBreak  bool
)

// TimerCmd - таймер учебы и перерывов. Состояние переживает перезапуск.
var TimerCmd = &cobra.Command{
	Use:   "timer",
	Short: "Таймер учебной сессии",
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Запустить таймер",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}

		kind := client.TimerStudy
		if isBreak {
			kind = client.TimerBreak
		}
		snap, err := app.StartTimer(cmd.Context(), kind, course, duration)
		if errors.Is(err, client.ErrTimerRunning) {
			return fmt.Errorf("таймер уже запущен, остановите его: studysync timer stop")
		}
		if err != nil {
			return err
		}

		if snap.Kind == client.TimerBreak {
			fmt.Printf("✓ Перерыв на %s\n", snap.PlannedDuration)
			return nil
		}
		fmt.Printf("✓ Учеба по курсу %s, %s\n", snap.Course, snap.PlannedDuration)
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Показать состояние таймера",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		snap, ok, err := app.Timer(cmd.Context())
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Таймер не запущен")
			return nil
		}

		now := time.Now()
		if types.JSONOutput(cmd) {
			return types.PrintJSON(map[string]any{
				"snapshot":  snap,
				"elapsed":   snap.Elapsed(now).Seconds(),
				"remaining": snap.Remaining(now).Seconds(),
				"finished":  snap.Finished(now),
			})
		}

		fmt.Printf("%s %s: прошло %s", snap.Kind, snap.Course, snap.Elapsed(now).Round(time.Second))
		if snap.PlannedDuration > 0 {
			fmt.Printf(", осталось %s", snap.Remaining(now).Round(time.Second))
		}
		fmt.Println()
		if snap.Finished(now) {
			fmt.Println("⏰ Время вышло: studysync timer stop")
		}
		return nil
	},
}

var stopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Остановить таймер и записать сессию",
	RunE: func(cmd *cobra.Command, _ []string) error {
		app, err := types.App(cmd)
		if err != nil {
			return err
		}
		s, err := app.StopTimer(cmd.Context())
		if errors.Is(err, client.ErrTimerNotRunning) {
			fmt.Println("Таймер не запущен")
			return nil
		}
		if err != nil {
			return err
		}
		if s == nil {
			fmt.Println("✓ Таймер остановлен")
			return nil
		}
		fmt.Printf("✓ Сессия записана: %s, %s\n", s.Course, time.Duration(s.Seconds)*time.Second)
		return nil
	},
}

func init() {
	startCmd.Flags().StringVarP(&course, "course", "c", "", "курс (по умолчанию последний)")
	startCmd.Flags().DurationVarP(&duration, "duration", "d", 25*time.Minute, "длительность")
	startCmd.Flags().BoolVar(&isBreak, "break", false, "перерыв вместо учебы")
	TimerCmd.AddCommand(startCmd, statusCmd, stopCmd)
}
