package cmd

import (
	"studysync/cmd/client/cmd/auth"
	"studysync/cmd/client/cmd/calendar"
	"studysync/cmd/client/cmd/data"
	"studysync/cmd/client/cmd/record"
	"studysync/cmd/client/cmd/sync"
	"studysync/cmd/client/cmd/timer"
)

func init() {
	// Добавляем команды аутентификации
	rootCmd.AddCommand(auth.AuthCmd)
	auth.AuthCmd.AddCommand(auth.RegisterCmd)
	auth.AuthCmd.AddCommand(auth.LoginCmd)
	auth.AuthCmd.AddCommand(auth.LogoutCmd)

	// Добавляем команды работы с записями
	rootCmd.AddCommand(record.SessionCmd, record.ScoreCmd, record.EventCmd, record.CourseCmd, record.PrefsCmd)

	rootCmd.AddCommand(sync.SyncCmd, sync.DaemonCmd)
	rootCmd.AddCommand(calendar.CalendarCmd)
	rootCmd.AddCommand(data.DataCmd)
	rootCmd.AddCommand(timer.TimerCmd)
}
