package collection

import (
	"context"

	"studysync/internal/domain/dataset"
)

type Repository interface {
	ListRows(ctx context.Context, userID int, c dataset.Collection) ([]Row, error)
	// UpsertRow пишет строку, если она не старее сохраненной. applied=false - строка устарела.
	UpsertRow(ctx context.Context, userID int, c dataset.Collection, row Row) (applied bool, err error)
	DeleteRow(ctx context.Context, userID int, c dataset.Collection, id string) (deleted bool, err error)

	GetPreferences(ctx context.Context, userID int) (*PreferencesRow, error)
	UpsertPreferences(ctx context.Context, userID int, prefs PreferencesRow) (applied bool, err error)

	ListCourses(ctx context.Context, userID int) ([]string, error)
	AddCourses(ctx context.Context, userID int, courses []string) error
}
