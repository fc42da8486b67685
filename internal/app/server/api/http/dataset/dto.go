package dataset

import "studysync/internal/domain/collection"

type fetchInput struct{}

type fetchOutput struct {
	Body collection.FetchResponse
}

type upsertInput struct {
	Collection string `path:"collection" enum:"sessions,scores,events" doc:"Коллекция"`
	Body       collection.UpsertRequest
}

type upsertOutput struct {
	Body collection.UpsertResponse
}

type deleteInput struct {
	Collection string `path:"collection" enum:"sessions,scores,events" doc:"Коллекция"`
	ID         string `path:"id" minLength:"1" doc:"Идентификатор записи"`
}

type deleteOutput struct {
	Body collection.StatusResponse
}

type preferencesInput struct {
	Body collection.PreferencesRow
}

type preferencesOutput struct {
	Body collection.PreferencesResponse
}

type coursesInput struct {
	Body collection.CoursesRequest
}

type coursesOutput struct {
	Body collection.CoursesResponse
}
