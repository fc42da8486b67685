package calendar

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/exp/slog"

	"studysync/internal/domain/dataset"
)

// Mode - способ синхронизации с календарем
type Mode string

const (
	// ModeTwoWay - изменения переносятся в обе стороны, побеждает более позднее
	ModeTwoWay Mode = "two-way"
	// ModeMaster - календарь главный для активных событий, выполненные
	// события хранятся только локально
	ModeMaster Mode = "master"
)

func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeTwoWay, ModeMaster:
		return Mode(s), nil
	}
	return "", fmt.Errorf("неизвестный режим календаря: %s", s)
}

type Config struct {
	CalendarName string
	BatchSize    int
	BatchPause   time.Duration
	MaxAttempts  int
}

// IDSource выдает идентификаторы для импортированных событий.
type IDSource interface {
	NewID() string
}

// Result - итог синхронизации с календарем
type Result struct {
	Events  []dataset.Event
	Changed bool

	Created  int
	Updated  int
	Deleted  int
	Imported int
	Pulled   int
	Dropped  int
	Failed   int
	Errors   []error
}

func (r *Result) collect(errs []error) int {
	ok := 0
	for _, err := range errs {
		if err != nil {
			r.Failed++
			r.Errors = append(r.Errors, err)
			continue
		}
		ok++
	}
	return ok
}

type Bridge struct {
	provider   Provider
	cfg        Config
	ids        IDSource
	log        *slog.Logger
	now        func() time.Time
	newBackOff func() backoff.BackOff
}

func NewBridge(p Provider, cfg Config, ids IDSource, log *slog.Logger) *Bridge {
	return &Bridge{
		provider: p,
		cfg:      cfg,
		ids:      ids,
		log:      log.With("component", "calendar"),
		now:      time.Now,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = 30 * time.Second
			b.MaxElapsedTime = 2 * time.Minute
			return b
		},
	}
}

// Sync сводит локальные события с календарем. Ошибка возвращается, только если
// календарь недоступен целиком; сбои отдельных вызовов считаются в Result.Failed.
func (b *Bridge) Sync(ctx context.Context, mode Mode, events []dataset.Event) (*Result, error) {
	calID, err := b.provider.FindOrCreateCalendar(ctx, b.cfg.CalendarName)
	if err != nil {
		return nil, fmt.Errorf("ошибка поиска календаря: %w", err)
	}
	remote, err := b.provider.ListEvents(ctx, calID)
	if err != nil {
		return nil, fmt.Errorf("ошибка загрузки событий календаря: %w", err)
	}

	local := slices.Clone(events)
	var res *Result
	switch mode {
	case ModeTwoWay:
		res = b.syncTwoWay(ctx, calID, local, remote)
	case ModeMaster:
		res = b.syncMaster(ctx, calID, local, remote)
	default:
		return nil, fmt.Errorf("неизвестный режим календаря: %s", mode)
	}

	b.uniqueIDs(res.Events)
	res.Changed = !slices.Equal(events, res.Events)
	b.log.Info("Календарь синхронизирован",
		"mode", mode,
		"created", res.Created,
		"updated", res.Updated,
		"deleted", res.Deleted,
		"imported", res.Imported,
		"dropped", res.Dropped,
		"failed", res.Failed,
	)
	return res, nil
}

// remoteIndex - события календаря с разобранными метаданными
type remoteIndex struct {
	events  []RemoteEvent
	texts   []string
	metas   []Metadata
	marked  []bool
	claimed []bool

	byID      map[string]int
	byLocalID map[string]int
	byFuzzy   map[string][]int
}

func newRemoteIndex(events []RemoteEvent) *remoteIndex {
	idx := &remoteIndex{
		events:    events,
		texts:     make([]string, len(events)),
		metas:     make([]Metadata, len(events)),
		marked:    make([]bool, len(events)),
		claimed:   make([]bool, len(events)),
		byID:      make(map[string]int, len(events)),
		byLocalID: make(map[string]int),
		byFuzzy:   make(map[string][]int),
	}
	for i, r := range events {
		idx.texts[i], idx.metas[i], idx.marked[i] = DecodeDescription(r.Description)
		idx.byID[r.ID] = i
		if id := idx.metas[i].LocalID; id != "" {
			idx.byLocalID[id] = i
		}
		key := fuzzyKey(r.Title, r.Date)
		idx.byFuzzy[key] = append(idx.byFuzzy[key], i)
	}
	return idx
}

// link находит пару для локального события: по externalId, по встроенному
// id, затем по названию и дате. linked=true, если событие уже было связано.
func (idx *remoteIndex) link(e dataset.Event) (i int, linked bool) {
	if e.ExternalID != "" {
		i, ok := idx.byID[e.ExternalID]
		if !ok || idx.claimed[i] {
			return -1, true
		}
		return i, true
	}
	if i, ok := idx.byLocalID[e.ID]; ok && !idx.claimed[i] {
		return i, false
	}
	for _, i := range idx.byFuzzy[fuzzyKey(e.Title, e.Date)] {
		if !idx.claimed[i] && (!idx.marked[i] || idx.metas[i].LocalID == "") {
			return i, false
		}
	}
	return -1, false
}

func fuzzyKey(title, date string) string {
	return strings.Join(strings.Fields(strings.ToLower(title)), " ") + "|" + date
}

func (b *Bridge) syncTwoWay(ctx context.Context, calID string, local []dataset.Event, remote []RemoteEvent) *Result {
	res := &Result{}
	idx := newRemoteIndex(remote)

	out := make([]dataset.Event, 0, len(local)+len(remote))
	var creates, patches []int
	patchRemote := map[int]int{}

	for _, e := range local {
		i, linked := idx.link(e)
		if i < 0 {
			if linked {
				// было связано, но в календаре удалено
				res.Dropped++
				continue
			}
			out = append(out, e)
			creates = append(creates, len(out)-1)
			continue
		}

		idx.claimed[i] = true
		r := idx.events[i]
		e.ExternalID = r.ID

		switch {
		case sameContent(e, r, idx.metas[i]):
		case r.Updated.After(e.Modified()):
			applyRemote(&e, r, idx.metas[i], idx.marked[i])
			res.Pulled++
		default:
			patchRemote[len(out)] = i
			patches = append(patches, len(out))
		}
		out = append(out, e)
	}

	for i, r := range remote {
		if idx.claimed[i] {
			continue
		}
		out = append(out, b.fromRemote(r, idx.metas[i], idx.marked[i]))
		res.Imported++
	}

	calls := make([]call, 0, len(creates)+len(patches))
	for _, at := range creates {
		calls = append(calls, func(ctx context.Context) error {
			created, err := b.provider.InsertEvent(ctx, calID, toRemote(out[at], ""))
			if err != nil {
				return fmt.Errorf("create %q: %w", out[at].Title, err)
			}
			out[at].ExternalID = created.ID
			return nil
		})
	}
	for _, at := range patches {
		ri := patchRemote[at]
		calls = append(calls, func(ctx context.Context) error {
			ev := toRemote(out[at], idx.texts[ri])
			if _, err := b.provider.PatchEvent(ctx, calID, ev); err != nil {
				return fmt.Errorf("update %q: %w", out[at].Title, err)
			}
			return nil
		})
	}

	errs := b.runBatches(ctx, calls)
	res.Created = res.collect(errs[:len(creates)])
	res.Updated = res.collect(errs[len(creates):])
	res.Events = out
	return res
}

func (b *Bridge) syncMaster(ctx context.Context, calID string, local []dataset.Event, remote []RemoteEvent) *Result {
	res := &Result{}

	// 1. новые активные события уходят в календарь до замены
	var creates []int
	for i, e := range local {
		if !e.IsDone && e.ExternalID == "" {
			creates = append(creates, i)
		}
	}
	created := make([]RemoteEvent, len(creates))
	calls := make([]call, 0, len(creates))
	for k, at := range creates {
		calls = append(calls, func(ctx context.Context) error {
			ev, err := b.provider.InsertEvent(ctx, calID, toRemote(local[at], ""))
			if err != nil {
				return fmt.Errorf("create %q: %w", local[at].Title, err)
			}
			created[k] = ev
			local[at].ExternalID = ev.ID
			return nil
		})
	}
	createErrs := b.runBatches(ctx, calls)
	res.Created = res.collect(createErrs)

	var unsent []dataset.Event
	for k, at := range creates {
		if createErrs[k] != nil {
			unsent = append(unsent, local[at])
			continue
		}
		remote = append(remote, created[k])
	}

	// 2. выполненные события удаляются из календаря
	present := make(map[string]bool, len(remote))
	for _, r := range remote {
		present[r.ID] = true
	}
	var deletes []int
	for i, e := range local {
		if e.IsDone && e.ExternalID != "" && present[e.ExternalID] {
			deletes = append(deletes, i)
		}
	}
	calls = calls[:0]
	for _, at := range deletes {
		calls = append(calls, func(ctx context.Context) error {
			err := b.provider.DeleteEvent(ctx, calID, local[at].ExternalID)
			if err != nil && !errors.Is(err, ErrEventNotFound) {
				return fmt.Errorf("delete %q: %w", local[at].Title, err)
			}
			return nil
		})
	}
	res.Deleted = res.collect(b.runBatches(ctx, calls))

	// 3. активные события берутся из календаря целиком
	done := make(map[string]bool)
	byExt := make(map[string]dataset.Event)
	byID := make(map[string]dataset.Event)
	for _, e := range local {
		if e.IsDone && e.ExternalID != "" {
			// копия, которую не удалось удалить, в активные не попадает
			done[e.ExternalID] = true
		}
		if e.ExternalID != "" {
			byExt[e.ExternalID] = e
		}
		byID[e.ID] = e
	}

	out := make([]dataset.Event, 0, len(remote)+len(local))
	seen := make(map[string]bool)
	for _, r := range remote {
		if done[r.ID] {
			continue
		}
		_, meta, marked := DecodeDescription(r.Description)

		e, ok := byExt[r.ID]
		if !ok && meta.LocalID != "" {
			e, ok = byID[meta.LocalID]
		}
		if !ok {
			e = b.fromRemote(r, meta, marked)
			res.Imported++
		} else {
			e.ExternalID = r.ID
			if !sameContent(e, r, meta) {
				applyRemote(&e, r, meta, marked)
				res.Pulled++
			}
		}
		out = append(out, e)
		seen[e.ID] = true
		seen["ext:"+r.ID] = true
	}
	for _, e := range unsent {
		out = append(out, e)
		seen[e.ID] = true
	}

	for _, e := range local {
		if !e.IsDone && !seen[e.ID] {
			// активное событие исчезло из календаря
			res.Dropped++
		}
	}

	// 4. история выполненных минус то, что уже пришло из календаря
	for _, e := range local {
		if !e.IsDone || seen[e.ID] || (e.ExternalID != "" && seen["ext:"+e.ExternalID]) {
			continue
		}
		out = append(out, e)
	}

	res.Events = out
	return res
}

// uniqueIDs выдает новый id повторам: одно событие календаря могло
// оказаться скопировано с тем же служебным id.
func (b *Bridge) uniqueIDs(events []dataset.Event) {
	seen := make(map[string]bool, len(events))
	for i := range events {
		if seen[events[i].ID] {
			events[i].ID = b.ids.NewID()
		}
		seen[events[i].ID] = true
	}
}

func sameContent(e dataset.Event, r RemoteEvent, m Metadata) bool {
	return e.Title == r.Title && e.Date == r.Date &&
		e.Priority.OrDefault() == m.Priority.OrDefault() && e.IsDone == m.Done
}

func applyRemote(e *dataset.Event, r RemoteEvent, m Metadata, marked bool) {
	e.Title = r.Title
	e.Date = r.Date
	if marked {
		e.Priority = m.Priority.OrDefault()
		e.IsDone = m.Done
	}
	if !r.Updated.IsZero() {
		e.SavedAt = dataset.FormatTime(r.Updated)
	}
}

func (b *Bridge) fromRemote(r RemoteEvent, m Metadata, marked bool) dataset.Event {
	e := dataset.Event{
		Title:      r.Title,
		Date:       r.Date,
		Priority:   dataset.PriorityMedium,
		ExternalID: r.ID,
	}
	if marked {
		e.Priority = m.Priority.OrDefault()
		e.IsDone = m.Done
		e.ID = m.LocalID
	}
	if e.ID == "" {
		e.ID = b.ids.NewID()
	}

	updated := r.Updated
	if updated.IsZero() {
		updated = b.now()
	}
	e.Touch(updated)
	return e
}

func toRemote(e dataset.Event, text string) RemoteEvent {
	return RemoteEvent{
		ID:    e.ExternalID,
		Title: e.Title,
		Date:  e.Date,
		Description: EncodeDescription(text, Metadata{
			LocalID:  e.ID,
			Priority: e.Priority,
			Done:     e.IsDone,
		}),
	}
}
