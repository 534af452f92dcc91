package client_test

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/p-n-ai/pai-learn/internal/client"
	"github.com/p-n-ai/pai-learn/internal/progress"
)

type outcome struct {
	view *progress.View
	err  error
}

type call struct {
	sections []progress.SectionProgress
	done     chan outcome
}

// fakeAPI hands every update to the test, which decides when and how it
// resolves.
type fakeAPI struct {
	calls  chan *call
	server progress.Record
}

func newFakeAPI() *fakeAPI {
	return &fakeAPI{calls: make(chan *call)}
}

func (f *fakeAPI) GetProgress(_ context.Context, userID, courseID string) (*progress.View, error) {
	r := f.server
	r.UserID, r.CourseID = userID, courseID
	return &progress.View{Record: r}, nil
}

func (f *fakeAPI) UpdateProgress(_ context.Context, _, _ string, sections []progress.SectionProgress) (*progress.View, error) {
	c := &call{sections: sections, done: make(chan outcome)}
	f.calls <- c
	o := <-c.done
	return o.view, o.err
}

type pendingUpdate struct {
	call   *call
	result chan error
}

// start issues an update and returns once the request reaches the API.
func start(t *testing.T, api *fakeAPI, co *client.Coordinator, sections []progress.SectionProgress) pendingUpdate {
	t.Helper()
	result := make(chan error, 1)
	go func() {
		_, err := co.Update(context.Background(), "u1", "c1", sections)
		result <- err
	}()
	select {
	case c := <-api.calls:
		return pendingUpdate{call: c, result: result}
	case <-time.After(2 * time.Second):
		t.Fatal("update never reached the API")
		return pendingUpdate{}
	}
}

func (p pendingUpdate) succeed(t *testing.T, rec progress.Record) {
	t.Helper()
	p.call.done <- outcome{view: &progress.View{Record: rec}}
	if err := <-p.result; err != nil {
		t.Fatalf("Update() error = %v", err)
	}
}

func (p pendingUpdate) fail(t *testing.T) {
	t.Helper()
	p.call.done <- outcome{err: errors.New("connection reset")}
	if err := <-p.result; err == nil {
		t.Fatal("Update() should return the write error")
	}
}

func chapters(sectionID string, done ...bool) []progress.SectionProgress {
	chs := make([]progress.ChapterProgress, len(done))
	for i, d := range done {
		chs[i] = progress.ChapterProgress{ChapterID: "ch" + string(rune('1'+i)), Completed: d}
	}
	return []progress.SectionProgress{{SectionID: sectionID, Chapters: chs}}
}

func record(sections []progress.SectionProgress) progress.Record {
	return progress.Record{
		UserID:    "u1",
		CourseID:  "c1",
		Sections:  sections,
		UpdatedAt: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func cached(t *testing.T, cache *client.ProgressCache) progress.Record {
	t.Helper()
	r, ok := cache.Get("u1", "c1")
	if !ok {
		t.Fatal("record missing from cache")
	}
	return r
}

func TestCoordinator_FailureRevertsExactly(t *testing.T) {
	api := newFakeAPI()
	cache := client.NewProgressCache()
	before := record([]progress.SectionProgress{
		{SectionID: "s1", Chapters: []progress.ChapterProgress{{ChapterID: "ch1"}, {ChapterID: "ch2", Completed: true}}},
		{SectionID: "s2", Chapters: []progress.ChapterProgress{{ChapterID: "ch3", Completed: true}}},
	})
	cache.Set(before)
	co := client.NewCoordinator(api, cache)

	p := start(t, api, co, chapters("s1", true, true))

	got := cached(t, cache)
	if len(got.Sections) != 1 || !got.Sections[0].Chapters[0].Completed {
		t.Fatalf("optimistic sections = %+v, want ch1 completed", got.Sections)
	}
	if !got.UpdatedAt.Equal(before.UpdatedAt) {
		t.Errorf("optimistic update changed UpdatedAt")
	}

	p.fail(t)

	if got := cached(t, cache); !reflect.DeepEqual(got, before) {
		t.Errorf("after revert = %+v, want %+v", got, before)
	}
}

func TestCoordinator_FailureWithoutPriorRecord(t *testing.T) {
	api := newFakeAPI()
	cache := client.NewProgressCache()
	co := client.NewCoordinator(api, cache)

	p := start(t, api, co, chapters("s1", true))
	if _, ok := cache.Get("u1", "c1"); !ok {
		t.Fatal("optimistic record should be visible before the write returns")
	}
	p.fail(t)

	if _, ok := cache.Get("u1", "c1"); ok {
		t.Error("revert should remove a record that did not exist before")
	}
}

func TestCoordinator_SuccessStoresServerRecord(t *testing.T) {
	api := newFakeAPI()
	cache := client.NewProgressCache()
	cache.Set(record(chapters("s1", false, true)))
	co := client.NewCoordinator(api, cache)

	// The server merges, so its record keeps ch2 from the earlier write.
	merged := record(chapters("s1", true, true))
	merged.UpdatedAt = merged.UpdatedAt.Add(time.Hour)

	p := start(t, api, co, []progress.SectionProgress{{SectionID: "s1", Chapters: []progress.ChapterProgress{{ChapterID: "ch1", Completed: true}}}})
	p.succeed(t, merged)

	if got := cached(t, cache); !reflect.DeepEqual(got, merged) {
		t.Errorf("cache = %+v, want server record %+v", got, merged)
	}
}

func TestCoordinator_SupersededFailureIgnored(t *testing.T) {
	api := newFakeAPI()
	cache := client.NewProgressCache()
	before := record(chapters("s1", false, false))
	cache.Set(before)
	co := client.NewCoordinator(api, cache)

	first := start(t, api, co, chapters("s1", true, false))
	second := start(t, api, co, chapters("s1", true, true))

	first.fail(t)
	if got := cached(t, cache); !reflect.DeepEqual(got.Sections, chapters("s1", true, true)) {
		t.Fatalf("stale revert clobbered the newer value: %+v", got.Sections)
	}

	second.fail(t)
	if got := cached(t, cache); !reflect.DeepEqual(got, before) {
		t.Errorf("after both failed = %+v, want %+v", got, before)
	}
}

func TestCoordinator_SupersededSuccessBecomesBase(t *testing.T) {
	api := newFakeAPI()
	cache := client.NewProgressCache()
	cache.Set(record(chapters("s1", false, false)))
	co := client.NewCoordinator(api, cache)

	first := start(t, api, co, chapters("s1", true, false))
	second := start(t, api, co, chapters("s1", true, true))

	confirmed := record(chapters("s1", true, false))
	first.succeed(t, confirmed)
	if got := cached(t, cache); !reflect.DeepEqual(got.Sections, chapters("s1", true, true)) {
		t.Fatalf("older success replaced the pending value: %+v", got.Sections)
	}

	second.fail(t)
	if got := cached(t, cache); !reflect.DeepEqual(got, confirmed) {
		t.Errorf("cache = %+v, want the confirmed first write %+v", got, confirmed)
	}
}

func TestCoordinator_LateSuccessAfterNewerFailure(t *testing.T) {
	api := newFakeAPI()
	cache := client.NewProgressCache()
	cache.Set(record(chapters("s1", false, false)))
	co := client.NewCoordinator(api, cache)

	first := start(t, api, co, chapters("s1", true, false))
	second := start(t, api, co, chapters("s1", true, true))

	second.fail(t)
	confirmed := record(chapters("s1", true, false))
	first.succeed(t, confirmed)

	if got := cached(t, cache); !reflect.DeepEqual(got, confirmed) {
		t.Errorf("cache = %+v, want %+v", got, confirmed)
	}
}

func TestCoordinator_LateSuccessAfterNewerSuccess(t *testing.T) {
	api := newFakeAPI()
	cache := client.NewProgressCache()
	co := client.NewCoordinator(api, cache)

	first := start(t, api, co, chapters("s1", true, false))
	second := start(t, api, co, chapters("s1", true, true))

	latest := record(chapters("s1", true, true))
	second.succeed(t, latest)
	first.succeed(t, record(chapters("s1", true, false)))

	if got := cached(t, cache); !reflect.DeepEqual(got, latest) {
		t.Errorf("cache = %+v, want the newest confirmed record", got)
	}
}

func TestCoordinator_StaleSuccessDoesNotBecomeBase(t *testing.T) {
	api := newFakeAPI()
	cache := client.NewProgressCache()
	co := client.NewCoordinator(api, cache)

	first := start(t, api, co, chapters("s1", true, false))
	second := start(t, api, co, chapters("s1", true, true))

	newest := record(chapters("s1", true, true))
	second.succeed(t, newest)

	third := start(t, api, co, chapters("s1", false, false))
	first.succeed(t, record(chapters("s1", true, false)))
	if got := cached(t, cache); !reflect.DeepEqual(got.Sections, chapters("s1", false, false)) {
		t.Fatalf("stale success replaced the pending value: %+v", got.Sections)
	}

	third.fail(t)
	if got := cached(t, cache); !reflect.DeepEqual(got, newest) {
		t.Errorf("cache = %+v, want newest confirmed %+v", got, newest)
	}
}

func TestCoordinator_RefreshKeepsPendingValue(t *testing.T) {
	api := newFakeAPI()
	api.server = record(chapters("s1", false, true))
	cache := client.NewProgressCache()
	co := client.NewCoordinator(api, cache)

	p := start(t, api, co, chapters("s1", true, false))
	if _, err := co.Refresh(context.Background(), "u1", "c1"); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if got := cached(t, cache); !reflect.DeepEqual(got.Sections, chapters("s1", true, false)) {
		t.Fatalf("refresh replaced the pending value: %+v", got.Sections)
	}

	p.fail(t)
	if got := cached(t, cache); !reflect.DeepEqual(got, api.server) {
		t.Errorf("revert = %+v, want the refreshed record", got)
	}
}

func TestCoordinator_ReadersSeeWholeStates(t *testing.T) {
	api := newFakeAPI()
	cache := client.NewProgressCache()
	before := record(chapters("s1", false, false, false))
	cache.Set(before)
	co := client.NewCoordinator(api, cache)
	optimistic := chapters("s1", true, true, true)

	stop := make(chan struct{})
	var wg sync.WaitGroup
	var mu sync.Mutex
	var torn []progress.Record
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				r, _ := cache.Get("u1", "c1")
				if !reflect.DeepEqual(r, before) && !reflect.DeepEqual(r.Sections, optimistic) {
					mu.Lock()
					torn = append(torn, r)
					mu.Unlock()
				}
			}
		}()
	}

	for i := 0; i < 20; i++ {
		start(t, api, co, optimistic).fail(t)
	}
	close(stop)
	wg.Wait()

	if len(torn) > 0 {
		t.Errorf("readers observed %d mixed states, first %+v", len(torn), torn[0])
	}
}

func TestProgressCache_CopiesValues(t *testing.T) {
	cache := client.NewProgressCache()
	r := record(chapters("s1", false))
	cache.Set(r)

	r.Sections[0].Chapters[0].Completed = true
	got := cached(t, cache)
	if got.Sections[0].Chapters[0].Completed {
		t.Fatal("Set should copy the record")
	}

	got.Sections[0].Chapters[0].Completed = true
	if cached(t, cache).Sections[0].Chapters[0].Completed {
		t.Error("Get should return a copy")
	}

	cache.Delete("u1", "c1")
	if _, ok := cache.Get("u1", "c1"); ok {
		t.Error("Delete should remove the record")
	}
}
