package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"tasks/internal/config"
	"tasks/internal/storage"
	"tasks/internal/tasks"
)

type fakeStore struct {
	mu        sync.Mutex
	rows      []storage.Task
	nextID    int64
	calls     []string
	listErr   error
	insertErr error
	updateErr error
	lastNew   storage.NewTask
}

func newFakeStore(rows ...storage.Task) *fakeStore {
	f := &fakeStore{rows: rows, nextID: 1}
	for _, r := range rows {
		if r.ID >= f.nextID {
			f.nextID = r.ID + 1
		}
	}
	return f
}

func (f *fakeStore) List(ctx context.Context) ([]storage.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "list")
	if f.listErr != nil {
		return nil, &storage.FetchError{Err: f.listErr}
	}
	return tasks.Sort(f.rows), nil
}

func (f *fakeStore) Insert(ctx context.Context, nt storage.NewTask) (storage.Task, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "insert")
	f.lastNew = nt
	if f.insertErr != nil {
		return storage.Task{}, &storage.InsertError{Err: f.insertErr}
	}
	t := storage.Task{ID: f.nextID, Text: nt.Text, Category: nt.Category, DueDate: nt.DueDate}
	f.nextID++
	f.rows = append(f.rows, t)
	return t, nil
}

func (f *fakeStore) Update(ctx context.Context, id int64, p storage.Patch) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "update")
	if f.updateErr != nil {
		return &storage.UpdateError{ID: id, Err: f.updateErr}
	}
	for i := range f.rows {
		if f.rows[i].ID == id {
			if p.Done != nil {
				f.rows[i].Done = *p.Done
			}
			return nil
		}
	}
	return &storage.UpdateError{ID: id, Err: storage.ErrNotFound}
}

func (f *fakeStore) Delete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "delete")
	for i := range f.rows {
		if f.rows[i].ID == id {
			f.rows = append(f.rows[:i], f.rows[i+1:]...)
			return nil
		}
	}
	return &storage.DeleteError{ID: id, Err: storage.ErrNotFound}
}

func testConfig() config.Config {
	return config.Config{
		DefaultFilter: "All",
		Timeout:       config.Duration{Duration: time.Second},
		Keys: config.Keymap{
			Quit: "q", Add: "a", Up: "k", Down: "j", Toggle: " ", Delete: "d",
			Filter: "f", Category: "c", Refresh: "r", Confirm: "enter", Cancel: "esc", NextField: "tab",
		},
	}
}

func fixedClock() time.Time {
	return time.Date(2024, 1, 8, 10, 0, 0, 0, time.UTC)
}

func task(id int64, text, category, due string) storage.Task {
	t := storage.Task{ID: id, Text: text}
	if category != "" {
		c := category
		t.Category = &c
	}
	if due != "" {
		d, err := storage.ParseDate(due)
		if err != nil {
			panic(err)
		}
		t.DueDate = d
	}
	return t
}

// exec runs cmd and feeds its message back through Update.
func exec(t *testing.T, m Model, cmd tea.Cmd) Model {
	t.Helper()
	if cmd == nil {
		t.Fatalf("expected a command")
	}
	next, _ := m.Update(cmd())
	return next.(Model)
}

func started(t *testing.T, store *fakeStore) Model {
	t.Helper()
	m := New(store, testConfig(), WithClock(fixedClock))
	return exec(t, m, m.Init())
}

func press(m Model, keys ...tea.KeyMsg) (Model, tea.Cmd) {
	var cmd tea.Cmd
	for _, k := range keys {
		var next tea.Model
		next, cmd = m.Update(k)
		m = next.(Model)
	}
	return m, cmd
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func texts(list []storage.Task) string {
	out := make([]string, len(list))
	for i, t := range list {
		out[i] = t.Text
	}
	return strings.Join(out, ",")
}

func TestInitializeLoadsTasks(t *testing.T) {
	store := newFakeStore(task(1, "A", "Work", "2024-01-10"), task(2, "B", "", ""))
	m := started(t, store)

	if got := texts(m.Tasks()); got != "A,B" {
		t.Errorf("tasks: got %s", got)
	}
	if m.LastError() != "" {
		t.Errorf("unexpected error %q", m.LastError())
	}
}

func TestInitializeFailure(t *testing.T) {
	store := newFakeStore(task(1, "A", "", ""))
	store.listErr = errors.New("connection refused")
	m := started(t, store)

	if len(m.Tasks()) != 0 {
		t.Errorf("tasks should stay empty, got %s", texts(m.Tasks()))
	}
	if !strings.Contains(m.LastError(), "connection refused") {
		t.Errorf("LastError: got %q", m.LastError())
	}

	// A second initial load is ignored for the rest of the session.
	store.listErr = nil
	m = exec(t, m, m.Init())
	if len(m.Tasks()) != 0 {
		t.Errorf("initial load applied twice: %s", texts(m.Tasks()))
	}
}

func TestAddTaskScenarioOrdering(t *testing.T) {
	store := newFakeStore(task(1, "A", "Work", "2024-01-10"), task(2, "B", "", ""))
	m := started(t, store)

	m, cmd := m.AddTask("C", "Urgent", "2024-01-05")
	m = exec(t, m, cmd)

	if got := texts(m.Tasks()); got != "C,A,B" {
		t.Errorf("order: got %s, want C,A,B", got)
	}
	if m.LastError() != "" {
		t.Errorf("unexpected error %q", m.LastError())
	}
}

func TestAddThenToggleRoundTrip(t *testing.T) {
	store := newFakeStore()
	m := started(t, store)

	m, cmd := m.AddTask("Buy milk", "General", "")
	m = exec(t, m, cmd)
	if len(m.Tasks()) != 1 {
		t.Fatalf("got %d tasks", len(m.Tasks()))
	}
	id := m.Tasks()[0].ID

	m, cmd = m.ToggleDone(id)
	m = exec(t, m, cmd)

	got := m.Tasks()[0]
	if !got.Done {
		t.Errorf("done not set")
	}
	if got.Text != "Buy milk" || got.CategoryOr("") != "General" || got.DueDate != nil {
		t.Errorf("fields changed: %+v", got)
	}
}

func TestAddDefaultsCategory(t *testing.T) {
	store := newFakeStore()
	m := started(t, store)

	m, cmd := m.AddTask("No category chosen", "", "")
	exec(t, m, cmd)
	if store.lastNew.Category == nil || *store.lastNew.Category != tasks.DefaultCategory {
		t.Errorf("category: got %v", store.lastNew.Category)
	}
}

func TestAddWhitespaceIsNoop(t *testing.T) {
	store := newFakeStore(task(1, "A", "", ""))
	m := started(t, store)
	calls := len(store.calls)

	m, cmd := m.AddTask("   ", "General", "")
	if cmd != nil {
		t.Errorf("expected no command")
	}
	if len(store.calls) != calls {
		t.Errorf("store called: %v", store.calls[calls:])
	}
	if len(m.Tasks()) != 1 {
		t.Errorf("tasks changed: %s", texts(m.Tasks()))
	}
}

func TestAddBadDueDate(t *testing.T) {
	m := started(t, newFakeStore())
	m, cmd := m.AddTask("x", "General", "next week")
	if cmd != nil {
		t.Errorf("expected no command")
	}
	if !strings.Contains(m.LastError(), "YYYY-MM-DD") {
		t.Errorf("LastError: got %q", m.LastError())
	}
}

func TestAddFailureThenSuccessClearsError(t *testing.T) {
	store := newFakeStore(task(1, "A", "", ""))
	store.insertErr = errors.New("row rejected")
	m := started(t, store)

	m, cmd := m.AddTask("B", "Work", "")
	m = exec(t, m, cmd)
	if !strings.Contains(m.LastError(), "row rejected") {
		t.Errorf("LastError: got %q", m.LastError())
	}
	if got := texts(m.Tasks()); got != "A" {
		t.Errorf("tasks changed on failure: %s", got)
	}

	store.insertErr = nil
	m, cmd = m.AddTask("B", "Work", "")
	m = exec(t, m, cmd)
	if m.LastError() != "" {
		t.Errorf("error not cleared: %q", m.LastError())
	}
	if got := texts(m.Tasks()); got != "A,B" {
		t.Errorf("tasks: got %s", got)
	}
}

func TestToggleFailureKeepsState(t *testing.T) {
	store := newFakeStore(task(1, "A", "", ""))
	store.updateErr = errors.New("timeout")
	m := started(t, store)

	m, cmd := m.ToggleDone(1)
	m = exec(t, m, cmd)
	if m.Tasks()[0].Done {
		t.Errorf("done flipped despite failure")
	}
	if !strings.Contains(m.LastError(), "failed to update task 1") {
		t.Errorf("LastError: got %q", m.LastError())
	}
}

func TestDeleteTwiceReportsError(t *testing.T) {
	store := newFakeStore(task(1, "A", "", ""), task(2, "B", "", ""))
	m := started(t, store)

	m, cmd := m.DeleteTask(1)
	m = exec(t, m, cmd)
	if got := texts(m.Tasks()); got != "B" {
		t.Fatalf("after delete: %s", got)
	}

	m, cmd = m.DeleteTask(1)
	m = exec(t, m, cmd)
	if len(m.Tasks()) != 1 {
		t.Errorf("length changed: %s", texts(m.Tasks()))
	}
	if !strings.Contains(m.LastError(), "failed to delete task 1") {
		t.Errorf("LastError: got %q", m.LastError())
	}
}

func TestFilter(t *testing.T) {
	store := newFakeStore(task(1, "first", "A", ""), task(2, "second", "B", ""), task(3, "third", "A", ""))
	m := started(t, store)
	calls := len(store.calls)

	m = m.SetFilter("A")
	view := m.FilteredTasks()
	if len(view) != 2 || view[0].Text != "first" || view[1].Text != "third" {
		t.Errorf("filter A: got %+v", view)
	}

	m = m.SetFilter(tasks.AllCategories)
	if len(m.FilteredTasks()) != 3 {
		t.Errorf("filter All: got %d", len(m.FilteredTasks()))
	}
	if len(store.calls) != calls {
		t.Errorf("filtering hit the store: %v", store.calls[calls:])
	}
}

func TestOverdueFlag(t *testing.T) {
	store := newFakeStore(task(1, "late", "", "2024-01-07"))
	m := started(t, store)

	if !m.FilteredTasks()[0].Overdue {
		t.Errorf("expected overdue")
	}

	m, cmd := m.ToggleDone(1)
	m = exec(t, m, cmd)
	if m.FilteredTasks()[0].Overdue {
		t.Errorf("done task flagged overdue")
	}
}

func TestKeyDrivenAdd(t *testing.T) {
	store := newFakeStore()
	m := started(t, store)

	m, _ = press(m,
		runes("a"),
		runes("Ship report"),
		tea.KeyMsg{Type: tea.KeyTab},
		tea.KeyMsg{Type: tea.KeyRight},
		tea.KeyMsg{Type: tea.KeyTab},
		runes("2024-01-05"),
	)
	m, cmd := press(m, tea.KeyMsg{Type: tea.KeyEnter})
	m = exec(t, m, cmd)

	if store.lastNew.Text != "Ship report" {
		t.Errorf("text: got %q", store.lastNew.Text)
	}
	if store.lastNew.Category == nil || *store.lastNew.Category != "Work" {
		t.Errorf("category: got %v", store.lastNew.Category)
	}
	if store.lastNew.DueDate == nil || store.lastNew.DueDate.Format(storage.DateLayout) != "2024-01-05" {
		t.Errorf("due: got %v", store.lastNew.DueDate)
	}
	if m.draftText.Value() != "" || m.draftDue.Value() != "" {
		t.Errorf("drafts not cleared")
	}
	if m.categories[m.draftCategory] != tasks.DefaultCategory {
		t.Errorf("category draft not reset: %s", m.categories[m.draftCategory])
	}
}

func TestKeyDrivenToggleAndDelete(t *testing.T) {
	store := newFakeStore(task(1, "A", "", "2024-01-01"), task(2, "B", "", ""))
	m := started(t, store)

	m, cmd := press(m, runes("j"), tea.KeyMsg{Type: tea.KeySpace, Runes: []rune{' '}})
	m = exec(t, m, cmd)
	if !m.Tasks()[1].Done || m.Tasks()[0].Done {
		t.Errorf("wrong task toggled: %+v", m.Tasks())
	}

	m, cmd = press(m, runes("d"), runes("n"))
	if cmd != nil {
		t.Errorf("cancelled delete issued a command")
	}
	if len(m.Tasks()) != 2 {
		t.Fatalf("tasks changed")
	}

	m, cmd = press(m, runes("d"), runes("y"))
	m = exec(t, m, cmd)
	if got := texts(m.Tasks()); got != "A" {
		t.Errorf("after delete: %s", got)
	}
}

func TestFilterKeyCycles(t *testing.T) {
	m := started(t, newFakeStore())
	want := []string{"General", "Work", "Personal", "Urgent", "All"}
	for _, w := range want {
		m, _ = press(m, runes("f"))
		if m.Filter() != w {
			t.Fatalf("got %q, want %q", m.Filter(), w)
		}
	}
}

func TestRefreshClearsError(t *testing.T) {
	store := newFakeStore(task(1, "A", "", ""))
	store.updateErr = errors.New("boom")
	m := started(t, store)
	m, cmd := m.ToggleDone(1)
	m = exec(t, m, cmd)
	if m.LastError() == "" {
		t.Fatal("expected error")
	}

	store.rows = append(store.rows, task(5, "remote", "", ""))
	m, cmd = press(m, runes("r"))
	m = exec(t, m, cmd)
	if m.LastError() != "" {
		t.Errorf("error not cleared: %q", m.LastError())
	}
	if got := texts(m.Tasks()); got != "A,remote" {
		t.Errorf("tasks: got %s", got)
	}
}

func TestViewRendering(t *testing.T) {
	m := started(t, newFakeStore())
	if !strings.Contains(m.View(), "No tasks yet") {
		t.Errorf("empty view: %q", m.View())
	}

	store := newFakeStore(task(1, "Plain", "", ""), task(2, "Tagged", "Work", "2024-01-20"))
	m = started(t, store)
	out := m.View()
	for _, want := range []string{"Plain", "No category | No due date", "Work | 2024-01-20", "Filter by Category: All"} {
		if !strings.Contains(out, want) {
			t.Errorf("view missing %q:\n%s", want, out)
		}
	}
}
