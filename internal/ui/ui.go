package ui

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"

	"tasks/internal/config"
	"tasks/internal/logging"
	"tasks/internal/storage"
	"tasks/internal/tasks"
)

// Store is the remote table the model reads and writes.
type Store interface {
	List(ctx context.Context) ([]storage.Task, error)
	Insert(ctx context.Context, nt storage.NewTask) (storage.Task, error)
	Update(ctx context.Context, id int64, p storage.Patch) error
	Delete(ctx context.Context, id int64) error
}

type mode int

const (
	modeList mode = iota
	modeAdd
	modeConfirmDelete
)

type field int

const (
	fieldText field = iota
	fieldCategory
	fieldDue
	fieldCount
)

// state is everything the task operations read or write. It changes only in Update.
type state struct {
	tasks          []storage.Task
	draftText      textinput.Model
	draftCategory  int
	draftDue       textinput.Model
	filterCategory string
	lastError      string
	loaded         bool
}

type Model struct {
	state

	store      Store
	cfg        config.Config
	log        *log.Logger
	now        func() time.Time
	timeout    time.Duration
	categories []string

	cursor     int
	mode       mode
	focus      field
	pendingDel *storage.Task
	status     string
}

// Option tweaks a Model built by New.
type Option func(*Model)

func WithLogger(l *log.Logger) Option {
	return func(m *Model) { m.log = l }
}

// WithClock replaces time.Now for overdue checks.
func WithClock(now func() time.Time) Option {
	return func(m *Model) { m.now = now }
}

func New(store Store, cfg config.Config, opts ...Option) Model {
	text := textinput.New()
	text.Placeholder = "Add a task"
	text.CharLimit = 256
	text.Width = 40

	due := textinput.New()
	due.Placeholder = "YYYY-MM-DD"
	due.CharLimit = len(storage.DateLayout)
	due.Width = 12

	categories := tasks.Categories(cfg.Categories)
	filter := tasks.AllCategories
	if slices.Contains(categories, cfg.DefaultFilter) {
		filter = cfg.DefaultFilter
	}

	m := Model{
		state: state{
			draftText:      text,
			draftDue:       due,
			draftCategory:  defaultCategoryIndex(categories),
			filterCategory: filter,
		},
		store:      store,
		cfg:        cfg,
		log:        logging.Discard(),
		now:        time.Now,
		timeout:    cfg.Timeout.Duration,
		categories: categories,
		mode:       modeList,
		status:     "Loading tasks...",
	}
	for _, opt := range opts {
		opt(&m)
	}
	if m.timeout <= 0 {
		m.timeout = config.DefaultTimeout
	}
	return m
}

func Run(ctx context.Context, store Store, cfg config.Config, logger *log.Logger) error {
	m := New(store, cfg, WithLogger(logger))
	program := tea.NewProgram(m, tea.WithContext(ctx))
	_, err := program.Run()
	return err
}

type loadedMsg struct {
	initial bool
	tasks   []storage.Task
	err     error
}

type addedMsg struct {
	task storage.Task
	err  error
}

type toggledMsg struct {
	id   int64
	done bool
	err  error
}

type deletedMsg struct {
	id  int64
	err error
}

func (m Model) Init() tea.Cmd {
	return m.load(true)
}

func (m Model) load(initial bool) tea.Cmd {
	store, timeout := m.store, m.timeout
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		list, err := store.List(ctx)
		return loadedMsg{initial: initial, tasks: list, err: err}
	}
}

// AddTask inserts a task built from the given draft values. Blank text does nothing.
func (m Model) AddTask(text, category, due string) (Model, tea.Cmd) {
	if strings.TrimSpace(text) == "" {
		return m, nil
	}
	dueDate, err := storage.ParseDate(due)
	if err != nil {
		m.lastError = err.Error()
		return m, nil
	}
	if category == "" {
		category = tasks.DefaultCategory
	}
	nt := storage.NewTask{Text: text, Category: &category, DueDate: dueDate}

	store, timeout := m.store, m.timeout
	m.status = "Saving..."
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		created, err := store.Insert(ctx, nt)
		return addedMsg{task: created, err: err}
	}
}

// ToggleDone flips the done flag of the task with id.
func (m Model) ToggleDone(id int64) (Model, tea.Cmd) {
	t, ok := tasks.Find(m.tasks, id)
	if !ok {
		return m, nil
	}
	done := !t.Done
	store, timeout := m.store, m.timeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		err := store.Update(ctx, id, storage.Patch{Done: &done})
		return toggledMsg{id: id, done: done, err: err}
	}
}

func (m Model) DeleteTask(id int64) (Model, tea.Cmd) {
	store, timeout := m.store, m.timeout
	return m, func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		return deletedMsg{id: id, err: store.Delete(ctx, id)}
	}
}

// SetFilter changes the displayed category. It never touches the store.
func (m Model) SetFilter(category string) Model {
	m.filterCategory = category
	m.cursor = clampCursor(m.cursor, len(m.FilteredTasks()))
	return m
}

// FilteredTasks is the list as displayed under the current filter.
func (m Model) FilteredTasks() []tasks.Entry {
	return tasks.View(m.tasks, m.filterCategory, m.now())
}

func (m Model) Tasks() []storage.Task { return m.tasks }
func (m Model) LastError() string     { return m.lastError }
func (m Model) Filter() string        { return m.filterCategory }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.draftText.Width = msg.Width - 10
	case loadedMsg:
		return m.applyLoaded(msg), nil
	case addedMsg:
		return m.applyAdded(msg), nil
	case toggledMsg:
		return m.applyToggled(msg), nil
	case deletedMsg:
		return m.applyDeleted(msg), nil
	}
	return m, nil
}

func (m Model) fail(op string, id int64, err error) Model {
	if id != 0 {
		m.log.Error("request failed", "op", op, "id", id, "err", err)
	} else {
		m.log.Error("request failed", "op", op, "err", err)
	}
	m.lastError = err.Error()
	m.status = ""
	return m
}

func (m Model) applyLoaded(msg loadedMsg) Model {
	if msg.initial && m.loaded {
		return m
	}
	m.loaded = true
	if msg.err != nil {
		return m.fail("list", 0, msg.err)
	}
	m.tasks = msg.tasks
	if !msg.initial {
		m.lastError = ""
	}
	m.cursor = clampCursor(m.cursor, len(m.FilteredTasks()))
	m.status = fmt.Sprintf("Loaded %d tasks", len(m.tasks))
	m.log.Debug("tasks loaded", "count", len(m.tasks))
	return m
}

func (m Model) applyAdded(msg addedMsg) Model {
	if msg.err != nil {
		return m.fail("insert", 0, msg.err)
	}
	m.tasks = tasks.Merge(m.tasks, msg.task)
	m.draftText.SetValue("")
	m.draftDue.SetValue("")
	m.draftCategory = defaultCategoryIndex(m.categories)
	m.lastError = ""
	m.status = "Added task"
	m.log.Info("task added", "id", msg.task.ID)
	return m
}

func (m Model) applyToggled(msg toggledMsg) Model {
	if msg.err != nil {
		return m.fail("update", msg.id, msg.err)
	}
	m.tasks = tasks.SetDone(m.tasks, msg.id, msg.done)
	m.lastError = ""
	m.status = "Toggled task"
	return m
}

func (m Model) applyDeleted(msg deletedMsg) Model {
	if msg.err != nil {
		return m.fail("delete", msg.id, msg.err)
	}
	m.tasks = tasks.Remove(m.tasks, msg.id)
	m.cursor = clampCursor(m.cursor, len(m.FilteredTasks()))
	m.lastError = ""
	m.status = "Deleted task"
	m.log.Info("task deleted", "id", msg.id)
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	switch m.mode {
	case modeAdd:
		return m.updateAddMode(key, msg)
	case modeConfirmDelete:
		return m.updateDeleteConfirm(key)
	}
	return m.updateListMode(key)
}

func (m Model) updateListMode(key string) (tea.Model, tea.Cmd) {
	view := m.FilteredTasks()
	switch key {
	case "ctrl+c", m.cfg.Keys.Quit:
		return m, tea.Quit
	case m.cfg.Keys.Down, "down":
		if len(view) == 0 {
			return m, nil
		}
		m.cursor = clampCursor(m.cursor+1, len(view))
	case m.cfg.Keys.Up, "up":
		if m.cursor > 0 {
			m.cursor = clampCursor(m.cursor-1, len(view))
		}
	case m.cfg.Keys.Add:
		m.mode = modeAdd
		m.focus = fieldText
		m.draftDue.Blur()
		m.draftText.Focus()
		m.status = "Add mode: tab to move between fields, enter to save"
	case m.cfg.Keys.Toggle:
		if len(view) == 0 {
			return m, nil
		}
		return m.ToggleDone(view[clampCursor(m.cursor, len(view))].ID)
	case m.cfg.Keys.Delete:
		if len(view) == 0 {
			return m, nil
		}
		t := view[clampCursor(m.cursor, len(view))].Task
		m.mode = modeConfirmDelete
		m.pendingDel = &t
		m.status = fmt.Sprintf("Delete \"%s\"? y/n", t.Text)
	case m.cfg.Keys.Filter:
		m = m.SetFilter(m.nextFilter())
		m.status = "Filter: " + m.filterCategory
	case m.cfg.Keys.Refresh:
		m.status = "Refreshing..."
		return m, m.load(false)
	}
	return m, nil
}

func (m Model) updateAddMode(key string, msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch key {
	case m.cfg.Keys.Cancel, "esc":
		m.mode = modeList
		m.draftText.Blur()
		m.draftDue.Blur()
		m.status = "Cancelled"
		return m, nil
	case m.cfg.Keys.Confirm, "enter":
		m.mode = modeList
		m.draftText.Blur()
		m.draftDue.Blur()
		return m.AddTask(m.draftText.Value(), m.categories[m.draftCategory], m.draftDue.Value())
	case m.cfg.Keys.NextField, "tab":
		m.setFocus((m.focus + 1) % fieldCount)
		return m, nil
	case "shift+tab":
		m.setFocus((m.focus + fieldCount - 1) % fieldCount)
		return m, nil
	}

	var cmd tea.Cmd
	switch m.focus {
	case fieldText:
		m.draftText, cmd = m.draftText.Update(msg)
	case fieldDue:
		m.draftDue, cmd = m.draftDue.Update(msg)
	case fieldCategory:
		switch key {
		case "right", "l", " ", m.cfg.Keys.Category:
			m.draftCategory = wrapIndex(m.draftCategory+1, len(m.categories))
		case "left", "h":
			m.draftCategory = wrapIndex(m.draftCategory-1, len(m.categories))
		}
	}
	return m, cmd
}

func (m *Model) setFocus(f field) {
	m.focus = f
	m.draftText.Blur()
	m.draftDue.Blur()
	switch f {
	case fieldText:
		m.draftText.Focus()
	case fieldDue:
		m.draftDue.Focus()
	}
}

func (m Model) updateDeleteConfirm(key string) (tea.Model, tea.Cmd) {
	pending := m.pendingDel
	m.mode = modeList
	m.pendingDel = nil
	switch key {
	case "y", "Y":
		if pending == nil {
			m.status = "Nothing to delete"
			return m, nil
		}
		return m.DeleteTask(pending.ID)
	default:
		m.status = "Delete cancelled"
		return m, nil
	}
}

func (m Model) nextFilter() string {
	options := append([]string{tasks.AllCategories}, m.categories...)
	i := slices.Index(options, m.filterCategory)
	return options[wrapIndex(i+1, len(options))]
}

func defaultCategoryIndex(categories []string) int {
	if i := slices.Index(categories, tasks.DefaultCategory); i >= 0 {
		return i
	}
	return 0
}

func wrapIndex(idx, n int) int {
	if n <= 0 {
		return 0
	}
	idx %= n
	if idx < 0 {
		idx += n
	}
	return idx
}

func clampCursor(cur, n int) int {
	if n <= 0 {
		return 0
	}
	if cur < 0 {
		return 0
	}
	if cur >= n {
		return n - 1
	}
	return cur
}
