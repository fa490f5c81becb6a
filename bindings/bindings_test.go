package bindings

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/shrek82/projectdb/hooks"
	"github.com/shrek82/projectdb/logger"
)

func newBindings(t *testing.T, cfg Config, opts ...Option) (*Bindings, *hooks.Registry) {
	t.Helper()
	reg := hooks.NewRegistry()
	reg.SetLogger(logger.NewNopLogger())
	b, err := New(reg, cfg, append([]Option{WithLogger(logger.NewNopLogger())}, opts...)...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b, reg
}

func TestNewFreezesRegistry(t *testing.T) {
	_, reg := newBindings(t, Config{})
	if !reg.Frozen() {
		t.Fatal("registry should be frozen after New")
	}
	for _, name := range []string{HookProjectNumber, HookSQLGetProjects, HookCreateProjectFolder} {
		if reg.Len(name) != 1 {
			t.Errorf("%s: expected 1 default transformer, got %d", name, reg.Len(name))
		}
	}
	if reg.Has(HookFileIcon) {
		t.Error("file_icon has no default transformer")
	}
}

func TestTrimFilters(t *testing.T) {
	b, _ := newBindings(t, Config{})
	for _, f := range []*hooks.Filter[string, hooks.None]{
		b.InstallNumber, b.ProjectNumber, b.ProjectDescription, b.InstallDescription, b.RelationName,
	} {
		got, err := f.Apply("  A123  ", hooks.None{})
		if err != nil || got != "A123" {
			t.Errorf("%s: got %q, %v", f.Name(), got, err)
		}
	}
}

func TestIdentityHooks(t *testing.T) {
	b, _ := newBindings(t, Config{})
	got, err := b.SQLGetTimesheets.Apply("SELECT 1", Project{})
	if err != nil || got != "SELECT 1" {
		t.Errorf("sql_get_timesheets: got %q, %v", got, err)
	}
	icon, err := b.FileIcon.Apply(Resolved("data:image/png;base64,"), "a.pdf")
	if err != nil {
		t.Fatal(err)
	}
	if v, _ := icon.Await(context.Background()); v != "data:image/png;base64," {
		t.Errorf("file_icon: got %q", v)
	}
}

func TestPathBasenames(t *testing.T) {
	b, _ := newBindings(t, Config{})
	n := Number{ProjectNumber: " P2301 ", InstallNumber: " P2301-02 "}

	got, err := b.ProjectPathBasenames.Apply(nil, n)
	if err != nil || !reflect.DeepEqual(got, []string{"P2301"}) {
		t.Errorf("project basenames: got %v, %v", got, err)
	}
	got, err = b.InstallPathBasenames.Apply(nil, n)
	if err != nil || !reflect.DeepEqual(got, []string{"P2301-02"}) {
		t.Errorf("install basenames: got %v, %v", got, err)
	}
}

func TestProjectPathIsMatch(t *testing.T) {
	b, _ := newBindings(t, Config{})
	tests := []struct {
		path string
		want bool
	}{
		{filepath.Join("projects", "2023", "Acme P2301"), true},
		{filepath.Join("projects", "P2301", "other"), false},
		{"P2302", false},
	}
	for _, tt := range tests {
		got, err := b.ProjectPathIsMatch.Apply(false, PathMatch{Path: tt.path, Basenames: []string{"P2301"}})
		if err != nil || got != tt.want {
			t.Errorf("%s: got %v, %v, want %v", tt.path, got, err, tt.want)
		}
	}
}

func TestIsValidProjectLocation(t *testing.T) {
	b, _ := newBindings(t, Config{})
	for dir, want := range map[string]bool{"2023": true, "202": false, "20234": false, "abcd": false, "": false} {
		got, err := b.IsValidProjectLocation.Apply(false, dir)
		if err != nil || got != want {
			t.Errorf("%q: got %v, %v, want %v", dir, got, err, want)
		}
	}
}

func TestProjectPrice(t *testing.T) {
	b, _ := newBindings(t, Config{})
	tests := []struct {
		in   any
		want any
	}{
		{1234.5, "€ 1,234.50"},
		{int64(7), "€ 7.00"},
		{decimal.RequireFromString("1000000.005"), "€ 1,000,000.01"},
		{"99.9", "€ 99.90"},
		{decimal.RequireFromString("12345678901234567.89"), "€ 12,345,678,901,234,567.89"},
		{decimal.RequireFromString("-1234.5"), "€ -1,234.50"},
		{int64(100), "€ 100.00"},
		{"on request", "€ on request"},
		{nil, nil},
	}
	for _, tt := range tests {
		got, err := b.ProjectPrice.Apply(tt.in, Project{})
		if err != nil || got != tt.want {
			t.Errorf("%v: got %v, %v, want %v", tt.in, got, err, tt.want)
		}
	}

	usd, _ := newBindings(t, Config{CurrencySymbol: "$"})
	if got, _ := usd.ProjectPrice.Apply(3.0, Project{}); got != "$ 3.00" {
		t.Errorf("custom symbol: got %v", got)
	}

	nl, _ := newBindings(t, Config{Locale: "nl"})
	if got, _ := nl.ProjectPrice.Apply(decimal.RequireFromString("1234567.891"), Project{}); got != "€ 1.234.567,89" {
		t.Errorf("nl locale: got %v", got)
	}
}

func TestProjectPriceUnsupported(t *testing.T) {
	b, _ := newBindings(t, Config{})
	_, err := b.ProjectPrice.Apply(struct{}{}, Project{})
	var te *hooks.TransformerError
	if !errors.As(err, &te) || te.Hook != HookProjectPrice {
		t.Errorf("expected transformer error for project_price, got %v", err)
	}
}

func TestScanProject(t *testing.T) {
	b, _ := newBindings(t, Config{})
	p, err := b.ScanProject(map[string]any{
		"id":                  int64(12),
		"project_number":      " P2301 ",
		"install_number":      []byte("P2301-01 "),
		"project_description": " Office ",
		"relation_name":       nil,
		"status":              "A ",
		"price":               decimal.NewFromInt(1500),
	})
	if err != nil {
		t.Fatal(err)
	}
	want := Project{
		ID:                 "12",
		ProjectNumber:      "P2301",
		InstallNumber:      "P2301-01",
		ProjectDescription: "Office",
		Status:             "A",
		Price:              "€ 1,500.00",
	}
	if !reflect.DeepEqual(p, want) {
		t.Errorf("got %+v\nwant %+v", p, want)
	}
}

func TestInvalidLocale(t *testing.T) {
	_, err := New(hooks.NewRegistry(), Config{Locale: "not a locale!"}, WithLogger(logger.NewNopLogger()))
	if err == nil {
		t.Fatal("expected locale error")
	}
}

type scriptedPrompter struct {
	response int
	got      MessageBox
}

func (p *scriptedPrompter) MessageBox(_ context.Context, box MessageBox) (int, error) {
	p.got = box
	return p.response, nil
}

func folderBindings(t *testing.T, response int) (*Bindings, *scriptedPrompter, *[]string) {
	t.Helper()
	prompter := &scriptedPrompter{response: response}
	var created []string
	b, _ := newBindings(t, Config{},
		WithPrompter(prompter),
		WithLocations(func() []string {
			return []string{filepath.Join("srv", "2022"), filepath.Join("srv", "2023")}
		}),
		WithMkdir(func(path string) error {
			created = append(created, path)
			return nil
		}))
	return b, prompter, &created
}

func TestCreateProjectFolder(t *testing.T) {
	req := FolderRequest{
		Project: Project{ProjectNumber: " 23-104 "},
		Paths:   ProjectPaths{InstallPaths: []string{filepath.Join("srv", "2023", "22-001")}},
	}
	root := filepath.Join("srv", "2023", "23-104")

	tests := []struct {
		name     string
		response int
		want     bool
		created  []string
	}{
		{"root", 0, true, []string{root}},
		{"install", 1, true, []string{filepath.Join("srv", "2023", "22-001", "23-104")}},
		{"cancel", 2, false, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, prompter, created := folderBindings(t, tt.response)
			deferred, err := b.CreateProjectFolder.Apply(nil, req)
			if err != nil {
				t.Fatal(err)
			}
			ok, err := deferred.Await(context.Background())
			if err != nil {
				t.Fatal(err)
			}
			if ok != tt.want {
				t.Errorf("got %v, want %v", ok, tt.want)
			}
			if !reflect.DeepEqual(*created, tt.created) {
				t.Errorf("created %v, want %v", *created, tt.created)
			}
			wantButtons := []string{
				`Create "` + root + `"`,
				`Create in "` + req.Paths.InstallPaths[0] + `"`,
				"Cancel",
			}
			if !reflect.DeepEqual(prompter.got.Buttons, wantButtons) {
				t.Errorf("buttons %q, want %q", prompter.got.Buttons, wantButtons)
			}
			if prompter.got.Message != `Create a new project folder for "23-104":` {
				t.Errorf("message %q", prompter.got.Message)
			}
		})
	}
}

func TestCreateProjectFolderErrors(t *testing.T) {
	b, _, _ := folderBindings(t, 0)
	run := func(b *Bindings, nr string) error {
		d, err := b.CreateProjectFolder.Apply(nil, FolderRequest{Project: Project{ProjectNumber: nr}})
		if err != nil {
			return err
		}
		_, err = d.Await(context.Background())
		return err
	}

	if err := run(b, "ABC"); !errors.Is(err, ErrNoLocation) {
		t.Errorf("no digits: got %v", err)
	}
	if err := run(b, "99-1"); !errors.Is(err, ErrNoLocation) {
		t.Errorf("no matching location: got %v", err)
	}

	noPrompt, _ := newBindings(t, Config{}, WithLocations(func() []string { return []string{"2023"} }))
	if err := run(noPrompt, "23-1"); !errors.Is(err, ErrNoPrompter) {
		t.Errorf("no prompter: got %v", err)
	}

	bad, _, _ := folderBindings(t, 7)
	if err := run(bad, "23-1"); err == nil || !strings.Contains(err.Error(), "invalid prompt response") {
		t.Errorf("out of range response: got %v", err)
	}
}
