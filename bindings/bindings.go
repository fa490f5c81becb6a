// Package bindings holds the hook vocabulary of the application: one typed
// filter per hook name, registered with its default transformers at startup.
package bindings

import (
	"errors"
	"fmt"
	"os"

	"github.com/shrek82/projectdb/hooks"
	"github.com/shrek82/projectdb/logger"
)

var (
	// ErrNoPrompter is returned by create_project_folder without a prompter.
	ErrNoPrompter = errors.New("no prompter configured")
	// ErrNoLocation is returned when no project location matches a project number.
	ErrNoLocation = errors.New("no project location")
	// ErrUnknownHook is returned for an override naming a hook outside the vocabulary.
	ErrUnknownHook = errors.New("unknown hook")
)

// DefaultWhereProjects is the FROM / WHERE clause the projects query starts from.
const DefaultWhereProjects = `
    [projects].[id],
    [projects].[project_number],
    [installations].[install_number],
    [projects].[description] AS [project_description],
    [installations].[description] AS [install_description],
    [relations].[name] AS [relation_name],
    [projects].[status],
    [projects].[price],
    [projects].[date_start]
  FROM
    [projects]
    LEFT JOIN [installations] ON [installations].[project_id] = [projects].[id]
    LEFT JOIN [relations] ON [relations].[id] = [projects].[relation_id]
  WHERE
    1 = 1`

// Override appends an expression transformer to a hook.
type Override struct {
	Hook string `yaml:"hook"`
	Expr string `yaml:"expr"`
}

// Config configures the default transformers.
type Config struct {
	// MaxSelect caps the rows of a projects query without search terms.
	MaxSelect int
	// WhereProjects seeds sql_where_get_projects.
	WhereProjects string
	// PlanningSource is the table or view the planning query reads.
	PlanningSource string
	CurrencySymbol string
	// Locale is a BCP 47 tag for number formatting.
	Locale    string
	Overrides []Override
}

func (c Config) withDefaults() Config {
	if c.MaxSelect <= 0 {
		c.MaxSelect = 500
	}
	if c.WhereProjects == "" {
		c.WhereProjects = DefaultWhereProjects
	}
	if c.PlanningSource == "" {
		c.PlanningSource = "[planning]"
	}
	if c.CurrencySymbol == "" {
		c.CurrencySymbol = "€"
	}
	if c.Locale == "" {
		c.Locale = "en"
	}
	return c
}

// Option configures Bindings.
type Option func(*Bindings)

// WithPrompter sets the prompter used by create_project_folder.
func WithPrompter(p Prompter) Option {
	return func(b *Bindings) { b.prompter = p }
}

// WithLocations sets the source of project folder locations.
func WithLocations(fn func() []string) Option {
	return func(b *Bindings) { b.locations = fn }
}

// WithMkdir replaces os.MkdirAll for folder creation.
func WithMkdir(fn func(path string) error) Option {
	return func(b *Bindings) { b.mkdir = fn }
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bindings) { b.logger = l }
}

// WithExtensions runs fns after the defaults and configured overrides are
// registered and before the registry freezes. Transformers they add run
// after the defaults.
func WithExtensions(fns ...func(*Bindings)) Option {
	return func(b *Bindings) { b.extensions = append(b.extensions, fns...) }
}

// Bindings exposes a typed filter per hook.
type Bindings struct {
	InstallNumber      *hooks.Filter[string, hooks.None]
	ProjectNumber      *hooks.Filter[string, hooks.None]
	ProjectDescription *hooks.Filter[string, hooks.None]
	InstallDescription *hooks.Filter[string, hooks.None]
	RelationName       *hooks.Filter[string, hooks.None]

	InstallPathBasenames   *hooks.Filter[[]string, Number]
	ProjectPathBasenames   *hooks.Filter[[]string, Number]
	ProjectPathIsMatch     *hooks.Filter[bool, PathMatch]
	IsValidProjectLocation *hooks.Filter[bool, string]
	CreateProjectFolder    *hooks.Filter[Deferred[bool], FolderRequest]

	ProjectPrice *hooks.Filter[any, Project]

	SQLWhereGetProjects     *hooks.Filter[string, hooks.None]
	SQLGetProjects          *hooks.Filter[string, GetProjectsArgs]
	SQLGetPlanning          *hooks.Filter[string, GetPlanningArgs]
	SQLGetAttachedDocuments *hooks.Filter[string, Project]
	SQLGetTimesheets        *hooks.Filter[string, Project]

	FileIcon           *hooks.Filter[Deferred[string], string]
	FilePreviewContent *hooks.Filter[Deferred[string], Preview]

	cfg       Config
	price     *priceFormatter
	prompter  Prompter
	locations func() []string
	mkdir     func(path string) error
	logger    logger.Logger

	extensions []func(*Bindings)
}

// New binds the vocabulary to reg, registers the defaults followed by the
// configured overrides and the extensions, and freezes reg.
func New(reg *hooks.Registry, cfg Config, opts ...Option) (*Bindings, error) {
	b := &Bindings{
		InstallNumber:      hooks.NewFilter[string, hooks.None](reg, HookInstallNumber),
		ProjectNumber:      hooks.NewFilter[string, hooks.None](reg, HookProjectNumber),
		ProjectDescription: hooks.NewFilter[string, hooks.None](reg, HookProjectDescription),
		InstallDescription: hooks.NewFilter[string, hooks.None](reg, HookInstallDescription),
		RelationName:       hooks.NewFilter[string, hooks.None](reg, HookRelationName),

		InstallPathBasenames:   hooks.NewFilter[[]string, Number](reg, HookInstallPathBasenames),
		ProjectPathBasenames:   hooks.NewFilter[[]string, Number](reg, HookProjectPathBasenames),
		ProjectPathIsMatch:     hooks.NewFilter[bool, PathMatch](reg, HookProjectPathIsMatch),
		IsValidProjectLocation: hooks.NewFilter[bool, string](reg, HookIsValidProjectLocation),
		CreateProjectFolder:    hooks.NewFilter[Deferred[bool], FolderRequest](reg, HookCreateProjectFolder),

		ProjectPrice: hooks.NewFilter[any, Project](reg, HookProjectPrice),

		SQLWhereGetProjects:     hooks.NewFilter[string, hooks.None](reg, HookSQLWhereGetProjects),
		SQLGetProjects:          hooks.NewFilter[string, GetProjectsArgs](reg, HookSQLGetProjects),
		SQLGetPlanning:          hooks.NewFilter[string, GetPlanningArgs](reg, HookSQLGetPlanning),
		SQLGetAttachedDocuments: hooks.NewFilter[string, Project](reg, HookSQLGetAttachedDocs),
		SQLGetTimesheets:        hooks.NewFilter[string, Project](reg, HookSQLGetTimesheets),

		FileIcon:           hooks.NewFilter[Deferred[string], string](reg, HookFileIcon),
		FilePreviewContent: hooks.NewFilter[Deferred[string], Preview](reg, HookFilePreviewContent),

		cfg:       cfg.withDefaults(),
		locations: func() []string { return nil },
		mkdir:     func(path string) error { return os.MkdirAll(path, 0o755) },
		logger:    logger.NewStdLogger(),
	}
	for _, opt := range opts {
		opt(b)
	}

	price, err := newPriceFormatter(b.cfg.CurrencySymbol, b.cfg.Locale)
	if err != nil {
		return nil, err
	}
	b.price = price

	b.registerDefaults()
	for _, o := range b.cfg.Overrides {
		if err := b.addOverride(o); err != nil {
			return nil, fmt.Errorf("override %s: %w", o.Hook, err)
		}
	}
	for _, ext := range b.extensions {
		ext(b)
	}
	reg.Freeze()
	b.logger.Debug("hooks bound: %d overrides, %d extensions", len(b.cfg.Overrides), len(b.extensions))
	return b, nil
}

func (b *Bindings) registerDefaults() {
	b.InstallNumber.Add(trim)
	b.ProjectNumber.Add(trim)
	b.ProjectDescription.Add(trim)
	b.InstallDescription.Add(trim)
	b.RelationName.Add(trim)

	b.InstallPathBasenames.Add(b.installPathBasenames)
	b.ProjectPathBasenames.Add(b.projectPathBasenames)
	b.ProjectPathIsMatch.Add(projectPathIsMatch)
	b.IsValidProjectLocation.Add(isValidProjectLocation)
	b.CreateProjectFolder.Add(b.createProjectFolder)

	b.ProjectPrice.Add(b.formatPrice)

	b.SQLGetProjects.Add(b.getProjects)
	b.SQLGetPlanning.Add(b.getPlanning)
}

// Config returns the effective configuration.
func (b *Bindings) Config() Config {
	return b.cfg
}
