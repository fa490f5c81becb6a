package bindings

import (
	"context"
	"time"
)

// Number is a project / install number pair.
type Number struct {
	ProjectNumber string
	InstallNumber string
}

// Project is one row of the projects query after filtering.
type Project struct {
	ID                 string
	ProjectNumber      string
	InstallNumber      string
	ProjectDescription string
	InstallDescription string
	RelationName       string
	Status             string
	Price              any
	DateStart          time.Time
}

// ProjectPaths are the folders found for a project.
type ProjectPaths struct {
	ProjectPaths []string
	InstallPaths []string
}

// PathMatch is the auxiliary argument of project_path_is_match.
type PathMatch struct {
	Path      string
	Basenames []string
}

// FolderRequest is the auxiliary argument of create_project_folder.
type FolderRequest struct {
	Project Project
	Paths   ProjectPaths
}

// Preview is the auxiliary argument of file_preview_content.
type Preview struct {
	Path string
	Ext  string
}

// GetProjectsArgs selects projects. Nil slices mean "not given"; an empty
// non-nil SearchFor is a deep search without terms.
type GetProjectsArgs struct {
	Single         bool
	SearchFor      []string
	ProjectIDs     []string
	ProjectNumbers []string
	ChildrenOf     string
	Status         []string
	// OrderBy is "DESC" for descending order, anything else is ascending.
	OrderBy string
}

// GetPlanningArgs selects planning tasks.
type GetPlanningArgs struct {
	ProjectNumber string
	// ParentID nil selects top level tasks.
	ParentID *int
	OrderBy  string
}

// Deferred is a value that is produced later, possibly after user interaction.
type Deferred[T any] func(ctx context.Context) (T, error)

// Resolved returns a Deferred that yields v.
func Resolved[T any](v T) Deferred[T] {
	return func(context.Context) (T, error) { return v, nil }
}

// Await runs d, treating a nil Deferred as the zero value.
func (d Deferred[T]) Await(ctx context.Context) (T, error) {
	if d == nil {
		var zero T
		return zero, nil
	}
	return d(ctx)
}

// MessageBox describes a question for the user. The answer is the index of
// the chosen button.
type MessageBox struct {
	Type    string
	Title   string
	Message string
	Buttons []string
}

// Prompter asks the user.
type Prompter interface {
	MessageBox(ctx context.Context, box MessageBox) (int, error)
}

// PrompterFunc adapts a function to Prompter.
type PrompterFunc func(ctx context.Context, box MessageBox) (int, error)

func (f PrompterFunc) MessageBox(ctx context.Context, box MessageBox) (int, error) {
	return f(ctx, box)
}
