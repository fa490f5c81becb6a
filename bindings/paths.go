package bindings

import (
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/shrek82/projectdb/hooks"
)

var (
	locationPattern = regexp.MustCompile(`^\d{4}$`)
	twoDigits       = regexp.MustCompile(`\d{2}`)
)

func (b *Bindings) installPathBasenames(_ []string, n Number) ([]string, error) {
	nr, err := b.ProjectNumber.Apply(n.InstallNumber, hooks.None{})
	if err != nil {
		return nil, err
	}
	return []string{nr}, nil
}

func (b *Bindings) projectPathBasenames(_ []string, n Number) ([]string, error) {
	nr, err := b.ProjectNumber.Apply(n.ProjectNumber, hooks.None{})
	if err != nil {
		return nil, err
	}
	return []string{nr}, nil
}

func projectPathIsMatch(_ bool, m PathMatch) (bool, error) {
	base := filepath.Base(m.Path)
	for _, name := range m.Basenames {
		if strings.HasSuffix(base, name) {
			return true, nil
		}
	}
	return false, nil
}

func isValidProjectLocation(_ bool, dir string) (bool, error) {
	return locationPattern.MatchString(dir), nil
}

// createProjectFolder asks where to create the folder of req.Project and
// creates it. The deferred result reports whether a folder was created.
func (b *Bindings) createProjectFolder(_ Deferred[bool], req FolderRequest) (Deferred[bool], error) {
	return func(ctx context.Context) (bool, error) {
		nr, err := b.ProjectNumber.Apply(req.Project.ProjectNumber, hooks.None{})
		if err != nil {
			return false, err
		}
		location, err := b.locationFor(nr)
		if err != nil {
			return false, err
		}
		if b.prompter == nil {
			return false, ErrNoPrompter
		}

		root := filepath.Join(location, nr)
		buttons := []string{fmt.Sprintf(`Create "%s"`, root)}
		for _, p := range req.Paths.InstallPaths {
			buttons = append(buttons, fmt.Sprintf(`Create in "%s"`, p))
		}
		cancel := len(buttons)

		resp, err := b.prompter.MessageBox(ctx, MessageBox{
			Type:    "warning",
			Title:   "Create project folder",
			Message: fmt.Sprintf(`Create a new project folder for "%s":`, nr),
			Buttons: append(buttons, "Cancel"),
		})
		if err != nil {
			return false, err
		}

		var dir string
		switch {
		case resp == 0:
			dir = root
		case resp > 0 && resp < cancel:
			dir = filepath.Join(req.Paths.InstallPaths[resp-1], nr)
		case resp == cancel:
			return false, nil
		default:
			return false, fmt.Errorf("invalid prompt response %d", resp)
		}
		if err := b.mkdir(dir); err != nil {
			return false, fmt.Errorf("create project folder: %w", err)
		}
		b.logger.Info("created project folder %s", dir)
		return true, nil
	}, nil
}

// locationFor returns the first location ending with the first two digit run of nr.
func (b *Bindings) locationFor(nr string) (string, error) {
	digits := twoDigits.FindString(nr)
	if digits == "" {
		return "", fmt.Errorf("%w: %q has no digits", ErrNoLocation, nr)
	}
	for _, l := range b.locations() {
		if strings.HasSuffix(filepath.Clean(l), digits) {
			return l, nil
		}
	}
	return "", fmt.Errorf("%w for %q", ErrNoLocation, nr)
}
