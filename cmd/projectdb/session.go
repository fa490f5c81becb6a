package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/shrek82/projectdb/bindings"
	"github.com/shrek82/projectdb/conn"
	"github.com/shrek82/projectdb/middleware"
)

// querier is the part of the connection manager a session drives.
type querier interface {
	ExecuteQuery(ctx context.Context, sql string, onRow conn.RowHandler) (int64, error)
	State() conn.State
	Stats() conn.Stats
}

// commandEntry maps a prefix to its handler. A prefix ending in a space takes
// the rest of the line as arguments; any other prefix must match exactly.
type commandEntry struct {
	prefix  string
	handler func(args string) error
}

// Session executes REPL commands against one manager.
type Session struct {
	b   *bindings.Bindings
	db  querier
	out io.Writer

	// cacheTTL is attached to read queries when non-zero.
	cacheTTL time.Duration
	// dry prints generated SQL instead of running it.
	dry     bool
	orderBy string
	seq     int

	commands []commandEntry
}

func NewSession(b *bindings.Bindings, db querier) *Session {
	s := &Session{b: b, db: db, out: os.Stdout}
	s.initCommands()
	return s
}

func (s *Session) initCommands() {
	s.commands = []commandEntry{
		{prefix: "projects ", handler: func(a string) error {
			return s.runProjects(bindings.GetProjectsArgs{ProjectIDs: fields(a)})
		}},
		{prefix: "projects", handler: func(_ string) error { return s.runProjects(bindings.GetProjectsArgs{}) }},
		{prefix: "project ", handler: func(a string) error {
			return s.runProjects(bindings.GetProjectsArgs{Single: true, ProjectNumbers: fields(a)})
		}},
		{prefix: "numbers ", handler: func(a string) error {
			return s.runProjects(bindings.GetProjectsArgs{ProjectNumbers: fields(a)})
		}},
		{prefix: "children ", handler: func(a string) error {
			return s.runProjects(bindings.GetProjectsArgs{ChildrenOf: strings.TrimSpace(a)})
		}},
		{prefix: "search ", handler: func(a string) error {
			return s.runProjects(bindings.GetProjectsArgs{SearchFor: fields(a)})
		}},
		{prefix: "search", handler: func(_ string) error {
			return s.runProjects(bindings.GetProjectsArgs{SearchFor: []string{}})
		}},
		{prefix: "status ", handler: func(a string) error {
			return s.runProjects(bindings.GetProjectsArgs{Status: fields(a)})
		}},
		{prefix: "planning ", handler: func(a string) error { return s.cmdPlanning(a) }},
		{prefix: "planning", handler: func(_ string) error { return errors.New("usage: planning <project number> [parent id]") }},
		{prefix: "order ", handler: func(a string) error { return s.cmdOrder(a) }},
		{prefix: "sql ", handler: func(a string) error { return s.runRows(strings.TrimSpace(a)) }},
		{prefix: "dry", handler: func(_ string) error { return s.cmdDry() }},
		{prefix: "state", handler: func(_ string) error { s.cmdState(); return nil }},
		{prefix: "mkfolder ", handler: func(a string) error { return s.cmdMkfolder(a) }},
		{prefix: "mkfolder", handler: func(_ string) error { return errors.New("usage: mkfolder <project number> [install path...]") }},
		{prefix: "help", handler: func(_ string) error { s.cmdHelp(); return nil }},
	}

	sort.Slice(s.commands, func(i, j int) bool {
		return len(s.commands[i].prefix) > len(s.commands[j].prefix)
	})
}

// Execute runs one line of input.
func (s *Session) Execute(line string) error {
	line = strings.TrimSpace(line)
	if line == "" {
		return nil
	}
	lower := strings.ToLower(line)

	for _, cmd := range s.commands {
		if strings.HasSuffix(cmd.prefix, " ") {
			if strings.HasPrefix(lower, cmd.prefix) {
				return cmd.handler(line[len(cmd.prefix):])
			}
		} else if lower == cmd.prefix {
			return cmd.handler("")
		}
	}

	word := strings.Fields(line)[0]
	return fmt.Errorf("unknown command: %s (type 'help' for commands)", word)
}

// queryContext returns the context of the next query, tagged with a request id
// and the cache TTL.
func (s *Session) queryContext() context.Context {
	s.seq++
	ctx := middleware.WithRequestID(context.Background(), "repl-"+strconv.Itoa(s.seq))
	if s.cacheTTL != 0 {
		ctx = middleware.WithCacheTTL(ctx, s.cacheTTL)
	}
	return ctx
}

// --- Command handlers ---

func (s *Session) runProjects(args bindings.GetProjectsArgs) error {
	args.OrderBy = s.orderBy
	query, err := s.b.ProjectsSQL(args)
	if err != nil {
		return err
	}
	if s.dry {
		_, _ = fmt.Fprintln(s.out, query)
		return nil
	}

	var projects []bindings.Project
	_, err = s.db.ExecuteQuery(s.queryContext(), query, func(row conn.Row) error {
		p, err := s.b.ScanProject(row)
		if err != nil {
			return err
		}
		projects = append(projects, p)
		return nil
	})
	if err != nil {
		return err
	}
	s.printProjects(projects)
	return nil
}

func (s *Session) printProjects(projects []bindings.Project) {
	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "project\tinstall\tdescription\trelation\tstatus\tprice")
	for _, p := range projects {
		desc := p.ProjectDescription
		if p.InstallDescription != "" {
			desc += " / " + p.InstallDescription
		}
		price := ""
		if p.Price != nil {
			price = fmt.Sprint(p.Price)
		}
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			p.ProjectNumber, p.InstallNumber, desc, p.RelationName, p.Status, price)
	}
	_ = tw.Flush()
	_, _ = fmt.Fprintf(s.out, "(%d rows)\n", len(projects))
}

func (s *Session) cmdPlanning(args string) error {
	parts := strings.Fields(args)
	if len(parts) == 0 || len(parts) > 2 {
		return errors.New("usage: planning <project number> [parent id]")
	}
	pa := bindings.GetPlanningArgs{ProjectNumber: parts[0], OrderBy: s.orderBy}
	if len(parts) == 2 {
		id, err := strconv.Atoi(parts[1])
		if err != nil {
			return fmt.Errorf("invalid parent id %q", parts[1])
		}
		pa.ParentID = &id
	}
	query, err := s.b.PlanningSQL(pa)
	if err != nil {
		return err
	}
	return s.runRows(query)
}

// runRows runs query and prints every row with its columns sorted by name.
func (s *Session) runRows(query string) error {
	if query == "" {
		return errors.New("usage: sql <statement>")
	}
	if s.dry {
		_, _ = fmt.Fprintln(s.out, query)
		return nil
	}

	tw := tabwriter.NewWriter(s.out, 0, 4, 2, ' ', 0)
	var cols []string
	n, err := s.db.ExecuteQuery(s.queryContext(), query, func(row conn.Row) error {
		if cols == nil {
			cols = make([]string, 0, len(row))
			for c := range row {
				cols = append(cols, c)
			}
			sort.Strings(cols)
			_, _ = fmt.Fprintln(tw, strings.Join(cols, "\t"))
		}
		cells := make([]string, len(cols))
		for i, c := range cols {
			cells[i] = cell(row[c])
		}
		_, _ = fmt.Fprintln(tw, strings.Join(cells, "\t"))
		return nil
	})
	_ = tw.Flush()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(s.out, "(%d rows)\n", n)
	return nil
}

func cell(v any) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	case time.Time:
		return x.Format(time.DateTime)
	default:
		return fmt.Sprint(x)
	}
}

func (s *Session) cmdOrder(args string) error {
	switch strings.ToUpper(strings.TrimSpace(args)) {
	case "ASC":
		s.orderBy = ""
	case "DESC":
		s.orderBy = "DESC"
	default:
		return errors.New("usage: order asc|desc")
	}
	_, _ = fmt.Fprintf(s.out, "  Order: %s\n", strings.ToLower(strings.TrimSpace(args)))
	return nil
}

func (s *Session) cmdDry() error {
	s.dry = !s.dry
	if s.dry {
		_, _ = fmt.Fprintln(s.out, "  Dry run: ON (queries are printed, not run)")
	} else {
		_, _ = fmt.Fprintln(s.out, "  Dry run: OFF")
	}
	return nil
}

func (s *Session) cmdState() {
	st := s.db.Stats()
	_, _ = fmt.Fprintf(s.out, "  State: %s\n  Connects: %d  Discards: %d  Queries: %d\n",
		s.db.State(), st.Connects, st.Discards, st.Queries)
}

func (s *Session) cmdMkfolder(args string) error {
	parts := strings.Fields(args)
	if len(parts) == 0 {
		return errors.New("usage: mkfolder <project number> [install path...]")
	}
	req := bindings.FolderRequest{
		Project: bindings.Project{ProjectNumber: parts[0]},
		Paths:   bindings.ProjectPaths{InstallPaths: parts[1:]},
	}
	d, err := s.b.CreateProjectFolder.Apply(nil, req)
	if err != nil {
		return err
	}
	created, err := d.Await(context.Background())
	if err != nil {
		return err
	}
	if created {
		_, _ = fmt.Fprintln(s.out, "  Folder created")
	} else {
		_, _ = fmt.Fprintln(s.out, "  Cancelled")
	}
	return nil
}

func (s *Session) cmdHelp() {
	_, _ = fmt.Fprint(s.out, `Commands:
  projects [id...]          List projects, optionally by id
  project <number>          Show the first project with a number
  numbers <number...>       List projects by project number
  children <number>         List the installations of a project
  search [term...]          Search descriptions and numbers; no terms lists all
  status <status...>        List projects by status
  planning <number> [id]    List planning tasks, below parent id if given
  order asc|desc            Set the sort order
  sql <statement>           Run a statement and print its rows
  dry                       Toggle printing queries instead of running them
  state                     Show the connection state
  mkfolder <number> [path]  Create a project folder
  help                      Show this help
  exit, quit                Leave
`)
}

func fields(s string) []string {
	return strings.Fields(strings.ReplaceAll(s, ",", " "))
}
