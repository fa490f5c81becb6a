package bindings

import (
	"fmt"
	"strings"

	"github.com/shrek82/projectdb/hooks"
)

// Quote escapes s for use inside a single quoted SQL string literal.
func Quote(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`, `[`, `\[`)

// EscapeLike escapes the LIKE wildcards of s for use with ESCAPE '\'.
func EscapeLike(s string) string {
	return likeEscaper.Replace(s)
}

func quoteList(values []string, transform func(string) string) string {
	quoted := make([]string, len(values))
	for i, v := range values {
		quoted[i] = "'" + Quote(transform(v)) + "'"
	}
	return strings.Join(quoted, ", ")
}

func upperTrim(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

// ProjectsSQL returns the projects query for args.
func (b *Bindings) ProjectsSQL(args GetProjectsArgs) (string, error) {
	return b.SQLGetProjects.Apply("", args)
}

// PlanningSQL returns the planning query for args.
func (b *Bindings) PlanningSQL(args GetPlanningArgs) (string, error) {
	return b.SQLGetPlanning.Apply("", args)
}

// getProjects is the default of sql_get_projects. Exactly one selection
// applies, in the order ids, numbers, children, search terms, status.
func (b *Bindings) getProjects(query string, args GetProjectsArgs) (string, error) {
	var sb strings.Builder
	sb.WriteString(query)
	sb.WriteString("SELECT")

	if args.SearchFor == nil {
		if args.Single {
			sb.WriteString(" TOP 1")
		} else {
			fmt.Fprintf(&sb, " TOP %d", b.cfg.MaxSelect)
		}
	}

	where, err := b.SQLWhereGetProjects.Apply(b.cfg.WhereProjects, hooks.None{})
	if err != nil {
		return "", err
	}
	sb.WriteString(where)

	switch {
	case args.ProjectIDs != nil:
		fmt.Fprintf(&sb, "\n    AND [projects].[id] IN (%s)", quoteList(args.ProjectIDs, strings.TrimSpace))

	case args.ProjectNumbers != nil:
		fmt.Fprintf(&sb, "\n    AND upper(trim([projects].[project_number])) IN (%s)", quoteList(args.ProjectNumbers, upperTrim))

	case strings.TrimSpace(args.ChildrenOf) != "":
		parent := upperTrim(args.ChildrenOf)
		nr, err := b.ProjectNumber.Apply(parent, hooks.None{})
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&sb, "\n    AND (\n      upper(trim([projects].[project_number])) = '%s'"+
			"\n      OR upper(trim([installations].[install_number])) LIKE '%s%%' ESCAPE '\\'\n    )",
			Quote(parent), EscapeLike(Quote(nr)))

	case args.SearchFor != nil:
		if len(args.SearchFor) > 0 {
			sb.WriteString("\n    AND (")
			for i, term := range args.SearchFor {
				if i > 0 {
					sb.WriteString("\n      AND")
				}
				writeSearchTerm(&sb, strings.ToLower(term))
			}
			sb.WriteString("\n    )")
		}

	case args.Status != nil:
		fmt.Fprintf(&sb, "\n    AND [projects].[status] IN (%s)", quoteList(args.Status, strings.TrimSpace))
	}

	sb.WriteString("\nORDER BY")
	writeOrder(&sb, args.OrderBy, "date_start", "project_number", "install_number")
	return sb.String(), nil
}

// writeSearchTerm matches term against number, description and relation
// name. A leading "!" negates the group.
func writeSearchTerm(sb *strings.Builder, term string) {
	negative := strings.HasPrefix(term, "!")
	if negative {
		term = term[1:]
	}
	not, join := "", "OR"
	if negative {
		not, join = "NOT ", "AND"
	}
	like := EscapeLike(Quote(term))
	fmt.Fprintf(sb, "\n      (\n        lower([projects].[project_number]) %sLIKE '%%%s%%' ESCAPE '\\'", not, like)
	fmt.Fprintf(sb, "\n        %s\n        lower([projects].[description]) %sLIKE '%%%s%%' ESCAPE '\\' COLLATE Latin1_General_CI_AI", join, not, like)
	fmt.Fprintf(sb, "\n        %s\n        lower([relations].[name]) %sLIKE '%%%s%%' ESCAPE '\\' COLLATE Latin1_General_CI_AI\n      )", join, not, like)
}

func writeOrder(sb *strings.Builder, orderBy string, columns ...string) {
	suffix := ""
	if orderBy == "DESC" {
		suffix = " DESC"
	}
	for i, c := range columns {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(sb, "\n    [%s]%s", c, suffix)
	}
}

var planningColumns = []string{
	"task_id",
	"parent_id",
	"project_number",
	"task_description",
	"date_start",
	"date_start_actual",
	"date_finish",
	"date_finish_actual",
	"date_delivery",
}

// getPlanning is the default of sql_get_planning.
func (b *Bindings) getPlanning(query string, args GetPlanningArgs) (string, error) {
	var sb strings.Builder
	sb.WriteString(query)
	sb.WriteString("SELECT")
	for i, c := range planningColumns {
		if i > 0 {
			sb.WriteString(",")
		}
		fmt.Fprintf(&sb, "\n    [planning].[%s] AS [%s]", c, c)
	}
	fmt.Fprintf(&sb, "\n  FROM\n    %s AS [planning]\n  WHERE\n    1 = 1", b.cfg.PlanningSource)

	if nr := strings.TrimSpace(args.ProjectNumber); nr == "" {
		sb.WriteString("\n    AND [planning].[project_number] IS NOT NULL")
	} else {
		fmt.Fprintf(&sb, "\n    AND [planning].[project_number] = '%s'", Quote(nr))
	}
	if args.ParentID == nil {
		sb.WriteString("\n    AND [planning].[parent_id] IS NULL")
	} else {
		fmt.Fprintf(&sb, "\n    AND [planning].[parent_id] = %d", *args.ParentID)
	}

	sb.WriteString("\nORDER BY")
	writeOrder(&sb, args.OrderBy, "project_number", "date_start", "date_start_actual", "date_finish", "date_finish_actual", "date_delivery")
	return sb.String(), nil
}
