package coordinator

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"gitlab.com/tinyland/lab/ikup/pkg/iddb"
)

// ListQuery selects which known instances List returns, mirroring the
// `all | last N | ids[] | paths[]` selection modes: exactly one of these
// takes effect, checked in the order IDs, Paths, Last, falling back to All
// (every known instance) when none are set.
type ListQuery struct {
	All   bool
	Last  int // most-recently-accessed N instances
	IDs   []uint32
	Paths []string
}

// apply filters instances (already ordered most-recently-accessed first by
// pkg/iddb.DB.List) down to q's selection.
func (q ListQuery) apply(instances []iddb.Instance) []iddb.Instance {
	switch {
	case len(q.IDs) > 0:
		want := make(map[uint32]bool, len(q.IDs))
		for _, id := range q.IDs {
			want[id] = true
		}
		out := make([]iddb.Instance, 0, len(q.IDs))
		for _, inst := range instances {
			if want[inst.ID] {
				out = append(out, inst)
			}
		}
		return out
	case len(q.Paths) > 0:
		want := make(map[string]bool, len(q.Paths))
		for _, p := range q.Paths {
			want[p] = true
		}
		out := make([]iddb.Instance, 0, len(q.Paths))
		for _, inst := range instances {
			if want[inst.Path] {
				out = append(out, inst)
			}
		}
		return out
	case q.Last > 0:
		if q.Last < len(instances) {
			return instances[:q.Last]
		}
		return instances
	default:
		return instances
	}
}

// ListOptions controls which instances List returns and how each is
// formatted.
type ListOptions struct {
	// Format is a printf-like template over one instance: %i id, %c cols,
	// %r rows, %p path, %P fingerprint, %m chosen quality, %a accessed-at
	// (RFC 3339), %D created-at (RFC 3339), %x format, %% a literal percent.
	// \n, \t, and \\ are recognized as escapes. Defaults to "%i\t%p\n".
	Format string

	Query ListQuery
}

const defaultListFormat = "%i\t%p\n"

// List returns the formatted rows of the instances opts.Query selects,
// most-recently-accessed first, matching pkg/iddb.DB.List's own ordering.
func (c *Coordinator) List(opts ListOptions) (string, error) {
	format := opts.Format
	if format == "" {
		format = defaultListFormat
	}
	tmpl, err := parseListFormat(format)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidArg, err)
	}

	instances, err := c.db.List()
	if err != nil {
		return "", fmt.Errorf("%w: list instances: %v", ErrIO, err)
	}
	instances = opts.Query.apply(instances)

	var sb strings.Builder
	for _, inst := range instances {
		tmpl.render(&sb, inst)
	}
	return sb.String(), nil
}

// listToken is one piece of a parsed format string: either literal text or
// a field substitution.
type listToken struct {
	literal string
	verb    byte // 0 when literal is set
}

type listTemplate struct {
	tokens []listToken
}

func (t listTemplate) render(sb *strings.Builder, inst iddb.Instance) {
	for _, tok := range t.tokens {
		if tok.verb == 0 {
			sb.WriteString(tok.literal)
			continue
		}
		sb.WriteString(renderListVerb(tok.verb, inst))
	}
}

func renderListVerb(verb byte, inst iddb.Instance) string {
	switch verb {
	case 'i':
		return strconv.FormatUint(uint64(inst.ID), 10)
	case 'c':
		return strconv.Itoa(inst.Cols)
	case 'r':
		return strconv.Itoa(inst.Rows)
	case 'p':
		return inst.Path
	case 'P':
		return inst.Fingerprint
	case 'm':
		if inst.ChosenQuality != nil {
			return strconv.Itoa(*inst.ChosenQuality)
		}
		return "-"
	case 'a':
		return inst.AccessedAt.Format(time.RFC3339)
	case 'D':
		return inst.CreatedAt.Format(time.RFC3339)
	case 'x':
		return inst.Format
	case '%':
		return "%"
	default:
		return "%" + string(verb)
	}
}

// parseListFormat hand-scans format into a sequence of literal runs and
// %-verb/escape substitutions, the same token-at-a-time style pkg/formula
// uses for its expression scanner, rather than reaching for regexp for a
// one-pass grammar this small.
func parseListFormat(format string) (listTemplate, error) {
	var tmpl listTemplate
	var lit strings.Builder

	flush := func() {
		if lit.Len() > 0 {
			tmpl.tokens = append(tmpl.tokens, listToken{literal: lit.String()})
			lit.Reset()
		}
	}

	for i := 0; i < len(format); i++ {
		switch format[i] {
		case '%':
			if i+1 >= len(format) {
				return listTemplate{}, fmt.Errorf("coordinator: dangling %% at end of format string")
			}
			flush()
			verb := format[i+1]
			tmpl.tokens = append(tmpl.tokens, listToken{verb: verb})
			i++
		case '\\':
			if i+1 >= len(format) {
				return listTemplate{}, fmt.Errorf("coordinator: dangling backslash at end of format string")
			}
			switch format[i+1] {
			case 'n':
				lit.WriteByte('\n')
			case 't':
				lit.WriteByte('\t')
			case '\\':
				lit.WriteByte('\\')
			default:
				return listTemplate{}, fmt.Errorf("coordinator: unknown escape \\%c in format string", format[i+1])
			}
			i++
		default:
			lit.WriteByte(format[i])
		}
	}
	flush()
	return tmpl, nil
}
