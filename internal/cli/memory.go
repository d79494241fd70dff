package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lazypower/mem/internal/engine"
	"github.com/lazypower/mem/internal/hooks"
	"github.com/lazypower/mem/internal/store"
)

var (
	saveTitle   string
	saveContent string
	saveType    string
	saveProject string

	listProject string
	listLimit   int

	contextCompact bool
	contextOut     string
)

var saveCmd = &cobra.Command{
	Use:   "save",
	Short: "Save a memory",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		typ, err := store.ParseUserMemoryType(saveType)
		if err != nil {
			return err
		}
		project, err := absProject(saveProject)
		if err != nil {
			return err
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		m, err := e.db.SaveMemory(cmd.Context(), store.SaveParams{
			Title:   saveTitle,
			Type:    typ,
			Content: saveContent,
			Project: project,
		})
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Saved: %s (id: %s)\n", m.Title, m.ID)
		return nil
	},
}

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Show one memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		m, err := e.db.GetMemory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if m == nil {
			return fmt.Errorf("no memory found with id: %s", args[0])
		}

		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "%s\n", m.Title)
		fmt.Fprintf(w, "  id:       %s\n", m.ID)
		fmt.Fprintf(w, "  type:     %s\n", m.Type)
		fmt.Fprintf(w, "  scope:    %s\n", m.Scope)
		fmt.Fprintf(w, "  status:   %s\n", m.Status)
		if m.Project != "" {
			fmt.Fprintf(w, "  project:  %s\n", m.Project)
		}
		fmt.Fprintf(w, "  created:  %s\n", m.CreatedAt.UTC().Format("2006-01-02 15:04 UTC"))
		fmt.Fprintf(w, "  accessed: %d times\n\n", m.AccessCount)
		fmt.Fprintln(w, m.Content)
		return nil
	},
}

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Full-text search memories and indexed files",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := strings.Join(args, " ")

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		eng := engine.New(e.db, e.log.Logger)
		results, err := eng.Search(cmd.Context(), query, listProject, e.cfg.SearchLimit(listLimit))
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		if len(results) == 0 {
			fmt.Fprintf(w, "No results found for: %s\n", query)
			return nil
		}
		for _, r := range results {
			switch {
			case r.Memory != nil:
				printMemoryLine(w, r.Memory)
			case r.File != nil:
				fmt.Fprintf(w, "[file] %s (%s)\n  %s\n\n", r.File.Title, r.File.SourcePath, firstLine(r.File.Content))
			}
		}
		return nil
	},
}

var recentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List recent memories",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		memories, err := e.db.RecentMemories(cmd.Context(), listProject, e.cfg.SearchLimit(listLimit))
		if err != nil {
			return err
		}
		w := cmd.OutOrStdout()
		if len(memories) == 0 {
			fmt.Fprintln(w, engine.NoContext)
			return nil
		}
		for i := range memories {
			printMemoryLine(w, &memories[i])
		}
		return nil
	},
}

var contextCmd = &cobra.Command{
	Use:   "context",
	Short: "Print recent memories as context markdown",
	Long: `Print recent memories as context markdown.

Without --project, a hook payload on stdin supplies the project from its cwd.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		project := listProject
		if project == "" && !isTerminal(os.Stdin) {
			project = projectFromHookInput(cmd.InOrStdin())
		}

		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		eng := engine.New(e.db, e.log.Logger)
		md, err := eng.Context(cmd.Context(), project, e.cfg.ContextLimit(listLimit))
		if err != nil {
			return err
		}

		switch {
		case contextCompact:
			return hooks.WriteCompactOutput(cmd.OutOrStdout(), md)
		case contextOut != "":
			if err := os.WriteFile(contextOut, []byte(md), 0644); err != nil {
				return fmt.Errorf("write context to %s: %w", contextOut, err)
			}
			return nil
		default:
			fmt.Fprint(cmd.OutOrStdout(), md)
			return nil
		}
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <id>",
	Short: "Delete a memory",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := openEnv()
		if err != nil {
			return err
		}
		defer e.Close()

		ok, err := e.db.DeleteMemory(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no memory found with id: %s", args[0])
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Memory %s deleted.\n", args[0])
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <id>",
	Short: "Make a memory visible from every project",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setScope(cmd, args[0], store.ScopeGlobal)
	},
}

var demoteCmd = &cobra.Command{
	Use:   "demote <id>",
	Short: "Return a memory to its project's scope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return setScope(cmd, args[0], store.ScopeProject)
	},
}

func init() {
	saveCmd.Flags().StringVar(&saveTitle, "title", "", "memory title")
	saveCmd.Flags().StringVar(&saveContent, "content", "", "memory content")
	saveCmd.Flags().StringVar(&saveType, "type", "manual", "memory type: manual, pattern, decision")
	saveCmd.Flags().StringVar(&saveProject, "project", "", "project path the memory belongs to")
	saveCmd.MarkFlagRequired("title")
	saveCmd.MarkFlagRequired("content")

	for _, c := range []*cobra.Command{searchCmd, recentCmd, contextCmd} {
		c.Flags().StringVar(&listProject, "project", "", "limit to a project (global memories always included)")
		c.Flags().IntVar(&listLimit, "limit", 0, "max results (0 uses the configured default)")
	}

	contextCmd.Flags().BoolVar(&contextCompact, "compact", false, "emit PreCompact additionalContext JSON")
	contextCmd.Flags().StringVar(&contextOut, "out", "", "write markdown to a file instead of stdout")
}

func setScope(cmd *cobra.Command, id string, scope store.MemoryScope) error {
	e, err := openEnv()
	if err != nil {
		return err
	}
	defer e.Close()

	var ok bool
	if scope == store.ScopeGlobal {
		ok, err = e.db.PromoteMemory(cmd.Context(), id)
	} else {
		ok, err = e.db.DemoteMemory(cmd.Context(), id)
	}
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("no memory found with id: %s", id)
	}
	if scope == store.ScopeGlobal {
		fmt.Fprintf(cmd.OutOrStdout(), "Memory %s promoted to global scope.\n", id)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Memory %s demoted to project scope.\n", id)
	}
	return nil
}

func printMemoryLine(w io.Writer, m *store.Memory) {
	fmt.Fprintf(w, "[%s] %s (%s) [%s]\n  %s\n\n",
		m.Type, m.Title, m.CreatedAt.UTC().Format("2006-01-02"), m.Scope, firstLine(m.Content))
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}

// absProject cleans a project path to an absolute one; empty stays empty.
func absProject(p string) (string, error) {
	if p == "" {
		return "", nil
	}
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", fmt.Errorf("resolve project %s: %w", p, err)
	}
	return abs, nil
}

// projectFromHookInput reads a hook payload and returns its cwd. Bad input
// yields no project.
func projectFromHookInput(r io.Reader) string {
	var input hooks.HookInput
	if err := json.NewDecoder(r).Decode(&input); err != nil {
		return ""
	}
	return input.Project()
}

func isTerminal(f *os.File) bool {
	fi, err := f.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}
