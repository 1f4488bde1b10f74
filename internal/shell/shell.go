// Package shell is the interactive boundary around the service: it parses
// commands, prints results and relays errors. No domain logic lives here.
package shell

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/showshelf/showshelf/internal/catalog"
	"github.com/showshelf/showshelf/internal/service"
	"github.com/showshelf/showshelf/internal/store"
)

type Shell struct {
	svc *service.Service
	in  io.Reader
	out io.Writer

	// candidates from the last search, awaiting a pick
	pending []catalog.Candidate
}

func New(svc *service.Service, in io.Reader, out io.Writer) *Shell {
	return &Shell{svc: svc, in: in, out: out}
}

const helpText = `commands:
  search <tv|movie> <title> [(year)]   look up candidates
  pick <n> [category]                  cache candidate n from the last search
  imdb <tt-id or url> [category]       cache a title by its IMDb id
  list                                 show the cached shelf
  link <tmdb-id> <url>                 attach a personal link
  category <tmdb-id> <label>           move a title to a category
  refresh [tmdb-id]                    re-fetch metadata, posters and ratings
  remove <tmdb-id>                     delete a cached title
  generate                             write the offline HTML page
  backup                               snapshot the cache database
  quit`

// Run reads commands until EOF or quit. Errors are printed, never fatal; the
// session continues so the user can retry.
func (s *Shell) Run(ctx context.Context) error {
	fmt.Fprintln(s.out, "showshelf: type 'help' for commands")
	scanner := bufio.NewScanner(s.in)
	for {
		fmt.Fprint(s.out, "> ")
		if !scanner.Scan() {
			fmt.Fprintln(s.out)
			return scanner.Err()
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Fields(line)
		cmd, args := fields[0], fields[1:]
		if cmd == "quit" || cmd == "exit" {
			return nil
		}
		if err := s.dispatch(ctx, cmd, args); err != nil {
			fmt.Fprintf(s.out, "error: %v\n", err)
		}
	}
}

func (s *Shell) dispatch(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "help":
		fmt.Fprintln(s.out, helpText)
		return nil
	case "search":
		return s.cmdSearch(ctx, args)
	case "pick":
		return s.cmdPick(ctx, args)
	case "imdb":
		return s.cmdIMDB(ctx, args)
	case "list":
		return s.cmdList(ctx)
	case "link":
		return s.cmdLink(ctx, args)
	case "category":
		return s.cmdCategory(ctx, args)
	case "refresh":
		return s.cmdRefresh(ctx, args)
	case "remove":
		return s.cmdRemove(ctx, args)
	case "generate":
		return s.cmdGenerate(ctx)
	case "backup":
		return s.cmdBackup(ctx)
	default:
		return fmt.Errorf("unknown command %q, try 'help'", cmd)
	}
}

func (s *Shell) cmdSearch(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: search <tv|movie> <title> [(year)]")
	}
	kind := store.MediaKind(args[0])
	if !kind.Valid() {
		return fmt.Errorf("media kind must be tv or movie")
	}

	title, year := splitYear(strings.Join(args[1:], " "))

	candidates, err := s.svc.Search(ctx, kind, title, year)
	if err != nil {
		return err
	}
	s.pending = candidates
	if len(candidates) == 0 {
		fmt.Fprintln(s.out, "no matches")
		return nil
	}
	for i, c := range candidates {
		yearStr := ""
		if c.Year > 0 {
			yearStr = fmt.Sprintf(" (%d)", c.Year)
		}
		fmt.Fprintf(s.out, "%2d. %s%s [%s] #%d\n", i+1, c.Title, yearStr, c.Kind, c.TMDBID)
	}
	fmt.Fprintln(s.out, "use 'pick <n> [category]' to cache one")
	return nil
}

func (s *Shell) cmdPick(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: pick <n> [category]")
	}
	n, err := strconv.Atoi(args[0])
	if err != nil || n < 1 || n > len(s.pending) {
		return fmt.Errorf("pick a number between 1 and %d", len(s.pending))
	}
	candidate := s.pending[n-1]

	rec, err := s.svc.AddShow(ctx, candidate.Kind, candidate.TMDBID, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	s.printAdded(rec)
	return nil
}

func (s *Shell) cmdIMDB(ctx context.Context, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: imdb <tt-id or url> [category]")
	}
	kind, tmdbID, ok, err := s.svc.ResolveIMDB(ctx, args[0])
	if err != nil {
		return err
	}
	if !ok {
		fmt.Fprintln(s.out, "no catalog match for that imdb id")
		return nil
	}
	rec, err := s.svc.AddShow(ctx, kind, tmdbID, strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	s.printAdded(rec)
	return nil
}

func (s *Shell) printAdded(rec store.ShowRecord) {
	poster := "no poster"
	if rec.HasPoster() {
		poster = "poster embedded"
	}
	fmt.Fprintf(s.out, "cached %s (#%d), %s\n", rec.Title, rec.TMDBID, poster)
}

func (s *Shell) cmdList(ctx context.Context) error {
	records, err := s.svc.List(ctx)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Fprintln(s.out, "shelf is empty")
		return nil
	}
	for _, rec := range records {
		category := rec.Category
		if category == "" {
			category = "-"
		}
		yearStr := ""
		if rec.Year > 0 {
			yearStr = fmt.Sprintf(" (%d)", rec.Year)
		}
		fmt.Fprintf(s.out, "#%-9d %s%s [%s] %s\n", rec.TMDBID, rec.Title, yearStr, rec.Kind, category)
	}
	return nil
}

func (s *Shell) cmdLink(ctx context.Context, args []string) error {
	if len(args) != 2 {
		return fmt.Errorf("usage: link <tmdb-id> <url>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return s.svc.SetLink(ctx, id, args[1])
}

func (s *Shell) cmdCategory(ctx context.Context, args []string) error {
	if len(args) < 2 {
		return fmt.Errorf("usage: category <tmdb-id> <label>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return s.svc.SetCategory(ctx, id, strings.Join(args[1:], " "))
}

func (s *Shell) cmdRefresh(ctx context.Context, args []string) error {
	if len(args) == 0 {
		ok, failed, err := s.svc.RefreshAll(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(s.out, "refreshed %d, failed %d\n", ok, failed)
		return nil
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	if err := s.svc.RefreshShow(ctx, id); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "refreshed")
	return nil
}

func (s *Shell) cmdRemove(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: remove <tmdb-id>")
	}
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	return s.svc.Remove(ctx, id)
}

func (s *Shell) cmdGenerate(ctx context.Context) error {
	if err := s.svc.GeneratePage(ctx); err != nil {
		return err
	}
	fmt.Fprintln(s.out, "page written")
	return nil
}

func (s *Shell) cmdBackup(ctx context.Context) error {
	dest, err := s.svc.Backup(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintf(s.out, "backup written to %s\n", dest)
	return nil
}

func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimPrefix(arg, "#"), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid tmdb id %q", arg)
	}
	return id, nil
}

// splitYear peels a trailing "(2020)" year hint off a title.
func splitYear(title string) (string, int) {
	title = strings.TrimSpace(title)
	if strings.HasSuffix(title, ")") {
		if open := strings.LastIndex(title, "("); open >= 0 {
			if year, err := strconv.Atoi(title[open+1 : len(title)-1]); err == nil && year > 1800 && year < 3000 {
				return strings.TrimSpace(title[:open]), year
			}
		}
	}
	return title, 0
}
