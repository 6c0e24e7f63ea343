package app

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/kballard/go-shellquote"

	"fbaudio/internal/remote"
)

func (a *App) registerCommands() {
	a.commands = map[string]*command{
		"search": {
			usage:   "search <query>",
			summary: "search the remote catalog for talks",
			handler: a.cmdSearch,
		},
		"show": {
			usage:   "show <talk-id>",
			summary: "show a talk, refreshing stale detail from the network",
			handler: a.cmdShow,
		},
		"download": {
			usage:   "download <talk-id>",
			summary: "download a talk's audio archive",
			handler: a.cmdDownload,
		},
		"play": {
			usage:   "play <talk-id>",
			summary: "queue a talk for playback and record it as recently played",
			handler: a.cmdPlay,
		},
		"favorite": {
			usage:   "favorite <talk-id>",
			summary: "toggle favorite membership for a talk",
			handler: a.cmdFavorite,
		},
		"favorites": {
			usage:   "favorites",
			summary: "list favorited talks",
			handler: a.cmdFavorites,
		},
		"recent": {
			usage:   "recent",
			summary: "list recently played talks",
			handler: a.cmdRecent,
		},
		"downloaded": {
			usage:   "downloaded",
			summary: "list downloaded talks",
			handler: a.cmdDownloaded,
		},
		"delete": {
			usage:   "delete <talk-id>",
			summary: "delete a downloaded talk's audio and metadata",
			handler: a.cmdDelete,
		},
		"help": {
			usage:   "help",
			summary: "list available commands",
			handler: a.cmdHelp,
		},
		"quit": {
			usage:   "quit",
			summary: "exit",
			handler: func(context.Context, []string) (CommandResult, error) {
				return CommandResult{Quit: true}, nil
			},
		},
	}
}

// Execute parses one input line and dispatches it.
func (a *App) Execute(ctx context.Context, line string) (CommandResult, error) {
	fields, err := shellquote.Split(line)
	if err != nil {
		return a.fail("parse command: %v", err)
	}
	if len(fields) == 0 {
		return CommandResult{}, nil
	}

	cmd, ok := a.commands[strings.ToLower(fields[0])]
	if !ok {
		return a.fail("unknown command %q, try help", fields[0])
	}
	return cmd.handler(ctx, fields[1:])
}

func (a *App) cmdSearch(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) == 0 {
		return a.fail("usage: search <query>")
	}
	query := strings.Join(args, " ")

	response, err := a.library.Search(ctx, query)
	if err != nil {
		return a.fail("search failed (%s): %v", remote.Classify(err), err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d of %d matching talks:\n", len(response.Results), response.Total)
	for _, talk := range response.Results {
		marker := " "
		if talk.IsFavorite {
			marker = "*"
		}
		fmt.Fprintf(&b, "%s %s\n", marker, talkLine(talk.ID, talk.Title, talk.Speaker, talk.Year))
	}
	return CommandResult{Message: strings.TrimRight(b.String(), "\n")}, nil
}

func (a *App) cmdShow(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) != 1 {
		return a.fail("usage: show <talk-id>")
	}

	talk, ok := a.library.GetTalk(ctx, args[0])
	if !ok {
		return a.fail("talk %s not found locally or remotely", args[0])
	}

	var b strings.Builder
	fmt.Fprintln(&b, talkLine(talk.ID, talk.Title, talk.Speaker, talk.Year))
	if blurb := shortBlurb(talk.Blurb); blurb != "" {
		fmt.Fprintln(&b, blurb)
	}
	fmt.Fprintf(&b, "favorite: %v, downloaded: %v\n", talk.IsFavorite, a.library.IsDownloaded(talk.ID))
	for _, track := range talk.Tracks {
		duration := track.Duration
		if duration == "" && track.DurationSeconds > 0 {
			duration = fmt.Sprintf("%ds", track.DurationSeconds)
		}
		fmt.Fprintf(&b, "  %2d. %s %s\n", track.Number, track.Title, duration)
	}
	return CommandResult{Message: strings.TrimRight(b.String(), "\n")}, nil
}

func (a *App) cmdDownload(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) != 1 {
		return a.fail("usage: download <talk-id>")
	}

	talk, ok := a.library.GetTalk(ctx, args[0])
	if !ok {
		return a.fail("talk %s not found", args[0])
	}

	lastPercent := -1
	for event := range a.downloads.DownloadTalk(ctx, talk) {
		if event.Err != nil {
			fmt.Fprintln(a.out)
			return a.fail("download failed (%s): %v", remote.Classify(event.Err), event.Err)
		}
		percent := int(event.Fraction * 100)
		if percent != lastPercent {
			fmt.Fprintf(a.out, "\rdownloading %s... %3d%%", talk.ID, percent)
			lastPercent = percent
		}
	}
	fmt.Fprintln(a.out)
	return CommandResult{Message: fmt.Sprintf("downloaded %q (%d tracks)", talk.Title, len(talk.Tracks))}, nil
}

func (a *App) cmdPlay(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) != 1 {
		return a.fail("usage: play <talk-id>")
	}

	talk, ok := a.library.GetTalk(ctx, args[0])
	if !ok {
		return a.fail("talk %s not found", args[0])
	}

	items := a.library.Queue(talk)
	if len(items) == 0 {
		return a.fail("talk %s has no tracks to play", talk.ID)
	}
	if err := a.player.LoadQueue(items); err != nil {
		return a.fail("load queue: %v", err)
	}
	if err := a.player.Play(); err != nil {
		return a.fail("play: %v", err)
	}
	if err := a.library.AddRecentPlay(talk); err != nil {
		return a.fail("record recent play: %v", err)
	}
	return CommandResult{Message: fmt.Sprintf("playing %q (%d tracks)", talk.Title, len(items))}, nil
}

func (a *App) cmdFavorite(ctx context.Context, args []string) (CommandResult, error) {
	if len(args) != 1 {
		return a.fail("usage: favorite <talk-id>")
	}

	talk, ok := a.library.GetTalk(ctx, args[0])
	if !ok {
		return a.fail("talk %s not found", args[0])
	}

	updated, err := a.library.ToggleFavorite(talk)
	if err != nil {
		return a.fail("toggle favorite: %v", err)
	}
	if updated.IsFavorite {
		return CommandResult{Message: fmt.Sprintf("favorited %q", updated.Title)}, nil
	}
	return CommandResult{Message: fmt.Sprintf("unfavorited %q", updated.Title)}, nil
}

func (a *App) cmdFavorites(ctx context.Context, _ []string) (CommandResult, error) {
	talks := a.library.FavoriteTalks(ctx)
	if len(talks) == 0 {
		return CommandResult{Message: "no favorites yet"}, nil
	}
	var b strings.Builder
	for _, talk := range talks {
		fmt.Fprintln(&b, talkLine(talk.ID, talk.Title, talk.Speaker, talk.Year))
	}
	return CommandResult{Message: strings.TrimRight(b.String(), "\n")}, nil
}

func (a *App) cmdRecent(_ context.Context, _ []string) (CommandResult, error) {
	talks := a.library.RecentPlays()
	if len(talks) == 0 {
		return CommandResult{Message: "nothing played recently"}, nil
	}
	var b strings.Builder
	for _, talk := range talks {
		fmt.Fprintln(&b, talkLine(talk.ID, talk.Title, talk.Speaker, talk.Year))
	}
	return CommandResult{Message: strings.TrimRight(b.String(), "\n")}, nil
}

func (a *App) cmdDownloaded(_ context.Context, _ []string) (CommandResult, error) {
	talks := a.library.DownloadedTalks()
	if len(talks) == 0 {
		return CommandResult{Message: "no downloaded talks"}, nil
	}
	var b strings.Builder
	for _, talk := range talks {
		fmt.Fprintln(&b, talkLine(talk.ID, talk.Title, talk.Speaker, talk.Year))
	}
	return CommandResult{Message: strings.TrimRight(b.String(), "\n")}, nil
}

func (a *App) cmdDelete(_ context.Context, args []string) (CommandResult, error) {
	if len(args) != 1 {
		return a.fail("usage: delete <talk-id>")
	}
	if err := a.library.DeleteTalk(args[0]); err != nil {
		return a.fail("delete talk %s: %v", args[0], err)
	}
	return CommandResult{Message: fmt.Sprintf("deleted talk %s", args[0])}, nil
}

func (a *App) cmdHelp(_ context.Context, _ []string) (CommandResult, error) {
	names := make([]string, 0, len(a.commands))
	for name := range a.commands {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, name := range names {
		cmd := a.commands[name]
		fmt.Fprintf(&b, "%-24s %s\n", cmd.usage, cmd.summary)
	}
	return CommandResult{Message: strings.TrimRight(b.String(), "\n")}, nil
}
